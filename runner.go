package btdoctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viamrobotics/btdoctor/utils"
	"go.viam.com/rdk/logging"
	goutils "go.viam.com/utils"
)

// Runner executes checks strictly in order, one at a time.
type Runner struct {
	logger logging.Logger
	exec   utils.Executor
	out    io.Writer
	checks []Check
	user   string
	dryRun bool
	root   bool
	// sleep waits for d and returns false if ctx ended first.
	sleep func(ctx context.Context, d time.Duration) bool
}

// RunnerOption is a type used to configure the [Runner] returned from [NewRunner].
type RunnerOption func(*Runner)

// WithExecutor configures the created [Runner] with a custom [utils.Executor]. Should only be used for testing.
func WithExecutor(exec utils.Executor) RunnerOption {
	return func(r *Runner) {
		r.exec = exec
	}
}

// WithOutput sends status lines to w instead of stdout.
func WithOutput(w io.Writer) RunnerOption {
	return func(r *Runner) {
		r.out = w
	}
}

// WithChecks replaces the default check table.
func WithChecks(checks []Check) RunnerOption {
	return func(r *Runner) {
		r.checks = checks
	}
}

// WithSleeper replaces the fixed delays. Should only be used for testing.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) bool) RunnerOption {
	return func(r *Runner) {
		r.sleep = sleep
	}
}

// WithDryRun prints remedies instead of running them.
func WithDryRun(dryRun bool) RunnerOption {
	return func(r *Runner) {
		r.dryRun = dryRun
	}
}

// WithRoot overrides whether the runner considers itself root, which decides if remedies
// are shown with sudo. Should only be used for testing.
func WithRoot(root bool) RunnerOption {
	return func(r *Runner) {
		r.root = root
	}
}

// NewRunner returns a Runner for the default checks built from cfg, checking group membership of user.
func NewRunner(logger logging.Logger, cfg utils.Config, user string, opts ...RunnerOption) *Runner {
	r := &Runner{
		logger: logger,
		out:    os.Stdout,
		user:   user,
		root:   utils.IsRoot(),
		sleep:  goutils.SelectContextOrWait,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.exec == nil {
		r.exec = utils.NewExecutor(logger)
	}
	if r.checks == nil {
		r.checks = DefaultChecks(cfg, user)
	}
	return r
}

// Run executes every check and always finishes with a completion banner. Nothing that
// happens in a check stops the run; only ctx ending does, and then remaining checks are skipped.
func (r *Runner) Run(ctx context.Context) Report {
	return r.run(ctx, "")
}

// Skip reports every check as skipped for reason without running anything, still ending
// with the completion banner.
func (r *Runner) Skip(reason string) Report {
	return r.run(context.Background(), reason)
}

func (r *Runner) run(ctx context.Context, skipReason string) Report {
	report := Report{RunID: uuid.New().String(), User: r.user}
	logger := r.logger.Sublogger(report.RunID[:8])

	r.printf("bt-doctor %s (run %s)\n", utils.GetVersion(), report.RunID[:8])
	if r.user != "" {
		r.printf("Target user: %s\n", r.user)
	}
	if r.dryRun {
		r.printf("Dry run: remediation commands will be printed, not run\n")
	}

	for i, chk := range r.checks {
		r.printf("\n[%d/%d] %s\n", i+1, len(r.checks), chk.Title)
		reason := skipReason
		if reason == "" && ctx.Err() != nil {
			reason = "interrupted"
		}
		if reason != "" {
			res := Result{Check: chk.Name, Status: StatusSkipped, Message: reason}
			r.status(res.Status, res.Message)
			report.Results = append(report.Results, res)
			continue
		}
		res := r.runCheck(ctx, chk)
		r.logResult(logger, chk, res)
		report.Results = append(report.Results, res)
	}

	r.printf("\n=== Diagnostics complete: %d ok, %d fixed, %d failed, %d unavailable ===\n",
		report.Count(StatusPass)+report.Count(StatusInfo),
		report.Count(StatusFixed),
		report.Count(StatusFail),
		report.Count(StatusUnavailable),
	)
	return report
}

func (r *Runner) runCheck(ctx context.Context, chk Check) Result {
	res := Result{Check: chk.Name}
	if chk.Always {
		return r.runUnconditional(ctx, chk, res)
	}

	out, err := chk.Probe.Inspect(ctx, r.exec)
	res.Output = out
	finding, outcome := r.evaluate(chk, out, err)

	if outcome == utils.OutcomeUnavailable {
		res.Status = StatusUnavailable
		res.Err = err
		res.Message = fmt.Sprintf("%s unavailable, cannot check (%s)", chk.Probe.Describe(), rootCause(err))
		r.status(res.Status, res.Message)
		return res
	}
	if outcome == utils.OutcomeTimedOut || outcome == utils.OutcomeFailed {
		res.Err = err
	}

	if chk.InfoOnly {
		res.Status = StatusInfo
		res.Message = finding.Note
		if res.Message == "" {
			res.Message = strings.TrimSpace(out)
		}
		r.status(res.Status, res.Message)
		r.warn(finding.Warning)
		return res
	}

	if finding.Healthy {
		res.Status = StatusPass
		res.Message = withNote(chk.PassMsg, finding.Note)
		r.status(res.Status, res.Message)
		r.warn(finding.Warning)
		return res
	}

	res.Status = StatusFail
	res.Message = withNote(chk.FailMsg, finding.Note)
	r.status(res.Status, res.Message)
	r.warn(finding.Warning)
	if chk.Remedy == nil || !finding.Remediable {
		return res
	}
	return r.remediate(ctx, chk, finding, res)
}

// evaluate classifies the probe error and, when the probe actually ran, applies the check's Evaluator.
func (r *Runner) evaluate(chk Check, out string, err error) (Finding, utils.Outcome) {
	outcome := utils.Classify(err)
	switch outcome {
	case utils.OutcomeUnavailable:
		return Finding{}, outcome
	case utils.OutcomeTimedOut:
		return Finding{Note: "timed out"}, outcome
	case utils.OutcomeFailed:
		return Finding{Note: rootCause(err)}, outcome
	case utils.OutcomeExited:
		if chk.RequireSuccess || chk.Evaluate == nil {
			return Finding{Note: rootCause(err)}, outcome
		}
	case utils.OutcomeOK:
		if chk.Evaluate == nil {
			return Finding{Healthy: true, Remediable: true}, outcome
		}
	}
	return chk.Evaluate(out), outcome
}

func (r *Runner) remediate(ctx context.Context, chk Check, finding Finding, res Result) Result {
	cmd := *chk.Remedy
	argv := strings.Join(cmd.Argv(r.root), " ")
	if r.dryRun {
		r.printf("  → would run: %s\n", argv)
		return res
	}

	r.printf("  → %s\n", argv)
	res.Remedied = true
	_, remedyErr := r.exec.Run(ctx, cmd)
	// a failed remedy is final unless the check re-probes, since the change may still have taken effect
	if remedyErr != nil && !chk.Recheck {
		res.Err = remedyErr
		res.Message = chk.RemedyFailedMsg
		r.status(StatusFail, res.Message)
		return res
	}

	if chk.Settle > 0 && !r.sleep(ctx, chk.Settle) {
		res.Err = remedyErr
		res.Message = "interrupted while waiting for the change to take effect"
		r.status(StatusFail, res.Message)
		return res
	}

	if chk.Recheck {
		out, err := chk.Probe.Inspect(ctx, r.exec)
		res.Output = out
		finding, _ = r.evaluate(chk, out, err)
		if !finding.Healthy {
			res.Err = err
			if remedyErr != nil {
				res.Err = remedyErr
			}
			res.Message = withNote(chk.RemedyFailedMsg, finding.Note)
			r.status(StatusFail, res.Message)
			return res
		}
	}

	// kept for the log when the re-check passed anyway
	res.Err = remedyErr
	if finding.Residual != "" {
		res.Message = fmt.Sprintf("%s, still %s", chk.FixedMsg, finding.Residual)
		r.status(StatusFail, res.Message)
		return res
	}

	res.Status = StatusFixed
	res.Message = chk.FixedMsg
	r.status(res.Status, res.Message)
	r.warn(chk.Warning)
	return res
}

func (r *Runner) runUnconditional(ctx context.Context, chk Check, res Result) Result {
	cmd := *chk.Remedy
	argv := strings.Join(cmd.Argv(r.root), " ")
	if r.dryRun {
		res.Status = StatusInfo
		res.Message = "would run: " + argv
		r.status(res.Status, res.Message)
		return res
	}

	r.printf("  → %s\n", argv)
	res.Remedied = true
	out, err := r.exec.Run(ctx, cmd)
	res.Output = out
	if err != nil {
		res.Status = StatusFail
		res.Err = err
		res.Message = chk.RemedyFailedMsg
		if utils.Classify(err) == utils.OutcomeUnavailable {
			res.Status = StatusUnavailable
			res.Message = fmt.Sprintf("%s unavailable (%s)", cmd.Name, rootCause(err))
		}
		r.status(res.Status, res.Message)
		return res
	}
	if chk.Settle > 0 {
		r.sleep(ctx, chk.Settle)
	}
	res.Status = StatusPass
	res.Message = chk.PassMsg
	r.status(res.Status, res.Message)
	return res
}

func (r *Runner) logResult(logger logging.Logger, chk Check, res Result) {
	if res.Output != "" {
		logger.Debugw("probe output", "check", chk.Name, "output", strings.TrimSpace(res.Output))
	}
	if res.Err == nil {
		return
	}
	if chk.MayFail || chk.InfoOnly {
		logger.Debugw("check error", "check", chk.Name, "status", res.Status.String(), "error", res.Err)
		return
	}
	logger.Warnw("check error", "check", chk.Name, "status", res.Status.String(), "error", res.Err)
}

func (r *Runner) printf(format string, args ...any) {
	//nolint:errcheck
	fmt.Fprintf(r.out, format, args...)
}

func (r *Runner) status(s Status, msg string) {
	r.printf("  %s %s\n", s.Symbol(), msg)
}

func (r *Runner) warn(msg string) {
	if msg != "" {
		r.printf("  ⚠ %s\n", msg)
	}
}

func withNote(msg, note string) string {
	if note == "" {
		return msg
	}
	if msg == "" {
		return note
	}
	return fmt.Sprintf("%s (%s)", msg, note)
}

// rootCause trims wrapped errors down to the innermost message for status lines.
func rootCause(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 && i+2 < len(msg) {
		return msg[i+2:]
	}
	return msg
}
