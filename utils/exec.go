package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"

	errw "github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

var (
	// ErrUnavailable marks a probe that could not run at all, as opposed to one that ran and reported a bad state.
	ErrUnavailable = errors.New("tool unavailable")
	// ErrTimedOut marks a command that was killed because it ran past its deadline.
	ErrTimedOut = errors.New("timed out")
)

// Outcome classifies the error returned by a probe or command.
type Outcome int

const (
	// OutcomeOK means the command ran and exited zero.
	OutcomeOK Outcome = iota
	// OutcomeExited means the command ran but exited non-zero. Its output is still meaningful.
	OutcomeExited
	// OutcomeTimedOut means the command hit its deadline.
	OutcomeTimedOut
	// OutcomeUnavailable means the binary (or file, or service) needed for the probe is missing.
	OutcomeUnavailable
	// OutcomeFailed is any other error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeExited:
		return "exited"
	case OutcomeTimedOut:
		return "timed out"
	case OutcomeUnavailable:
		return "unavailable"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Classify maps an error from [Executor.Run] or a [Probe] to an [Outcome].
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, ErrTimedOut) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimedOut
	}
	// *exec.ExitError satisfies this through its embedded *os.ProcessState.
	var exitErr interface{ ExitCode() int }
	if errors.As(err, &exitErr) {
		return OutcomeExited
	}
	if errors.Is(err, ErrUnavailable) ||
		errors.Is(err, exec.ErrNotFound) ||
		errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, fs.ErrPermission) {
		return OutcomeUnavailable
	}
	return OutcomeFailed
}

// Command is a single invocation of an external utility.
type Command struct {
	Name string
	Args []string
	// Escalate runs the command through sudo unless already root.
	Escalate bool
	// Timeout bounds the command. Zero means bounded only by the caller's context.
	Timeout time.Duration
}

// String returns the command line as typed at a shell, without escalation.
func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Argv returns the full argument vector, prefixed with sudo when escalation is needed.
func (c Command) Argv(root bool) []string {
	argv := append([]string{c.Name}, c.Args...)
	if c.Escalate && !root {
		argv = append([]string{"sudo"}, argv...)
	}
	return argv
}

// Describe implements [Probe].
func (c Command) Describe() string {
	return c.String()
}

// Inspect implements [Probe] by running the command through the executor.
func (c Command) Inspect(ctx context.Context, exe Executor) (string, error) {
	return exe.Run(ctx, c)
}

// Probe produces the text a check evaluates. External commands are the common case, but
// anything that can describe the system state as text will do.
type Probe interface {
	Describe() string
	Inspect(ctx context.Context, exe Executor) (string, error)
}

// Executor runs external commands as subprocesses. It primarily exists so the check runner
// can be tested with fakes.
type Executor interface {
	// Run executes cmd and returns stdout followed by stderr. A non-nil error may still come
	// with useful output, e.g. `systemctl is-active` prints "inactive" and exits 3.
	Run(ctx context.Context, cmd Command) (string, error)
}

type realExecutor struct {
	logger logging.Logger
	root   bool
}

// NewExecutor returns an [Executor] that runs commands on the host.
func NewExecutor(logger logging.Logger) Executor {
	return &realExecutor{logger: logger, root: IsRoot()}
}

func (re *realExecutor) Run(ctx context.Context, cmd Command) (string, error) {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	argv := cmd.Argv(re.root)
	//nolint:gosec
	c := exec.CommandContext(ctx, argv[0], argv[1:]...)
	// grandchildren can hold the output pipes open after a kill
	c.WaitDelay = time.Second
	// sudo may need to prompt for a password
	interactive := cmd.Escalate && !re.root
	if interactive {
		c.Stdin = os.Stdin
	}
	PlatformSubprocessSettings(c, interactive)

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = io.MultiWriter(&stderr, NewOutputLogger(re.logger.AsZap().Named(cmd.Name), false))

	re.logger.Debugf("running %q", strings.Join(argv, " "))
	err := c.Run()
	output := stdout.String() + stderr.String()

	if err == nil {
		return output, nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return output, errw.Wrapf(ErrTimedOut, "running '%s' after %s", cmd, cmd.Timeout)
	}
	if e := (&exec.ExitError{}); errors.As(err, &e) {
		return output, errw.Wrapf(err, "running '%s' output: %s", cmd, strings.TrimSpace(output))
	}
	// it didn't even start
	return output, errw.Wrapf(err, "running '%s'", cmd)
}
