// Package btdoctor diagnoses and repairs a host's Bluetooth stack by running a fixed sequence of
// checks. Each check probes the system, evaluates what it printed, and on failure may run a single
// corrective command.
package btdoctor

import (
	"time"

	"github.com/viamrobotics/btdoctor/utils"
)

// Status is the outcome of a single check.
type Status int

const (
	// StatusPass means the check found a healthy state.
	StatusPass Status = iota
	// StatusFixed means the check found a problem and its remedy succeeded.
	StatusFixed
	// StatusFail means the problem remains, either because there was no remedy or it didn't work.
	StatusFail
	// StatusUnavailable means the probe could not run (missing binary, file, or service).
	StatusUnavailable
	// StatusInfo is used by report-only checks.
	StatusInfo
	// StatusSkipped means the check never started, ex: the run was interrupted.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "ok"
	case StatusFixed:
		return "fixed"
	case StatusFail:
		return "failed"
	case StatusUnavailable:
		return "unavailable"
	case StatusInfo:
		return "info"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Symbol is the marker printed in front of a status line.
func (s Status) Symbol() string {
	switch s {
	case StatusPass, StatusFixed:
		return "✓"
	case StatusFail:
		return "✗"
	case StatusUnavailable:
		return "⚠"
	case StatusSkipped:
		return "-"
	default:
		return "•"
	}
}

// Finding is what a check concluded from its probe output.
type Finding struct {
	Healthy bool
	// Remediable is false when the check's remedy can't help, ex: a hardware RF switch.
	Remediable bool
	// Note is appended to the status line.
	Note string
	// Warning is printed on its own line regardless of the outcome.
	Warning string
	// Residual is set when the remedy can only clear part of the problem, ex: a soft block on a
	// radio that is also hard blocked. The check still fails after the remedy succeeds, with Residual
	// as the reason.
	Residual string
}

// Evaluator turns probe output into a Finding.
type Evaluator func(output string) Finding

// Predicate adapts a boolean test over probe output into a remediable Evaluator.
func Predicate(pred func(output string) bool) Evaluator {
	return func(output string) Finding {
		return Finding{Healthy: pred(output), Remediable: true}
	}
}

// Check describes one diagnostic step as data, so a single runner can execute them all.
type Check struct {
	// Name is a short stable identifier, ex: "bluetooth-service".
	Name string
	// Title heads the check's block of output.
	Title string

	// Probe is the read-only inspection. Ignored when Always is set.
	Probe utils.Probe
	// Evaluate inspects the probe output. Nil means success of the probe is all that matters.
	Evaluate Evaluator
	// RequireSuccess fails the check on a non-zero exit even when the output looks fine.
	RequireSuccess bool

	// Remedy runs when the check fails and the finding is remediable.
	Remedy *utils.Command
	// Always runs Remedy without probing first.
	Always bool
	// Settle is how long to wait after the Remedy for its change to take effect.
	Settle time.Duration
	// Recheck probes once more after Settle and reports that result.
	Recheck bool

	// InfoOnly checks print what they found and never fail.
	InfoOnly bool
	// MayFail marks checks that routinely can't run on some hosts (ex: no device configured, no BLE),
	// so their problems are logged at debug rather than warn.
	MayFail bool

	PassMsg         string
	FailMsg         string
	FixedMsg        string
	RemedyFailedMsg string
	// Warning is printed after a Remedy succeeds, ex: "log out and back in".
	Warning string
}

// Escalates reports whether the check's remedy needs elevated privilege.
func (c Check) Escalates() bool {
	return c.Remedy != nil && c.Remedy.Escalate
}

// Result is what running a Check produced.
type Result struct {
	Check   string
	Status  Status
	Message string
	// Output is the last probe output, kept for debug logging.
	Output string
	// Remedied is true when the remedy command actually ran.
	Remedied bool
	Err      error
}

// Report collects the results of a run, in check order.
type Report struct {
	RunID   string
	User    string
	Results []Result
}

// Count returns how many results have the given status.
func (r Report) Count(status Status) int {
	var n int
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}

// Result returns the result for the named check.
func (r Report) Result(name string) (Result, bool) {
	for _, res := range r.Results {
		if res.Check == name {
			return res, true
		}
	}
	return Result{}, false
}

// Healthy reports whether nothing failed or was unavailable.
func (r Report) Healthy() bool {
	return r.Count(StatusFail) == 0 && r.Count(StatusUnavailable) == 0
}
