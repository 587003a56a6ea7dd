package utils

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
)

func MockBuildInfo(t *testing.T, version, revision string) {
	originalVersion := Version
	originalRevision := GitRevision
	t.Cleanup(func() {
		Version = originalVersion
		GitRevision = originalRevision
	})
	Version = version
	GitRevision = revision
}

// FakeResponse is what a [FakeExecutor] returns for one invocation of a command.
type FakeResponse struct {
	Output string
	Err    error
}

// FakeExitError stands in for an *exec.ExitError in tests.
type FakeExitError struct {
	Code int
}

func (e *FakeExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// ExitCode matches the method *exec.ExitError has, which is what [Classify] looks for.
func (e *FakeExitError) ExitCode() int {
	return e.Code
}

// FakeExecutor is an [Executor] that replays canned responses keyed by command line (without sudo).
// When a command has a sequence of responses, each call consumes one, and the last one repeats.
// Unknown commands behave like a missing binary.
type FakeExecutor struct {
	mu        sync.Mutex
	responses map[string][]FakeResponse
	calls     []Command
}

// NewFakeExecutor returns an empty FakeExecutor.
func NewFakeExecutor() *FakeExecutor {
	return &FakeExecutor{responses: map[string][]FakeResponse{}}
}

// On registers the responses for a command line such as "systemctl is-active bluetooth".
func (f *FakeExecutor) On(cmdLine string, responses ...FakeResponse) *FakeExecutor {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[cmdLine] = responses
	return f
}

// Run implements [Executor].
func (f *FakeExecutor) Run(ctx context.Context, cmd Command) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cmd)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := cmd.String()
	queue, ok := f.responses[key]
	if !ok || len(queue) == 0 {
		return "", fmt.Errorf("running '%s': %w", key, ErrUnavailable)
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[key] = queue[1:]
	}
	return resp.Output, resp.Err
}

// Calls returns every command run so far, in order.
func (f *FakeExecutor) Calls() []Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Command(nil), f.calls...)
}

// CallCount returns how many times a command line was run.
func (f *FakeExecutor) CallCount(cmdLine string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, c := range f.calls {
		if c.String() == cmdLine {
			n++
		}
	}
	return n
}

// CalledWithPrefix reports whether any command line starting with prefix was run.
func (f *FakeExecutor) CalledWithPrefix(prefix string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if strings.HasPrefix(c.String(), prefix) {
			return true
		}
	}
	return false
}
