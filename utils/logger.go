package utils

import (
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var ansiColorRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// NewOutputLogger returns an OutputLogger.
func NewOutputLogger(logger *zap.SugaredLogger, isError bool) *OutputLogger {
	return &OutputLogger{logger: logger, defaultError: isError}
}

// OutputLogger is an io.Writer that sends unstructured subprocess output to a zap logger one line at a time.
// bluetoothctl colors its prompts, so escape codes are stripped first.
type OutputLogger struct {
	mu           sync.Mutex
	logger       *zap.SugaredLogger
	defaultError bool
}

// Write logs each non-empty line of p.
func (l *OutputLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	text := StripAnsi(string(p))
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if l.defaultError {
			l.logger.Warnw("unstructured error output", "line", line)
		} else {
			l.logger.Debugw("unstructured output", "line", line)
		}
	}
	return len(p), nil
}

// StripAnsi removes terminal color codes from command output.
func StripAnsi(s string) string {
	return ansiColorRegex.ReplaceAllString(s, "")
}
