package bluez

import (
	"context"
	"os"
	"regexp"
	"strings"

	errw "github.com/pkg/errors"
	"github.com/viamrobotics/btdoctor/utils"
)

var (
	sectionRegex = regexp.MustCompile(`^\s*(#|//)?\s*\[(\w+)\]`)
	// submatches for comment, key, and value
	kvRegex = regexp.MustCompile(`^\s*(#|//)?\s*(\w+)\s*=\s*(\w+)`)
)

func getSectionName(line string) (string, bool) {
	matches := sectionRegex.FindStringSubmatch(line)
	var isCommented bool
	if len(matches) != 3 {
		return "", isCommented
	}
	if matches[1] != "" {
		isCommented = true
	}
	return matches[2], isCommented
}

func getKeyValue(line string) (string, string, bool) {
	matches := kvRegex.FindStringSubmatch(line)
	var isCommented bool
	if len(matches) != 4 {
		return "", "", isCommented
	}
	if matches[1] != "" {
		isCommented = true
	}
	return matches[2], matches[3], isCommented
}

// AutoEnable returns the uncommented [Policy] AutoEnable value from a bluetoothd main.conf.
// The second value is false when the key isn't set, in which case bluetoothd's compiled
// default applies (true since 5.65).
func AutoEnable(content string) (string, bool) {
	var inPolicySection bool
	for _, line := range strings.Split(content, "\n") {
		if name, comment := getSectionName(line); name != "" {
			if !comment {
				inPolicySection = name == "Policy"
			}
			continue
		}
		if !inPolicySection {
			continue
		}
		key, value, comment := getKeyValue(line)
		if !comment && key == "AutoEnable" {
			return strings.ToLower(value), true
		}
	}
	return "", false
}

// FileProbe reads a config file so a check can evaluate it. A missing file classifies as unavailable.
type FileProbe struct {
	Path string
}

// Describe implements utils.Probe.
func (p FileProbe) Describe() string {
	return "read " + p.Path
}

// Inspect implements utils.Probe.
func (p FileProbe) Inspect(_ context.Context, _ utils.Executor) (string, error) {
	//nolint:gosec
	content, err := os.ReadFile(p.Path)
	if err != nil {
		return "", errw.Wrapf(err, "reading %s", p.Path)
	}
	return string(content), nil
}
