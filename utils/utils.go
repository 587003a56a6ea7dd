// Package utils contains helper functions shared between the check runner and its probes
package utils

import (
	"os"
	"os/user"
	"strings"

	errw "github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

var (
	// versions embedded at build time.
	Version     = ""
	GitRevision = ""
)

// GetVersion returns the version embedded at build time.
func GetVersion() string {
	if Version == "" {
		return "custom"
	}
	return Version
}

// GetRevision returns the git revision embedded at build time.
func GetRevision() string {
	if GitRevision == "" {
		return "unknown"
	}
	return GitRevision
}

// IsRoot reports whether the effective uid is 0, in which case escalated commands run without sudo.
func IsRoot() bool {
	return unix.Geteuid() == 0
}

// TargetUser returns the user whose group membership is checked. An explicit name wins,
// then the user who invoked sudo, then the current user.
func TargetUser(explicit string) (string, error) {
	if name := strings.TrimSpace(explicit); name != "" {
		return name, nil
	}
	if name := strings.TrimSpace(os.Getenv("SUDO_USER")); name != "" {
		return name, nil
	}
	curUser, err := user.Current()
	if err != nil {
		return "", errw.Wrap(err, "looking up current user")
	}
	return curUser.Username, nil
}

// ParseGroups returns the group names in the output of `groups`. Output of the form
// "user : a b c" (when a user is named) and the bare "a b c" form are both accepted.
func ParseGroups(output string) []string {
	line := strings.TrimSpace(output)
	if i := strings.LastIndex(line, ":"); i >= 0 {
		line = line[i+1:]
	}
	return strings.Fields(line)
}

// InGroup reports whether group is listed in the output of `groups`.
func InGroup(output, group string) bool {
	for _, g := range ParseGroups(output) {
		if g == group {
			return true
		}
	}
	return false
}
