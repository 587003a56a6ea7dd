// Package systemd builds the systemctl commands the checks run and parses what they print.
package systemd

import (
	"strings"

	"github.com/viamrobotics/btdoctor/utils"
)

// ActiveState is the first line printed by `systemctl is-active`.
type ActiveState string

const (
	StateActive       ActiveState = "active"
	StateInactive     ActiveState = "inactive"
	StateActivating   ActiveState = "activating"
	StateDeactivating ActiveState = "deactivating"
	StateFailed       ActiveState = "failed"
	StateUnknown      ActiveState = "unknown"
)

// ParseActiveState returns the state reported by `systemctl is-active`. Anything unrecognized,
// including empty output, is StateUnknown.
func ParseActiveState(output string) ActiveState {
	line, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	switch state := ActiveState(strings.TrimSpace(line)); state {
	case StateActive, StateInactive, StateActivating, StateDeactivating, StateFailed:
		return state
	default:
		return StateUnknown
	}
}

// IsActive reports whether the output of `systemctl is-active` says the unit is running.
func IsActive(output string) bool {
	return ParseActiveState(output) == StateActive
}

// IsActiveCmd is `systemctl is-active <unit>`. It never needs privilege.
func IsActiveCmd(unit string) utils.Command {
	return utils.Command{Name: "systemctl", Args: []string{"is-active", unit}}
}

// StartCmd is `systemctl start <unit>`.
func StartCmd(unit string) utils.Command {
	return utils.Command{Name: "systemctl", Args: []string{"start", unit}, Escalate: true}
}

// RestartCmd is `systemctl restart <unit>`.
func RestartCmd(unit string) utils.Command {
	return utils.Command{Name: "systemctl", Args: []string{"restart", unit}, Escalate: true}
}
