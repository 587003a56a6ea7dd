package systemd

import (
	"testing"

	"go.viam.com/test"
)

func TestParseActiveState(t *testing.T) {
	tests := []struct {
		output string
		state  ActiveState
	}{
		{"active\n", StateActive},
		{"  inactive  \n", StateInactive},
		{"failed\n", StateFailed},
		{"activating\n", StateActivating},
		{"", StateUnknown},
		{"Failed to connect to bus: No such file or directory\n", StateUnknown},
		{"active\nactive\n", StateActive},
	}
	for _, tc := range tests {
		t.Run(tc.output, func(t *testing.T) {
			test.That(t, ParseActiveState(tc.output), test.ShouldEqual, tc.state)
		})
	}

	test.That(t, IsActive("active\n"), test.ShouldBeTrue)
	// "inactive" contains "active", it must not count
	test.That(t, IsActive("inactive\n"), test.ShouldBeFalse)
}

func TestCommands(t *testing.T) {
	test.That(t, IsActiveCmd("dbus").String(), test.ShouldEqual, "systemctl is-active dbus")
	test.That(t, IsActiveCmd("dbus").Escalate, test.ShouldBeFalse)
	test.That(t, StartCmd("bluetooth").String(), test.ShouldEqual, "systemctl start bluetooth")
	test.That(t, StartCmd("bluetooth").Escalate, test.ShouldBeTrue)
	test.That(t, RestartCmd("bluetooth").String(), test.ShouldEqual, "systemctl restart bluetooth")
	test.That(t, RestartCmd("bluetooth").Escalate, test.ShouldBeTrue)
}
