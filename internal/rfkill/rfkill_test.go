package rfkill

import (
	"testing"

	"go.viam.com/test"
)

const multiDevice = `0: hci0: Bluetooth
	Soft blocked: no
	Hard blocked: no
1: phy0: Wireless LAN
	Soft blocked: yes
	Hard blocked: no
2: hci1: Bluetooth
	Soft blocked: yes
	Hard blocked: yes
`

func TestParse(t *testing.T) {
	devices := Parse(multiDevice)
	test.That(t, devices, test.ShouldResemble, []Device{
		{Index: 0, Name: "hci0", Type: "Bluetooth"},
		{Index: 1, Name: "phy0", Type: "Wireless LAN", Soft: true},
		{Index: 2, Name: "hci1", Type: "Bluetooth", Soft: true, Hard: true},
	})

	test.That(t, Parse(""), test.ShouldBeNil)
	// stray property lines before any header are ignored
	test.That(t, Parse("Soft blocked: yes\n"), test.ShouldBeNil)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		output string
		soft   bool
		hard   bool
	}{
		{"unblocked", "0: hci0: Bluetooth\n\tSoft blocked: no\n\tHard blocked: no\n", false, false},
		{"soft", "0: hci0: Bluetooth\n\tSoft blocked: yes\n\tHard blocked: no\n", true, false},
		{"hard", "0: hci0: Bluetooth\n\tSoft blocked: no\n\tHard blocked: yes\n", false, true},
		{"mixed devices", multiDevice, true, true},
		{"no devices", "", false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			st := Summarize(tc.output)
			test.That(t, st.Soft, test.ShouldEqual, tc.soft)
			test.That(t, st.Hard, test.ShouldEqual, tc.hard)
		})
	}
}

func TestCommands(t *testing.T) {
	test.That(t, ListCmd("bluetooth").String(), test.ShouldEqual, "rfkill list bluetooth")
	test.That(t, ListCmd("bluetooth").Escalate, test.ShouldBeFalse)
	test.That(t, UnblockCmd("bluetooth").String(), test.ShouldEqual, "rfkill unblock bluetooth")
	test.That(t, UnblockCmd("bluetooth").Escalate, test.ShouldBeTrue)
}
