package bluez

import (
	"testing"

	dbus "github.com/godbus/dbus/v5"
	"go.viam.com/test"
)

func TestFormatProperties(t *testing.T) {
	out := formatProperties(map[string]dbus.Variant{
		"Powered": dbus.MakeVariant(true),
		"Address": dbus.MakeVariant("00:1A:7D:DA:71:13"),
		"Class":   dbus.MakeVariant(uint32(0x6c0000)),
		"UUIDs":   dbus.MakeVariant([]string{"00001801-0000-1000-8000-00805f9b34fb"}),
	})
	test.That(t, out, test.ShouldEqual, "Address: 00:1A:7D:DA:71:13\nClass: 0x006c0000\nPowered: yes\n")

	// the output is readable by the bluetoothctl parsers
	powered, found := Powered(out)
	test.That(t, powered, test.ShouldBeTrue)
	test.That(t, found, test.ShouldBeTrue)

	// padded to eight digits the way bluetoothctl prints it
	out = formatProperties(map[string]dbus.Variant{"Class": dbus.MakeVariant(uint32(0))})
	test.That(t, out, test.ShouldEqual, "Class: 0x00000000\n")
}

func TestAdapterProbeDescribe(t *testing.T) {
	p := AdapterProbe{Adapter: "hci1"}
	test.That(t, p.Describe(), test.ShouldEqual, "org.bluez.Adapter1 /org/bluez/hci1 on the system bus")
}
