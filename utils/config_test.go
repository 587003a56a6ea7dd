package utils

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.viam.com/test"
)

func TestLoadConfig(t *testing.T) {
	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, cfg, test.ShouldResemble, DefaultConfig())
	})

	t.Run("jsonc with comments", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bt-doctor.json")
		jsonBytes := `
{
	// meter used with the BLE listener
	"mac_address": "80:f5:b5:7f:99:0f",
	"device_name": "meter",
	"scan_timeout": 20,
	"scan_for_device": true,
	"start_recheck_delay": "500ms",
	"group": "lp", /* unusual distro */
}
`
		test.That(t, os.WriteFile(path, []byte(jsonBytes), 0o600), test.ShouldBeNil)

		cfg, err := LoadConfig(path)
		test.That(t, err, test.ShouldBeNil)

		expected := DefaultConfig()
		expected.DeviceAddress = "80:F5:B5:7F:99:0F"
		expected.DeviceName = "meter"
		expected.ScanTimeout = Timeout(20 * time.Second)
		expected.ScanForDevice = 1
		expected.StartRecheckDelay = Timeout(500 * time.Millisecond)
		expected.Group = "lp"
		test.That(t, cfg, test.ShouldResemble, expected)
	})

	t.Run("invalid values are corrected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bt-doctor.json")
		jsonBytes := `{"probe_timeout": 0, "bluetooth_service": "blue tooth; rm", "mac_address": "nope", "power_on_delay": -1}`
		test.That(t, os.WriteFile(path, []byte(jsonBytes), 0o600), test.ShouldBeNil)

		cfg, err := LoadConfig(path)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "probe_timeout")
		test.That(t, err.Error(), test.ShouldContainSubstring, "mac_address")
		test.That(t, cfg.ProbeTimeout, test.ShouldEqual, DefaultConfiguration.ProbeTimeout)
		test.That(t, cfg.BluetoothService, test.ShouldEqual, "bluetooth")
		test.That(t, cfg.DeviceAddress, test.ShouldEqual, "")
		test.That(t, cfg.PowerOnDelay, test.ShouldEqual, DefaultConfiguration.PowerOnDelay)
	})

	t.Run("unparseable file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bt-doctor.json")
		test.That(t, os.WriteFile(path, []byte(`{"group": `), 0o600), test.ShouldBeNil)

		cfg, err := LoadConfig(path)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, cfg, test.ShouldResemble, DefaultConfig())
	})
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := ApplyOverrides(DefaultConfig(), "alice", "aa:bb:cc:dd:ee:ff", true)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.User, test.ShouldEqual, "alice")
	test.That(t, cfg.DeviceAddress, test.ShouldEqual, "AA:BB:CC:DD:EE:FF")
	test.That(t, cfg.ScanForDevice.Get(), test.ShouldBeTrue)

	cfg, err = ApplyOverrides(cfg, "", "", false)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.User, test.ShouldEqual, "alice")
	test.That(t, cfg.ScanForDevice.Get(), test.ShouldBeTrue)
}

func TestTimeoutUnmarshal(t *testing.T) {
	var tm Timeout
	test.That(t, tm.UnmarshalJSON([]byte(`1.5`)), test.ShouldBeNil)
	test.That(t, time.Duration(tm), test.ShouldEqual, 1500*time.Millisecond)
	test.That(t, tm.UnmarshalJSON([]byte(`"3m"`)), test.ShouldBeNil)
	test.That(t, time.Duration(tm), test.ShouldEqual, 3*time.Minute)
	test.That(t, tm.UnmarshalJSON([]byte(`true`)), test.ShouldNotBeNil)
}
