package utils

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"time"

	errw "github.com/pkg/errors"
	"github.com/tidwall/jsonc"
)

var (
	DefaultConfiguration = Config{
		BluetoothService:  "bluetooth",
		BusService:        "dbus",
		Group:             "bluetooth",
		User:              "",
		Adapter:           "hci0",
		StartRecheckDelay: Timeout(time.Second * 2),
		PowerOnDelay:      Timeout(time.Second),
		ProbeTimeout:      Timeout(time.Second * 5),
		DeviceAddress:     "",
		DeviceName:        "",
		ScanTimeout:       Timeout(time.Second * 10),
		ScanForDevice:     Tribool(0),
		MainConfPath:      "/etc/bluetooth/main.conf",
	}

	// Can be overwritten via cli arguments.
	ConfigFilePath = "/etc/bt-doctor.json"

	macRegex  = regexp.MustCompile(`^([0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$`)
	unitRegex = regexp.MustCompile(`^[A-Za-z0-9@._:-]+$`)
)

//nolint:recvcheck
type Tribool int

func (b Tribool) Get() bool {
	return b > 0
}

func (b Tribool) MarshalJSON() ([]byte, error) {
	if b == 1 {
		return []byte("true"), nil
	}
	return []byte("false"), nil
}

func (b *Tribool) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*b = 1
	case "false":
		*b = -1
	default:
		*b = 0
	}
	return nil
}

// Config holds the names and delays used by the checks. Every field has a working default,
// so the config file is optional.
type Config struct {
	// systemd units
	BluetoothService string `json:"bluetooth_service,omitempty"`
	BusService       string `json:"bus_service,omitempty"`

	// Group the invoking user must belong to for non-root bluetoothctl access.
	Group string `json:"group,omitempty"`
	// Empty means $SUDO_USER, then the current user.
	User string `json:"user,omitempty"`

	// Adapter queried over the system bus, ex: "hci0"
	Adapter string `json:"adapter,omitempty"`

	// Wait after starting the bluetooth service before the single re-check.
	StartRecheckDelay Timeout `json:"start_recheck_delay,omitempty"`
	// Wait after powering on the adapter.
	PowerOnDelay Timeout `json:"power_on_delay,omitempty"`
	// Bound on the bluetoothctl accessibility probe and the system bus probe.
	ProbeTimeout Timeout `json:"probe_timeout,omitempty"`

	// Optional device to report pairing status for, ex: "80:F5:B5:7F:99:0F"
	DeviceAddress string `json:"mac_address,omitempty"`
	// Matched as a case-insensitive substring of advertised names when scanning.
	DeviceName    string  `json:"device_name,omitempty"`
	ScanTimeout   Timeout `json:"scan_timeout,omitempty"`
	ScanForDevice Tribool `json:"scan_for_device,omitempty"`

	MainConfPath string `json:"main_conf_path,omitempty"`
}

func DefaultConfig() Config {
	cfg := Config{}
	// round-trip to get a deep copy of the default config
	defBytes, err := json.Marshal(DefaultConfiguration)
	if err != nil {
		panic(err)
	}
	err = json.Unmarshal(defBytes, &cfg)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadConfig reads the JSONC config file at path and merges it over the defaults.
// A missing file is not an error. On any error, the returned config is still usable.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	//nolint:gosec
	jsonBytes, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, errw.Wrapf(err, "reading %s", path)
	}

	fileCfg := cfg
	if err := json.Unmarshal(jsonc.ToJSON(jsonBytes), &fileCfg); err != nil {
		return cfg, errw.Wrapf(err, "parsing %s", path)
	}

	return validateConfig(fileCfg)
}

// validateConfig enforces sane values, returning a "corrected" config and error(s) for each issue encountered.
func validateConfig(cfg Config) (Config, error) {
	var errOut error
	def := DefaultConfiguration

	if !unitRegex.MatchString(cfg.BluetoothService) {
		errOut = errors.Join(errOut, errw.Errorf("invalid systemd unit name %q for bluetooth_service", cfg.BluetoothService))
		cfg.BluetoothService = def.BluetoothService
	}
	if !unitRegex.MatchString(cfg.BusService) {
		errOut = errors.Join(errOut, errw.Errorf("invalid systemd unit name %q for bus_service", cfg.BusService))
		cfg.BusService = def.BusService
	}

	if strings.TrimSpace(cfg.Group) == "" {
		cfg.Group = def.Group
	}
	if strings.TrimSpace(cfg.Adapter) == "" {
		cfg.Adapter = def.Adapter
	}
	if cfg.MainConfPath == "" {
		cfg.MainConfPath = def.MainConfPath
	}

	if time.Duration(cfg.StartRecheckDelay) < 0 {
		errOut = errors.Join(errOut, errw.Errorf("start_recheck_delay must be >= 0 (was: %s)", time.Duration(cfg.StartRecheckDelay)))
		cfg.StartRecheckDelay = def.StartRecheckDelay
	}
	if time.Duration(cfg.PowerOnDelay) < 0 {
		errOut = errors.Join(errOut, errw.Errorf("power_on_delay must be >= 0 (was: %s)", time.Duration(cfg.PowerOnDelay)))
		cfg.PowerOnDelay = def.PowerOnDelay
	}
	// an unbounded probe defeats its purpose
	if time.Duration(cfg.ProbeTimeout) <= 0 {
		errOut = errors.Join(errOut, errw.Errorf("probe_timeout must be > 0 (was: %s)", time.Duration(cfg.ProbeTimeout)))
		cfg.ProbeTimeout = def.ProbeTimeout
	}
	if time.Duration(cfg.ScanTimeout) <= 0 {
		errOut = errors.Join(errOut, errw.Errorf("scan_timeout must be > 0 (was: %s)", time.Duration(cfg.ScanTimeout)))
		cfg.ScanTimeout = def.ScanTimeout
	}

	if cfg.DeviceAddress != "" && !macRegex.MatchString(cfg.DeviceAddress) {
		errOut = errors.Join(errOut, errw.Errorf("mac_address %q is not a bluetooth address", cfg.DeviceAddress))
		cfg.DeviceAddress = ""
	}
	cfg.DeviceAddress = strings.ToUpper(cfg.DeviceAddress)

	return cfg, errOut
}

// ApplyOverrides merges command line values over cfg. Empty values are ignored.
func ApplyOverrides(cfg Config, user, device string, scan bool) (Config, error) {
	if user != "" {
		cfg.User = user
	}
	if device != "" {
		cfg.DeviceAddress = device
	}
	if scan {
		cfg.ScanForDevice = 1
	}
	return validateConfig(cfg)
}

// Timeout is a duration that unmarshals from either a number of seconds or a duration string.
type Timeout time.Duration

func (t Timeout) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(t).String())
}

func (t *Timeout) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		*t = Timeout(value * float64(time.Second))
		return nil
	case string:
		tmp, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		*t = Timeout(tmp)
		return nil
	default:
		return errw.Errorf("invalid duration: %#v", v)
	}
}
