// Package bluez inspects the BlueZ stack: bluetoothctl output, the daemon's main.conf,
// the adapter object on the system bus, and live BLE advertisements.
package bluez

import (
	"bufio"
	"regexp"
	"strings"
	"time"

	semver "github.com/Masterminds/semver/v3"
	errw "github.com/pkg/errors"
	"github.com/viamrobotics/btdoctor/utils"
)

// MinimumVersion is the oldest bluetoothd known to work well with LE tooling.
var MinimumVersion = semver.MustParse("5.50")

var versionRegex = regexp.MustCompile(`([0-9]+\.[0-9]+(?:\.[0-9]+)?)`)

// ParseProperties returns the "Key: value" pairs printed by `bluetoothctl show` and
// `bluetoothctl info`. When a key repeats (ex: UUID), the first value wins.
func ParseProperties(output string) map[string]string {
	props := map[string]string{}
	scanner := bufio.NewScanner(strings.NewReader(utils.StripAnsi(output)))
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ": ")
		if !ok {
			continue
		}
		// drop prompts and event prefixes such as "[CHG] Controller 00:1A:7D:DA:71:13 Powered"
		fields := strings.Fields(key)
		if len(fields) == 0 {
			continue
		}
		key = fields[len(fields)-1]
		if _, exists := props[key]; !exists {
			props[key] = strings.TrimSpace(value)
		}
	}
	return props
}

// Powered reports the adapter power state from `bluetoothctl show` output. The second
// value is false when no Powered line was printed at all (ex: no controller).
func Powered(output string) (bool, bool) {
	value, ok := ParseProperties(output)["Powered"]
	if !ok {
		return false, false
	}
	return value == "yes", true
}

// NoController reports whether bluetoothctl complained that there is no adapter.
func NoController(output string) bool {
	return strings.Contains(output, "No default controller available")
}

// ParseVersion extracts the version from `bluetoothctl --version` (ex: "bluetoothctl: 5.66").
func ParseVersion(output string) (*semver.Version, error) {
	matches := versionRegex.FindStringSubmatch(output)
	if len(matches) != 2 {
		return nil, errw.Errorf("cannot parse output (%s) returned from 'bluetoothctl --version'", strings.TrimSpace(output))
	}
	sv, err := semver.NewVersion(matches[1])
	if err != nil {
		return nil, errw.Wrapf(err, "parsing bluetoothctl version %s", matches[1])
	}
	return sv, nil
}

// PairingStatus is the subset of `bluetoothctl info <addr>` the BLE listener cares about.
type PairingStatus struct {
	Known     bool
	Paired    bool
	Trusted   bool
	Connected bool
}

// ParsePairingStatus reads `bluetoothctl info <addr>` output.
func ParsePairingStatus(output string) PairingStatus {
	if strings.Contains(output, "not available") {
		return PairingStatus{}
	}
	props := ParseProperties(output)
	if len(props) == 0 {
		return PairingStatus{}
	}
	return PairingStatus{
		Known:     true,
		Paired:    props["Paired"] == "yes",
		Trusted:   props["Trusted"] == "yes",
		Connected: props["Connected"] == "yes",
	}
}

// ShowCmd is `bluetoothctl show`.
func ShowCmd() utils.Command {
	return utils.Command{Name: "bluetoothctl", Args: []string{"show"}}
}

// PowerOnCmd is `bluetoothctl power on`. bluetoothctl talks to bluetoothd over the bus, so no sudo.
func PowerOnCmd() utils.Command {
	return utils.Command{Name: "bluetoothctl", Args: []string{"power", "on"}}
}

// VersionCmd is `bluetoothctl --version`.
func VersionCmd() utils.Command {
	return utils.Command{Name: "bluetoothctl", Args: []string{"--version"}}
}

// ListCmd is `bluetoothctl list`, bounded by timeout so an unresponsive bus can't hang the run.
func ListCmd(timeout time.Duration) utils.Command {
	return utils.Command{Name: "bluetoothctl", Args: []string{"list"}, Timeout: timeout}
}

// InfoCmd is `bluetoothctl info <address>`.
func InfoCmd(address string, timeout time.Duration) utils.Command {
	return utils.Command{Name: "bluetoothctl", Args: []string{"info", address}, Timeout: timeout}
}
