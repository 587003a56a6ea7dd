// Package rfkill parses the output of `rfkill list`.
package rfkill

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"

	"github.com/viamrobotics/btdoctor/utils"
)

// Device is one radio reported by `rfkill list`.
type Device struct {
	Index int
	Name  string
	Type  string
	Soft  bool
	Hard  bool
}

// headerRegex matches "0: hci0: Bluetooth".
var headerRegex = regexp.MustCompile(`^(\d+):\s*([^:]+):\s*(.+)$`)

// Parse returns the devices listed in the output of `rfkill list`, in order.
func Parse(output string) []Device {
	var devices []Device
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := headerRegex.FindStringSubmatch(line); m != nil {
			//nolint:errcheck
			idx, _ := strconv.Atoi(m[1])
			devices = append(devices, Device{Index: idx, Name: strings.TrimSpace(m[2]), Type: strings.TrimSpace(m[3])})
			continue
		}
		if len(devices) == 0 {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		blocked := strings.TrimSpace(value) == "yes"
		switch strings.TrimSpace(key) {
		case "Soft blocked":
			devices[len(devices)-1].Soft = blocked
		case "Hard blocked":
			devices[len(devices)-1].Hard = blocked
		}
	}
	return devices
}

// State summarizes the block flags across devices.
type State struct {
	Devices []Device
	Soft    bool
	Hard    bool
}

// Summarize parses output and reports whether any device is soft or hard blocked.
func Summarize(output string) State {
	st := State{Devices: Parse(output)}
	for _, d := range st.Devices {
		st.Soft = st.Soft || d.Soft
		st.Hard = st.Hard || d.Hard
	}
	return st
}

// ListCmd is `rfkill list <type>`.
func ListCmd(radioType string) utils.Command {
	return utils.Command{Name: "rfkill", Args: []string{"list", radioType}}
}

// UnblockCmd is `rfkill unblock <type>`. It clears soft blocks only; nothing clears a hard block.
func UnblockCmd(radioType string) utils.Command {
	return utils.Command{Name: "rfkill", Args: []string{"unblock", radioType}, Escalate: true}
}
