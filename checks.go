package btdoctor

import (
	"fmt"
	"strings"
	"time"

	"github.com/viamrobotics/btdoctor/internal/bluez"
	"github.com/viamrobotics/btdoctor/internal/rfkill"
	"github.com/viamrobotics/btdoctor/utils"
	"github.com/viamrobotics/btdoctor/utils/systemd"
)

// names of the default checks, in run order.
const (
	CheckBluetoothService = "bluetooth-service"
	CheckAdapterPower     = "adapter-power"
	CheckGroup            = "group-membership"
	CheckRestart          = "bluetooth-restart"
	CheckBusService       = "dbus-service"
	CheckRFKill           = "rfkill"
	CheckVersion          = "bluetoothctl-version"
	CheckAccess           = "bluetoothctl-access"
	CheckAdapterBus       = "adapter-bus"
	CheckMainConf         = "main-conf"
	CheckPairing          = "device-pairing"
	CheckScan             = "device-scan"
)

const rfkillType = "bluetooth"

// DefaultChecks returns the check table. The first eight always run; the device checks
// are only added when a device address is configured.
func DefaultChecks(cfg utils.Config, user string) []Check {
	checks := []Check{
		serviceCheck(CheckBluetoothService, "Bluetooth service", cfg.BluetoothService,
			time.Duration(cfg.StartRecheckDelay), true),
		adapterPowerCheck(time.Duration(cfg.PowerOnDelay)),
		groupCheck(user, cfg.Group),
		restartCheck(cfg.BluetoothService),
		serviceCheck(CheckBusService, "System message bus", cfg.BusService, 0, false),
		rfkillCheck(),
		versionCheck(),
		accessCheck(time.Duration(cfg.ProbeTimeout)),
		adapterBusCheck(cfg.Adapter, time.Duration(cfg.ProbeTimeout)),
		mainConfCheck(cfg.MainConfPath),
	}

	if cfg.DeviceAddress != "" {
		checks = append(checks, pairingCheck(cfg.DeviceAddress, time.Duration(cfg.ProbeTimeout)))
		if cfg.ScanForDevice.Get() {
			checks = append(checks, scanCheck(cfg.DeviceAddress, cfg.DeviceName, time.Duration(cfg.ScanTimeout)))
		}
	}
	return checks
}

func serviceCheck(name, title, unit string, recheckDelay time.Duration, recheck bool) Check {
	start := systemd.StartCmd(unit)
	return Check{
		Name:  name,
		Title: title,
		Probe: systemd.IsActiveCmd(unit),
		Evaluate: func(output string) Finding {
			return Finding{
				Healthy:    systemd.IsActive(output),
				Remediable: true,
				Note:       string(systemd.ParseActiveState(output)),
			}
		},
		Remedy:          &start,
		Settle:          recheckDelay,
		Recheck:         recheck,
		PassMsg:         unit + " is running",
		FailMsg:         unit + " is not running",
		FixedMsg:        unit + " started",
		RemedyFailedMsg: fmt.Sprintf("could not start %s, try: sudo systemctl start %s", unit, unit),
	}
}

func adapterPowerCheck(settle time.Duration) Check {
	powerOn := bluez.PowerOnCmd()
	return Check{
		Name:  CheckAdapterPower,
		Title: "Adapter power",
		Probe: bluez.ShowCmd(),
		Evaluate: func(output string) Finding {
			if bluez.NoController(output) {
				return Finding{Note: "no controller available"}
			}
			powered, found := bluez.Powered(output)
			if !found {
				return Finding{Note: "power state not reported"}
			}
			return Finding{Healthy: powered, Remediable: true}
		},
		Remedy:          &powerOn,
		Settle:          settle,
		PassMsg:         "adapter is powered on",
		FailMsg:         "adapter is not powered",
		FixedMsg:        "power on requested",
		RemedyFailedMsg: "could not power on the adapter",
	}
}

func groupCheck(user, group string) Check {
	add := utils.Command{Name: "usermod", Args: []string{"-aG", group, user}, Escalate: true}
	return Check{
		Name:  CheckGroup,
		Title: fmt.Sprintf("Group membership (%s)", group),
		Probe: utils.Command{Name: "groups", Args: []string{user}},
		Evaluate: Predicate(func(output string) bool {
			return utils.InGroup(output, group)
		}),
		// "groups: 'x': no such user" exits 1, and adding a missing user to a group won't help
		RequireSuccess:  true,
		Remedy:          &add,
		PassMsg:         fmt.Sprintf("%s is in the %s group", user, group),
		FailMsg:         fmt.Sprintf("%s is not in the %s group", user, group),
		FixedMsg:        fmt.Sprintf("added %s to the %s group", user, group),
		RemedyFailedMsg: fmt.Sprintf("could not add %s to the %s group, try: sudo usermod -aG %s %s", user, group, group, user),
		Warning:         "log out and back in (or reboot) for the new group membership to take effect",
	}
}

func restartCheck(unit string) Check {
	restart := systemd.RestartCmd(unit)
	return Check{
		Name:            CheckRestart,
		Title:           "Restart bluetooth service",
		Remedy:          &restart,
		Always:          true,
		PassMsg:         unit + " restarted",
		RemedyFailedMsg: "could not restart " + unit,
	}
}

func rfkillCheck() Check {
	unblock := rfkill.UnblockCmd(rfkillType)
	return Check{
		Name:  CheckRFKill,
		Title: "RF block state",
		Probe: rfkill.ListCmd(rfkillType),
		Evaluate: func(output string) Finding {
			st := rfkill.Summarize(output)
			f := Finding{Healthy: !st.Soft && !st.Hard, Remediable: st.Soft}
			if len(st.Devices) == 0 {
				f.Note = "no bluetooth radios listed"
			}
			if st.Hard {
				f.Note = "hard blocked"
				f.Warning = "the radio is disabled by a hardware switch or BIOS setting, software cannot unblock it"
			}
			if st.Soft {
				f.Note = strings.TrimPrefix(f.Note+", soft blocked", ", ")
				if st.Hard {
					f.Residual = "hard blocked"
				}
			}
			return f
		},
		RequireSuccess:  true,
		Remedy:          &unblock,
		PassMsg:         "not blocked",
		FailMsg:         "blocked",
		FixedMsg:        "soft block cleared",
		RemedyFailedMsg: "could not clear the soft block",
	}
}

func versionCheck() Check {
	return Check{
		Name:     CheckVersion,
		Title:    "bluetoothctl version",
		Probe:    bluez.VersionCmd(),
		InfoOnly: true,
		Evaluate: func(output string) Finding {
			v, err := bluez.ParseVersion(output)
			if err != nil {
				return Finding{Note: strings.TrimSpace(output)}
			}
			f := Finding{Healthy: true, Note: "bluetoothctl " + v.String()}
			if v.LessThan(bluez.MinimumVersion) {
				f.Warning = fmt.Sprintf("BlueZ %s is older than %s, LE support may be unreliable", v, bluez.MinimumVersion)
			}
			return f
		},
	}
}

func accessCheck(timeout time.Duration) Check {
	return Check{
		Name:  CheckAccess,
		Title: "bluetoothctl access",
		Probe: bluez.ListCmd(timeout),
		Evaluate: func(output string) Finding {
			n := strings.Count(utils.StripAnsi(output), "Controller ")
			if n == 0 {
				return Finding{Healthy: true, Note: "no controllers listed"}
			}
			return Finding{Healthy: true, Note: fmt.Sprintf("%d controller(s)", n)}
		},
		RequireSuccess: true,
		PassMsg:        "bluetoothctl responds",
		FailMsg:        "bluetoothctl is not responding",
	}
}

func adapterBusCheck(adapter string, timeout time.Duration) Check {
	return Check{
		Name:     CheckAdapterBus,
		Title:    "Adapter on the system bus",
		Probe:    bluez.AdapterProbe{Adapter: adapter, Timeout: timeout},
		InfoOnly: true,
		MayFail:  true,
		Evaluate: func(output string) Finding {
			props := bluez.ParseProperties(output)
			return Finding{Healthy: true, Note: fmt.Sprintf("%s address %s, powered %s", adapter, props["Address"], props["Powered"])}
		},
	}
}

func mainConfCheck(path string) Check {
	return Check{
		Name:     CheckMainConf,
		Title:    "BlueZ configuration",
		Probe:    bluez.FileProbe{Path: path},
		InfoOnly: true,
		MayFail:  true,
		Evaluate: func(output string) Finding {
			value, ok := bluez.AutoEnable(output)
			switch {
			case !ok:
				return Finding{Healthy: true, Note: "AutoEnable not set, bluetoothd default applies"}
			case value == "true":
				return Finding{Healthy: true, Note: "AutoEnable=true, adapter powers on at boot"}
			default:
				return Finding{
					Note:    "AutoEnable=" + value,
					Warning: fmt.Sprintf("set AutoEnable=true in the [Policy] section of %s to power the adapter at boot", path),
				}
			}
		},
	}
}

func pairingCheck(address string, timeout time.Duration) Check {
	return Check{
		Name:     CheckPairing,
		Title:    "Pairing status of " + address,
		Probe:    bluez.InfoCmd(address, timeout),
		InfoOnly: true,
		MayFail:  true,
		Evaluate: func(output string) Finding {
			st := bluez.ParsePairingStatus(output)
			if !st.Known {
				return Finding{Note: "device not known to bluetoothd", Warning: "pair it with: bluetoothctl pair " + address}
			}
			f := Finding{
				Healthy: st.Paired,
				Note:    fmt.Sprintf("paired %s, trusted %s, connected %s", yesNo(st.Paired), yesNo(st.Trusted), yesNo(st.Connected)),
			}
			if st.Paired && !st.Trusted {
				f.Warning = "trust it for automatic reconnects: bluetoothctl trust " + address
			}
			return f
		},
	}
}

func scanCheck(address, name string, timeout time.Duration) Check {
	return Check{
		Name:     CheckScan,
		Title:    "Advertisement scan",
		Probe:    bluez.ScanProbe{Address: address, Name: name, Timeout: timeout},
		InfoOnly: true,
		MayFail:  true,
		Evaluate: func(output string) Finding {
			if !bluez.Seen(output) {
				return Finding{Note: fmt.Sprintf("not seen within %s (asleep or out of range?)", timeout)}
			}
			props := bluez.ParseProperties(output)
			return Finding{Healthy: true, Note: fmt.Sprintf("seen %s at %s", props["Device"], props["RSSI"])}
		},
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
