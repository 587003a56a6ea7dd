package bluez

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	dbus "github.com/godbus/dbus/v5"
	errw "github.com/pkg/errors"
	"github.com/viamrobotics/btdoctor/utils"
)

const (
	BluezDBusService = "org.bluez"
	BluezAdapter     = "org.bluez.Adapter1"
	dbusProperties   = "org.freedesktop.DBus.Properties"
)

// AdapterProbe reads the adapter's properties straight off the system bus, bypassing bluetoothctl.
// Its output uses the same "Key: value" layout as `bluetoothctl show`.
type AdapterProbe struct {
	Adapter string
	Timeout time.Duration
}

func (p AdapterProbe) path() dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + p.Adapter)
}

// Describe implements utils.Probe.
func (p AdapterProbe) Describe() string {
	return fmt.Sprintf("%s %s on the system bus", BluezAdapter, p.path())
}

// Inspect implements utils.Probe.
func (p AdapterProbe) Inspect(ctx context.Context, _ utils.Executor) (string, error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return "", errw.Wrap(err, "failed to connect to system DBus")
	}
	//nolint:errcheck
	defer conn.Close()

	adapter := conn.Object(BluezDBusService, p.path())
	props := map[string]dbus.Variant{}
	err = adapter.CallWithContext(ctx, dbusProperties+".GetAll", 0, BluezAdapter).Store(&props)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", errw.Wrapf(utils.ErrTimedOut, "querying %s after %s", p.path(), p.Timeout)
		}
		dErr := dbus.Error{}
		if errors.As(err, &dErr) {
			switch dErr.Name {
			case "org.freedesktop.DBus.Error.UnknownObject", "org.freedesktop.DBus.Error.UnknownMethod":
				return "", errw.Errorf("bluetooth adapter %s does not exist", p.path())
			case "org.freedesktop.DBus.Error.ServiceUnknown":
				return "", errw.Errorf("%s is not on the system bus (bluetoothd not running?)", BluezDBusService)
			}
		}
		return "", errw.Wrap(err, "getting bluetooth adapter properties")
	}
	return formatProperties(props), nil
}

func formatProperties(props map[string]dbus.Variant) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		switch v := props[k].Value().(type) {
		case bool:
			fmt.Fprintf(&sb, "%s: %s\n", k, yesNo(v))
		case string:
			fmt.Fprintf(&sb, "%s: %s\n", k, v)
		case uint32:
			fmt.Fprintf(&sb, "%s: 0x%08x\n", k, v)
		}
	}
	return sb.String()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
