package bluez

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	errw "github.com/pkg/errors"
	"github.com/viamrobotics/btdoctor/utils"
	"tinygo.org/x/bluetooth"
)

// ScanProbe listens for BLE advertisements until the target device shows up or the timeout passes.
// A device that is asleep won't advertise, so not finding it is informational.
type ScanProbe struct {
	Address string
	// case-insensitive substring of the advertised local name
	Name    string
	Timeout time.Duration
}

// Describe implements utils.Probe.
func (p ScanProbe) Describe() string {
	return fmt.Sprintf("BLE scan for %s (%s)", p.target(), p.Timeout)
}

func (p ScanProbe) target() string {
	if p.Name != "" {
		return fmt.Sprintf("%s / %q", p.Address, p.Name)
	}
	return p.Address
}

func (p ScanProbe) matches(address, localName string) bool {
	if p.Address != "" && strings.EqualFold(address, p.Address) {
		return true
	}
	return p.Name != "" && localName != "" && strings.Contains(strings.ToLower(localName), strings.ToLower(p.Name))
}

// Inspect implements utils.Probe. Output is empty when nothing matched.
func (p ScanProbe) Inspect(ctx context.Context, _ utils.Executor) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return "", errw.Wrap(err, "failed to enable bluetooth adapter")
	}

	var (
		mu    sync.Mutex
		found string
	)
	err := scanUntil(ctx, adapter, func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
		addr := result.Address.String()
		name := result.LocalName()
		if !p.matches(addr, name) {
			return
		}
		mu.Lock()
		if found == "" {
			found = fmt.Sprintf("Device: %s\nName: %s\nRSSI: %d dBm\n", strings.ToUpper(addr), name, result.RSSI)
		}
		mu.Unlock()
		cancel()
	})
	if err != nil {
		return "", errw.Wrap(err, "scanning for bluetooth devices")
	}

	mu.Lock()
	defer mu.Unlock()
	return found, nil
}

type scanner interface {
	Scan(callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error
	StopScan() error
}

// stopRetryInterval is how often StopScan is retried while the scan it should stop hasn't started yet.
const stopRetryInterval = 20 * time.Millisecond

// scanUntil runs s.Scan until ctx ends. StopScan errors until Scan has actually started, so it is
// retried until it takes or Scan returns on its own.
func scanUntil(ctx context.Context, s scanner, callback func(*bluetooth.Adapter, bluetooth.ScanResult)) error {
	if ctx.Err() != nil {
		return nil
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-done:
			return
		case <-ctx.Done():
		}
		ticker := time.NewTicker(stopRetryInterval)
		defer ticker.Stop()
		for s.StopScan() != nil {
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	}()

	err := s.Scan(callback)
	close(done)
	wg.Wait()
	return err
}

// Seen reports whether ScanProbe output contains a matched device.
func Seen(output string) bool {
	_, ok := ParseProperties(output)["Device"]
	return ok
}
