package bluez

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.viam.com/test"
	"tinygo.org/x/bluetooth"
)

func TestScanProbeMatches(t *testing.T) {
	p := ScanProbe{Address: "80:F5:B5:7F:99:0F", Name: "Meter", Timeout: time.Second}
	test.That(t, p.matches("80:f5:b5:7f:99:0f", ""), test.ShouldBeTrue)
	test.That(t, p.matches("11:22:33:44:55:66", "Accu-Chek meter 1234"), test.ShouldBeTrue)
	test.That(t, p.matches("11:22:33:44:55:66", "headphones"), test.ShouldBeFalse)
	test.That(t, p.matches("11:22:33:44:55:66", ""), test.ShouldBeFalse)

	byAddr := ScanProbe{Address: "80:F5:B5:7F:99:0F"}
	test.That(t, byAddr.matches("11:22:33:44:55:66", "anything"), test.ShouldBeFalse)
	test.That(t, byAddr.Describe(), test.ShouldEqual, "BLE scan for 80:F5:B5:7F:99:0F (0s)")
}

func TestSeen(t *testing.T) {
	test.That(t, Seen("Device: 80:F5:B5:7F:99:0F\nName: meter\nRSSI: -61 dBm\n"), test.ShouldBeTrue)
	test.That(t, Seen(""), test.ShouldBeFalse)
}

// fakeScanner only accepts StopScan once Scan has been running for startDelay, like the
// linux adapter which can't stop a scan it hasn't registered yet.
type fakeScanner struct {
	startDelay time.Duration

	mu       sync.Mutex
	scanning bool
	stop     chan struct{}
	stops    int
	scans    int
}

func newFakeScanner(startDelay time.Duration) *fakeScanner {
	return &fakeScanner{startDelay: startDelay, stop: make(chan struct{})}
}

func (s *fakeScanner) Scan(func(*bluetooth.Adapter, bluetooth.ScanResult)) error {
	s.mu.Lock()
	s.scans++
	s.mu.Unlock()

	time.Sleep(s.startDelay)
	s.mu.Lock()
	s.scanning = true
	s.mu.Unlock()

	<-s.stop
	return nil
}

func (s *fakeScanner) StopScan() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	if !s.scanning {
		return errors.New("cannot stop a scan that has not started")
	}
	s.scanning = false
	close(s.stop)
	return nil
}

func TestScanUntil(t *testing.T) {
	t.Run("deadline passes before the scan starts", func(t *testing.T) {
		s := newFakeScanner(100 * time.Millisecond)
		ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := scanUntil(ctx, s, nil)

		test.That(t, err, test.ShouldBeNil)
		test.That(t, time.Since(start), test.ShouldBeLessThan, 2*time.Second)
		s.mu.Lock()
		defer s.mu.Unlock()
		// the early stops were refused, a later one took
		test.That(t, s.stops, test.ShouldBeGreaterThan, 1)
		test.That(t, s.scanning, test.ShouldBeFalse)
	})

	t.Run("stops when the context ends", func(t *testing.T) {
		s := newFakeScanner(0)
		ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
		defer cancel()

		test.That(t, scanUntil(ctx, s, nil), test.ShouldBeNil)
		s.mu.Lock()
		defer s.mu.Unlock()
		test.That(t, s.scanning, test.ShouldBeFalse)
	})

	t.Run("context already done", func(t *testing.T) {
		s := newFakeScanner(0)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		test.That(t, scanUntil(ctx, s, nil), test.ShouldBeNil)
		s.mu.Lock()
		defer s.mu.Unlock()
		test.That(t, s.scans, test.ShouldEqual, 0)
	})
}
