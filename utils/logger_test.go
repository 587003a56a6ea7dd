package utils

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"go.viam.com/test"
)

func TestStripAnsiColorCodes(t *testing.T) {
	test.That(t, StripAnsi("\x1b[0;94m[bluetooth]\x1b[0m# "), test.ShouldEqual, "[bluetooth]# ")
	test.That(t, StripAnsi("plain"), test.ShouldEqual, "plain")
}

func TestOutputLogger(t *testing.T) {
	t.Run("debug lines", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		l := NewOutputLogger(zap.New(core).Sugar(), false)

		input := []byte("Failed to set power on: org.bluez.Error.Blocked\n\n  \x1b[1;39mretrying\x1b[0m\n")
		n, err := l.Write(input)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, n, test.ShouldEqual, len(input))

		entries := logs.All()
		test.That(t, len(entries), test.ShouldEqual, 2)
		test.That(t, entries[0].Level, test.ShouldEqual, zapcore.DebugLevel)
		test.That(t, entries[0].ContextMap()["line"], test.ShouldEqual, "Failed to set power on: org.bluez.Error.Blocked")
		test.That(t, entries[1].ContextMap()["line"], test.ShouldEqual, "retrying")
	})

	t.Run("error lines", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		l := NewOutputLogger(zap.New(core).Sugar(), true)

		_, err := l.Write([]byte("usermod: Permission denied.\n"))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, logs.Len(), test.ShouldEqual, 1)
		test.That(t, logs.All()[0].Level, test.ShouldEqual, zapcore.WarnLevel)
	})
}
