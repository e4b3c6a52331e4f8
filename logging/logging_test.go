package logging

import (
	"testing"

	"go.viam.com/test"
)

func TestLoggerLevels(t *testing.T) {
	logger := NewLogger("server")
	test.That(t, logger.GetLevel(), test.ShouldEqual, INFO)

	logger.SetLevel(DEBUG)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)

	sub := logger.Sublogger("signal")
	test.That(t, sub.GetLevel(), test.ShouldEqual, DEBUG)

	// sublogger levels are independent after the fork
	sub.SetLevel(ERROR)
	test.That(t, logger.GetLevel(), test.ShouldEqual, DEBUG)
}

func TestLevelFromString(t *testing.T) {
	for _, tc := range []struct {
		in       string
		expected Level
		ok       bool
	}{
		{"debug", DEBUG, true},
		{"INFO", INFO, true},
		{"Warn", WARN, true},
		{"error", ERROR, true},
		{"verbose", DEBUG, false},
	} {
		t.Run(tc.in, func(t *testing.T) {
			level, err := LevelFromString(tc.in)
			if tc.ok {
				test.That(t, err, test.ShouldBeNil)
				test.That(t, level, test.ShouldEqual, tc.expected)
			} else {
				test.That(t, err, test.ShouldNotBeNil)
			}
		})
	}
}

func TestObservedTestLogger(t *testing.T) {
	logger, observed := NewObservedTestLogger(t)
	logger.Infow("drone connected", "connection_id", "abc123")

	test.That(t, observed.Len(), test.ShouldEqual, 1)
	entry := observed.All()[0]
	test.That(t, entry.Message, test.ShouldEqual, "drone connected")
	test.That(t, entry.ContextMap()["connection_id"], test.ShouldEqual, "abc123")
}
