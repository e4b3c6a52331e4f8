package logging

import (
	"os"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewTestLogger returns a new logger that outputs Debug+ logs to stdout.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in
// memory observer for assertions on log output.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	debugEnabled := zap.LevelEnablerFunc(zapcore.DebugLevel.Enabled)
	stdoutCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(NewEncoderConfig()),
		zapcore.Lock(os.Stdout),
		debugEnabled,
	)
	observerCore, observedLogs := observer.New(debugEnabled)
	logger := newCoreLogger(tb.Name(), DEBUG, zapcore.NewTee(stdoutCore, observerCore))
	return logger, observedLogs
}
