package logging

import (
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

// Level is the level a logger is set to emit at.
type Level int

// Logging levels, lowest to highest.
const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (level Level) String() string {
	switch level {
	case DEBUG:
		return "Debug"
	case INFO:
		return "Info"
	case WARN:
		return "Warn"
	case ERROR:
		return "Error"
	}
	return "unknown"
}

// AsZap converts the Level to its zap equivalent.
func (level Level) AsZap() zapcore.Level {
	switch level {
	case DEBUG:
		return zapcore.DebugLevel
	case INFO:
		return zapcore.InfoLevel
	case WARN:
		return zapcore.WarnLevel
	case ERROR:
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func levelFromZap(level zapcore.Level) Level {
	switch level {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.InfoLevel:
		return INFO
	case zapcore.WarnLevel:
		return WARN
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return ERROR
	case zapcore.InvalidLevel:
		return INFO
	}
	return INFO
}

// LevelFromString parses a level name ("debug", "info", "warn", "error").
func LevelFromString(level string) (Level, error) {
	switch level {
	case "debug", "Debug", "DEBUG":
		return DEBUG, nil
	case "info", "Info", "INFO":
		return INFO, nil
	case "warn", "Warn", "WARN":
		return WARN, nil
	case "error", "Error", "ERROR":
		return ERROR, nil
	}
	return DEBUG, errors.Errorf("unknown log level: %q", level)
}
