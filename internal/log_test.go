package internal

import "testing"

func TestParseLogLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"ERROR":   LogLevelError,
		"warn":    LogLevelWarn,
		" info ":  LogLevelInfo,
		"DEBUG":   LogLevelDebug,
		"TRACE":   LogLevelTrace,
		"":        LogLevelInfo,
		"verbose": LogLevelInfo,
	}
	for in, want := range cases {
		if got := ParseLogLevel(in); got != want {
			t.Errorf("ParseLogLevel(%q) = %d, expected %d", in, got, want)
		}
	}
}

func TestNopLoggerDoesNotPanic(t *testing.T) {
	l := NewNopLogger().With("subject", "s1")
	l.Error("error %d", 1)
	l.Warn("warn")
	l.Info("info")
	l.Debug("debug")
	l.Trace("trace")
	if l.GetLevel() != LogLevelError {
		t.Errorf("Expected nop logger level ERROR, got %d", l.GetLevel())
	}
}
