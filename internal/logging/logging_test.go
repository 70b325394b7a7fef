package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected LogLevel
	}{
		{name: "debug", value: "debug", expected: LevelDebug},
		{name: "info", value: "info", expected: LevelInfo},
		{name: "warn", value: "warn", expected: LevelWarn},
		{name: "warning alias", value: "warning", expected: LevelWarn},
		{name: "error", value: "error", expected: LevelError},
		{name: "case insensitive", value: "DEBUG", expected: LevelDebug},
		{name: "surrounding spaces", value: "  error ", expected: LevelError},
		{name: "empty defaults to info", value: "", expected: LevelInfo},
		{name: "unknown defaults to info", value: "verbose", expected: LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.value); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestLogLevelConstants(t *testing.T) {
	if LevelDebug >= LevelInfo {
		t.Error("LevelDebug should be less than LevelInfo")
	}
	if LevelInfo >= LevelWarn {
		t.Error("LevelInfo should be less than LevelWarn")
	}
	if LevelWarn >= LevelError {
		t.Error("LevelWarn should be less than LevelError")
	}
}

func TestLogLevelString(t *testing.T) {
	tests := map[LogLevel]string{
		LevelDebug:   "debug",
		LevelInfo:    "info",
		LevelWarn:    "warn",
		LevelError:   "error",
		LogLevel(42): "unknown(42)",
	}
	for level, want := range tests {
		if got := level.String(); got != want {
			t.Errorf("LogLevel(%d).String() = %q, want %q", int(level), got, want)
		}
	}
}

func captureLog(t *testing.T, fn func()) string {
	t.Helper()
	var buf bytes.Buffer
	prevOut := log.Writer()
	prevFlags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(prevOut)
		log.SetFlags(prevFlags)
	}()
	fn()
	return buf.String()
}

func TestComponentLoggerPrefix(t *testing.T) {
	prev := GetLevel()
	SetLevel(LevelDebug)
	defer SetLevel(prev)

	out := captureLog(t, func() {
		For("watcher").Info("watching %s", "C:\\Media")
	})

	if !strings.Contains(out, "[INFO] [watcher] watching C:\\Media") {
		t.Errorf("unexpected log line: %q", out)
	}
}

func TestLevelFiltering(t *testing.T) {
	prev := GetLevel()
	SetLevel(LevelWarn)
	defer SetLevel(prev)

	out := captureLog(t, func() {
		Debug("hidden debug")
		Info("hidden info")
		Warn("shown warn")
		For("db").Error("shown error")
	})

	if strings.Contains(out, "hidden") {
		t.Errorf("messages below the level were logged: %q", out)
	}
	if !strings.Contains(out, "[WARN] shown warn") {
		t.Errorf("warn message missing: %q", out)
	}
	if !strings.Contains(out, "[ERROR] [db] shown error") {
		t.Errorf("component error message missing: %q", out)
	}
}

func TestIsDebugEnabled(t *testing.T) {
	prev := GetLevel()
	defer SetLevel(prev)

	SetLevel(LevelDebug)
	if !IsDebugEnabled() {
		t.Error("IsDebugEnabled() = false at debug level")
	}
	SetLevel(LevelInfo)
	if IsDebugEnabled() {
		t.Error("IsDebugEnabled() = true at info level")
	}
}
