package logging

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesFields(t *testing.T) {
	var out bytes.Buffer
	logger := NewLoggerWithOutput(LevelInfo, &out)

	logger.Info("watch added", map[string]string{"path": "/tmp/a", "active_watches": "2"})

	line := out.String()
	if !strings.Contains(line, `level=info msg="watch added"`) {
		t.Fatalf("expected level and message, got %q", line)
	}
	if !strings.Contains(line, `active_watches="2" path="/tmp/a"`) {
		t.Fatalf("expected sorted fields, got %q", line)
	}
}

func TestLoggerFiltersByLevel(t *testing.T) {
	var out bytes.Buffer
	logger := NewLoggerWithOutput(LevelWarning, &out)

	logger.Info("info", nil)
	logger.Warn("warn", nil)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), out.String())
	}
	if !strings.Contains(lines[0], "level=warning") {
		t.Fatalf("expected warning line, got %q", lines[0])
	}
}

func TestLoggerStampsEachLine(t *testing.T) {
	var out bytes.Buffer
	logger := NewLoggerWithOutput(LevelDebug, &out)
	logger.now = func() time.Time {
		return time.Date(2024, 3, 7, 9, 5, 2, 0, time.UTC)
	}

	logger.Debug("event", map[string]string{"path": "/x"})

	expected := "time=2024-03-07T09:05:02Z level=debug msg=\"event\" path=\"/x\"\n"
	if out.String() != expected {
		t.Fatalf("expected %q, got %q", expected, out.String())
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Info("ignored", nil)
	if logger.Enabled(LevelError) {
		t.Fatalf("expected nil logger to be disabled")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		" INFO ":  LevelInfo,
		"warn":    LevelWarning,
		"warning": LevelWarning,
		"error":   LevelError,
	}
	for input, expected := range cases {
		level, ok := ParseLevel(input)
		if !ok || level != expected {
			t.Fatalf("ParseLevel(%q) = %q, %v; want %q", input, level, ok, expected)
		}
	}
	if _, ok := ParseLevel("loud"); ok {
		t.Fatalf("expected unknown level to fail")
	}
}
