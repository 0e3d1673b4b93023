package logger

import (
	"bytes"
	"log"
	"strings"
	"testing"
)

func newBufferLogger(level LogLevel) (*Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLogger(log.New(&buf, "", 0), level), &buf
}

// ===== Level Filtering Tests =====

func TestLevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarning)

	l.Debugf("debug %d", 1)
	l.Infof("info %d", 2)
	l.Warnf("warn %d", 3)
	l.Errorf("error %d", 4)

	out := buf.String()
	if strings.Contains(out, "debug 1") || strings.Contains(out, "info 2") {
		t.Errorf("messages below WARN should be dropped, got %q", out)
	}
	if !strings.Contains(out, "WARN: warn 3") {
		t.Errorf("expected warning line, got %q", out)
	}
	if !strings.Contains(out, "ERROR: error 4") {
		t.Errorf("expected error line, got %q", out)
	}
}

func TestNilLoggerDiscards(t *testing.T) {
	l := NewLogger(nil, LogLevelDebug)
	// Must not panic
	l.Debugf("x")
	l.Infof("y")
	l.WithTag("z").Errorf("w")
}

// ===== Tag Tests =====

func TestWithTagPrefixesMessages(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)

	l.WithTag("PID").Infof("on target")

	if got := strings.TrimSpace(buf.String()); got != "[PID] on target" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestWithTagNests(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)

	l.WithTag("robot").WithTag("drive").Warnf("timeout")

	if got := strings.TrimSpace(buf.String()); got != "[robot/drive] WARN: timeout" {
		t.Errorf("unexpected output %q", got)
	}
}

// ===== ParseLevel Tests =====

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"0", LogLevelNone},
		{"error", LogLevelError},
		{"WARN", LogLevelWarning},
		{"3", LogLevelInfo},
		{" debug ", LogLevelDebug},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil {
			t.Errorf("ParseLevel(%q) returned error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}
