package shared

import (
	"bytes"
	"testing"
	"time"

	"github.com/charmbracelet/log"
)

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want string
	}{
		{0, "0:00"},
		{42 * time.Second, "0:42"},
		{3*time.Minute + 5*time.Second, "3:05"},
		{59*time.Minute + 59*time.Second, "59:59"},
		{time.Hour, "1:00:00"},
		{90*time.Minute + 7*time.Second, "1:30:07"},
		{3*time.Minute + 4*time.Second + 700*time.Millisecond, "3:05"},
	}

	for _, c := range cases {
		if got := FormatDuration(c.in); got != c.want {
			t.Errorf("FormatDuration(%s) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestGenerateID(t *testing.T) {
	a, b := GenerateID(), GenerateID()
	if len(a) != 36 {
		t.Errorf("expected uuid length 36, got %d (%q)", len(a), a)
	}
	if a == b {
		t.Error("expected distinct IDs")
	}
}

func TestVisibilityString(t *testing.T) {
	if VisibilityString(true) != "Public" || VisibilityString(false) != "Private" {
		t.Error("unexpected visibility strings")
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("writes to the given writer", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		logger.Info("hello")
		if !bytes.Contains(buf.Bytes(), []byte("hello")) {
			t.Errorf("expected log output, got %q", buf.String())
		}
	})

	t.Run("nil writer defaults without panicking", func(t *testing.T) {
		logger := NewLogger(nil)
		if logger == nil {
			t.Fatal("expected a logger")
		}
	})

	t.Run("with adds fields to entries", func(t *testing.T) {
		var buf bytes.Buffer
		logger := WithLogger(NewLogger(&buf), "service", "spotify")
		logger.Info("request")
		if !bytes.Contains(buf.Bytes(), []byte("service")) {
			t.Errorf("expected service field, got %q", buf.String())
		}
	})

	t.Run("level filters entries", func(t *testing.T) {
		var buf bytes.Buffer
		logger := NewLogger(&buf)
		SetLogLevel(logger, log.ErrorLevel)
		logger.Info("hidden")
		if buf.Len() != 0 {
			t.Errorf("expected info suppressed, got %q", buf.String())
		}
	})
}

func TestNewFileLogger(t *testing.T) {
	path := t.TempDir() + "/logs/app.log"
	logger, err := NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create file logger: %v", err)
	}
	logger.Info("to disk")

	// a second logger appends to the same file
	if _, err := NewFileLogger(path); err != nil {
		t.Errorf("expected reopening to succeed, got %v", err)
	}
}
