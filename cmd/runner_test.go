package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/cadence/internal/shared"
	tu "github.com/desertthunder/cadence/internal/testing"
)

func TestNewRunner(t *testing.T) {
	t.Run("defaults fill in missing dependencies", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		if runner.config == nil {
			t.Error("expected a default config")
		}
		if runner.configPath != "config.toml" {
			t.Errorf("expected default config path, got %q", runner.configPath)
		}
		if runner.logger == nil || runner.output == nil || runner.httpClient == nil {
			t.Error("expected logger, output, and http client populated")
		}
	})

	t.Run("provided options are kept", func(t *testing.T) {
		var buf bytes.Buffer
		config := shared.DefaultConfig()
		runner := NewRunner(RunnerOpts{Config: config, ConfigPath: "custom.toml", Output: &buf})
		if runner.config != config {
			t.Error("expected provided config")
		}
		if runner.configPath != "custom.toml" {
			t.Errorf("expected custom path, got %q", runner.configPath)
		}
	})

	t.Run("every command registers", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()
		if len(commands) != 6 {
			t.Fatalf("expected 6 commands, got %d", len(commands))
		}

		names := make(map[string]bool)
		for _, command := range commands {
			names[command.Name] = true
		}
		for _, want := range []string{"setup", "auth", "playlists", "scan", "cache", "tui"} {
			if !names[want] {
				t.Errorf("missing command %q", want)
			}
		}
	})
}

func TestRunnerEngine(t *testing.T) {
	t.Run("missing spotify service is a setup error", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		_, err := runner.engine()
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
		if !strings.Contains(err.Error(), "auth") {
			t.Errorf("expected a hint toward the auth command, got %v", err)
		}
	})
}

func TestRunnerOutput(t *testing.T) {
	t.Run("writeJSON compact", func(t *testing.T) {
		var buf bytes.Buffer
		runner := NewRunner(RunnerOpts{Output: &buf})

		if err := runner.writeJSON(map[string]int{"count": 3}, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := buf.String(); got != "{\"count\":3}\n" {
			t.Errorf("unexpected output %q", got)
		}
	})

	t.Run("writeJSON pretty indents", func(t *testing.T) {
		var buf bytes.Buffer
		runner := NewRunner(RunnerOpts{Output: &buf})

		if err := runner.writeJSON(map[string]int{"count": 3}, true); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"count\": 3\n") {
			t.Errorf("expected indented output, got %q", buf.String())
		}
	})

	t.Run("writeJSON surfaces marshal failures", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})
		if err := runner.writeJSON(make(chan int), false); err == nil {
			t.Error("expected marshal error")
		}
	})

	t.Run("write failures propagate", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
		if err := runner.writePlain("hello"); err == nil {
			t.Error("expected write error")
		}
		if err := runner.writeJSON("x", false); err == nil {
			t.Error("expected write error")
		}
	})

	t.Run("writePlainln wraps with newlines", func(t *testing.T) {
		var buf bytes.Buffer
		runner := NewRunner(RunnerOpts{Output: &buf})
		runner.writePlainln("status: %s", "ok")
		if buf.String() != "\nstatus: ok\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
	})
}
