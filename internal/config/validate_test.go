package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/cyberbalsa/gci-goad/internal/stage"
)

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantField string
	}{
		{name: "defaults are valid"},
		{
			name:      "concurrency zero",
			mutate:    func(c *Config) { c.Concurrency = 0 },
			wantField: "concurrency",
		},
		{
			name:      "negative attempts",
			mutate:    func(c *Config) { c.MaxAttempts = -1 },
			wantField: "max_attempts",
		},
		{
			name:      "zero attempt timeout",
			mutate:    func(c *Config) { c.AttemptTimeout = "0s" },
			wantField: "attempt_timeout",
		},
		{
			name:      "negative retry delay",
			mutate:    func(c *Config) { c.RetryDelay = "-1s" },
			wantField: "retry_delay",
		},
		{
			name:      "empty command",
			mutate:    func(c *Config) { c.Command = "" },
			wantField: "command",
		},
		{
			name:      "unknown transport",
			mutate:    func(c *Config) { c.SSH.Transport = "telnet" },
			wantField: "ssh.transport",
		},
		{
			name:      "port out of range",
			mutate:    func(c *Config) { c.SSH.Port = 70000 },
			wantField: "ssh.port",
		},
		{
			name:      "bad log level",
			mutate:    func(c *Config) { c.LogLevel = "chatty" },
			wantField: "log_level",
		},
		{
			name: "duplicate stage",
			mutate: func(c *Config) {
				c.Stages = append(c.Stages, c.Stages[0])
			},
			wantField: "stages[3].name",
		},
		{
			name:      "bad stage policy",
			mutate:    func(c *Config) { c.Stages[0].Policy = stage.Policy("sometimes") },
			wantField: "stages[0].policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}

			err := validateConfig(cfg)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("validateConfig() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error for %s", tt.wantField)
			}
			if !strings.Contains(err.Error(), "config."+tt.wantField+":") {
				t.Errorf("error %q does not mention %s", err, tt.wantField)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("expected *ValidationError in %T", err)
			}
		})
	}
}

func TestValidate_NormalizesAttempts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.MaxAttempts != 1 {
		t.Errorf("MaxAttempts = %d, want 1", cfg.MaxAttempts)
	}
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Field: "concurrency", Value: 0, Message: "must be at least 1"}
	want := "config.concurrency: must be at least 1 (got: 0)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
