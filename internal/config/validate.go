package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/cyberbalsa/gci-goad/internal/logging"
)

// ValidationError contains details about what failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config.%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// validateConfig checks all config values for validity.
// Returns nil if valid, or joined errors for all validation failures.
func validateConfig(cfg *Config) error {
	var errs []error
	add := func(field string, value any, msg string) {
		errs = append(errs, &ValidationError{Field: field, Value: value, Message: msg})
	}

	if cfg.Inventory == "" {
		add("inventory", cfg.Inventory, "must not be empty")
	}
	if cfg.InventoryGroup == "" {
		add("inventory_group", cfg.InventoryGroup, "must not be empty")
	}
	if cfg.LogDir == "" {
		add("log_dir", cfg.LogDir, "must not be empty")
	}
	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		add("log_level", cfg.LogLevel, "must be debug, info, warn, or error")
	}
	if !cfg.Provider.Valid() {
		add("provider", cfg.Provider, "must be proxmox, vmware, azure, or aws")
	}

	if cfg.Concurrency < 1 {
		add("concurrency", cfg.Concurrency, "must be at least 1")
	}
	if cfg.MaxAttempts < 1 {
		add("max_attempts", cfg.MaxAttempts, "must be at least 1")
	}

	validatePositive := func(field, value string) {
		d, err := time.ParseDuration(value)
		if err != nil {
			add(field, value, "must be a valid duration")
			return
		}
		if d <= 0 {
			add(field, value, "must be positive")
		}
	}
	validateNonNegative := func(field, value string) {
		d, err := time.ParseDuration(value)
		if err != nil {
			add(field, value, "must be a valid duration")
			return
		}
		if d < 0 {
			add(field, value, "must not be negative")
		}
	}
	validatePositive("attempt_timeout", cfg.AttemptTimeout)
	validateNonNegative("retry_delay", cfg.RetryDelay)
	validateNonNegative("launch_stagger", cfg.LaunchStagger)

	if cfg.Command == "" {
		add("command", cfg.Command, "must not be empty")
	}

	switch cfg.SSH.Transport {
	case TransportNative, TransportOpenSSH:
	default:
		add("ssh.transport", cfg.SSH.Transport, "must be native or openssh")
	}
	if cfg.SSH.Port < 1 || cfg.SSH.Port > 65535 {
		add("ssh.port", cfg.SSH.Port, "must be between 1 and 65535")
	}
	if cfg.SSH.DialTimeout != "" {
		validatePositive("ssh.dial_timeout", cfg.SSH.DialTimeout)
	}

	seen := make(map[string]bool)
	for i, sc := range cfg.Stages {
		prefix := fmt.Sprintf("stages[%d]", i)
		if sc.Name == "" {
			add(prefix+".name", sc.Name, "must not be empty")
		} else if seen[sc.Name] {
			add(prefix+".name", sc.Name, "must be unique")
		}
		seen[sc.Name] = true

		if sc.Command == "" && len(sc.Args) == 0 {
			add(prefix+".command", sc.Command, "command or args must be set")
		}
		if !sc.Policy.Valid() {
			add(prefix+".policy", sc.Policy, "must be critical or best_effort")
		}
		validatePositive(prefix+".timeout", sc.Timeout)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Validate re-checks a config after command-line overrides have been applied
func (c *Config) Validate() error {
	c.normalize()
	return validateConfig(c)
}
