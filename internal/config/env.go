package config

import (
	"errors"
	"os"
	"strconv"
)

// envOverrides maps environment variables to config field setters.
// GOAD_PROVIDER is handled by ResolveProvider so its source can be reported.
var envOverrides = []struct {
	envVar string
	apply  func(*Config, string) error
}{
	{
		envVar: "GOAD_INVENTORY",
		apply: func(c *Config, v string) error {
			c.Inventory = v
			return nil
		},
	},
	{
		envVar: "GOAD_LOG_DIR",
		apply: func(c *Config, v string) error {
			c.LogDir = v
			return nil
		},
	},
	{
		envVar: "GOAD_LOG_LEVEL",
		apply: func(c *Config, v string) error {
			c.LogLevel = v
			return nil
		},
	},
	{
		envVar: "GOAD_CONCURRENCY",
		apply: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return &ValidationError{Field: "concurrency", Value: v, Message: "GOAD_CONCURRENCY must be an integer"}
			}
			c.Concurrency = n
			return nil
		},
	},
	{
		envVar: "GOAD_SSH_USER",
		apply: func(c *Config, v string) error {
			c.SSH.User = v
			return nil
		},
	},
	{
		envVar: "GOAD_SSH_PASSWORD",
		apply: func(c *Config, v string) error {
			c.SSH.Password = v
			return nil
		},
	},
	{
		envVar: "GOAD_SSH_KEY",
		apply: func(c *Config, v string) error {
			c.SSH.KeyFile = v
			return nil
		},
	},
	{
		envVar: "GOAD_SSH_JUMP",
		apply: func(c *Config, v string) error {
			c.SSH.Jump = v
			return nil
		},
	},
}

// applyEnvOverrides modifies config in place with environment variable values.
// Malformed values are reported together.
func applyEnvOverrides(cfg *Config) error {
	var errs []error
	for _, override := range envOverrides {
		if val := os.Getenv(override.envVar); val != "" {
			if err := override.apply(cfg, val); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
