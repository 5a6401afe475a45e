package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-shellwords"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/cyberbalsa/gci-goad/internal/stage"
)

// DefaultConfigFile is looked up in the working directory when --config is not given
const DefaultConfigFile = ".goad-deploy.yaml"

// ProviderType is the GOAD infrastructure provider passed to the remote job
type ProviderType string

const (
	ProviderProxmox ProviderType = "proxmox"
	ProviderVMware  ProviderType = "vmware"
	ProviderAzure   ProviderType = "azure"
	ProviderAWS     ProviderType = "aws"
)

// Providers lists the accepted provider values in display order
var Providers = []ProviderType{ProviderProxmox, ProviderVMware, ProviderAzure, ProviderAWS}

// Valid reports whether p is a known provider
func (p ProviderType) Valid() bool {
	for _, known := range Providers {
		if p == known {
			return true
		}
	}
	return false
}

// Transport selects how remote jobs reach a target.
type Transport string

const (
	// TransportNative dials targets in-process with golang.org/x/crypto/ssh
	TransportNative Transport = "native"

	// TransportOpenSSH shells out to the ssh client (and sshpass for passwords)
	TransportOpenSSH Transport = "openssh"
)

// Config holds all goad-deploy configuration
type Config struct {
	// Inventory is the path to the inventory file (INI or YAML)
	Inventory string `yaml:"inventory"`

	// InventoryGroup is the INI section that lists deployment targets
	InventoryGroup string `yaml:"inventory_group"`

	// LogDir receives the run log, stage logs and per-target logs
	LogDir string `yaml:"log_dir"`

	LogLevel string       `yaml:"log_level"`
	Provider ProviderType `yaml:"provider"`

	// Concurrency is the maximum number of targets in flight at once
	Concurrency int `yaml:"concurrency"`

	// MaxAttempts is the total number of attempts per target, including the first
	MaxAttempts int `yaml:"max_attempts"`

	// Durations use Go syntax: "2h", "10s", "100ms"
	AttemptTimeout string `yaml:"attempt_timeout"`
	RetryDelay     string `yaml:"retry_delay"`
	LaunchStagger  string `yaml:"launch_stagger"`

	// Command is the remote job template. {provider}, {name}, {address}
	// and {group} are expanded per target.
	Command string `yaml:"command"`

	// HistoryDB is the SQLite file recording past runs. Defaults to
	// history.db inside LogDir.
	HistoryDB string `yaml:"history_db"`

	SSH    SSHConfig     `yaml:"ssh"`
	Stages []StageConfig `yaml:"stages"`
}

// SSHConfig holds settings for reaching targets
type SSHConfig struct {
	Transport Transport `yaml:"transport"`
	User      string    `yaml:"user"`

	// Password is normally supplied through GOAD_SSH_PASSWORD rather than the file
	Password string `yaml:"password,omitempty"`

	KeyFile  string `yaml:"key_file"`
	UseAgent bool   `yaml:"use_agent"`
	Port     int    `yaml:"port"`

	// Jump is an optional bastion as [user@]host[:port]
	Jump string `yaml:"jump"`

	StrictHostKey bool   `yaml:"strict_host_key"`
	KnownHosts    string `yaml:"known_hosts"`
	DialTimeout   string `yaml:"dial_timeout"`

	// ExtraOptions are appended to the ssh command line (openssh transport only)
	ExtraOptions string `yaml:"extra_options"`
}

// StageConfig describes one preparation stage. Command is split with shell
// quoting rules; Args takes precedence when both are set.
type StageConfig struct {
	Name    string       `yaml:"name"`
	Command string       `yaml:"command,omitempty"`
	Args    []string     `yaml:"args,omitempty"`
	Workdir string       `yaml:"workdir,omitempty"`
	Timeout string       `yaml:"timeout"`
	Policy  stage.Policy `yaml:"policy"`
}

// LoadConfig builds the configuration in layers: defaults, then the YAML
// file, then .env, then GOAD_* environment variables. A missing file is not
// an error unless it was named explicitly.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand config path: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}
	cfg.normalize()

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadDotEnv loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) expandPaths() error {
	for _, p := range []*string{&c.Inventory, &c.LogDir, &c.HistoryDB, &c.SSH.KeyFile, &c.SSH.KnownHosts} {
		expanded, err := homedir.Expand(*p)
		if err != nil {
			return fmt.Errorf("expand %q: %w", *p, err)
		}
		*p = expanded
	}
	for i := range c.Stages {
		expanded, err := homedir.Expand(c.Stages[i].Workdir)
		if err != nil {
			return fmt.Errorf("expand %q: %w", c.Stages[i].Workdir, err)
		}
		c.Stages[i].Workdir = expanded
	}
	return nil
}

// normalize fixes up values that have a single sensible interpretation.
// Zero attempts means "try once"; provider names are case-insensitive.
func (c *Config) normalize() {
	c.Provider = ProviderType(strings.ToLower(strings.TrimSpace(string(c.Provider))))
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 1
	}
	for i := range c.Stages {
		if c.Stages[i].Policy == "" {
			c.Stages[i].Policy = stage.PolicyCritical
		}
	}
}

// HistoryPath returns the run history database location
func (c *Config) HistoryPath() string {
	if c.HistoryDB != "" {
		return c.HistoryDB
	}
	return filepath.Join(c.LogDir, "history.db")
}

// AttemptTimeoutDuration returns the parsed per-attempt timeout
func (c *Config) AttemptTimeoutDuration() time.Duration {
	return mustDuration(c.AttemptTimeout)
}

// RetryDelayDuration returns the parsed delay between attempts
func (c *Config) RetryDelayDuration() time.Duration {
	return mustDuration(c.RetryDelay)
}

// LaunchStaggerDuration returns the parsed delay between target launches
func (c *Config) LaunchStaggerDuration() time.Duration {
	return mustDuration(c.LaunchStagger)
}

// DialTimeoutDuration returns the parsed SSH connect timeout
func (c *SSHConfig) DialTimeoutDuration() time.Duration {
	return mustDuration(c.DialTimeout)
}

// StagePlan converts the configured stages into runnable stages.
func (c *Config) StagePlan() ([]stage.Stage, error) {
	out := make([]stage.Stage, 0, len(c.Stages))
	for _, sc := range c.Stages {
		s, err := sc.Stage()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Stage converts one stage config into a runnable stage
func (sc StageConfig) Stage() (stage.Stage, error) {
	args := sc.Args
	if len(args) == 0 {
		parsed, err := shellwords.Parse(sc.Command)
		if err != nil {
			return stage.Stage{}, fmt.Errorf("stage %s: parse command: %w", sc.Name, err)
		}
		args = parsed
	}
	if len(args) == 0 {
		return stage.Stage{}, fmt.Errorf("stage %s: empty command", sc.Name)
	}
	return stage.Stage{
		Name:    sc.Name,
		Workdir: sc.Workdir,
		Args:    args,
		Timeout: mustDuration(sc.Timeout),
		Policy:  sc.Policy,
	}, nil
}

// mustDuration parses a duration that validateConfig already accepted.
// Empty and malformed values yield zero.
func mustDuration(s string) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
