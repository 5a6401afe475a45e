package config

import (
	"fmt"

	"github.com/cyberbalsa/gci-goad/internal/stage"
)

// Default values for configuration
const (
	DefaultInventory      = "inventory/hosts"
	DefaultInventoryGroup = "deployment_boxes"
	DefaultLogDir         = "./logs"
	DefaultLogLevel       = "info"
	DefaultProvider       = ProviderProxmox
	DefaultConcurrency    = 10
	DefaultMaxAttempts    = 3
	DefaultAttemptTimeout = "2h"
	DefaultRetryDelay     = "10s"
	DefaultLaunchStagger  = "100ms"
	DefaultSSHPort        = 22
	DefaultSSHDialTimeout = "30s"
	DefaultSSHTransport   = TransportNative

	// DefaultCommand activates the GOAD virtualenv on the deployment box and
	// installs the lab locally against the selected provider.
	DefaultCommand = "cd /opt/goad && source .venv/bin/activate && python3 goad.py -p {provider} -l GOAD -m local"

	// DefaultAnsibleDir is where the preparation playbooks are run from
	DefaultAnsibleDir = "ansible"
)

// DefaultStages returns the preparation stages run before fan-out.
// Host activation and Kali setup are best effort; box preparation must
// succeed before any deployment starts.
func DefaultStages() []StageConfig {
	playbook := func(name, timeout string, policy stage.Policy) StageConfig {
		return StageConfig{
			Name:    name,
			Command: fmt.Sprintf("ansible-playbook -i inventory/hosts playbooks/%s.yml", name),
			Workdir: DefaultAnsibleDir,
			Timeout: timeout,
			Policy:  policy,
		}
	}
	return []StageConfig{
		playbook("activate-windows-hosts", "60m", stage.PolicyBestEffort),
		playbook("prepare-kali-boxes", "30m", stage.PolicyBestEffort),
		playbook("prepare-deployment-boxes", "30m", stage.PolicyCritical),
	}
}

// DefaultConfig returns a Config with all default values applied
func DefaultConfig() *Config {
	return &Config{
		Inventory:      DefaultInventory,
		InventoryGroup: DefaultInventoryGroup,
		LogDir:         DefaultLogDir,
		LogLevel:       DefaultLogLevel,
		Provider:       DefaultProvider,
		Concurrency:    DefaultConcurrency,
		MaxAttempts:    DefaultMaxAttempts,
		AttemptTimeout: DefaultAttemptTimeout,
		RetryDelay:     DefaultRetryDelay,
		LaunchStagger:  DefaultLaunchStagger,
		Command:        DefaultCommand,
		SSH: SSHConfig{
			Transport:   DefaultSSHTransport,
			Port:        DefaultSSHPort,
			UseAgent:    true,
			DialTimeout: DefaultSSHDialTimeout,
		},
		Stages: DefaultStages(),
	}
}
