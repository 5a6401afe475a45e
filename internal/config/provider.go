package config

import (
	"fmt"
	"os"
	"strings"
)

// ProviderEnvVar selects the provider when --provider is not given
const ProviderEnvVar = "GOAD_PROVIDER"

// ProviderResolutionContext holds all inputs needed to resolve the provider.
type ProviderResolutionContext struct {
	// CLIProvider from the --provider flag
	CLIProvider string

	// EnvProvider from the GOAD_PROVIDER environment variable
	EnvProvider string

	// ConfigProvider from the config file's provider key
	ConfigProvider ProviderType
}

// ResolvedProvider contains the final provider selection.
type ResolvedProvider struct {
	Type ProviderType

	// Source indicates where the provider was determined from
	Source string
}

// ResolveProvider determines the provider to use based on precedence rules.
// Precedence (highest to lowest):
// 1. CLIProvider (--provider flag)
// 2. EnvProvider (GOAD_PROVIDER)
// 3. ConfigProvider (config file)
// 4. Default (proxmox)
func ResolveProvider(ctx ProviderResolutionContext) (ResolvedProvider, error) {
	var candidate, source string

	switch {
	case ctx.CLIProvider != "":
		candidate, source = ctx.CLIProvider, "cli"
	case ctx.EnvProvider != "":
		candidate, source = ctx.EnvProvider, "env"
	case ctx.ConfigProvider != "":
		candidate, source = string(ctx.ConfigProvider), "config"
	default:
		return ResolvedProvider{Type: DefaultProvider, Source: "default"}, nil
	}

	p := ProviderType(strings.ToLower(strings.TrimSpace(candidate)))
	if !p.Valid() {
		return ResolvedProvider{}, fmt.Errorf("unknown provider %q from %s (valid: %s)", candidate, source, providerList())
	}
	return ResolvedProvider{Type: p, Source: source}, nil
}

// ResolveProviderFromEnv resolves using the CLI value, GOAD_PROVIDER, and cfg
func ResolveProviderFromEnv(cliProvider string, cfg *Config) (ResolvedProvider, error) {
	var fromFile ProviderType
	if cfg != nil {
		fromFile = cfg.Provider
	}
	return ResolveProvider(ProviderResolutionContext{
		CLIProvider:    cliProvider,
		EnvProvider:    os.Getenv(ProviderEnvVar),
		ConfigProvider: fromFile,
	})
}

func providerList() string {
	names := make([]string, len(Providers))
	for i, p := range Providers {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}
