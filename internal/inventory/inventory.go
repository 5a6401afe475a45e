// Package inventory reads the deployment targets of a run from an Ansible
// INI inventory or a YAML target list.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

// DefaultGroup is the inventory section holding the deployment hosts
const DefaultGroup = "deployment_boxes"

// Source lists the targets of a run
type Source interface {
	ListTargets() ([]target.Target, error)
}

// File is an inventory file on disk
type File struct {
	Path string

	// Group is the INI section to read. If empty, DefaultGroup is used.
	Group string
}

var _ Source = File{}

// ListTargets parses the file, choosing the format by extension
func (f File) ListTargets() ([]target.Target, error) {
	return Load(f.Path, f.Group)
}

// Load reads targets from path. Files ending in .yaml or .yml are parsed
// as a YAML target list, anything else as an Ansible INI inventory.
// Target names must be unique; an inventory with no targets is not an error.
func Load(path, group string) ([]target.Target, error) {
	if group == "" {
		group = DefaultGroup
	}

	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand inventory path %q: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	var targets []target.Target
	switch strings.ToLower(filepath.Ext(expanded)) {
	case ".yaml", ".yml":
		targets, err = ParseYAML(data)
	default:
		targets, err = ParseINI(strings.NewReader(string(data)), group)
	}
	if err != nil {
		return nil, fmt.Errorf("parse inventory %s: %w", expanded, err)
	}

	if err := checkUnique(targets); err != nil {
		return nil, fmt.Errorf("inventory %s: %w", expanded, err)
	}
	return targets, nil
}

func checkUnique(targets []target.Target) error {
	seen := make(map[string]int, len(targets))
	for i, t := range targets {
		if first, ok := seen[t.Name]; ok {
			return fmt.Errorf("duplicate target name %q (entries %d and %d)", t.Name, first+1, i+1)
		}
		seen[t.Name] = i
	}
	return nil
}
