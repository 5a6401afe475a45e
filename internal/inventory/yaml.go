package inventory

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/cyberbalsa/gci-goad/internal/target"
)

type yamlInventory struct {
	Targets []yamlTarget `yaml:"targets"`
}

type yamlTarget struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
	GroupID int    `yaml:"group_id"`
}

// ParseYAML reads a target list:
//
//	targets:
//	  - name: box1
//	    address: 10.1.1.5
//	    group_id: 1
func ParseYAML(data []byte) ([]target.Target, error) {
	var inv yamlInventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, err
	}

	targets := make([]target.Target, 0, len(inv.Targets))
	for i, yt := range inv.Targets {
		if yt.Name == "" {
			return nil, fmt.Errorf("target %d: %w", i+1, errors.New("name is required"))
		}
		address := yt.Address
		if address == "" {
			address = yt.Name
		}
		targets = append(targets, target.New(yt.Name, address, yt.GroupID))
	}
	return targets, nil
}
