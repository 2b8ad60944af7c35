package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Fleet is the optional fleet.yaml describing each member explicitly.
//
//	prefix: order-service-
//	members:
//	  - id: "0"
//	    listen: 127.0.0.1:9090
type Fleet struct {
	Prefix  string        `yaml:"prefix"`
	Members []FleetMember `yaml:"members"`
}

type FleetMember struct {
	ID     string `yaml:"id"`
	Listen string `yaml:"listen"`
}

// LoadFleet reads and validates a fleet file.
func LoadFleet(path string) (*Fleet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fleet file: %w", err)
	}

	var fleet Fleet
	if err := yaml.Unmarshal(data, &fleet); err != nil {
		return nil, fmt.Errorf("failed to parse fleet yaml: %w", err)
	}

	if err := fleet.validate(); err != nil {
		return nil, fmt.Errorf("invalid fleet file %s: %w", path, err)
	}
	return &fleet, nil
}

func (f *Fleet) validate() error {
	if len(f.Members) == 0 {
		return fmt.Errorf("no members")
	}

	seen := make(map[string]bool, len(f.Members))
	for i, m := range f.Members {
		id := strings.TrimSpace(m.ID)
		if id == "" {
			return fmt.Errorf("member %d: missing id", i)
		}
		if m.Listen == "" {
			return fmt.Errorf("member %s: missing listen address", id)
		}
		if seen[id] {
			return fmt.Errorf("member %s: duplicate id", id)
		}
		seen[id] = true
		f.Members[i].ID = id
	}
	return nil
}
