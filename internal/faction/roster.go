package faction

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Roster models a faction roster file.
type Roster struct {
	Factions []Snapshot `yaml:"factions"`
}

// LoadRoster reads a yaml roster file into a StaticProvider.
func LoadRoster(path string) (*StaticProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return RosterFromYAML(data)
}

// RosterFromYAML parses and validates a roster from raw yaml bytes.
func RosterFromYAML(data []byte) (*StaticProvider, error) {
	var r Roster
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("invalid roster yaml: %w", err)
	}
	if len(r.Factions) == 0 {
		return nil, fmt.Errorf("roster has no factions")
	}
	seen := make(map[ID]bool, len(r.Factions))
	for _, s := range r.Factions {
		if s.ID == "" {
			return nil, fmt.Errorf("roster faction %q has empty id", s.Name)
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("roster has duplicate faction id %s", s.ID)
		}
		seen[s.ID] = true
		for t, val := range s.Traits {
			if val < 0 || val > 10 {
				return nil, fmt.Errorf("faction %s trait %s out of range: %d", s.ID, t, val)
			}
		}
	}
	return NewStaticProvider(r.Factions...), nil
}
