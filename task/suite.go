package task

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Suite is an ordered collection of tasks loaded from a YAML file.
type Suite struct {
	Name  string `yaml:"name"`
	Tasks []Task `yaml:"tasks"`
}

// LoadSuite reads and validates a task suite from path.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading suite %s: %w", path, err)
	}
	var s Suite
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing suite %s: %w", path, err)
	}
	if len(s.Tasks) == 0 {
		return nil, fmt.Errorf("suite %s: no tasks defined", path)
	}
	seen := make(map[string]bool, len(s.Tasks))
	for i := range s.Tasks {
		t := &s.Tasks[i]
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("suite %s: task %d: %w", path, i, err)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("suite %s: duplicate task id %q", path, t.ID)
		}
		seen[t.ID] = true
	}
	return &s, nil
}
