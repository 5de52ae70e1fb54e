package agents

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// AgentSpec is one entry in the agent-store file: a retrieval agent the
// planner is allowed to select.
type AgentSpec struct {
	Name        string  `yaml:"name"`
	Kind        string  `yaml:"kind"` // documents, datasets, web
	Description string  `yaml:"description"`
	Enabled     bool    `yaml:"enabled"`
	Model       string  `yaml:"model,omitempty"`
	Temperature float32 `yaml:"temperature,omitempty"`
}

type registryFile struct {
	Agents []AgentSpec `yaml:"agents"`
}

// Registry holds the declared retrieval agents. The planner may only select
// agents that are registered and enabled.
type Registry struct {
	specs map[string]AgentSpec
	order []string
}

func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agent store %s: %w", path, err)
	}
	return ParseRegistry(data)
}

func ParseRegistry(data []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse agent store: %w", err)
	}
	if len(file.Agents) == 0 {
		return nil, fmt.Errorf("agent store declares no agents")
	}

	r := &Registry{specs: make(map[string]AgentSpec, len(file.Agents))}
	for _, spec := range file.Agents {
		if spec.Name == "" {
			return nil, fmt.Errorf("agent store entry missing name")
		}
		if _, dup := r.specs[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate agent %q in agent store", spec.Name)
		}
		r.specs[spec.Name] = spec
		r.order = append(r.order, spec.Name)
	}
	return r, nil
}

// Enabled returns enabled agent names in declaration order.
func (r *Registry) Enabled() []string {
	var names []string
	for _, name := range r.order {
		if r.specs[name].Enabled {
			names = append(names, name)
		}
	}
	return names
}

func (r *Registry) IsEnabled(name string) bool {
	spec, ok := r.specs[name]
	return ok && spec.Enabled
}

func (r *Registry) Spec(name string) (AgentSpec, bool) {
	spec, ok := r.specs[name]
	return spec, ok
}

// Filter splits a planner selection into registered+enabled agents and the
// names that had to be dropped.
func (r *Registry) Filter(names []string) (selected, dropped []string) {
	for _, name := range names {
		if r.IsEnabled(name) {
			selected = append(selected, name)
		} else {
			dropped = append(dropped, name)
		}
	}
	return selected, dropped
}
