package script

import "gopkg.in/yaml.v3"

// Entry describes what happened to one port (or address set) during an
// operation
type Entry struct {
	Status      string   `yaml:"status,omitempty" json:"status,omitempty"`
	Tags        []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Address     []string `yaml:"address,omitempty" json:"address,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
}

// Output is the nested per-device, per-port report of an operation
type Output map[string]map[string]Entry

// Add records an entry under device/port, merging with any existing one
func (o Output) Add(device, port string, entry Entry) {
	ports, ok := o[device]
	if !ok {
		ports = make(map[string]Entry)
		o[device] = ports
	}

	existing, ok := ports[port]
	if !ok {
		ports[port] = entry
		return
	}

	if entry.Status != "" {
		existing.Status = entry.Status
	}
	if entry.Description != "" {
		existing.Description = entry.Description
	}
	existing.Tags = append(existing.Tags, entry.Tags...)
	existing.Address = append(existing.Address, entry.Address...)
	ports[port] = existing
}

// Result is the structured payload every operation returns
type Result struct {
	Result  bool   `yaml:"result" json:"result"`
	Comment string `yaml:"comment" json:"comment"`
	Out     Output `yaml:"out,omitempty" json:"out,omitempty"`
}

// YAML renders the result in the wire form used by the CLI
func (r *Result) YAML() (string, error) {
	data, err := yaml.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
