package manifest

import (
	"os"

	"gopkg.in/yaml.v3"
)

// WriteYAML writes the manifest as YAML
func WriteYAML(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}

	return writeAtomic(path, data)
}

// ReadYAML reads a manifest from a YAML file
func ReadYAML(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}
