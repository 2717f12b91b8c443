// Package tools loads the declarative tool catalog, resolves each entry to an
// executable capability, and executes model-requested tool calls.
//
// The catalog is a YAML list of descriptors:
//
//	- name: power
//	  description: Raise a number to a power
//	  import_path: tools.math.power
//
// import_path is looked up in an explicit Resolver table; nothing is loaded
// dynamically.
package tools

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Descriptor declares one tool in the catalog.
type Descriptor struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	ImportPath  string `yaml:"import_path"`
}

// LoadDescriptors reads the catalog file at path.
func LoadDescriptors(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tool catalog: %w", err)
	}
	descs, err := ParseDescriptors(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tool catalog %s: %w", path, err)
	}
	return descs, nil
}

// ParseDescriptors decodes a YAML catalog. Both a bare list and a document
// with a top-level "tools" list are accepted. An empty document yields no
// descriptors.
func ParseDescriptors(data []byte) ([]Descriptor, error) {
	var root yaml.Node
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&root); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	node := root.Content[0]
	if node.Kind == yaml.MappingNode {
		var wrapped struct {
			Tools []Descriptor `yaml:"tools"`
		}
		if err := node.Decode(&wrapped); err != nil {
			return nil, err
		}
		return wrapped.Tools, nil
	}

	var descs []Descriptor
	if err := node.Decode(&descs); err != nil {
		return nil, err
	}
	return descs, nil
}
