package advisor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseDefinition decodes an advisor definition from YAML. JSON input is
// accepted as well since it is a subset of YAML.
func ParseDefinition(r io.Reader) (Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		if errors.Is(err, io.EOF) {
			return Definition{}, errors.New("decode advisor definition: empty document")
		}
		return Definition{}, fmt.Errorf("decode advisor definition: %w", err)
	}
	return def, nil
}

// LoadDefinition reads a definition from disk.
func LoadDefinition(path string) (Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return Definition{}, fmt.Errorf("open advisor definition: %w", err)
	}
	defer f.Close()
	return ParseDefinition(f)
}

// Parse decodes and compiles a definition in one step.
func Parse(data []byte, opts ...BuildOption) (*Advisor, error) {
	def, err := ParseDefinition(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return New(def, opts...)
}

// Load reads and compiles a definition file.
func Load(path string, opts ...BuildOption) (*Advisor, error) {
	def, err := LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	a, err := New(def, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}
