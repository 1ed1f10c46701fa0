package policy

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseJSONDocument decodes a policy document from JSON.
func ParseJSONDocument(r io.Reader) (Document, error) {
	var doc Document
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("decode policy document: %w", err)
	}
	return doc, nil
}

// LoadJSONDocument reads a JSON document from disk.
func LoadJSONDocument(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open policy document: %w", err)
	}
	defer f.Close()
	return ParseJSONDocument(f)
}

// ParseYAMLDocument decodes a policy document from YAML. Statement must be a
// list in YAML documents.
func ParseYAMLDocument(r io.Reader) (Document, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, errors.New("decode policy document: empty document")
		}
		return Document{}, fmt.Errorf("decode policy document: %w", err)
	}
	return doc, nil
}

// LoadYAMLDocument reads a YAML document from disk.
func LoadYAMLDocument(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open policy document: %w", err)
	}
	defer f.Close()
	return ParseYAMLDocument(f)
}

// LoadDocument picks the decoder from the file extension: .yaml and .yml are
// read as YAML, everything else as JSON.
func LoadDocument(path string) (Document, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return LoadYAMLDocument(path)
	default:
		return LoadJSONDocument(path)
	}
}

// LoadEngine reads and compiles a document file.
func LoadEngine(path string, opts ...EngineOption) (*Engine, error) {
	doc, err := LoadDocument(path)
	if err != nil {
		return nil, err
	}
	engine, err := CompileDocument(doc, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return engine, nil
}
