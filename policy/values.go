package policy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ValueList holds one or more strings. In JSON and YAML it may be written as
// a single scalar or as a list, the way IAM documents write Action, Resource
// and condition values.
type ValueList []string

// UnmarshalJSON accepts a string, boolean, number, null or an array of those.
func (v *ValueList) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch t := raw.(type) {
	case []any:
		values := make(ValueList, 0, len(t))
		for _, item := range t {
			s, err := scalarString(item)
			if err != nil {
				return err
			}
			values = append(values, s)
		}
		*v = values
	case nil:
		*v = nil
	default:
		s, err := scalarString(t)
		if err != nil {
			return err
		}
		*v = ValueList{s}
	}
	return nil
}

func scalarString(raw any) (string, error) {
	switch t := raw.(type) {
	case string:
		return t, nil
	case bool:
		return strconv.FormatBool(t), nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("expected string, boolean or number, got %T", raw)
	}
}

// UnmarshalYAML accepts a scalar or a sequence of scalars.
func (v *ValueList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*v = nil
			return nil
		}
		*v = ValueList{node.Value}
	case yaml.SequenceNode:
		values := make(ValueList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected scalar value", item.Line)
			}
			values = append(values, item.Value)
		}
		*v = values
	default:
		return fmt.Errorf("line %d: expected scalar or list", node.Line)
	}
	return nil
}

// StatementList is the Statement element of a document. JSON documents may
// hold a single statement object instead of an array.
type StatementList []Statement

// UnmarshalJSON accepts a statement object or an array of statements and
// rejects unknown statement fields.
func (l *StatementList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*l = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var single Statement
		if err := dec.Decode(&single); err != nil {
			return err
		}
		*l = StatementList{single}
		return nil
	}

	var many []Statement
	if err := dec.Decode(&many); err != nil {
		return err
	}
	*l = many
	return nil
}
