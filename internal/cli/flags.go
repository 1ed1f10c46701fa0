package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// parseAssignments turns repeated key=value flag values into a map. Later
// assignments of the same key win.
func parseAssignments(flag string, values []string) (map[string]string, error) {
	out := make(map[string]string, len(values))
	for _, raw := range values {
		key, value, ok := strings.Cut(raw, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("--%s %q: expected key=value", flag, raw)
		}
		out[key] = strings.TrimSpace(value)
	}
	return out, nil
}

// parseNumbers is parseAssignments for numeric values.
func parseNumbers(flag string, values []string) (map[string]float64, error) {
	pairs, err := parseAssignments(flag, values)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(pairs))
	for key, raw := range pairs {
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("--%s %s=%q: not a number", flag, key, raw)
		}
		out[key] = n
	}
	return out, nil
}

func checkFormat(format string) error {
	switch format {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid --format %q (want text or json)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
