package advisor

import (
	"embed"
	"fmt"
	"strings"
	"sync"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

var (
	builtinOnce     sync.Once
	builtinAdvisors map[string]*Advisor
	builtinErr      error
)

func loadBuiltins() {
	entries, err := builtinFS.ReadDir("builtin")
	if err != nil {
		builtinErr = fmt.Errorf("read built-in advisors: %w", err)
		return
	}

	advisors := make(map[string]*Advisor, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := builtinFS.ReadFile("builtin/" + e.Name())
		if err != nil {
			builtinErr = fmt.Errorf("read built-in advisor %s: %w", e.Name(), err)
			return
		}
		a, err := Parse(data)
		if err != nil {
			builtinErr = fmt.Errorf("built-in advisor %s: %w", e.Name(), err)
			return
		}
		if _, dup := advisors[a.ID()]; dup {
			builtinErr = fmt.Errorf("built-in advisor %s: duplicate id %q", e.Name(), a.ID())
			return
		}
		advisors[a.ID()] = a
	}
	builtinAdvisors = advisors
}

// Builtin returns every embedded advisor sorted by id.
func Builtin() ([]*Advisor, error) {
	builtinOnce.Do(loadBuiltins)
	if builtinErr != nil {
		return nil, builtinErr
	}

	out := make([]*Advisor, 0, len(builtinAdvisors))
	for _, id := range sortedKeys(builtinAdvisors) {
		out = append(out, builtinAdvisors[id])
	}
	return out, nil
}

// Lookup returns the embedded advisor with the given id.
func Lookup(id string) (*Advisor, error) {
	builtinOnce.Do(loadBuiltins)
	if builtinErr != nil {
		return nil, builtinErr
	}

	a, ok := builtinAdvisors[id]
	if !ok {
		ids := sortedKeys(builtinAdvisors)
		return nil, fmt.Errorf("unknown advisor %q (available: %s)", id, strings.Join(ids, ", "))
	}
	return a, nil
}
