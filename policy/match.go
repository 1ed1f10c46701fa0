package policy

import (
	"sort"
	"strings"
)

// matchPattern supports exact matches, the bare "*" wildcard and a single
// trailing "*" acting as a prefix match.
func matchPattern(pattern, value string) bool {
	switch {
	case pattern == "*":
		return true
	case pattern == value:
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "*"))
	default:
		return false
	}
}

func matchAny(patterns []string, value string) bool {
	for _, p := range patterns {
		if matchPattern(p, value) {
			return true
		}
	}
	return false
}

// Condition operators understood by the evaluator.
const (
	OpStringEquals    = "StringEquals"
	OpStringNotEquals = "StringNotEquals"
	OpBool            = "Bool"
	OpIPAddress       = "IpAddress"
)

type conditionFunc func(observed string, expected []string) bool

var operators = map[string]conditionFunc{
	OpStringEquals: func(observed string, expected []string) bool {
		for _, e := range expected {
			if observed == e {
				return true
			}
		}
		return false
	},
	OpStringNotEquals: func(observed string, expected []string) bool {
		for _, e := range expected {
			if observed == e {
				return false
			}
		}
		return true
	},
	OpBool: func(observed string, expected []string) bool {
		for _, e := range expected {
			if strings.EqualFold(observed, e) {
				return true
			}
		}
		return false
	},
	// Literal membership only; CIDR blocks are compared as strings.
	OpIPAddress: func(observed string, expected []string) bool {
		for _, e := range expected {
			if observed == e {
				return true
			}
		}
		return false
	},
}

// SupportedOperators lists the condition operators in sorted order.
func SupportedOperators() []string {
	ops := make([]string, 0, len(operators))
	for op := range operators {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

type compiledCondition struct {
	operator string
	key      string
	expected []string
	test     conditionFunc
}

// holds reports whether the request context satisfies the condition. A key
// missing from the context never satisfies it.
func (c compiledCondition) holds(ctx map[string]string) bool {
	observed, ok := ctx[c.key]
	if !ok {
		return false
	}
	return c.test(observed, c.expected)
}
