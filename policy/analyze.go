package policy

import (
	"fmt"
	"sort"
	"strings"
)

// Analysis summarizes a document and flags overly broad statements.
type Analysis struct {
	Version         string   `json:"version,omitempty"`
	Statements      int      `json:"statements"`
	AllowStatements int      `json:"allow_statements"`
	DenyStatements  int      `json:"deny_statements"`
	Actions         []string `json:"actions"`
	Resources       []string `json:"resources"`
	Conditional     []int    `json:"conditional_statements,omitempty"`
	Issues          []Issue  `json:"issues,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

// Issue is a finding tied to one statement.
type Issue struct {
	Statement int    `json:"statement"`
	Message   string `json:"message"`
}

// manyActions is the point past which a document should be split.
const manyActions = 20

// Analyze inspects a document without evaluating any request. It works on
// documents that would fail compilation as well: a statement without an
// Effect is counted as Allow and reported as an issue.
func Analyze(doc Document) Analysis {
	a := Analysis{
		Version:    doc.Version,
		Statements: len(doc.Statement),
	}

	actions := make(map[string]struct{})
	resources := make(map[string]struct{})

	for idx, stmt := range doc.Statement {
		effect := stmt.Effect
		switch effect {
		case "":
			// IAM tools read a missing Effect as Allow.
			effect = EffectAllow
			a.issue(idx, "missing Effect (treated as Allow)")
		case EffectAllow, EffectDeny:
		default:
			a.issue(idx, fmt.Sprintf("invalid Effect %q", effect))
		}
		switch effect {
		case EffectAllow:
			a.AllowStatements++
		case EffectDeny:
			a.DenyStatements++
		}

		broad := false
		for _, action := range stmt.Action {
			actions[action] = struct{}{}
			switch {
			case action == "*":
				broad = true
				a.issue(idx, "wildcard action (*) grants all permissions")
			case strings.HasSuffix(action, ":*"):
				broad = true
				a.issue(idx, fmt.Sprintf("full service access (%s)", action))
			case strings.Contains(action, "*"):
				broad = true
			}
		}

		for _, resource := range stmt.Resource {
			resources[resource] = struct{}{}
			if resource == "*" {
				a.issue(idx, "wildcard resource (*) affects all resources")
			}
			if strings.Contains(resource, "*") {
				broad = true
			}
		}

		if len(stmt.Condition) > 0 {
			a.Conditional = append(a.Conditional, idx)
		} else if effect == EffectAllow && broad {
			a.issue(idx, "no conditions on broad permissions")
		}
	}

	a.Actions = sortedSet(actions)
	a.Resources = sortedSet(resources)

	if a.AllowStatements > 0 && a.DenyStatements == 0 {
		a.Recommendations = append(a.Recommendations, "Consider adding explicit deny statements for security")
	}
	if len(a.Conditional) == 0 {
		a.Recommendations = append(a.Recommendations, "Add conditions to restrict when/where policies apply")
	}
	if len(a.Actions) > manyActions {
		a.Recommendations = append(a.Recommendations, "Policy grants many actions - consider splitting into multiple policies")
	}

	return a
}

func (a *Analysis) issue(idx int, msg string) {
	a.Issues = append(a.Issues, Issue{Statement: idx, Message: msg})
}

func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
