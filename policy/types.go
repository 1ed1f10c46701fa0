package policy

// Document is an identity-policy style document: a version tag and an
// ordered list of statements. It can be serialized as JSON or YAML.
type Document struct {
	Version   string        `json:"Version,omitempty" yaml:"Version,omitempty"`
	ID        string        `json:"Id,omitempty" yaml:"Id,omitempty"`
	Statement StatementList `json:"Statement" yaml:"Statement"`
}

// Statement is a single element of a policy document.
type Statement struct {
	Sid       string         `json:"Sid,omitempty" yaml:"Sid,omitempty"`
	Effect    Effect         `json:"Effect" yaml:"Effect"`
	Action    ValueList      `json:"Action,omitempty" yaml:"Action,omitempty"`
	Resource  ValueList      `json:"Resource,omitempty" yaml:"Resource,omitempty"`
	Condition ConditionBlock `json:"Condition,omitempty" yaml:"Condition,omitempty"`
}

// ConditionBlock maps an operator such as StringEquals to the context keys
// it tests and their expected values.
type ConditionBlock map[string]map[string]ValueList

// Request is a hypothetical call to test against a document.
type Request struct {
	Action   string            `json:"action"`
	Resource string            `json:"resource"`
	Context  map[string]string `json:"context,omitempty"`
}

// Result captures the outcome of evaluating a request.
type Result struct {
	Allowed          bool   `json:"allowed"`
	Reason           string `json:"reason"`
	MatchedStatement *int   `json:"matched_statement_index,omitempty"`
	Sid              string `json:"sid,omitempty"`
	Evaluated        int    `json:"evaluated_statements"`
	Trace            []Step `json:"trace,omitempty"`
}

// Step records how a single statement was judged during a traced evaluation.
type Step struct {
	Index         int    `json:"index"`
	Sid           string `json:"sid,omitempty"`
	Effect        Effect `json:"effect"`
	ActionMatch   bool   `json:"action_match"`
	ResourceMatch bool   `json:"resource_match"`
	ConditionsMet bool   `json:"conditions_met"`
	Applies       bool   `json:"applies"`
	Note          string `json:"note"`
}
