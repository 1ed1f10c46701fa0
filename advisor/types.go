package advisor

import "github.com/fystack/cloudcoach/scoring"

// Definition describes an advisor and can be serialized as YAML or JSON. When
// Tie names a category, it is recommended whenever two or more categories
// share the highest score.
type Definition struct {
	ID          string            `json:"id" yaml:"id"`
	Title       string            `json:"title" yaml:"title"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Categories  []Category        `json:"categories" yaml:"categories"`
	Options     []Option          `json:"options" yaml:"options"`
	Inputs      []Input           `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Conditions  []ConditionRule   `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Levels      []scoring.Band    `json:"levels,omitempty" yaml:"levels,omitempty"`
	Tie         string            `json:"tie,omitempty" yaml:"tie,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// Category is a candidate recommendation.
type Category struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Option is one axis of a decision, such as risk tolerance.
type Option struct {
	ID      string   `json:"id" yaml:"id"`
	Label   string   `json:"label" yaml:"label"`
	Choices []Choice `json:"choices" yaml:"choices"`
}

// Choice is a selectable value of an Option together with the score it adds.
type Choice struct {
	Value   string          `json:"value" yaml:"value"`
	Text    string          `json:"text" yaml:"text"`
	Weights scoring.Weights `json:"weights,omitempty" yaml:"weights,omitempty"`
}

// Input is a numeric value (a slider) that condition rules can reference.
type Input struct {
	ID      string  `json:"id" yaml:"id"`
	Label   string  `json:"label" yaml:"label"`
	Min     float64 `json:"min" yaml:"min"`
	Max     float64 `json:"max" yaml:"max"`
	Default float64 `json:"default" yaml:"default"`
}

// ConditionRule adds weights when its expression evaluates to true.
type ConditionRule struct {
	ID          string          `json:"id" yaml:"id"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	When        string          `json:"when" yaml:"when"`
	Weights     scoring.Weights `json:"weights" yaml:"weights"`
}

// Request carries the user's answers.
type Request struct {
	Selections map[string]string  `json:"selections"`
	Values     map[string]float64 `json:"values,omitempty"`
}

// Result is the outcome of a recommendation run.
type Result struct {
	Advisor        string                 `json:"advisor"`
	Recommendation scoring.Recommendation `json:"recommendation"`
	Grading        *scoring.Grading       `json:"grading,omitempty"`
	Tied           []string               `json:"tied,omitempty"`
	Matched        []string               `json:"matched_conditions,omitempty"`
	Unknown        []string               `json:"unknown_selections,omitempty"`
	Error          error                  `json:"-"`
	ErrorMessage   string                 `json:"error_message,omitempty"`
}
