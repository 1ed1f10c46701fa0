package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/fystack/cloudcoach/scoring"
)

// Advisor is a compiled, immutable advisor definition. It is safe for
// concurrent use.
type Advisor struct {
	def        Definition
	categories []string
	table      scoring.RuleTable
	options    map[string]*Option
	inputs     map[string]Input
	conditions []*compiledCondition
	maxPoints  int
	logger     *slog.Logger
}

// BuildOption configures compilation behaviour.
type BuildOption func(*buildConfig)

type buildConfig struct {
	exprOptions []expr.Option
	logger      *slog.Logger
}

// WithExprOptions passes extra expr compilation options for every condition.
func WithExprOptions(opts ...expr.Option) BuildOption {
	return func(cfg *buildConfig) {
		cfg.exprOptions = append(cfg.exprOptions, opts...)
	}
}

// WithLogger enables debug logging of every recommendation.
func WithLogger(logger *slog.Logger) BuildOption {
	return func(cfg *buildConfig) {
		cfg.logger = logger
	}
}

type compiledCondition struct {
	rule    ConditionRule
	program *vm.Program
}

// New validates a definition and compiles its condition expressions.
func New(def Definition, opts ...BuildOption) (*Advisor, error) {
	var cfg buildConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if strings.TrimSpace(def.ID) == "" {
		return nil, configErrorf("", "id", "advisor id is required")
	}

	a := &Advisor{
		def:     cloneDefinition(def),
		table:   make(scoring.RuleTable),
		options: make(map[string]*Option, len(def.Options)),
		inputs:  make(map[string]Input, len(def.Inputs)),
		logger:  cfg.logger,
	}

	if err := a.compileCategories(); err != nil {
		return nil, err
	}
	if err := a.compileOptions(); err != nil {
		return nil, err
	}
	if err := a.compileInputs(); err != nil {
		return nil, err
	}
	if err := a.compileConditions(cfg); err != nil {
		return nil, err
	}
	if err := a.compileLevels(); err != nil {
		return nil, err
	}

	a.maxPoints = a.attainablePoints()
	return a, nil
}

func (a *Advisor) compileCategories() error {
	if len(a.def.Categories) == 0 {
		return configErrorf(a.def.ID, "categories", "at least one category is required")
	}

	seen := make(map[string]struct{}, len(a.def.Categories))
	for idx, c := range a.def.Categories {
		if c.Name == "" {
			return configErrorf(a.def.ID, fmt.Sprintf("categories[%d]", idx), "name is required")
		}
		if _, dup := seen[c.Name]; dup {
			return configErrorf(a.def.ID, fmt.Sprintf("categories[%d]", idx), "duplicate category %q", c.Name)
		}
		seen[c.Name] = struct{}{}
		a.categories = append(a.categories, c.Name)
	}

	if a.def.Tie != "" && !a.hasCategory(a.def.Tie) {
		return configErrorf(a.def.ID, "tie", "tie category %q is not declared", a.def.Tie)
	}
	return nil
}

func (a *Advisor) compileOptions() error {
	for idx := range a.def.Options {
		opt := &a.def.Options[idx]
		field := fmt.Sprintf("options[%d]", idx)

		if opt.ID == "" {
			return configErrorf(a.def.ID, field, "id is required")
		}
		if _, dup := a.options[opt.ID]; dup {
			return configErrorf(a.def.ID, field, "duplicate option %q", opt.ID)
		}
		if len(opt.Choices) == 0 {
			return configErrorf(a.def.ID, field, "option %q has no choices", opt.ID)
		}

		values := make(map[string]struct{}, len(opt.Choices))
		for cidx, choice := range opt.Choices {
			choiceField := fmt.Sprintf("%s.choices[%d]", field, cidx)
			if choice.Value == "" {
				return configErrorf(a.def.ID, choiceField, "value is required")
			}
			if _, dup := values[choice.Value]; dup {
				return configErrorf(a.def.ID, choiceField, "duplicate choice %q in option %q", choice.Value, opt.ID)
			}
			values[choice.Value] = struct{}{}

			if err := a.checkWeights(choiceField, choice.Weights); err != nil {
				return err
			}
			if len(choice.Weights) > 0 {
				a.table[scoring.Key{Option: opt.ID, Value: choice.Value}] = choice.Weights
			}
		}

		a.options[opt.ID] = opt
	}
	return nil
}

func (a *Advisor) compileInputs() error {
	for idx, in := range a.def.Inputs {
		field := fmt.Sprintf("inputs[%d]", idx)
		if in.ID == "" {
			return configErrorf(a.def.ID, field, "id is required")
		}
		if _, dup := a.inputs[in.ID]; dup {
			return configErrorf(a.def.ID, field, "duplicate input %q", in.ID)
		}
		if _, clash := a.options[in.ID]; clash {
			return configErrorf(a.def.ID, field, "input %q shadows an option", in.ID)
		}
		if in.Min > in.Max {
			return configErrorf(a.def.ID, field, "min %v exceeds max %v", in.Min, in.Max)
		}
		if in.Default < in.Min || in.Default > in.Max {
			return configErrorf(a.def.ID, field, "default %v outside [%v, %v]", in.Default, in.Min, in.Max)
		}
		a.inputs[in.ID] = in
	}
	return nil
}

func (a *Advisor) compileConditions(cfg buildConfig) error {
	baseOptions := make([]expr.Option, 0, len(cfg.exprOptions)+3)
	baseOptions = append(baseOptions, cfg.exprOptions...)
	baseOptions = append(baseOptions,
		expr.AllowUndefinedVariables(),
		expr.Env(map[string]any{}),
		expr.AsBool(),
	)

	seen := make(map[string]struct{}, len(a.def.Conditions))
	for idx := range a.def.Conditions {
		rule := a.def.Conditions[idx]
		field := fmt.Sprintf("conditions[%d]", idx)

		if rule.ID == "" {
			rule.ID = fmt.Sprintf("%s_condition_%d", a.def.ID, idx)
		}
		a.def.Conditions[idx] = rule

		if _, dup := seen[rule.ID]; dup {
			return configErrorf(a.def.ID, field, "duplicate condition %q", rule.ID)
		}
		seen[rule.ID] = struct{}{}

		if strings.TrimSpace(rule.When) == "" {
			return configErrorf(a.def.ID, field, "condition %q expression cannot be empty", rule.ID)
		}
		if err := a.checkWeights(field, rule.Weights); err != nil {
			return err
		}

		program, err := expr.Compile(rule.When, baseOptions...)
		if err != nil {
			return configErrorf(a.def.ID, field, "compile condition %q: %s", rule.ID, cleanErrorMessage(err))
		}

		a.conditions = append(a.conditions, &compiledCondition{rule: rule, program: program})
	}
	return nil
}

func (a *Advisor) compileLevels() error {
	seen := make(map[string]struct{}, len(a.def.Levels))
	for idx, band := range a.def.Levels {
		field := fmt.Sprintf("levels[%d]", idx)
		if band.Name == "" {
			return configErrorf(a.def.ID, field, "name is required")
		}
		if _, dup := seen[band.Name]; dup {
			return configErrorf(a.def.ID, field, "duplicate level %q", band.Name)
		}
		if band.Min < 0 || band.Min > 100 {
			return configErrorf(a.def.ID, field, "min %v outside [0, 100]", band.Min)
		}
		seen[band.Name] = struct{}{}
	}
	return nil
}

func (a *Advisor) checkWeights(field string, weights scoring.Weights) error {
	for category := range weights {
		if !a.hasCategory(category) {
			return configErrorf(a.def.ID, field, "weight references unknown category %q", category)
		}
	}
	return nil
}

func (a *Advisor) hasCategory(name string) bool {
	for _, c := range a.categories {
		if c == name {
			return true
		}
	}
	return false
}

// attainablePoints is the best total a single request can reach: the best
// choice of every option plus every condition that adds points.
func (a *Advisor) attainablePoints() int {
	total := 0
	for _, opt := range a.def.Options {
		best := 0
		for _, choice := range opt.Choices {
			if sum := sumWeights(choice.Weights); sum > best {
				best = sum
			}
		}
		total += best
	}
	for _, cond := range a.conditions {
		if sum := sumWeights(cond.rule.Weights); sum > 0 {
			total += sum
		}
	}
	return total
}

func cloneDefinition(def Definition) Definition {
	out := def
	out.Categories = append([]Category(nil), def.Categories...)
	out.Inputs = append([]Input(nil), def.Inputs...)
	out.Levels = append([]scoring.Band(nil), def.Levels...)

	out.Options = make([]Option, len(def.Options))
	for i, opt := range def.Options {
		opt.Choices = append([]Choice(nil), opt.Choices...)
		for j := range opt.Choices {
			opt.Choices[j].Weights = cloneWeights(opt.Choices[j].Weights)
		}
		out.Options[i] = opt
	}

	out.Conditions = make([]ConditionRule, len(def.Conditions))
	for i, rule := range def.Conditions {
		rule.Weights = cloneWeights(rule.Weights)
		out.Conditions[i] = rule
	}
	return out
}

func cloneWeights(w scoring.Weights) scoring.Weights {
	if w == nil {
		return nil
	}
	copied := make(scoring.Weights, len(w))
	for c, d := range w {
		copied[c] = d
	}
	return copied
}

func sumWeights(w scoring.Weights) int {
	sum := 0
	for _, delta := range w {
		sum += delta
	}
	return sum
}

// Recommend scores a request. It never fails: unknown selections contribute
// nothing and condition errors are reported on the result.
func (a *Advisor) Recommend(ctx context.Context, req Request) Result {
	session := scoring.NewSession(a.categories)
	result := Result{Advisor: a.def.ID}

	for optionID, value := range req.Selections {
		if weights, ok := a.table[scoring.Key{Option: optionID, Value: value}]; ok {
			session.Add(weights)
		}
	}
	result.Unknown = a.Validate(req.Selections)

	if len(a.conditions) > 0 {
		env := a.environment(req)
		var errs []error
		for _, cond := range a.conditions {
			ok, err := cond.evaluate(env)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			if !ok {
				continue
			}
			session.Add(cond.rule.Weights)
			result.Matched = append(result.Matched, cond.rule.ID)
		}
		result.Error = joinErrors(errs)
		result.ErrorMessage = cleanErrorMessage(result.Error)
	}

	result.Recommendation = session.Result()
	a.breakTie(&result)

	if len(a.def.Levels) > 0 {
		grading := scoring.Grade(result.Recommendation.Total, a.maxPoints, a.def.Levels)
		result.Grading = &grading
	}

	if a.logger != nil {
		a.logger.DebugContext(ctx, "advisor recommendation",
			"advisor", a.def.ID,
			"category", result.Recommendation.Category,
			"confidence", result.Recommendation.Confidence,
			"matched_conditions", len(result.Matched),
			"unknown_selections", len(result.Unknown),
		)
	}

	return result
}

// breakTie replaces the recommendation with the tie category when several
// categories share the highest score. Confidence becomes the leaders' joint
// share of the total.
func (a *Advisor) breakTie(result *Result) {
	if a.def.Tie == "" {
		return
	}
	rec := &result.Recommendation
	leaders := rec.Leaders()
	if len(leaders) < 2 {
		return
	}
	result.Tied = leaders
	rec.Category = a.def.Tie
	rec.Confidence = scoring.Percent(rec.Scores[leaders[0]]*len(leaders), rec.Total)
}

// environment exposes selections as strings and inputs as numbers clamped to
// their declared range.
func (a *Advisor) environment(req Request) map[string]any {
	env := make(map[string]any, len(req.Selections)+len(a.inputs))
	for optionID, value := range req.Selections {
		env[optionID] = value
	}
	for id, in := range a.inputs {
		v, ok := req.Values[id]
		if !ok || math.IsNaN(v) {
			v = in.Default
		}
		env[id] = math.Min(math.Max(v, in.Min), in.Max)
	}
	return env
}

func (c *compiledCondition) evaluate(env map[string]any) (bool, error) {
	output, err := expr.Run(c.program, env)
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", c.rule.ID, err)
	}

	boolResult, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q did not return a boolean", c.rule.ID)
	}

	return boolResult, nil
}

// ID returns the advisor identifier.
func (a *Advisor) ID() string { return a.def.ID }

// Title returns the human readable advisor name.
func (a *Advisor) Title() string { return a.def.Title }

// Definition returns a copy of the definition the advisor was built from.
func (a *Advisor) Definition() Definition { return cloneDefinition(a.def) }

// Description returns the advisor description.
func (a *Advisor) Description() string { return a.def.Description }

// Categories returns the category names in declared order.
func (a *Advisor) Categories() []string {
	return append([]string(nil), a.categories...)
}

// Category looks up a category by name.
func (a *Advisor) Category(name string) (Category, bool) {
	for _, c := range a.def.Categories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// RuleTable returns a copy of the option/choice weights.
func (a *Advisor) RuleTable() scoring.RuleTable {
	table := make(scoring.RuleTable, len(a.table))
	for k, w := range a.table {
		table[k] = cloneWeights(w)
	}
	return table
}

// Inputs returns the numeric inputs in declared order.
func (a *Advisor) Inputs() []Input {
	return append([]Input(nil), a.def.Inputs...)
}

// Conditions returns the condition rules in declared order.
func (a *Advisor) Conditions() []ConditionRule {
	return append([]ConditionRule(nil), a.def.Conditions...)
}

// Levels returns the grading bands, if any.
func (a *Advisor) Levels() []scoring.Band {
	return append([]scoring.Band(nil), a.def.Levels...)
}

// MaxPoints is the highest total a request can score.
func (a *Advisor) MaxPoints() int { return a.maxPoints }

// cleanErrorMessage converts technical expr errors into user-friendly messages
func cleanErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	// Remove the visual error pointer lines (contains | and ^)
	lines := strings.Split(errStr, "\n")
	var cleanLines []string
	for _, line := range lines {
		if strings.Trim(line, " \t.|^") == "" {
			continue
		}
		cleanLines = append(cleanLines, line)
	}

	if len(cleanLines) > 0 {
		return strings.Join(cleanLines, "; ")
	}

	return errStr
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
