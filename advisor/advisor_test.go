package advisor_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/fystack/cloudcoach/advisor"
	"github.com/fystack/cloudcoach/scoring"
)

func rolloutDefinition() advisor.Definition {
	return advisor.Definition{
		ID:    "rollout",
		Title: "Rollout",
		Categories: []advisor.Category{
			{Name: "Canary"},
			{Name: "BlueGreen"},
			{Name: "AllAtOnce"},
		},
		Options: []advisor.Option{
			{
				ID:    "risk",
				Label: "Risk tolerance",
				Choices: []advisor.Choice{
					{Value: "low", Text: "Low", Weights: scoring.Weights{"Canary": 3, "BlueGreen": 2}},
					{Value: "high", Text: "High", Weights: scoring.Weights{"AllAtOnce": 3}},
				},
			},
			{
				ID:    "cost",
				Label: "Cost sensitivity",
				Choices: []advisor.Choice{
					{Value: "high", Text: "Performance over cost", Weights: scoring.Weights{"BlueGreen": 3}},
					{Value: "low", Text: "Cost first"},
				},
			},
		},
	}
}

func TestRecommendMatchesScoringEngine(t *testing.T) {
	a, err := advisor.New(rolloutDefinition())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result := a.Recommend(context.Background(), advisor.Request{
		Selections: map[string]string{"risk": "low", "cost": "high"},
	})

	if result.Recommendation.Category != "BlueGreen" {
		t.Fatalf("expected BlueGreen, got %s", result.Recommendation.Category)
	}
	if result.Recommendation.Confidence != 62.5 {
		t.Fatalf("expected 62.5, got %v", result.Recommendation.Confidence)
	}
	if len(result.Unknown) != 0 {
		t.Fatalf("expected no unknown selections, got %v", result.Unknown)
	}
	if result.Grading != nil {
		t.Fatalf("advisor without levels should not grade")
	}

	direct := scoring.Compute(map[string]string{"risk": "low", "cost": "high"}, a.RuleTable(), a.Categories())
	if direct.Category != result.Recommendation.Category || direct.Confidence != result.Recommendation.Confidence {
		t.Fatalf("advisor and engine disagree: %+v vs %+v", result.Recommendation, direct)
	}
}

func TestRecommendReportsUnknownSelections(t *testing.T) {
	a, err := advisor.New(rolloutDefinition())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result := a.Recommend(context.Background(), advisor.Request{
		Selections: map[string]string{"risk": "extreme", "team": "small"},
	})

	if result.Recommendation.Category != "Canary" || result.Recommendation.Confidence != 0 {
		t.Fatalf("expected zero-signal default, got %+v", result.Recommendation)
	}
	if len(result.Unknown) != 2 {
		t.Fatalf("expected 2 unknown selections, got %v", result.Unknown)
	}
	if !strings.Contains(result.Unknown[0], `"extreme"`) || !strings.Contains(result.Unknown[1], `"team"`) {
		t.Fatalf("unexpected unknown list: %v", result.Unknown)
	}
}

func TestNewRejectsInvalidDefinitions(t *testing.T) {
	cases := map[string]struct {
		mutate func(*advisor.Definition)
		field  string
	}{
		"missing id": {
			mutate: func(d *advisor.Definition) { d.ID = "" },
			field:  "id",
		},
		"no categories": {
			mutate: func(d *advisor.Definition) { d.Categories = nil },
			field:  "categories",
		},
		"duplicate category": {
			mutate: func(d *advisor.Definition) {
				d.Categories = append(d.Categories, advisor.Category{Name: "Canary"})
			},
			field: "categories[3]",
		},
		"option without choices": {
			mutate: func(d *advisor.Definition) {
				d.Options = append(d.Options, advisor.Option{ID: "team"})
			},
			field: "options[2]",
		},
		"duplicate option": {
			mutate: func(d *advisor.Definition) {
				d.Options = append(d.Options, d.Options[0])
			},
			field: "options[2]",
		},
		"duplicate choice": {
			mutate: func(d *advisor.Definition) {
				d.Options[1].Choices = append(d.Options[1].Choices, advisor.Choice{Value: "low"})
			},
			field: "options[1].choices[2]",
		},
		"unknown category weight": {
			mutate: func(d *advisor.Definition) {
				d.Options[0].Choices[0].Weights = scoring.Weights{"Linear": 1}
			},
			field: "options[0].choices[0]",
		},
		"input default out of range": {
			mutate: func(d *advisor.Definition) {
				d.Inputs = []advisor.Input{{ID: "minutes", Min: 0, Max: 10, Default: 11}}
			},
			field: "inputs[0]",
		},
		"bad expression": {
			mutate: func(d *advisor.Definition) {
				d.Conditions = []advisor.ConditionRule{{ID: "broken", When: "risk ==", Weights: scoring.Weights{"Canary": 1}}}
			},
			field: "conditions[0]",
		},
		"empty expression": {
			mutate: func(d *advisor.Definition) {
				d.Conditions = []advisor.ConditionRule{{ID: "empty", When: "  "}}
			},
			field: "conditions[0]",
		},
		"undeclared tie category": {
			mutate: func(d *advisor.Definition) { d.Tie = "Hybrid" },
			field:  "tie",
		},
		"duplicate level": {
			mutate: func(d *advisor.Definition) {
				d.Levels = []scoring.Band{{Name: "High", Min: 50}, {Name: "High", Min: 10}}
			},
			field: "levels[1]",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			def := rolloutDefinition()
			tc.mutate(&def)

			_, err := advisor.New(def)
			if err == nil {
				t.Fatalf("expected error")
			}

			var cfgErr *advisor.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %T: %v", err, err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q (%v)", tc.field, cfgErr.Field, err)
			}
		})
	}
}

func TestRecommendResolvesTiesToTieCategory(t *testing.T) {
	def := rolloutDefinition()
	def.Categories = append(def.Categories, advisor.Category{Name: "Mixed"})
	def.Tie = "Mixed"

	a, err := advisor.New(def)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// Canary 3 against BlueGreen 2+3 is not a tie.
	result := a.Recommend(context.Background(), advisor.Request{
		Selections: map[string]string{"risk": "low", "cost": "high"},
	})
	if result.Recommendation.Category != "BlueGreen" || result.Tied != nil {
		t.Fatalf("expected BlueGreen without tie, got %+v", result)
	}

	// Equal risk weights tie Canary and BlueGreen.
	def.Options[0].Choices[0].Weights = scoring.Weights{"Canary": 2, "BlueGreen": 2}
	a, err = advisor.New(def)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	result = a.Recommend(context.Background(), advisor.Request{
		Selections: map[string]string{"risk": "low"},
	})
	if result.Recommendation.Category != "Mixed" {
		t.Fatalf("expected tie category, got %+v", result.Recommendation)
	}
	if len(result.Tied) != 2 || result.Tied[0] != "Canary" || result.Tied[1] != "BlueGreen" {
		t.Fatalf("expected Canary and BlueGreen tied, got %v", result.Tied)
	}
	if result.Recommendation.Confidence != 100 {
		t.Fatalf("expected the leaders' joint share, got %v", result.Recommendation.Confidence)
	}
}

func TestNewDoesNotAliasDefinition(t *testing.T) {
	def := rolloutDefinition()
	a, err := advisor.New(def)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	def.Options[0].Choices[0].Weights["AllAtOnce"] = 100
	def.Categories[0].Name = "Mutated"

	result := a.Recommend(context.Background(), advisor.Request{
		Selections: map[string]string{"risk": "low"},
	})
	if result.Recommendation.Category != "Canary" {
		t.Fatalf("caller mutation leaked into advisor: %+v", result.Recommendation)
	}
}

func computeDefinition() advisor.Definition {
	return advisor.Definition{
		ID: "compute",
		Categories: []advisor.Category{
			{Name: "EC2"},
			{Name: "Lambda"},
		},
		Options: []advisor.Option{
			{
				ID: "cost_sensitive",
				Choices: []advisor.Choice{
					{Value: "no"},
					{Value: "yes"},
				},
			},
		},
		Inputs: []advisor.Input{
			{ID: "minutes", Min: 0, Max: 1440, Default: 5},
		},
		Conditions: []advisor.ConditionRule{
			{ID: "long", When: "minutes > 900", Weights: scoring.Weights{"EC2": 2}},
			{ID: "short", When: "minutes <= 15", Weights: scoring.Weights{"Lambda": 3}},
			{When: `cost_sensitive == "yes" && minutes < 60`, Weights: scoring.Weights{"Lambda": 2}},
		},
	}
}

func TestConditionsUseInputsAndSelections(t *testing.T) {
	a, err := advisor.New(computeDefinition())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result := a.Recommend(context.Background(), advisor.Request{
		Selections: map[string]string{"cost_sensitive": "yes"},
		Values:     map[string]float64{"minutes": 10},
	})
	if result.Recommendation.Category != "Lambda" || result.Recommendation.Scores["Lambda"] != 5 {
		t.Fatalf("unexpected recommendation: %+v", result.Recommendation)
	}
	if len(result.Matched) != 2 || result.Matched[0] != "short" || result.Matched[1] != "compute_condition_2" {
		t.Fatalf("unexpected matched conditions: %v", result.Matched)
	}

	result = a.Recommend(context.Background(), advisor.Request{
		Values: map[string]float64{"minutes": 1000},
	})
	if result.Recommendation.Category != "EC2" {
		t.Fatalf("expected EC2 for long runs, got %+v", result.Recommendation)
	}
	if result.Error != nil {
		t.Fatalf("unexpected error: %v", result.Error)
	}
}

func TestConditionInputsAreClampedAndDefaulted(t *testing.T) {
	a, err := advisor.New(computeDefinition())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// Default of 5 minutes fits the short rule.
	result := a.Recommend(context.Background(), advisor.Request{})
	if len(result.Matched) != 1 || result.Matched[0] != "short" {
		t.Fatalf("expected default input to match short rule, got %v", result.Matched)
	}

	// 99999 clamps to 1440 and still counts as long.
	result = a.Recommend(context.Background(), advisor.Request{
		Values: map[string]float64{"minutes": 99999},
	})
	if len(result.Matched) != 1 || result.Matched[0] != "long" {
		t.Fatalf("expected clamped input to match long rule, got %v", result.Matched)
	}
}

func TestConditionRuntimeErrorsAreCollected(t *testing.T) {
	def := computeDefinition()
	def.Conditions = append(def.Conditions, advisor.ConditionRule{
		ID:      "type_mismatch",
		When:    `cost_sensitive > 3`,
		Weights: scoring.Weights{"EC2": 1},
	})

	a, err := advisor.New(def)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	result := a.Recommend(context.Background(), advisor.Request{
		Selections: map[string]string{"cost_sensitive": "no"},
		Values:     map[string]float64{"minutes": 10},
	})
	if result.Error == nil {
		t.Fatalf("expected runtime error to be reported")
	}
	if !strings.Contains(result.ErrorMessage, "type_mismatch") {
		t.Fatalf("expected error to name the condition, got %q", result.ErrorMessage)
	}
	if result.Recommendation.Category != "Lambda" {
		t.Fatalf("recommendation should survive condition errors, got %+v", result.Recommendation)
	}
}

func TestGradingUsesAttainablePoints(t *testing.T) {
	def := advisor.Definition{
		ID:         "maturity",
		Categories: []advisor.Category{{Name: "Maturity"}},
		Options: []advisor.Option{
			{ID: "vcs", Choices: []advisor.Choice{
				{Value: "none"},
				{Value: "git", Weights: scoring.Weights{"Maturity": 3}},
			}},
			{ID: "ci", Choices: []advisor.Choice{
				{Value: "none"},
				{Value: "full", Weights: scoring.Weights{"Maturity": 3}},
			}},
		},
		Levels: []scoring.Band{
			{Name: "Advanced", Min: 80},
			{Name: "Basic", Min: 40},
			{Name: "Initial", Min: 0},
		},
	}

	a, err := advisor.New(def)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if a.MaxPoints() != 6 {
		t.Fatalf("expected 6 attainable points, got %d", a.MaxPoints())
	}

	result := a.Recommend(context.Background(), advisor.Request{
		Selections: map[string]string{"vcs": "git", "ci": "none"},
	})
	if result.Grading == nil {
		t.Fatalf("expected grading")
	}
	if result.Grading.Percent != 50 || result.Grading.Level != "Basic" {
		t.Fatalf("unexpected grading: %+v", result.Grading)
	}
}

func TestRecommendLogsWhenLoggerConfigured(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	a, err := advisor.New(rolloutDefinition(), advisor.WithLogger(logger))
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	a.Recommend(context.Background(), advisor.Request{
		Selections: map[string]string{"risk": "high"},
	})

	out := buf.String()
	if !strings.Contains(out, `"advisor":"rollout"`) || !strings.Contains(out, `"category":"AllAtOnce"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestCatalogAccessors(t *testing.T) {
	a, err := advisor.New(rolloutDefinition())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	opt, ok := a.Option("risk")
	if !ok {
		t.Fatalf("expected risk option")
	}
	if got := opt.Values(); len(got) != 2 || got[0] != "low" || got[1] != "high" {
		t.Fatalf("unexpected values: %v", got)
	}
	if _, ok := opt.Choice("medium"); ok {
		t.Fatalf("medium should not be a choice")
	}

	defaults := a.Defaults()
	if defaults["risk"] != "low" || defaults["cost"] != "high" {
		t.Fatalf("unexpected defaults: %v", defaults)
	}
	if unknown := a.Validate(defaults); len(unknown) != 0 {
		t.Fatalf("defaults should validate, got %v", unknown)
	}

	if _, ok := a.Category("BlueGreen"); !ok {
		t.Fatalf("expected BlueGreen category")
	}
}
