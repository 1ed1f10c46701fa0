package policy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Engine evaluates requests against a compiled, immutable document. It is
// safe for concurrent use.
type Engine struct {
	version    string
	statements []*compiledStatement
	trace      bool
	logger     *slog.Logger
}

// EngineOption configures compilation behaviour.
type EngineOption func(*engineConfig)

type engineConfig struct {
	trace  bool
	logger *slog.Logger
}

// WithTrace records a Step for every inspected statement on each Result.
func WithTrace() EngineOption {
	return func(cfg *engineConfig) {
		cfg.trace = true
	}
}

// WithLogger enables debug logging of every decision.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(cfg *engineConfig) {
		cfg.logger = logger
	}
}

type compiledStatement struct {
	index      int
	sid        string
	effect     Effect
	actions    []string
	resources  []string
	conditions []compiledCondition
}

// CompileDocument validates a document and converts it into an engine.
// Statements without a valid Effect or with unsupported condition operators
// yield a *MalformedPolicyError.
func CompileDocument(doc Document, opts ...EngineOption) (*Engine, error) {
	var cfg engineConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	engine := &Engine{
		version: doc.Version,
		trace:   cfg.trace,
		logger:  cfg.logger,
	}

	compiled := make([]*compiledStatement, 0, len(doc.Statement))
	for idx, stmt := range doc.Statement {
		cs, err := compileStatement(idx, stmt)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, cs)
	}

	engine.statements = compiled
	return engine, nil
}

func compileStatement(idx int, stmt Statement) (*compiledStatement, error) {
	malformed := func(format string, args ...any) error {
		return &MalformedPolicyError{Index: idx, Sid: stmt.Sid, Reason: fmt.Sprintf(format, args...)}
	}

	if stmt.Effect == "" {
		return nil, malformed("missing Effect")
	}
	if !stmt.Effect.IsValid() {
		return nil, malformed("invalid Effect %q (want %q or %q)", stmt.Effect, EffectAllow, EffectDeny)
	}

	cs := &compiledStatement{
		index:     idx,
		sid:       stmt.Sid,
		effect:    stmt.Effect,
		actions:   append([]string(nil), stmt.Action...),
		resources: append([]string(nil), stmt.Resource...),
	}

	ops := make([]string, 0, len(stmt.Condition))
	for op := range stmt.Condition {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		test, ok := operators[op]
		if !ok {
			return nil, malformed("unsupported condition operator %q (supported: %s)", op, strings.Join(SupportedOperators(), ", "))
		}
		keys := stmt.Condition[op]
		if len(keys) == 0 {
			return nil, malformed("condition operator %q has no keys", op)
		}

		names := make([]string, 0, len(keys))
		for key := range keys {
			names = append(names, key)
		}
		sort.Strings(names)

		for _, key := range names {
			cs.conditions = append(cs.conditions, compiledCondition{
				operator: op,
				key:      key,
				expected: append([]string(nil), keys[key]...),
				test:     test,
			})
		}
	}

	return cs, nil
}

// Version returns the document version tag.
func (e *Engine) Version() string { return e.version }

// Len returns the number of statements.
func (e *Engine) Len() int { return len(e.statements) }

// Evaluate applies explicit deny, then explicit allow, then implicit deny.
// The first applying Deny ends evaluation. Evaluate never fails.
func (e *Engine) Evaluate(ctx context.Context, req Request) Result {
	return e.evaluate(ctx, req, e.trace)
}

// Trace evaluates like Evaluate and always records the per-statement steps.
func (e *Engine) Trace(ctx context.Context, req Request) Result {
	return e.evaluate(ctx, req, true)
}

func (e *Engine) evaluate(ctx context.Context, req Request, trace bool) Result {
	result := Result{
		Allowed: false,
		Reason:  ReasonImplicitDeny,
	}

	var allow *compiledStatement

	for _, stmt := range e.statements {
		result.Evaluated++

		step := stmt.judge(req)
		if trace {
			result.Trace = append(result.Trace, step)
		}
		if !step.Applies {
			continue
		}

		if stmt.effect == EffectDeny {
			result.Reason = ReasonExplicitDeny
			result.MatchedStatement = intPtr(stmt.index)
			result.Sid = stmt.sid
			e.log(ctx, req, result)
			return result
		}

		if allow == nil {
			allow = stmt
		}
	}

	if allow != nil {
		result.Allowed = true
		result.Reason = ReasonExplicitAllow
		result.MatchedStatement = intPtr(allow.index)
		result.Sid = allow.sid
	}

	e.log(ctx, req, result)
	return result
}

func (s *compiledStatement) judge(req Request) Step {
	step := Step{
		Index:         s.index,
		Sid:           s.sid,
		Effect:        s.effect,
		ActionMatch:   matchAny(s.actions, req.Action),
		ResourceMatch: matchAny(s.resources, req.Resource),
		ConditionsMet: true,
	}

	for _, c := range s.conditions {
		if !c.holds(req.Context) {
			step.ConditionsMet = false
			break
		}
	}

	step.Applies = step.ActionMatch && step.ResourceMatch && step.ConditionsMet

	switch {
	case !step.ActionMatch || !step.ResourceMatch:
		step.Note = "action or resource does not match"
	case !step.ConditionsMet:
		step.Note = "conditions not satisfied"
	case s.effect == EffectDeny:
		step.Note = "explicit deny, evaluation stops"
	default:
		step.Note = "allow found, continue checking for denies"
	}

	return step
}

func (e *Engine) log(ctx context.Context, req Request, result Result) {
	if e.logger == nil {
		return
	}
	attrs := []any{
		"action", req.Action,
		"resource", req.Resource,
		"allowed", result.Allowed,
		"reason", result.Reason,
		"evaluated", result.Evaluated,
	}
	if result.MatchedStatement != nil {
		attrs = append(attrs, "statement", *result.MatchedStatement)
	}
	e.logger.DebugContext(ctx, "policy decision", attrs...)
}

// Evaluate compiles the document and evaluates a single request. The error
// is the construction error, if any; evaluation itself never fails.
func Evaluate(doc Document, req Request) (Result, error) {
	engine, err := CompileDocument(doc)
	if err != nil {
		return Result{}, err
	}
	return engine.Evaluate(context.Background(), req), nil
}

func intPtr(v int) *int {
	return &v
}
