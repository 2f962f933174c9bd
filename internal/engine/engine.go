package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/netgrid-io/plangate/internal/explain"
	"github.com/netgrid-io/plangate/internal/summary"
	"github.com/netgrid-io/plangate/pkg/types"
)

const DecisionSchema = "plangate.decision.v1"

// Input is the materialized view every rule evaluates against. Rules see
// the change set, its derived summary, and the provenance context; nothing
// else, which keeps evaluation pure.
type Input struct {
	Changes types.ChangeSet
	Summary types.ResourceSummary
	Context types.ProvenanceContext
}

// Rule is one named policy check. Required rules deny the proposal on
// failure; advisory rules only inform the composer.
type Rule interface {
	Name() string
	Description() string
	Required() bool
	Evaluate(in Input) (types.RuleResult, error)
}

// Engine evaluates an ordered, injected rule set. It holds no mutable
// state, so one Engine may be shared across concurrent evaluations.
type Engine struct {
	rules []Rule
	now   func() time.Time
}

type Option func(*Engine)

// WithClock pins the timestamp source. Tests use it to make Decisions
// fully reproducible.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an Engine over the given rules. Rules run in the order
// given, unconditionally; there is no global registry.
func New(rules []Rule, opts ...Option) *Engine {
	e := &Engine{rules: rules, now: time.Now}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every rule against the change set and provenance context
// and composes a Decision. It never returns an error: rule faults become
// failing required results so a single pass surfaces every problem.
func (e *Engine) Evaluate(changes types.ChangeSet, pctx types.ProvenanceContext) types.Decision {
	in := Input{
		Changes: changes,
		Summary: summary.Summarize(changes),
		Context: pctx,
	}

	names := make([]string, 0, len(e.rules))
	results := make([]types.RuleResult, 0, len(e.rules))
	var violations []types.Violation

	for _, rule := range e.rules {
		names = append(names, rule.Name())
		result, violation := evalRule(rule, in)
		results = append(results, result)
		if violation != nil {
			violations = append(violations, *violation)
		}
	}

	return e.compose(in, names, results, violations)
}

// InputFailure builds the deny Decision for documents that failed
// decoding or schema validation. No rules run; the violations enumerate
// every input fault found.
func (e *Engine) InputFailure(pctx types.ProvenanceContext, violations []types.Violation) types.Decision {
	msgs := make([]string, 0, len(violations))
	for _, v := range violations {
		msgs = append(msgs, v.Message)
	}

	return types.Decision{
		Schema:            DecisionSchema,
		Outcome:           types.OutcomeDeny,
		Allowed:           false,
		ApprovalRequired:  false,
		Reason:            "invalid input: " + strings.Join(msgs, "; "),
		Timestamp:         e.now().UTC().Format(time.RFC3339),
		PoliciesEvaluated: []string{},
		PolicyResults:     []types.RuleResult{},
		Context:           pctx,
		Violations:        violations,
		NextSteps:         explain.NextSteps(types.OutcomeDeny),
	}
}

// evalRule shields the engine from a faulting rule implementation. A
// panic, an error return, or a result without a policy name all count as
// a failing required rule plus a rule_error violation.
func evalRule(rule Rule, in Input) (result types.RuleResult, violation *types.Violation) {
	failed := func(msg string) (types.RuleResult, *types.Violation) {
		return types.RuleResult{
				PolicyName: rule.Name(),
				Passed:     false,
				Required:   true,
				Message:    msg,
			}, &types.Violation{
				Type:     types.ViolationRuleError,
				Severity: types.SeverityHigh,
				Message:  msg,
			}
	}

	defer func() {
		if r := recover(); r != nil {
			result, violation = failed(fmt.Sprintf("policy %s panicked: %v", rule.Name(), r))
		}
	}()

	res, err := rule.Evaluate(in)
	if err != nil {
		return failed(fmt.Sprintf("policy %s failed to evaluate: %v", rule.Name(), err))
	}
	if res.PolicyName == "" {
		return failed(fmt.Sprintf("policy %s returned a malformed result", rule.Name()))
	}
	return res, nil
}

// compose applies the fixed precedence: required failures deny, an
// unapproved destructive plan requires approval, everything else is
// auto-approved. The destructive gate is advisory and never denies.
func (e *Engine) compose(in Input, names []string, results []types.RuleResult, violations []types.Violation) types.Decision {
	d := types.Decision{
		Schema:            DecisionSchema,
		Timestamp:         e.now().UTC().Format(time.RFC3339),
		PoliciesEvaluated: names,
		PolicyResults:     results,
		ResourceSummary:   in.Summary,
		Context:           in.Context,
		Violations:        violations,
	}

	var requiredFailures []types.RuleResult
	destructiveFailed := false
	for _, r := range results {
		if r.Required && !r.Passed {
			requiredFailures = append(requiredFailures, r)
		}
		if r.PolicyName == PolicyDestructiveChangeGate && !r.Passed {
			destructiveFailed = true
		}
	}

	switch {
	case len(requiredFailures) > 0:
		d.Outcome = types.OutcomeDeny
		d.Allowed = false
		d.ApprovalRequired = false

		msgs := make([]string, 0, len(requiredFailures))
		for _, f := range requiredFailures {
			msgs = append(msgs, f.Message)
			d.Violations = append(d.Violations, types.Violation{
				Type:     types.ViolationPolicyFailure,
				Severity: types.SeverityHigh,
				Message:  f.Message,
			})
		}
		d.Reason = strings.Join(msgs, "; ")

	case destructiveFailed && !in.Context.DeletionApproved:
		d.Outcome = types.OutcomeRequireApproval
		d.Allowed = true
		d.ApprovalRequired = true
		d.Reason = fmt.Sprintf("%d destructive change(s) require explicit deletion approval", in.Summary.ToDelete)

	default:
		d.Outcome = types.OutcomeAutoApprove
		d.Allowed = true
		d.ApprovalRequired = false
		d.Reason = "all required policies passed"
	}

	d.NextSteps = explain.NextSteps(d.Outcome)
	return d
}
