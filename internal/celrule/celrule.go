// Package celrule adapts operator-authored CEL expressions into engine
// rules. It exists so deployments can add policy checks through config
// without redeploying code; the native Go rules remain the baseline.
package celrule

import (
	"errors"
	"fmt"

	"github.com/google/cel-go/cel"

	"github.com/netgrid-io/plangate/internal/engine"
	"github.com/netgrid-io/plangate/pkg/types"
)

// Spec declares one expression rule. Expr must evaluate to a boolean over
// the variables `summary`, `context`, and `changes`.
type Spec struct {
	Name        string
	Description string
	Required    bool
	Expr        string
}

// Rule is a compiled CEL expression implementing engine.Rule. Compilation
// happens once at construction; evaluation reuses the cached program.
type Rule struct {
	spec Spec
	prg  cel.Program
}

// New compiles a Spec. A malformed expression is rejected here, at
// configuration time, rather than surfacing on every evaluation.
func New(spec Spec) (*Rule, error) {
	if spec.Name == "" {
		return nil, errors.New("cel rule requires a name")
	}
	if spec.Expr == "" {
		return nil, fmt.Errorf("cel rule %s requires an expression", spec.Name)
	}

	env, err := cel.NewEnv(
		cel.Variable("summary", cel.DynType),
		cel.Variable("context", cel.DynType),
		cel.Variable("changes", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel environment: %w", err)
	}

	ast, iss := env.Compile(spec.Expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compile cel rule %s: %w", spec.Name, iss.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program cel rule %s: %w", spec.Name, err)
	}

	return &Rule{spec: spec, prg: prg}, nil
}

// CompileAll builds engine rules from a spec list, in order.
func CompileAll(specs []Spec) ([]engine.Rule, error) {
	rules := make([]engine.Rule, 0, len(specs))
	for _, spec := range specs {
		rule, err := New(spec)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *Rule) Name() string        { return r.spec.Name }
func (r *Rule) Description() string { return r.spec.Description }
func (r *Rule) Required() bool      { return r.spec.Required }

func (r *Rule) Evaluate(in engine.Input) (types.RuleResult, error) {
	out, _, err := r.prg.Eval(activation(in))
	if err != nil {
		return types.RuleResult{}, fmt.Errorf("evaluate cel rule %s: %w", r.spec.Name, err)
	}

	passed, ok := out.Value().(bool)
	if !ok {
		return types.RuleResult{}, fmt.Errorf("cel rule %s returned %T, want bool", r.spec.Name, out.Value())
	}

	result := types.RuleResult{
		PolicyName: r.spec.Name,
		Passed:     passed,
		Required:   r.spec.Required,
	}
	if passed {
		result.Message = "expression satisfied"
	} else if r.spec.Description != "" {
		result.Message = r.spec.Description
	} else {
		result.Message = "expression not satisfied"
	}
	return result, nil
}

// activation exposes only materialized views of the input; rules never
// see mutable engine state.
func activation(in engine.Input) map[string]any {
	changes := make([]any, 0, len(in.Changes))
	for _, c := range in.Changes {
		actions := make([]any, 0, len(c.Actions))
		for _, a := range c.Actions {
			actions = append(actions, string(a))
		}
		changes = append(changes, map[string]any{
			"address": c.Address,
			"type":    c.Type,
			"actions": actions,
		})
	}

	return map[string]any{
		"summary": map[string]any{
			"total":     in.Summary.Total,
			"to_create": in.Summary.ToCreate,
			"to_update": in.Summary.ToUpdate,
			"to_delete": in.Summary.ToDelete,
		},
		"context": map[string]any{
			"artifact_path":        in.Context.ArtifactPath,
			"site":                 in.Context.Site,
			"render_run_id":        in.Context.RenderRunID,
			"attestation_verified": in.Context.AttestationVerified,
			"pr_number":            in.Context.PRNumber,
			"approver":             in.Context.Approver,
			"approved_at":          in.Context.ApprovedAt,
			"deletion_approved":    in.Context.DeletionApproved,
		},
		"changes": changes,
	}
}
