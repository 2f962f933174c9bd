package engine

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/netgrid-io/plangate/pkg/types"
)

func fixedClock() func() time.Time {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return func() time.Time { return at }
}

func validContext() types.ProvenanceContext {
	return types.ProvenanceContext{
		ArtifactPath:        "artifacts/site-a/plan.json",
		Site:                "site-a",
		RenderRunID:         "render-4711",
		AttestationVerified: true,
		PRNumber:            "1",
		Approver:            "alice",
		ApprovedAt:          "2026-03-14T09:00:00Z",
	}
}

func creates(n int) types.ChangeSet {
	var cs types.ChangeSet
	for i := 0; i < n; i++ {
		cs = append(cs, types.ResourceChange{Address: "dns_record.a", Actions: []types.Action{types.ActionCreate}})
	}
	return cs
}

func TestEvaluateSafeCreateAutoApproves(t *testing.T) {
	e := New(DefaultRules(), WithClock(fixedClock()))

	d := e.Evaluate(creates(1), validContext())

	if d.Outcome != types.OutcomeAutoApprove {
		t.Fatalf("expected auto_approve, got %s (%s)", d.Outcome, d.Reason)
	}
	if !d.Allowed || d.ApprovalRequired {
		t.Fatalf("expected allowed without approval, got allowed=%t approval=%t", d.Allowed, d.ApprovalRequired)
	}
	if len(d.PolicyResults) != 4 {
		t.Fatalf("expected 4 policy results, got %d", len(d.PolicyResults))
	}
	if len(d.Violations) != 0 {
		t.Fatalf("expected no violations, got %+v", d.Violations)
	}
	if len(d.NextSteps) == 0 {
		t.Fatalf("expected next steps for auto_approve")
	}
}

func TestEvaluateUnapprovedDeleteRequiresApproval(t *testing.T) {
	e := New(DefaultRules(), WithClock(fixedClock()))
	changes := types.ChangeSet{{Address: "vlan.old", Actions: []types.Action{types.ActionDelete}}}

	d := e.Evaluate(changes, validContext())

	if d.Outcome != types.OutcomeRequireApproval {
		t.Fatalf("expected require_approval, got %s (%s)", d.Outcome, d.Reason)
	}
	if !d.Allowed || !d.ApprovalRequired {
		t.Fatalf("expected allowed with approval required, got allowed=%t approval=%t", d.Allowed, d.ApprovalRequired)
	}
}

func TestEvaluateApprovedDeleteAutoApproves(t *testing.T) {
	e := New(DefaultRules(), WithClock(fixedClock()))
	changes := types.ChangeSet{{Address: "vlan.old", Actions: []types.Action{types.ActionDelete}}}
	pctx := validContext()
	pctx.DeletionApproved = true

	d := e.Evaluate(changes, pctx)

	if d.Outcome != types.OutcomeAutoApprove {
		t.Fatalf("expected auto_approve, got %s (%s)", d.Outcome, d.Reason)
	}

	// The advisory gate still reports its failure; approval alone moves
	// the outcome past it.
	var gate *types.RuleResult
	for i := range d.PolicyResults {
		if d.PolicyResults[i].PolicyName == PolicyDestructiveChangeGate {
			gate = &d.PolicyResults[i]
		}
	}
	if gate == nil || gate.Passed {
		t.Fatalf("expected destructive gate to report failure, got %+v", gate)
	}
}

func TestEvaluateMissingAttestationDenies(t *testing.T) {
	e := New(DefaultRules(), WithClock(fixedClock()))
	pctx := validContext()
	pctx.AttestationVerified = false

	d := e.Evaluate(creates(1), pctx)

	if d.Outcome != types.OutcomeDeny {
		t.Fatalf("expected deny, got %s", d.Outcome)
	}
	if d.Allowed || d.ApprovalRequired {
		t.Fatalf("expected allowed=false approval=false, got allowed=%t approval=%t", d.Allowed, d.ApprovalRequired)
	}

	found := false
	for _, v := range d.Violations {
		if v.Type == types.ViolationPolicyFailure && v.Severity == types.SeverityHigh {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a high-severity policy violation, got %+v", d.Violations)
	}
}

func TestEvaluateEmptyChangeSet(t *testing.T) {
	e := New(DefaultRules(), WithClock(fixedClock()))

	d := e.Evaluate(types.ChangeSet{}, validContext())

	if d.Outcome != types.OutcomeAutoApprove {
		t.Fatalf("expected auto_approve, got %s (%s)", d.Outcome, d.Reason)
	}
	if d.ResourceSummary != (types.ResourceSummary{}) {
		t.Fatalf("expected zero summary, got %+v", d.ResourceSummary)
	}
}

func TestEvaluateEnumeratesEveryFailure(t *testing.T) {
	e := New(DefaultRules(), WithClock(fixedClock()))
	pctx := types.ProvenanceContext{Site: "site-a"} // everything missing

	d := e.Evaluate(creates(1), pctx)

	if d.Outcome != types.OutcomeDeny {
		t.Fatalf("expected deny, got %s", d.Outcome)
	}
	// attestation, provenance, and pr approval all fail at once.
	if len(d.Violations) != 3 {
		t.Fatalf("expected 3 violations, got %d: %+v", len(d.Violations), d.Violations)
	}
	if len(d.PolicyResults) != 4 {
		t.Fatalf("expected all 4 rules evaluated despite failures, got %d", len(d.PolicyResults))
	}
}

func TestEvaluateInvalidApprovedAtFailsProvenance(t *testing.T) {
	e := New(DefaultRules(), WithClock(fixedClock()))
	pctx := validContext()
	pctx.ApprovedAt = "yesterday"

	d := e.Evaluate(creates(1), pctx)

	if d.Outcome != types.OutcomeDeny {
		t.Fatalf("expected deny, got %s (%s)", d.Outcome, d.Reason)
	}
	for _, r := range d.PolicyResults {
		if r.PolicyName == PolicyProvenanceValidation && r.Passed {
			t.Fatalf("expected provenance_validation to fail")
		}
	}
}

type erroringRule struct{}

func (erroringRule) Name() string        { return "erroring_rule" }
func (erroringRule) Description() string { return "always errors" }
func (erroringRule) Required() bool      { return false }
func (erroringRule) Evaluate(Input) (types.RuleResult, error) {
	return types.RuleResult{}, errors.New("boom")
}

type panickingRule struct{}

func (panickingRule) Name() string        { return "panicking_rule" }
func (panickingRule) Description() string { return "always panics" }
func (panickingRule) Required() bool      { return false }
func (panickingRule) Evaluate(Input) (types.RuleResult, error) {
	panic("unreachable state")
}

type malformedRule struct{}

func (malformedRule) Name() string        { return "malformed_rule" }
func (malformedRule) Description() string { return "returns no policy name" }
func (malformedRule) Required() bool      { return false }
func (malformedRule) Evaluate(Input) (types.RuleResult, error) {
	return types.RuleResult{Passed: true}, nil
}

func TestEvaluateRuleFaultsDeny(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
	}{
		{"error return", erroringRule{}},
		{"panic", panickingRule{}},
		{"malformed result", malformedRule{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := New([]Rule{tc.rule}, WithClock(fixedClock()))
			d := e.Evaluate(nil, validContext())

			if d.Outcome != types.OutcomeDeny {
				t.Fatalf("expected deny for faulting rule, got %s", d.Outcome)
			}

			found := false
			for _, v := range d.Violations {
				if v.Type == types.ViolationRuleError {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected rule_error violation, got %+v", d.Violations)
			}

			// The fault is recorded as a failing required result even for
			// an advisory rule.
			if len(d.PolicyResults) != 1 || d.PolicyResults[0].Passed || !d.PolicyResults[0].Required {
				t.Fatalf("expected failing required result, got %+v", d.PolicyResults)
			}
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	e := New(DefaultRules(), WithClock(fixedClock()))
	changes := types.ChangeSet{
		{Address: "a", Actions: []types.Action{types.ActionReplace}},
		{Address: "b", Actions: []types.Action{types.ActionUpdate}},
	}
	pctx := validContext()

	first := e.Evaluate(changes, pctx)
	second := e.Evaluate(changes, pctx)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical decisions, got\n%+v\nvs\n%+v", first, second)
	}
}

func TestInputFailure(t *testing.T) {
	e := New(DefaultRules(), WithClock(fixedClock()))
	violations := []types.Violation{
		{Type: types.ViolationInputError, Severity: types.SeverityHigh, Message: "plan document is not valid JSON"},
		{Type: types.ViolationInputError, Severity: types.SeverityHigh, Message: "metadata is missing the artifact section"},
	}

	d := e.InputFailure(types.ProvenanceContext{Site: "site-a"}, violations)

	if d.Outcome != types.OutcomeDeny || d.Allowed {
		t.Fatalf("expected deny, got %+v", d)
	}
	if len(d.Violations) != 2 {
		t.Fatalf("expected both input violations preserved, got %+v", d.Violations)
	}
	if d.Reason == "" {
		t.Fatalf("expected aggregated reason")
	}
}
