package engine

import (
	"fmt"
	"time"

	"github.com/netgrid-io/plangate/pkg/types"
)

const (
	PolicyAttestationVerification = "attestation_verification"
	PolicyProvenanceValidation    = "provenance_validation"
	PolicyPRApprovalCheck         = "pr_approval_check"
	PolicyDestructiveChangeGate   = "destructive_change_gate"
)

// DefaultRules is the baseline rule set, in evaluation order. Deployments
// that need a different set inject their own slice instead.
func DefaultRules() []Rule {
	return []Rule{
		AttestationRule{},
		ProvenanceRule{},
		PRApprovalRule{},
		DestructiveChangeRule{},
	}
}

// AttestationRule passes iff the artifact's attestation was verified by
// the external verifier before evaluation.
type AttestationRule struct{}

func (AttestationRule) Name() string        { return PolicyAttestationVerification }
func (AttestationRule) Description() string { return "artifact attestation must be verified" }
func (AttestationRule) Required() bool      { return true }

func (AttestationRule) Evaluate(in Input) (types.RuleResult, error) {
	result := types.RuleResult{
		PolicyName: PolicyAttestationVerification,
		Required:   true,
		Passed:     in.Context.AttestationVerified,
	}
	if result.Passed {
		result.Message = "attestation verified"
	} else {
		result.Message = "artifact attestation is not verified"
	}
	return result, nil
}

// ProvenanceRule checks that the render run is identified and that the
// approval timestamp, when present, is a valid RFC 3339 time.
type ProvenanceRule struct{}

func (ProvenanceRule) Name() string        { return PolicyProvenanceValidation }
func (ProvenanceRule) Description() string { return "render provenance must be complete and well-formed" }
func (ProvenanceRule) Required() bool      { return true }

func (ProvenanceRule) Evaluate(in Input) (types.RuleResult, error) {
	result := types.RuleResult{PolicyName: PolicyProvenanceValidation, Required: true}

	if in.Context.RenderRunID == "" {
		result.Message = "render run id is missing from provenance"
		return result, nil
	}
	if in.Context.ApprovedAt != "" {
		if _, err := time.Parse(time.RFC3339, in.Context.ApprovedAt); err != nil {
			result.Message = fmt.Sprintf("approved_at %q is not a valid timestamp", in.Context.ApprovedAt)
			return result, nil
		}
	}

	result.Passed = true
	result.Message = "provenance is complete"
	return result, nil
}

// PRApprovalRule passes iff the change request was reviewed: an approver
// and a PR number are both recorded.
type PRApprovalRule struct{}

func (PRApprovalRule) Name() string        { return PolicyPRApprovalCheck }
func (PRApprovalRule) Description() string { return "change request must carry an approver and PR number" }
func (PRApprovalRule) Required() bool      { return true }

func (PRApprovalRule) Evaluate(in Input) (types.RuleResult, error) {
	result := types.RuleResult{PolicyName: PolicyPRApprovalCheck, Required: true}

	switch {
	case in.Context.Approver == "":
		result.Message = "no approver recorded for the change request"
	case in.Context.PRNumber == "":
		result.Message = "no PR number recorded for the change request"
	default:
		result.Passed = true
		result.Message = fmt.Sprintf("approved by %s on PR %s", in.Context.Approver, in.Context.PRNumber)
	}
	return result, nil
}

// DestructiveChangeRule is advisory: it reports planned deletions but
// never denies on its own. The composer raises the approval bar when it
// fails without an explicit deletion approval.
type DestructiveChangeRule struct{}

func (DestructiveChangeRule) Name() string        { return PolicyDestructiveChangeGate }
func (DestructiveChangeRule) Description() string { return "plans that delete resources need explicit approval" }
func (DestructiveChangeRule) Required() bool      { return false }

func (DestructiveChangeRule) Evaluate(in Input) (types.RuleResult, error) {
	result := types.RuleResult{PolicyName: PolicyDestructiveChangeGate, Required: false}

	if in.Summary.ToDelete == 0 {
		result.Passed = true
		result.Message = "no destructive changes planned"
		return result, nil
	}

	result.Message = fmt.Sprintf("plan deletes or replaces %d resource(s)", in.Summary.ToDelete)
	return result, nil
}
