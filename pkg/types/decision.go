package types

type Outcome string

const (
	OutcomeAutoApprove     Outcome = "auto_approve"
	OutcomeRequireApproval Outcome = "require_approval"
	OutcomeDeny            Outcome = "deny"
)

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

const (
	ViolationPolicyFailure = "policy_failure"
	ViolationInputError    = "input_error"
	ViolationRuleError     = "rule_error"
)

// RuleResult is the outcome of one named policy check.
type RuleResult struct {
	PolicyName string `json:"policy_name"`
	Passed     bool   `json:"passed"`
	Required   bool   `json:"required"`
	Message    string `json:"message,omitempty"`
}

type Violation struct {
	Type     string   `json:"type"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Resource string   `json:"resource,omitempty"`
}

// Decision is the structured verdict for one evaluation. It is produced
// fresh per call and never mutated afterwards; re-evaluation yields a new
// Decision compared by value with Timestamp excluded.
type Decision struct {
	Schema            string            `json:"schema"`
	Outcome           Outcome           `json:"outcome"`
	Allowed           bool              `json:"allowed"`
	ApprovalRequired  bool              `json:"approval_required"`
	Reason            string            `json:"reason"`
	Timestamp         string            `json:"timestamp"`
	PoliciesEvaluated []string          `json:"policies_evaluated"`
	PolicyResults     []RuleResult      `json:"policy_results"`
	ResourceSummary   ResourceSummary   `json:"resource_summary"`
	Context           ProvenanceContext `json:"context"`
	Violations        []Violation       `json:"violations,omitempty"`
	NextSteps         []string          `json:"next_steps"`
}
