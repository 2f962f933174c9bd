package explain

import (
	"fmt"
	"strings"

	"github.com/netgrid-io/plangate/pkg/types"
)

// nextSteps is the fixed guidance table keyed by outcome. Guidance is
// selected, never composed per call, so identical outcomes always carry
// identical instructions.
var nextSteps = map[types.Outcome][]string{
	types.OutcomeAutoApprove: {
		"publish the plan artifacts for this site",
		"trigger apply with the recorded render run, site, and PR identifiers",
	},
	types.OutcomeRequireApproval: {
		"review the destructive changes listed in the resource summary",
		"resubmit with deletion_approved=true if the deletions are intended",
	},
	types.OutcomeDeny: {
		"address each violation listed in the decision",
		"re-run the evaluation after correcting the inputs",
	},
}

// NextSteps returns the guidance for an outcome. The result is a copy;
// callers may hold it inside an immutable Decision.
func NextSteps(outcome types.Outcome) []string {
	steps, ok := nextSteps[outcome]
	if !ok {
		return nil
	}
	out := make([]string, len(steps))
	copy(out, steps)
	return out
}

// Render produces the plain-text explanation artifact. Every line is
// derived from Decision fields, so the narrative cannot diverge from the
// structured document.
func Render(d types.Decision) string {
	var b strings.Builder

	fmt.Fprintf(&b, "policy decision for site %q\n", d.Context.Site)
	fmt.Fprintf(&b, "outcome: %s (allowed=%t approval_required=%t)\n", d.Outcome, d.Allowed, d.ApprovalRequired)
	fmt.Fprintf(&b, "reason: %s\n", d.Reason)
	fmt.Fprintf(&b, "evaluated at: %s\n", d.Timestamp)

	fmt.Fprintf(&b, "\nresource summary: %d total, %d to create, %d to update, %d to delete\n",
		d.ResourceSummary.Total, d.ResourceSummary.ToCreate, d.ResourceSummary.ToUpdate, d.ResourceSummary.ToDelete)

	fmt.Fprintf(&b, "\npolicies evaluated (%d):\n", len(d.PolicyResults))
	for _, r := range d.PolicyResults {
		status := "pass"
		if !r.Passed {
			status = "FAIL"
		}
		kind := "advisory"
		if r.Required {
			kind = "required"
		}
		fmt.Fprintf(&b, "  [%s] %s (%s)", status, r.PolicyName, kind)
		if r.Message != "" {
			fmt.Fprintf(&b, ": %s", r.Message)
		}
		b.WriteByte('\n')
	}

	if len(d.Violations) > 0 {
		fmt.Fprintf(&b, "\nviolations (%d):\n", len(d.Violations))
		for _, v := range d.Violations {
			fmt.Fprintf(&b, "  - [%s/%s] %s", v.Type, v.Severity, v.Message)
			if v.Resource != "" {
				fmt.Fprintf(&b, " (resource: %s)", v.Resource)
			}
			b.WriteByte('\n')
		}
	}

	fmt.Fprintf(&b, "\nnext steps:\n")
	for _, step := range d.NextSteps {
		fmt.Fprintf(&b, "  - %s\n", step)
	}

	return b.String()
}
