package gateway

import (
	"errors"
	"fmt"

	"github.com/netgrid-io/plangate/pkg/types"
)

type Event string

const (
	EventEvaluate  Event = "evaluate"
	EventPublish   Event = "publish"
	EventApply     Event = "apply"
	EventApplyDeny Event = "apply_deny"
)

var ErrInvalidTransition = errors.New("invalid proposal state transition")

// Next maps a proposal state and an event to the following state. No
// transition may skip Evaluated; publication requires an auto_approve
// outcome; apply outcomes are reachable only from Published. Evaluation
// is always re-enterable from Evaluated because resubmitted inputs
// produce a fresh Decision, never a mutation of the stored one.
func Next(current ProposalState, outcome types.Outcome, event Event) (ProposalState, error) {
	switch event {
	case EventEvaluate:
		if current == StatePending || current == StateEvaluated {
			return StateEvaluated, nil
		}
	case EventPublish:
		if current == StateEvaluated && outcome == types.OutcomeAutoApprove {
			return StatePublished, nil
		}
	case EventApply:
		if current == StatePublished {
			return StateApplied, nil
		}
	case EventApplyDeny:
		if current == StatePublished {
			return StateApplyDenied, nil
		}
	}
	return current, fmt.Errorf("%w: %s on %s (outcome %s)", ErrInvalidTransition, event, current, outcome)
}
