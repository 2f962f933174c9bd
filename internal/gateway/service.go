// Package gateway is the enforcement consumer of the decision engine: it
// persists Decisions per proposal, routes applies to protected or
// unprotected environments, and refuses applies whose re-derived Decision
// no longer matches the one recorded at plan time. Evaluation itself is
// pure and may run concurrently; only apply orchestration is serialized
// here.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/netgrid-io/plangate/internal/canonical"
	"github.com/netgrid-io/plangate/internal/config"
	"github.com/netgrid-io/plangate/internal/engine"
	"github.com/netgrid-io/plangate/internal/explain"
	"github.com/netgrid-io/plangate/internal/planfile"
	"github.com/netgrid-io/plangate/pkg/types"
)

var (
	ErrProposalNotFound = errors.New("proposal not found")
	ErrTamperSuspected  = errors.New("apply-time decision does not match the recorded plan-time decision")
)

// Routing is the advisory signal handed to the orchestrator: whether to
// publish plan artifacts and which execution environment an eventual
// apply should target. The gateway never mutates infrastructure itself.
type Routing struct {
	Publish     bool   `json:"publish"`
	Environment string `json:"environment"`
}

type Service struct {
	applyMu sync.Mutex

	eng   *engine.Engine
	store Store
	envs  config.EnvironmentsConfig
	now   func() time.Time
}

type ServiceOption func(*Service)

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func NewService(eng *engine.Engine, store Store, envs config.EnvironmentsConfig, opts ...ServiceOption) *Service {
	s := &Service{eng: eng, store: store, envs: envs, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Route derives the publication and environment signal from a Decision.
// approvalRequired alone picks the environment; only auto_approve
// publishes.
func (s *Service) Route(d types.Decision) Routing {
	r := Routing{Publish: d.Outcome == types.OutcomeAutoApprove}
	if d.ApprovalRequired {
		r.Environment = s.envs.Protected
	} else {
		r.Environment = s.envs.Unprotected
	}
	return r
}

type EvaluateResult struct {
	ProposalID  string         `json:"proposal_id"`
	State       ProposalState  `json:"state"`
	Fingerprint string         `json:"fingerprint"`
	Decision    types.Decision `json:"decision"`
	Routing     Routing        `json:"routing"`
	Explanation string         `json:"explanation"`
}

// Evaluate runs the full chain for a submitted document and records the
// outcome. Input faults become deny Decisions, not errors; an error is
// returned only for proposals whose state forbids re-evaluation.
func (s *Service) Evaluate(doc []byte) (EvaluateResult, error) {
	decision, planDigest := s.decide(doc)

	fingerprint, err := canonical.Fingerprint(decision)
	if err != nil {
		return EvaluateResult{}, fmt.Errorf("fingerprint decision: %w", err)
	}

	key := decision.Context.Site + "|" + planDigest
	now := s.now().UTC().Format(time.RFC3339)

	rec, ok := s.store.GetProposalByKey(key)
	if !ok {
		rec = ProposalRecord{
			ProposalID: uuid.NewString(),
			Key:        key,
			Site:       decision.Context.Site,
			PlanDigest: planDigest,
			State:      StatePending,
			CreatedAt:  now,
		}
	}

	state, err := Next(rec.State, decision.Outcome, EventEvaluate)
	if err != nil {
		return EvaluateResult{}, err
	}

	// Auto-approved proposals publish immediately; there is no separate
	// operator step between evaluation and artifact publication.
	if decision.Outcome == types.OutcomeAutoApprove {
		state, err = Next(state, decision.Outcome, EventPublish)
		if err != nil {
			return EvaluateResult{}, err
		}
	}

	body, err := json.Marshal(decision)
	if err != nil {
		return EvaluateResult{}, fmt.Errorf("marshal decision: %w", err)
	}

	rec.State = state
	rec.Outcome = string(decision.Outcome)
	rec.Fingerprint = fingerprint
	rec.DecisionJSON = body
	rec.UpdatedAt = now
	if err := s.store.PutProposal(rec); err != nil {
		return EvaluateResult{}, fmt.Errorf("store proposal: %w", err)
	}

	return EvaluateResult{
		ProposalID:  rec.ProposalID,
		State:       rec.State,
		Fingerprint: fingerprint,
		Decision:    decision,
		Routing:     s.Route(decision),
		Explanation: explain.Render(decision),
	}, nil
}

type ApplyResult struct {
	ProposalID  string        `json:"proposal_id"`
	State       ProposalState `json:"state"`
	Environment string        `json:"environment"`
}

// Apply re-derives the Decision from freshly fetched inputs and compares
// it, minus timestamp, with the plan-time record. A mismatch fails closed:
// the proposal moves to ApplyDenied and ErrTamperSuspected is returned.
// Applies are serialized across sites; evaluation purity makes the
// recompute itself safe to run anywhere.
func (s *Service) Apply(proposalID string, freshDoc []byte) (ApplyResult, error) {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	rec, ok := s.store.GetProposal(proposalID)
	if !ok {
		return ApplyResult{}, ErrProposalNotFound
	}

	if _, err := Next(rec.State, types.Outcome(rec.Outcome), EventApply); err != nil {
		return ApplyResult{}, err
	}

	fresh, _ := s.decide(freshDoc)
	fingerprint, err := canonical.Fingerprint(fresh)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("fingerprint decision: %w", err)
	}

	now := s.now().UTC().Format(time.RFC3339)

	if fingerprint != rec.Fingerprint {
		state, terr := Next(rec.State, fresh.Outcome, EventApplyDeny)
		if terr != nil {
			return ApplyResult{}, terr
		}
		rec.State = state
		rec.UpdatedAt = now
		if perr := s.store.PutProposal(rec); perr != nil {
			return ApplyResult{}, fmt.Errorf("store proposal: %w", perr)
		}
		return ApplyResult{ProposalID: rec.ProposalID, State: rec.State},
			fmt.Errorf("%w: recorded %s, recomputed %s", ErrTamperSuspected, rec.Fingerprint, fingerprint)
	}

	state, err := Next(rec.State, fresh.Outcome, EventApply)
	if err != nil {
		return ApplyResult{}, err
	}
	rec.State = state
	rec.UpdatedAt = now
	if err := s.store.PutProposal(rec); err != nil {
		return ApplyResult{}, fmt.Errorf("store proposal: %w", err)
	}

	return ApplyResult{
		ProposalID:  rec.ProposalID,
		State:       rec.State,
		Environment: s.Route(fresh).Environment,
	}, nil
}

// Decision returns the stored Decision for a proposal.
func (s *Service) Decision(proposalID string) (types.Decision, bool) {
	rec, ok := s.store.GetProposal(proposalID)
	if !ok {
		return types.Decision{}, false
	}
	var d types.Decision
	if err := json.Unmarshal(rec.DecisionJSON, &d); err != nil {
		return types.Decision{}, false
	}
	return d, true
}

// decide runs parse + evaluate for one document and returns the Decision
// with the plan section's digest (the stable half of the proposal key).
func (s *Service) decide(doc []byte) (types.Decision, string) {
	planDigest := canonical.DigestWithPrefix(doc)

	var envelope planfile.Document
	if err := json.Unmarshal(doc, &envelope); err == nil && envelope.Plan != nil {
		if digest, derr := canonical.DigestJSON(envelope.Plan); derr == nil {
			planDigest = digest
		}
	}

	changes, pctx, violations := planfile.ParseDocument(doc)
	if len(violations) > 0 {
		return s.eng.InputFailure(pctx, violations), planDigest
	}
	return s.eng.Evaluate(changes, pctx), planDigest
}
