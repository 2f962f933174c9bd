package gateway

type ProposalState string

const (
	StatePending     ProposalState = "pending"
	StateEvaluated   ProposalState = "evaluated"
	StatePublished   ProposalState = "published"
	StateApplied     ProposalState = "applied"
	StateApplyDenied ProposalState = "apply_denied"
)

// ProposalRecord is the persisted view of one (site, change-proposal)
// pair. DecisionJSON holds the latest Decision verbatim; Fingerprint is
// its timestamp-free identity used for the apply-time tamper check.
type ProposalRecord struct {
	ProposalID   string
	Key          string
	Site         string
	PlanDigest   string
	State        ProposalState
	Outcome      string
	Fingerprint  string
	DecisionJSON []byte
	CreatedAt    string
	UpdatedAt    string
}

type Store interface {
	PutProposal(rec ProposalRecord) error
	GetProposal(proposalID string) (ProposalRecord, bool)
	GetProposalByKey(key string) (ProposalRecord, bool)
	ListProposals() []ProposalRecord
}
