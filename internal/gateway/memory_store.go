package gateway

import "sync"

// InMemoryStore keeps proposal records with bounded retention: when the
// limit is reached, the oldest record is evicted first. A limit of zero
// disables eviction.
type InMemoryStore struct {
	mu sync.Mutex

	limit     int
	proposals map[string]ProposalRecord
	byKey     map[string]string
	order     []string
}

func NewInMemoryStore(limit int) *InMemoryStore {
	return &InMemoryStore{
		limit:     limit,
		proposals: make(map[string]ProposalRecord),
		byKey:     make(map[string]string),
	}
}

func (s *InMemoryStore) PutProposal(rec ProposalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.proposals[rec.ProposalID]; !exists {
		if s.limit > 0 && len(s.proposals) >= s.limit {
			s.evictOldest()
		}
		s.order = append(s.order, rec.ProposalID)
	}

	s.proposals[rec.ProposalID] = rec
	s.byKey[rec.Key] = rec.ProposalID
	return nil
}

func (s *InMemoryStore) GetProposal(proposalID string) (ProposalRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.proposals[proposalID]
	return rec, ok
}

func (s *InMemoryStore) GetProposalByKey(key string) (ProposalRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byKey[key]
	if !ok {
		return ProposalRecord{}, false
	}
	rec, ok := s.proposals[id]
	return rec, ok
}

func (s *InMemoryStore) ListProposals() []ProposalRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]ProposalRecord, 0, len(s.order))
	for _, id := range s.order {
		if rec, ok := s.proposals[id]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// evictOldest is called with the lock held.
func (s *InMemoryStore) evictOldest() {
	if len(s.order) == 0 {
		return
	}
	oldest := s.order[0]
	s.order = s.order[1:]

	if rec, ok := s.proposals[oldest]; ok {
		delete(s.proposals, oldest)
		if s.byKey[rec.Key] == oldest {
			delete(s.byKey, rec.Key)
		}
	}
}
