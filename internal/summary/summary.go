package summary

import "github.com/netgrid-io/plangate/pkg/types"

// Summarize reduces a change set to aggregate counts. An empty or nil
// change set yields all-zero counts. Each change contributes to Total
// exactly once; a replace contributes to both ToCreate and ToDelete.
func Summarize(changes types.ChangeSet) types.ResourceSummary {
	var s types.ResourceSummary
	for _, c := range changes {
		s.Total++

		creates := c.Has(types.ActionCreate)
		deletes := c.Has(types.ActionDelete)
		if c.Has(types.ActionReplace) {
			creates = true
			deletes = true
		}

		if creates {
			s.ToCreate++
		}
		if deletes {
			s.ToDelete++
		}
		if c.Has(types.ActionUpdate) {
			s.ToUpdate++
		}
	}
	return s
}
