package types

type Action string

const (
	ActionCreate  Action = "create"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionReplace Action = "replace"
	ActionNoop    Action = "no-op"
)

// ResourceChange is one planned mutation from the normalized plan document.
// A replace is semantically a delete plus a create of the same address.
type ResourceChange struct {
	Address string   `json:"address"`
	Type    string   `json:"type"`
	Actions []Action `json:"actions"`
}

func (c ResourceChange) Has(action Action) bool {
	for _, a := range c.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Destructive reports whether the change deletes or replaces its resource.
func (c ResourceChange) Destructive() bool {
	return c.Has(ActionDelete) || c.Has(ActionReplace)
}

type ChangeSet []ResourceChange

// ResourceSummary is derived from a ChangeSet, never set independently.
// Total counts each change once; a replace counts toward both ToCreate
// and ToDelete.
type ResourceSummary struct {
	Total    int `json:"total"`
	ToCreate int `json:"to_create"`
	ToUpdate int `json:"to_update"`
	ToDelete int `json:"to_delete"`
}
