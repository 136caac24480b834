package dom

import "time"

// MutationKind mirrors MutationRecord.type.
type MutationKind string

const (
	ChildList     MutationKind = "childList"
	Attributes    MutationKind = "attributes"
	CharacterData MutationKind = "characterData"
)

// Mutation is one record of a mutation batch.
type Mutation struct {
	Kind      MutationKind `json:"type"`
	Attribute string       `json:"attributeName,omitempty"`
	Target    string       `json:"target,omitempty"`
}

// Batch is a group of mutations delivered together, with the document as it
// looked once the batch was observed.
type Batch struct {
	Mutations  []Mutation
	Document   *Document
	ReceivedAt time.Time
}

// ObserveOptions is the subscription filter applied to every batch.
type ObserveOptions struct {
	Subtree         bool
	ChildList       bool
	Attributes      bool
	AttributeFilter []string
}

// DefaultObserveOptions watches structure plus the attributes that carry
// call and speaking state.
func DefaultObserveOptions() ObserveOptions {
	return ObserveOptions{
		Subtree:         true,
		ChildList:       true,
		Attributes:      true,
		AttributeFilter: []string{"class", "data-qa", "aria-label"},
	}
}

// Accepts reports whether a single mutation passes the filter.
func (o ObserveOptions) Accepts(m Mutation) bool {
	switch m.Kind {
	case ChildList:
		return o.ChildList
	case Attributes:
		if !o.Attributes {
			return false
		}
		if len(o.AttributeFilter) == 0 {
			return true
		}
		for _, name := range o.AttributeFilter {
			if name == m.Attribute {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Filter returns the mutations of b that pass the filter.
func (o ObserveOptions) Filter(b Batch) []Mutation {
	var kept []Mutation
	for _, m := range b.Mutations {
		if o.Accepts(m) {
			kept = append(kept, m)
		}
	}
	return kept
}
