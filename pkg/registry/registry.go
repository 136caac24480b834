package registry

// Registry holds the last speaking state seen for each participant id. It is
// not safe for concurrent use; one scanner owns it.
type Registry struct {
	states map[string]bool
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{states: make(map[string]bool)}
}

// Observe records the fresh state for id and reports a rising edge: the
// previous state (absent counts as silent) was false and the new one is true.
// The stored value is always overwritten.
func (r *Registry) Observe(id string, speaking bool) bool {
	was := r.states[id]
	r.states[id] = speaking
	return speaking && !was
}

// Speaking returns the stored state for id.
func (r *Registry) Speaking(id string) bool {
	return r.states[id]
}

// Clear forgets every participant.
func (r *Registry) Clear() {
	clear(r.states)
}

// Len returns the number of tracked participants.
func (r *Registry) Len() int {
	return len(r.states)
}

// SpeakingCount returns how many tracked participants are speaking.
func (r *Registry) SpeakingCount() int {
	n := 0
	for _, s := range r.states {
		if s {
			n++
		}
	}
	return n
}
