package presence

import "github.com/huddlenotify/huddlenotify/pkg/dom"

// LandmarkSelectors are tried in order; any match means a call is open.
var LandmarkSelectors = []string{
	`[data-qa*="huddle"]`,
	".c-huddle_sidebar",
	".c-huddle-sidebar",
}

// Result is the outcome of one presence check.
type Result struct {
	InCall   bool
	Changed  bool
	Selector string // landmark that matched, empty when not in a call
}

// Detector tracks the in-call level across checks.
type Detector struct {
	selectors []string
	inCall    bool
}

// NewDetector uses LandmarkSelectors unless selectors are given.
func NewDetector(selectors ...string) *Detector {
	if len(selectors) == 0 {
		selectors = LandmarkSelectors
	}
	return &Detector{selectors: selectors}
}

// IsInCall reports whether any landmark is present and which one matched
// first. Absence is a normal state.
func IsInCall(doc *dom.Document, selectors []string) (bool, string) {
	if doc == nil {
		return false, ""
	}
	for _, selector := range selectors {
		if doc.First(selector) != nil {
			return true, selector
		}
	}
	return false, ""
}

// Check updates the stored level from doc. Changed is set on both the
// entering and the leaving edge.
func (d *Detector) Check(doc *dom.Document) Result {
	inCall, selector := IsInCall(doc, d.selectors)
	changed := inCall != d.inCall
	d.inCall = inCall
	return Result{InCall: inCall, Changed: changed, Selector: selector}
}
