package presence

import (
	"testing"

	"github.com/huddlenotify/huddlenotify/pkg/dom"
)

func parse(t *testing.T, body string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString("<html><body>" + body + "</body></html>")
	if err != nil {
		t.Fatalf("ParseString() error: %v", err)
	}
	return doc
}

func TestIsInCall(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		want     bool
		selector string
	}{
		{"data-qa substring", `<div data-qa="huddle_sidebar_footer"></div>`, true, `[data-qa*="huddle"]`},
		{"underscore class", `<div class="c-huddle_sidebar"></div>`, true, ".c-huddle_sidebar"},
		{"dash class", `<div class="c-huddle-sidebar"></div>`, true, ".c-huddle-sidebar"},
		{"first selector wins", `<div class="c-huddle_sidebar" data-qa="huddle"></div>`, true, `[data-qa*="huddle"]`},
		{"no landmark", `<div class="p-channel_sidebar"></div>`, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, selector := IsInCall(parse(t, tt.body), LandmarkSelectors)
			if got != tt.want || selector != tt.selector {
				t.Errorf("IsInCall() = (%v, %q), want (%v, %q)", got, selector, tt.want, tt.selector)
			}
		})
	}

	if got, _ := IsInCall(nil, LandmarkSelectors); got {
		t.Error("IsInCall(nil) = true, want false")
	}
}

func TestCheckReportsEdges(t *testing.T) {
	d := NewDetector()
	inCall := parse(t, `<div class="c-huddle_sidebar"></div>`)
	outside := parse(t, `<div></div>`)

	steps := []struct {
		doc         *dom.Document
		wantInCall  bool
		wantChanged bool
	}{
		{outside, false, false},
		{inCall, true, true},
		{inCall, true, false},
		{outside, false, true},
		{outside, false, false},
		{inCall, true, true},
	}

	for i, s := range steps {
		r := d.Check(s.doc)
		if r.InCall != s.wantInCall || r.Changed != s.wantChanged {
			t.Errorf("step %d: Check() = %+v, want InCall=%v Changed=%v", i, r, s.wantInCall, s.wantChanged)
		}
	}
}
