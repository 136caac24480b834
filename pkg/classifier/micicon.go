package classifier

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/huddlenotify/huddlenotify/pkg/dom"
)

const (
	// MicIconSelector finds the microphone glyph inside a peer tile.
	MicIconSelector = `[data-qa="huddle_mic_icon"], .c-huddle_mic_icon, [data-qa*="microphone"]`

	// ComputedFillAttr is stamped on SVG shapes by the in-page observer with
	// the value of getComputedStyle(el).fill.
	ComputedFillAttr = "data-computed-fill"

	graphicSelector = "svg path, svg circle, svg rect"
)

var (
	mutedClassTokens  = []string{"muted", "is-muted", "c-huddle_mic--muted"}
	activeClassTokens = []string{"active_speaker", "is-speaking", "c-huddle_mic--active", "speaking"}
)

// ClassifyMicIcon decides speaking state from a microphone icon element.
// Checks run in a fixed order and the first one that fires decides:
// a mute marker always means silent, then an explicit active marker, then an
// active-speaker class token, then a non-idle glyph fill.
func ClassifyMicIcon(icon *goquery.Selection) bool {
	if icon == nil || icon.Length() == 0 {
		return false
	}

	if hasMuteMarker(icon) {
		return false
	}

	if dom.Attr(icon, "data-speaking") == "true" || dom.Attr(icon, "data-active") == "true" {
		return true
	}

	class := dom.Attr(icon, "class")
	for _, token := range activeClassTokens {
		if strings.Contains(class, token) {
			return true
		}
	}

	return hasNonIdleFill(icon)
}

func hasMuteMarker(icon *goquery.Selection) bool {
	if dom.Attr(icon, "data-muted") == "true" {
		return true
	}

	for _, class := range dom.Classes(icon) {
		for _, token := range mutedClassTokens {
			if class == token {
				return true
			}
		}
	}

	qa := strings.FieldsFunc(dom.Attr(icon, "data-qa"), func(r rune) bool {
		return r == '_' || r == '-'
	})
	for _, part := range qa {
		if part == "muted" {
			return true
		}
	}
	return false
}

func hasNonIdleFill(icon *goquery.Selection) bool {
	idle, _ := parseColor(IdleFill)

	found := false
	icon.Find(graphicSelector).EachWithBreak(func(_ int, shape *goquery.Selection) bool {
		c, ok := parseColor(shapeFill(shape))
		if !ok {
			return true
		}
		if !sameColor(c, idle) {
			found = true
			return false
		}
		return true
	})
	return found
}

// shapeFill prefers the rendered fill over authored values.
func shapeFill(shape *goquery.Selection) string {
	if v := dom.Attr(shape, ComputedFillAttr); v != "" {
		return v
	}
	if v := styleProperty(dom.Attr(shape, "style"), "fill"); v != "" {
		return v
	}
	return dom.Attr(shape, "fill")
}
