package classifier

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/huddlenotify/huddlenotify/pkg/dom"
)

// NameSelector finds the visible name inside a peer tile.
const NameSelector = `[data-qa="huddle_participant_name"], .p-peer_tile__name`

// Verdict is the outcome of classifying one participant tile.
type Verdict struct {
	Speaking bool
	Name     string
	Label    string
	Strategy string
}

// Strategy classifies a participant tile from one kind of markup.
type Strategy interface {
	// Name identifies the strategy in logs.
	Name() string

	// Priority orders strategies, higher first.
	Priority() int

	// Applies reports whether the markup this strategy reads is present.
	Applies(tile *goquery.Selection) bool

	// Classify produces a verdict for a tile the strategy applies to.
	Classify(tile *goquery.Selection) Verdict
}

// LabelStrategy reads the tile's aria-label.
type LabelStrategy struct{}

func (LabelStrategy) Name() string  { return "aria-label" }
func (LabelStrategy) Priority() int { return 100 }

func (LabelStrategy) Applies(tile *goquery.Selection) bool {
	return dom.Attr(tile, "aria-label") != ""
}

func (s LabelStrategy) Classify(tile *goquery.Selection) Verdict {
	label := dom.Attr(tile, "aria-label")
	return Verdict{
		Speaking: IsSpeaking(label),
		Name:     ExtractName(label),
		Label:    label,
		Strategy: s.Name(),
	}
}

// MicIconStrategy inspects the microphone glyph when no label is rendered.
type MicIconStrategy struct{}

func (MicIconStrategy) Name() string  { return "mic-icon" }
func (MicIconStrategy) Priority() int { return 50 }

func (MicIconStrategy) Applies(tile *goquery.Selection) bool {
	return tile.Find(MicIconSelector).Length() > 0
}

func (s MicIconStrategy) Classify(tile *goquery.Selection) Verdict {
	name := strings.TrimSpace(tile.Find(NameSelector).First().Text())
	if name == "" {
		name = PlaceholderName
	}
	return Verdict{
		Speaking: ClassifyMicIcon(tile.Find(MicIconSelector).First()),
		Name:     name,
		Strategy: s.Name(),
	}
}

// Hybrid picks the highest-priority strategy whose markup is present.
type Hybrid struct {
	strategies []Strategy
}

// NewHybrid orders the given strategies by priority. With no arguments the
// label and mic-icon strategies are used.
func NewHybrid(strategies ...Strategy) *Hybrid {
	if len(strategies) == 0 {
		strategies = []Strategy{LabelStrategy{}, MicIconStrategy{}}
	}
	sorted := append([]Strategy(nil), strategies...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() > sorted[j].Priority()
	})
	return &Hybrid{strategies: sorted}
}

// Classify returns the verdict of the first applicable strategy. ok is false
// when the tile carries none of the markup any strategy understands.
func (h *Hybrid) Classify(tile *goquery.Selection) (Verdict, bool) {
	for _, s := range h.strategies {
		if s.Applies(tile) {
			return s.Classify(tile), true
		}
	}
	return Verdict{}, false
}

// Strategies lists the configured strategies in the order they are tried.
func (h *Hybrid) Strategies() []string {
	names := make([]string, 0, len(h.strategies))
	for _, s := range h.strategies {
		names = append(names, s.Name())
	}
	return names
}
