package watcher

import (
	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/pkg/classifier"
	"github.com/huddlenotify/huddlenotify/pkg/dom"
	"github.com/huddlenotify/huddlenotify/pkg/participant"
	"github.com/huddlenotify/huddlenotify/pkg/presence"
	"github.com/huddlenotify/huddlenotify/pkg/registry"
)

// VoiceStartFunc is called for every rising edge. It reports whether an
// event was emitted.
type VoiceStartFunc func(name string) bool

// ScanResult describes one pass over a document.
type ScanResult struct {
	InCall       bool
	Selector     string
	Participants []participant.Observation
	Rising       []string // names of participants that started speaking
	Emitted      int      // rising edges that survived the cooldown
}

// Scanner owns the presence level and the speaking registry. It is not safe
// for concurrent use.
type Scanner struct {
	presence   *presence.Detector
	registry   *registry.Registry
	classifier *classifier.Hybrid
	onStart    VoiceStartFunc
	logger     zerolog.Logger
}

func NewScanner(onStart VoiceStartFunc, logger zerolog.Logger) *Scanner {
	return &Scanner{
		presence:   presence.NewDetector(),
		registry:   registry.New(),
		classifier: classifier.NewHybrid(classifier.LabelStrategy{}, classifier.MicIconStrategy{}),
		onStart:    onStart,
		logger:     logger,
	}
}

// Scan checks presence, classifies every tile and fires onStart for each
// participant whose speaking state went from false to true. The registry is
// cleared whenever the in-call level changes.
func (s *Scanner) Scan(doc *dom.Document) ScanResult {
	p := s.presence.Check(doc)
	if p.Changed {
		s.registry.Clear()
		if p.InCall {
			s.logger.Info().Str("landmark", p.Selector).Msg("joined call")
		} else {
			s.logger.Info().Msg("left call")
		}
	}

	result := ScanResult{InCall: p.InCall, Selector: p.Selector}
	if !p.InCall {
		return result
	}

	for _, tile := range participant.Enumerate(doc) {
		verdict, ok := s.classifier.Classify(tile.Selection)
		if !ok {
			continue
		}

		obs := participant.Observation{
			ID:         tile.ID,
			Name:       verdict.Name,
			RawLabel:   verdict.Label,
			IsSpeaking: verdict.Speaking,
			Strategy:   verdict.Strategy,
		}
		result.Participants = append(result.Participants, obs)

		if !s.registry.Observe(obs.ID, obs.IsSpeaking) {
			continue
		}
		result.Rising = append(result.Rising, obs.Name)
		s.logger.Debug().Str("id", obs.ID).Str("participant", obs.Name).Str("strategy", obs.Strategy).Msg("started speaking")
		if s.onStart != nil && s.onStart(obs.Name) {
			result.Emitted++
		}
	}

	return result
}

// Tracked returns how many participants the registry holds.
func (s *Scanner) Tracked() int {
	return s.registry.Len()
}

// Speaking returns how many tracked participants are speaking.
func (s *Scanner) Speaking() int {
	return s.registry.SpeakingCount()
}

// Strategies names the classifier strategies in priority order.
func (s *Scanner) Strategies() []string {
	return s.classifier.Strategies()
}
