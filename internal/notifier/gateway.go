package notifier

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/huddlenotify/huddlenotify/internal/dispatch"
	"github.com/huddlenotify/huddlenotify/internal/models"
)

const (
	voiceTitle    = "Slack ハドル 🎤"
	unknownName   = "誰か"
	fallbackTitle = "Slack ハドル - エラー"
	fallbackBody  = "通知システムでエラーが発生しました"
	testTitle     = "Slack ハドル 🎤 (テスト)"
	testName      = "テスト参加者"
)

// Gateway turns voice-activity messages into desktop notifications and
// handles clicks on them.
type Gateway struct {
	desktop  Desktop
	focuser  Focuser
	recorder Recorder
	logger   zerolog.Logger

	chime     Chime
	publisher Publisher

	mu     sync.Mutex
	active map[uint32]struct{}
}

func NewGateway(desktop Desktop, focuser Focuser, recorder Recorder, logger zerolog.Logger) *Gateway {
	return &Gateway{
		desktop:  desktop,
		focuser:  focuser,
		recorder: recorder,
		logger:   logger,
		active:   make(map[uint32]struct{}),
	}
}

// SetChime enables the extra chime for events with sound on.
func (g *Gateway) SetChime(c Chime) {
	g.chime = c
}

// SetPublisher forwards delivered events to live subscribers.
func (g *Gateway) SetPublisher(p Publisher) {
	g.publisher = p
}

// HandleVoiceStart implements dispatch.Sink.
func (g *Gateway) HandleVoiceStart(ctx context.Context, ev dispatch.VoiceStartEvent) error {
	return g.Deliver(ctx, FromVoiceStart(ev))
}

// Deliver shows the notification for msg and records it. When the
// notification cannot be created a silent error notification is attempted
// and the original error returned.
func (g *Gateway) Deliver(ctx context.Context, msg Message) error {
	if msg.Type != TypeVoiceActivity {
		return errors.Wrap(ErrUnknownMessage, msg.Type)
	}
	data := msg.Data

	event := &models.VoiceEvent{
		EventID:         uuid.NewString(),
		Timestamp:       data.Time(),
		ParticipantName: data.ParticipantName,
		SoundEnabled:    data.SoundEnabled,
		TabActive:       data.TabActive,
	}

	id, err := g.desktop.Notify(ctx, VoiceNotification(data))
	if err != nil {
		event.Error = err.Error()
		g.logger.Warn().Err(err).Msg("notification failed, sending fallback")
		g.sendFallback(ctx)
	} else {
		event.Delivered = true
		event.NotificationID = id
		g.track(id)
		if data.SoundEnabled && g.chime != nil {
			g.chime.Play()
		}
		g.logger.Info().
			Str("participant", displayName(data.ParticipantName)).
			Uint32("notification_id", id).
			Msg("voice activity notified")
	}

	if g.recorder != nil {
		if recErr := g.recorder.CreateVoiceEvent(event); recErr != nil {
			g.logger.Error().Err(recErr).Msg("failed to record voice event")
		}
	}

	if err != nil {
		return errors.Wrap(err, "failed to create notification")
	}
	if g.publisher != nil {
		g.publisher.Publish(TypeVoiceActivity, data)
	}
	return nil
}

// SendTest shows a sample notification without going through detection.
func (g *Gateway) SendTest(ctx context.Context, soundEnabled bool) error {
	id, err := g.desktop.Notify(ctx, Notification{
		Summary: testTitle,
		Body:    fmt.Sprintf("%sが話し始めました", testName),
		Urgency: UrgencyCritical,
		Silent:  !soundEnabled,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create test notification")
	}
	g.track(id)
	if soundEnabled && g.chime != nil {
		g.chime.Play()
	}
	return nil
}

// Run handles clicks until ctx is done or the click stream ends. A click on
// one of our notifications focuses the call page and dismisses it. Closed
// notifications stop being tracked.
func (g *Gateway) Run(ctx context.Context) error {
	clicks := g.desktop.Clicks()
	closed := g.desktop.Closed()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case id, ok := <-clicks:
			if !ok {
				return nil
			}
			if !g.forget(id) {
				continue
			}
			g.handleClick(ctx, id)
		case id, ok := <-closed:
			if !ok {
				closed = nil
				continue
			}
			if g.forget(id) {
				g.logger.Debug().Uint32("notification_id", id).Msg("notification closed")
			}
		}
	}
}

func (g *Gateway) handleClick(ctx context.Context, id uint32) {
	if g.focuser != nil {
		if err := g.focuser.Focus(ctx); err != nil {
			g.logger.Warn().Err(err).Msg("failed to focus call page")
		}
	}
	if err := g.desktop.Close(id); err != nil {
		g.logger.Debug().Err(err).Uint32("notification_id", id).Msg("failed to close notification")
	}
}

func (g *Gateway) sendFallback(ctx context.Context) {
	id, err := g.desktop.Notify(ctx, Notification{
		Summary: fallbackTitle,
		Body:    fallbackBody,
		Urgency: UrgencyLow,
		Silent:  true,
	})
	if err != nil {
		g.logger.Error().Err(err).Msg("fallback notification failed")
		return
	}
	g.track(id)
}

func (g *Gateway) track(id uint32) {
	g.mu.Lock()
	g.active[id] = struct{}{}
	g.mu.Unlock()
}

func (g *Gateway) forget(id uint32) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.active[id]; !ok {
		return false
	}
	delete(g.active, id)
	return true
}

// VoiceNotification builds the notification for one voice-start event.
func VoiceNotification(data VoiceActivity) Notification {
	return Notification{
		Summary: voiceTitle,
		Body:    fmt.Sprintf("%sが話し始めました", displayName(data.ParticipantName)),
		Urgency: UrgencyCritical,
		Silent:  !data.SoundEnabled,
	}
}

func displayName(name string) string {
	if name == "" {
		return unknownName
	}
	return name
}
