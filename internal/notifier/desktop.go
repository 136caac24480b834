package notifier

import (
	"context"

	"github.com/huddlenotify/huddlenotify/internal/models"
)

type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification is a desktop notification request.
type Notification struct {
	Summary string
	Body    string
	Urgency Urgency
	Silent  bool
}

// Desktop shows notifications and reports clicks on them and their
// closing.
type Desktop interface {
	Notify(ctx context.Context, n Notification) (uint32, error)
	Close(id uint32) error
	Clicks() <-chan uint32
	Closed() <-chan uint32
}

// Focuser brings the call page to the front.
type Focuser interface {
	Focus(ctx context.Context) error
}

// Recorder stores handled events.
type Recorder interface {
	CreateVoiceEvent(event *models.VoiceEvent) error
}

// Publisher forwards events to live subscribers.
type Publisher interface {
	Publish(msgType string, data any)
}

// Chime plays a short sound.
type Chime interface {
	Play()
}
