package mesh

import (
	"context"
	"encoding/json"
	"time"
)

const (
	TopicSessionOpened = "docproc.session.opened"
	TopicSessionClosed = "docproc.session.closed"
	TopicHistoryLogged = "docproc.history.logged"
)

type Event struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"ts"`
}

// NewEvent marshals payload into an event for topic.
func NewEvent(topic string, payload any) (Event, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Topic: topic, Payload: b, Timestamp: time.Now().UTC()}, nil
}

type Handler func(ctx context.Context, e Event)

type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(topic string, h Handler) (unsubscribe func(), err error)
	Close() error
}
