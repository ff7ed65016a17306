package service

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/shortng/internal/app/model"
)

// SaveEventPublisher publishes save events to NATS JetStream
type SaveEventPublisher struct {
	js nats.JetStreamContext
}

// NewSaveEventPublisher creates a new save event publisher
func NewSaveEventPublisher(js nats.JetStreamContext) *SaveEventPublisher {
	return &SaveEventPublisher{js: js}
}

// Publish publishes a save event to the stream
func (p *SaveEventPublisher) Publish(ctx context.Context, event model.SaveEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.SaveStreamSubject, data, nats.Context(ctx), nats.MsgId(event.ID))
	return err
}
