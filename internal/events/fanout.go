package events

import (
	"context"
	"encoding/json"
)

// Broadcaster pushes messages to connected clients.
type Broadcaster interface {
	Broadcast(msg []byte)
}

// FanoutPublisher forwards events to storage and broadcasts them.
type FanoutPublisher struct {
	storage     Publisher
	broadcaster Broadcaster
}

// NewFanoutPublisher constructs a publisher that fans out to storage and broadcaster.
// A nil storage only broadcasts.
func NewFanoutPublisher(storage Publisher, broadcaster Broadcaster) *FanoutPublisher {
	if storage == nil {
		storage = NoopPublisher{}
	}
	return &FanoutPublisher{storage: storage, broadcaster: broadcaster}
}

// Publish writes to storage then broadcasts the event as JSON.
func (p *FanoutPublisher) Publish(ctx context.Context, ev OrderEvent) error {
	if err := p.storage.Publish(ctx, ev); err != nil {
		return err
	}
	if p.broadcaster == nil {
		return nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.broadcaster.Broadcast(data)
	return nil
}
