package mq

import (
	"context"
	"encoding/json"
	"log"

	"atelier/models"

	"github.com/redis/go-redis/v9"
)

// Channels
const (
	OrderEvents  = "order-placed"
	ReviewEvents = "review-events"
)

// Emitter is what feature packages publish through.
type Emitter interface {
	Emit(ctx context.Context, channel string, content models.Index)
}

type Bus struct {
	conn *redis.Client
}

func NewBus(conn *redis.Client) *Bus {
	return &Bus{conn: conn}
}

// Emit publishes an event. Publishing is fire-and-forget: failures are
// logged and never reach the caller.
func (b *Bus) Emit(ctx context.Context, channel string, content models.Index) {
	data, err := json.Marshal(content)
	if err != nil {
		log.Printf("[Emit] Failed to marshal event content: %v", err)
		return
	}
	if err := b.conn.Publish(context.WithoutCancel(ctx), channel, data).Err(); err != nil {
		log.Printf("[Emit] Failed to publish event to %s: %v", channel, err)
		return
	}
	log.Printf("[Emit] %s %s/%s published to %s", content.Method, content.EntityType, content.EntityId, channel)
}

// Handler processes one event.
type Handler func(ctx context.Context, event models.Index) error

// Listen subscribes to channel and runs handle for every message until ctx
// is cancelled. The ready channel, if not nil, is closed once the
// subscription is active.
func (b *Bus) Listen(ctx context.Context, name, channel string, handle Handler, ready chan<- struct{}) {
	sub := b.conn.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		log.Printf("[%s] subscribe %s failed: %v", name, channel, err)
		if ready != nil {
			close(ready)
		}
		return
	}
	if ready != nil {
		close(ready)
	}
	log.Printf("[%s] Listening on %s...", name, channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Printf("[%s] stopped", name)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event models.Index
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Printf("[%s] Failed to parse event: %v", name, err)
				continue
			}
			if err := handle(ctx, event); err != nil {
				log.Printf("[%s] %s %s failed: %v", name, event.Method, event.EntityId, err)
			}
		}
	}
}
