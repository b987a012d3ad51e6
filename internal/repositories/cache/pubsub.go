package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Envelope is the message format on every pub/sub channel.
type Envelope struct {
	Origin string          `json:"origin"`
	Event  string          `json:"event"`
	Room   string          `json:"room,omitempty"`
	Data   json.RawMessage `json:"data"`
}

type PubSub struct {
	client redis.UniversalClient
}

func NewPubSub(client redis.UniversalClient) *PubSub {
	return &PubSub{client: client}
}

func (p *PubSub) Publish(ctx context.Context, channel string, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	return p.client.Publish(ctx, channel, data).Err()
}

// Subscribe delivers envelopes until ctx is done. Malformed messages are
// logged and skipped.
func (p *PubSub) Subscribe(ctx context.Context, handle func(channel string, env Envelope), channels ...string) error {
	sub := p.client.Subscribe(ctx, channels...)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %v: %w", channels, err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("⚠️ dropping malformed message on %s: %v", msg.Channel, err)
				continue
			}
			handle(msg.Channel, env)
		}
	}
}
