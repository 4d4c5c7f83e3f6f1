package chathub

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRelayChannel is the Redis channel change notifications travel on.
const DefaultRelayChannel = "kindred:changes"

// Relay shares change notifications between instances through Redis Pub/Sub.
// Every instance runs Relay.Run, which forwards received topics into its
// local Hub; writers call Relay.Notify instead of Hub.Notify.
type Relay struct {
	hub     *Hub
	rdb     *redis.Client
	channel string
	timeout time.Duration
}

func NewRelay(hub *Hub, rdb *redis.Client, channel string) *Relay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &Relay{hub: hub, rdb: rdb, channel: channel, timeout: 2 * time.Second}
}

// Notify publishes topic. If Redis is unreachable the local hub is notified
// directly so subscribers on this instance still converge.
func (r *Relay) Notify(topic string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.rdb.Publish(ctx, r.channel, topic).Err(); err != nil {
		log.Printf("WARNING: Failed to publish change for %s, notifying locally: %v", topic, err)
		r.hub.Notify(topic)
	}
}

// Run слухає Redis Pub/Sub, доки не скасовано ctx.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	log.Printf("INFO: Relay subscribed to %s", r.channel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.hub.Notify(msg.Payload)
		}
	}
}

var _ Notifier = (*Relay)(nil)
