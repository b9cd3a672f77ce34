package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"

	"github.com/dmitrijs2005/marinelog/internal/api"
	"github.com/dmitrijs2005/marinelog/internal/logging"
)

// Channel is the redis pub/sub channel shared by every server instance.
const Channel = "marinelog:record-changes"

// Redis publishes through redis pub/sub so that every server instance
// delivers the event to its own websocket subscribers.
type Redis struct {
	client *redis.Client
	hub    *Hub
	logger logging.Logger
}

func NewRedis(client *redis.Client, logger logging.Logger) *Redis {
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Redis{client: client, hub: NewHub(), logger: logger}
}

func (r *Redis) Publish(ctx context.Context, ev api.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := r.client.Publish(ctx, Channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

func (r *Redis) Subscribe(userID string) (<-chan api.ChangeEvent, func()) {
	return r.hub.Subscribe(userID)
}

// Start subscribes to the redis channel and relays its messages to local
// subscribers until ctx is done. It returns once the subscription is live.
func (r *Redis) Start(ctx context.Context) error {
	ps := r.client.Subscribe(ctx, Channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev api.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					r.logger.Warn(ctx, "dropping malformed change event", "error", err.Error())
					continue
				}
				r.hub.deliver(ev)
			}
		}
	}()
	return nil
}

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}
