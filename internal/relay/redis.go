// Package relay fans room events out across server instances over Redis Pub/Sub.
//
// Every instance delivers its accepted-bid events to its own connections and
// publishes them to one channel. Events received on that channel from other
// instances are delivered to local connections as well.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"auction-engine/utils"

	"github.com/redis/go-redis/v9"
)

const defaultPublishTimeout = 2 * time.Second

// LocalEmitter delivers an event to the connections of this instance
type LocalEmitter interface {
	Emit(roomID, event string, payload any)
}

// Message is the Pub/Sub wire format
type Message struct {
	Origin string          `json:"origin"`
	Room   string          `json:"room"`
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
}

// Config holds the redis connection settings
type Config struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// RedisRelay implements the coordinator's Broadcaster on top of Redis Pub/Sub
type RedisRelay struct {
	client         *redis.Client
	channel        string
	origin         string
	local          LocalEmitter
	publishTimeout time.Duration

	mu         sync.Mutex
	running    bool
	subscribed atomic.Bool
}

// NewRedisRelay connects to redis and verifies the connection
func NewRedisRelay(ctx context.Context, cfg Config, local LocalEmitter) (*RedisRelay, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("relay: failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return NewRedisRelayWithClient(client, cfg.Channel, local), nil
}

// NewRedisRelayWithClient builds a relay over an existing client
func NewRedisRelayWithClient(client *redis.Client, channel string, local LocalEmitter) *RedisRelay {
	return &RedisRelay{
		client:         client,
		channel:        channel,
		origin:         utils.GenerateID(),
		local:          local,
		publishTimeout: defaultPublishTimeout,
	}
}

// Emit delivers the event to this instance's connections and publishes it for
// the other instances. Local delivery never depends on redis.
func (r *RedisRelay) Emit(roomID, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		utils.Error("relay: failed to encode payload", map[string]any{"room": roomID, "event": event, "error": err.Error()})
		return
	}
	r.local.Emit(roomID, event, json.RawMessage(data))

	msg, err := json.Marshal(Message{Origin: r.origin, Room: roomID, Event: event, Data: data})
	if err != nil {
		utils.Error("relay: failed to encode message", map[string]any{"room": roomID, "event": event, "error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), r.publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, msg).Err(); err != nil {
		utils.Error("relay: publish failed, other instances miss this event", map[string]any{
			"room":    roomID,
			"event":   event,
			"channel": r.channel,
			"error":   err.Error(),
		})
	}
}

// Subscribe delivers events published by other instances to local connections
// until ctx is done. It blocks and should be run in its own goroutine.
func (r *RedisRelay) Subscribe(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("relay: subscription already running")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.subscribed.Store(false)
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("relay: failed to subscribe to %s: %w", r.channel, err)
	}
	r.subscribed.Store(true)
	utils.Info("relay: subscribed", map[string]any{"channel": r.channel, "origin": r.origin})

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				utils.Warn("relay: channel closed", map[string]any{"channel": r.channel})
				return nil
			}
			r.handle(msg.Payload)
		}
	}
}

// Subscribed reports whether events from other instances are being received
func (r *RedisRelay) Subscribed() bool {
	return r.subscribed.Load()
}

// handle delivers one relayed message locally
func (r *RedisRelay) handle(payload string) {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		utils.Warn("relay: dropping malformed message", map[string]any{"error": err.Error()})
		return
	}
	if msg.Room == "" || msg.Event == "" {
		utils.Warn("relay: dropping message without room or event", map[string]any{"origin": msg.Origin})
		return
	}
	// own events were delivered locally by Emit
	if msg.Origin == r.origin {
		return
	}
	r.local.Emit(msg.Room, msg.Event, msg.Data)
}

// Close releases the redis client
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
