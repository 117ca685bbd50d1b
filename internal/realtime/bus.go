package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cascadefinds/comms/internal/models"
)

// channelPrefix namespaces the pub/sub topics so one Redis instance can be
// shared with other services.
const channelPrefix = "comms:channel:"

// Event is the wire format pushed to websocket clients and across Redis.
type Event struct {
	Type      string          `json:"type"`
	ChannelID uuid.UUID       `json:"channel_id"`
	Message   *models.Message `json:"message,omitempty"`
}

// Bus bridges message events over Redis pub/sub so every server instance
// sees every send, regardless of which instance accepted it. The publisher
// half satisfies the message service's EventPublisher.
type Bus struct {
	client *redis.Client
	logger *zap.Logger
}

func NewBus(ctx context.Context, redisURL string, logger *zap.Logger) (*Bus, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return &Bus{client: client, logger: logger}, nil
}

// PublishMessage pushes a new-message event onto the channel's topic.
func (b *Bus) PublishMessage(ctx context.Context, msg *models.Message) error {
	payload, err := json.Marshal(Event{
		Type:      "message.created",
		ChannelID: msg.ChannelID,
		Message:   msg,
	})
	if err != nil {
		return fmt.Errorf("encoding message event: %w", err)
	}
	if err := b.client.Publish(ctx, channelPrefix+msg.ChannelID.String(), payload).Err(); err != nil {
		return fmt.Errorf("publishing message event: %w", err)
	}
	return nil
}

// Subscribe listens on every channel topic and forwards each event's raw
// payload to the hub room for its channel. Blocks until ctx is cancelled.
func (b *Bus) Subscribe(ctx context.Context, hub *Hub) {
	sub := b.client.PSubscribe(ctx, channelPrefix+"*")
	defer func() { _ = sub.Close() }()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			channelID, err := uuid.Parse(strings.TrimPrefix(msg.Channel, channelPrefix))
			if err != nil {
				b.logger.Warn("dropping event with bad topic", zap.String("topic", msg.Channel))
				continue
			}
			hub.Broadcast(channelID, []byte(msg.Payload))
		}
	}
}

// Health reports whether Redis is reachable.
func (b *Bus) Health(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Bus) Close() error {
	return b.client.Close()
}
