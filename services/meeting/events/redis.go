package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/xilidan/meetings/topics"
)

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// RedisPublisher publishes each event to channel <prefix>.<event_type>.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	log    *slog.Logger
}

func NewRedisPublisher(client *redis.Client, prefix string, log *slog.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = topics.DefaultPrefix
	}
	return &RedisPublisher{
		client: client,
		prefix: prefix,
		log:    log.With(slog.String("component", "event_publisher")),
	}
}

// NewRedisPublisherFromConfig connects to Redis and verifies the connection.
func NewRedisPublisherFromConfig(ctx context.Context, cfg RedisConfig, log *slog.Logger) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisPublisher(client, cfg.ChannelPrefix, log), nil
}

func (p *RedisPublisher) Channel(eventType string) string {
	return topics.New(p.prefix, eventType).FullName()
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	channel := p.Channel(e.EventType)
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	p.log.Debug("event published",
		slog.String("channel", channel),
		slog.Int("payload_size", len(data)),
	)
	return nil
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
