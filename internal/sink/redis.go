package sink

import (
	"context"
	"fmt"

	"github.com/liuscraft/orion-voice/internal/voice"
	"github.com/redis/go-redis/v9"
)

// RedisConfig Redis Pub/Sub 投递配置
type RedisConfig struct {
	Addr     string
	Username string
	Password string
	DB       int
	Channel  string
}

type redisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisPublisher 所有事件发布到同一个频道，事件名在 Envelope 中
type RedisPublisher struct {
	channel string
	client  redisClient
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return newRedisPublisher(cfg.Channel, rdb), nil
}

func newRedisPublisher(channel string, client redisClient) *RedisPublisher {
	if channel == "" {
		channel = "orion-voice-events"
	}
	return &RedisPublisher{channel: channel, client: client}
}

func (p *RedisPublisher) Name() string {
	return "redis"
}

func (p *RedisPublisher) Publish(ctx context.Context, _ voice.EventName, data []byte) error {
	return p.client.Publish(ctx, p.channel, data).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
