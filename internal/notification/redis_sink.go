package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// listPusher is the subset of redis.Cmdable the sink needs.
type listPusher interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
}

// RedisSink pushes JSON messages onto a Redis list for a downstream mailer.
type RedisSink struct {
	client listPusher
	key    string
}

func NewRedisSink(client listPusher, key string) *RedisSink {
	return &RedisSink{client: client, key: key}
}

func (s *RedisSink) Send(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notification: encode: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, payload).Err(); err != nil {
		return fmt.Errorf("notification: rpush %s: %w", s.key, err)
	}
	return nil
}
