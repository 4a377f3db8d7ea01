package sessionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"robopilot/internal/models"
)

const defaultPrefix = "robopilot:session:"

// Redis mirrors a session into a Redis list (one JSON message per entry)
// and a summary hash.
type Redis struct {
	client    *backend.Client
	sessionID string
	prefix    string
	ttl       time.Duration
}

type Option func(*Redis)

// WithTTL sets the expiration for session keys.
func WithTTL(ttl time.Duration) Option {
	return func(r *Redis) {
		r.ttl = ttl
	}
}

// WithPrefix sets the key prefix for sessions.
func WithPrefix(prefix string) Option {
	return func(r *Redis) {
		r.prefix = prefix
	}
}

// NewRedis creates a sink for one session on an existing client. The
// client stays owned by the caller.
func NewRedis(client *backend.Client, sessionID string, opts ...Option) *Redis {
	r := &Redis{
		client:    client,
		sessionID: sessionID,
		prefix:    defaultPrefix,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) messagesKey() string {
	return r.prefix + r.sessionID + ":messages"
}

func (r *Redis) summaryKey() string {
	return r.prefix + r.sessionID + ":summary"
}

func (r *Redis) Write(ctx context.Context, m models.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, r.messagesKey(), data)
	if r.ttl > 0 {
		pipe.Expire(ctx, r.messagesKey(), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis session log: %w", err)
	}
	return nil
}

func (r *Redis) Close(ctx context.Context, s models.Summary) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, r.summaryKey(), map[string]any{
		"used_tokens": s.UsedTokens,
		"model":       s.Model,
		"closed_at":   time.Now().Unix(),
	})
	if r.ttl > 0 {
		pipe.Expire(ctx, r.summaryKey(), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis session summary: %w", err)
	}
	return nil
}

// Messages reads back the messages stored for the session.
func (r *Redis) Messages(ctx context.Context) ([]models.Message, error) {
	raw, err := r.client.LRange(ctx, r.messagesKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis session log: %w", err)
	}
	out := make([]models.Message, 0, len(raw))
	for _, item := range raw {
		var m models.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}
