package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisSessionOptions configure a RedisSessionStore.
type RedisSessionOptions struct {
	// Prefix namespaces all keys, default "heirloom".
	Prefix string
	// TTL expires idle sessions. Zero keeps them forever.
	TTL time.Duration
	// MaxMessages caps the stored history per session. Zero means no cap.
	MaxMessages int
}

// RedisSessionStore keeps sessions in Redis: a hash per session under
// "{prefix}:session:{id}" and the history as a JSON list under
// "{prefix}:session:{id}:messages".
type RedisSessionStore struct {
	client      redis.UniversalClient
	prefix      string
	ttl         time.Duration
	maxMessages int64
}

type redisMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRedisSessionStore creates a SessionRepository backed by Redis.
func NewRedisSessionStore(client redis.UniversalClient, opts RedisSessionOptions) *RedisSessionStore {
	if opts.Prefix == "" {
		opts.Prefix = "heirloom"
	}
	return &RedisSessionStore{
		client:      client,
		prefix:      opts.Prefix,
		ttl:         opts.TTL,
		maxMessages: int64(opts.MaxMessages),
	}
}

func (r *RedisSessionStore) sessionKey(id string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, id)
}

func (r *RedisSessionStore) messagesKey(id string) string {
	return fmt.Sprintf("%s:session:%s:messages", r.prefix, id)
}

func (r *RedisSessionStore) CreateSession(ctx context.Context, session Session) (Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	session.UpdatedAt = session.CreatedAt

	key := r.sessionKey(session.ID)
	created, err := r.client.HSetNX(ctx, key, "persona", session.Persona).Result()
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	if !created {
		return Session{}, fmt.Errorf("failed to create session: %s already exists", session.ID)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"language":   session.Language,
			"created_at": session.CreatedAt.UTC().Format(time.RFC3339Nano),
			"updated_at": session.UpdatedAt.UTC().Format(time.RFC3339Nano),
		})
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("failed to create session: %w", err)
	}
	recordSessionCreated("redis")
	return session, nil
}

func (r *RedisSessionStore) GetSession(ctx context.Context, id string) (Session, error) {
	fields, err := r.client.HGetAll(ctx, r.sessionKey(id)).Result()
	if err != nil {
		return Session{}, fmt.Errorf("failed to get session: %w", err)
	}
	if len(fields) == 0 {
		return Session{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	session := Session{
		ID:       id,
		Persona:  fields["persona"],
		Language: fields["language"],
	}
	session.CreatedAt, _ = time.Parse(time.RFC3339Nano, fields["created_at"])
	session.UpdatedAt, _ = time.Parse(time.RFC3339Nano, fields["updated_at"])
	return session, nil
}

func (r *RedisSessionStore) AppendMessages(ctx context.Context, sessionID string, messages ...Message) error {
	key := r.sessionKey(sessionID)
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if len(messages) == 0 {
		return nil
	}

	now := time.Now()
	values := make([]interface{}, 0, len(messages))
	for _, m := range messages {
		createdAt := m.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		data, err := json.Marshal(redisMessage{Role: m.Role, Content: m.Content, CreatedAt: createdAt})
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		values = append(values, string(data))
	}

	listKey := r.messagesKey(sessionID)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, listKey, values...)
		if r.maxMessages > 0 {
			pipe.LTrim(ctx, listKey, -r.maxMessages, -1)
		}
		pipe.HSet(ctx, key, "updated_at", now.UTC().Format(time.RFC3339Nano))
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
			pipe.Expire(ctx, listKey, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	return nil
}

func (r *RedisSessionStore) GetHistory(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	items, err := r.client.LRange(ctx, r.messagesKey(sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	history := make([]Message, 0, len(items))
	for i, item := range items {
		var m redisMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to decode message %d: %w", i, err)
		}
		history = append(history, Message{
			ID:        int64(i + 1),
			SessionID: sessionID,
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return history, nil
}

func (r *RedisSessionStore) DeleteSession(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, r.sessionKey(id), r.messagesKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return nil
}

// Close closes the Redis client.
func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}
