package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/platinummonkey/idsync/pkg/identity"
	"github.com/platinummonkey/idsync/pkg/notify"
)

// NewRedisClient parses url, applies connection timeouts and pings the server
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// RedisStore keeps sessions in Redis so they survive restarts and are shared
// across replicas.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a Redis session store
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: "idsync:session",
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) key(id string) string {
	return fmt.Sprintf("%s:%s", s.prefix, id)
}

func (s *RedisStore) flashKey(id string) string {
	return fmt.Sprintf("%s:%s:flash", s.prefix, id)
}

// Create stores a new session for claims
func (s *RedisStore) Create(ctx context.Context, claims identity.Claims) (*Session, error) {
	sess := newSession(claims, s.now(), s.ttl)

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.client.Set(ctx, s.key(sess.ID), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	return sess, nil
}

// Get loads a session. Corrupt entries are deleted and reported as not found.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		s.client.Del(ctx, s.key(id), s.flashKey(id))
		return nil, ErrNotFound
	}

	return &sess, nil
}

// Delete removes the session and its flash queue
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id), s.flashKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PushFlash appends a notice to the session's flash queue
func (s *RedisStore) PushFlash(ctx context.Context, id string, notice notify.Notice) error {
	data, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.flashKey(id), data)
	pipe.Expire(ctx, s.flashKey(id), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push flash: %w", err)
	}
	return nil
}

// PopFlash returns and clears the session's queued notices atomically
func (s *RedisStore) PopFlash(ctx context.Context, id string) ([]notify.Notice, error) {
	pipe := s.client.TxPipeline()
	items := pipe.LRange(ctx, s.flashKey(id), 0, -1)
	pipe.Del(ctx, s.flashKey(id))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to pop flash: %w", err)
	}

	notices := make([]notify.Notice, 0, len(items.Val()))
	for _, item := range items.Val() {
		var n notify.Notice
		if err := json.Unmarshal([]byte(item), &n); err != nil {
			continue
		}
		notices = append(notices, n)
	}
	return notices, nil
}
