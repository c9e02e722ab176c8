// Package snapshot persists room and message state between restarts.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/voicerooms/internal/app"
	"github.com/dkeye/voicerooms/internal/domain"
)

// State is everything that survives a restart. Rooms are stored without
// members; connections do not outlive the process.
type State struct {
	SavedAt       time.Time             `json:"savedAt"`
	Rooms         []domain.Room         `json:"rooms"`
	Conversations []app.ConversationLog `json:"conversations"`
}

type Store interface {
	Save(ctx context.Context, s *State) error
	// Load returns nil without error when nothing was saved yet.
	Load(ctx context.Context) (*State, error)
	Close() error
}

type Config struct {
	RedisAddr string
	Password  string
	DB        int
	Key       string
	TTL       time.Duration
}

// NewStore connects to redis, falling back to a noop store when no address
// is configured or the server is unreachable.
func NewStore(ctx context.Context, cfg Config) Store {
	if cfg.RedisAddr == "" {
		log.Info().Str("module", "snapshot").Msg("snapshots disabled, using noop: empty redis addr")
		return noopStore{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Str("module", "snapshot").Str("addr", cfg.RedisAddr).Msg("snapshots disabled, using noop")
		_ = client.Close()
		return noopStore{}
	}
	log.Info().Str("module", "snapshot").Str("addr", cfg.RedisAddr).Str("key", cfg.Key).Msg("redis connected")
	return NewRedisStore(client, cfg.Key, cfg.TTL)
}

type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	if key == "" {
		key = "voicerooms:snapshot"
	}
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, st *State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("snapshot marshal: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("snapshot set: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*State, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot get: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("snapshot unmarshal: %w", err)
	}
	return &st, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }

type noopStore struct{}

func (noopStore) Save(context.Context, *State) error { return nil }

func (noopStore) Load(context.Context) (*State, error) { return nil, nil }

func (noopStore) Close() error { return nil }

// Mode reports the store kind for logging.
func Mode(s Store) string {
	switch s.(type) {
	case *RedisStore:
		return "redis"
	case noopStore:
		return "noop"
	default:
		return "unknown"
	}
}
