package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/backpackr/backpackr-server/internal/models"
)

// ErrUnknownState signals an OAuth state parameter that was never issued,
// already consumed, or expired.
var ErrUnknownState = errors.New("unknown or expired oauth state")

const (
	// oauthStateKeyPrefix is the Redis key prefix for OAuth state nonces.
	oauthStateKeyPrefix = "oauth_state:"
	// oauthStateTTL bounds how long a provider round-trip may take.
	oauthStateTTL = 10 * time.Minute
)

// StateStore issues and consumes the opaque state parameter that carries the
// intended principal kind across the provider redirect.
type StateStore interface {
	Issue(ctx context.Context, kind models.Kind) (string, error)
	Consume(ctx context.Context, state string) (models.Kind, error)
}

// RedisStateStore keeps states in Redis so any replica can consume them.
type RedisStateStore struct {
	client *redis.Client
}

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

// Issue stores a single-use nonce mapping to the intended kind.
func (s *RedisStateStore) Issue(ctx context.Context, kind models.Kind) (string, error) {
	state := uuid.NewString()
	if err := s.client.Set(ctx, oauthStateKeyPrefix+state, string(kind), oauthStateTTL).Err(); err != nil {
		return "", err
	}
	return state, nil
}

// Consume resolves and deletes a state nonce. A state can be consumed once.
func (s *RedisStateStore) Consume(ctx context.Context, state string) (models.Kind, error) {
	if state == "" {
		return "", ErrUnknownState
	}
	val, err := s.client.GetDel(ctx, oauthStateKeyPrefix+state).Result()
	if err == redis.Nil {
		return "", ErrUnknownState
	}
	if err != nil {
		return "", err
	}
	kind := models.Kind(val)
	if !kind.Valid() {
		return "", ErrUnknownState
	}
	return kind, nil
}
