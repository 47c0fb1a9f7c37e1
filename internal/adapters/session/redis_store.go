package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/repositories"
	apperrors "github.com/nahid2887/today/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as a JSON snapshot under prefix+id with a
// sliding TTL, so replicas behind a load balancer share conversations.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	window int
	now    func() time.Time
}

var _ repositories.SessionStore = (*RedisStore)(nil)

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration, window int) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		window: window,
		now:    time.Now,
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *RedisStore) load(ctx context.Context, sessionID string) (*entities.SessionState, error) {
	data, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	return s.decode(sessionID, data, err)
}

// decode turns the result of a GET into a session, treating a missing key as
// a fresh session.
func (s *RedisStore) decode(sessionID string, data []byte, err error) (*entities.SessionState, error) {
	if errors.Is(err, redis.Nil) {
		return entities.NewSessionState(sessionID, s.now()), nil
	}
	if err != nil {
		return nil, apperrors.NewSessionIntegrityError("failed to read session "+sessionID, err)
	}

	var state entities.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, apperrors.NewSessionIntegrityError("failed to decode session "+sessionID, err)
	}
	if err := state.Validate(); err != nil {
		return nil, apperrors.NewSessionIntegrityError("session "+sessionID+" is corrupted", err)
	}
	if state.SessionID != sessionID {
		return nil, apperrors.NewSessionIntegrityError(
			fmt.Sprintf("session key %s holds session %s", sessionID, state.SessionID), nil)
	}
	return &state, nil
}

// GetOrCreate implements repositories.SessionStore.
func (s *RedisStore) GetOrCreate(ctx context.Context, sessionID string) (*entities.SessionState, error) {
	if sessionID == "" {
		return nil, apperrors.NewValidationError("session id is required")
	}
	return s.load(ctx, sessionID)
}

// Update implements repositories.SessionStore. The read-apply-write runs
// under WATCH so turns from other replicas on the same session are never
// overwritten; a conflicting write restarts the turn on the fresh state.
func (s *RedisStore) Update(ctx context.Context, sessionID string, turn entities.TurnUpdate) (*entities.SessionState, error) {
	if sessionID == "" {
		return nil, apperrors.NewValidationError("session id is required")
	}
	key := s.key(sessionID)

	var state *entities.SessionState
	apply := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		current, err := s.decode(sessionID, data, err)
		if err != nil {
			return err
		}
		current.ApplyTurn(turn, s.window, s.now())
		encoded, err := json.Marshal(current)
		if err != nil {
			return apperrors.NewSessionIntegrityError("failed to encode session "+sessionID, err)
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, encoded, s.ttl)
			return nil
		}); err != nil {
			return err
		}
		state = current
		return nil
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, apply, key)
		if err == nil {
			return state, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				return nil, err
			}
			return nil, apperrors.NewSessionIntegrityError("failed to write session "+sessionID, err)
		}
		select {
		case <-ctx.Done():
			return nil, apperrors.NewSessionIntegrityError("session update for "+sessionID+" cancelled", ctx.Err())
		case <-time.After(conflictBackoff(attempt)):
		}
	}
	return nil, apperrors.NewSessionIntegrityError(
		fmt.Sprintf("session %s kept changing during %d update attempts", sessionID, maxUpdateAttempts), redis.TxFailedErr)
}

// maxUpdateAttempts bounds optimistic retries when replicas race on a session.
const maxUpdateAttempts = 100

func conflictBackoff(attempt int) time.Duration {
	d := time.Millisecond << min(attempt, 4)
	return d/2 + rand.N(d/2+1)
}

// Reset implements repositories.SessionStore.
func (s *RedisStore) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return apperrors.NewValidationError("session id is required")
	}
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return apperrors.NewSessionIntegrityError("failed to reset session "+sessionID, err)
	}
	return nil
}
