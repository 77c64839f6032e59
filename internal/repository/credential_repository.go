package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/attendance-gate-api/internal/models"
)

const (
	credentialKeyPrefix  = "attendance:credentials:"
	maxCredentialHistory = 512
)

// RedisCredentialRepository keeps each session's credential history in a
// sorted set scored by issue time in microseconds.
type RedisCredentialRepository struct {
	client *redis.Client
}

// NewRedisCredentialRepository constructs a RedisCredentialRepository.
func NewRedisCredentialRepository(client *redis.Client) *RedisCredentialRepository {
	return &RedisCredentialRepository{client: client}
}

func credentialKey(sessionID string) string {
	return credentialKeyPrefix + sessionID
}

// Save stores cred and trims history older than retention.
func (r *RedisCredentialRepository) Save(ctx context.Context, cred models.RotatingCredential, retention time.Duration) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	key := credentialKey(cred.SessionID)
	cutoff := cred.IssuedAt.Add(-retention).UnixMicro()

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(cred.IssuedAt.UnixMicro()), Member: payload})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(cutoff, 10))
		pipe.ZRemRangeByRank(ctx, key, 0, -maxCredentialHistory-1)
		pipe.PExpire(ctx, key, retention)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save credential %s: %w", key, err)
	}
	return nil
}

// ListSince returns credentials issued at or after since, newest first.
func (r *RedisCredentialRepository) ListSince(ctx context.Context, sessionID string, since time.Time) ([]models.RotatingCredential, error) {
	key := credentialKey(sessionID)
	raw, err := r.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(since.UnixMicro(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list credentials %s: %w", key, err)
	}
	return decodeCredentials(raw)
}

// Latest returns the newest credential of a session or ErrNotFound.
func (r *RedisCredentialRepository) Latest(ctx context.Context, sessionID string) (*models.RotatingCredential, error) {
	key := credentialKey(sessionID)
	raw, err := r.client.ZRevRange(ctx, key, 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("redis latest credential %s: %w", key, err)
	}
	creds, err := decodeCredentials(raw)
	if err != nil {
		return nil, err
	}
	if len(creds) == 0 {
		return nil, ErrNotFound
	}
	return &creds[0], nil
}

func decodeCredentials(raw []string) ([]models.RotatingCredential, error) {
	out := make([]models.RotatingCredential, 0, len(raw))
	for _, item := range raw {
		var cred models.RotatingCredential
		if err := json.Unmarshal([]byte(item), &cred); err != nil {
			return nil, fmt.Errorf("unmarshal credential: %w", err)
		}
		out = append(out, cred)
	}
	return out, nil
}

// MemoryCredentialRepository keeps credential history in process memory,
// oldest first per session.
type MemoryCredentialRepository struct {
	mu      sync.RWMutex
	history map[string][]models.RotatingCredential
}

// NewMemoryCredentialRepository constructs an empty MemoryCredentialRepository.
func NewMemoryCredentialRepository() *MemoryCredentialRepository {
	return &MemoryCredentialRepository{history: make(map[string][]models.RotatingCredential)}
}

// Save appends cred and drops entries issued before cred.IssuedAt-retention.
func (r *MemoryCredentialRepository) Save(_ context.Context, cred models.RotatingCredential, retention time.Duration) error {
	cutoff := cred.IssuedAt.Add(-retention)
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.history[cred.SessionID][:0]
	for _, c := range r.history[cred.SessionID] {
		if !c.IssuedAt.Before(cutoff) {
			kept = append(kept, c)
		}
	}
	kept = append(kept, cred)
	if len(kept) > maxCredentialHistory {
		kept = kept[len(kept)-maxCredentialHistory:]
	}
	r.history[cred.SessionID] = kept
	return nil
}

// ListSince returns credentials issued at or after since, newest first.
func (r *MemoryCredentialRepository) ListSince(_ context.Context, sessionID string, since time.Time) ([]models.RotatingCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history := r.history[sessionID]
	out := make([]models.RotatingCredential, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].IssuedAt.Before(since) {
			continue
		}
		out = append(out, history[i])
	}
	return out, nil
}

// Latest returns the newest credential or ErrNotFound.
func (r *MemoryCredentialRepository) Latest(_ context.Context, sessionID string) (*models.RotatingCredential, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history := r.history[sessionID]
	if len(history) == 0 {
		return nil, ErrNotFound
	}
	latest := history[len(history)-1]
	return &latest, nil
}
