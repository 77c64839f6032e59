package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-gate-api/internal/models"
)

type credentialStore interface {
	Save(ctx context.Context, cred models.RotatingCredential, retention time.Duration) error
	ListSince(ctx context.Context, sessionID string, since time.Time) ([]models.RotatingCredential, error)
	Latest(ctx context.Context, sessionID string) (*models.RotatingCredential, error)
}

func newRedisCredentialRepo(t *testing.T) *RedisCredentialRepository {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisCredentialRepository(client)
}

func TestCredentialRepositories(t *testing.T) {
	stores := map[string]func(t *testing.T) credentialStore{
		"memory": func(*testing.T) credentialStore { return NewMemoryCredentialRepository() },
		"redis":  func(t *testing.T) credentialStore { return newRedisCredentialRepo(t) },
	}

	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := build(t)
			base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
			retention := time.Minute

			_, err := store.Latest(ctx, "s1")
			assert.ErrorIs(t, err, ErrNotFound)

			for i, value := range []string{"0001", "0002", "0003"} {
				cred := models.RotatingCredential{SessionID: "s1", Value: value, Kind: models.CredentialKindCode, IssuedAt: base.Add(time.Duration(i) * 15 * time.Second)}
				require.NoError(t, store.Save(ctx, cred, retention))
			}
			require.NoError(t, store.Save(ctx, models.RotatingCredential{SessionID: "s2", Value: "9999", IssuedAt: base}, retention))

			latest, err := store.Latest(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "0003", latest.Value)
			assert.True(t, latest.IssuedAt.Equal(base.Add(30*time.Second)))

			recent, err := store.ListSince(ctx, "s1", base.Add(15*time.Second))
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "0003", recent[0].Value)
			assert.Equal(t, "0002", recent[1].Value)

			// A save two minutes later prunes everything outside the retention window.
			require.NoError(t, store.Save(ctx, models.RotatingCredential{SessionID: "s1", Value: "0004", IssuedAt: base.Add(3 * time.Minute)}, retention))
			all, err := store.ListSince(ctx, "s1", time.Time{})
			require.NoError(t, err)
			require.Len(t, all, 1)
			assert.Equal(t, "0004", all[0].Value)
		})
	}
}
