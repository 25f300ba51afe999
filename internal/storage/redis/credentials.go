package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rryowa/lms_session/internal/models"
	"github.com/rryowa/lms_session/internal/storage"
)

const keyPrefix = "lms:credentials:"

// CredentialStore persists credentials in Redis, for headless deployments
// where the agent shares a session across restarts or hosts.
type CredentialStore struct {
	client *redis.Client
}

func NewCredentialStore(client *redis.Client) *CredentialStore {
	return &CredentialStore{client: client}
}

// SaveSession writes all three values in a single pipeline.
func (s *CredentialStore) SaveSession(ctx context.Context, session storage.PersistedSession) error {
	userJSON, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+storage.KeyUser, userJSON, 0)
	pipe.Set(ctx, keyPrefix+storage.KeyToken, session.AccessToken, 0)
	pipe.Set(ctx, keyPrefix+storage.KeyRefreshToken, session.RefreshToken, 0)
	if _, err = pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *CredentialStore) LoadSession(ctx context.Context) (*storage.PersistedSession, error) {
	values, err := s.client.MGet(ctx,
		keyPrefix+storage.KeyUser,
		keyPrefix+storage.KeyToken,
		keyPrefix+storage.KeyRefreshToken,
	).Result()
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	accessToken, ok := values[1].(string)
	if !ok || accessToken == "" {
		return nil, storage.ErrNoSession
	}

	var user models.User
	if raw, ok := values[0].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fmt.Errorf("unmarshal user: %w", err)
		}
	}

	refreshToken, _ := values[2].(string)

	return &storage.PersistedSession{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *CredentialStore) ClearSession(ctx context.Context) error {
	err := s.client.Del(ctx,
		keyPrefix+storage.KeyUser,
		keyPrefix+storage.KeyToken,
		keyPrefix+storage.KeyRefreshToken,
	).Err()
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *CredentialStore) SetRememberedEmail(ctx context.Context, email string) error {
	return s.client.Set(ctx, keyPrefix+storage.KeyRememberedEmail, email, 0).Err()
}

func (s *CredentialStore) RememberedEmail(ctx context.Context) (string, error) {
	email, err := s.client.Get(ctx, keyPrefix+storage.KeyRememberedEmail).Result()
	if err == redis.Nil {
		return "", nil
	} else if err != nil {
		return "", fmt.Errorf("remembered email: %w", err)
	}
	return email, nil
}

func (s *CredentialStore) ClearRememberedEmail(ctx context.Context) error {
	return s.client.Del(ctx, keyPrefix+storage.KeyRememberedEmail).Err()
}
