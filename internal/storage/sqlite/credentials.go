package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rryowa/lms_session/internal/models"
	"github.com/rryowa/lms_session/internal/storage"
)

// CredentialStore persists credentials in a local sqlite database, one row
// per storage key.
type CredentialStore struct {
	db *sql.DB
}

func NewCredentialStore(db *sql.DB) *CredentialStore {
	return &CredentialStore{db: db}
}

// SaveSession writes user and token pair in one transaction so a failure
// cannot leave a mixed pair behind.
func (s *CredentialStore) SaveSession(ctx context.Context, session storage.PersistedSession) error {
	userJSON, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	pairs := map[string]string{
		storage.KeyUser:         string(userJSON),
		storage.KeyToken:        session.AccessToken,
		storage.KeyRefreshToken: session.RefreshToken,
	}
	for key, value := range pairs {
		if err := upsert(ctx, tx, key, value); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (s *CredentialStore) LoadSession(ctx context.Context) (*storage.PersistedSession, error) {
	accessToken, err := s.get(ctx, storage.KeyToken)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNoSession
		}
		return nil, err
	}

	refreshToken, err := s.get(ctx, storage.KeyRefreshToken)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	var user models.User
	if raw, err := s.get(ctx, storage.KeyUser); err == nil {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fmt.Errorf("unmarshal user: %w", err)
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	return &storage.PersistedSession{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *CredentialStore) ClearSession(ctx context.Context) error {
	query := `DELETE FROM credentials WHERE key IN (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, storage.KeyUser, storage.KeyToken, storage.KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *CredentialStore) SetRememberedEmail(ctx context.Context, email string) error {
	return upsert(ctx, s.db, storage.KeyRememberedEmail, email)
}

func (s *CredentialStore) RememberedEmail(ctx context.Context) (string, error) {
	email, err := s.get(ctx, storage.KeyRememberedEmail)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return email, nil
}

func (s *CredentialStore) ClearRememberedEmail(ctx context.Context) error {
	query := `DELETE FROM credentials WHERE key = ?`
	_, err := s.db.ExecContext(ctx, query, storage.KeyRememberedEmail)
	if err != nil {
		return fmt.Errorf("clear remembered email: %w", err)
	}
	return nil
}

func (s *CredentialStore) get(ctx context.Context, key string) (string, error) {
	var value string
	query := `SELECT value FROM credentials WHERE key = ?`
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func upsert(ctx context.Context, db storage.DBTX, key, value string) error {
	query := `INSERT INTO credentials (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`
	if _, err := db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}
