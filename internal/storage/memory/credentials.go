package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rryowa/lms_session/internal/models"
	"github.com/rryowa/lms_session/internal/storage"
)

// InMemoryCredentialStore keeps credentials for the process lifetime only.
// Default backend; also the test double for the persistent stores.
type InMemoryCredentialStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewCredentialStore() *InMemoryCredentialStore {
	return &InMemoryCredentialStore{
		values: make(map[string]string),
	}
}

func (m *InMemoryCredentialStore) SaveSession(_ context.Context, session storage.PersistedSession) error {
	userJSON, err := json.Marshal(session.User)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[storage.KeyUser] = string(userJSON)
	m.values[storage.KeyToken] = session.AccessToken
	m.values[storage.KeyRefreshToken] = session.RefreshToken

	return nil
}

func (m *InMemoryCredentialStore) LoadSession(_ context.Context) (*storage.PersistedSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	accessToken, ok := m.values[storage.KeyToken]
	if !ok {
		return nil, storage.ErrNoSession
	}

	var user models.User
	if raw, ok := m.values[storage.KeyUser]; ok {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fmt.Errorf("unmarshal user: %w", err)
		}
	}

	return &storage.PersistedSession{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: m.values[storage.KeyRefreshToken],
	}, nil
}

func (m *InMemoryCredentialStore) ClearSession(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, storage.KeyUser)
	delete(m.values, storage.KeyToken)
	delete(m.values, storage.KeyRefreshToken)

	return nil
}

func (m *InMemoryCredentialStore) SetRememberedEmail(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[storage.KeyRememberedEmail] = email
	return nil
}

func (m *InMemoryCredentialStore) RememberedEmail(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.values[storage.KeyRememberedEmail], nil
}

func (m *InMemoryCredentialStore) ClearRememberedEmail(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, storage.KeyRememberedEmail)
	return nil
}
