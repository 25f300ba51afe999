package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rryowa/lms_session/internal/models"
)

var ErrNoSession = errors.New("no persisted session")

// Storage keys. These are the semantic names of the persisted values; each
// backend maps them onto its own layout.
const (
	KeyUser            = "user"
	KeyToken           = "token"
	KeyRefreshToken    = "refreshToken"
	KeyRememberedEmail = "rememberedEmail"
)

// PersistedSession is the durable credential record. The three fields are
// written together or not at all; a failed write must never leave an old
// access token next to a new refresh token.
type PersistedSession struct {
	User         models.User
	AccessToken  string
	RefreshToken string
}

// CredentialStore is the only writer of persisted credentials. Everything
// else in the application reads session state through the session service's
// in-memory copy, never from the store directly.
type CredentialStore interface {
	// SaveSession atomically replaces the persisted token pair and user.
	SaveSession(ctx context.Context, session PersistedSession) error
	// LoadSession returns ErrNoSession when no pair is persisted.
	LoadSession(ctx context.Context) (*PersistedSession, error)
	// ClearSession removes user and tokens but leaves the remembered email.
	ClearSession(ctx context.Context) error

	SetRememberedEmail(ctx context.Context, email string) error
	// RememberedEmail returns "" when nothing is remembered.
	RememberedEmail(ctx context.Context) (string, error)
	ClearRememberedEmail(ctx context.Context) error
}

type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
