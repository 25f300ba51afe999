package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/rryowa/lms_session/internal/locale"
	"github.com/rryowa/lms_session/internal/models"
	"github.com/rryowa/lms_session/internal/storage"
	"github.com/rryowa/lms_session/internal/util"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionClosed    = errors.New("session closed during refresh")
)

type State int

const (
	StateAnonymous State = iota
	StateAuthenticated
	StateRefreshPending
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshPending:
		return "refresh_pending"
	case StateTerminated:
		return "terminated"
	}
	return "unknown"
}

// SessionService owns the single Session of the running application:
// restoring it at startup, refreshing the token pair before expiry,
// terminating it on refresh failure or inactivity. It is constructed once in
// main and injected wherever session state is needed; nothing else reads the
// credential store.
type SessionService struct {
	mu         sync.RWMutex
	session    models.Session
	generation uint64

	refreshGroup singleflight.Group
	refreshing   atomic.Bool

	api       AuthAPI
	store     storage.CredentialStore
	notifier  Notifier
	navigator Navigator
	cfg       *util.SessionConfig
	log       *zap.SugaredLogger

	now func() time.Time
}

func NewSessionService(
	api AuthAPI,
	store storage.CredentialStore,
	notifier Notifier,
	navigator Navigator,
	cfg *util.SessionConfig,
	log *zap.SugaredLogger,
) *SessionService {
	return &SessionService{
		api:       api,
		store:     store,
		notifier:  notifier,
		navigator: navigator,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// State derives the session state at now. Nothing here is cached: validity
// always comes back to the token's expiry claim against the given clock.
func (s *SessionService) State(now time.Time) State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.session.HasCredentials() {
		return StateAnonymous
	}
	if now.Sub(s.session.LastActivityAt) > s.cfg.InactivityTimeout {
		return StateTerminated
	}
	if s.refreshing.Load() ||
		!IsValid(s.session.AccessToken, now) ||
		ExpiresWithin(s.session.AccessToken, now, s.cfg.RefreshThreshold) {
		return StateRefreshPending
	}
	return StateAuthenticated
}

// AccessToken returns the current access token, or "" when anonymous.
// Implements client.TokenSource.
func (s *SessionService) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.AccessToken
}

func (s *SessionService) CurrentUser() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session.User == nil {
		return nil
	}
	user := *s.session.User
	return &user
}

// UpdateLastActivity records a qualifying user interaction.
func (s *SessionService) UpdateLastActivity() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session.LastActivityAt = s.now()
}

func (s *SessionService) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.LastActivityAt
}

func (s *SessionService) RememberedEmail(ctx context.Context) string {
	email, err := s.store.RememberedEmail(ctx)
	if err != nil {
		s.log.Warnw("Failed to read remembered email", "error", err)
		return ""
	}
	return email
}

func (s *SessionService) ClearRememberedEmail(ctx context.Context) error {
	return s.store.ClearRememberedEmail(ctx)
}

// Restore reloads a persisted session at application start. A missing
// session leaves the service anonymous; an undecodable token is treated as
// an expired session and cleared, never an error that crashes startup.
func (s *SessionService) Restore(ctx context.Context) error {
	persisted, err := s.store.LoadSession(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNoSession) {
			return nil
		}
		return fmt.Errorf("load session: %w", err)
	}

	if _, err := TokenExpiry(persisted.AccessToken); err != nil {
		s.log.Warnw("Persisted token is malformed, clearing session", "error", err)
		if clearErr := s.store.ClearSession(ctx); clearErr != nil {
			return fmt.Errorf("clear malformed session: %w", clearErr)
		}
		return nil
	}

	user := persisted.User
	if user.ID == "" {
		if fromToken, err := UserFromToken(persisted.AccessToken); err == nil {
			user = *fromToken
		}
	}

	s.mu.Lock()
	s.session = models.Session{
		User:           &user,
		AccessToken:    persisted.AccessToken,
		RefreshToken:   persisted.RefreshToken,
		LastActivityAt: s.now(),
	}
	s.mu.Unlock()

	s.log.Infow("Session restored", "email", user.Email)
	return nil
}

// Login authenticates against the backend. On success the token pair and
// user are persisted atomically before the in-memory state changes; on
// failure nothing is persisted.
func (s *SessionService) Login(ctx context.Context, req models.LoginRequest, intendedPath string) models.LoginResult {
	resp, err := s.api.Login(ctx, req)
	if err != nil {
		s.log.Warnw("Login failed", "email", req.Email, "error", err)
		msg := errorMessage(err)
		s.notifier.Notify(msg)
		return models.LoginResult{Message: msg}
	}

	if err := s.establish(ctx, resp.User, resp.AccessToken, resp.RefreshToken); err != nil {
		s.log.Errorw("Failed to persist session after login", "error", err)
		msg := locale.M(locale.GenericError)
		s.notifier.Notify(msg)
		return models.LoginResult{Message: msg}
	}

	if req.RememberMe {
		if err := s.store.SetRememberedEmail(ctx, req.Email); err != nil {
			s.log.Warnw("Failed to remember email", "error", err)
		}
	}

	msg := locale.M(locale.LoginSuccess)
	s.notifier.Notify(msg)

	dest := intendedPath
	if dest == "" {
		dest = s.cfg.LandingPath
	}
	s.navigator.NavigateTo(dest)

	return models.LoginResult{Success: true, User: s.CurrentUser(), Message: msg}
}

// Logout clears persisted and in-memory credentials. The remembered email
// survives; a refresh resolving afterwards is discarded via the generation
// bump. An empty message picks the voluntary or session-expired wording.
func (s *SessionService) Logout(ctx context.Context, message string, sessionExpired bool) models.OpResult {
	s.mu.Lock()
	s.generation++
	s.session = models.Session{}
	s.mu.Unlock()

	if err := s.store.ClearSession(ctx); err != nil {
		s.log.Errorw("Failed to clear persisted session", "error", err)
	}

	if message == "" {
		if sessionExpired {
			message = locale.M(locale.SessionExpired)
		} else {
			message = locale.M(locale.LoggedOut)
		}
	}
	s.notifier.Notify(message)
	s.navigator.NavigateTo(s.cfg.LoginPath)

	return models.OpResult{Success: true, Message: message}
}

// Refresh exchanges the refresh token for a new pair. Concurrent callers
// (the scheduled expiry check and a 401 replay) collapse into one backend
// call and observe the same outcome. Implements client.Refresher.
func (s *SessionService) Refresh(ctx context.Context) error {
	_, err, _ := s.refreshGroup.Do("refresh", func() (interface{}, error) {
		return nil, s.doRefresh(ctx)
	})
	return err
}

func (s *SessionService) doRefresh(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.session.RefreshToken
	generation := s.generation
	s.mu.RUnlock()

	if refreshToken == "" {
		return ErrNotAuthenticated
	}

	s.refreshing.Store(true)
	defer s.refreshing.Store(false)

	resp, err := s.api.RefreshToken(ctx, models.RefreshTokenRequest{RefreshToken: refreshToken})
	if err != nil {
		// A stale refresh token does not become valid by retrying; any
		// failure terminates the session.
		s.log.Warnw("Token refresh failed, terminating session", "error", err)
		s.Logout(ctx, locale.M(locale.SessionExpired), true)
		return fmt.Errorf("refresh token: %w", err)
	}

	s.mu.Lock()
	if s.generation != generation {
		// Logged out while the refresh was in flight; the new pair must not
		// resurrect the session.
		s.mu.Unlock()
		return ErrSessionClosed
	}
	var user models.User
	if s.session.User != nil {
		user = *s.session.User
	}
	saveErr := s.store.SaveSession(ctx, storage.PersistedSession{
		User:         user,
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	})
	if saveErr == nil {
		s.session.AccessToken = resp.AccessToken
		s.session.RefreshToken = resp.RefreshToken
	}
	s.mu.Unlock()

	if saveErr != nil {
		s.log.Errorw("Failed to persist refreshed session, terminating", "error", saveErr)
		s.Logout(ctx, locale.M(locale.SessionExpired), true)
		return fmt.Errorf("persist refreshed session: %w", saveErr)
	}

	s.log.Debugw("Access token refreshed")
	return nil
}

// CheckExpiry triggers a refresh when the access token is invalid or inside
// the refresh threshold. Run on a fixed interval; idempotent, so an overlap
// with the inactivity check cannot corrupt state.
func (s *SessionService) CheckExpiry(ctx context.Context) {
	now := s.now()

	s.mu.RLock()
	held := s.session.HasCredentials()
	token := s.session.AccessToken
	s.mu.RUnlock()

	if !held {
		return
	}
	if IsValid(token, now) && !ExpiresWithin(token, now, s.cfg.RefreshThreshold) {
		return
	}

	if err := s.Refresh(ctx); err != nil && !errors.Is(err, ErrSessionClosed) {
		s.log.Warnw("Scheduled refresh failed", "error", err)
	}
}

// CheckInactivity terminates the session when the inactivity timeout is
// exceeded, regardless of token validity.
func (s *SessionService) CheckInactivity(ctx context.Context) {
	now := s.now()

	s.mu.RLock()
	held := s.session.HasCredentials()
	last := s.session.LastActivityAt
	s.mu.RUnlock()

	if !held || now.Sub(last) <= s.cfg.InactivityTimeout {
		return
	}

	s.log.Infow("Inactivity timeout exceeded, terminating session", "idle", now.Sub(last))
	s.Logout(ctx, locale.M(locale.SessionExpired), true)
}

// establish persists the new credentials first, then swaps the in-memory
// session. A persistence failure leaves both layers untouched.
func (s *SessionService) establish(ctx context.Context, user models.User, accessToken, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.SaveSession(ctx, storage.PersistedSession{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	})
	if err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	u := user
	s.session = models.Session{
		User:           &u,
		AccessToken:    accessToken,
		RefreshToken:   refreshToken,
		LastActivityAt: s.now(),
	}
	return nil
}
