package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/lms_session/internal/client"
	"github.com/rryowa/lms_session/internal/locale"
	"github.com/rryowa/lms_session/internal/models"
	"github.com/rryowa/lms_session/internal/storage"
	"github.com/rryowa/lms_session/internal/storage/memory"
	"github.com/rryowa/lms_session/internal/util"
)

type fakeAPI struct {
	mu           sync.Mutex
	refreshCalls int

	loginResp    *models.LoginResponse
	loginErr     error
	registerResp *models.RegisterResponse
	registerErr  error
	statusErr    error
	refreshFn    func(models.RefreshTokenRequest) (*models.RefreshTokenResponse, error)
}

func (f *fakeAPI) Login(_ context.Context, _ models.LoginRequest) (*models.LoginResponse, error) {
	return f.loginResp, f.loginErr
}

func (f *fakeAPI) Register(_ context.Context, _ models.RegisterRequest) (*models.RegisterResponse, error) {
	return f.registerResp, f.registerErr
}

func (f *fakeAPI) ConfirmEmail(_ context.Context, _ models.ConfirmEmailRequest) (*models.StatusResponse, error) {
	return f.status()
}

func (f *fakeAPI) ResendConfirmationCode(_ context.Context, _ models.ResendConfirmationCodeRequest) (*models.StatusResponse, error) {
	return f.status()
}

func (f *fakeAPI) ForgotPassword(_ context.Context, _ models.ForgotPasswordRequest) (*models.StatusResponse, error) {
	return f.status()
}

func (f *fakeAPI) ResetPassword(_ context.Context, _ models.ResetPasswordRequest) (*models.StatusResponse, error) {
	return f.status()
}

func (f *fakeAPI) RefreshToken(_ context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	f.mu.Lock()
	f.refreshCalls++
	fn := f.refreshFn
	f.mu.Unlock()

	if fn == nil {
		return nil, errors.New("no refresh configured")
	}
	return fn(req)
}

func (f *fakeAPI) status() (*models.StatusResponse, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return &models.StatusResponse{Success: true, Message: "ok"}, nil
}

func (f *fakeAPI) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshCalls
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *fakeNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *fakeNotifier) last() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.messages) == 0 {
		return ""
	}
	return n.messages[len(n.messages)-1]
}

type fakeNavigator struct {
	mu    sync.Mutex
	paths []string
}

func (n *fakeNavigator) NavigateTo(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paths = append(n.paths, path)
}

func (n *fakeNavigator) visited() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.paths...)
}

func testConfig() *util.SessionConfig {
	return &util.SessionConfig{
		RefreshThreshold:   5 * time.Minute,
		ExpiryInterval:     time.Minute,
		InactivityTimeout:  30 * time.Minute,
		InactivityInterval: time.Minute,
		ResendCooldown:     time.Minute,
		LoginPath:          "/login",
		LandingPath:        "/dashboard",
		ConfirmEmailPath:   "/confirm-email",
	}
}

func newTestService(api *fakeAPI) (*SessionService, *memory.InMemoryCredentialStore, *fakeNotifier, *fakeNavigator) {
	store := memory.NewCredentialStore()
	notifier := &fakeNotifier{}
	navigator := &fakeNavigator{}
	svc := NewSessionService(api, store, notifier, navigator, testConfig(), zap.NewNop().Sugar())
	return svc, store, notifier, navigator
}

func loginResponse(t *testing.T, exp time.Time) *models.LoginResponse {
	t.Helper()
	return &models.LoginResponse{
		User:         models.User{ID: "user-1", Email: "a@b.com", DisplayName: "Test User", Role: "student"},
		AccessToken:  mintToken(t, exp),
		RefreshToken: "refresh-1",
	}
}

func TestLoginPersistsCredentials(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{loginResp: loginResponse(t, time.Now().Add(time.Hour))}
	svc, store, _, navigator := newTestService(api)

	res := svc.Login(ctx, models.LoginRequest{Email: "a@b.com", Password: "validPass1!"}, "")
	require.True(t, res.Success)
	require.NotNil(t, res.User)
	require.Equal(t, "a@b.com", res.User.Email)

	persisted, err := store.LoadSession(ctx)
	require.NoError(t, err)
	require.Equal(t, api.loginResp.AccessToken, persisted.AccessToken)
	require.Equal(t, api.loginResp.RefreshToken, persisted.RefreshToken)
	require.Equal(t, api.loginResp.User, persisted.User)

	require.Equal(t, []string{"/dashboard"}, navigator.visited())
	require.Equal(t, StateAuthenticated, svc.State(time.Now()))
}

func TestLoginIntendedPath(t *testing.T) {
	api := &fakeAPI{loginResp: loginResponse(t, time.Now().Add(time.Hour))}
	svc, _, _, navigator := newTestService(api)

	res := svc.Login(context.Background(), models.LoginRequest{Email: "a@b.com", Password: "x"}, "/courses/42")
	require.True(t, res.Success)
	require.Equal(t, []string{"/courses/42"}, navigator.visited())
}

func TestLoginBadCredentials(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{loginErr: fmt.Errorf("login: %w", client.ErrBadCredentials)}
	svc, store, notifier, navigator := newTestService(api)

	res := svc.Login(ctx, models.LoginRequest{Email: "a@b.com", Password: "wrong"}, "")
	require.False(t, res.Success)
	require.Equal(t, "البريد الإلكتروني أو كلمة المرور غير صحيحة", res.Message)
	require.Equal(t, res.Message, notifier.last())

	_, err := store.LoadSession(ctx)
	require.ErrorIs(t, err, storage.ErrNoSession)
	require.Empty(t, navigator.visited())
	require.Equal(t, StateAnonymous, svc.State(time.Now()))
}

func TestLoginUnconfirmedAccount(t *testing.T) {
	api := &fakeAPI{loginErr: fmt.Errorf("login: %w", client.ErrAccountNotConfirmed)}
	svc, _, _, _ := newTestService(api)

	res := svc.Login(context.Background(), models.LoginRequest{Email: "a@b.com", Password: "x"}, "")
	require.False(t, res.Success)
	require.Equal(t, locale.M(locale.AccountNotConfirmed), res.Message)
}

func TestConcurrentRefreshCollapsesToOneCall(t *testing.T) {
	ctx := context.Background()
	newAccess := mintToken(t, time.Now().Add(time.Hour))

	api := &fakeAPI{loginResp: loginResponse(t, time.Now().Add(3*time.Minute))}
	api.refreshFn = func(req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
		time.Sleep(50 * time.Millisecond) // keep the call in flight while others pile on
		return &models.RefreshTokenResponse{AccessToken: newAccess, RefreshToken: "refresh-2"}, nil
	}

	svc, store, _, _ := newTestService(api)
	require.True(t, svc.Login(ctx, models.LoginRequest{Email: "a@b.com", Password: "x"}, "").Success)

	errCh := make(chan error, 5)
	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errCh <- svc.Refresh(ctx)
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	require.Equal(t, 1, api.refreshCount())
	require.Equal(t, newAccess, svc.AccessToken())

	persisted, err := store.LoadSession(ctx)
	require.NoError(t, err)
	require.Equal(t, newAccess, persisted.AccessToken)
	require.Equal(t, "refresh-2", persisted.RefreshToken)
}

func TestRefreshFailureTerminatesSession(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{loginResp: loginResponse(t, time.Now().Add(3*time.Minute))}
	api.refreshFn = func(models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
		return nil, util.NewResponseError(401, "refresh token not found or used")
	}

	svc, store, notifier, navigator := newTestService(api)
	require.True(t, svc.Login(ctx, models.LoginRequest{Email: "a@b.com", Password: "x"}, "").Success)

	require.Error(t, svc.Refresh(ctx))

	// No retry, immediate termination: storage cleared, session expired toast,
	// back to the login entry point.
	require.Equal(t, 1, api.refreshCount())
	_, err := store.LoadSession(ctx)
	require.ErrorIs(t, err, storage.ErrNoSession)
	require.Equal(t, locale.M(locale.SessionExpired), notifier.last())
	require.Equal(t, "/login", navigator.visited()[len(navigator.visited())-1])
	require.Equal(t, StateAnonymous, svc.State(time.Now()))
}

func TestRefreshAfterLogoutDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	release := make(chan struct{})

	api := &fakeAPI{loginResp: loginResponse(t, time.Now().Add(3*time.Minute))}
	api.refreshFn = func(models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
		<-release
		return &models.RefreshTokenResponse{
			AccessToken:  mintToken(t, time.Now().Add(time.Hour)),
			RefreshToken: "refresh-2",
		}, nil
	}

	svc, store, _, _ := newTestService(api)
	require.True(t, svc.Login(ctx, models.LoginRequest{Email: "a@b.com", Password: "x"}, "").Success)

	errCh := make(chan error, 1)
	go func() { errCh <- svc.Refresh(ctx) }()

	// Let the refresh reach the backend call before logging out.
	require.Eventually(t, func() bool { return api.refreshCount() == 1 }, time.Second, time.Millisecond)

	svc.Logout(ctx, "", false)
	close(release)

	require.ErrorIs(t, <-errCh, ErrSessionClosed)
	require.Empty(t, svc.AccessToken())
	_, err := store.LoadSession(ctx)
	require.ErrorIs(t, err, storage.ErrNoSession)
}

func TestCheckExpiryRefreshesNearExpiry(t *testing.T) {
	ctx := context.Background()
	newAccess := mintToken(t, time.Now().Add(time.Hour))

	// Token still valid but inside the 5 minute refresh threshold.
	api := &fakeAPI{loginResp: loginResponse(t, time.Now().Add(3*time.Minute))}
	api.refreshFn = func(models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
		return &models.RefreshTokenResponse{AccessToken: newAccess, RefreshToken: "refresh-2"}, nil
	}

	svc, store, _, _ := newTestService(api)
	require.True(t, svc.Login(ctx, models.LoginRequest{Email: "a@b.com", Password: "x"}, "").Success)
	require.Equal(t, StateRefreshPending, svc.State(time.Now()))

	svc.CheckExpiry(ctx)

	require.Equal(t, 1, api.refreshCount())
	persisted, err := store.LoadSession(ctx)
	require.NoError(t, err)
	require.Equal(t, newAccess, persisted.AccessToken)
	require.Equal(t, StateAuthenticated, svc.State(time.Now()))
}

func TestCheckExpiryNoopWhenFresh(t *testing.T) {
	api := &fakeAPI{loginResp: loginResponse(t, time.Now().Add(time.Hour))}
	svc, _, _, _ := newTestService(api)
	require.True(t, svc.Login(context.Background(), models.LoginRequest{Email: "a@b.com", Password: "x"}, "").Success)

	svc.CheckExpiry(context.Background())
	require.Zero(t, api.refreshCount())
}

func TestInactivityTimeoutForcesLogout(t *testing.T) {
	ctx := context.Background()
	base := time.Now()

	api := &fakeAPI{loginResp: loginResponse(t, base.Add(2*time.Hour))}
	svc, store, notifier, navigator := newTestService(api)
	require.True(t, svc.Login(ctx, models.LoginRequest{Email: "a@b.com", Password: "x"}, "").Success)

	// 31 minutes idle; the access token itself is still hours from expiry.
	svc.now = func() time.Time { return base.Add(31 * time.Minute) }
	require.Equal(t, StateTerminated, svc.State(svc.now()))

	svc.CheckInactivity(ctx)

	require.Equal(t, locale.M(locale.SessionExpired), notifier.last())
	require.Equal(t, "/login", navigator.visited()[len(navigator.visited())-1])
	_, err := store.LoadSession(ctx)
	require.ErrorIs(t, err, storage.ErrNoSession)
}

func TestActivityResetsInactivityClock(t *testing.T) {
	ctx := context.Background()
	base := time.Now()

	api := &fakeAPI{loginResp: loginResponse(t, base.Add(2*time.Hour))}
	svc, store, _, _ := newTestService(api)
	require.True(t, svc.Login(ctx, models.LoginRequest{Email: "a@b.com", Password: "x"}, "").Success)

	svc.now = func() time.Time { return base.Add(29 * time.Minute) }
	svc.UpdateLastActivity()

	svc.now = func() time.Time { return base.Add(45 * time.Minute) }
	svc.CheckInactivity(ctx)

	_, err := store.LoadSession(ctx)
	require.NoError(t, err)
}

func TestLogoutPreservesRememberedEmail(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{loginResp: loginResponse(t, time.Now().Add(time.Hour))}
	svc, store, notifier, _ := newTestService(api)

	res := svc.Login(ctx, models.LoginRequest{Email: "a@b.com", Password: "x", RememberMe: true}, "")
	require.True(t, res.Success)

	svc.Logout(ctx, "", false)

	require.Equal(t, locale.M(locale.LoggedOut), notifier.last())
	_, err := store.LoadSession(ctx)
	require.ErrorIs(t, err, storage.ErrNoSession)
	require.Equal(t, "a@b.com", svc.RememberedEmail(ctx))

	require.NoError(t, svc.ClearRememberedEmail(ctx))
	require.Empty(t, svc.RememberedEmail(ctx))
}

func TestRestorePersistedSession(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCredentialStore()
	token := mintToken(t, time.Now().Add(time.Hour))
	require.NoError(t, store.SaveSession(ctx, storage.PersistedSession{
		User:         models.User{ID: "user-1", Email: "a@b.com"},
		AccessToken:  token,
		RefreshToken: "refresh-1",
	}))

	svc := NewSessionService(&fakeAPI{}, store, &fakeNotifier{}, &fakeNavigator{}, testConfig(), zap.NewNop().Sugar())
	require.NoError(t, svc.Restore(ctx))

	require.Equal(t, token, svc.AccessToken())
	require.Equal(t, "a@b.com", svc.CurrentUser().Email)
	require.Equal(t, StateAuthenticated, svc.State(time.Now()))
}

func TestRestoreMalformedTokenClearsSession(t *testing.T) {
	ctx := context.Background()
	store := memory.NewCredentialStore()
	require.NoError(t, store.SaveSession(ctx, storage.PersistedSession{
		AccessToken:  "garbage",
		RefreshToken: "refresh-1",
	}))

	svc := NewSessionService(&fakeAPI{}, store, &fakeNotifier{}, &fakeNavigator{}, testConfig(), zap.NewNop().Sugar())
	require.NoError(t, svc.Restore(ctx))

	require.Equal(t, StateAnonymous, svc.State(time.Now()))
	_, err := store.LoadSession(ctx)
	require.ErrorIs(t, err, storage.ErrNoSession)
}

func TestRegisterEstablishesNoSession(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{registerResp: &models.RegisterResponse{UserID: "user-2"}}
	svc, store, _, navigator := newTestService(api)

	before := time.Now()
	res := svc.Register(ctx, models.RegisterRequest{FullName: "New User", Email: "n@b.com", Password: "x", Role: "student"})
	require.True(t, res.Success)
	require.Equal(t, "n@b.com", res.Email)
	require.False(t, res.ResendAfter.Before(before.Add(time.Minute)))

	require.Equal(t, []string{"/confirm-email"}, navigator.visited())
	require.Equal(t, StateAnonymous, svc.State(time.Now()))
	_, err := store.LoadSession(ctx)
	require.ErrorIs(t, err, storage.ErrNoSession)
}

func TestAccountOpsErrorTranslation(t *testing.T) {
	ctx := context.Background()

	api := &fakeAPI{statusErr: fmt.Errorf("confirm: %w", client.ErrInvalidCode)}
	svc, _, _, _ := newTestService(api)
	res := svc.ConfirmEmail(ctx, "a@b.com", "123456")
	require.False(t, res.Success)
	require.Equal(t, locale.M(locale.InvalidCode), res.Message)

	api.statusErr = fmt.Errorf("forgot: %w", client.ErrUnknownEmail)
	res = svc.ForgotPassword(ctx, "nobody@b.com")
	require.False(t, res.Success)
	require.Equal(t, locale.M(locale.UnknownEmail), res.Message)

	api.statusErr = nil
	res = svc.ResetPassword(ctx, "a@b.com", "123456", "newPass1!")
	require.True(t, res.Success)
	require.Equal(t, locale.M(locale.PasswordReset), res.Message)
}
