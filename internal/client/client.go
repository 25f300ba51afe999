package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/rryowa/lms_session/internal/models"
	"github.com/rryowa/lms_session/internal/util"
)

var (
	ErrBadCredentials      = errors.New("bad credentials")
	ErrAccountNotConfirmed = errors.New("account not confirmed")
	ErrInvalidCode         = errors.New("invalid or expired code")
	ErrUnknownEmail        = errors.New("unknown email")
	ErrNetwork             = errors.New("cannot reach server")
	ErrServer              = errors.New("server error")
)

const maxErrorBodySize = 64 * 1024

// AuthClient talks to the backend auth endpoints. Every call carries the
// configured client-side timeout; a timeout surfaces as ErrNetwork, never as
// a credential failure.
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.SugaredLogger
}

func NewAuthClient(cfg *util.ClientConfig, log *zap.SugaredLogger) *AuthClient {
	return &AuthClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log,
	}
}

func (c *AuthClient) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.postJSON(ctx, "/auth/login", req, &resp); err != nil {
		switch statusOf(err) {
		case http.StatusUnauthorized:
			return nil, fmt.Errorf("login: %w", ErrBadCredentials)
		case http.StatusForbidden:
			return nil, fmt.Errorf("login: %w", ErrAccountNotConfirmed)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	return &resp, nil
}

func (c *AuthClient) Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error) {
	var resp models.RegisterResponse
	if err := c.postJSON(ctx, "/auth/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &resp, nil
}

func (c *AuthClient) ConfirmEmail(ctx context.Context, req models.ConfirmEmailRequest) (*models.StatusResponse, error) {
	return c.recoveryCall(ctx, "/auth/confirm-email", req)
}

func (c *AuthClient) ResendConfirmationCode(ctx context.Context, req models.ResendConfirmationCodeRequest) (*models.StatusResponse, error) {
	return c.recoveryCall(ctx, "/auth/resend-confirmation-code", req)
}

func (c *AuthClient) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (*models.StatusResponse, error) {
	return c.recoveryCall(ctx, "/auth/forgot-password", req)
}

func (c *AuthClient) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (*models.StatusResponse, error) {
	return c.recoveryCall(ctx, "/auth/reset-password", req)
}

func (c *AuthClient) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	var resp models.RefreshTokenResponse
	if err := c.postJSON(ctx, "/auth/refresh-token", req, &resp); err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &resp, nil
}

// recoveryCall covers the confirmation and password-recovery endpoints,
// which share a response shape and an error translation: 400 is an
// invalid/expired code, 404 an unknown email.
func (c *AuthClient) recoveryCall(ctx context.Context, path string, body any) (*models.StatusResponse, error) {
	var resp models.StatusResponse
	if err := c.postJSON(ctx, path, body, &resp); err != nil {
		switch statusOf(err) {
		case http.StatusBadRequest:
			return nil, fmt.Errorf("%s: %w", path, ErrInvalidCode)
		case http.StatusNotFound:
			return nil, fmt.Errorf("%s: %w", path, ErrUnknownEmail)
		}
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &resp, nil
}

func (c *AuthClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// No response received at all: timeout, DNS, refused connection.
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return util.NewResponseError(resp.StatusCode, "%s", readReason(resp.Body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode response: %w", ErrServer, err)
		}
	}
	return nil
}

// readReason extracts the backend's {"message": ...} (or {"reason": ...})
// error body; falls back to empty on anything malformed.
func readReason(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBodySize))
	if err != nil {
		return ""
	}
	var parsed struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return ""
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return parsed.Reason
}

func statusOf(err error) int {
	var respErr util.ResponseError
	if errors.As(err, &respErr) {
		return respErr.Status
	}
	return 0
}
