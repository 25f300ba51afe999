package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/rryowa/lms_session/internal/util"
)

var ErrUnauthorized = errors.New("unauthorized")

// TokenSource yields the current access token. The session service
// implements it; the token read is always fresh, never cached here.
type TokenSource interface {
	AccessToken() string
}

// Refresher coordinates a token refresh. Concurrent callers collapse into
// one refresh call on the session service side.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// AuthedClient wraps outbound calls to the rest of the backend API. It
// attaches the bearer token and, on a 401, refreshes and replays the
// original request exactly once. The body is re-marshaled per attempt so the
// replay never reuses a consumed reader.
type AuthedClient struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	refresher  Refresher
	log        *zap.SugaredLogger
}

func NewAuthedClient(cfg *util.ClientConfig, tokens TokenSource, refresher Refresher, log *zap.SugaredLogger) *AuthedClient {
	return &AuthedClient{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		refresher:  refresher,
		log:        log,
	}
}

// DoJSON performs an authenticated JSON request against path. out may be nil.
func (c *AuthedClient) DoJSON(ctx context.Context, method, path string, body, out any) error {
	retried := false
	for {
		status, err := c.attempt(ctx, method, path, body, out)
		if err != nil {
			return err
		}
		if status != http.StatusUnauthorized {
			return nil
		}
		if retried {
			return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
		}
		retried = true

		if err := c.refresher.Refresh(ctx); err != nil {
			return fmt.Errorf("%s %s: refresh after 401: %w", method, path, err)
		}
		c.log.Debugw("Replaying request after refresh", "method", method, "path", path)
	}
}

// attempt returns the HTTP status so the caller can decide on a replay; a
// 401 is not an error at this level. Non-401 error statuses are returned as
// ResponseError.
func (c *AuthedClient) attempt(ctx context.Context, method, path string, body, out any) (int, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return resp.StatusCode, util.NewResponseError(resp.StatusCode, "%s", readReason(resp.Body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: decode response: %w", ErrServer, err)
		}
	}
	return resp.StatusCode, nil
}
