// Dev auth backend stub. Implements the auth endpoints the session agent
// consumes, with an in-memory user table and single-use refresh tokens, so
// the agent can be exercised without the real platform backend.
//
// Run with: go run authstub.go
package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rryowa/lms_session/internal/models"
)

const (
	stubAddr      = ":8080"
	accessTTL     = 15 * time.Minute
	stubResetCode = "000000"
)

type stubUser struct {
	ID        string
	FullName  string
	Email     string
	Password  string
	Role      string
	Confirmed bool
}

type stubBackend struct {
	mu            sync.Mutex
	users         map[string]*stubUser
	refreshTokens map[string]string // token -> email, single use
	secret        []byte
}

func newStubBackend() *stubBackend {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-secret"
	}

	b := &stubBackend{
		users:         make(map[string]*stubUser),
		refreshTokens: make(map[string]string),
		secret:        []byte(secret),
	}
	b.users["student@example.com"] = &stubUser{
		ID:        uuid.NewString(),
		FullName:  "Demo Student",
		Email:     "student@example.com",
		Password:  "validPass1!",
		Role:      "student",
		Confirmed: true,
	}
	return b
}

func main() {
	backend := newStubBackend()

	e := echo.New()
	e.HideBanner = true

	g := e.Group("/api/auth")
	g.POST("/login", backend.login)
	g.POST("/register", backend.register)
	g.POST("/confirm-email", backend.confirmEmail)
	g.POST("/resend-confirmation-code", backend.resendConfirmationCode)
	g.POST("/forgot-password", backend.forgotPassword)
	g.POST("/reset-password", backend.resetPassword)
	g.POST("/refresh-token", backend.refreshToken)

	log.Printf("Auth stub listening on %s", stubAddr)
	if err := e.Start(stubAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("auth stub: %v", err)
	}
}

func (b *stubBackend) login(c echo.Context) error {
	var req models.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	user, ok := b.users[req.Email]
	if !ok || user.Password != req.Password {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
	}
	if !user.Confirmed {
		return echo.NewHTTPError(http.StatusForbidden, "email not confirmed")
	}

	accessToken, err := b.mintAccessToken(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not sign token")
	}
	refreshToken := uuid.NewString()
	b.refreshTokens[refreshToken] = user.Email

	return c.JSON(http.StatusOK, models.LoginResponse{
		User: models.User{
			ID:          user.ID,
			Email:       user.Email,
			DisplayName: user.FullName,
			Role:        user.Role,
		},
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Message:      "ok",
	})
}

func (b *stubBackend) register(c echo.Context) error {
	var req models.RegisterRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.users[req.Email]; exists {
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}

	user := &stubUser{
		ID:       uuid.NewString(),
		FullName: req.FullName,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	}
	b.users[req.Email] = user
	log.Printf("registered %s, confirmation code: %s", req.Email, stubResetCode)

	return c.JSON(http.StatusOK, models.RegisterResponse{UserID: user.ID, Message: "confirmation code sent"})
}

func (b *stubBackend) confirmEmail(c echo.Context) error {
	var req models.ConfirmEmailRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	user, ok := b.users[req.Email]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown email")
	}
	if req.Code != stubResetCode {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid code")
	}

	user.Confirmed = true
	return c.JSON(http.StatusOK, models.StatusResponse{Success: true, Message: "email confirmed"})
}

func (b *stubBackend) resendConfirmationCode(c echo.Context) error {
	var req models.ResendConfirmationCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.users[req.Email]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown email")
	}
	log.Printf("resent confirmation code for %s: %s", req.Email, stubResetCode)
	return c.JSON(http.StatusOK, models.StatusResponse{Success: true, Message: "code sent"})
}

func (b *stubBackend) forgotPassword(c echo.Context) error {
	var req models.ForgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.users[req.Email]; !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown email")
	}
	log.Printf("reset code for %s: %s", req.Email, stubResetCode)
	return c.JSON(http.StatusOK, models.StatusResponse{Success: true, Message: "reset code sent"})
}

func (b *stubBackend) resetPassword(c echo.Context) error {
	var req models.ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	user, ok := b.users[req.Email]
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "unknown email")
	}
	if req.Code != stubResetCode {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid code")
	}

	user.Password = req.NewPassword
	return c.JSON(http.StatusOK, models.StatusResponse{Success: true, Message: "password updated"})
}

func (b *stubBackend) refreshToken(c echo.Context) error {
	var req models.RefreshTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	email, ok := b.refreshTokens[req.RefreshToken]
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token not found or used")
	}
	delete(b.refreshTokens, req.RefreshToken)

	user := b.users[email]
	accessToken, err := b.mintAccessToken(user)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "could not sign token")
	}
	newRefreshToken := uuid.NewString()
	b.refreshTokens[newRefreshToken] = email

	return c.JSON(http.StatusOK, models.RefreshTokenResponse{
		AccessToken:  accessToken,
		RefreshToken: newRefreshToken,
		Message:      "ok",
	})
}

func (b *stubBackend) mintAccessToken(user *stubUser) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   user.ID,
		"email": user.Email,
		"name":  user.FullName,
		"role":  user.Role,
		"iat":   jwt.NewNumericDate(now),
		"exp":   jwt.NewNumericDate(now.Add(accessTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(b.secret)
}
