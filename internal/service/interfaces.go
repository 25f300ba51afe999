package service

import (
	"context"

	"github.com/rryowa/lms_session/internal/models"
)

// AuthAPI is the backend auth surface consumed by the session service.
// Implemented by client.AuthClient.
type AuthAPI interface {
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Register(ctx context.Context, req models.RegisterRequest) (*models.RegisterResponse, error)
	ConfirmEmail(ctx context.Context, req models.ConfirmEmailRequest) (*models.StatusResponse, error)
	ResendConfirmationCode(ctx context.Context, req models.ResendConfirmationCodeRequest) (*models.StatusResponse, error)
	ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (*models.StatusResponse, error)
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (*models.StatusResponse, error)
	RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error)
}

// Notifier surfaces session events to the user. Every state-changing
// operation emits exactly one notification.
type Notifier interface {
	Notify(message string)
}

// Navigator redirects the user on state transitions.
type Navigator interface {
	NavigateTo(path string)
}
