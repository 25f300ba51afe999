package service

import (
	"context"
	"errors"

	"github.com/rryowa/lms_session/internal/client"
	"github.com/rryowa/lms_session/internal/locale"
	"github.com/rryowa/lms_session/internal/models"
)

// Account operations. Each is a single backend call with standardized error
// translation and one notification; none of them mutate the Session.

// Register creates an account but establishes no session: the backend
// returns no tokens until the email is confirmed. On success the user is
// sent to the confirmation step with a resend cooldown.
func (s *SessionService) Register(ctx context.Context, req models.RegisterRequest) models.RegisterResult {
	resp, err := s.api.Register(ctx, req)
	if err != nil {
		s.log.Warnw("Registration failed", "email", req.Email, "error", err)
		msg := errorMessage(err)
		s.notifier.Notify(msg)
		return models.RegisterResult{Message: msg}
	}

	msg := locale.M(locale.RegisterSuccess)
	s.notifier.Notify(msg)
	s.navigator.NavigateTo(s.cfg.ConfirmEmailPath)

	s.log.Infow("User registered", "userID", resp.UserID)
	return models.RegisterResult{
		Success:     true,
		Email:       req.Email,
		ResendAfter: s.now().Add(s.cfg.ResendCooldown),
		Message:     msg,
	}
}

func (s *SessionService) ConfirmEmail(ctx context.Context, email, code string) models.OpResult {
	return s.accountCall(locale.EmailConfirmed, func() (*models.StatusResponse, error) {
		return s.api.ConfirmEmail(ctx, models.ConfirmEmailRequest{Email: email, Code: code})
	})
}

func (s *SessionService) ResendConfirmationCode(ctx context.Context, email string) models.OpResult {
	return s.accountCall(locale.CodeResent, func() (*models.StatusResponse, error) {
		return s.api.ResendConfirmationCode(ctx, models.ResendConfirmationCodeRequest{Email: email})
	})
}

func (s *SessionService) ForgotPassword(ctx context.Context, email string) models.OpResult {
	return s.accountCall(locale.ResetCodeSent, func() (*models.StatusResponse, error) {
		return s.api.ForgotPassword(ctx, models.ForgotPasswordRequest{Email: email})
	})
}

func (s *SessionService) ResetPassword(ctx context.Context, email, code, newPassword string) models.OpResult {
	return s.accountCall(locale.PasswordReset, func() (*models.StatusResponse, error) {
		return s.api.ResetPassword(ctx, models.ResetPasswordRequest{
			Email:       email,
			Code:        code,
			NewPassword: newPassword,
		})
	})
}

func (s *SessionService) accountCall(successKey locale.Key, call func() (*models.StatusResponse, error)) models.OpResult {
	if _, err := call(); err != nil {
		msg := errorMessage(err)
		s.notifier.Notify(msg)
		return models.OpResult{Message: msg}
	}

	msg := locale.M(successKey)
	s.notifier.Notify(msg)
	return models.OpResult{Success: true, Message: msg}
}

// errorMessage translates backend failures into the localized user-facing
// message for the operation's single notification.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, client.ErrBadCredentials):
		return locale.M(locale.BadCredentials)
	case errors.Is(err, client.ErrAccountNotConfirmed):
		return locale.M(locale.AccountNotConfirmed)
	case errors.Is(err, client.ErrInvalidCode):
		return locale.M(locale.InvalidCode)
	case errors.Is(err, client.ErrUnknownEmail):
		return locale.M(locale.UnknownEmail)
	case errors.Is(err, client.ErrNetwork):
		return locale.M(locale.NetworkError)
	}
	return locale.M(locale.GenericError)
}
