package models

import "time"

// User is the identity record returned by the auth backend.
// Replaced wholesale on login, cleared on logout.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Role        string `json:"role"`
}

// Session holds the in-memory credential state of the running application.
// Exactly one Session exists per process; it is owned by service.SessionService.
type Session struct {
	User           *User
	AccessToken    string
	RefreshToken   string
	LastActivityAt time.Time
}

// HasCredentials reports whether a token pair is held.
// The pair is always set and cleared together.
func (s *Session) HasCredentials() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}
