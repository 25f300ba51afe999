package models

import "time"

// Result shapes returned by the public session operations. Expected failures
// (bad credentials, unknown email, unreachable server) come back as
// Success=false with a localized Message instead of an error, so callers
// never branch on error types for user-facing flows.

type LoginResult struct {
	Success bool
	User    *User
	Message string
}

type RegisterResult struct {
	Success bool
	Email   string
	// ResendAfter is the earliest time the confirmation code may be resent.
	ResendAfter time.Time
	Message     string
}

type OpResult struct {
	Success bool
	Message string
}
