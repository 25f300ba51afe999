package util

import "fmt"

// ResponseError is a backend error response carried with its HTTP status so
// callers can translate it into a user-facing message.
type ResponseError struct {
	Msg    string
	Status int
}

func (e ResponseError) Error() string { return e.Msg }

func NewResponseError(status int, format string, args ...interface{}) error {
	return ResponseError{
		Msg:    fmt.Sprintf(format, args...),
		Status: status,
	}
}
