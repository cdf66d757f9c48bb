package types

import (
	"errors"
	"fmt"
)

// Error codes reported across the kernel/module boundary.
const (
	CodeVersion  = "EVERSION"
	CodeNotFound = "ENOTFOUND"
	CodeParams   = "EPARAMS"
	CodeInternal = "EINTERNAL"
	CodeSchema   = "ESCHEMA"
	CodeTask     = "ETASK"
	CodeAuth     = "EAUTH"
)

// Error is a structured failure carrying a message and a machine-readable code.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewError creates an Error with a formatted message
func NewError(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// CodeOf returns the code of the first *Error in err's chain, or CodeInternal.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// AsError converts any error into an *Error, keeping existing codes.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}
