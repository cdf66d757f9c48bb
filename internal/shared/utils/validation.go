package utils

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// JSON size limits (in bytes)
const (
	MaxJSONSize    = 1 * 1024 * 1024 // maximum call payload
	MaxMessageSize = 64 * 1024       // maximum single WebSocket frame
)

// String length limits
const (
	MaxUsernameLength   = 64
	MinUsernameLength   = 3
	MaxPasswordLength   = 128
	MinPasswordLength   = 8
	MaxIdentifierLength = 128
	MaxTokenLength      = 128
)

var (
	// IdentifierPattern matches interface, method and module names
	IdentifierPattern = regexp.MustCompile(`^[a-zA-Z_$][a-zA-Z0-9_$]*$`)
	// UsernamePattern allows alphanumeric and underscores
	UsernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

// JSONSizeValidator validates JSON size limits
type JSONSizeValidator struct {
	maxSize int
}

// NewJSONSizeValidator creates a new validator with the specified max size
func NewJSONSizeValidator(maxSize int) *JSONSizeValidator {
	return &JSONSizeValidator{maxSize: maxSize}
}

// DefaultJSONValidator returns a validator with the default 1MB limit
func DefaultJSONValidator() *JSONSizeValidator {
	return NewJSONSizeValidator(MaxJSONSize)
}

// ValidateSize checks the raw payload size
func (v *JSONSizeValidator) ValidateSize(data []byte) error {
	if len(data) > v.maxSize {
		return fmt.Errorf("payload size %d exceeds maximum %d bytes", len(data), v.maxSize)
	}
	return nil
}

// ValidateJSON checks size and syntax
func (v *JSONSizeValidator) ValidateJSON(data []byte) error {
	if err := v.ValidateSize(data); err != nil {
		return err
	}
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON payload")
	}
	return nil
}

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && value == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateIdentifier validates an interface, method or module name
func ValidateIdentifier(name, fieldName string) error {
	if err := ValidateString(name, fieldName, 1, MaxIdentifierLength, true); err != nil {
		return err
	}
	if !IdentifierPattern.MatchString(name) {
		return fmt.Errorf("%s %q is not a valid identifier", fieldName, name)
	}
	return nil
}

// ValidateUsername validates a username
func ValidateUsername(username string) error {
	if err := ValidateString(username, "username", MinUsernameLength, MaxUsernameLength, true); err != nil {
		return err
	}

	if !UsernamePattern.MatchString(username) {
		return fmt.Errorf("username contains invalid characters (only alphanumeric and underscores allowed)")
	}

	return nil
}

// ValidatePassword validates a password against a minimum length
func ValidatePassword(password string, minLen int) error {
	if minLen <= 0 {
		minLen = MinPasswordLength
	}
	return ValidateString(password, "password", minLen, MaxPasswordLength, true)
}

// ValidateToken validates an opaque session token
func ValidateToken(token string) error {
	return ValidateString(token, "token", 1, MaxTokenLength, true)
}
