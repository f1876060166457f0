package domain

import (
	"errors" // Sentinel errors
	"fmt"    // Message formatting
)

var (
	// ErrNotFound is returned when a referenced row does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique value is already taken
	ErrConflict = errors.New("already exists")
)

// RuleError is a business rule violation that the caller can correct
type RuleError struct {
	Message string
}

func (e *RuleError) Error() string { return e.Message }

// Rule builds a RuleError from a format string
func Rule(format string, args ...any) error {
	return &RuleError{Message: fmt.Sprintf(format, args...)}
}

// IsRule reports whether err wraps a RuleError
func IsRule(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}
