package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

var (
	// ErrNumberInvalid indicates a channel ordinal below 1.
	ErrNumberInvalid = errors.New("channel number must be at least 1")

	// ErrNameRequired indicates a channel without display name.
	ErrNameRequired = errors.New("name is required")

	// ErrURLRequired indicates a blank stream URL.
	ErrURLRequired = errors.New("url is required")

	// ErrInvalidTimeRange indicates a guide entry whose stop is not after its start.
	ErrInvalidTimeRange = errors.New("stop must be after start")
)
