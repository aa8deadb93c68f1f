package tracker

import "errors"

var (
	// ErrNotFound is returned when an operation requires an existing record
	ErrNotFound = errors.New("invoice not found")

	// ErrInvalidStatus is returned for status values outside the recognized set
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidTransition is returned when a status change is not allowed
	// by the transition table
	ErrInvalidTransition = errors.New("invalid status transition")
)
