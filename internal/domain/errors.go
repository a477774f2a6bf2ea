package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound     = errors.New("domain: not found")
	ErrConflict     = errors.New("domain: conflict")
	ErrInvalidInput = errors.New("domain: invalid input")
	ErrTaskLocked   = errors.New("domain: task locked by incomplete prerequisites")
)
