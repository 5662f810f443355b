package model

import "errors"

// Common errors used across the application
var (
	// Account errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")

	// Registry errors
	ErrIdentityNotFound = errors.New("identity not found in registry")
	ErrIdentityTaken    = errors.New("identity already registered")

	// Protocol errors
	ErrMalformedFrame = errors.New("malformed frame: no terminator within buffer")
	ErrMessageTooLong = errors.New("message exceeds maximum frame size")
)
