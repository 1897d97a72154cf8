// Package common defines shared constants and sentinel errors used across the
// bot layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Storage / crypto errors.
	ErrCorruptCiphertext = errors.New("corrupt ciphertext")

	// Login flow errors.
	ErrLoginInProgress = errors.New("login already in progress")
	ErrInvalidInput    = errors.New("invalid input")
	ErrAuthFailure     = errors.New("authentication failure")
	ErrTransport       = errors.New("remote service unavailable")

	// Access control.
	ErrBanned = errors.New("user is banned")

	// Generic/internal flow control.
	ErrInternal = errors.New("internal error")
)
