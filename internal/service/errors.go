package service

import "errors"

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrUserNotFound     = errors.New("user not found")
	ErrTransientFetch   = errors.New("payment provider unavailable")
	ErrSessionNotFound  = errors.New("checkout session not found")
	ErrSessionOwnership = errors.New("checkout session belongs to another user")
	ErrConfiguration    = errors.New("billing is not configured")
	ErrGeneration       = errors.New("code generation failed")
	ErrProRequired      = errors.New("pro plan required")
)
