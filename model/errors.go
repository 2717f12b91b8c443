package model

import "errors"

// Error kinds shared across the store, engine, orchestrator and providers.
// Callers match them with errors.Is; producers wrap them with context.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrValidation        = errors.New("invalid input")
	ErrCredentialMissing = errors.New("credential missing")
	ErrUnknownPlatform   = errors.New("unknown platform")
	ErrRemoteCall        = errors.New("remote call failed")
	ErrCapability        = errors.New("capability failed")
	ErrInterrupted       = errors.New("interrupted")
)
