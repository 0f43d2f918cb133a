package core

import "errors"

var (
	// Input errors. All of them are expected outcomes of untrusted input.
	ErrAddressFormat    = errors.New("invalid wallet address")
	ErrSignatureFormat  = errors.New("signature format error")
	ErrSignatureInvalid = errors.New("invalid signature")

	// ErrChallengeNotFound is returned by challenge repositories when a challenge is
	// missing, expired or was issued for another wallet.
	ErrChallengeNotFound = errors.New("challenge not found")

	// Errors returned by the auth service.
	ErrChallengeInvalid  = errors.New("invalid or expired challenge")
	ErrSignatureRejected = errors.New("signature rejected")

	// ErrStoreOperationFailed marks infrastructure failures of a persistence backend
	ErrStoreOperationFailed = errors.New("store operation failed")
)
