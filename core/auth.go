package core

import "time"

// ActionAuthenticate is the action recorded for every authenticate attempt
const ActionAuthenticate = "authenticate"

// EventStatus is the outcome recorded for an authentication attempt
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailed  EventStatus = "failed"
)

// Challenge represents a single-use authentication challenge
type Challenge struct {
	ID            string    // 32 hex characters, also the message the wallet signs
	WalletAddress string    // Wallet the challenge was issued for
	CreatedAt     time.Time // When the challenge was issued
	ExpiresAt     time.Time // After this instant the challenge is unusable
}

// Expired reports whether the challenge is no longer usable at now
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Persona is the identity record keyed by wallet address
type Persona struct {
	WalletAddress string
	Name          string // Optional display name
	CreatedAt     time.Time
}

// AuthEvent is an append-only record of an authentication attempt
type AuthEvent struct {
	ID            string
	WalletAddress string
	Action        string
	Status        EventStatus
	Timestamp     time.Time
}

// AuthenticateRequest carries a signed challenge submitted by a wallet
type AuthenticateRequest struct {
	WalletAddress string
	Challenge     string
	Signature     string // Hex-encoded DER signature
	PublicKey     string // Optional hex-encoded compressed public key supplied by the signer
}

// Confirmation is returned for a successful authentication
type Confirmation struct {
	WalletAddress string
}
