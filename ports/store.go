package ports

import (
	"context"
	"time"

	"github.com/layer-3/rola/core"
)

// ChallengeRepository persists challenges
type ChallengeRepository interface {
	// CreateChallenge stores a newly issued challenge
	CreateChallenge(ctx context.Context, challenge *core.Challenge) error

	// ConsumeChallenge atomically deletes and returns the challenge when it exists,
	// belongs to walletAddress and is not expired at now. Any other case returns
	// core.ErrChallengeNotFound and leaves the record untouched.
	ConsumeChallenge(ctx context.Context, id, walletAddress string, now time.Time) (*core.Challenge, error)

	// PurgeExpired deletes challenges that expired at or before now
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// PersonaRepository persists personas keyed by wallet address
type PersonaRepository interface {
	// EnsurePersona creates the persona if absent. It is idempotent.
	EnsurePersona(ctx context.Context, persona *core.Persona) error

	// ListPersonas returns all known personas
	ListPersonas(ctx context.Context) ([]core.Persona, error)
}
