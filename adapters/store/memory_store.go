package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/rola/core"
	"github.com/layer-3/rola/ports"
)

// MemoryStore is an in-memory implementation of the challenge, persona and event
// repositories. It is intended for development and tests.
type MemoryStore struct {
	challenges map[string]core.Challenge
	personas   map[string]core.Persona
	events     []core.AuthEvent
	mu         sync.RWMutex
}

var (
	_ ports.ChallengeRepository = (*MemoryStore)(nil)
	_ ports.PersonaRepository   = (*MemoryStore)(nil)
	_ ports.EventRepository     = (*MemoryStore)(nil)
)

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		challenges: make(map[string]core.Challenge),
		personas:   make(map[string]core.Persona),
	}
}

// CreateChallenge stores a challenge
func (s *MemoryStore) CreateChallenge(ctx context.Context, challenge *core.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.challenges[challenge.ID] = *challenge
	return nil
}

// ConsumeChallenge checks and deletes the challenge under a single lock
func (s *MemoryStore) ConsumeChallenge(ctx context.Context, id, walletAddress string, now time.Time) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	challenge, exists := s.challenges[id]
	if !exists || challenge.WalletAddress != walletAddress || challenge.Expired(now) {
		return nil, core.ErrChallengeNotFound
	}

	delete(s.challenges, id)
	return &challenge, nil
}

// PurgeExpired removes challenges that are no longer usable
func (s *MemoryStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, challenge := range s.challenges {
		if challenge.Expired(now) {
			delete(s.challenges, id)
			deleted++
		}
	}
	return deleted, nil
}

// EnsurePersona creates the persona if it does not exist yet
func (s *MemoryStore) EnsurePersona(ctx context.Context, persona *core.Persona) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.personas[persona.WalletAddress]; !exists {
		s.personas[persona.WalletAddress] = *persona
	}
	return nil
}

// ListPersonas returns personas ordered by creation time
func (s *MemoryStore) ListPersonas(ctx context.Context) ([]core.Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	personas := make([]core.Persona, 0, len(s.personas))
	for _, p := range s.personas {
		personas = append(personas, p)
	}
	sortPersonas(personas)
	return personas, nil
}

// AppendEvent appends an event
func (s *MemoryStore) AppendEvent(ctx context.Context, event *core.AuthEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, *event)
	return nil
}

// ListEvents returns events newest first, optionally filtered by wallet
func (s *MemoryStore) ListEvents(ctx context.Context, walletAddress string) ([]core.AuthEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := make([]core.AuthEvent, 0, len(s.events))
	for i := len(s.events) - 1; i >= 0; i-- {
		if walletAddress == "" || s.events[i].WalletAddress == walletAddress {
			events = append(events, s.events[i])
		}
	}
	return events, nil
}
