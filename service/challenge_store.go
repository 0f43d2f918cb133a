package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/layer-3/rola/core"
	"github.com/layer-3/rola/ports"
	"go.uber.org/zap"
)

const (
	// DefaultChallengeTTL is how long an issued challenge stays usable
	DefaultChallengeTTL = 5 * time.Minute

	challengeSize = 16
)

// ChallengeStore issues single-use challenges and consumes them
type ChallengeStore struct {
	repo   ports.ChallengeRepository
	logger *zap.Logger
	ttl    time.Duration

	random io.Reader
	now    func() time.Time
}

// NewChallengeStore creates a challenge store. A non-positive ttl selects
// DefaultChallengeTTL.
func NewChallengeStore(repo ports.ChallengeRepository, ttl time.Duration, logger *zap.Logger) *ChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeStore{
		repo:   repo,
		logger: logger,
		ttl:    ttl,
		random: rand.Reader,
		now:    time.Now,
	}
}

// Issue generates a random challenge for the wallet and persists it
func (s *ChallengeStore) Issue(ctx context.Context, walletAddress string) (*core.Challenge, error) {
	nonce := make([]byte, challengeSize)
	if _, err := io.ReadFull(s.random, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate challenge: %w", err)
	}

	now := s.now().UTC()
	challenge := &core.Challenge{
		ID:            hex.EncodeToString(nonce),
		WalletAddress: walletAddress,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.ttl),
	}

	if err := s.repo.CreateChallenge(ctx, challenge); err != nil {
		return nil, fmt.Errorf("failed to store challenge: %w", err)
	}

	return challenge, nil
}

// Consume validates and deletes the challenge in one step. A missing, expired or
// foreign challenge is reported as core.ErrChallengeNotFound.
func (s *ChallengeStore) Consume(ctx context.Context, id, walletAddress string) (*core.Challenge, error) {
	challenge, err := s.repo.ConsumeChallenge(ctx, id, walletAddress, s.now().UTC())
	if errors.Is(err, core.ErrChallengeNotFound) {
		s.logger.Debug("challenge rejected: unknown, expired or issued for another wallet",
			zap.String("challenge", id),
			zap.String("wallet_address", walletAddress),
		)
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to consume challenge: %w", err)
	}
	return challenge, nil
}
