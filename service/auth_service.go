package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/rola/core"
	"github.com/layer-3/rola/internal/metrics"
	"github.com/layer-3/rola/ports"
	"go.uber.org/zap"
)

// Outcome labels reported to metrics
const (
	outcomeSuccess          = "success"
	outcomeInvalidChallenge = "invalid_challenge"
	outcomeInvalidSignature = "invalid_signature"
	outcomeMalformed        = "malformed"
	outcomeError            = "error"
)

// AuthService handles authentication business logic
type AuthService struct {
	challenges *ChallengeStore
	personas   ports.PersonaRepository
	events     *EventLog
	codec      ports.AddressCodec
	verifier   ports.SignatureVerifier
	logger     *zap.Logger
	metrics    metrics.Recorder

	now func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	challenges *ChallengeStore,
	personas ports.PersonaRepository,
	events *EventLog,
	codec ports.AddressCodec,
	verifier ports.SignatureVerifier,
	logger *zap.Logger,
	m metrics.Recorder,
) *AuthService {
	if m == nil {
		m = metrics.Nop{}
	}
	return &AuthService{
		challenges: challenges,
		personas:   personas,
		events:     events,
		codec:      codec,
		verifier:   verifier,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// RequestChallenge registers the wallet if needed and issues a new challenge for it
func (s *AuthService) RequestChallenge(ctx context.Context, walletAddress string) (string, error) {
	if walletAddress == "" {
		return "", fmt.Errorf("wallet address is required: %w", core.ErrAddressFormat)
	}

	if err := s.ensurePersona(ctx, walletAddress); err != nil {
		return "", err
	}

	challenge, err := s.challenges.Issue(ctx, walletAddress)
	if err != nil {
		return "", err
	}

	s.metrics.ChallengeIssued()
	s.logger.Debug("challenge issued",
		zap.String("wallet_address", walletAddress),
		zap.Time("expires_at", challenge.ExpiresAt),
	)

	return challenge.ID, nil
}

// Authenticate consumes the challenge and verifies its signature with the key carried
// by the wallet address. Every call records exactly one auth event.
//
// Failures wrap core.ErrChallengeInvalid or core.ErrSignatureRejected. Rejected
// signatures also wrap the underlying address or signature error.
func (s *AuthService) Authenticate(ctx context.Context, req core.AuthenticateRequest) (confirmation *core.Confirmation, err error) {
	defer func() {
		s.recordOutcome(ctx, req.WalletAddress, err)
	}()

	if req.WalletAddress == "" {
		return nil, rejected(fmt.Errorf("wallet address is required: %w", core.ErrAddressFormat))
	}

	if err := s.ensurePersona(ctx, req.WalletAddress); err != nil {
		return nil, err
	}

	if _, err := s.challenges.Consume(ctx, req.Challenge, req.WalletAddress); err != nil {
		if errors.Is(err, core.ErrChallengeNotFound) {
			return nil, core.ErrChallengeInvalid
		}
		return nil, err
	}

	publicKey, err := s.codec.DecodePublicKey(req.WalletAddress)
	if err != nil {
		return nil, rejected(err)
	}

	signature, err := s.verifier.DecodeHex(req.Signature)
	if err != nil {
		return nil, rejected(err)
	}

	s.checkPublicKeyHint(req, publicKey)

	if err := s.verifier.Verify(publicKey, req.Challenge, signature); err != nil {
		return nil, rejected(err)
	}

	return &core.Confirmation{WalletAddress: req.WalletAddress}, nil
}

// ListPersonas returns every known persona
func (s *AuthService) ListPersonas(ctx context.Context) ([]core.Persona, error) {
	personas, err := s.personas.ListPersonas(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list personas: %w", err)
	}
	return personas, nil
}

// ListEvents returns auth events newest first, optionally for one wallet
func (s *AuthService) ListEvents(ctx context.Context, walletAddress string) ([]core.AuthEvent, error) {
	return s.events.List(ctx, walletAddress)
}

func (s *AuthService) ensurePersona(ctx context.Context, walletAddress string) error {
	err := s.personas.EnsurePersona(ctx, &core.Persona{
		WalletAddress: walletAddress,
		CreatedAt:     s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to ensure persona: %w", err)
	}
	return nil
}

// checkPublicKeyHint compares the key sent by the signer with the one in the address.
// The hint is never used for verification.
func (s *AuthService) checkPublicKeyHint(req core.AuthenticateRequest, addressKey []byte) {
	if req.PublicKey == "" {
		return
	}
	hint, err := s.verifier.DecodeHex(req.PublicKey)
	if err != nil {
		s.logger.Debug("ignoring malformed public key hint",
			zap.String("wallet_address", req.WalletAddress),
			zap.Error(err),
		)
		return
	}
	if !bytes.Equal(hint, addressKey) {
		s.logger.Warn("public key hint does not match wallet address",
			zap.String("wallet_address", req.WalletAddress),
			zap.String("public_key", req.PublicKey),
		)
	}
}

// recordOutcome appends the auth event for a finished attempt. A failed append is
// logged and counted, the decision itself stands.
func (s *AuthService) recordOutcome(ctx context.Context, walletAddress string, authErr error) {
	status := core.StatusSuccess
	if authErr != nil {
		status = core.StatusFailed
	}

	outcome := outcomeOf(authErr)
	s.metrics.AuthAttempt(outcome)

	if _, err := s.events.Append(context.WithoutCancel(ctx), walletAddress, core.ActionAuthenticate, status); err != nil {
		s.logger.Error("failed to record auth event",
			zap.String("wallet_address", walletAddress),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}

	fields := []zap.Field{
		zap.String("wallet_address", walletAddress),
		zap.String("outcome", outcome),
	}
	switch outcome {
	case outcomeSuccess:
		s.logger.Info("wallet authenticated", fields...)
	case outcomeError:
		s.logger.Error("authentication failed", append(fields, zap.Error(authErr))...)
	default:
		s.logger.Info("authentication rejected", append(fields, zap.Error(authErr))...)
	}
}

func rejected(err error) error {
	return fmt.Errorf("%w: %w", core.ErrSignatureRejected, err)
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeSuccess
	case errors.Is(err, core.ErrChallengeInvalid):
		return outcomeInvalidChallenge
	case errors.Is(err, core.ErrSignatureInvalid):
		return outcomeInvalidSignature
	case errors.Is(err, core.ErrSignatureRejected):
		return outcomeMalformed
	default:
		return outcomeError
	}
}
