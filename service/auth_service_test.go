package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/layer-3/rola/adapters/radix"
	"github.com/layer-3/rola/adapters/store"
	"github.com/layer-3/rola/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuthService_RequestChallenge(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	challenge, err := f.svc.RequestChallenge(ctx, w.address)
	require.NoError(t, err)
	assert.Len(t, challenge, 32)

	_, err = f.svc.RequestChallenge(ctx, w.address)
	require.NoError(t, err)

	personas, err := f.svc.ListPersonas(ctx)
	require.NoError(t, err)
	require.Len(t, personas, 1, "persona is created once")
	assert.Equal(t, w.address, personas[0].WalletAddress)

	_, err = f.svc.RequestChallenge(ctx, "")
	assert.ErrorIs(t, err, core.ErrAddressFormat)
}

func TestAuthService_AuthenticateOnce(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	challenge, err := f.svc.RequestChallenge(ctx, w.address)
	require.NoError(t, err)

	req := core.AuthenticateRequest{
		WalletAddress: w.address,
		Challenge:     challenge,
		Signature:     w.sign(challenge),
		PublicKey:     w.publicKeyHex(),
	}

	confirmation, err := f.svc.Authenticate(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, w.address, confirmation.WalletAddress)

	_, err = f.svc.Authenticate(ctx, req)
	assert.ErrorIs(t, err, core.ErrChallengeInvalid)

	events := f.events(t)
	require.Len(t, events, 2)
	assert.Equal(t, core.StatusFailed, events[0].Status)
	assert.Equal(t, core.StatusSuccess, events[1].Status)
	assert.Equal(t, core.ActionAuthenticate, events[1].Action)
	assert.Equal(t, w.address, events[1].WalletAddress)
	assert.NotEmpty(t, events[1].ID)
	assert.NotEqual(t, events[0].ID, events[1].ID)
}

func TestAuthService_AuthenticateExpired(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	challenge, err := f.svc.RequestChallenge(ctx, w.address)
	require.NoError(t, err)

	f.clock.Advance(DefaultChallengeTTL + time.Second)

	_, err = f.svc.Authenticate(ctx, core.AuthenticateRequest{
		WalletAddress: w.address,
		Challenge:     challenge,
		Signature:     w.sign(challenge),
	})
	assert.ErrorIs(t, err, core.ErrChallengeInvalid)

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, core.StatusFailed, events[0].Status)
}

func TestAuthService_AuthenticateOtherWallet(t *testing.T) {
	f := newFixture(t)
	alice, bob := newWallet(t), newWallet(t)
	ctx := context.Background()

	challenge, err := f.svc.RequestChallenge(ctx, alice.address)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, core.AuthenticateRequest{
		WalletAddress: bob.address,
		Challenge:     challenge,
		Signature:     bob.sign(challenge),
	})
	assert.ErrorIs(t, err, core.ErrChallengeInvalid)

	// the challenge is still usable by the wallet it was issued for
	_, err = f.svc.Authenticate(ctx, core.AuthenticateRequest{
		WalletAddress: alice.address,
		Challenge:     challenge,
		Signature:     alice.sign(challenge),
	})
	assert.NoError(t, err)

	bobEvents, err := f.svc.ListEvents(ctx, bob.address)
	require.NoError(t, err)
	require.Len(t, bobEvents, 1)
	assert.Equal(t, core.StatusFailed, bobEvents[0].Status)
}

func TestAuthService_AuthenticateRejectedSignature(t *testing.T) {
	alice, mallory := newWallet(t), newWallet(t)

	tests := []struct {
		name      string
		signature func(challenge string) string
		wantErr   error
	}{
		{
			name:      "signed by another key",
			signature: mallory.sign,
			wantErr:   core.ErrSignatureInvalid,
		},
		{
			name:      "signed another message",
			signature: func(string) string { return alice.sign("deadbeef00112233445566778899aabb") },
			wantErr:   core.ErrSignatureInvalid,
		},
		{
			name:      "not hex",
			signature: func(string) string { return "zz" },
			wantErr:   core.ErrSignatureFormat,
		},
		{
			name:      "not DER",
			signature: func(string) string { return "0x0102030405" },
			wantErr:   core.ErrSignatureFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()

			challenge, err := f.svc.RequestChallenge(ctx, alice.address)
			require.NoError(t, err)

			_, err = f.svc.Authenticate(ctx, core.AuthenticateRequest{
				WalletAddress: alice.address,
				Challenge:     challenge,
				Signature:     tt.signature(challenge),
			})
			assert.ErrorIs(t, err, core.ErrSignatureRejected)
			assert.ErrorIs(t, err, tt.wantErr)

			// the attempt consumed the challenge
			_, err = f.svc.Authenticate(ctx, core.AuthenticateRequest{
				WalletAddress: alice.address,
				Challenge:     challenge,
				Signature:     alice.sign(challenge),
			})
			assert.ErrorIs(t, err, core.ErrChallengeInvalid)

			events := f.events(t)
			require.Len(t, events, 2)
			for _, e := range events {
				assert.Equal(t, core.StatusFailed, e.Status)
			}
		})
	}
}

func TestAuthService_AuthenticateMalformedAddress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	address := "not-a-bech32-address"

	challenge, err := f.svc.RequestChallenge(ctx, address)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, core.AuthenticateRequest{
		WalletAddress: address,
		Challenge:     challenge,
		Signature:     "3006020101020101",
	})
	assert.ErrorIs(t, err, core.ErrSignatureRejected)
	assert.ErrorIs(t, err, core.ErrAddressFormat)
	assert.Len(t, f.events(t), 1)
}

func TestAuthService_AuthenticateConcurrent(t *testing.T) {
	f := newFixture(t)
	w := newWallet(t)
	ctx := context.Background()

	challenge, err := f.svc.RequestChallenge(ctx, w.address)
	require.NoError(t, err)
	req := core.AuthenticateRequest{
		WalletAddress: w.address,
		Challenge:     challenge,
		Signature:     w.sign(challenge),
	}

	const n = 50
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		invalid   int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := f.svc.Authenticate(ctx, req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, core.ErrChallengeInvalid):
				invalid++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, invalid)

	events := f.events(t)
	require.Len(t, events, n)
	var ok int
	for _, e := range events {
		if e.Status == core.StatusSuccess {
			ok++
		}
	}
	assert.Equal(t, 1, ok)
}

func TestAuthService_PublicKeyHintMismatch(t *testing.T) {
	obsCore, logs := observer.New(zapcore.WarnLevel)
	f := newFixtureWith(t, zap.New(obsCore), nil)
	alice, bob := newWallet(t), newWallet(t)
	ctx := context.Background()

	challenge, err := f.svc.RequestChallenge(ctx, alice.address)
	require.NoError(t, err)

	// the hint does not take part in verification
	_, err = f.svc.Authenticate(ctx, core.AuthenticateRequest{
		WalletAddress: alice.address,
		Challenge:     challenge,
		Signature:     alice.sign(challenge),
		PublicKey:     bob.publicKeyHex(),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("public key hint does not match wallet address").Len())
}

func TestAuthService_EventPublishing(t *testing.T) {
	publisher := &fakePublisher{}
	f := newFixtureWith(t, zap.NewNop(), publisher)
	w := newWallet(t)
	ctx := context.Background()

	challenge, err := f.svc.RequestChallenge(ctx, w.address)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, core.AuthenticateRequest{
		WalletAddress: w.address,
		Challenge:     challenge,
		Signature:     w.sign(challenge),
	})
	require.NoError(t, err)

	require.Len(t, publisher.events, 1)
	assert.Equal(t, f.events(t)[0].ID, publisher.events[0].ID)

	publisher.err = errors.New("broker down")
	challenge, err = f.svc.RequestChallenge(ctx, w.address)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(ctx, core.AuthenticateRequest{
		WalletAddress: w.address,
		Challenge:     challenge,
		Signature:     w.sign(challenge),
	})
	assert.NoError(t, err, "publish failures do not affect authentication")
	assert.Len(t, f.events(t), 2)
}

type failingEventRepo struct {
	*store.MemoryStore
}

func (failingEventRepo) AppendEvent(ctx context.Context, event *core.AuthEvent) error {
	return core.ErrStoreOperationFailed
}

func TestAuthService_EventAppendFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	logger := zap.NewNop()
	svc := NewAuthService(
		NewChallengeStore(mem, time.Minute, logger),
		mem,
		NewEventLog(failingEventRepo{mem}, nil, logger, nil),
		radix.NewAddressCodec(),
		radix.NewSignatureVerifier(),
		logger,
		nil,
	)
	w := newWallet(t)
	ctx := context.Background()

	challenge, err := svc.RequestChallenge(ctx, w.address)
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, core.AuthenticateRequest{
		WalletAddress: w.address,
		Challenge:     challenge,
		Signature:     w.sign(challenge),
	})
	assert.NoError(t, err)
}

func TestAuthService_ChallengeBackendFailure(t *testing.T) {
	mem := store.NewMemoryStore()
	logger := zap.NewNop()
	repo := failingChallengeRepo{MemoryStore: mem, err: core.ErrStoreOperationFailed}
	svc := NewAuthService(
		NewChallengeStore(repo, time.Minute, logger),
		mem,
		NewEventLog(mem, nil, logger, nil),
		radix.NewAddressCodec(),
		radix.NewSignatureVerifier(),
		logger,
		nil,
	)
	w := newWallet(t)

	_, err := svc.Authenticate(context.Background(), core.AuthenticateRequest{
		WalletAddress: w.address,
		Challenge:     "00112233445566778899aabbccddeeff",
		Signature:     w.sign("00112233445566778899aabbccddeeff"),
	})
	assert.ErrorIs(t, err, core.ErrStoreOperationFailed)
	assert.NotErrorIs(t, err, core.ErrChallengeInvalid)

	events, err := mem.ListEvents(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, core.StatusFailed, events[0].Status)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, outcomeSuccess, outcomeOf(nil))
	assert.Equal(t, outcomeInvalidChallenge, outcomeOf(core.ErrChallengeInvalid))
	assert.Equal(t, outcomeInvalidSignature, outcomeOf(rejected(core.ErrSignatureInvalid)))
	assert.Equal(t, outcomeMalformed, outcomeOf(rejected(core.ErrAddressFormat)))
	assert.Equal(t, outcomeError, outcomeOf(core.ErrStoreOperationFailed))
}

func TestAuthService_AuthenticateEmptyWallet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Authenticate(ctx, core.AuthenticateRequest{Challenge: "00112233445566778899aabbccddeeff"})
	assert.ErrorIs(t, err, core.ErrAddressFormat)
	assert.ErrorIs(t, err, core.ErrSignatureRejected)

	personas, err := f.svc.ListPersonas(ctx)
	require.NoError(t, err)
	assert.Empty(t, personas)

	events := f.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, core.StatusFailed, events[0].Status)
}
