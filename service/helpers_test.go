package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/layer-3/rola/adapters/radix"
	"github.com/layer-3/rola/adapters/store"
	"github.com/layer-3/rola/core"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testHRP = "account_tdx_2_"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type wallet struct {
	key     *secp256k1.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	address, err := radix.EncodeAddress(testHRP, radix.EntityVirtualSecp256k1Account, key.PubKey().SerializeCompressed())
	require.NoError(t, err)
	return wallet{key: key, address: address}
}

func (w wallet) sign(challenge string) string {
	digest := sha256.Sum256([]byte(challenge))
	return hex.EncodeToString(ecdsa.Sign(w.key, digest[:]).Serialize())
}

func (w wallet) publicKeyHex() string {
	return hex.EncodeToString(w.key.PubKey().SerializeCompressed())
}

type fixture struct {
	svc   *AuthService
	store *store.MemoryStore
	clock *fakeClock
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, zap.NewNop(), nil)
}

func newFixtureWith(t *testing.T, logger *zap.Logger, publisher *fakePublisher) *fixture {
	t.Helper()
	mem := store.NewMemoryStore()
	clock := newFakeClock()

	challenges := NewChallengeStore(mem, DefaultChallengeTTL, logger)
	challenges.now = clock.Now

	var events *EventLog
	if publisher != nil {
		events = NewEventLog(mem, publisher, logger, nil)
	} else {
		events = NewEventLog(mem, nil, logger, nil)
	}
	events.now = clock.Now

	svc := NewAuthService(challenges, mem, events, radix.NewAddressCodec(testHRP), radix.NewSignatureVerifier(), logger, nil)
	svc.now = clock.Now

	return &fixture{svc: svc, store: mem, clock: clock}
}

func (f *fixture) events(t *testing.T) []core.AuthEvent {
	t.Helper()
	events, err := f.store.ListEvents(context.Background(), "")
	require.NoError(t, err)
	return events
}

type fakePublisher struct {
	mu     sync.Mutex
	events []core.AuthEvent
	err    error
}

func (p *fakePublisher) PublishAuthEvent(ctx context.Context, event *core.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, *event)
	return nil
}
