package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/rola/core"
	"github.com/layer-3/rola/ports"
	"github.com/redis/go-redis/v9"
)

// consumeScript deletes the challenge only when it belongs to the wallet and has not
// expired. KEYS: challenge hash, expiry index. ARGV: wallet, now (ms), challenge id.
var consumeScript = redis.NewScript(`
local vals = redis.call('HMGET', KEYS[1], 'wallet_address', 'created_at', 'expires_at')
if not vals[1] then
	return false
end
if vals[1] ~= ARGV[1] then
	return false
end
if tonumber(vals[3]) <= tonumber(ARGV[2]) then
	return false
end
redis.call('DEL', KEYS[1])
redis.call('ZREM', KEYS[2], ARGV[3])
return {vals[2], vals[3]}
`)

// purgeScript deletes every indexed challenge expired at ARGV[1].
// KEYS: expiry index. ARGV: now (ms), challenge key prefix.
var purgeScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
local deleted = 0
for _, id in ipairs(ids) do
	deleted = deleted + redis.call('DEL', ARGV[2] .. id)
end
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', ARGV[1])
return deleted
`)

// RedisStore is a Redis implementation of the challenge, persona and event repositories
type RedisStore struct {
	client *redis.Client
	prefix string
}

var (
	_ ports.ChallengeRepository = (*RedisStore)(nil)
	_ ports.PersonaRepository   = (*RedisStore)(nil)
	_ ports.EventRepository     = (*RedisStore)(nil)
)

// NewRedisStore creates a new Redis store
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "rola:",
	}
}

func (s *RedisStore) challengeKey(id string) string { return s.prefix + "challenge:" + id }
func (s *RedisStore) expiryIndexKey() string      { return s.prefix + "challenges:expiry" }
func (s *RedisStore) personasKey() string         { return s.prefix + "personas" }
func (s *RedisStore) eventsKey() string           { return s.prefix + "events" }

// CreateChallenge stores the challenge as a hash that Redis expires at ExpiresAt
func (s *RedisStore) CreateChallenge(ctx context.Context, challenge *core.Challenge) error {
	key := s.challengeKey(challenge.ID)

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"wallet_address", challenge.WalletAddress,
			"created_at", challenge.CreatedAt.UnixMilli(),
			"expires_at", challenge.ExpiresAt.UnixMilli(),
		)
		pipe.ExpireAt(ctx, key, challenge.ExpiresAt)
		pipe.ZAdd(ctx, s.expiryIndexKey(), redis.Z{
			Score:  float64(challenge.ExpiresAt.UnixMilli()),
			Member: challenge.ID,
		})
		return nil
	})
	if err != nil {
		return storeError("create challenge", err)
	}
	return nil
}

// ConsumeChallenge validates and deletes the challenge in one script execution
func (s *RedisStore) ConsumeChallenge(ctx context.Context, id, walletAddress string, now time.Time) (*core.Challenge, error) {
	keys := []string{s.challengeKey(id), s.expiryIndexKey()}

	res, err := consumeScript.Run(ctx, s.client, keys, walletAddress, now.UnixMilli(), id).StringSlice()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, core.ErrChallengeNotFound
		}
		return nil, storeError("consume challenge", err)
	}
	if len(res) != 2 {
		return nil, storeError("consume challenge", fmt.Errorf("unexpected reply length %d", len(res)))
	}

	createdAt, err := parseMillis(res[0])
	if err != nil {
		return nil, storeError("consume challenge", err)
	}
	expiresAt, err := parseMillis(res[1])
	if err != nil {
		return nil, storeError("consume challenge", err)
	}

	return &core.Challenge{
		ID:            id,
		WalletAddress: walletAddress,
		CreatedAt:     createdAt,
		ExpiresAt:     expiresAt,
	}, nil
}

// PurgeExpired removes expired challenges tracked by the expiry index. Redis already
// evicts the hashes on their own, so the count only includes keys still present.
func (s *RedisStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	deleted, err := purgeScript.Run(ctx, s.client,
		[]string{s.expiryIndexKey()}, now.UnixMilli(), s.challengeKey("")).Int64()
	if err != nil {
		return 0, storeError("purge challenges", err)
	}
	return deleted, nil
}

type redisPersona struct {
	Name      string `json:"name,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

// EnsurePersona adds the persona with HSETNX so an existing record is kept
func (s *RedisStore) EnsurePersona(ctx context.Context, persona *core.Persona) error {
	payload, err := json.Marshal(redisPersona{
		Name:      persona.Name,
		CreatedAt: persona.CreatedAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal persona: %w", err)
	}

	if err := s.client.HSetNX(ctx, s.personasKey(), persona.WalletAddress, payload).Err(); err != nil {
		return storeError("ensure persona", err)
	}
	return nil
}

// ListPersonas returns all personas
func (s *RedisStore) ListPersonas(ctx context.Context) ([]core.Persona, error) {
	all, err := s.client.HGetAll(ctx, s.personasKey()).Result()
	if err != nil {
		return nil, storeError("list personas", err)
	}

	personas := make([]core.Persona, 0, len(all))
	for address, raw := range all {
		var p redisPersona
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, storeError("list personas", err)
		}
		personas = append(personas, core.Persona{
			WalletAddress: address,
			Name:          p.Name,
			CreatedAt:     time.UnixMilli(p.CreatedAt).UTC(),
		})
	}
	sortPersonas(personas)
	return personas, nil
}

type redisEvent struct {
	ID            string `json:"id"`
	WalletAddress string `json:"wallet_address"`
	Action        string `json:"action"`
	Status        string `json:"status"`
	Timestamp     int64  `json:"timestamp"`
}

// AppendEvent pushes the event onto the end of the event list
func (s *RedisStore) AppendEvent(ctx context.Context, event *core.AuthEvent) error {
	payload, err := json.Marshal(redisEvent{
		ID:            event.ID,
		WalletAddress: event.WalletAddress,
		Action:        event.Action,
		Status:        string(event.Status),
		Timestamp:     event.Timestamp.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := s.client.RPush(ctx, s.eventsKey(), payload).Err(); err != nil {
		return storeError("append event", err)
	}
	return nil
}

// ListEvents returns events newest first
func (s *RedisStore) ListEvents(ctx context.Context, walletAddress string) ([]core.AuthEvent, error) {
	raw, err := s.client.LRange(ctx, s.eventsKey(), 0, -1).Result()
	if err != nil {
		return nil, storeError("list events", err)
	}

	events := make([]core.AuthEvent, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var e redisEvent
		if err := json.Unmarshal([]byte(raw[i]), &e); err != nil {
			return nil, storeError("list events", err)
		}
		if walletAddress != "" && e.WalletAddress != walletAddress {
			continue
		}
		events = append(events, core.AuthEvent{
			ID:            e.ID,
			WalletAddress: e.WalletAddress,
			Action:        e.Action,
			Status:        core.EventStatus(e.Status),
			Timestamp:     time.UnixMilli(e.Timestamp).UTC(),
		})
	}
	return events, nil
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func parseMillis(v string) (time.Time, error) {
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", v, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
