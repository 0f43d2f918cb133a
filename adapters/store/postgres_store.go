package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/layer-3/rola/core"
	"github.com/layer-3/rola/ports"
)

// PostgresStore is a PostgreSQL implementation of the challenge, persona and event
// repositories
type PostgresStore struct {
	db *sql.DB
}

var (
	_ ports.ChallengeRepository = (*PostgresStore)(nil)
	_ ports.PersonaRepository   = (*PostgresStore)(nil)
	_ ports.EventRepository     = (*PostgresStore)(nil)
)

// OpenPostgres opens a connection pool. sql.Open does not connect, use Ping to check.
func OpenPostgres(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateChallenge inserts a challenge
func (s *PostgresStore) CreateChallenge(ctx context.Context, challenge *core.Challenge) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO challenges (challenge, wallet_address, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		challenge.ID, challenge.WalletAddress, challenge.CreatedAt, challenge.ExpiresAt,
	)
	if err != nil {
		return storeError("create challenge", err)
	}
	return nil
}

// ConsumeChallenge deletes the matching, unexpired row in one statement. Concurrent
// callers serialize on the row lock and only one of them gets the row back.
func (s *PostgresStore) ConsumeChallenge(ctx context.Context, id, walletAddress string, now time.Time) (*core.Challenge, error) {
	challenge := &core.Challenge{ID: id, WalletAddress: walletAddress}
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM challenges
		 WHERE challenge = $1 AND wallet_address = $2 AND expires_at > $3
		 RETURNING created_at, expires_at`,
		id, walletAddress, now,
	).Scan(&challenge.CreatedAt, &challenge.ExpiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrChallengeNotFound
	}
	if err != nil {
		return nil, storeError("consume challenge", err)
	}
	return challenge, nil
}

// PurgeExpired deletes expired challenges
func (s *PostgresStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM challenges WHERE expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, storeError("purge challenges", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, storeError("purge challenges", err)
	}
	return deleted, nil
}

// EnsurePersona inserts the persona unless it already exists
func (s *PostgresStore) EnsurePersona(ctx context.Context, persona *core.Persona) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO personas (wallet_address, name, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (wallet_address) DO NOTHING`,
		persona.WalletAddress, nullString(persona.Name), persona.CreatedAt,
	)
	if err != nil {
		return storeError("ensure persona", err)
	}
	return nil
}

// ListPersonas returns all personas ordered by creation time
func (s *PostgresStore) ListPersonas(ctx context.Context) ([]core.Persona, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT wallet_address, name, created_at
		 FROM personas
		 ORDER BY created_at, wallet_address`,
	)
	if err != nil {
		return nil, storeError("list personas", err)
	}
	defer rows.Close()

	var personas []core.Persona
	for rows.Next() {
		var (
			p    core.Persona
			name sql.NullString
		)
		if err := rows.Scan(&p.WalletAddress, &name, &p.CreatedAt); err != nil {
			return nil, storeError("scan persona", err)
		}
		p.Name = name.String
		personas = append(personas, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list personas", err)
	}
	return personas, nil
}

// AppendEvent inserts an event row
func (s *PostgresStore) AppendEvent(ctx context.Context, event *core.AuthEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_events (tx_id, wallet_address, action, status, timestamp)
		 VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.WalletAddress, event.Action, string(event.Status), event.Timestamp,
	)
	if err != nil {
		return storeError("append event", err)
	}
	return nil
}

// ListEvents returns events newest first
func (s *PostgresStore) ListEvents(ctx context.Context, walletAddress string) ([]core.AuthEvent, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if walletAddress == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT tx_id, wallet_address, action, status, timestamp
			 FROM auth_events
			 ORDER BY timestamp DESC`,
		)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT tx_id, wallet_address, action, status, timestamp
			 FROM auth_events
			 WHERE wallet_address = $1
			 ORDER BY timestamp DESC`,
			walletAddress,
		)
	}
	if err != nil {
		return nil, storeError("list events", err)
	}
	defer rows.Close()

	var events []core.AuthEvent
	for rows.Next() {
		var (
			e      core.AuthEvent
			status string
		)
		if err := rows.Scan(&e.ID, &e.WalletAddress, &e.Action, &status, &e.Timestamp); err != nil {
			return nil, storeError("scan event", err)
		}
		e.Status = core.EventStatus(status)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list events", err)
	}
	return events, nil
}

// Ping checks the connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
