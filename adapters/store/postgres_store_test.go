package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/layer-3/rola/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostgres(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_CreateChallenge(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Now().UTC()
	c := newChallenge("00112233445566778899aabbccddeeff", "wallet_a", now)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO challenges")).
		WithArgs(c.ID, c.WalletAddress, c.CreatedAt, c.ExpiresAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.CreateChallenge(context.Background(), c))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ConsumeChallenge(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Now().UTC()
	c := newChallenge("00112233445566778899aabbccddeeff", "wallet_a", now)

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM challenges")).
		WithArgs(c.ID, "wallet_a", now).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "expires_at"}).AddRow(c.CreatedAt, c.ExpiresAt))

	got, err := s.ConsumeChallenge(context.Background(), c.ID, "wallet_a", now)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)
	assert.Equal(t, c.ExpiresAt, got.ExpiresAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ConsumeChallenge_NotFound(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM challenges")).
		WithArgs("missing", "wallet_a", now).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "expires_at"}))

	_, err := s.ConsumeChallenge(context.Background(), "missing", "wallet_a", now)
	assert.ErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestPostgresStore_ConsumeChallenge_BackendError(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("DELETE FROM challenges")).
		WillReturnError(errors.New("connection reset"))

	_, err := s.ConsumeChallenge(context.Background(), "id", "wallet_a", now)
	assert.ErrorIs(t, err, core.ErrStoreOperationFailed)
	assert.NotErrorIs(t, err, core.ErrChallengeNotFound)
}

func TestPostgresStore_PurgeExpired(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM challenges WHERE expires_at <= $1")).
		WithArgs(now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := s.PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
}

func TestPostgresStore_EnsurePersona(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (wallet_address) DO NOTHING")).
		WithArgs("wallet_a", nullString(""), now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.EnsurePersona(context.Background(), &core.Persona{WalletAddress: "wallet_a", CreatedAt: now}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListPersonas(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta("FROM personas")).
		WillReturnRows(sqlmock.NewRows([]string{"wallet_address", "name", "created_at"}).
			AddRow("wallet_a", "Alice", now).
			AddRow("wallet_b", nil, now))

	personas, err := s.ListPersonas(context.Background())
	require.NoError(t, err)
	require.Len(t, personas, 2)
	assert.Equal(t, "Alice", personas[0].Name)
	assert.Empty(t, personas[1].Name)
}

func TestPostgresStore_AppendAndListEvents(t *testing.T) {
	s, mock := newMockPostgres(t)
	now := time.Now().UTC()
	event := &core.AuthEvent{
		ID:            "event-1",
		WalletAddress: "wallet_a",
		Action:        core.ActionAuthenticate,
		Status:        core.StatusSuccess,
		Timestamp:     now,
	}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO auth_events")).
		WithArgs("event-1", "wallet_a", "authenticate", "success", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE wallet_address = $1")).
		WithArgs("wallet_a").
		WillReturnRows(sqlmock.NewRows([]string{"tx_id", "wallet_address", "action", "status", "timestamp"}).
			AddRow("event-1", "wallet_a", "authenticate", "success", now))

	require.NoError(t, s.AppendEvent(context.Background(), event))

	events, err := s.ListEvents(context.Background(), "wallet_a")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, *event, events[0])
	require.NoError(t, mock.ExpectationsWereMet())
}
