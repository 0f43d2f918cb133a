package store

import (
	"context"
	"fmt"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/layer-3/rola/core"
	"github.com/layer-3/rola/ports"
)

const clickhouseEventsTable = `
CREATE TABLE IF NOT EXISTS auth_events (
	tx_id          String,
	wallet_address String,
	action         LowCardinality(String),
	status         LowCardinality(String),
	timestamp      DateTime64(3, 'UTC')
) ENGINE = MergeTree
ORDER BY (wallet_address, timestamp)`

// ClickHouseOptions configures the ClickHouse connection
type ClickHouseOptions struct {
	Addr     string
	Database string
	Username string
	Password string
}

// clickhouseConn is the subset of driver.Conn used by the event log
type clickhouseConn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Query(ctx context.Context, query string, args ...any) (driver.Rows, error)
}

// ClickHouseEventLog stores authentication events in a MergeTree table
type ClickHouseEventLog struct {
	conn clickhouseConn
}

var _ ports.EventRepository = (*ClickHouseEventLog)(nil)

// OpenClickHouse opens and pings a ClickHouse connection
func OpenClickHouse(ctx context.Context, opts ClickHouseOptions) (driver.Conn, error) {
	conn, err := ch.Open(&ch.Options{
		Addr: []string{opts.Addr},
		Auth: ch.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open ClickHouse connection: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return conn, nil
}

// NewClickHouseEventLog creates an event log on top of an open connection
func NewClickHouseEventLog(conn clickhouseConn) *ClickHouseEventLog {
	return &ClickHouseEventLog{conn: conn}
}

// EnsureSchema creates the events table if it does not exist
func (l *ClickHouseEventLog) EnsureSchema(ctx context.Context) error {
	if err := l.conn.Exec(ctx, clickhouseEventsTable); err != nil {
		return storeError("create clickhouse events table", err)
	}
	return nil
}

// AppendEvent inserts one event row
func (l *ClickHouseEventLog) AppendEvent(ctx context.Context, event *core.AuthEvent) error {
	err := l.conn.Exec(ctx,
		`INSERT INTO auth_events (tx_id, wallet_address, action, status, timestamp) VALUES (?, ?, ?, ?, ?)`,
		event.ID, event.WalletAddress, event.Action, string(event.Status), event.Timestamp,
	)
	if err != nil {
		return storeError("append event", err)
	}
	return nil
}

// ListEvents returns events newest first
func (l *ClickHouseEventLog) ListEvents(ctx context.Context, walletAddress string) ([]core.AuthEvent, error) {
	query := `SELECT tx_id, wallet_address, action, status, timestamp FROM auth_events`
	var args []any
	if walletAddress != "" {
		query += ` WHERE wallet_address = ?`
		args = append(args, walletAddress)
	}
	query += ` ORDER BY timestamp DESC`

	rows, err := l.conn.Query(ctx, query, args...)
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
