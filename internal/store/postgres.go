package store

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database schema.
//
//go:embed schema.sql
var schemaSQL string

// pgUndefinedTable is the SQLSTATE Postgres reports for a missing relation.
const pgUndefinedTable = "42P01"

const eventColumns = `event_id, ts, created_at, payload, source, tags, metadata, status, acknowledged_at`

// PostgresStore is the durable persistence layer for events.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if DB is unreachable.
func NewPostgresStore(dbURL string) (*PostgresStore, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by readiness endpoint to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

// Put inserts a new event row.
func (p *PostgresStore) Put(ctx context.Context, e *models.Event) error {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}

	var metadataJSON []byte
	if e.Metadata != nil {
		if metadataJSON, err = json.Marshal(e.Metadata); err != nil {
			return err
		}
	}

	_, err = p.pool.Exec(ctx, `
		INSERT INTO events(`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, e.Timestamp, e.CreatedAt, payloadJSON, nullString(e.Source), e.Tags, metadataJSON,
		string(e.Status), e.AcknowledgedAt)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", mapPgError(err))
	}
	return nil
}

// Get loads one event by id.
func (p *PostgresStore) Get(ctx context.Context, id string) (*models.Event, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+eventColumns+` FROM events WHERE event_id=$1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", mapPgError(err))
	}
	return e, nil
}

// Acknowledge flips a pending event in a single conditional UPDATE.
// When no row matches, a follow-up read tells a missing event from a non-pending one.
func (p *PostgresStore) Acknowledge(ctx context.Context, id string, at int64) (*models.Event, error) {
	row := p.pool.QueryRow(ctx, `
		UPDATE events
		SET status=$2, acknowledged_at=$3
		WHERE event_id=$1 AND status=$4
		RETURNING `+eventColumns,
		id, string(models.StatusAcknowledged), at, string(models.StatusPending))

	e, err := scanEvent(row)
	if err == nil {
		return e, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("failed to acknowledge event: %w", mapPgError(err))
	}

	current, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, ErrConditionFailed
}

// Query runs the (status, created_at) index lookup.
func (p *PostgresStore) Query(ctx context.Context, q Query) (QueryResult, error) {
	whereClause := "WHERE status = $1"
	args := []interface{}{string(q.Status)}
	argPos := 2

	if q.Source != "" {
		whereClause += fmt.Sprintf(" AND source = $%d", argPos)
		args = append(args, q.Source)
		argPos++
	}
	if q.Since != nil {
		whereClause += fmt.Sprintf(" AND created_at >= $%d", argPos)
		args = append(args, *q.Since)
		argPos++
	}

	order := "ASC"
	if q.Descending {
		order = "DESC"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM events
		%s
		ORDER BY created_at %s, event_id %s
		LIMIT $%d
	`, eventColumns, whereClause, order, order, argPos)
	// LIMIT NULL means no limit.
	if q.Limit > 0 {
		args = append(args, q.Limit)
	} else {
		args = append(args, nil)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("failed to query events: %w", mapPgError(err))
	}
	defer rows.Close()

	items := []*models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return QueryResult{}, fmt.Errorf("failed to scan event: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("failed to iterate events: %w", mapPgError(err))
	}

	return QueryResult{Items: items, Count: len(items)}, nil
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var (
		e            models.Event
		status       string
		source       *string
		payloadJSON  []byte
		metadataJSON []byte
	)
	if err := row.Scan(&e.ID, &e.Timestamp, &e.CreatedAt, &payloadJSON, &source, &e.Tags,
		&metadataJSON, &status, &e.AcknowledgedAt); err != nil {
		return nil, err
	}

	e.Status = models.Status(status)
	if source != nil {
		e.Source = *source
	}
	if err := json.Unmarshal(payloadJSON, &e.Payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if len(e.Tags) == 0 {
		e.Tags = nil
	}
	return &e, nil
}

// mapPgError translates a missing table into ErrResourceNotFound and keeps the original cause.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("%w: %s", ErrResourceNotFound, pgErr.Message)
	}
	return err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
