package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/brojonat/soloquy/service/engine"
	"github.com/brojonat/soloquy/service/metrics"
)

// Store provides database operations for the execution audit trail.
type Store struct {
	pool    *pgxpool.Pool
	metrics *metrics.Metrics
}

// NewStore creates a new Store with the given database connection pool.
// A nil metrics instance disables query instrumentation.
func NewStore(pool *pgxpool.Pool, m *metrics.Metrics) *Store {
	return &Store{pool: pool, metrics: m}
}

// observe records a query's duration and outcome.
func (s *Store) observe(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordDBQuery(operation, time.Since(start).Seconds(), err)
	}
}

// Execution is an audit record of a single executed transaction.
type Execution struct {
	ID          int64
	SessionID   string
	Action      string
	Signature   string
	Amount      int64
	Asset       string
	Destination *string // nil for swaps and other non-transfer actions
	ExecutedAt  time.Time
	CreatedAt   time.Time
}

// RecordExecution inserts an audit record for an executed transaction.
// It implements engine.AuditStore.
func (s *Store) RecordExecution(ctx context.Context, event *engine.ExecutionEvent) error {
	var destination pgtype.Text
	if event.Destination != "" {
		destination = pgtype.Text{String: event.Destination, Valid: true}
	}

	start := time.Now()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO executions (session_id, action, signature, amount, asset, destination, executed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		event.SessionID,
		event.Action,
		event.Signature,
		int64(event.Amount),
		event.Asset,
		destination,
		pgtype.Timestamptz{Time: event.Timestamp, Valid: true},
	)
	s.observe("record_execution", start, err)
	return err
}

// ListExecutionsBySession retrieves audit records for a session, most recent
// first, with pagination.
func (s *Store) ListExecutionsBySession(ctx context.Context, sessionID string, limit, offset int32) (_ []*Execution, err error) {
	start := time.Now()
	defer func() { s.observe("list_executions_by_session", start, err) }()

	rows, err := s.pool.Query(ctx, `
		SELECT id, session_id, action, signature, amount, asset, destination, executed_at, created_at
		FROM executions
		WHERE session_id = $1
		ORDER BY executed_at DESC
		LIMIT $2 OFFSET $3`,
		sessionID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var executions []*Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

// GetExecutionBySignature retrieves the audit record for a broadcast signature.
func (s *Store) GetExecutionBySignature(ctx context.Context, signature string) (_ *Execution, err error) {
	start := time.Now()
	defer func() { s.observe("get_execution_by_signature", start, err) }()

	row := s.pool.QueryRow(ctx, `
		SELECT id, session_id, action, signature, amount, asset, destination, executed_at, created_at
		FROM executions
		WHERE signature = $1`,
		signature,
	)
	return scanExecution(row)
}

// CountExecutionsBySession counts audit records for a session.
func (s *Store) CountExecutionsBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	start := time.Now()
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM executions WHERE session_id = $1`,
		sessionID,
	).Scan(&count)
	s.observe("count_executions_by_session", start, err)
	return count, err
}

// DeleteExecutionsOlderThan deletes audit records older than the given time.
func (s *Store) DeleteExecutionsOlderThan(ctx context.Context, before time.Time) error {
	start := time.Now()
	_, err := s.pool.Exec(ctx,
		`DELETE FROM executions WHERE executed_at < $1`,
		pgtype.Timestamptz{Time: before, Valid: true},
	)
	s.observe("delete_executions_older_than", start, err)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*Execution, error) {
	var (
		e           Execution
		destination pgtype.Text
		executedAt  pgtype.Timestamptz
		createdAt   pgtype.Timestamptz
	)
	if err := row.Scan(&e.ID, &e.SessionID, &e.Action, &e.Signature, &e.Amount, &e.Asset, &destination, &executedAt, &createdAt); err != nil {
		return nil, err
	}
	if destination.Valid {
		e.Destination = &destination.String
	}
	e.ExecutedAt = executedAt.Time
	e.CreatedAt = createdAt.Time
	return &e, nil
}
