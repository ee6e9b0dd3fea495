// Package warehouse mirrors a pattern corpus into PostgreSQL for fleet-wide
// analytics. Mirroring is a one-way, explicitly triggered bulk export: the
// store core remains file-backed and performs no network I/O of its own.
package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentdb/api/schemas"
)

// DBPool abstracts pgxpool.Pool so tests can substitute a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

const sqlCreateTable = `
    CREATE TABLE IF NOT EXISTS action_patterns (
        instance    TEXT        NOT NULL,
        pattern_id  BIGINT      NOT NULL,
        action      TEXT        NOT NULL,
        selector    TEXT,
        url         TEXT,
        success     BOOLEAN     NOT NULL,
        recorded_at TIMESTAMPTZ NOT NULL,
        metadata    JSONB       NOT NULL,
        PRIMARY KEY (instance, pattern_id)
    );
`

// Warehouse provides the PostgreSQL mirror of one or more store instances.
type Warehouse struct {
	pool DBPool
	log  *zap.Logger
}

// New creates a warehouse client and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Warehouse, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping warehouse database: %w", err)
	}
	return &Warehouse{
		pool: pool,
		log:  logger.Named("warehouse"),
	}, nil
}

// EnsureSchema creates the mirror table when it does not exist yet.
func (w *Warehouse) EnsureSchema(ctx context.Context) error {
	if _, err := w.pool.Exec(ctx, sqlCreateTable); err != nil {
		return fmt.Errorf("failed to ensure warehouse schema: %w", err)
	}
	return nil
}

// MirrorPatterns replaces the warehouse's copy of the named instance with
// the given corpus snapshot, in one transaction. Patterns never carry
// sensitive values into the warehouse: the value column is deliberately
// absent from the schema.
func (w *Warehouse) MirrorPatterns(ctx context.Context, instance string, patterns []schemas.ActionPattern) error {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			w.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, `DELETE FROM action_patterns WHERE instance = $1;`, instance); err != nil {
		return fmt.Errorf("failed to clear previous mirror of %s: %w", instance, err)
	}

	rows := make([][]interface{}, len(patterns))
	for i, p := range patterns {
		metadata, err := json.Marshal(p.Metadata)
		if err != nil || len(metadata) == 0 || string(metadata) == "null" {
			metadata = []byte("{}")
		}
		rows[i] = []interface{}{
			instance, int64(p.ID),
			p.Action, p.Selector, p.URL,
			p.Success, p.Timestamp.UTC(),
			metadata,
		}
	}

	copyCount, err := tx.CopyFrom(
		ctx,
		pgx.Identifier{"action_patterns"},
		[]string{"instance", "pattern_id", "action", "selector", "url", "success", "recorded_at", "metadata"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy patterns: %w", err)
	}
	if int(copyCount) != len(patterns) {
		return fmt.Errorf("mismatch in copied pattern count: expected %d, got %d", len(patterns), copyCount)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	w.log.Info("Mirrored corpus to warehouse.",
		zap.String("instance", instance),
		zap.Int("patterns", len(patterns)))
	return nil
}
