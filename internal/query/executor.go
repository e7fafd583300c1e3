package query

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Executor runs validated SQL against the banking warehouse.
type Executor interface {
	Execute(ctx context.Context, sql string, rowLimit int) ([]map[string]any, error)
}

// WarehouseExecutor executes read queries on the warehouse pool. The
// pool's connection is request-scoped: rows are fully drained and the
// connection released before returning, also on error paths.
type WarehouseExecutor struct {
	pool *pgxpool.Pool
}

// NewWarehouseExecutor constructs a WarehouseExecutor.
func NewWarehouseExecutor(pool *pgxpool.Pool) *WarehouseExecutor {
	return &WarehouseExecutor{pool: pool}
}

// Execute runs the query and returns at most rowLimit rows as column
// name to value maps.
func (e *WarehouseExecutor) Execute(ctx context.Context, sql string, rowLimit int) ([]map[string]any, error) {
	rows, err := e.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("query: execute: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = fd.Name
	}

	var results []map[string]any
	for rows.Next() {
		if rowLimit > 0 && len(results) >= rowLimit {
			break
		}
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("query: scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, column := range columns {
			row[column] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query: iterate rows: %w", err)
	}
	return results, nil
}

var _ Executor = (*WarehouseExecutor)(nil)
