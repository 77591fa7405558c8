package sqlguard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// ErrUnsafeQuery marks a statement the gateway refused to run.
var ErrUnsafeQuery = errors.New("unsafe query rejected")

// DefaultMaxRows caps result sets when a statement carries no LIMIT.
const DefaultMaxRows = 100

// Executor is the last checkpoint before any statement reaches a live
// connection. It re-validates independently of the validation agent, so a
// statement that arrives here without passing through the agent pipeline is
// still policed.
type Executor struct {
	maxRows int
	logger  *zap.Logger
}

// NewExecutor creates an Executor. maxRows <= 0 falls back to DefaultMaxRows.
func NewExecutor(maxRows int, logger *zap.Logger) *Executor {
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	return &Executor{maxRows: maxRows, logger: logger}
}

// Query validates the statement, bounds it with a LIMIT clause and executes
// it, returning rows as column-keyed maps with JSON-safe values.
func (e *Executor) Query(ctx context.Context, db *sql.DB, query string) ([]map[string]any, error) {
	res := Validate(query)
	if !res.IsValid {
		e.logger.Warn("gateway rejected statement",
			zap.String("reason", res.Error),
			zap.String("severity", string(res.Severity)))
		return nil, fmt.Errorf("%w: %s", ErrUnsafeQuery, res.Error)
	}

	safe := EnsureLimit(query, e.maxRows)

	rows, err := db.QueryContext(ctx, safe)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var out []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		record := make(map[string]any, len(cols))
		for i, col := range cols {
			record[col] = normalizeValue(values[i])
		}
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}

	e.logger.Debug("query executed", zap.Int("rows", len(out)))
	return out, nil
}

// Preview returns up to limit rows of a table. The table name is checked
// against the sanitization rule before interpolation.
func (e *Executor) Preview(ctx context.Context, db *sql.DB, table string, limit int) ([]map[string]any, error) {
	if !ValidTableName(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", ErrUnsafeQuery, table)
	}
	if limit <= 0 || limit > e.maxRows {
		limit = e.maxRows
	}
	return e.Query(ctx, db, fmt.Sprintf(`SELECT * FROM "%s" LIMIT %d`, table, limit))
}

// normalizeValue converts driver values into JSON-friendly scalars.
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case []byte:
		return string(val)
	case int64, float64, bool, string:
		return val
	default:
		return fmt.Sprint(val)
	}
}
