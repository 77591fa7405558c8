// Package dbconn opens read-side database connections for query sessions
// and answers the shape questions the pipeline needs: which tables exist
// and what their first rows look like.
package dbconn

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	"github.com/quern/askdata/internal/sqlguard"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // pure-Go sqlite driver
)

const (
	previewRows = 5
	pingTimeout = 5 * time.Second
)

// Connector opens connections and builds per-table previews through the
// secure execution gateway.
type Connector struct {
	exec   *sqlguard.Executor
	logger *zap.Logger
}

// New creates a Connector.
func New(exec *sqlguard.Executor, logger *zap.Logger) *Connector {
	return &Connector{exec: exec, logger: logger}
}

// Open connects to either a SQLite file path or a PostgreSQL DSN, verified
// with a ping.
func (c *Connector) Open(ctx context.Context, target string) (*sql.DB, error) {
	driver, dsn := "sqlite", target
	if IsPostgresDSN(target) {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	c.logger.Info("database connected", zap.String("driver", driver))
	return db, nil
}

// IsPostgresDSN reports whether target names a PostgreSQL database rather
// than a SQLite file.
func IsPostgresDSN(target string) bool {
	return strings.HasPrefix(target, "postgres://") || strings.HasPrefix(target, "postgresql://")
}

// ListTables returns the user table names of the connected database.
func (c *Connector) ListTables(ctx context.Context, db *sql.DB, postgres bool) ([]string, error) {
	query := `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`
	if postgres {
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name`
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// TablePreview holds the first rows of one table, or the reason they could
// not be read.
type TablePreview struct {
	Columns []string         `json:"columns,omitempty"`
	Data    []map[string]any `json:"data,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// Previews reads the first rows of every listed table. A table that cannot
// be previewed records its error instead of failing the whole call.
func (c *Connector) Previews(ctx context.Context, db *sql.DB, tables []string) map[string]TablePreview {
	previews := make(map[string]TablePreview, len(tables))
	for _, table := range tables {
		rows, err := c.exec.Preview(ctx, db, table, previewRows)
		if err != nil {
			c.logger.Warn("table preview failed",
				zap.String("table", table), zap.Error(err))
			previews[table] = TablePreview{Error: fmt.Sprintf("could not read preview: %v", err)}
			continue
		}
		previews[table] = TablePreview{Columns: columnsOf(rows), Data: rows}
	}
	return previews
}

func columnsOf(rows []map[string]any) []string {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for col := range rows[0] {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	return cols
}
