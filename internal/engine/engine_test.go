package engine

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quern/askdata/internal/agents"
	"github.com/quern/askdata/internal/cache"
	"github.com/quern/askdata/internal/dataset"
	"github.com/quern/askdata/internal/session"
	"github.com/quern/askdata/internal/sqlguard"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

func newTestEngine(t *testing.T) (*Engine, *session.Store) {
	t.Helper()
	logger := zap.NewNop()
	sessions := session.NewStore(logger)
	exec := sqlguard.NewExecutor(0, logger)
	pipeline := agents.NewPipeline(nil, 0, logger)
	return New(pipeline, sessions, exec, cache.NewMemory(0), logger), sessions
}

func newTableSession(t *testing.T, sessions *session.Store) string {
	t.Helper()
	table := &dataset.Table{
		Columns: []string{"nome", "idade"},
		Rows: [][]any{
			{"Ana", 30.0},
			{"Bruno", 20.0},
		},
	}
	return sessions.CreateTableSession(table, "people.csv")
}

func newDBSession(t *testing.T, sessions *session.Store) string {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	stmts := []string{
		`CREATE TABLE sales (id INTEGER PRIMARY KEY, amount REAL)`,
		`INSERT INTO sales (amount) VALUES (10.0), (20.0), (30.0)`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec: %v", err)
		}
	}
	return sessions.CreateDBSession(db, "test.db", []string{"sales"}, []string{"amount"})
}

func TestProcessTableSession(t *testing.T) {
	eng, sessions := newTestEngine(t)
	id := newTableSession(t, sessions)

	ans, err := eng.Process(context.Background(), id, "Qual a média de idade?")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ans.GeneratedCode != dataset.ExprMean {
		t.Errorf("generated code = %q, want %q", ans.GeneratedCode, dataset.ExprMean)
	}
	if ans.Method != "multi_agent" {
		t.Errorf("method = %q, want multi_agent", ans.Method)
	}
	if !strings.Contains(ans.Answer, "idade: 25") {
		t.Errorf("answer missing computed mean: %q", ans.Answer)
	}
}

func TestProcessDatabaseSession(t *testing.T) {
	eng, sessions := newTestEngine(t)
	id := newDBSession(t, sessions)

	ans, err := eng.Process(context.Background(), id, "Qual a média de amount?")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if ans.GeneratedCode != "SELECT AVG(amount) FROM sales" {
		t.Errorf("generated code = %q", ans.GeneratedCode)
	}
	if !strings.Contains(ans.Answer, "20") {
		t.Errorf("answer missing computed average: %q", ans.Answer)
	}
}

func TestProcessUnknownSession(t *testing.T) {
	eng, _ := newTestEngine(t)
	if _, err := eng.Process(context.Background(), "nope", "média"); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProcessCachesAnswers(t *testing.T) {
	eng, sessions := newTestEngine(t)
	id := newTableSession(t, sessions)

	first, err := eng.Process(context.Background(), id, "Qual a média de idade?")
	if err != nil {
		t.Fatalf("first Process: %v", err)
	}
	second, err := eng.Process(context.Background(), id, "Qual a média de idade?")
	if err != nil {
		t.Fatalf("second Process: %v", err)
	}
	if first.Answer != second.Answer {
		t.Error("expected identical cached answer")
	}

	summary := eng.Summary()
	if summary.TotalQueries != 2 {
		t.Errorf("total queries = %d, want 2", summary.TotalQueries)
	}
	if summary.MethodDistribution["cache"] != 1 {
		t.Errorf("expected one cache hit, got %+v", summary.MethodDistribution)
	}
}

func TestProcessCacheIsPerSession(t *testing.T) {
	eng, sessions := newTestEngine(t)
	tableID := newTableSession(t, sessions)
	dbID := newDBSession(t, sessions)

	tableAns, err := eng.Process(context.Background(), tableID, "Qual a média de amount?")
	if err != nil {
		t.Fatalf("table Process: %v", err)
	}
	dbAns, err := eng.Process(context.Background(), dbID, "Qual a média de amount?")
	if err != nil {
		t.Fatalf("db Process: %v", err)
	}
	if tableAns.GeneratedCode == dbAns.GeneratedCode {
		t.Error("expected different code for table and database sessions")
	}
}

func TestSummaryEmpty(t *testing.T) {
	eng, _ := newTestEngine(t)
	summary := eng.Summary()
	if summary.TotalQueries != 0 || summary.SuccessRate != 0 {
		t.Errorf("unexpected summary for idle engine: %+v", summary)
	}
}

func TestDBEngineBuiltOnce(t *testing.T) {
	eng, sessions := newTestEngine(t)
	id := newDBSession(t, sessions)

	first, err := eng.dbEngine(id)
	if err != nil {
		t.Fatalf("dbEngine: %v", err)
	}
	second, err := eng.dbEngine(id)
	if err != nil {
		t.Fatalf("dbEngine: %v", err)
	}
	if first != second {
		t.Error("expected the cached engine instance on the second call")
	}
	if len(first.Tables()) != 1 || first.Tables()[0] != "sales" {
		t.Errorf("unexpected tables %v", first.Tables())
	}
}
