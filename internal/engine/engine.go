// Package engine runs questions end to end: route through the agent
// pipeline, execute the generated SQL or tabular expression against the
// session's data, and assemble the user-facing answer. It falls back to the
// direct rule path when the pipeline fails, caches answers, and keeps
// performance metrics.
package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quern/askdata/internal/agents"
	"github.com/quern/askdata/internal/cache"
	"github.com/quern/askdata/internal/dataset"
	"github.com/quern/askdata/internal/session"
	"github.com/quern/askdata/internal/sqlguard"
	"go.uber.org/zap"
)

// RejectedError reports a question whose generated statement failed safety
// validation. It is a delivered outcome, not an internal fault.
type RejectedError struct {
	Reason   string
	Severity sqlguard.Severity
}

func (e *RejectedError) Error() string { return e.Reason }

// BadSessionKindError reports a query against a session kind the engine
// cannot serve.
type BadSessionKindError struct {
	Kind agents.DataKind
}

func (e *BadSessionKindError) Error() string {
	return fmt.Sprintf("session kind %q cannot be queried", e.Kind)
}

// Answer is the engine's result for one question.
type Answer struct {
	Answer        string `json:"answer"`
	GeneratedCode string `json:"generated_code"`
	Method        string `json:"method"`
}

// Methods recorded in the performance metrics.
const (
	methodMultiAgent     = "multi_agent"
	methodTraditionalTab = "traditional_tabular"
	methodTraditionalSQL = "traditional_sql"
	methodCache          = "cache"
)

// Engine is the enhanced query engine.
type Engine struct {
	orchestrator *agents.Orchestrator
	sessions     *session.Store
	exec         *sqlguard.Executor
	answers      cache.Cache
	logger       *zap.Logger
	metrics      *metricLog
}

// New creates an Engine. answers may be nil to disable caching.
func New(orc *agents.Orchestrator, sessions *session.Store, exec *sqlguard.Executor,
	answers cache.Cache, logger *zap.Logger) *Engine {
	return &Engine{
		orchestrator: orc,
		sessions:     sessions,
		exec:         exec,
		answers:      answers,
		logger:       logger,
		metrics:      newMetricLog(),
	}
}

// Orchestrator exposes the pipeline for status reporting.
func (e *Engine) Orchestrator() *agents.Orchestrator { return e.orchestrator }

// Process answers one question against a session.
func (e *Engine) Process(ctx context.Context, sessionID, question string) (*Answer, error) {
	start := time.Now()

	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Kind != agents.KindTable && sess.Kind != agents.KindDatabase {
		return nil, &BadSessionKindError{Kind: sess.Kind}
	}

	cacheKey := sessionID + "\x00" + question
	if e.answers != nil {
		if raw, ok := e.answers.Get(ctx, cacheKey); ok {
			var ans Answer
			if json.Unmarshal([]byte(raw), &ans) == nil {
				e.metrics.record(question, methodCache, true, time.Since(start))
				return &ans, nil
			}
		}
	}

	ans, err := e.processUncached(ctx, sess, question)
	e.metrics.record(question, methodOf(ans), err == nil, time.Since(start))
	if err != nil {
		return nil, err
	}

	if e.answers != nil {
		if raw, merr := json.Marshal(ans); merr == nil {
			e.answers.Set(ctx, cacheKey, string(raw))
		}
	}
	return ans, nil
}

func methodOf(ans *Answer) string {
	if ans == nil {
		return "failed"
	}
	return ans.Method
}

func (e *Engine) processUncached(ctx context.Context, sess *session.Session, question string) (*Answer, error) {
	result := e.orchestrator.Process(ctx, question, sess.Kind, sess.Context())

	if result.Success {
		switch final := result.Final.(type) {
		case agents.FinalResult:
			ans, err := e.execute(ctx, sess, final)
			if err != nil {
				return nil, err
			}
			ans.Method = methodMultiAgent
			return ans, nil
		case agents.ValidationError:
			return nil, &RejectedError{Reason: final.Reason, Severity: final.Severity}
		}
	}

	e.logger.Warn("agent pipeline did not produce a result, using direct path",
		zap.String("session", sess.ID),
		zap.Int("iterations", result.Iterations),
		zap.String("error", result.Error))
	return e.traditional(ctx, sess, question)
}

// execute runs the pipeline's artifact against the session's data and
// appends the rendered result to the synthesized answer.
func (e *Engine) execute(ctx context.Context, sess *session.Session, final agents.FinalResult) (*Answer, error) {
	switch sess.Kind {
	case agents.KindTable:
		rendered, err := dataset.Eval(sess.Table, final.Expr)
		if err != nil {
			return nil, fmt.Errorf("evaluate expression: %w", err)
		}
		return &Answer{
			Answer:        final.Answer + "\n\n" + rendered,
			GeneratedCode: final.Expr,
		}, nil

	case agents.KindDatabase:
		dbe, err := e.dbEngine(sess.ID)
		if err != nil {
			return nil, err
		}
		rows, err := dbe.Run(ctx, final.SQL)
		if err != nil {
			return nil, err
		}
		return &Answer{
			Answer:        final.Answer + "\n\n" + renderRows(rows),
			GeneratedCode: final.SQL,
		}, nil

	default:
		return nil, &BadSessionKindError{Kind: sess.Kind}
	}
}

// traditional is the direct rule path used when the pipeline dead-ends.
func (e *Engine) traditional(ctx context.Context, sess *session.Session, question string) (*Answer, error) {
	analysis := agents.Analyze(question, sess.Kind)

	switch sess.Kind {
	case agents.KindTable:
		expr := agents.RuleExpr(question, analysis)
		rendered, err := dataset.Eval(sess.Table, expr)
		if err != nil {
			return nil, fmt.Errorf("evaluate expression: %w", err)
		}
		return &Answer{
			Answer:        agents.Synthesize(question, expr) + "\n\n" + rendered,
			GeneratedCode: expr,
			Method:        methodTraditionalTab,
		}, nil

	case agents.KindDatabase:
		query := agents.RuleSQL(question, analysis, sess.Context())
		dbe, err := e.dbEngine(sess.ID)
		if err != nil {
			return nil, err
		}
		rows, err := dbe.Run(ctx, query)
		if err != nil {
			return nil, err
		}
		return &Answer{
			Answer:        agents.Synthesize(question, query) + "\n\n" + renderRows(rows),
			GeneratedCode: query,
			Method:        methodTraditionalSQL,
		}, nil

	default:
		return nil, &BadSessionKindError{Kind: sess.Kind}
	}
}

// DBEngine is the lazily built, per-session SQL execution binding. Database
// sessions cache exactly one instance.
type DBEngine struct {
	db     *sql.DB
	tables []string
	exec   *sqlguard.Executor
}

// Run executes a statement through the secure gateway.
func (d *DBEngine) Run(ctx context.Context, query string) ([]map[string]any, error) {
	return d.exec.Query(ctx, d.db, query)
}

// Tables lists the tables the engine was built over.
func (d *DBEngine) Tables() []string { return d.tables }

func (e *Engine) dbEngine(sessionID string) (*DBEngine, error) {
	v, err := e.sessions.QueryEngine(sessionID, func(s *session.Session) (any, error) {
		return &DBEngine{db: s.DB, tables: s.Tables, exec: e.exec}, nil
	})
	if err != nil {
		return nil, err
	}
	dbe, ok := v.(*DBEngine)
	if !ok {
		return nil, fmt.Errorf("unexpected query engine type %T", v)
	}
	return dbe, nil
}

// renderRows formats gateway rows as stable text for the answer body.
func renderRows(rows []map[string]any) string {
	if len(rows) == 0 {
		return "(no rows)"
	}
	var b strings.Builder
	for _, row := range rows {
		keys := make([]string, 0, len(row))
		for k := range row {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = fmt.Sprintf("%s=%v", k, row[k])
		}
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString("\n")
	}
	return b.String()
}
