package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/quern/askdata/internal/dataset"
	"github.com/quern/askdata/internal/provider"
	"github.com/quern/askdata/internal/sqlguard"
	"go.uber.org/zap"
)

// Aggregation cue words, checked in priority order: mean, then sum, then
// count.
var (
	meanCues  = []string{"média", "average"}
	sumCues   = []string{"total", "soma", "sum"}
	countCues = []string{"count", "quantidade"}
)

const defaultPreviewLimit = 10

// SQLGenerator produces a candidate SQL statement for database sessions.
// When a language-model router is configured it is asked first; any error
// or unusable reply falls back to the rule table, so the pipeline works
// with no provider at all.
type SQLGenerator struct {
	llm    *provider.Router
	logger *zap.Logger
}

// NewSQLGenerator creates the SQL generation agent. llm may be nil.
func NewSQLGenerator(llm *provider.Router, logger *zap.Logger) *SQLGenerator {
	return &SQLGenerator{llm: llm, logger: logger}
}

// ID implements Agent.
func (g *SQLGenerator) ID() AgentID { return AgentSQLGenerator }

// Handle generates SQL from an analysis, self-validates it and forwards the
// result to the validation agent.
func (g *SQLGenerator) Handle(ctx context.Context, msg Message) (*Message, error) {
	qa, ok := msg.Content.(QueryAnalysis)
	if !ok {
		return nil, fmt.Errorf("sql generator received %s message", msg.Type)
	}

	sql := g.generate(ctx, qa)
	validation := sqlguard.Validate(sql)

	return reply(AgentSQLGenerator, AgentValidator, SQLGeneration{
		Question:   qa.Question,
		SQL:        sql,
		Validation: validation,
		Analysis:   qa.Analysis,
	}), nil
}

func (g *SQLGenerator) generate(ctx context.Context, qa QueryAnalysis) string {
	if g.llm != nil && g.llm.Configured() {
		if sql, err := g.generateLLM(ctx, qa); err == nil && sql != "" {
			if sqlguard.Validate(sql).IsValid {
				return sql
			}
			g.logger.Warn("model produced unsafe SQL, using rule table",
				zap.String("sql", sql))
		} else if err != nil {
			kind, reason := provider.ClassifyError(err)
			g.logger.Warn("model SQL generation failed, using rule table",
				zap.String("kind", string(kind)), zap.String("reason", reason))
		}
	}
	return RuleSQL(qa.Question, qa.Analysis, qa.Context)
}

func (g *SQLGenerator) generateLLM(ctx context.Context, qa QueryAnalysis) (string, error) {
	prompt := fmt.Sprintf(
		"Tables: %s\nColumns of %s: %s\n\nQuestion: %s\n\nReply with the SQL statement only.",
		strings.Join(qa.Context.Tables, ", "),
		firstOr(qa.Context.Tables, "the table"),
		strings.Join(qa.Context.Columns, ", "),
		RefineQuestion(qa.Question, qa.Analysis),
	)

	resp, err := g.llm.Complete(ctx, &provider.Request{
		System: "You translate questions about a SQL database into exactly one " +
			"read-only SELECT statement. Never produce INSERT, UPDATE, DELETE, " +
			"DDL or multiple statements.",
		Prompt:    prompt,
		MaxTokens: 512,
	})
	if err != nil {
		return "", err
	}
	return extractSQL(resp.Content), nil
}

// RuleSQL is the conservative rule-based generator: the minimum viable
// behavior, and the fallback when no language model is reachable.
func RuleSQL(question string, analysis IntentAnalysis, dctx DataContext) string {
	lower := strings.ToLower(question)
	table := firstOr(dctx.Tables, "table_name")
	column := firstOr(dctx.Columns, "column_name")

	if analysis.HasIntent(IntentAggregation) {
		switch {
		case containsAny(lower, meanCues):
			return fmt.Sprintf("SELECT AVG(%s) FROM %s", column, table)
		case containsAny(lower, sumCues):
			return fmt.Sprintf("SELECT SUM(%s) FROM %s", column, table)
		case containsAny(lower, countCues):
			return fmt.Sprintf("SELECT COUNT(*) FROM %s", table)
		}
	}

	if analysis.HasIntent(IntentDistribution) {
		return fmt.Sprintf(
			"SELECT COUNT(*) AS n, AVG(%[1]s) AS avg, MIN(%[1]s) AS min, MAX(%[1]s) AS max FROM %[2]s",
			column, table)
	}

	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", table, defaultPreviewLimit)
}

// extractSQL pulls a statement out of a model reply, tolerating code fences
// and surrounding prose.
func extractSQL(reply string) string {
	s := strings.TrimSpace(reply)
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "sql")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	s = strings.TrimSpace(s)
	if idx := strings.Index(strings.ToUpper(s), "SELECT"); idx > 0 {
		s = s[idx:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), ";")
}

func firstOr(values []string, fallback string) string {
	if len(values) > 0 && values[0] != "" {
		return values[0]
	}
	return fallback
}

// Interpreter produces a canonical tabular expression for table sessions.
type Interpreter struct {
	logger *zap.Logger
}

// NewInterpreter creates the tabular interpretation agent.
func NewInterpreter(logger *zap.Logger) *Interpreter {
	return &Interpreter{logger: logger}
}

// ID implements Agent.
func (i *Interpreter) ID() AgentID { return AgentInterpreter }

// Handle maps an analysis to a tabular expression and forwards it straight
// to the synthesizer; tabular expressions need no SQL validation pass.
func (i *Interpreter) Handle(ctx context.Context, msg Message) (*Message, error) {
	qa, ok := msg.Content.(QueryAnalysis)
	if !ok {
		return nil, fmt.Errorf("interpreter received %s message", msg.Type)
	}

	return reply(AgentInterpreter, AgentSynthesizer, DataInterpretation{
		Question: qa.Question,
		Expr:     RuleExpr(qa.Question, qa.Analysis),
		Analysis: qa.Analysis,
	}), nil
}

// RuleExpr maps a question to the canonical tabular expression.
func RuleExpr(question string, analysis IntentAnalysis) string {
	lower := strings.ToLower(question)

	if analysis.HasIntent(IntentAggregation) {
		switch {
		case containsAny(lower, meanCues):
			return dataset.ExprMean
		case containsAny(lower, sumCues):
			return dataset.ExprSum
		case containsAny(lower, countCues):
			return dataset.ExprCount
		}
	}
	if analysis.HasIntent(IntentDistribution) {
		return dataset.ExprDescribe
	}
	return dataset.ExprHead
}
