package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// IntentKind classifies the purpose behind a question.
type IntentKind string

const (
	IntentAggregation  IntentKind = "aggregation"
	IntentFiltering    IntentKind = "filtering"
	IntentComparison   IntentKind = "comparison"
	IntentTrend        IntentKind = "trend"
	IntentDistribution IntentKind = "distribution"
	IntentCorrelation  IntentKind = "correlation"
)

// Complexity grades a question.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// ContextIndicators are advisory cue-word detections. They refine the
// question later but never affect confidence or complexity.
type ContextIndicators struct {
	Temporal    bool `json:"temporal"`
	Comparative bool `json:"comparative"`
	Categorical bool `json:"categorical"`
	Numeric     bool `json:"numeric"`
}

// IntentAnalysis is the analyzer's full classification of one question.
type IntentAnalysis struct {
	Intents         []IntentKind      `json:"intents"`
	Complexity      Complexity        `json:"complexity"`
	Confidence      float64           `json:"confidence"`
	DataKind        DataKind          `json:"data_kind"`
	RequiresSQL     bool              `json:"requires_sql"`
	RequiresTabular bool              `json:"requires_tabular"`
	Indicators      ContextIndicators `json:"context_indicators"`
}

// HasIntent reports whether kind was detected.
func (a IntentAnalysis) HasIntent(kind IntentKind) bool {
	for _, i := range a.Intents {
		if i == kind {
			return true
		}
	}
	return false
}

// intentPattern couples an intent with its cue words and an importance
// weight in (0,1]. Portuguese and English cues are both kept; the service's
// original corpus mixes the two.
type intentPattern struct {
	intent     IntentKind
	keywords   []string
	importance float64
}

var intentPatterns = []intentPattern{
	{IntentAggregation, []string{"média", "total", "soma", "count", "máximo", "mínimo", "average", "sum", "max", "min"}, 0.8},
	{IntentFiltering, []string{"onde", "filter", "com", "que", "when", "where", "igual", "maior", "menor", "entre"}, 0.7},
	{IntentComparison, []string{"comparar", "diferença", "versus", "vs", "compare", "difference", "em relação"}, 0.9},
	{IntentTrend, []string{"tendência", "evolução", "ao longo", "trend", "over time", "temporal", "período"}, 0.85},
	{IntentDistribution, []string{"distribuição", "frequência", "histogram", "distribution", "frequency", "percentual"}, 0.75},
	{IntentCorrelation, []string{"correlação", "relação", "correlation", "relationship", "dependência", "influência"}, 0.9},
}

// complexityCues mark multi-part or aggregating questions as complex.
var complexityCues = []string{
	"múltiplas", "várias", "complex", "advanced", "relacionar",
	"combinar", "agrupar", "categorizar", "analisar",
}

var indicatorCues = struct {
	temporal, comparative, categorical, numeric []string
}{
	temporal:    []string{"quando", "data", "período", "mês", "ano"},
	comparative: []string{"mais", "menos", "maior", "menor", "igual"},
	categorical: []string{"tipo", "categoria", "classe", "grupo"},
	numeric:     []string{"quantidade", "valor", "número", "total"},
}

const maxConfidence = 0.95

// Analyzer classifies questions and decides which generation path runs next.
type Analyzer struct {
	logger *zap.Logger
}

// NewAnalyzer creates the intent analyzer.
func NewAnalyzer(logger *zap.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

// ID implements Agent.
func (a *Analyzer) ID() AgentID { return AgentAnalyzer }

// Handle classifies a user query and forwards the analysis to the SQL
// generator for database sessions or the data interpreter for tables.
func (a *Analyzer) Handle(ctx context.Context, msg Message) (*Message, error) {
	query, ok := msg.Content.(UserQuery)
	if !ok {
		return nil, fmt.Errorf("analyzer received %s message", msg.Type)
	}

	analysis := Analyze(query.Question, query.DataKind)

	next := AgentInterpreter
	if query.DataKind == KindDatabase {
		next = AgentSQLGenerator
	}

	a.logger.Debug("question analyzed",
		zap.Int("intents", len(analysis.Intents)),
		zap.String("complexity", string(analysis.Complexity)),
		zap.Float64("confidence", analysis.Confidence),
		zap.String("next", string(next)))

	return reply(AgentAnalyzer, next, QueryAnalysis{
		Question: query.Question,
		Analysis: analysis,
		Context:  query.Context,
	}), nil
}

// Analyze derives the intent classification purely from the question text
// and the declared data kind.
func Analyze(question string, kind DataKind) IntentAnalysis {
	lower := strings.ToLower(question)

	var intents []IntentKind
	var scores []float64
	for _, pat := range intentPatterns {
		matches := 0
		for _, kw := range pat.keywords {
			if strings.Contains(lower, kw) {
				matches++
			}
		}
		if matches > 0 {
			intents = append(intents, pat.intent)
			scores = append(scores, float64(matches)*pat.importance)
		}
	}

	complexity := determineComplexity(lower, intents)

	confidence := 0.5
	if len(scores) > 0 {
		var sum float64
		for _, s := range scores {
			sum += s
		}
		confidence = sum / float64(len(scores))
	}
	if complexity != ComplexityComplex {
		confidence += 0.1
	}
	if kind == KindTable || kind == KindDatabase {
		confidence += 0.1
	}
	if confidence > maxConfidence {
		confidence = maxConfidence
	}

	return IntentAnalysis{
		Intents:         intents,
		Complexity:      complexity,
		Confidence:      confidence,
		DataKind:        kind,
		RequiresSQL:     kind == KindDatabase,
		RequiresTabular: kind == KindTable,
		Indicators:      extractIndicators(lower),
	}
}

func determineComplexity(lower string, intents []IntentKind) Complexity {
	if len(intents) <= 1 && len(strings.Fields(lower)) < 10 {
		return ComplexitySimple
	}
	if containsAny(lower, complexityCues) || len(intents) >= 3 {
		return ComplexityComplex
	}
	return ComplexityMedium
}

func extractIndicators(lower string) ContextIndicators {
	return ContextIndicators{
		Temporal:    containsAny(lower, indicatorCues.temporal),
		Comparative: containsAny(lower, indicatorCues.comparative),
		Categorical: containsAny(lower, indicatorCues.categorical),
		Numeric:     containsAny(lower, indicatorCues.numeric),
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
