package agents

import (
	"math"
	"testing"
)

func TestAnalyzeDetectsIntents(t *testing.T) {
	cases := []struct {
		question string
		want     IntentKind
	}{
		{"Qual a média de vendas?", IntentAggregation},
		{"What is the average price?", IntentAggregation},
		{"Compare sales versus last year", IntentComparison},
		{"Mostre a tendência ao longo do tempo", IntentTrend},
		{"Qual a distribuição de idades?", IntentDistribution},
		{"Existe correlação entre preço e vendas?", IntentCorrelation},
	}

	for _, tc := range cases {
		analysis := Analyze(tc.question, KindTable)
		if !analysis.HasIntent(tc.want) {
			t.Errorf("Analyze(%q): expected intent %s, got %v", tc.question, tc.want, analysis.Intents)
		}
	}
}

func TestAnalyzeComplexity(t *testing.T) {
	// Short question, single intent.
	a := Analyze("média de vendas", KindTable)
	if a.Complexity != ComplexitySimple {
		t.Errorf("expected simple, got %s", a.Complexity)
	}

	// A complexity cue word forces complex even for short questions with
	// multiple intents.
	a = Analyze("analisar a média e a distribuição comparando os grupos em detalhe completo agora", KindTable)
	if a.Complexity != ComplexityComplex {
		t.Errorf("expected complex, got %s", a.Complexity)
	}

	// Long question without cues or three intents stays medium.
	a = Analyze("qual foi a média de vendas registrada em cada uma das lojas no período do ano passado", KindTable)
	if a.Complexity != ComplexityMedium {
		t.Errorf("expected medium, got %s", a.Complexity)
	}
}

func TestAnalyzeSimpleWinsOverCueWords(t *testing.T) {
	// The simple check runs first: one intent and under ten words is simple
	// even when a complexity cue appears.
	a := Analyze("analisar o total", KindTable)
	if a.Complexity != ComplexitySimple {
		t.Errorf("expected simple, got %s", a.Complexity)
	}
}

func TestAnalyzeConfidenceBounds(t *testing.T) {
	questions := []string{
		"",
		"média",
		"comparar a correlação e a distribuição da média ao longo do período",
		"qualquer texto sem nenhuma palavra chave reconhecida aqui",
	}
	for _, q := range questions {
		for _, kind := range []DataKind{KindTable, KindDatabase, DataKind("")} {
			a := Analyze(q, kind)
			if a.Confidence < 0 || a.Confidence > maxConfidence {
				t.Errorf("Analyze(%q, %q): confidence %f out of [0, %f]", q, kind, a.Confidence, maxConfidence)
			}
		}
	}
}

func TestAnalyzeNoIntentBaseline(t *testing.T) {
	a := Analyze("olá tudo bem", KindTable)
	if len(a.Intents) != 0 {
		t.Fatalf("expected no intents, got %v", a.Intents)
	}
	// Baseline 0.5 plus the non-complex and known-kind bonuses.
	if math.Abs(a.Confidence-0.7) > 1e-9 {
		t.Errorf("expected confidence 0.7, got %f", a.Confidence)
	}
}

func TestAnalyzeDataKindFlags(t *testing.T) {
	a := Analyze("média de vendas", KindDatabase)
	if !a.RequiresSQL || a.RequiresTabular {
		t.Errorf("database kind: RequiresSQL=%v RequiresTabular=%v", a.RequiresSQL, a.RequiresTabular)
	}
	a = Analyze("média de vendas", KindTable)
	if a.RequiresSQL || !a.RequiresTabular {
		t.Errorf("table kind: RequiresSQL=%v RequiresTabular=%v", a.RequiresSQL, a.RequiresTabular)
	}
}

func TestExtractIndicators(t *testing.T) {
	a := Analyze("quando o valor foi maior por categoria", KindTable)
	if !a.Indicators.Temporal {
		t.Error("expected temporal indicator")
	}
	if !a.Indicators.Comparative {
		t.Error("expected comparative indicator")
	}
	if !a.Indicators.Categorical {
		t.Error("expected categorical indicator")
	}
	if !a.Indicators.Numeric {
		t.Error("expected numeric indicator")
	}
}
