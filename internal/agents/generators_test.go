package agents

import (
	"testing"

	"github.com/quern/askdata/internal/dataset"
)

func TestRuleSQLAggregations(t *testing.T) {
	dctx := DataContext{Tables: []string{"sales"}, Columns: []string{"amount"}}

	cases := []struct {
		question string
		want     string
	}{
		{"Qual a média de amount?", "SELECT AVG(amount) FROM sales"},
		{"Qual o total de vendas?", "SELECT SUM(amount) FROM sales"},
		{"Faça um count dos registros", "SELECT COUNT(*) FROM sales"},
	}

	for _, tc := range cases {
		analysis := Analyze(tc.question, KindDatabase)
		got := RuleSQL(tc.question, analysis, dctx)
		if got != tc.want {
			t.Errorf("RuleSQL(%q) = %q, want %q", tc.question, got, tc.want)
		}
	}
}

func TestRuleSQLDistribution(t *testing.T) {
	dctx := DataContext{Tables: []string{"sales"}, Columns: []string{"amount"}}
	question := "Qual a distribuição de amount?"
	got := RuleSQL(question, Analyze(question, KindDatabase), dctx)
	want := "SELECT COUNT(*) AS n, AVG(amount) AS avg, MIN(amount) AS min, MAX(amount) AS max FROM sales"
	if got != want {
		t.Errorf("RuleSQL distribution = %q, want %q", got, want)
	}
}

func TestRuleSQLDefaultsAndPlaceholders(t *testing.T) {
	question := "mostre os dados"
	got := RuleSQL(question, Analyze(question, KindDatabase), DataContext{})
	if got != "SELECT * FROM table_name LIMIT 10" {
		t.Errorf("RuleSQL default = %q", got)
	}
}

func TestRuleExpr(t *testing.T) {
	cases := []struct {
		question string
		want     string
	}{
		{"Qual a média de idade?", dataset.ExprMean},
		{"Qual a soma dos valores?", dataset.ExprSum},
		{"Faça um count das linhas", dataset.ExprCount},
		{"Qual a distribuição dos dados?", dataset.ExprDescribe},
		{"mostre os dados", dataset.ExprHead},
	}
	for _, tc := range cases {
		got := RuleExpr(tc.question, Analyze(tc.question, KindTable))
		if got != tc.want {
			t.Errorf("RuleExpr(%q) = %q, want %q", tc.question, got, tc.want)
		}
	}
}

func TestExtractSQL(t *testing.T) {
	cases := []struct {
		reply string
		want  string
	}{
		{"SELECT * FROM t", "SELECT * FROM t"},
		{"```sql\nSELECT a FROM t;\n```", "SELECT a FROM t"},
		{"Here is the query: SELECT b FROM t", "SELECT b FROM t"},
		{"select c from t;", "select c from t"},
	}
	for _, tc := range cases {
		if got := extractSQL(tc.reply); got != tc.want {
			t.Errorf("extractSQL(%q) = %q, want %q", tc.reply, got, tc.want)
		}
	}
}

func TestSynthesizeTemplates(t *testing.T) {
	cases := []struct {
		question string
		code     string
		contains string
	}{
		{"Qual a média?", "df.mean()", "average"},
		{"Qual o total?", "df.sum()", "total"},
		{"Qual a quantidade?", "SELECT COUNT(*) FROM t", "count"},
		{"mostre os dados", "df.head()", "executed"},
	}
	for _, tc := range cases {
		got := Synthesize(tc.question, tc.code)
		if got == "" {
			t.Fatalf("Synthesize(%q) returned empty answer", tc.question)
		}
		if !containsAny(got, []string{tc.contains}) {
			t.Errorf("Synthesize(%q) = %q, expected to mention %q", tc.question, got, tc.contains)
		}
		if !containsAny(got, []string{tc.code}) {
			t.Errorf("Synthesize(%q) = %q, expected to include code %q", tc.question, got, tc.code)
		}
	}
}
