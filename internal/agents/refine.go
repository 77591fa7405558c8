package agents

import "strings"

// RefineQuestion appends advisory clauses derived from the context
// indicators and complexity before the question reaches a language model.
// The rule-based generators ignore the refinements; only prompts use them.
func RefineQuestion(question string, analysis IntentAnalysis) string {
	var b strings.Builder
	b.WriteString(question)

	if analysis.Indicators.Temporal {
		b.WriteString(" (consider the temporal aspect of the data)")
	}
	if analysis.Indicators.Comparative {
		b.WriteString(" (apply the appropriate comparisons)")
	}
	if analysis.Indicators.Categorical {
		b.WriteString(" (group by the relevant categories)")
	}
	if analysis.Indicators.Numeric {
		b.WriteString(" (focus on numeric metrics)")
	}

	switch analysis.Complexity {
	case ComplexityComplex:
		b.WriteString(" (provide a detailed, comprehensive analysis)")
	case ComplexityMedium:
		b.WriteString(" (provide a balanced analysis)")
	}

	return b.String()
}
