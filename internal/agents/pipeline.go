package agents

import (
	"github.com/quern/askdata/internal/provider"
	"go.uber.org/zap"
)

// NewPipeline wires the five standard agents into an orchestrator. llm may
// be nil, in which case generation runs purely on the rule tables.
func NewPipeline(llm *provider.Router, maxIterations int, logger *zap.Logger) *Orchestrator {
	return New(maxIterations, logger,
		NewAnalyzer(logger),
		NewSQLGenerator(llm, logger),
		NewInterpreter(logger),
		NewValidator(logger),
		NewSynthesizer(logger),
	)
}
