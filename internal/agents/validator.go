package agents

import (
	"context"
	"fmt"

	"github.com/quern/askdata/internal/sqlguard"
	"go.uber.org/zap"
)

// Validator gate-keeps generated SQL before it advances toward execution.
// This is the advisory checkpoint; the execution gateway re-validates
// independently, so neither path can reach a connection unchecked.
type Validator struct {
	logger *zap.Logger
}

// NewValidator creates the validation agent.
func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{logger: logger}
}

// ID implements Agent.
func (v *Validator) ID() AgentID { return AgentValidator }

// Handle re-runs the shared policy on the generated statement. A pass
// forwards the generation to the synthesizer; a failure short-circuits a
// validation error back to the user.
func (v *Validator) Handle(ctx context.Context, msg Message) (*Message, error) {
	gen, ok := msg.Content.(SQLGeneration)
	if !ok {
		return nil, fmt.Errorf("validator received %s message", msg.Type)
	}

	result := sqlguard.Validate(gen.SQL)
	if !result.IsValid {
		v.logger.Warn("generated SQL rejected",
			zap.String("reason", result.Error),
			zap.String("severity", string(result.Severity)))
		return reply(AgentValidator, AgentUser, ValidationError{
			Question: gen.Question,
			Reason:   result.Error,
			Severity: result.Severity,
		}), nil
	}

	gen.Validation = result
	return reply(AgentValidator, AgentSynthesizer, ValidatedQuery{SQLGeneration: gen}), nil
}
