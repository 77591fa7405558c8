package agents

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Synthesizer turns a validated generation into the natural-language answer
// delivered to the user. The templated version below is the minimum
// contract; when a language model is wired in, this is where its prose
// would replace the templates.
type Synthesizer struct {
	logger *zap.Logger
}

// NewSynthesizer creates the result synthesizer.
func NewSynthesizer(logger *zap.Logger) *Synthesizer {
	return &Synthesizer{logger: logger}
}

// ID implements Agent.
func (s *Synthesizer) ID() AgentID { return AgentSynthesizer }

// Handle accepts either a validated SQL generation or a tabular
// interpretation and produces the terminal user-addressed result.
func (s *Synthesizer) Handle(ctx context.Context, msg Message) (*Message, error) {
	switch content := msg.Content.(type) {
	case ValidatedQuery:
		return reply(AgentSynthesizer, AgentUser, FinalResult{
			Question: content.Question,
			Answer:   Synthesize(content.Question, content.SQL),
			SQL:      content.SQL,
		}), nil
	case DataInterpretation:
		return reply(AgentSynthesizer, AgentUser, FinalResult{
			Question: content.Question,
			Answer:   Synthesize(content.Question, content.Expr),
			Expr:     content.Expr,
		}), nil
	default:
		return nil, fmt.Errorf("synthesizer received %s message", msg.Type)
	}
}

// Synthesize maps question cue words to an explanatory sentence that always
// references the executed code. It never returns empty text.
func Synthesize(question, code string) string {
	lower := strings.ToLower(question)
	switch {
	case containsAny(lower, meanCues):
		return fmt.Sprintf("To compute the requested average I ran: %s", code)
	case containsAny(lower, sumCues):
		return fmt.Sprintf("To obtain the requested total I executed: %s", code)
	case containsAny(lower, countCues):
		return fmt.Sprintf("To count the records I used: %s", code)
	default:
		return fmt.Sprintf("Based on your question, I executed: %s", code)
	}
}
