package agents

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxIterations bounds message routing. It is a hop counter, not a
// timeout.
const DefaultMaxIterations = 10

// recentTraceCap bounds the process-wide dispatch history.
const recentTraceCap = 100

// Agent consumes one message and produces at most one outbound message.
// Returning (nil, nil) is an explicit dead end; a non-nil error is a visible
// failure the orchestrator logs and absorbs into the overall result.
type Agent interface {
	ID() AgentID
	Handle(ctx context.Context, msg Message) (*Message, error)
}

// TraceEntry records one dispatch while answering a question.
type TraceEntry struct {
	Iteration int       `json:"iteration"`
	Agent     AgentID   `json:"agent"`
	Input     Content   `json:"input"`
	Output    Content   `json:"output,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Result is the outcome of routing one question through the pipeline.
type Result struct {
	Success    bool         `json:"success"`
	Final      Content      `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
	Trace      []TraceEntry `json:"execution_path"`
	Iterations int          `json:"iterations"`
}

// AgentStatus summarizes one agent's activity since process start.
type AgentStatus struct {
	Handled      int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity,omitzero"`
}

// Orchestrator owns the agent set and drives message routing until a
// terminal user-addressed message appears or the iteration cap is hit.
type Orchestrator struct {
	agents        map[AgentID]Agent
	maxIterations int
	logger        *zap.Logger

	mu     sync.Mutex
	recent []TraceEntry
	stats  map[AgentID]AgentStatus
}

// New creates an orchestrator over the given agents. maxIterations <= 0
// falls back to DefaultMaxIterations.
func New(maxIterations int, logger *zap.Logger, members ...Agent) *Orchestrator {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	o := &Orchestrator{
		agents:        make(map[AgentID]Agent, len(members)),
		maxIterations: maxIterations,
		logger:        logger,
		stats:         make(map[AgentID]AgentStatus),
	}
	for _, a := range members {
		o.agents[a.ID()] = a
	}
	return o
}

// Process routes a question through the pipeline. The receiver named by the
// current message is the state; the loop ends on a user-addressed message,
// an unknown receiver, a dead end, or the iteration cap.
func (o *Orchestrator) Process(ctx context.Context, question string, kind DataKind, dctx DataContext) *Result {
	initial := NewMessage(AgentUser, AgentAnalyzer, UserQuery{
		Question: question,
		DataKind: kind,
		Context:  dctx,
	})

	res := &Result{}
	current := &initial

	for current != nil && res.Iterations < o.maxIterations {
		res.Iterations++

		if current.Receiver == AgentUser {
			break
		}

		agent, ok := o.agents[current.Receiver]
		if !ok {
			o.logger.Error("message addressed to unknown agent",
				zap.String("receiver", string(current.Receiver)))
			break
		}

		out, err := agent.Handle(ctx, *current)
		if err != nil {
			o.logger.Error("agent failed",
				zap.String("agent", string(current.Receiver)), zap.Error(err))
			out = nil
		}

		entry := TraceEntry{
			Iteration: res.Iterations,
			Agent:     current.Receiver,
			Input:     current.Content,
			Timestamp: time.Now(),
		}
		if out != nil {
			entry.Output = out.Content
		}
		res.Trace = append(res.Trace, entry)
		o.record(entry)

		current = out
	}

	if current != nil && current.Receiver == AgentUser {
		res.Success = true
		res.Final = current.Content
		if verr, ok := current.Content.(ValidationError); ok {
			// A validation error is a delivered outcome, not a pipeline
			// fault, but callers need the distinction.
			res.Error = verr.Reason
		}
		return res
	}

	res.Error = "multi-agent processing did not reach a result"
	return res
}

func (o *Orchestrator) record(entry TraceEntry) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.recent = append(o.recent, entry)
	if len(o.recent) > recentTraceCap {
		o.recent = o.recent[len(o.recent)-recentTraceCap:]
	}

	st := o.stats[entry.Agent]
	st.Handled++
	st.LastActivity = entry.Timestamp
	o.stats[entry.Agent] = st
}

// Stats returns per-agent dispatch counters.
func (o *Orchestrator) Stats() map[AgentID]AgentStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[AgentID]AgentStatus, len(o.stats))
	for id, st := range o.stats {
		out[id] = st
	}
	return out
}
