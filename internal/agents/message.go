// Package agents implements the cooperating handlers that turn a natural
// language question into a validated SQL statement or tabular expression:
// intent analysis, query generation, safety validation and result synthesis,
// coordinated by an orchestrator that routes messages between them.
package agents

import (
	"time"

	"github.com/quern/askdata/internal/sqlguard"
)

// AgentID names one handler in the closed agent set. The synthetic "user"
// id marks messages leaving the pipeline.
type AgentID string

const (
	AgentUser         AgentID = "user"
	AgentAnalyzer     AgentID = "query_analyzer"
	AgentSQLGenerator AgentID = "sql_generator"
	AgentInterpreter  AgentID = "data_interpreter"
	AgentValidator    AgentID = "validation_agent"
	AgentSynthesizer  AgentID = "result_synthesizer"
)

// DataKind tells the pipeline what backs the session being queried.
type DataKind string

const (
	KindTable    DataKind = "dataframe"
	KindDatabase DataKind = "database"
)

// MessageType tags the content variant a message carries.
type MessageType string

const (
	TypeUserQuery          MessageType = "user_query"
	TypeQueryAnalysis      MessageType = "query_analysis"
	TypeSQLGeneration      MessageType = "sql_generation"
	TypeDataInterpretation MessageType = "data_interpretation"
	TypeValidatedQuery     MessageType = "validated_query"
	TypeValidationError    MessageType = "validation_error"
	TypeFinalResult        MessageType = "final_result"
)

// Content is the sealed set of message payloads. Each variant carries
// exactly the fields its receiving agent consumes.
type Content interface {
	messageType() MessageType
}

// DataContext is the advisory data-shape context a session supplies to the
// pipeline: column names for tables, table names (plus the first table's
// columns) for databases.
type DataContext struct {
	Columns []string `json:"columns,omitempty"`
	Tables  []string `json:"tables,omitempty"`
	Rows    int      `json:"rows,omitempty"`
}

// UserQuery enters the pipeline addressed to the analyzer.
type UserQuery struct {
	Question string      `json:"question"`
	DataKind DataKind    `json:"data_kind"`
	Context  DataContext `json:"context"`
}

// QueryAnalysis is the analyzer's classification, addressed to a generator.
type QueryAnalysis struct {
	Question string         `json:"question"`
	Analysis IntentAnalysis `json:"analysis"`
	Context  DataContext    `json:"context"`
}

// SQLGeneration carries a candidate SQL statement and its self-validation.
type SQLGeneration struct {
	Question   string          `json:"question"`
	SQL        string          `json:"sql"`
	Validation sqlguard.Result `json:"validation"`
	Analysis   IntentAnalysis  `json:"analysis"`
}

// DataInterpretation carries a candidate tabular expression.
type DataInterpretation struct {
	Question string         `json:"question"`
	Expr     string         `json:"expr"`
	Analysis IntentAnalysis `json:"analysis"`
}

// ValidatedQuery wraps a generation that passed the validation agent,
// addressed to the synthesizer.
type ValidatedQuery struct {
	SQLGeneration
}

// ValidationError reports a rejected statement back to the user.
type ValidationError struct {
	Question string            `json:"question"`
	Reason   string            `json:"reason"`
	Severity sqlguard.Severity `json:"severity"`
}

// FinalResult is the terminal payload delivered to the user: the synthesized
// answer plus whichever artifact was generated.
type FinalResult struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	SQL      string `json:"sql,omitempty"`
	Expr     string `json:"expr,omitempty"`
}

func (UserQuery) messageType() MessageType          { return TypeUserQuery }
func (QueryAnalysis) messageType() MessageType      { return TypeQueryAnalysis }
func (SQLGeneration) messageType() MessageType      { return TypeSQLGeneration }
func (DataInterpretation) messageType() MessageType { return TypeDataInterpretation }
func (ValidatedQuery) messageType() MessageType     { return TypeValidatedQuery }
func (ValidationError) messageType() MessageType    { return TypeValidationError }
func (FinalResult) messageType() MessageType        { return TypeFinalResult }

// Message is the immutable envelope routed between agents. A reply is
// always a fresh value; nothing mutates a message in transit.
type Message struct {
	Sender    AgentID     `json:"sender"`
	Receiver  AgentID     `json:"receiver"`
	Type      MessageType `json:"type"`
	Content   Content     `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage builds a message envelope stamped with the current time.
func NewMessage(sender, receiver AgentID, content Content) Message {
	return Message{
		Sender:    sender,
		Receiver:  receiver,
		Type:      content.messageType(),
		Content:   content,
		Timestamp: time.Now(),
	}
}

// reply is the convenience used by agents to answer a message.
func reply(from, to AgentID, content Content) *Message {
	msg := NewMessage(from, to, content)
	return &msg
}
