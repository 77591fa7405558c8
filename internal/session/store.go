// Package session binds an opaque session id to a loaded table or database
// connection plus the accumulated question/answer history. Everything lives
// in process memory for the lifetime of the server; a restart drops all
// sessions.
package session

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quern/askdata/internal/agents"
	"github.com/quern/askdata/internal/dataset"
	"go.uber.org/zap"
)

var (
	// ErrNotFound marks an unknown or expired session id.
	ErrNotFound = errors.New("session not found")
	// ErrNoEngine marks an engine request against a table session, which
	// builds tabular evaluation fresh per query instead of caching.
	ErrNoEngine = errors.New("session kind has no cached query engine")
)

// Interaction is one answered question in a session's history. Never
// mutated after creation.
type Interaction struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Code      string    `json:"code,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the server-side binding for one uploaded table or database
// connection. Read-mostly after creation: only history appends and the lazy
// engine write mutate it, both under mu.
type Session struct {
	ID        string
	Kind      agents.DataKind
	Source    string
	CreatedAt time.Time

	// Table sessions own their table.
	Table *dataset.Table

	// Database sessions borrow a connection and remember its tables plus
	// the first table's columns.
	DB      *sql.DB
	Tables  []string
	Columns []string

	mu      sync.Mutex
	history []Interaction
	engine  any
}

// Context returns the advisory data-shape context handed to the analyzer.
func (s *Session) Context() agents.DataContext {
	switch s.Kind {
	case agents.KindTable:
		return agents.DataContext{
			Columns: append([]string(nil), s.Table.Columns...),
			Rows:    s.Table.NumRows(),
		}
	case agents.KindDatabase:
		return agents.DataContext{
			Tables:  append([]string(nil), s.Tables...),
			Columns: append([]string(nil), s.Columns...),
		}
	default:
		return agents.DataContext{}
	}
}

// History returns a copy of the session's interactions in append order.
func (s *Session) History() []Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Interaction(nil), s.history...)
}

// Store maps session ids to sessions. Safe for concurrent use.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	logger   *zap.Logger
}

// NewStore creates an empty session store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		sessions: make(map[string]*Session),
		logger:   logger,
	}
}

// CreateTableSession stores an owned table under a fresh session id.
func (st *Store) CreateTableSession(table *dataset.Table, source string) string {
	s := &Session{
		ID:        uuid.New().String(),
		Kind:      agents.KindTable,
		Source:    source,
		CreatedAt: time.Now(),
		Table:     table,
	}
	st.put(s)
	st.logger.Info("table session created",
		zap.String("session", s.ID),
		zap.String("source", source),
		zap.Int("rows", table.NumRows()))
	return s.ID
}

// CreateDBSession stores a borrowed database connection, its table list and
// the first table's columns under a fresh session id. No query engine is
// built yet.
func (st *Store) CreateDBSession(db *sql.DB, path string, tables, columns []string) string {
	s := &Session{
		ID:        uuid.New().String(),
		Kind:      agents.KindDatabase,
		Source:    path,
		CreatedAt: time.Now(),
		DB:        db,
		Tables:    append([]string(nil), tables...),
		Columns:   append([]string(nil), columns...),
	}
	st.put(s)
	st.logger.Info("database session created",
		zap.String("session", s.ID),
		zap.String("path", path),
		zap.Strings("tables", tables))
	return s.ID
}

func (st *Store) put(s *Session) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
}

// Get looks up a session by id.
func (st *Store) Get(id string) (*Session, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	s, ok := st.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// AppendHistory records an answered question under a fresh interaction id.
// Existing entries are never rewritten.
func (st *Store) AppendHistory(id, question, answer, code string) (Interaction, error) {
	s, err := st.Get(id)
	if err != nil {
		return Interaction{}, err
	}

	entry := Interaction{
		ID:        uuid.New().String(),
		Question:  question,
		Answer:    answer,
		Code:      code,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.history = append(s.history, entry)
	s.mu.Unlock()
	return entry, nil
}

// QueryEngine returns the session's cached query engine, building it with
// build exactly once per database session. The per-session lock makes
// concurrent first calls construct a single instance. Table sessions always
// return ErrNoEngine.
func (st *Store) QueryEngine(id string, build func(*Session) (any, error)) (any, error) {
	s, err := st.Get(id)
	if err != nil {
		return nil, err
	}
	if s.Kind != agents.KindDatabase {
		return nil, ErrNoEngine
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.engine != nil {
		return s.engine, nil
	}

	st.logger.Debug("building query engine", zap.String("session", id))
	engine, err := build(s)
	if err != nil {
		return nil, fmt.Errorf("build query engine: %w", err)
	}
	s.engine = engine
	return engine, nil
}
