// Package api exposes the HTTP surface: data onboarding (file upload,
// database connect), natural-language querying, history reports and service
// introspection.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/quern/askdata/internal/agents"
	"github.com/quern/askdata/internal/config"
	"github.com/quern/askdata/internal/dataset"
	"github.com/quern/askdata/internal/dbconn"
	"github.com/quern/askdata/internal/engine"
	"github.com/quern/askdata/internal/report"
	"github.com/quern/askdata/internal/session"
	"github.com/quern/askdata/internal/sqlguard"
	"go.uber.org/zap"
)

const previewLimit = 5

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine    *engine.Engine
	sessions  *session.Store
	connector *dbconn.Connector
	limits    config.LimitsConfig
	logger    *zap.Logger
}

// NewHandler creates a new API handler.
func NewHandler(eng *engine.Engine, sessions *session.Store, connector *dbconn.Connector,
	limits config.LimitsConfig, logger *zap.Logger) *Handler {
	return &Handler{
		engine:    eng,
		sessions:  sessions,
		connector: connector,
		limits:    limits,
		logger:    logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/", h.root)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)
		r.Post("/upload", h.uploadFile)
		r.Post("/connect_db", h.connectDB)
		r.Post("/query", h.query)
		r.Post("/generate_pdf", h.generatePDF)
		r.Get("/agents/status", h.agentStatus)
		r.Get("/metrics", h.metrics)
	})

	return r
}

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service": "askdata",
		"endpoints": []string{
			"/api/health",
			"/api/upload",
			"/api/connect_db",
			"/api/query",
			"/api/generate_pdf",
			"/api/agents/status",
			"/api/metrics",
		},
	})
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "askdata"})
}

func (h *Handler) uploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxUploadBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge,
				map[string]string{"error": fmt.Sprintf("file exceeds %d bytes", h.limits.MaxUploadBytes)})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field"})
		return
	}
	defer file.Close()

	if err := validateUploadName(header.Filename); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	table, err := dataset.Load(header.Filename, file)
	if err != nil {
		h.logger.Warn("upload parse failed",
			zap.String("filename", header.Filename), zap.Error(err))
		writeJSON(w, http.StatusBadRequest,
			map[string]string{"error": fmt.Sprintf("could not parse file: %v", err)})
		return
	}

	sessionID := h.sessions.CreateTableSession(table, header.Filename)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"filename":   header.Filename,
		"data_type":  agents.KindTable,
		"rows":       table.NumRows(),
		"columns":    table.Columns,
		"preview":    table.Preview(previewLimit),
	})
}

type connectDBRequest struct {
	DBPath string `json:"db_path"`
}

func (h *Handler) connectDB(w http.ResponseWriter, r *http.Request) {
	var req connectDBRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := validateDBTarget(req.DBPath); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	db, err := h.connector.Open(r.Context(), req.DBPath)
	if err != nil {
		writeJSON(w, http.StatusBadRequest,
			map[string]string{"error": fmt.Sprintf("could not connect: %v", err)})
		return
	}

	tables, err := h.connector.ListTables(r.Context(), db, dbconn.IsPostgresDSN(req.DBPath))
	if err != nil {
		db.Close()
		writeJSON(w, http.StatusInternalServerError,
			map[string]string{"error": fmt.Sprintf("could not list tables: %v", err)})
		return
	}
	if len(tables) == 0 {
		db.Close()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "database has no tables"})
		return
	}

	previews := h.connector.Previews(r.Context(), db, tables)
	sessionID := h.sessions.CreateDBSession(db, req.DBPath, tables, previews[tables[0]].Columns)
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"db_path":    req.DBPath,
		"data_type":  agents.KindDatabase,
		"tables":     tables,
		"previews":   previews,
	})
}

type queryRequest struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
}

func (h *Handler) query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := validateQuestion(req.Question, h.limits.MaxQuestionLen); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	ans, err := h.engine.Process(r.Context(), req.SessionID, req.Question)
	if err != nil {
		h.writeQueryError(w, req.SessionID, err)
		return
	}

	entry, err := h.sessions.AppendHistory(req.SessionID, req.Question, ans.Answer, ans.GeneratedCode)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"answer":         ans.Answer,
		"generated_code": ans.GeneratedCode,
		"method":         ans.Method,
		"interaction_id": entry.ID,
	})
}

func (h *Handler) writeQueryError(w http.ResponseWriter, sessionID string, err error) {
	var rejected *engine.RejectedError
	var badKind *engine.BadSessionKindError
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.As(err, &rejected):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             rejected.Reason,
			"failed_validation": true,
			"severity":          string(rejected.Severity),
		})
	case errors.As(err, &badKind):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, sqlguard.ErrUnsafeQuery):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             err.Error(),
			"failed_validation": true,
		})
	default:
		h.logger.Error("query failed", zap.String("session", sessionID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query processing failed"})
	}
}

type generatePDFRequest struct {
	SessionID      string   `json:"session_id"`
	InteractionIDs []string `json:"interaction_ids,omitempty"`
}

func (h *Handler) generatePDF(w http.ResponseWriter, r *http.Request) {
	var req generatePDFRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	sess, err := h.sessions.Get(req.SessionID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}

	selected := selectInteractions(sess.History(), req.InteractionIDs)
	if len(selected) == 0 {
		writeJSON(w, http.StatusBadRequest,
			map[string]string{"error": "no interactions matched the request"})
		return
	}

	pdf, err := report.Generate(sess.Source, selected)
	if err != nil {
		h.logger.Error("report generation failed",
			zap.String("session", req.SessionID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "report generation failed"})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="report_%s.pdf"`, shortID(req.SessionID)))
	w.WriteHeader(http.StatusOK)
	w.Write(pdf)
}

// selectInteractions keeps only history entries whose id appears in ids. An
// empty id list selects nothing.
func selectInteractions(history []session.Interaction, ids []string) []session.Interaction {
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []session.Interaction
	for _, it := range history {
		if wanted[it.ID] {
			out = append(out, it)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (h *Handler) agentStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Orchestrator().Stats())
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Summary())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
