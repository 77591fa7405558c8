package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quern/askdata/internal/agents"
	"github.com/quern/askdata/internal/cache"
	"github.com/quern/askdata/internal/config"
	"github.com/quern/askdata/internal/dbconn"
	"github.com/quern/askdata/internal/engine"
	"github.com/quern/askdata/internal/session"
	"github.com/quern/askdata/internal/sqlguard"
	"go.uber.org/zap"
)

// newTestServer wires a Handler with in-process deps: no LLM provider, no
// Redis.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	logger := zap.NewNop()

	limits := config.LimitsConfig{
		MaxUploadBytes: 1 << 20,
		MaxQuestionLen: 1000,
		MaxRows:        100,
		MaxIterations:  10,
	}

	exec := sqlguard.NewExecutor(limits.MaxRows, logger)
	sessions := session.NewStore(logger)
	connector := dbconn.New(exec, logger)
	pipeline := agents.NewPipeline(nil, limits.MaxIterations, logger)
	eng := engine.New(pipeline, sessions, exec, cache.NewMemory(0), logger)

	h := NewHandler(eng, sessions, connector, limits, logger)
	ts := httptest.NewServer(h.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}) *http.Response {
	t.Helper()
	b, _ := json.Marshal(body)
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func getJSON(t *testing.T, ts *httptest.Server, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func uploadCSV(t *testing.T, ts *httptest.Server, filename, content string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	io.WriteString(part, content)
	mw.Close()

	resp, err := http.Post(ts.URL+"/api/upload", mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST /api/upload: %v", err)
	}
	return resp
}

const peopleCSV = "nome,idade\nAna,30\nBruno,20\nCarla,40\n"

// --- Tests ---

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts, "/api/health")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body map[string]string
	decodeJSON(t, resp, &body)
	if body["status"] != "ok" {
		t.Errorf("expected status ok, got %q", body["status"])
	}
	if body["service"] != "askdata" {
		t.Errorf("expected service askdata, got %q", body["service"])
	}
}

func TestUploadQueryReportFlow(t *testing.T) {
	ts := newTestServer(t)

	// Upload
	resp := uploadCSV(t, ts, "people.csv", peopleCSV)
	if resp.StatusCode != 200 {
		t.Fatalf("upload: expected 200, got %d", resp.StatusCode)
	}
	var up struct {
		SessionID string           `json:"session_id"`
		DataType  string           `json:"data_type"`
		Rows      int              `json:"rows"`
		Columns   []string         `json:"columns"`
		Preview   []map[string]any `json:"preview"`
	}
	decodeJSON(t, resp, &up)
	if up.SessionID == "" {
		t.Fatal("expected non-empty session id")
	}
	if up.DataType != "dataframe" {
		t.Errorf("data_type = %q, want dataframe", up.DataType)
	}
	if up.Rows != 3 || len(up.Columns) != 2 {
		t.Errorf("unexpected shape: rows=%d columns=%v", up.Rows, up.Columns)
	}
	if len(up.Preview) != 3 {
		t.Errorf("expected 3 preview rows, got %d", len(up.Preview))
	}

	// Query
	resp = postJSON(t, ts, "/api/query", map[string]string{
		"session_id": up.SessionID,
		"question":   "Qual a média de idade?",
	})
	if resp.StatusCode != 200 {
		t.Fatalf("query: expected 200, got %d", resp.StatusCode)
	}
	var q struct {
		Answer        string `json:"answer"`
		GeneratedCode string `json:"generated_code"`
		InteractionID string `json:"interaction_id"`
	}
	decodeJSON(t, resp, &q)
	if q.GeneratedCode != "df.mean()" {
		t.Errorf("generated code = %q", q.GeneratedCode)
	}
	if !strings.Contains(q.Answer, "idade: 30") {
		t.Errorf("answer missing computed mean: %q", q.Answer)
	}
	if q.InteractionID == "" {
		t.Fatal("expected interaction id")
	}

	// Report over the selected interaction
	resp = postJSON(t, ts, "/api/generate_pdf", map[string]any{
		"session_id":      up.SessionID,
		"interaction_ids": []string{q.InteractionID},
	})
	if resp.StatusCode != 200 {
		t.Fatalf("generate_pdf: expected 200, got %d", resp.StatusCode)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	pdf, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Error("expected PDF payload")
	}
}

func TestUploadRejectsBadExtension(t *testing.T) {
	ts := newTestServer(t)

	resp := uploadCSV(t, ts, "malware.exe", "MZ")
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUploadRejectsUnparseable(t *testing.T) {
	ts := newTestServer(t)

	resp := uploadCSV(t, ts, "empty.csv", "col\n")
	if resp.StatusCode != 400 {
		t.Fatalf("expected 400 for header-only file, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestQueryValidation(t *testing.T) {
	ts := newTestServer(t)

	resp := uploadCSV(t, ts, "people.csv", peopleCSV)
	var up struct {
		SessionID string `json:"session_id"`
	}
	decodeJSON(t, resp, &up)

	// Unknown session
	resp = postJSON(t, ts, "/api/query", map[string]string{
		"session_id": "unknown", "question": "média",
	})
	if resp.StatusCode != 404 {
		t.Errorf("unknown session: expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Empty question
	resp = postJSON(t, ts, "/api/query", map[string]string{
		"session_id": up.SessionID, "question": "  ",
	})
	if resp.StatusCode != 400 {
		t.Errorf("empty question: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Oversized question
	resp = postJSON(t, ts, "/api/query", map[string]string{
		"session_id": up.SessionID, "question": strings.Repeat("a", 1001),
	})
	if resp.StatusCode != 400 {
		t.Errorf("long question: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Injection payload
	resp = postJSON(t, ts, "/api/query", map[string]string{
		"session_id": up.SessionID, "question": "<script>alert(1)</script>",
	})
	if resp.StatusCode != 400 {
		t.Errorf("script question: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestConnectDBValidation(t *testing.T) {
	ts := newTestServer(t)

	cases := []string{
		"../secrets.db",
		"/etc/passwd.db",
		"data.txt",
		"",
	}
	for _, target := range cases {
		resp := postJSON(t, ts, "/api/connect_db", map[string]string{"db_path": target})
		if resp.StatusCode != 400 {
			t.Errorf("connect_db(%q): expected 400, got %d", target, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestGeneratePDFValidation(t *testing.T) {
	ts := newTestServer(t)

	// Unknown session
	resp := postJSON(t, ts, "/api/generate_pdf", map[string]string{"session_id": "nope"})
	if resp.StatusCode != 404 {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Session without matching interactions
	up := uploadCSV(t, ts, "people.csv", peopleCSV)
	var body struct {
		SessionID string `json:"session_id"`
	}
	decodeJSON(t, up, &body)

	resp = postJSON(t, ts, "/api/generate_pdf", map[string]any{
		"session_id":      body.SessionID,
		"interaction_ids": []string{"missing"},
	})
	if resp.StatusCode != 400 {
		t.Errorf("expected 400 for unmatched ids, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGeneratePDFRejectsEmptySelection(t *testing.T) {
	ts := newTestServer(t)

	up := uploadCSV(t, ts, "people.csv", peopleCSV)
	var body struct {
		SessionID string `json:"session_id"`
	}
	decodeJSON(t, up, &body)

	resp := postJSON(t, ts, "/api/query", map[string]string{
		"session_id": body.SessionID, "question": "Qual a média de idade?",
	})
	resp.Body.Close()

	// An empty id list selects nothing, even with history present.
	for _, payload := range []map[string]any{
		{"session_id": body.SessionID, "interaction_ids": []string{}},
		{"session_id": body.SessionID},
	} {
		resp = postJSON(t, ts, "/api/generate_pdf", payload)
		if resp.StatusCode != 400 {
			t.Errorf("generate_pdf(%v): expected 400, got %d", payload["interaction_ids"], resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestAgentStatusAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	up := uploadCSV(t, ts, "people.csv", peopleCSV)
	var body struct {
		SessionID string `json:"session_id"`
	}
	decodeJSON(t, up, &body)

	resp := postJSON(t, ts, "/api/query", map[string]string{
		"session_id": body.SessionID, "question": "Qual a média de idade?",
	})
	resp.Body.Close()

	resp = getJSON(t, ts, "/api/agents/status")
	if resp.StatusCode != 200 {
		t.Fatalf("agents/status: expected 200, got %d", resp.StatusCode)
	}
	var stats map[string]struct {
		MessageCount int `json:"message_count"`
	}
	decodeJSON(t, resp, &stats)
	if stats["query_analyzer"].MessageCount != 1 {
		t.Errorf("expected analyzer to have handled 1 message, got %+v", stats)
	}

	resp = getJSON(t, ts, "/api/metrics")
	if resp.StatusCode != 200 {
		t.Fatalf("metrics: expected 200, got %d", resp.StatusCode)
	}
	var summary struct {
		TotalQueries int     `json:"total_queries"`
		SuccessRate  float64 `json:"success_rate"`
	}
	decodeJSON(t, resp, &summary)
	if summary.TotalQueries != 1 {
		t.Errorf("expected 1 query recorded, got %d", summary.TotalQueries)
	}
	if summary.SuccessRate != 1.0 {
		t.Errorf("expected success rate 1.0, got %f", summary.SuccessRate)
	}
}

func TestRootEndpoint(t *testing.T) {
	ts := newTestServer(t)

	resp := getJSON(t, ts, "/")
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Service   string   `json:"service"`
		Endpoints []string `json:"endpoints"`
	}
	decodeJSON(t, resp, &body)
	if body.Service != "askdata" {
		t.Errorf("service = %q", body.Service)
	}
	if len(body.Endpoints) == 0 {
		t.Error("expected endpoint list")
	}
}
