package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shahryar908/researchy/pkg/agent"
	"github.com/shahryar908/researchy/pkg/history"
	"github.com/shahryar908/researchy/pkg/logging"
	"github.com/shahryar908/researchy/pkg/metrics"
)

// scriptedModel returns canned replies in order, recording what it saw.
type scriptedModel struct {
	replies []agent.Message
	seen    [][]agent.Message
}

func (m *scriptedModel) Chat(ctx context.Context, messages []agent.Message, tools []agent.Tool) (agent.Message, error) {
	m.seen = append(m.seen, append([]agent.Message(nil), messages...))
	if len(m.seen) > len(m.replies) {
		return agent.Message{}, fmt.Errorf("unexpected model call %d", len(m.seen))
	}
	return m.replies[len(m.seen)-1], nil
}

func newTestServer(model agent.Model, reg *agent.Registry, opts ...func(*Config)) *Server {
	if reg == nil {
		reg = agent.NewRegistry()
	}
	cfg := Config{
		Agent:     agent.New(model, reg),
		ModelName: "test-model",
		Logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return New(cfg)
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(raw)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleChat(t *testing.T) {
	model := &scriptedModel{replies: []agent.Message{
		agent.Assistant("Transformers are attention-based models."),
	}}
	srv := newTestServer(model, nil)

	rec := postJSON(t, srv.Handler(), "/api/chat", ChatRequest{
		Message:  "What are transformers?",
		UserID:   "usr_1",
		UserName: "Ada",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Response != "Transformers are attention-based models." {
		t.Errorf("response = %q", resp.Response)
	}
	if resp.UserID != "usr_1" {
		t.Errorf("user_id = %q, want echo of the request user", resp.UserID)
	}

	// A fresh conversation carries exactly one system message.
	msgs := model.seen[0]
	systems := 0
	for _, m := range msgs {
		if m.Role == agent.RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("system messages = %d, want 1", systems)
	}
	if !strings.Contains(msgs[0].Content, "Ada") {
		t.Error("user name not injected into system prompt")
	}
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	srv := newTestServer(&scriptedModel{}, nil)

	rec := postJSON(t, srv.Handler(), "/api/chat", ChatRequest{Message: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleChat_WithHistory(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"messages":[
			{"role":"user","content":"earlier question"},
			{"role":"assistant","content":"earlier answer"}
		]}`)
	}))
	defer backend.Close()

	loader, err := history.NewLoader(history.Config{BackendURL: backend.URL, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	model := &scriptedModel{replies: []agent.Message{agent.Assistant("follow-up answer")}}
	srv := newTestServer(model, nil, func(c *Config) { c.History = loader })

	rec := postJSON(t, srv.Handler(), "/api/chat", ChatRequest{
		Message:        "follow-up question",
		ConversationID: "conv-7",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	msgs := model.seen[0]
	// system + 2 history turns + new user message
	if len(msgs) != 4 {
		t.Fatalf("messages = %d, want 4", len(msgs))
	}
	if msgs[1].Content != "earlier question" || msgs[2].Content != "earlier answer" {
		t.Errorf("history not replayed: %+v", msgs[1:3])
	}
	if msgs[3].Role != agent.RoleUser || msgs[3].Content != "follow-up question" {
		t.Errorf("last message = %+v", msgs[3])
	}
}

func TestHandleChatStream(t *testing.T) {
	tool := &agent.FuncTool{
		ToolName:        "arxiv_search",
		ToolDescription: "search",
		ToolParameters:  map[string]any{"type": "object"},
		Fn: func(ctx context.Context, args map[string]any) (string, error) {
			return "found papers", nil
		},
	}
	reg := agent.NewRegistry(tool)

	model := &scriptedModel{replies: []agent.Message{
		agent.Assistant("", agent.ToolCall{ID: "c1", Name: "arxiv_search", Args: map[string]any{"query": "x"}}),
		agent.Assistant("Here are the papers."),
	}}
	srv := newTestServer(model, reg)

	rec := postJSON(t, srv.Handler(), "/api/chat/stream", ChatRequest{Message: "find papers"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`"type":"start"`,
		`"type":"tool_start"`,
		`"tool_name":"arxiv_search"`,
		`"type":"tool_end"`,
		`"result":"Tool completed"`,
		`"type":"content"`,
		"Here are the papers.",
		`"type":"complete"`,
		`"tool_calls":[{"id":"c1","name":"arxiv_search","args":{"query":"x"}}]`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("stream missing %s in:\n%s", want, body)
		}
	}
}

func TestHandleChatStream_ModelError(t *testing.T) {
	srv := newTestServer(&scriptedModel{}, nil)

	rec := postJSON(t, srv.Handler(), "/api/chat/stream", ChatRequest{Message: "hi"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d (stream errors arrive as frames)", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"type":"error"`) {
		t.Errorf("expected error frame, got:\n%s", rec.Body.String())
	}
}

func TestHandleGenerateTitle_Fallback(t *testing.T) {
	srv := newTestServer(&scriptedModel{}, nil)

	rec := postJSON(t, srv.Handler(), "/api/generate-title", TitleRequest{
		FirstMessage: "explain graph neural networks please",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp TitleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Title != "Explain Graph Neural Networks" {
		t.Errorf("title = %q", resp.Title)
	}
}

func TestHandlePapersListAndDownload(t *testing.T) {
	dir := t.TempDir()
	pdfPath := filepath.Join(dir, "survey.pdf")
	if err := os.WriteFile(pdfPath, []byte("%PDF-1.5 content"), 0o644); err != nil {
		t.Fatal(err)
	}

	srv := newTestServer(&scriptedModel{}, nil, func(c *Config) { c.PaperDirs = []string{dir} })
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/papers/list", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}

	var resp PapersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Count != 1 || resp.Papers[0].Filename != "survey.pdf" {
		t.Errorf("papers = %+v", resp)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/papers/download/survey.pdf", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("content type = %q", got)
	}
	if rec.Body.String() != "%PDF-1.5 content" {
		t.Error("download body mismatch")
	}
}

func TestHandlePapersDownload_Traversal(t *testing.T) {
	srv := newTestServer(&scriptedModel{}, nil, func(c *Config) { c.PaperDirs = []string{t.TempDir()} })
	handler := srv.Handler()

	for _, path := range []string{
		"/api/papers/download/..%5Csecret.pdf",
		"/api/papers/download/notes.txt",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest && rec.Code != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want rejection", path, rec.Code)
		}
	}
}

func TestHandleHealthAndRoot(t *testing.T) {
	srv := newTestServer(&scriptedModel{}, nil, func(c *Config) { c.Metrics = metrics.New() })
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	var health map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if health["status"] != "healthy" || health["service"] != "research-agent" {
		t.Errorf("health = %v", health)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if !strings.Contains(rec.Body.String(), "Researchy API") {
		t.Errorf("root body = %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("metrics status = %d", rec.Code)
	}
}

func TestCORSPreflightAllowed(t *testing.T) {
	srv := newTestServer(&scriptedModel{}, nil)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("preflight status = %d", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow origin = %q", got)
	}
}
