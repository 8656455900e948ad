package history

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shahryar908/researchy/pkg/agent"
	"github.com/shahryar908/researchy/pkg/cache"
	"github.com/shahryar908/researchy/pkg/logging"
)

func TestLoad_ConvertsRoles(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Internal-Request"); got != "true" {
			t.Errorf("internal header = %q, want true", got)
		}
		if r.URL.Path != "/internal/conversation/conv-1/history" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"messages":[
			{"role":"user","content":"hi"},
			{"role":"assistant","content":"hello"},
			{"role":"system","content":"ignored"},
			{"role":"ai","content":"legacy role"}
		]}`)
	}))
	defer srv.Close()

	loader, err := NewLoader(Config{BackendURL: srv.URL, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	msgs := loader.Load(context.Background(), "conv-1")
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	if msgs[0].Role != agent.RoleUser || msgs[0].Content != "hi" {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != agent.RoleAssistant {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
	if msgs[2].Role != agent.RoleAssistant || msgs[2].Content != "legacy role" {
		t.Errorf("msgs[2] = %+v", msgs[2])
	}
}

func TestLoad_CarriesToolCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"messages":[
			{"role":"assistant","content":"searching","toolCalls":[
				{"id":"call_1","name":"arxiv_search","args":{"query":"llm"}}
			]},
			{"role":"assistant","content":"done"}
		]}`)
	}))
	defer srv.Close()

	loader, err := NewLoader(Config{BackendURL: srv.URL, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	msgs := loader.Load(context.Background(), "conv-1")
	if len(msgs) != 2 {
		t.Fatalf("messages = %d, want 2", len(msgs))
	}
	if !msgs[0].HasToolCalls() {
		t.Fatal("tool calls dropped on replay")
	}
	call := msgs[0].ToolCalls[0]
	if call.ID != "call_1" || call.Name != "arxiv_search" {
		t.Errorf("tool call = %+v", call)
	}
	if q, _ := call.Args["query"].(string); q != "llm" {
		t.Errorf("args = %v", call.Args)
	}
	if msgs[1].HasToolCalls() {
		t.Error("plain assistant turn should carry no tool calls")
	}
}

func TestLoad_BackendDownReturnsEmpty(t *testing.T) {
	loader, err := NewLoader(Config{
		BackendURL: "http://127.0.0.1:1",
		Timeout:    500 * time.Millisecond,
		Logger:     logging.Discard(),
	})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	if msgs := loader.Load(context.Background(), "conv-1"); len(msgs) != 0 {
		t.Errorf("messages = %d, want 0", len(msgs))
	}
}

func TestLoad_ErrorStatusReturnsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	loader, err := NewLoader(Config{BackendURL: srv.URL, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	if msgs := loader.Load(context.Background(), "missing"); len(msgs) != 0 {
		t.Errorf("messages = %d, want 0", len(msgs))
	}
}

func TestLoad_CachesFetches(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"messages":[{"role":"user","content":"hi"}]}`)
	}))
	defer srv.Close()

	mem := cache.NewMemoryCache(cache.DefaultConfig())
	defer mem.Close()

	loader, err := NewLoader(Config{BackendURL: srv.URL, Cache: mem, Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}

	ctx := context.Background()
	loader.Load(ctx, "conv-1")
	loader.Load(ctx, "conv-1")
	if got := calls.Load(); got != 1 {
		t.Errorf("backend calls = %d, want 1", got)
	}

	loader.Load(ctx, "conv-2")
	if got := calls.Load(); got != 2 {
		t.Errorf("backend calls = %d, want 2", got)
	}
}

func TestLoad_EmptyConversationID(t *testing.T) {
	loader, err := NewLoader(Config{BackendURL: "http://example.invalid", Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("NewLoader: %v", err)
	}
	if msgs := loader.Load(context.Background(), ""); msgs != nil {
		t.Errorf("messages = %v, want nil", msgs)
	}
}
