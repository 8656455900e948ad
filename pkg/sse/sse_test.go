package sse

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewWriter(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)
	if sw == nil {
		t.Fatal("expected non-nil Writer from httptest.ResponseRecorder")
	}

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", cc)
	}
	if conn := rec.Header().Get("Connection"); conn != "keep-alive" {
		t.Errorf("Connection = %q, want keep-alive", conn)
	}
}

// nonFlushWriter does not implement http.Flusher.
type nonFlushWriter struct {
	http.ResponseWriter
}

func TestNewWriter_NoFlusher(t *testing.T) {
	sw := NewWriter(&nonFlushWriter{})
	if sw != nil {
		t.Error("expected nil Writer when ResponseWriter does not support Flusher")
	}
}

func TestSendContent(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)

	if err := sw.SendContent("Hello"); err != nil {
		t.Fatalf("SendContent: %v", err)
	}

	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 1 {
		t.Fatalf("frames = %d, want 1", len(frames))
	}
	if frames[0].Type != TypeContent || frames[0].Content != "Hello" {
		t.Errorf("frame = %+v", frames[0])
	}
}

func TestSendToolEvents(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)

	_ = sw.SendToolStart("arxiv_search")
	_ = sw.SendToolEnd("arxiv_search")

	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2", len(frames))
	}
	if frames[0].Type != TypeToolStart || frames[0].ToolName != "arxiv_search" {
		t.Errorf("frame 0 = %+v", frames[0])
	}
	if frames[1].Type != TypeToolEnd || frames[1].ToolName != "arxiv_search" {
		t.Errorf("frame 1 = %+v", frames[1])
	}
	if frames[1].Result != "Tool completed" {
		t.Errorf("tool_end result = %q", frames[1].Result)
	}
}

func TestSendError(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)

	if err := sw.SendError("model unavailable"); err != nil {
		t.Fatalf("SendError: %v", err)
	}

	frames := parseFrames(t, rec.Body.String())
	if len(frames) != 1 || frames[0].Type != TypeError || frames[0].Error != "model unavailable" {
		t.Errorf("frames = %+v", frames)
	}
}

func TestStreamLifecycle(t *testing.T) {
	rec := httptest.NewRecorder()
	sw := NewWriter(rec)

	sw.UserID = "usr_1"
	_ = sw.SendStart()
	_ = sw.SendContent("Hello")
	_ = sw.SendContent(" world")
	_ = sw.SendComplete("Hello world", nil)

	frames := parseFrames(t, rec.Body.String())
	want := []string{TypeStart, TypeContent, TypeContent, TypeComplete}
	if len(frames) != len(want) {
		t.Fatalf("frames = %d, want %d", len(frames), len(want))
	}
	for i, typ := range want {
		if frames[i].Type != typ {
			t.Errorf("frame %d type = %q, want %q", i, frames[i].Type, typ)
		}
		if frames[i].UserID != "usr_1" {
			t.Errorf("frame %d user_id = %q", i, frames[i].UserID)
		}
	}

	var text strings.Builder
	for _, f := range frames {
		text.WriteString(f.Content)
	}
	if text.String() != "Hello world" {
		t.Errorf("assembled content = %q", text.String())
	}
	if frames[len(frames)-1].Response != "Hello world" {
		t.Errorf("complete response = %q", frames[len(frames)-1].Response)
	}
}

// parseFrames decodes all data-only frames in the body.
func parseFrames(t *testing.T, body string) []Frame {
	t.Helper()
	var frames []Frame
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var f Frame
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f); err != nil {
			t.Fatalf("unmarshal frame %q: %v", line, err)
		}
		frames = append(frames, f)
	}
	return frames
}
