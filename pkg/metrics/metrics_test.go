package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNew(t *testing.T) {
	m := New()
	if m == nil {
		t.Fatal("New() returned nil")
	}
	if m.registry == nil {
		t.Fatal("registry is nil")
	}
}

func TestRecordRequest(t *testing.T) {
	m := New()
	m.RecordRequest("/api/chat", 200, 50*time.Millisecond)
	m.RecordRequest("/api/chat", 200, 100*time.Millisecond)
	m.RecordRequest("/api/chat", 400, 5*time.Millisecond)

	// Check counter
	val := counterValue(t, m.RequestsTotal, "endpoint", "/api/chat", "status", "200")
	if val != 2 {
		t.Errorf("expected 2 requests with status 200, got %f", val)
	}

	val = counterValue(t, m.RequestsTotal, "endpoint", "/api/chat", "status", "400")
	if val != 1 {
		t.Errorf("expected 1 request with status 400, got %f", val)
	}
}

func TestRecordTool(t *testing.T) {
	m := New()
	m.RecordTool("arxiv_search", nil)
	m.RecordTool("arxiv_search", nil)
	m.RecordTool("arxiv_search", errors.New("upstream down"))

	okVal := counterValue(t, m.ToolInvocations, "tool", "arxiv_search", "outcome", "ok")
	if okVal != 2 {
		t.Errorf("expected 2 ok invocations, got %f", okVal)
	}

	errVal := counterValue(t, m.ToolInvocations, "tool", "arxiv_search", "outcome", "error")
	if errVal != 1 {
		t.Errorf("expected 1 error invocation, got %f", errVal)
	}
}

func TestMiddleware(t *testing.T) {
	m := New()

	handler := m.Middleware("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	val := counterValue(t, m.RequestsTotal, "endpoint", "/api/chat", "status", "200")
	if val != 1 {
		t.Errorf("expected 1 request recorded, got %f", val)
	}
}

func TestMiddleware_ErrorStatus(t *testing.T) {
	m := New()

	handler := m.Middleware("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	val := counterValue(t, m.RequestsTotal, "endpoint", "/api/chat", "status", "400")
	if val != 1 {
		t.Errorf("expected 1 request with status 400, got %f", val)
	}
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordRequest("/api/chat", 200, 10*time.Millisecond)
	m.RecordChat("/api/chat", 3)
	m.PapersRendered.Inc()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "researchy_requests_total") {
		t.Error("metrics output missing researchy_requests_total")
	}
	if !strings.Contains(body, "researchy_model_turns") {
		t.Error("metrics output missing researchy_model_turns")
	}
	if !strings.Contains(body, "researchy_papers_rendered_total") {
		t.Error("metrics output missing researchy_papers_rendered_total")
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Error("metrics output missing go runtime metrics")
	}
}

func TestActiveRequests(t *testing.T) {
	m := New()

	started := make(chan struct{})
	release := make(chan struct{})

	handler := m.Middleware("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
	}()

	<-started

	var metric dto.Metric
	if err := m.ActiveRequests.Write(&metric); err != nil {
		t.Fatalf("failed to read gauge: %v", err)
	}
	if metric.GetGauge().GetValue() != 1 {
		t.Errorf("expected 1 active request, got %f", metric.GetGauge().GetValue())
	}

	close(release)
}

// counterValue extracts the value of a counter with the given label pairs.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labelPairs ...string) float64 {
	t.Helper()
	labels := prometheus.Labels{}
	for i := 0; i < len(labelPairs); i += 2 {
		labels[labelPairs[i]] = labelPairs[i+1]
	}
	counter, err := cv.GetMetricWith(labels)
	if err != nil {
		t.Fatalf("failed to get metric: %v", err)
	}
	var metric dto.Metric
	if err := counter.Write(&metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	return metric.GetCounter().GetValue()
}
