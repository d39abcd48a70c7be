package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	m.ObserveLLM("complete", "ok", time.Second)
	m.ObserveChunks(3)
	m.NotionBatch("ok")
	m.StreamStarted()()
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(nil)
	m.ObserveLLM("complete", "ok", 250*time.Millisecond)
	m.NotionBatch("error")
	done := m.StreamStarted()
	defer done()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, req)

	body, _ := io.ReadAll(w.Body)
	text := string(body)

	checks := []string{
		`scribe_llm_requests_total{kind="complete",status="ok"} 1`,
		`scribe_notion_batches_total{status="error"} 1`,
		`scribe_chat_streams_active 1`,
	}
	for _, check := range checks {
		if !strings.Contains(text, check) {
			t.Errorf("expected metrics output to contain %q", check)
		}
	}
}
