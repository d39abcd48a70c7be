package notion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWriter(url string) *Writer {
	w := NewWriter("secret_test", "parent-123", nil, discardLogger())
	w.apiURL = url
	return w
}

type recordedCall struct {
	Method   string
	Path     string
	Children []json.RawMessage
	Body     map[string]json.RawMessage
}

// fakeNotion records every call and fails the append whose 1-based index
// equals failAppend.
type fakeNotion struct {
	mu         sync.Mutex
	calls      []recordedCall
	failAppend int
	appends    int
}

func (f *fakeNotion) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret_test" {
			t.Errorf("expected Bearer secret_test, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Notion-Version") == "" {
			t.Error("expected Notion-Version header")
		}

		call := recordedCall{Method: r.Method, Path: r.URL.Path}
		if r.Body != nil {
			body, _ := io.ReadAll(r.Body)
			if len(body) > 0 {
				if err := json.Unmarshal(body, &call.Body); err != nil {
					t.Errorf("invalid request body: %v", err)
				}
				_ = json.Unmarshal(call.Body["children"], &call.Children)
			}
		}

		f.mu.Lock()
		f.calls = append(f.calls, call)
		f.mu.Unlock()

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/pages":
			json.NewEncoder(w).Encode(map[string]any{"id": "page-1", "url": "https://notion.so/page-1"})
		case r.Method == http.MethodPatch && strings.HasPrefix(r.URL.Path, "/blocks/"):
			f.mu.Lock()
			f.appends++
			n := f.appends
			f.mu.Unlock()
			if n == f.failAppend {
				w.WriteHeader(http.StatusBadGateway)
				w.Write([]byte(`{"object":"error","status":502,"code":"bad_gateway","message":"upstream hiccup"}`))
				return
			}
			w.Write([]byte(`{"object":"list","results":[]}`))
		case r.Method == http.MethodGet && r.URL.Path == "/pages/parent-123":
			w.Write([]byte(`{"object":"page","id":"parent-123"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"object":"error","status":404,"code":"object_not_found","message":"nope"}`))
		}
	})
}

func paragraphs(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	return strings.Join(lines, "\n")
}

func TestPublish_SmallDocument(t *testing.T) {
	fake := &fakeNotion{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	w := newTestWriter(server.URL)
	page, err := w.Publish(context.Background(), "Test Page", "# Test\n\nContent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if page.ID != "page-1" || page.URL != "https://notion.so/page-1" {
		t.Errorf("unexpected page %+v", page)
	}
	if len(fake.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fake.calls))
	}

	create := fake.calls[0]
	if len(create.Children) != 2 {
		t.Errorf("expected 2 children, got %d", len(create.Children))
	}
	if !strings.Contains(string(create.Body["parent"]), `"page_id":"parent-123"`) {
		t.Errorf("expected parent page_id, got %s", create.Body["parent"])
	}
	if !strings.Contains(string(create.Body["properties"]), `"content":"Test Page"`) {
		t.Errorf("expected title property, got %s", create.Body["properties"])
	}
}

func TestPublish_BatchesLargeDocument(t *testing.T) {
	fake := &fakeNotion{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	w := newTestWriter(server.URL)
	if _, err := w.Publish(context.Background(), "Big", paragraphs(250)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(fake.calls) != 3 {
		t.Fatalf("expected create + 2 appends, got %d calls", len(fake.calls))
	}
	if fake.calls[0].Method != http.MethodPost || len(fake.calls[0].Children) != 100 {
		t.Errorf("expected create with 100 children, got %s with %d", fake.calls[0].Method, len(fake.calls[0].Children))
	}
	for i, want := range []int{100, 50} {
		call := fake.calls[i+1]
		if call.Method != http.MethodPatch || call.Path != "/blocks/page-1/children" {
			t.Errorf("append %d: unexpected %s %s", i, call.Method, call.Path)
		}
		if len(call.Children) != want {
			t.Errorf("append %d: expected %d children, got %d", i, want, len(call.Children))
		}
	}

	// Order is preserved across batches.
	n := 0
	for _, call := range fake.calls {
		for _, raw := range call.Children {
			if !strings.Contains(string(raw), fmt.Sprintf(`"content":"line %d"`, n)) {
				t.Fatalf("expected line %d, got %s", n, raw)
			}
			n++
		}
	}
	if n != 250 {
		t.Errorf("expected 250 blocks uploaded, got %d", n)
	}
}

func TestPublish_PartialFailure(t *testing.T) {
	fake := &fakeNotion{failAppend: 2}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	w := newTestWriter(server.URL)
	page, err := w.Publish(context.Background(), "Big", paragraphs(350))

	var partial *PartialPublishError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialPublishError, got %v", err)
	}
	if partial.PageID != "page-1" || partial.URL != "https://notion.so/page-1" {
		t.Errorf("unexpected page in error: %+v", partial)
	}
	if partial.Batch != 2 {
		t.Errorf("expected failed batch 2, got %d", partial.Batch)
	}
	if page.ID != "page-1" {
		t.Errorf("expected created page to be returned, got %+v", page)
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusBadGateway {
		t.Errorf("expected wrapped APIError 502, got %v", err)
	}
	if len(fake.calls) != 3 {
		t.Errorf("expected no calls after the failed append, got %d calls", len(fake.calls))
	}
}

func TestPublish_CreateFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`))
	}))
	defer server.Close()

	w := newTestWriter(server.URL)
	_, err := w.Publish(context.Background(), "T", "# T")
	if err == nil {
		t.Fatal("expected error")
	}

	var partial *PartialPublishError
	if errors.As(err, &partial) {
		t.Error("create failure should not be reported as partial")
	}
	if !strings.Contains(err.Error(), "API token is invalid.") {
		t.Errorf("expected notion message in error, got %v", err)
	}
}

func TestPublish_NotConfigured(t *testing.T) {
	w := NewWriter("", "parent", nil, discardLogger())
	if _, err := w.Publish(context.Background(), "T", "# T"); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}

	var nilWriter *Writer
	if nilWriter.Configured() {
		t.Error("nil writer should not be configured")
	}
}

func TestCreatePage_RejectsOversizedBatch(t *testing.T) {
	w := newTestWriter("http://127.0.0.1:0")
	if _, err := w.CreatePage(context.Background(), "T", make([]Block, 101)); err == nil {
		t.Error("expected error for 101 children")
	}
	if err := w.AppendBlocks(context.Background(), "page", make([]Block, 101)); err == nil {
		t.Error("expected error for 101 children")
	}
}

func TestValidate(t *testing.T) {
	fake := &fakeNotion{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	w := newTestWriter(server.URL)
	if err := w.Validate(context.Background()); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}

	w.parentPageID = "missing"
	err := w.Validate(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "object_not_found" {
		t.Errorf("expected object_not_found, got %v", err)
	}
}
