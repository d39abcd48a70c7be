package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/llm"
	"github.com/MikeSquared-Agency/scribe/internal/notion"
	"github.com/MikeSquared-Agency/scribe/internal/store"
	"github.com/MikeSquared-Agency/scribe/internal/summarizer"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*store.Session
	messages  map[uuid.UUID][]store.Message
	summaries map[uuid.UUID]*store.Summary
}

func newMemStore() *memStore {
	return &memStore{
		sessions:  map[uuid.UUID]*store.Session{},
		messages:  map[uuid.UUID][]store.Message{},
		summaries: map[uuid.UUID]*store.Summary{},
	}
}

func (m *memStore) CreateSession(_ context.Context) (*store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &store.Session{ID: uuid.New(), CreatedAt: time.Now()}
	m.sessions[s.ID] = s
	cp := *s
	return &cp, nil
}

func (m *memStore) GetSession(_ context.Context, id uuid.UUID) (*store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSessions(_ context.Context) ([]store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.Session{}
	for _, s := range m.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.sessions, id)
	delete(m.messages, id)
	delete(m.summaries, id)
	return nil
}

func (m *memStore) SetSessionTitleIfEmpty(_ context.Context, id uuid.UUID, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Title != "" {
		return false, nil
	}
	s.Title = title
	return true, nil
}

func (m *memStore) ListMessages(_ context.Context, sessionID uuid.UUID) ([]store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]store.Message(nil), m.messages[sessionID]...), nil
}

func (m *memStore) GetSummary(_ context.Context, sessionID uuid.UUID) (*store.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.summaries[sessionID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) CreateSummary(_ context.Context, sessionID uuid.UUID, title, markdown string) (*store.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.summaries[sessionID]; !ok {
		m.summaries[sessionID] = &store.Summary{SessionID: sessionID, Title: title, Markdown: markdown, CreatedAt: time.Now()}
	}
	cp := *m.summaries[sessionID]
	return &cp, nil
}

func (m *memStore) seed(t *testing.T, contents ...string) uuid.UUID {
	t.Helper()
	sess, _ := m.CreateSession(context.Background())
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range contents {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		m.messages[sess.ID] = append(m.messages[sess.ID], store.Message{ID: uuid.New(), SessionID: sess.ID, Role: role, Content: c})
	}
	return sess.ID
}

type fakeSummarizer struct {
	calls atomic.Int32
	got   []llm.Message
	err   error
	delay time.Duration
}

func (f *fakeSummarizer) Summarize(_ context.Context, msgs []llm.Message) (summarizer.Summary, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	if f.err != nil {
		return summarizer.Summary{}, f.err
	}
	f.got = msgs
	return summarizer.Summary{Title: "Generated Title", Markdown: "# Generated Title\n\n## TL;DR\n- ok"}, nil
}

type fakePublisher struct {
	configured bool
	page       notion.Page
	err        error
	validErr   error
	titles     []string
}

func (f *fakePublisher) Configured() bool { return f.configured }

func (f *fakePublisher) Publish(_ context.Context, title, _ string) (notion.Page, error) {
	f.titles = append(f.titles, title)
	return f.page, f.err
}

func (f *fakePublisher) Validate(context.Context) error { return f.validErr }

type event struct {
	subject string
	data    any
}

type fakeEvents struct {
	mu     sync.Mutex
	events []event
}

func (f *fakeEvents) Publish(subject string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event{subject, data})
	return nil
}

func (f *fakeEvents) subjects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.subject)
	}
	return out
}

func TestSummarize_CreatesAndStores(t *testing.T) {
	db := newMemStore()
	id := db.seed(t, "Question", "Answer")
	sum := &fakeSummarizer{}
	events := &fakeEvents{}
	svc := NewService(db, sum, nil, events, discardLogger())

	got, err := svc.Summarize(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Generated Title" {
		t.Errorf("expected generated title, got %q", got.Title)
	}
	if len(sum.got) != 2 || sum.got[0].Role != llm.RoleUser || sum.got[1].Content != "Answer" {
		t.Errorf("unexpected summarizer input %+v", sum.got)
	}

	sess, _ := db.GetSession(context.Background(), id)
	if sess.Title != "Generated Title" {
		t.Errorf("expected session title set, got %q", sess.Title)
	}

	subjects := events.subjects()
	if len(subjects) != 1 || subjects[0] != hermes.SubjectSummaryCreated {
		t.Errorf("expected summary.created event, got %v", subjects)
	}
}

func TestSummarize_ReturnsExistingWithoutRegenerating(t *testing.T) {
	db := newMemStore()
	id := db.seed(t, "Question")
	db.CreateSummary(context.Background(), id, "Stored", "# Stored")
	sum := &fakeSummarizer{}
	svc := NewService(db, sum, nil, nil, discardLogger())

	got, err := svc.Summarize(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Title != "Stored" {
		t.Errorf("expected stored summary, got %q", got.Title)
	}
	if sum.calls.Load() != 0 {
		t.Errorf("expected no summarizer calls, got %d", sum.calls.Load())
	}
}

func TestSummarize_NoMessages(t *testing.T) {
	db := newMemStore()
	id := db.seed(t)
	svc := NewService(db, &fakeSummarizer{}, nil, nil, discardLogger())

	if _, err := svc.Summarize(context.Background(), id); !errors.Is(err, ErrNoMessages) {
		t.Errorf("expected ErrNoMessages, got %v", err)
	}
}

func TestSummarize_SessionNotFound(t *testing.T) {
	svc := NewService(newMemStore(), &fakeSummarizer{}, nil, nil, discardLogger())

	if _, err := svc.Summarize(context.Background(), uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSummarize_UpstreamFailureStoresNothing(t *testing.T) {
	db := newMemStore()
	id := db.seed(t, "Question")
	sum := &fakeSummarizer{err: fmt.Errorf("%w: api error 503", llm.ErrUpstream)}
	events := &fakeEvents{}
	svc := NewService(db, sum, nil, events, discardLogger())

	_, err := svc.Summarize(context.Background(), id)
	if !errors.Is(err, llm.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if _, err := db.GetSummary(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected no stored summary, got %v", err)
	}
	if len(events.subjects()) != 0 {
		t.Errorf("expected no events, got %v", events.subjects())
	}
}

func TestSummarize_ConcurrentCallsShareOneRun(t *testing.T) {
	db := newMemStore()
	id := db.seed(t, "Question")
	sum := &fakeSummarizer{delay: 50 * time.Millisecond}
	svc := NewService(db, sum, nil, nil, discardLogger())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Summarize(context.Background(), id); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := sum.calls.Load(); n != 1 {
		t.Errorf("expected 1 summarizer run, got %d", n)
	}
}

func TestPublish_NotConfigured(t *testing.T) {
	db := newMemStore()
	id := db.seed(t, "Question")

	for _, pub := range []Publisher{nil, &fakePublisher{configured: false}} {
		svc := NewService(db, &fakeSummarizer{}, pub, nil, discardLogger())
		if _, err := svc.Publish(context.Background(), id); !errors.Is(err, notion.ErrNotConfigured) {
			t.Errorf("expected ErrNotConfigured, got %v", err)
		}
	}
}

func TestPublish_SummarizesThenUploads(t *testing.T) {
	db := newMemStore()
	id := db.seed(t, "Question", "Answer")
	pub := &fakePublisher{configured: true, page: notion.Page{ID: "page-1", URL: "https://notion.so/page-1"}}
	events := &fakeEvents{}
	svc := NewService(db, &fakeSummarizer{}, pub, events, discardLogger())

	page, err := svc.Publish(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.ID != "page-1" {
		t.Errorf("expected page-1, got %+v", page)
	}
	if len(pub.titles) != 1 || pub.titles[0] != "Generated Title" {
		t.Errorf("expected publish with summary title, got %v", pub.titles)
	}

	subjects := events.subjects()
	if len(subjects) != 2 || subjects[0] != hermes.SubjectSummaryCreated || subjects[1] != hermes.SubjectSummaryPublished {
		t.Errorf("unexpected events %v", subjects)
	}
}

func TestPublish_PartialFailure(t *testing.T) {
	db := newMemStore()
	id := db.seed(t, "Question")
	partial := &notion.PartialPublishError{PageID: "page-9", URL: "https://notion.so/page-9", Batch: 2, Err: errors.New("502")}
	pub := &fakePublisher{configured: true, page: notion.Page{ID: "page-9", URL: "https://notion.so/page-9"}, err: partial}
	events := &fakeEvents{}
	svc := NewService(db, &fakeSummarizer{}, pub, events, discardLogger())

	page, err := svc.Publish(context.Background(), id)

	var got *notion.PartialPublishError
	if !errors.As(err, &got) || got.Batch != 2 {
		t.Fatalf("expected PartialPublishError batch 2, got %v", err)
	}
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("expected ErrPublishFailed, got %v", err)
	}
	if page.ID != "page-9" {
		t.Errorf("expected created page returned, got %+v", page)
	}

	events.mu.Lock()
	last := events.events[len(events.events)-1]
	events.mu.Unlock()
	if last.subject != hermes.SubjectSummaryPublishFailed {
		t.Fatalf("expected publish_failed event, got %s", last.subject)
	}
	evt := last.data.(hermes.SummaryPublishFailed)
	if evt.PageID != "page-9" || evt.FailedBatch != 2 {
		t.Errorf("expected page and batch in event, got %+v", evt)
	}
}

func TestNotionHealthy(t *testing.T) {
	svc := NewService(newMemStore(), &fakeSummarizer{}, &fakePublisher{configured: true}, nil, discardLogger())
	if !svc.NotionHealthy(context.Background()) {
		t.Error("expected healthy")
	}

	svc = NewService(newMemStore(), &fakeSummarizer{}, &fakePublisher{configured: true, validErr: errors.New("401")}, nil, discardLogger())
	if svc.NotionHealthy(context.Background()) {
		t.Error("expected unhealthy on validation error")
	}

	svc = NewService(newMemStore(), &fakeSummarizer{}, nil, nil, discardLogger())
	if svc.NotionHealthy(context.Background()) {
		t.Error("expected unhealthy when unconfigured")
	}
}

func TestMessages_SessionNotFound(t *testing.T) {
	svc := NewService(newMemStore(), &fakeSummarizer{}, nil, nil, discardLogger())
	if _, err := svc.Messages(context.Background(), uuid.New()); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	db := newMemStore()
	id := db.seed(t, "Question")
	svc := NewService(db, &fakeSummarizer{}, nil, nil, discardLogger())

	if err := svc.Delete(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Get(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected session gone, got %v", err)
	}
	if err := svc.Delete(context.Background(), id); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
