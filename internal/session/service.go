// Package session owns the session-level operations behind the API: CRUD over
// sessions and messages, producing the one stored summary per session, and
// publishing that summary to Notion.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/MikeSquared-Agency/scribe/internal/chat"
	"github.com/MikeSquared-Agency/scribe/internal/hermes"
	"github.com/MikeSquared-Agency/scribe/internal/llm"
	"github.com/MikeSquared-Agency/scribe/internal/notion"
	"github.com/MikeSquared-Agency/scribe/internal/store"
	"github.com/MikeSquared-Agency/scribe/internal/summarizer"
)

var (
	// ErrNoMessages is returned when summarizing a session with no messages.
	ErrNoMessages = errors.New("session has no messages")
	// ErrPublishFailed wraps every failure of the Notion upload itself.
	ErrPublishFailed = errors.New("publish to notion failed")
)

type Store interface {
	CreateSession(ctx context.Context) (*store.Session, error)
	GetSession(ctx context.Context, id uuid.UUID) (*store.Session, error)
	ListSessions(ctx context.Context) ([]store.Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	SetSessionTitleIfEmpty(ctx context.Context, id uuid.UUID, title string) (bool, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]store.Message, error)
	GetSummary(ctx context.Context, sessionID uuid.UUID) (*store.Summary, error)
	CreateSummary(ctx context.Context, sessionID uuid.UUID, title, markdown string) (*store.Summary, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, msgs []llm.Message) (summarizer.Summary, error)
}

// Publisher uploads a summary as a Notion page.
type Publisher interface {
	Configured() bool
	Publish(ctx context.Context, title, markdown string) (notion.Page, error)
	Validate(ctx context.Context) error
}

// Events receives domain events. A nil *hermes.Client is a valid Events.
type Events interface {
	Publish(subject string, data any) error
}

type Service struct {
	store      Store
	summarizer Summarizer
	publisher  Publisher
	events     Events
	logger     *slog.Logger

	flight singleflight.Group
}

func NewService(s Store, sum Summarizer, pub Publisher, events Events, logger *slog.Logger) *Service {
	return &Service{store: s, summarizer: sum, publisher: pub, events: events, logger: logger}
}

func (s *Service) Create(ctx context.Context) (*store.Session, error) {
	sess, err := s.store.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("session created", "session_id", sess.ID)
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*store.Session, error) {
	return s.store.GetSession(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]store.Session, error) {
	return s.store.ListSessions(ctx)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.DeleteSession(ctx, id); err != nil {
		return err
	}
	s.logger.Info("session deleted", "session_id", id)
	return nil
}

// Messages returns the session's messages oldest first.
func (s *Service) Messages(ctx context.Context, id uuid.UUID) ([]store.Message, error) {
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, id)
}

// StoredSummary returns the summary if one has been produced.
func (s *Service) StoredSummary(ctx context.Context, id uuid.UUID) (*store.Summary, error) {
	return s.store.GetSummary(ctx, id)
}

// Summarize returns the session's summary, producing and storing it on first
// use. Later calls return the stored summary even if messages were added since.
// Concurrent calls for one session share a single run, which completes even if
// the caller that started it goes away.
func (s *Service) Summarize(ctx context.Context, id uuid.UUID) (*store.Summary, error) {
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return nil, err
	}

	existing, err := s.store.GetSummary(ctx, id)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("get summary: %w", err)
	}

	v, err, _ := s.flight.Do(id.String(), func() (any, error) {
		return s.summarize(context.WithoutCancel(ctx), id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*store.Summary), nil
}

func (s *Service) summarize(ctx context.Context, id uuid.UUID) (*store.Summary, error) {
	msgs, err := s.store.ListMessages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	if len(msgs) == 0 {
		return nil, ErrNoMessages
	}

	start := time.Now()
	result, err := s.summarizer.Summarize(ctx, chat.ToLLM(msgs))
	if err != nil {
		s.logger.Error("summarization failed", "session_id", id, "error", err)
		return nil, fmt.Errorf("summarize session: %w", err)
	}

	stored, err := s.store.CreateSummary(ctx, id, result.Title, result.Markdown)
	if err != nil {
		return nil, fmt.Errorf("store summary: %w", err)
	}
	if _, err := s.store.SetSessionTitleIfEmpty(ctx, id, stored.Title); err != nil {
		s.logger.Warn("failed to set session title", "session_id", id, "error", err)
	}

	s.logger.Info("summary stored",
		"session_id", id,
		"title", stored.Title,
		"messages", len(msgs),
		"duration", time.Since(start),
	)

	s.emit(hermes.SubjectSummaryCreated, hermes.SummaryCreated{
		SessionID: id.String(),
		Title:     stored.Title,
		Messages:  len(msgs),
		Timestamp: time.Now().UTC(),
	})
	return stored, nil
}

// Publish uploads the session's summary to Notion, summarizing first if needed.
// A *notion.PartialPublishError is returned together with the created page.
func (s *Service) Publish(ctx context.Context, id uuid.UUID) (notion.Page, error) {
	if s.publisher == nil || !s.publisher.Configured() {
		return notion.Page{}, notion.ErrNotConfigured
	}

	sum, err := s.Summarize(ctx, id)
	if err != nil {
		return notion.Page{}, err
	}

	page, err := s.publisher.Publish(ctx, sum.Title, sum.Markdown)
	if err != nil {
		evt := hermes.SummaryPublishFailed{
			SessionID: id.String(),
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		}
		var partial *notion.PartialPublishError
		if errors.As(err, &partial) {
			evt.PageID = partial.PageID
			evt.URL = partial.URL
			evt.FailedBatch = partial.Batch
		}
		s.emit(hermes.SubjectSummaryPublishFailed, evt)
		return page, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	s.logger.Info("summary published", "session_id", id, "page_id", page.ID)
	s.emit(hermes.SubjectSummaryPublished, hermes.SummaryPublished{
		SessionID: id.String(),
		PageID:    page.ID,
		URL:       page.URL,
		Timestamp: time.Now().UTC(),
	})
	return page, nil
}

// NotionHealthy reports whether Notion is configured and the parent page is reachable.
func (s *Service) NotionHealthy(ctx context.Context) bool {
	if s.publisher == nil || !s.publisher.Configured() {
		return false
	}
	if err := s.publisher.Validate(ctx); err != nil {
		s.logger.Warn("notion validation failed", "error", err)
		return false
	}
	return true
}

func (s *Service) emit(subject string, data any) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, data); err != nil {
		s.logger.Warn("failed to publish event", "subject", subject, "error", err)
	}
}
