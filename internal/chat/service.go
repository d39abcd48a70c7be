// Package chat runs one conversational turn: it stores the user's message,
// streams the model's reply to the caller and stores the reply once complete.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/llm"
	"github.com/MikeSquared-Agency/scribe/internal/metrics"
	"github.com/MikeSquared-Agency/scribe/internal/store"
	"github.com/MikeSquared-Agency/scribe/internal/summarizer"
	"github.com/MikeSquared-Agency/scribe/internal/tokens"
)

var (
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrMessageTooLarge means the message alone exceeds the context budget.
	ErrMessageTooLarge = errors.New("message exceeds context budget")
)

// Store is the persistence the chat turn needs.
type Store interface {
	GetSession(ctx context.Context, id uuid.UUID) (*store.Session, error)
	SetSessionTitleIfEmpty(ctx context.Context, id uuid.UUID, title string) (bool, error)
	AddMessage(ctx context.Context, sessionID uuid.UUID, role, content string) (*store.Message, error)
	ListMessages(ctx context.Context, sessionID uuid.UUID) ([]store.Message, error)
}

// Stream yields text deltas until io.EOF.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type Streamer interface {
	Stream(ctx context.Context, messages []llm.Message, p llm.Params) (Stream, error)
}

// LLMStreamer adapts *llm.Client to Streamer.
type LLMStreamer struct {
	Client *llm.Client
}

func (s LLMStreamer) Stream(ctx context.Context, messages []llm.Message, p llm.Params) (Stream, error) {
	st, err := s.Client.Stream(ctx, messages, p)
	if err != nil {
		return nil, err
	}
	return st, nil
}

type Options struct {
	Params           llm.Params
	MaxContextTokens int
}

type Service struct {
	store   Store
	llm     Streamer
	tokens  tokens.Estimator
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewService(s Store, st Streamer, est tokens.Estimator, opts Options, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{store: s, llm: st, tokens: est, opts: opts, metrics: m, logger: logger}
}

// Reply appends text to the session, streams the assistant's answer through
// emit and stores the full answer after the stream ends. If the stream fails,
// ctx is cancelled or emit returns an error, the upstream call is aborted and
// no assistant message is stored.
func (s *Service) Reply(ctx context.Context, sessionID uuid.UUID, text string, emit func(delta string) error) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if s.tokens.Count(text) > s.opts.MaxContextTokens {
		return ErrMessageTooLarge
	}

	if _, err := s.store.AddMessage(ctx, sessionID, llm.RoleUser, text); err != nil {
		return fmt.Errorf("store user message: %w", err)
	}
	if sess.Title == "" {
		if _, err := s.store.SetSessionTitleIfEmpty(ctx, sessionID, summarizer.TitleFromText(text)); err != nil {
			s.logger.Warn("failed to set session title", "session_id", sessionID, "error", err)
		}
	}

	history, err := s.store.ListMessages(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	msgs := tokens.TrimToBudget(s.tokens, ToLLM(history), s.opts.MaxContextTokens)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := s.metrics.StreamStarted()
	defer done()

	stream, err := s.llm.Stream(ctx, msgs, s.opts.Params)
	if err != nil {
		return err
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("chat stream failed", "session_id", sessionID, "received", reply.Len(), "error", err)
			return err
		}
		reply.WriteString(delta)
		if err := emit(delta); err != nil {
			s.logger.Info("client went away mid-stream", "session_id", sessionID, "error", err)
			return fmt.Errorf("emit delta: %w", err)
		}
	}

	if _, err := s.store.AddMessage(ctx, sessionID, llm.RoleAssistant, reply.String()); err != nil {
		return fmt.Errorf("store assistant message: %w", err)
	}

	s.logger.Info("chat turn complete",
		"session_id", sessionID,
		"context_messages", len(msgs),
		"history_messages", len(history),
		"reply_len", reply.Len(),
	)
	return nil
}

// ToLLM converts stored messages into completion-request turns.
func ToLLM(msgs []store.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
