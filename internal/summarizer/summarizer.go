// Package summarizer turns a session's message history into a titled markdown
// summary with fixed TL;DR, Key Points, Action Items and Notes sections.
//
// Short histories are summarized in one pass. Longer ones are split into
// token-bounded chunks, each chunk is summarized independently, and a final
// combine call merges the chunk summaries into the sectioned document. The
// section layout is requested from the model, not validated here.
package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/scribe/internal/llm"
	"github.com/MikeSquared-Agency/scribe/internal/metrics"
	"github.com/MikeSquared-Agency/scribe/internal/tokens"
)

// SingleChunkMaxMessages is the largest history summarized without chunking.
const SingleChunkMaxMessages = 10

const DefaultChunkTokens = 3000

// Completer is the slice of the completion client the summarizer needs.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, p llm.Params) (string, error)
}

type Options struct {
	Params      llm.Params
	ChunkTokens int
	// Concurrency bounds parallel chunk summaries. Values below 2 run sequentially.
	Concurrency int
}

// Summary is the result of one summarization run.
type Summary struct {
	Title    string
	Markdown string
}

type Summarizer struct {
	llm     Completer
	tokens  tokens.Estimator
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(c Completer, est tokens.Estimator, opts Options, m *metrics.Metrics, logger *slog.Logger) *Summarizer {
	if opts.ChunkTokens <= 0 {
		opts.ChunkTokens = DefaultChunkTokens
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Summarizer{llm: c, tokens: est, opts: opts, metrics: m, logger: logger}
}

// Summarize produces the title and markdown for msgs. Every call issues fresh
// completion requests; callers that want one summary per session must check
// for a stored summary first.
func (s *Summarizer) Summarize(ctx context.Context, msgs []llm.Message) (Summary, error) {
	if len(msgs) == 0 {
		return Summary{Title: EmptySessionTitle, Markdown: EmptySessionMarkdown}, nil
	}

	provisional := TitleFromMessages(msgs)

	var chunks [][]llm.Message
	if len(msgs) <= SingleChunkMaxMessages {
		chunks = [][]llm.Message{msgs}
	} else {
		for _, c := range ChunkMessages(s.tokens, msgs, s.opts.ChunkTokens) {
			chunks = append(chunks, c.Messages)
		}
	}
	s.metrics.ObserveChunks(len(chunks))

	s.logger.Info("summarizing session",
		"messages", len(msgs),
		"chunks", len(chunks),
		"concurrency", s.opts.Concurrency,
	)

	summaries, err := s.summarizeChunks(ctx, chunks)
	if err != nil {
		return Summary{}, err
	}

	markdown, err := s.Combine(ctx, summaries, provisional)
	if err != nil {
		return Summary{}, err
	}

	title := provisional
	if extracted, ok := headingTitle(markdown); ok {
		title = extracted
	}

	s.logger.Info("summary complete",
		"title", title,
		"markdown_len", len(markdown),
	)
	return Summary{Title: title, Markdown: markdown}, nil
}

// summarizeChunks runs SummarizeChunk per chunk with bounded parallelism.
// Results are written by index, so output order matches chunk order.
func (s *Summarizer) summarizeChunks(ctx context.Context, chunks [][]llm.Message) ([]string, error) {
	results := make([]string, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			summary, err := s.SummarizeChunk(gctx, FormatChunk(chunk))
			if err != nil {
				return fmt.Errorf("summarize chunk %d: %w", i, err)
			}
			results[i] = summary
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SummarizeChunk asks for a free-text summary of one formatted chunk and
// returns the completion verbatim.
func (s *Summarizer) SummarizeChunk(ctx context.Context, chunkText string) (string, error) {
	prompt := fmt.Sprintf(chunkPrompt, chunkText)
	return s.llm.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, s.opts.Params)
}

// Combine merges chunk summaries into the final sectioned markdown document
// and returns the completion verbatim.
func (s *Summarizer) Combine(ctx context.Context, summaries []string, titleHint string) (string, error) {
	prompt := fmt.Sprintf(combinePrompt, titleHint, strings.Join(summaries, summarySeparator))
	markdown, err := s.llm.Complete(ctx, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, s.opts.Params)
	if err != nil {
		return "", fmt.Errorf("combine summaries: %w", err)
	}
	return markdown, nil
}
