package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/MikeSquared-Agency/scribe/internal/metrics"
)

const maxSSELine = 1 << 20

// Stream yields text deltas from a streaming chat completion.
type Stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	logger  *slog.Logger
	metrics *metrics.Metrics
	start   time.Time
	status  string
	closed  bool
}

// Stream starts a streaming completion. The caller must Close the returned stream.
// Cancelling ctx aborts the underlying HTTP request.
func (c *Client) Stream(ctx context.Context, messages []Message, p Params) (*Stream, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(c.request(messages, p, true))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveLLM("stream", "error", time.Since(start))
		return nil, fmt.Errorf("%w: stream request: %w", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.metrics.ObserveLLM("stream", "error", time.Since(start))
		return nil, fmt.Errorf("%w: api error %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxSSELine)

	return &Stream{
		body:    resp.Body,
		scanner: scanner,
		logger:  c.logger,
		metrics: c.metrics,
		start:   start,
		status:  "aborted",
	}, nil
}

// Recv returns the next non-empty text delta, or io.EOF once the stream is done.
// Fragments that fail to decode are logged and skipped.
func (s *Stream) Recv() (string, error) {
	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			s.status = "ok"
			return "", io.EOF
		}

		var chunk openai.ChatCompletionStreamResponse
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			s.logger.Warn("skipping malformed stream fragment", "data", data, "error", err)
			continue
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}

	if err := s.scanner.Err(); err != nil {
		s.status = "error"
		return "", fmt.Errorf("%w: read stream: %w", ErrUpstream, err)
	}
	s.status = "ok"
	return "", io.EOF
}

func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.metrics.ObserveLLM("stream", s.status, time.Since(s.start))
	return s.body.Close()
}
