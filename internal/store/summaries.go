package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Summary struct {
	SessionID uuid.UUID `json:"session_id"`
	Title     string    `json:"title"`
	Markdown  string    `json:"markdown"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) GetSummary(ctx context.Context, sessionID uuid.UUID) (*Summary, error) {
	var sum Summary
	err := s.pool.QueryRow(ctx, `
		SELECT session_id, title, markdown, created_at
		FROM summaries WHERE session_id = $1`,
		sessionID,
	).Scan(&sum.SessionID, &sum.Title, &sum.Markdown, &sum.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &sum, nil
}

// CreateSummary stores the summary for a session. A session has at most one
// summary; when one already exists it is kept and returned instead.
func (s *Store) CreateSummary(ctx context.Context, sessionID uuid.UUID, title, markdown string) (*Summary, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO summaries (session_id, title, markdown)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id) DO NOTHING`,
		sessionID, title, markdown,
	)
	if err != nil {
		return nil, fmt.Errorf("insert summary: %w", err)
	}
	return s.GetSummary(ctx, sessionID)
}
