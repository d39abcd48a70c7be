package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

func (s *Store) CreateSession(ctx context.Context) (*Session, error) {
	sess := Session{ID: uuid.New()}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (id) VALUES ($1)
		RETURNING created_at`,
		sess.ID,
	).Scan(&sess.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}
	return &sess, nil
}

func (s *Store) GetSession(ctx context.Context, id uuid.UUID) (*Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, `
		SELECT id, COALESCE(title, ''), created_at
		FROM sessions WHERE id = $1`,
		id,
	).Scan(&sess.ID, &sess.Title, &sess.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &sess, nil
}

// ListSessions returns sessions newest first.
func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, COALESCE(title, ''), created_at
		FROM sessions
		ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := []Session{}
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SetSessionTitleIfEmpty sets the title only when none is stored yet.
// It reports whether the row was updated.
func (s *Store) SetSessionTitleIfEmpty(ctx context.Context, id uuid.UUID, title string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE sessions SET title = $2
		WHERE id = $1 AND (title IS NULL OR title = '')`,
		id, title,
	)
	if err != nil {
		return false, fmt.Errorf("update session title: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// DeleteSession removes a session with its messages and summary.
func (s *Store) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
