package api

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/yuin/goldmark"

	"github.com/MikeSquared-Agency/scribe/internal/notion"
	"github.com/MikeSquared-Agency/scribe/internal/store"
)

// sessionID parses the {id} URL parameter, writing a 400 when it is not a UUID.
func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]uuid.UUID{"id": sess.ID})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]store.Session{"sessions": sessions})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sess, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	msgs, err := s.sessions.Messages(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]store.Message{"messages": msgs})
}

type summaryResponse struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sum, err := s.sessions.Summarize(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{Title: sum.Title, Markdown: sum.Markdown})
}

const summaryPage = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>%s</title></head>
<body>
%s</body>
</html>
`

// summaryHTML renders the stored summary. It never triggers summarization.
func (s *Server) summaryHTML(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	sum, err := s.sessions.StoredSummary(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var body bytes.Buffer
	if err := goldmark.Convert([]byte(sum.Markdown), &body); err != nil {
		s.writeError(w, r, fmt.Errorf("render summary: %w", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, summaryPage, html.EscapeString(sum.Title), body.String())
}

type notionResponse struct {
	PageID      string `json:"page_id"`
	URL         string `json:"url"`
	Error       string `json:"error,omitempty"`
	FailedBatch int    `json:"failed_batch,omitempty"`
}

func (s *Server) publishNotion(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	page, err := s.sessions.Publish(r.Context(), id)

	var partial *notion.PartialPublishError
	switch {
	case errors.As(err, &partial):
		writeJSON(w, http.StatusBadGateway, notionResponse{
			PageID:      partial.PageID,
			URL:         partial.URL,
			Error:       err.Error(),
			FailedBatch: partial.Batch,
		})
	case err != nil:
		s.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, notionResponse{PageID: page.ID, URL: page.URL})
	}
}
