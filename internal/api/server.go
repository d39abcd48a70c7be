package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/scribe/internal/metrics"
	"github.com/MikeSquared-Agency/scribe/internal/notion"
	"github.com/MikeSquared-Agency/scribe/internal/store"
)

// Sessions is the session service behind the /api/sessions routes.
type Sessions interface {
	Create(ctx context.Context) (*store.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*store.Session, error)
	List(ctx context.Context) ([]store.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Messages(ctx context.Context, id uuid.UUID) ([]store.Message, error)
	StoredSummary(ctx context.Context, id uuid.UUID) (*store.Summary, error)
	Summarize(ctx context.Context, id uuid.UUID) (*store.Summary, error)
	Publish(ctx context.Context, id uuid.UUID) (notion.Page, error)
	NotionHealthy(ctx context.Context) bool
}

type Chat interface {
	Reply(ctx context.Context, sessionID uuid.UUID, text string, emit func(delta string) error) error
}

type Server struct {
	router   *chi.Mux
	port     int
	sessions Sessions
	chat     Chat
	logger   *slog.Logger
	httpSrv  *http.Server
}

func NewServer(port int, corsOrigins []string, sessions Sessions, chat Chat, m *metrics.Metrics, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors(corsOrigins))

	s := &Server{
		router:   router,
		port:     port,
		sessions: sessions,
		chat:     chat,
		logger:   logger,
	}

	router.Get("/health", s.health)
	router.Method(http.MethodGet, "/metrics", m.Handler())

	router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.health)
		r.Post("/chat", s.streamChat)
		r.Get("/notion/health", s.notionHealth)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.createSession)
			r.Get("/", s.listSessions)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getSession)
				r.Delete("/", s.deleteSession)
				r.Get("/messages", s.listMessages)
				r.Post("/summarize", s.summarize)
				r.Get("/summary.html", s.summaryHTML)
				r.Post("/notion", s.publishNotion)
			})
		})
	})

	return s
}

// Handler exposes the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) notionHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": s.sessions.NotionHealthy(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
