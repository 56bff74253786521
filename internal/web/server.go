// Package web provides the HTTP dashboard for the note board.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yuin/goldmark"

	"github.com/madhatter5501/noteboard/internal/i18n"
	"github.com/madhatter5501/noteboard/internal/metrics"
	"github.com/madhatter5501/noteboard/kanban"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Options configures a Server.
type Options struct {
	// Language is used when a request expresses no supported preference.
	Language string
	// Metrics, when set, records commands and serves /metrics.
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Server is the dashboard web server.
type Server struct {
	board     *kanban.Board
	metrics   *metrics.Metrics
	language  string
	templates *template.Template
	logger    *slog.Logger
	server    *http.Server
	handler   http.Handler

	// SSE clients
	sseClients   map[chan sseEvent]bool
	sseMu        sync.RWMutex
	shutdownOnce sync.Once
	unsubscribe  func()

	// revision counts board changes seen since start.
	revision atomic.Uint64
}

// NewServer creates a dashboard server for board. Every board change is
// pushed to connected event streams.
func NewServer(board *kanban.Board, opts Options) (*Server, error) {
	// Parse templates
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/*.html", "templates/partials/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		board:      board,
		metrics:    opts.Metrics,
		language:   opts.Language,
		templates:  tmpl,
		logger:     logger,
		sseClients: make(map[chan sseEvent]bool),
	}
	s.handler = s.withLogging(s.routes())
	s.unsubscribe = board.Subscribe(s.broadcastBoard)
	return s, nil
}

// templateFuncs returns custom template functions.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		// Markdown rendering.
		"markdown": func(s string) template.HTML {
			var buf bytes.Buffer
			if err := goldmark.Convert([]byte(s), &buf); err != nil {
				return template.HTML(template.HTMLEscapeString(s)) //nolint:gosec // Explicitly escaped
			}
			return template.HTML(buf.String()) //nolint:gosec // goldmark omits raw HTML unless WithUnsafe is set
		},
	}
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Page routes
	mux.HandleFunc("GET /{$}", s.handleBoard)

	// API routes
	mux.HandleFunc("GET /api/board", s.apiGetBoard)
	mux.HandleFunc("POST /api/cards", s.apiCreateCard)
	mux.HandleFunc("GET /api/cards/{id}", s.apiGetCard)
	mux.HandleFunc("DELETE /api/columns/{column}/cards/{index}", s.apiRemoveCard)
	mux.HandleFunc("POST /api/cards/{id}/move", s.apiMoveCard)
	mux.HandleFunc("POST /api/cards/{id}/items", s.apiAddItem)
	mux.HandleFunc("DELETE /api/cards/{id}/items/{index}", s.apiRemoveItem)
	mux.HandleFunc("PATCH /api/cards/{id}/items/{index}", s.apiUpdateItem)

	// SSE endpoint for real-time updates
	mux.HandleFunc("GET /api/events", s.handleSSE)

	// Partials fetched by the page on board-update
	mux.HandleFunc("GET /partials/board", s.partialBoard)

	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return mux
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.handler,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: it would cut event streams.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("Starting dashboard server", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.unsubscribe()

		// Close all SSE clients
		s.sseMu.Lock()
		for ch := range s.sseClients {
			close(ch)
			delete(s.sseClients, ch)
		}
		s.sseMu.Unlock()
	})

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// withLogging wraps a handler with request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)

		s.logger.Debug("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", elapsed)
		if s.metrics != nil && r.Pattern != "" {
			s.metrics.ObserveRequest(r.Method, r.Pattern, elapsed)
		}
	})
}

// render executes a template.
func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.Error("Template error", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// localizer picks the message language for a request: the lang query
// parameter, then Accept-Language, then the configured default.
func (s *Server) localizer(r *http.Request) *i18n.Localizer {
	return i18n.For(r.URL.Query().Get("lang"), r.Header.Get("Accept-Language"), s.language)
}
