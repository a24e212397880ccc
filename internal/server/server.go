package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/yuin/goldmark"

	"github.com/jacob-sheng/iran-situation-room/internal/fusion"
	"github.com/jacob-sheng/iran-situation-room/internal/hotspot"
	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
	"github.com/jacob-sheng/iran-situation-room/internal/metrics"
	"github.com/jacob-sheng/iran-situation-room/internal/pipeline"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Runner is the part of the pipeline the server needs.
type Runner interface {
	State() fusion.State
	Hotspots() []hotspot.Hotspot
	Running() bool
	TryRun(ctx context.Context) (*pipeline.Result, error)
}

// Server is the HTTP server for the situation API and digest page.
type Server struct {
	runner Runner
	ctx    context.Context
	pages  map[string]*template.Template
	router chi.Router
	wg     sync.WaitGroup
}

type stateResponse struct {
	fusion.State
	Running bool `json:"running"`
}

// New creates a new Server. Refreshes started over HTTP run under ctx.
func New(ctx context.Context, runner Runner) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return "never"
			}
			return time.Since(t).Round(time.Second).String() + " ago"
		},
	}

	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	pageNames := []string{"index.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		if _, err := clone.ParseFS(templateFS, "templates/"+name); err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{runner: runner, ctx: ctx, pages: pages, router: chi.NewRouter()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Wait blocks until refreshes started over HTTP have finished.
func (s *Server) Wait() {
	s.wg.Wait()
}

func (s *Server) routes() {
	r := s.router
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)

	staticSub, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	r.Handle("/metrics", metrics.Handler())

	r.Get("/", s.handleIndex)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/news", s.handleNews)
		r.Get("/hotspots", s.handleHotspots)
		r.Post("/refresh", s.handleRefresh)
	})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	state := s.runner.State()
	hotspots := s.runner.Hotspots()
	s.render(w, "index.html", map[string]any{
		"State":    state,
		"Hotspots": hotspots,
		"Digest":   Digest(state, hotspots),
		"Running":  s.runner.Running(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, stateResponse{State: s.runner.State(), Running: s.runner.Running()})
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	news := s.runner.State().News
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		if limit < len(news) {
			news = news[:limit]
		}
	}
	if news == nil {
		news = []intel.NewsItem{}
	}
	writeJSON(w, http.StatusOK, news)
}

func (s *Server) handleHotspots(w http.ResponseWriter, r *http.Request) {
	hs := s.runner.Hotspots()
	if hs == nil {
		hs = []hotspot.Hotspot{}
	}
	writeJSON(w, http.StatusOK, hs)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.runner.Running() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": pipeline.ErrRunning.Error()})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := s.runner.TryRun(s.ctx)
		if errors.Is(err, pipeline.ErrRunning) {
			logging.Info().Msg("Refresh request skipped, another refresh is running")
			return
		}
		if err == nil {
			err = res.Err()
		}
		if err != nil {
			logging.Error().Err(err).Msg("Refresh failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		logging.Error().Str("template", name).Msg("Template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		logging.Error().Err(err).Str("template", name).Msg("Error rendering template")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("Failed to write JSON response")
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve runs the HTTP server on the given port until ctx is cancelled.
func Serve(ctx context.Context, runner Runner, port int) error {
	srv, err := New(ctx, runner)
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", "http://"+httpSrv.Addr).Msg("Server listening")
		errc <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = httpSrv.Shutdown(shutdownCtx)
	srv.Wait()
	if err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}
