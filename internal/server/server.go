package server

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/stockpulse/stockpulse/internal/analyze"
	"github.com/stockpulse/stockpulse/internal/collect"
	"github.com/stockpulse/stockpulse/internal/config"
	"github.com/stockpulse/stockpulse/internal/cooldown"
	"github.com/stockpulse/stockpulse/internal/database"
	"github.com/stockpulse/stockpulse/internal/enrich"
	"github.com/stockpulse/stockpulse/internal/jobs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

var md = goldmark.New()

// Deps are the wired components the server exposes.
type Deps struct {
	DB        *database.DB
	Gate      *cooldown.Gate
	Orch      *collect.Orchestrator
	Collector *collect.Collector
	Enricher  *enrich.Enricher
	Analyzer  *analyze.Analyzer
	Runner    *jobs.Runner
	Config    *config.Config
}

// Server is the HTTP server for the dashboard and the job API.
type Server struct {
	deps  Deps
	pages map[string]*template.Template
	mux   *http.ServeMux
}

// New creates a new Server.
func New(deps Deps) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
	}

	// Parse base template first
	base, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parsing base template: %w", err)
	}

	// For each page template, clone the base and parse the page into the clone.
	// This gives each page its own {{define "content"}} and {{define "title"}}.
	pageNames := []string{"index.html", "ticker.html"}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		clone, err := base.Clone()
		if err != nil {
			return nil, fmt.Errorf("cloning base for %s: %w", name, err)
		}
		_, err = clone.ParseFS(templateFS, "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", name, err)
		}
		pages[name] = clone
	}

	s := &Server{deps: deps, pages: pages, mux: http.NewServeMux()}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	// Static files
	staticSub, _ := fs.Sub(staticFS, "static")
	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))

	// Pages
	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/ticker/", s.handleTicker)

	// API
	s.mux.HandleFunc("/api/jobs/fetch", s.handleFetchJob)
	s.mux.HandleFunc("/api/jobs/analyze", s.handleAnalyzeJob)
	s.mux.HandleFunc("/api/jobs/", s.handleJobStatus)
	s.mux.HandleFunc("/api/jobs", s.handleJobs)
	s.mux.HandleFunc("/api/sources", s.handleSources)
	s.mux.HandleFunc("/api/tickers/", s.handleTickerSentiment)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	tickers, err := s.deps.DB.ListTickers()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	snapshots, _ := s.deps.DB.AllSentiments()
	byTicker := make(map[string]database.SentimentSnapshot, len(snapshots))
	for _, snap := range snapshots {
		byTicker[snap.Ticker] = snap
	}

	type row struct {
		Ticker   database.Ticker
		Snapshot *database.SentimentSnapshot
	}
	rows := make([]row, 0, len(tickers))
	for _, t := range tickers {
		entry := row{Ticker: t}
		if snap, ok := byTicker[t.Symbol]; ok {
			s := snap
			entry.Snapshot = &s
		}
		rows = append(rows, entry)
	}

	stats, _ := s.deps.DB.GetStats()
	s.render(w, "index.html", map[string]any{
		"Rows":    rows,
		"Stats":   stats,
		"Sources": s.deps.Orch.AvailableSources(),
	})
}

func (s *Server) handleTicker(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimPrefix(r.URL.Path, "/ticker/"))
	if symbol == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	ticker, err := s.deps.DB.GetTicker(symbol)
	if err != nil || ticker == nil {
		http.NotFound(w, r)
		return
	}

	snapshot, _ := s.deps.DB.GetSentiment(symbol)
	news, _ := s.deps.DB.GetNewsForTicker(symbol, 50)

	s.render(w, "ticker.html", map[string]any{
		"Ticker":   ticker,
		"Snapshot": snapshot,
		"News":     news,
	})
}

func (s *Server) handleFetchJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tickers, err := s.deps.DB.ActiveTickerSymbols()
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if len(tickers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "watchlist is empty",
		})
		return
	}

	hours := s.deps.Config.Fetch.DefaultHours
	err = s.deps.Runner.Trigger(context.Background(), jobs.JobFetchNews, func(ctx context.Context) (map[string]any, error) {
		to := time.Now().UTC()
		from := to.Add(-time.Duration(hours) * time.Hour)
		return s.deps.Collector.Collect(ctx, tickers, from, to, nil).Summary(), nil
	})
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job":    jobs.JobFetchNews,
		"status": string(jobs.StatusRunning),
	})
}

func (s *Server) handleAnalyzeJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	batch := s.deps.Config.Analyze.BatchSize
	err := s.deps.Runner.Trigger(context.Background(), jobs.JobAnalyzePending, func(ctx context.Context) (map[string]any, error) {
		s.deps.Enricher.EnrichPending(batch)
		result, err := s.deps.Analyzer.AnalyzePending(ctx, batch)
		if err != nil {
			return nil, err
		}
		return result.Summary(), nil
	})
	if err != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job":    jobs.JobAnalyzePending,
		"status": string(jobs.StatusRunning),
	})
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Runner.Tracker().All())
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		http.NotFound(w, r)
		return
	}
	state, known := s.deps.Runner.Tracker().Status(jobID)
	if !known {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": fmt.Sprintf("unknown job %q", jobID),
		})
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Orch.AvailableSources())
}

func (s *Server) handleTickerSentiment(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tickers/")
	symbol, op, ok := strings.Cut(rest, "/")
	if !ok || op != "sentiment" || symbol == "" {
		http.NotFound(w, r)
		return
	}
	symbol = strings.ToUpper(symbol)

	snapshot, err := s.deps.DB.GetSentiment(symbol)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if snapshot == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": fmt.Sprintf("no sentiment for %q", symbol),
		})
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	tmpl, ok := s.pages[name]
	if !ok {
		log.Printf("Template %s not found", name)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.ExecuteTemplate(w, "base.html", data); err != nil {
		log.Printf("Error rendering template %s: %v", name, err)
	}
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve starts the HTTP server on the given port.
func Serve(deps Deps, port int) error {
	srv, err := New(deps)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("Server listening on http://%s", addr)
	return http.ListenAndServe(addr, srv.Handler())
}
