package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stockpulse/stockpulse/internal/analyze"
	"github.com/stockpulse/stockpulse/internal/classify"
	"github.com/stockpulse/stockpulse/internal/collect"
	"github.com/stockpulse/stockpulse/internal/config"
	"github.com/stockpulse/stockpulse/internal/cooldown"
	"github.com/stockpulse/stockpulse/internal/database"
	"github.com/stockpulse/stockpulse/internal/enrich"
	"github.com/stockpulse/stockpulse/internal/jobs"
	"github.com/stockpulse/stockpulse/internal/sentiment"
	"github.com/stockpulse/stockpulse/internal/sources"
)

func openTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func ptr(s string) *string { return &s }

func testDeps(t *testing.T) Deps {
	t.Helper()
	db := openTestDB(t)
	gate := cooldown.New()
	orch := collect.NewOrchestrator([]sources.Source{sources.NewRSS(nil)}, gate)
	agg := sentiment.New(db)
	return Deps{
		DB:        db,
		Gate:      gate,
		Orch:      orch,
		Collector: collect.NewCollector(db, orch),
		Enricher:  enrich.New(db, 0),
		Analyzer:  analyze.New(db, classify.New(nil, 512), agg),
		Runner:    jobs.NewRunner(jobs.NewTracker()),
		Config:    config.Default(),
	}
}

func newTestServer(t *testing.T, deps Deps) *Server {
	t.Helper()
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	return srv
}

func TestIndexRoute(t *testing.T) {
	deps := testDeps(t)
	deps.DB.InsertTicker("AAPL", ptr("Apple Inc."))
	srv := newTestServer(t, deps)

	req := httptest.NewRequest("GET", "/", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "AAPL") {
		t.Error("expected ticker symbol in response body")
	}
}

func TestTickerRoute(t *testing.T) {
	deps := testDeps(t)
	deps.DB.InsertTicker("AAPL", nil)
	url := "https://a.com/1"
	id, _ := deps.DB.InsertNews(&database.NewsItem{
		Ticker: "AAPL", Title: "Apple beats estimates", URL: &url,
		SourceType: "alphavantage", Status: database.StatusPending,
	})
	deps.DB.UpdateNewsAnalysis(id, classify.LabelPositive, "Solid quarter")
	sentiment.New(deps.DB).Recompute("AAPL")

	srv := newTestServer(t, deps)
	req := httptest.NewRequest("GET", "/ticker/aapl", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Apple beats estimates") {
		t.Error("expected news title in response")
	}
	if !strings.Contains(body, "STRONG BUY") {
		t.Error("expected signal in response")
	}
}

func TestTickerRouteUnknown(t *testing.T) {
	srv := newTestServer(t, testDeps(t))
	req := httptest.NewRequest("GET", "/ticker/ZZZZ", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestSourcesAPI(t *testing.T) {
	deps := testDeps(t)
	deps.Gate.EnterCooldown("rss", "quota", 60)
	srv := newTestServer(t, deps)

	req := httptest.NewRequest("GET", "/api/sources", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var statuses []collect.SourceStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(statuses) != 1 {
		t.Fatalf("expected 1 source, got %d", len(statuses))
	}
	if statuses[0].Type != "rss" {
		t.Errorf("unexpected type %q", statuses[0].Type)
	}
}

func TestFetchJobEmptyWatchlist(t *testing.T) {
	srv := newTestServer(t, testDeps(t))
	req := httptest.NewRequest("POST", "/api/jobs/fetch", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 on empty watchlist, got %d", rec.Code)
	}
}

func TestFetchJobConflict(t *testing.T) {
	deps := testDeps(t)
	deps.DB.InsertTicker("AAPL", nil)
	deps.Runner.Tracker().Start(jobs.JobFetchNews)
	srv := newTestServer(t, deps)

	req := httptest.NewRequest("POST", "/api/jobs/fetch", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while job running, got %d", rec.Code)
	}
}

func TestFetchJobMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, testDeps(t))
	req := httptest.NewRequest("GET", "/api/jobs/fetch", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestAnalyzeJobConflict(t *testing.T) {
	deps := testDeps(t)
	deps.Runner.Tracker().Start(jobs.JobAnalyzePending)
	srv := newTestServer(t, deps)

	req := httptest.NewRequest("POST", "/api/jobs/analyze", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while job running, got %d", rec.Code)
	}
}

func TestJobsAPI(t *testing.T) {
	deps := testDeps(t)
	deps.Runner.Tracker().Start(jobs.JobFetchNews)
	srv := newTestServer(t, deps)

	req := httptest.NewRequest("GET", "/api/jobs", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var all map[string]jobs.State
	if err := json.Unmarshal(rec.Body.Bytes(), &all); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if all[jobs.JobFetchNews].Status != jobs.StatusRunning {
		t.Errorf("expected running job in listing, got %+v", all)
	}
}

func TestJobStatusAPI(t *testing.T) {
	deps := testDeps(t)
	srv := newTestServer(t, deps)

	req := httptest.NewRequest("GET", "/api/jobs/"+jobs.JobFetchNews, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 before first run, got %d", rec.Code)
	}

	deps.Runner.Tracker().Start(jobs.JobFetchNews)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/jobs/"+jobs.JobFetchNews, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var state jobs.State
	if err := json.Unmarshal(rec.Body.Bytes(), &state); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if state.Status != jobs.StatusRunning {
		t.Errorf("expected running, got %s", state.Status)
	}
}

func TestTickerSentimentAPI(t *testing.T) {
	deps := testDeps(t)
	srv := newTestServer(t, deps)

	req := httptest.NewRequest("GET", "/api/tickers/AAPL/sentiment", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without snapshot, got %d", rec.Code)
	}

	url := "https://a.com/1"
	id, _ := deps.DB.InsertNews(&database.NewsItem{
		Ticker: "AAPL", Title: "a", URL: &url,
		SourceType: "rss", Status: database.StatusPending,
	})
	deps.DB.UpdateNewsAnalysis(id, classify.LabelNegative, "bad")
	sentiment.New(deps.DB).Recompute("AAPL")

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/tickers/aapl/sentiment", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var snap database.SentimentSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if snap.Signal != sentiment.SignalSell {
		t.Errorf("expected SELL for single Negative item, got %q", snap.Signal)
	}
}

func TestStaticRoute(t *testing.T) {
	srv := newTestServer(t, testDeps(t))
	req := httptest.NewRequest("GET", "/static/style.css", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "font-family") {
		t.Error("expected CSS content")
	}
}
