package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jacob-sheng/iran-situation-room/internal/fusion"
	"github.com/jacob-sheng/iran-situation-room/internal/hotspot"
	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/pipeline"
)

type fakeRunner struct {
	state    fusion.State
	hotspots []hotspot.Hotspot
	running  atomic.Bool
	runs     atomic.Int32
	release  chan struct{}
	mu       sync.Mutex
}

func (f *fakeRunner) State() fusion.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeRunner) Hotspots() []hotspot.Hotspot { return f.hotspots }

func (f *fakeRunner) Running() bool { return f.running.Load() }

func (f *fakeRunner) TryRun(ctx context.Context) (*pipeline.Result, error) {
	if !f.running.CompareAndSwap(false, true) {
		return nil, pipeline.ErrRunning
	}
	defer f.running.Store(false)
	f.runs.Add(1)
	if f.release != nil {
		<-f.release
	}
	return &pipeline.Result{}, nil
}

func sampleState() fusion.State {
	return fusion.State{
		News: []intel.NewsItem{
			{
				ID: "n1", Title: "Strike reported near Isfahan", Source: "Reuters",
				URL: "https://example.com/a", Category: intel.CategoryConflict,
				Signals: []intel.Signal{{
					ID: "s1", Kind: intel.KindEvent, Confidence: 0.8,
					Location: intel.Location{Name: "Isfahan", Country: "Iran", Coordinates: intel.Coordinates{51.67, 32.65}},
				}},
			},
			{ID: "n2", Title: "Talks resume in Oman", Source: "AP", URL: "https://example.com/b"},
		},
		Units: []fusion.Unit{{ID: "u1", Name: "CSG-1", Type: fusion.UnitNaval, Affiliation: fusion.AffiliationUS,
			Coordinates: intel.Coordinates{56.3, 26.5}}},
		LatestBatchSize: 2,
		UpdatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestServer(t *testing.T, runner *fakeRunner) *Server {
	t.Helper()
	srv, err := New(context.Background(), runner)
	if err != nil {
		t.Fatalf("failed to create server: %v", err)
	}
	t.Cleanup(srv.Wait)
	return srv
}

func do(srv *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestIndexRoute(t *testing.T) {
	runner := &fakeRunner{
		state:    sampleState(),
		hotspots: []hotspot.Hotspot{{ID: "hs:4:57:30", Label: "Iran", Center: intel.Coordinates{51.67, 32.65}, Score: 0.8, Count: 1}},
	}
	srv := newTestServer(t, runner)

	rec := do(srv, "GET", "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Situation Room", "<strong>Iran</strong>", "Strike reported near Isfahan", "CSG-1"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in response body", want)
		}
	}
}

func TestIndexRouteEmptyState(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{})

	rec := do(srv, "GET", "/")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No intel fetched yet") {
		t.Error("expected empty-state message in response")
	}
}

func TestStateRoute(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{state: sampleState()})

	rec := do(srv, "GET", "/api/state")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}

	var got struct {
		News    []intel.NewsItem `json:"news"`
		Units   []fusion.Unit    `json:"units"`
		Running bool             `json:"running"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got.News) != 2 {
		t.Errorf("expected 2 news items, got %d", len(got.News))
	}
	if len(got.Units) != 1 || got.Units[0].ID != "u1" {
		t.Errorf("expected unit u1, got %+v", got.Units)
	}
	if got.Running {
		t.Error("expected running false")
	}
}

func TestNewsRouteLimit(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{state: sampleState()})

	rec := do(srv, "GET", "/api/news?limit=1")
	var news []intel.NewsItem
	if err := json.Unmarshal(rec.Body.Bytes(), &news); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(news) != 1 || news[0].ID != "n1" {
		t.Errorf("expected only n1, got %+v", news)
	}

	rec = do(srv, "GET", "/api/news?limit=abc")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestEmptyCollectionsEncodeAsArrays(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{})

	for _, path := range []string{"/api/news", "/api/hotspots"} {
		rec := do(srv, "GET", path)
		if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
			t.Errorf("%s: expected [], got %s", path, got)
		}
	}
}

func TestRefreshRoute(t *testing.T) {
	runner := &fakeRunner{}
	srv := newTestServer(t, runner)

	rec := do(srv, "POST", "/api/refresh")
	if rec.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rec.Code)
	}
	srv.Wait()
	if runner.runs.Load() != 1 {
		t.Errorf("expected 1 run, got %d", runner.runs.Load())
	}
}

func TestRefreshRouteConflict(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{})}
	srv := newTestServer(t, runner)

	if rec := do(srv, "POST", "/api/refresh"); rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !runner.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rec := do(srv, "POST", "/api/refresh")
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409, got %d", rec.Code)
	}

	close(runner.release)
	srv.Wait()
	if runner.runs.Load() != 1 {
		t.Errorf("expected 1 run, got %d", runner.runs.Load())
	}
}

func TestRefreshRouteRejectsGet(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{})

	rec := do(srv, "GET", "/api/refresh")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{})

	rec := do(srv, "GET", "/metrics")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "situationroom_") {
		t.Error("expected situationroom metrics in response")
	}
}

func TestStaticRoute(t *testing.T) {
	srv := newTestServer(t, &fakeRunner{})

	rec := do(srv, "GET", "/static/style.css")
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestDigestEscapesMarkdown(t *testing.T) {
	state := fusion.State{
		News:      []intel.NewsItem{{ID: "n1", Title: "Drone *strike* [update]", Source: "X", URL: "https://example.com"}},
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	got := Digest(state, nil)
	if !strings.Contains(got, `Drone \*strike\* \[update\]`) {
		t.Errorf("expected escaped title, got %q", got)
	}
	if !strings.Contains(got, "No located activity") {
		t.Errorf("expected empty hotspot note, got %q", got)
	}
}

func TestDigestTruncatesNews(t *testing.T) {
	var news []intel.NewsItem
	for i := 0; i < digestNewsLimit+3; i++ {
		news = append(news, intel.NewsItem{ID: "n", Title: "t", URL: "https://example.com"})
	}
	got := Digest(fusion.State{News: news}, nil)
	if !strings.Contains(got, "3 older items not shown") {
		t.Errorf("expected truncation note, got %q", got)
	}
}
