package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jacob-sheng/iran-situation-room/internal/collect"
	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/llm"
)

type fakePool struct {
	results [][]intel.Article
	calls   []collect.PoolOptions
}

func (f *fakePool) FetchRSSPool(ctx context.Context, opts collect.PoolOptions) []intel.Article {
	f.calls = append(f.calls, opts)
	if len(f.results) == 0 {
		return nil
	}
	i := min(len(f.calls)-1, len(f.results)-1)
	return f.results[i]
}

type fakeChat struct {
	reply  string
	err    error
	system string
	user   string
	calls  int
}

func (f *fakeChat) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.system = system
	f.user = user
	return f.reply, f.err
}

var testSettings = llm.Settings{Endpoint: "https://llm.example/v1", APIKey: "k"}

func newTestService(pool *fakePool, chat *fakeChat) *Service {
	s := NewService(pool, func(llm.Settings) llm.ChatClient { return chat }, nil, Config{
		Sources: map[intel.Scope][]collect.Source{
			intel.ScopeGlobal: {{Name: "Wire", URL: "https://feeds.example/wire.xml"}},
		},
	})
	s.now = func() time.Time { return time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC) }
	return s
}

var isfahanArticle = intel.Article{
	Index:   0,
	Title:   "Missile strike hits Isfahan",
	Link:    "https://news.example/isfahan",
	PubDate: "Tue, 13 Oct 2026 09:00:00 +0000",
	Snippet: "A missile strike hit an air base near Isfahan on Tuesday.",
	Source:  "Wire",
}

var franceArticle = intel.Article{
	Index:   1,
	Title:   "Talks resume",
	Link:    "https://news.example/france",
	Snippet: "Diplomats met in France to discuss the ceasefire.",
	Source:  "Daily",
}

func TestFetchIntelNewsMissingSettings(t *testing.T) {
	pool := &fakePool{}
	s := newTestService(pool, &fakeChat{})

	_, err := s.FetchIntelNews(context.Background(), llm.Settings{Endpoint: "https://x"}, Options{})
	if !errors.Is(err, ErrMissingSettings) {
		t.Fatalf("expected ErrMissingSettings, got %v", err)
	}
	if len(pool.calls) != 0 {
		t.Errorf("expected no RSS activity, got %d calls", len(pool.calls))
	}
}

func TestFetchIntelNewsNoArticles(t *testing.T) {
	chat := &fakeChat{reply: "[]"}
	s := newTestService(&fakePool{}, chat)

	items, err := s.FetchIntelNews(context.Background(), testSettings, Options{TargetCount: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
	if chat.calls != 0 {
		t.Errorf("expected no model call, got %d", chat.calls)
	}
}

func TestFetchIntelNewsIsfahanScenario(t *testing.T) {
	chat := &fakeChat{reply: "```json\n" + `[{
		"title": "Missile strike hits Isfahan",
		"summary": "An air base near Isfahan was hit.",
		"url": "https://news.example/isfahan",
		"source": "Made Up",
		"timestamp": "2026-10-13T09:00:00Z",
		"signals": [{
			"kind": "event",
			"title": "Strike near Isfahan",
			"location": {"name": "Isfahan", "coordinates": [51.67, 32.65]},
			"evidence": "missile strike hit an air base near Isfahan",
			"confidence": 0.8
		}]
	}]` + "\n```"}
	s := newTestService(&fakePool{results: [][]intel.Article{{isfahanArticle}}}, chat)

	items, err := s.FetchIntelNews(context.Background(), testSettings, Options{TargetCount: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	item := items[0]
	if item.ID != intel.StableNewsID(isfahanArticle.Link) {
		t.Errorf("expected stable id, got %q", item.ID)
	}
	if item.Source != "Wire" {
		t.Errorf("expected source mapped from article, got %q", item.Source)
	}
	if item.Category != intel.CategoryConflict {
		t.Errorf("expected heuristic category 'conflict', got %q", item.Category)
	}
	if len(item.Signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(item.Signals))
	}
	sig := item.Signals[0]
	if sig.Location.Coordinates != (intel.Coordinates{51.67, 32.65}) {
		t.Errorf("expected [51.67,32.65], got %v", sig.Location.Coordinates)
	}
	if sig.Severity != intel.SeverityMedium {
		t.Errorf("expected default severity medium, got %q", sig.Severity)
	}
	if sig.Reliability != intel.ReliabilityLLMInferred {
		t.Errorf("expected llm_inferred, got %q", sig.Reliability)
	}
	if sig.Evidence != "missile strike hit an air base near Isfahan" {
		t.Errorf("expected evidence kept, got %q", sig.Evidence)
	}
	if sig.Confidence != 0.8 {
		t.Errorf("expected confidence 0.8, got %v", sig.Confidence)
	}
	if sig.ID != "sig-"+item.ID+"-0" {
		t.Errorf("expected derived signal id, got %q", sig.ID)
	}
}

func TestFetchIntelNewsInvalidCoordinatesFallBackToCapital(t *testing.T) {
	chat := &fakeChat{reply: `[{
		"title": "Talks resume",
		"url": "https://news.example/france",
		"category": "POLITICS",
		"signals": [{"kind": "bogus", "severity": "extreme", "location": {"name": "", "coordinates": [999, 999]}, "confidence": 7}]
	}]`}
	s := newTestService(&fakePool{results: [][]intel.Article{{franceArticle}}}, chat)

	items, err := s.FetchIntelNews(context.Background(), testSettings, Options{TargetCount: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sig := items[0].Signals[0]
	if sig.Location.Coordinates != (intel.Coordinates{2.3522, 48.8566}) {
		t.Errorf("expected Paris coordinates, got %v", sig.Location.Coordinates)
	}
	if sig.Reliability != intel.ReliabilityCapitalFallback {
		t.Errorf("expected capital_fallback, got %q", sig.Reliability)
	}
	if sig.Location.Name != "France" || sig.Location.Country != "France" {
		t.Errorf("expected fallback name/country France, got %+v", sig.Location)
	}
	if sig.Kind != intel.KindEvent || sig.Severity != intel.SeverityMedium {
		t.Errorf("expected coerced kind/severity, got %q/%q", sig.Kind, sig.Severity)
	}
	if sig.Confidence != 1 {
		t.Errorf("expected clamped confidence 1, got %v", sig.Confidence)
	}
	if sig.Evidence != franceArticle.Snippet {
		t.Errorf("expected snippet evidence, got %q", sig.Evidence)
	}
	if items[0].Category != intel.CategoryPolitics {
		t.Errorf("expected model category accepted, got %q", items[0].Category)
	}
}

func TestFetchIntelNewsCompletenessOnModelFailure(t *testing.T) {
	articles := []intel.Article{isfahanArticle, franceArticle}
	for _, chat := range []*fakeChat{
		{err: errors.New("503")},
		{reply: "sorry, I cannot help"},
		{reply: `{"items": []}`},
	} {
		s := newTestService(&fakePool{results: [][]intel.Article{articles}}, chat)
		items, err := s.FetchIntelNews(context.Background(), testSettings, Options{TargetCount: 2})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) != 2 {
			t.Fatalf("expected 2 fallback items, got %d", len(items))
		}
		for i, it := range items {
			if it.URL != articles[i].Link {
				t.Errorf("position %d: expected %q, got %q", i, articles[i].Link, it.URL)
			}
			if len(it.Signals) != 1 || it.Signals[0].Confidence != 0.05 {
				t.Errorf("position %d: expected one 0.05 fallback signal, got %+v", i, it.Signals)
			}
			if it.Signals[0].Reliability != intel.ReliabilityCapitalFallback {
				t.Errorf("position %d: expected capital_fallback, got %q", i, it.Signals[0].Reliability)
			}
		}
		if items[1].Timestamp != "2026-10-15T12:00:00Z" {
			t.Errorf("expected missing pubDate to use now, got %q", items[1].Timestamp)
		}
		if items[0].Signals[0].Location.Coordinates != intel.IranCenter {
			// Isfahan is not a country mention, so the map center is used.
			t.Errorf("expected map center fallback, got %v", items[0].Signals[0].Location.Coordinates)
		}
	}
}

func TestFetchIntelNewsURLRepair(t *testing.T) {
	third := intel.Article{Index: 2, Title: "Oil prices climb", Link: "https://news.example/oil", Snippet: "Brent rose.", Source: "Markets"}
	articles := []intel.Article{isfahanArticle, franceArticle, third}
	chat := &fakeChat{reply: `[
		{"title": "Missile strike hits Isfahan", "url": "https://news.example/isfahan?utm_source=x#top", "signals": [{"kind":"event","confidence":0.4}]},
		{"title": "Talks resume in Paris", "url": "https://invented.example/abc", "signals": [{"kind":"event","confidence":0.5}]},
		{"title": "", "url": "", "signals": [{"kind":"event","confidence":0.6}]},
		{"title": "Nothing like it", "url": "https://invented.example/zzz", "signals": [{"kind":"event","confidence":0.9}]},
		{"title": "Duplicate", "url": "https://news.example/isfahan", "signals": [{"kind":"event","confidence":0.99}]}
	]`}
	s := newTestService(&fakePool{results: [][]intel.Article{articles}}, chat)

	items, err := s.FetchIntelNews(context.Background(), testSettings, Options{TargetCount: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	want := []float64{0.4, 0.5, 0.6}
	for i, it := range items {
		if it.URL != articles[i].Link {
			t.Errorf("position %d: expected %q, got %q", i, articles[i].Link, it.URL)
		}
		if it.Signals[0].Confidence != want[i] {
			t.Errorf("position %d: expected confidence %v, got %v", i, want[i], it.Signals[0].Confidence)
		}
	}
	if items[2].Title != "" {
		t.Errorf("expected model title kept verbatim, got %q", items[2].Title)
	}
	if items[2].Signals[0].Title != "Signal" {
		t.Errorf("expected default signal title, got %q", items[2].Signals[0].Title)
	}
}

func TestFetchIntelNewsEmptySignalsGetFallback(t *testing.T) {
	chat := &fakeChat{reply: `[{"title": "T", "summary": "S", "url": "https://news.example/france", "signals": []}]`}
	s := newTestService(&fakePool{results: [][]intel.Article{{franceArticle}}}, chat)

	items, _ := s.FetchIntelNews(context.Background(), testSettings, Options{TargetCount: 1})
	sig := items[0].Signals[0]
	if sig.Confidence != 0.1 || sig.Severity != intel.SeverityLow {
		t.Errorf("expected low-severity 0.1 fallback signal, got %+v", sig)
	}
	if sig.Description != "S" {
		t.Errorf("expected summary as description, got %q", sig.Description)
	}
	if sig.Verified == nil || *sig.Verified {
		t.Error("expected verified=false on fallback signal")
	}
}

func TestFetchIntelNewsMovementAndSubRecords(t *testing.T) {
	chat := &fakeChat{reply: `[{
		"title": "Talks resume",
		"url": "https://news.example/france",
		"signals": [{
			"id": "sig-x",
			"kind": "movement",
			"location": {"name": "Brest", "country": "France", "coordinates": [-4.48, 48.39]},
			"movement": {"from": {"name": "Nowhere", "coordinates": "bad"}, "to": {"name": "Toulon", "coordinates": [5.93, 43.12]}},
			"unit": {"id": "u-1", "name": "Carrier Group", "type": "naval", "affiliation": "allied"},
			"verified": true,
			"confidence": "0.7"
		}]
	}]`}
	s := newTestService(&fakePool{results: [][]intel.Article{{franceArticle}}}, chat)

	items, _ := s.FetchIntelNews(context.Background(), testSettings, Options{TargetCount: 1})
	sig := items[0].Signals[0]
	if sig.ID != "sig-x" {
		t.Errorf("expected model signal id, got %q", sig.ID)
	}
	if sig.Movement == nil || sig.Movement.From == nil {
		t.Fatal("expected movement with from")
	}
	if sig.Movement.From.Coordinates != (intel.Coordinates{2.3522, 48.8566}) {
		t.Errorf("expected invalid from to fall back to Paris, got %v", sig.Movement.From.Coordinates)
	}
	if sig.Movement.To.Coordinates != (intel.Coordinates{5.93, 43.12}) {
		t.Errorf("expected to kept, got %v", sig.Movement.To.Coordinates)
	}
	if sig.Unit == nil || sig.Unit.ID != "u-1" || sig.Unit.Affiliation != "allied" {
		t.Errorf("expected unit record, got %+v", sig.Unit)
	}
	if sig.Verified == nil || !*sig.Verified {
		t.Error("expected verified=true carried over")
	}
	if sig.Confidence != 0.7 {
		t.Errorf("expected numeric-string confidence parsed, got %v", sig.Confidence)
	}
}

func TestFetchIntelNewsEscalatesDepth(t *testing.T) {
	small := []intel.Article{isfahanArticle, franceArticle}
	big := []intel.Article{
		isfahanArticle, franceArticle,
		{Index: 2, Title: "C", Link: "https://news.example/c"},
		{Index: 3, Title: "D", Link: "https://news.example/d"},
	}
	pool := &fakePool{results: [][]intel.Article{small, small, big}}
	chat := &fakeChat{err: errors.New("offline")}
	s := newTestService(pool, chat)

	items, err := s.FetchIntelNews(context.Background(), testSettings, Options{
		Mode:        ModeRefresh,
		TargetCount: 3,
		ExcludeURLs: []string{"https://news.example/seen?utm_source=a"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.calls) != 3 {
		t.Fatalf("expected 3 pool attempts, got %d", len(pool.calls))
	}
	for i, depth := range []int{10, 20, 40} {
		if pool.calls[i].PerSourceLimit != depth {
			t.Errorf("attempt %d: expected depth %d, got %d", i, depth, pool.calls[i].PerSourceLimit)
		}
	}
	first := pool.calls[0]
	if first.MinNeeded != 18 || first.MaxTotal != 400 || first.Concurrency != 4 {
		t.Errorf("unexpected pool options %+v", first)
	}
	if first.TimeBudget != 3500*time.Millisecond {
		t.Errorf("expected refresh budget, got %v", first.TimeBudget)
	}
	if !first.ExcludeURLs["https://news.example/seen"] {
		t.Error("expected canonical exclude URL")
	}
	if len(items) != 3 {
		t.Errorf("expected 3 items, got %d", len(items))
	}
}

func TestFetchIntelNewsInitialModeAndScopeFallback(t *testing.T) {
	pool := &fakePool{results: [][]intel.Article{{isfahanArticle}}}
	s := newTestService(pool, &fakeChat{reply: "[]"})

	_, _ = s.FetchIntelNews(context.Background(), testSettings, Options{Mode: ModeInitial, Scope: "mars", TargetCount: 1})
	if pool.calls[0].PerSourceLimit != 20 || pool.calls[0].TimeBudget != 5500*time.Millisecond {
		t.Errorf("expected initial depth and budget, got %+v", pool.calls[0])
	}
	if pool.calls[0].Scope != intel.ScopeGlobal {
		t.Errorf("expected unknown scope to become global, got %q", pool.calls[0].Scope)
	}
	if len(pool.calls[0].Sources) != 1 {
		t.Errorf("expected global sources, got %d", len(pool.calls[0].Sources))
	}
}

func TestFetchIntelNewsPreview(t *testing.T) {
	var preview []intel.NewsItem
	chat := &fakeChat{reply: "[]"}
	s := newTestService(&fakePool{results: [][]intel.Article{{isfahanArticle, franceArticle}}}, chat)

	_, err := s.FetchIntelNews(context.Background(), testSettings, Options{
		TargetCount: 2,
		OnPreview: func(items []intel.NewsItem) {
			if chat.calls != 0 {
				t.Error("expected preview before the model call")
			}
			preview = items
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(preview) != 2 {
		t.Fatalf("expected 2 preview items, got %d", len(preview))
	}
	for _, p := range preview {
		if !p.IsPreview {
			t.Error("expected IsPreview")
		}
		sig := p.Signals[0]
		if sig.ID != "sig-"+p.ID+"-preview" || sig.Confidence != 0.05 || sig.Reliability != intel.ReliabilityCapitalFallback {
			t.Errorf("unexpected preview signal %+v", sig)
		}
	}
}

func TestPromptContents(t *testing.T) {
	chat := &fakeChat{reply: "[]"}
	long := isfahanArticle
	long.Snippet = strings.Repeat("x", 900)
	s := newTestService(&fakePool{results: [][]intel.Article{{long, franceArticle}}}, chat)

	_, _ = s.FetchIntelNews(context.Background(), testSettings, Options{TargetCount: 2})
	if !strings.Contains(chat.system, "Generate exactly 2 news items") {
		t.Error("expected article count in system prompt")
	}
	if !strings.HasPrefix(chat.user, "RSS_ARTICLES_JSON:\n") {
		t.Errorf("unexpected user message prefix: %.40q", chat.user)
	}
	if strings.Contains(chat.user, strings.Repeat("x", 501)) {
		t.Error("expected snippet truncated to 500 chars")
	}
	if !strings.Contains(chat.user, `"allowed_sources":["Daily","Wire"]`) {
		t.Errorf("expected sorted allowed sources, got %s", chat.user)
	}
	if !strings.Contains(chat.user, `"id":"rss-1"`) {
		t.Error("expected rss ids from article index")
	}
}

func TestGuessCategory(t *testing.T) {
	tests := []struct {
		text string
		want intel.Category
	}{
		{"Drone attack on convoy", intel.CategoryConflict},
		{"Parliament passes budget vote", intel.CategoryPolitics},
		{"Inflation slows as markets rally", intel.CategoryEconomy},
		{"Earthquake rocks coastal town", intel.CategoryDisaster},
		{"Measles outbreak spreads", intel.CategoryHealth},
		{"New semiconductor plant opens", intel.CategoryTech},
		{"NASA launches telescope", intel.CategoryScience},
		{"Refinery output rises", intel.CategoryEnergy},
		{"Local bakery wins prize", intel.CategoryOther},
		{"", intel.CategoryOther},
	}
	for _, tt := range tests {
		if got := GuessCategory(tt.text); got != tt.want {
			t.Errorf("GuessCategory(%q): expected %q, got %q", tt.text, tt.want, got)
		}
	}
}

func TestNormalizeEvidence(t *testing.T) {
	snippet := "A missile strike hit\n an air base near Isfahan on Tuesday."
	if got := NormalizeEvidence("near Isfahan", snippet); got != "near Isfahan" {
		t.Errorf("expected exact substring kept, got %q", got)
	}
	if got := NormalizeEvidence("strike hit an   air base", snippet); got != "strike hit an air base" {
		t.Errorf("expected whitespace-collapsed match, got %q", got)
	}
	if got := NormalizeEvidence("tanks rolled in", snippet); got != snippet {
		t.Errorf("expected snippet clip, got %q", got)
	}
	long := strings.Repeat("y", 300)
	if got := NormalizeEvidence("", long); got != strings.Repeat("y", 120) {
		t.Errorf("expected 120-char clip, got %d chars", len(got))
	}
}
