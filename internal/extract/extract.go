// Package extract turns an RSS article pool into structured, geolocated
// intel news items using a chat-completion model, with rule-based fallbacks
// that guarantee one item per article.
package extract

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jacob-sheng/iran-situation-room/internal/collect"
	"github.com/jacob-sheng/iran-situation-room/internal/fetch"
	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/llm"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
	"github.com/jacob-sheng/iran-situation-room/internal/metrics"
	"github.com/jacob-sheng/iran-situation-room/internal/places"
)

// ErrMissingSettings is returned before any network activity when the model
// endpoint or key is not configured.
var ErrMissingSettings = errors.New("API endpoint and key are required; set llm.endpoint and the API key environment variable")

// Mode selects crawl depth and time budget.
type Mode string

const (
	ModeInitial Mode = "initial"
	ModeRefresh Mode = "refresh"
)

var (
	initialDepths = []int{20, 40, 80}
	refreshDepths = []int{10, 20, 40, 80}
)

// Pool fetches a deduplicated article pool.
type Pool interface {
	FetchRSSPool(ctx context.Context, opts collect.PoolOptions) []intel.Article
}

// Enricher fills empty article snippets in place.
type Enricher interface {
	EnrichSnippets(ctx context.Context, articles []intel.Article) *fetch.Result
}

// ChatFactory builds a chat client for the given settings.
type ChatFactory func(s llm.Settings) llm.ChatClient

// OpenAIFactory is the default ChatFactory.
func OpenAIFactory(s llm.Settings) llm.ChatClient { return llm.NewOpenAIClient(s) }

// Config tunes the RSS stage.
type Config struct {
	Sources       map[intel.Scope][]collect.Source
	MaxTotal      int
	Concurrency   int
	InitialBudget time.Duration
	RefreshBudget time.Duration
	Center        intel.Coordinates
}

// Options configures one FetchIntelNews call.
type Options struct {
	Mode        Mode
	Scope       intel.Scope
	ExcludeURLs []string
	TargetCount int
	// OnPreview receives provisional items before the model responds.
	OnPreview func(items []intel.NewsItem)
}

// Service runs extraction. It is safe for concurrent use.
type Service struct {
	pool     Pool
	newChat  ChatFactory
	enricher Enricher
	cfg      Config
	now      func() time.Time
}

// NewService creates an extraction service. enricher may be nil.
func NewService(pool Pool, newChat ChatFactory, enricher Enricher, cfg Config) *Service {
	if newChat == nil {
		newChat = OpenAIFactory
	}
	if cfg.MaxTotal <= 0 {
		cfg.MaxTotal = 400
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.InitialBudget <= 0 {
		cfg.InitialBudget = 5500 * time.Millisecond
	}
	if cfg.RefreshBudget <= 0 {
		cfg.RefreshBudget = 3500 * time.Millisecond
	}
	if cfg.Center == (intel.Coordinates{}) {
		cfg.Center = intel.IranCenter
	}
	return &Service{pool: pool, newChat: newChat, enricher: enricher, cfg: cfg, now: time.Now}
}

// batch is the per-call lookup state shared by item builders.
type batch struct {
	scope      intel.Scope
	articles   []intel.Article
	byURL      map[string]intel.Article
	fallbacks  map[string]places.Fallback
	categories map[string]intel.Category
	now        string
}

// FetchIntelNews fetches articles and extracts one news item per article,
// in article order, up to TargetCount. It returns an error only for missing
// settings; every later failure degrades to fallback items.
func (s *Service) FetchIntelNews(ctx context.Context, settings llm.Settings, opts Options) ([]intel.NewsItem, error) {
	if !settings.Configured() {
		return nil, ErrMissingSettings
	}

	target := max(1, opts.TargetCount)
	if opts.TargetCount == 0 {
		target = 10
	}
	mode := ModeRefresh
	if opts.Mode == ModeInitial {
		mode = ModeInitial
	}
	scope := s.scopeOrGlobal(opts.Scope)

	articles := s.fetchArticles(ctx, mode, scope, opts.ExcludeURLs, target)
	if len(articles) == 0 {
		logging.Info().Str("scope", string(scope)).Msg("No RSS articles available")
		return nil, nil
	}
	if s.enricher != nil {
		s.enricher.EnrichSnippets(ctx, articles)
	}

	b := s.newBatch(scope, articles)
	if opts.OnPreview != nil {
		opts.OnPreview(b.previewItems())
	}

	parsed := s.complete(ctx, settings, articles)
	items := b.assemble(parsed)
	if len(items) > target {
		items = items[:target]
	}

	recordSignals(items)
	logging.Info().
		Int("articles", len(articles)).
		Int("items", len(items)).
		Int("model_items", len(parsed)).
		Str("mode", string(mode)).
		Msg("Intel extraction complete")
	return items, nil
}

func (s *Service) scopeOrGlobal(scope intel.Scope) intel.Scope {
	for _, sc := range intel.Scopes {
		if sc == scope {
			return sc
		}
	}
	return intel.ScopeGlobal
}

// fetchArticles widens per-source depth until the pool holds target
// articles or the depth candidates run out.
func (s *Service) fetchArticles(ctx context.Context, mode Mode, scope intel.Scope, excludeURLs []string, target int) []intel.Article {
	exclude := make(map[string]bool)
	for _, u := range excludeURLs {
		if c := collect.CanonicalizeURL(u); c != "" {
			exclude[c] = true
		}
	}

	sources, ok := s.cfg.Sources[scope]
	if !ok || len(sources) == 0 {
		sources = s.cfg.Sources[intel.ScopeGlobal]
	}

	depths, budget := refreshDepths, s.cfg.RefreshBudget
	if mode == ModeInitial {
		depths, budget = initialDepths, s.cfg.InitialBudget
	}

	var articles []intel.Article
	for _, depth := range depths {
		if ctx.Err() != nil {
			break
		}
		pool := s.pool.FetchRSSPool(ctx, collect.PoolOptions{
			Scope:          scope,
			Sources:        sources,
			PerSourceLimit: depth,
			MaxTotal:       s.cfg.MaxTotal,
			ExcludeURLs:    exclude,
			MinNeeded:      target * 6,
			Concurrency:    s.cfg.Concurrency,
			TimeBudget:     budget,
		})
		logging.Debug().Int("depth", depth).Int("pool", len(pool)).Msg("RSS pool attempt")
		if len(pool) >= target {
			return pool[:target]
		}
		articles = pool
	}
	return articles
}

func (s *Service) newBatch(scope intel.Scope, articles []intel.Article) *batch {
	b := &batch{
		scope:      scope,
		articles:   articles,
		byURL:      make(map[string]intel.Article, len(articles)),
		fallbacks:  make(map[string]places.Fallback, len(articles)),
		categories: make(map[string]intel.Category, len(articles)),
		now:        s.now().UTC().Format(time.RFC3339),
	}
	for _, a := range articles {
		b.byURL[a.Link] = a
		b.fallbacks[a.Link] = places.BuildFallback(a.Title, a.Snippet, s.cfg.Center)
		b.categories[a.Link] = GuessCategory(a.Title + "\n" + a.Snippet)
	}
	return b
}

// complete asks the model for the batch. Any failure yields nil, which makes
// every article fall back to RSS data.
func (s *Service) complete(ctx context.Context, settings llm.Settings, articles []intel.Article) []any {
	user, err := userMessage(articles)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to build model request")
		return nil
	}

	text, err := s.newChat(settings).Complete(ctx, systemPrompt(len(articles)), user)
	if err != nil {
		logging.Warn().Err(err).Msg("Model request failed, using RSS fallback items")
		return nil
	}

	var parsed []any
	if err := llm.DecodeJSON(text, &parsed); err != nil {
		logging.Warn().Err(err).Msg("Model response is not a JSON array, using RSS fallback items")
		return nil
	}
	return parsed
}

// assemble resolves model items against the article set and fills every gap
// with a fallback item, in article order.
func (b *batch) assemble(parsed []any) []intel.NewsItem {
	outByURL := make(map[string]intel.NewsItem)
	for i, raw := range parsed {
		m, _ := raw.(map[string]any)
		item, ok := b.buildItem(i, m)
		if !ok {
			continue
		}
		if _, exists := outByURL[item.URL]; !exists {
			outByURL[item.URL] = item
		}
	}

	final := make([]intel.NewsItem, 0, len(b.articles))
	for _, a := range b.articles {
		if item, ok := outByURL[a.Link]; ok {
			final = append(final, item)
			continue
		}
		final = append(final, b.fallbackItem(a))
	}
	return final
}

// resolveURL repairs a model URL: exact allowed match, else title match,
// else the article at the same position.
func (b *batch) resolveURL(i int, rawURL, title string) (string, bool) {
	u := collect.CanonicalizeURL(rawURL)
	if u != "" {
		if _, ok := b.byURL[u]; !ok {
			if picked := pickBestURL(title, b.articles); picked != "" {
				u = picked
			}
		}
	}
	if u == "" && i < len(b.articles) {
		u = b.articles[i].Link
	}
	_, ok := b.byURL[u]
	return u, ok
}

func (b *batch) buildItem(i int, m map[string]any) (intel.NewsItem, bool) {
	title := strings.TrimSpace(getString(m, "title"))
	summary := strings.TrimSpace(getString(m, "summary"))
	timestamp := strings.TrimSpace(getString(m, "timestamp"))

	url, ok := b.resolveURL(i, strings.TrimSpace(getString(m, "url")), title)
	if !ok {
		return intel.NewsItem{}, false
	}
	article := b.byURL[url]
	id := intel.StableNewsID(url)
	fb := b.fallbacks[url]

	source := article.Source
	if source == "" {
		source = strings.TrimSpace(getString(m, "source"))
	}
	if source == "" {
		source = "Unknown"
	}

	var signals []intel.Signal
	for j, rs := range getSlice(m, "signals") {
		sm, _ := rs.(map[string]any)
		signals = append(signals, buildSignal(sm, id, j, title, summary, article.Snippet, fb))
	}
	if len(signals) == 0 {
		description := summary
		if description == "" {
			description = clip(article.Snippet, descriptionLen)
		}
		signals = append(signals, fallbackSignal(id, "-0", orDefault(title, "Intel Update"), description, article.Snippet, fb, 0.1))
	}

	category, ok := asCategory(getString(m, "category"))
	if !ok {
		category = b.categories[url]
	}

	return intel.NewsItem{
		ID:        id,
		Title:     title,
		Summary:   summary,
		Source:    source,
		URL:       url,
		Timestamp: timestamp,
		Signals:   signals,
		Scope:     b.scope,
		Category:  category,
		Mentions:  fb.Mentions,
	}, true
}

func buildSignal(s map[string]any, itemID string, j int, itemTitle, summary, snippet string, fb places.Fallback) intel.Signal {
	loc, usedFallback := sanitizeLocation(locationMap(s, "location"), fb)

	sig := intel.Signal{
		ID:          strings.TrimSpace(getString(s, "id")),
		Kind:        asKind(getString(s, "kind")),
		Title:       strings.TrimSpace(getString(s, "title")),
		Description: strings.TrimSpace(getString(s, "description")),
		Severity:    asSeverity(getString(s, "severity")),
		Location:    loc,
		Evidence:    NormalizeEvidence(getString(s, "evidence"), snippet),
		Confidence:  intel.Clamp01(getFloat(s, "confidence")),
		Reliability: intel.ReliabilityLLMInferred,
	}
	if sig.ID == "" {
		sig.ID = "sig-" + itemID + "-" + strconv.Itoa(j)
	}
	if sig.Title == "" {
		sig.Title = orDefault(itemTitle, "Signal")
	}
	if sig.Description == "" {
		sig.Description = summary
	}
	if usedFallback {
		sig.Reliability = intel.ReliabilityCapitalFallback
	}
	if v, ok := s["verified"].(bool); ok {
		sig.Verified = intel.Bool(v)
	}

	if mv, ok := getMap(s, "movement"); ok {
		movement := &intel.Movement{To: sig.Location}
		if from, ok := getMap(mv, "from"); ok {
			l, _ := sanitizeLocation(from, fb)
			movement.From = &l
		}
		if to, ok := getMap(mv, "to"); ok {
			movement.To, _ = sanitizeLocation(to, fb)
		}
		sig.Movement = movement
	}
	if u, ok := getMap(s, "unit"); ok {
		sig.Unit = &intel.UnitSpec{
			ID:          strings.TrimSpace(getString(u, "id")),
			Name:        strings.TrimSpace(getString(u, "name")),
			Type:        strings.TrimSpace(getString(u, "type")),
			Affiliation: strings.TrimSpace(getString(u, "affiliation")),
		}
	}
	if in, ok := getMap(s, "infra"); ok {
		sig.Infra = &intel.InfraSpec{
			Name:   strings.TrimSpace(getString(in, "name")),
			Type:   strings.TrimSpace(getString(in, "type")),
			Status: strings.TrimSpace(getString(in, "status")),
		}
	}
	if bt, ok := getMap(s, "battle"); ok {
		sig.Battle = &intel.BattleSpec{Type: strings.TrimSpace(getString(bt, "type"))}
	}

	if sig.Evidence == "" {
		sig.Evidence = clip(snippet, evidenceMaxLen)
	}
	return sig
}

// locationMap returns the nested object or an empty map.
func locationMap(m map[string]any, key string) map[string]any {
	if v, ok := getMap(m, key); ok {
		return v
	}
	return map[string]any{}
}

func fallbackSignal(itemID, suffix, title, description, snippet string, fb places.Fallback, confidence float64) intel.Signal {
	return intel.Signal{
		ID:          "sig-" + itemID + suffix,
		Kind:        intel.KindEvent,
		Title:       title,
		Description: description,
		Severity:    intel.SeverityLow,
		Location:    fb.Location(),
		Evidence:    clip(snippet, evidenceMaxLen),
		Confidence:  confidence,
		Verified:    intel.Bool(false),
		Reliability: intel.ReliabilityCapitalFallback,
	}
}

// fallbackItem builds an item purely from RSS data.
func (b *batch) fallbackItem(a intel.Article) intel.NewsItem {
	id := intel.StableNewsID(a.Link)
	fb := b.fallbacks[a.Link]
	return intel.NewsItem{
		ID:        id,
		Title:     a.Title,
		Summary:   clip(a.Snippet, summaryPreviewLen),
		Source:    orDefault(a.Source, "Unknown"),
		URL:       a.Link,
		Timestamp: orDefault(a.PubDate, b.now),
		Signals: []intel.Signal{
			fallbackSignal(id, "-0", orDefault(a.Title, "Intel Update"), clip(a.Snippet, descriptionLen), a.Snippet, fb, 0.05),
		},
		Scope:    b.scope,
		Category: b.categories[a.Link],
		Mentions: fb.Mentions,
	}
}

// previewItems builds one provisional item per article.
func (b *batch) previewItems() []intel.NewsItem {
	out := make([]intel.NewsItem, 0, len(b.articles))
	for _, a := range b.articles {
		item := b.fallbackItem(a)
		item.IsPreview = true
		item.Signals = []intel.Signal{
			fallbackSignal(item.ID, "-preview", orDefault(a.Title, "Intel Update"), clip(a.Snippet, descriptionLen), a.Snippet, b.fallbacks[a.Link], 0.05),
		}
		out = append(out, item)
	}
	return out
}

func recordSignals(items []intel.NewsItem) {
	for _, it := range items {
		for _, s := range it.Signals {
			metrics.ExtractedSignals.WithLabelValues(string(s.Reliability)).Inc()
		}
	}
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
