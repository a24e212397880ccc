package collect

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
	"github.com/jacob-sheng/iran-situation-room/internal/metrics"
)

// PoolOptions configures one FetchRSSPool call.
type PoolOptions struct {
	Scope          intel.Scope
	Sources        []Source
	PerSourceLimit int
	MaxTotal       int
	ExcludeURLs    map[string]bool // canonical URLs
	MinNeeded      int
	Concurrency    int
	TimeBudget     time.Duration
}

func (o PoolOptions) normalized() PoolOptions {
	o.PerSourceLimit = max(1, o.PerSourceLimit)
	o.MaxTotal = max(1, o.MaxTotal)
	o.MinNeeded = max(1, o.MinNeeded)
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.TimeBudget <= 0 {
		o.TimeBudget = 3500 * time.Millisecond
	}
	o.TimeBudget = max(500*time.Millisecond, o.TimeBudget)
	if o.Scope == "" {
		o.Scope = intel.ScopeGlobal
	}
	return o
}

// pool is the shared state of one fan-out. Entries added after close are
// discarded.
type pool struct {
	mu      sync.Mutex
	sources []Source
	cursor  int
	byLink  map[string]intel.Article
	order   []string
	stopped bool
	closed  bool
}

func (p *pool) next() (Source, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped || p.cursor >= len(p.sources) {
		return Source{}, false
	}
	src := p.sources[p.cursor]
	p.cursor++
	return src, true
}

func (p *pool) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func (p *pool) isStopped() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopped
}

// add inserts items until minNeeded unique links exist, then stops the pool.
func (p *pool) add(items []intel.Article, exclude map[string]bool, minNeeded int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	for _, it := range items {
		it.Title = strings.TrimSpace(it.Title)
		it.Link = CanonicalizeURL(it.Link)
		if it.Title == "" || it.Link == "" || exclude[it.Link] {
			continue
		}
		if _, ok := p.byLink[it.Link]; ok {
			continue
		}
		p.byLink[it.Link] = it
		p.order = append(p.order, it.Link)
		if len(p.byLink) >= minNeeded {
			p.stopped = true
			return
		}
	}
}

func (p *pool) snapshot() []intel.Article {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.stopped = true
	out := make([]intel.Article, 0, len(p.order))
	for _, link := range p.order {
		out = append(out, p.byLink[link])
	}
	return out
}

// FetchRSSPool gathers up to MaxTotal unique articles, newest first.
//
// The aggregator fast path is tried first. Otherwise Concurrency workers
// pull sources from a shared cursor until MinNeeded unique links exist or
// the time budget elapses. The budget is a soft deadline: requests already
// in flight are left to finish, but their results are dropped. Per-source
// failures only reduce coverage.
func (c *Client) FetchRSSPool(ctx context.Context, opts PoolOptions) []intel.Article {
	opts = opts.normalized()

	if items := c.fetchAggregator(ctx, opts.Scope, opts.PerSourceLimit, opts.MaxTotal, opts.TimeBudget); len(items) > 0 {
		p := &pool{byLink: make(map[string]intel.Article)}
		for _, it := range items {
			if len(p.byLink) >= opts.MaxTotal {
				break
			}
			p.add([]intel.Article{it}, opts.ExcludeURLs, opts.MaxTotal+1)
		}
		out := finalize(p.snapshot(), opts.MaxTotal)
		logging.Debug().Int("count", len(out)).Str("scope", string(opts.Scope)).Msg("Used aggregator fast path")
		metrics.RSSPoolArticles.Set(float64(len(out)))
		return out
	}

	start := time.Now()
	p := &pool{
		sources: append([]Source(nil), opts.Sources...),
		byLink:  make(map[string]intel.Article),
	}

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.runWorker(ctx, p, opts, start)
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(opts.TimeBudget)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		logging.Debug().Dur("budget", opts.TimeBudget).Msg("RSS time budget elapsed")
	case <-ctx.Done():
	}

	out := finalize(p.snapshot(), opts.MaxTotal)
	logging.Debug().
		Int("count", len(out)).
		Str("scope", string(opts.Scope)).
		Dur("elapsed", time.Since(start)).
		Msg("RSS pool fetched")
	metrics.RSSPoolArticles.Set(float64(len(out)))
	return out
}

func (c *Client) runWorker(ctx context.Context, p *pool, opts PoolOptions, start time.Time) {
	for !p.isStopped() {
		if time.Since(start) > opts.TimeBudget || ctx.Err() != nil {
			p.stop()
			return
		}
		src, ok := p.next()
		if !ok {
			return
		}
		if src.Name == "" {
			src.Name = extractSourceName(src.URL)
		}
		if src.Scope == "" {
			src.Scope = opts.Scope
		}

		items, err := fetchFeedItems(ctx, c.strategies, src, opts.PerSourceLimit)
		if err != nil {
			logging.Debug().Err(err).Str("source", src.Name).Msg("Feed unavailable")
			continue
		}
		p.add(items, opts.ExcludeURLs, opts.MinNeeded)
	}
}

// finalize sorts newest first (unparsable dates last), truncates and
// assigns positional indexes.
func finalize(items []intel.Article, maxTotal int) []intel.Article {
	type keyed struct {
		key   int64
		dated bool
		a     intel.Article
	}
	ks := make([]keyed, len(items))
	for i, it := range items {
		key, dated := dateKey(it.PubDate)
		ks[i] = keyed{key: key, dated: dated, a: it}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].dated != ks[j].dated {
			return ks[i].dated
		}
		return ks[i].key > ks[j].key
	})

	n := min(len(ks), maxTotal)
	out := make([]intel.Article, n)
	for i := 0; i < n; i++ {
		out[i] = ks[i].a
		out[i].Index = i
	}
	return out
}
