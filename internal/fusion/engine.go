// Package fusion merges extracted intel batches into persistent map state:
// it resolves unit identities, animates sourced movements, derives event,
// infrastructure and battle markers, and patches verified locations back
// in the background.
//
// Background work is cancelled cooperatively. Every refresh bumps a
// refresh token and every planned movement batch bumps a movement token;
// work started under an older token stops mutating state as soon as it
// notices the token has moved on.
package fusion

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jacob-sheng/iran-situation-room/internal/extract"
	"github.com/jacob-sheng/iran-situation-room/internal/geocode"
	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/llm"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
	"github.com/jacob-sheng/iran-situation-room/internal/metrics"
)

const (
	DefaultMaxNewsItems = 100
	DefaultStepCount    = 30
	DefaultStepDuration = 1500 * time.Millisecond
	DefaultVerifyLimit  = 15
	maxPathHistory      = 60
)

// Extractor produces one batch of news items.
type Extractor interface {
	FetchIntelNews(ctx context.Context, settings llm.Settings, opts extract.Options) ([]intel.NewsItem, error)
}

// LocationVerifier checks a location. It never fails; an unverifiable
// location comes back with Verified false.
type LocationVerifier interface {
	Verify(ctx context.Context, loc intel.Location) geocode.Result
}

// Config tunes the engine.
type Config struct {
	Settings     llm.Settings
	Scope        intel.Scope
	TargetCount  int
	MaxNewsItems int
	StepCount    int
	// StepDuration is the wall time of one full unit move. Zero moves
	// units without pacing.
	StepDuration time.Duration
	VerifyLimit  int
	Previews     bool
	SeedUnits    []Unit
}

// Engine holds the fused map state. It is safe for concurrent use.
type Engine struct {
	extractor Extractor
	verifier  LocationVerifier
	cfg       Config
	now       func() time.Time

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu           sync.Mutex
	state        State
	refreshSeq   uint64
	moveSeq      uint64
	moveCancel   context.CancelFunc
	verifyCancel context.CancelFunc
	fetched      bool
}

// New creates an engine seeded with cfg.SeedUnits. verifier may be nil, in
// which case locations are never backfilled.
func New(extractor Extractor, verifier LocationVerifier, cfg Config) *Engine {
	if cfg.MaxNewsItems <= 0 {
		cfg.MaxNewsItems = DefaultMaxNewsItems
	}
	if cfg.StepCount <= 0 {
		cfg.StepCount = DefaultStepCount
	}
	if cfg.StepDuration < 0 {
		cfg.StepDuration = 0
	}
	if cfg.VerifyLimit <= 0 {
		cfg.VerifyLimit = DefaultVerifyLimit
	}
	ctx, stop := context.WithCancel(context.Background())
	e := &Engine{
		extractor: extractor,
		verifier:  verifier,
		cfg:       cfg,
		now:       time.Now,
		ctx:       ctx,
		stop:      stop,
	}
	e.state.Units = append([]Unit(nil), cfg.SeedUnits...)
	return e
}

// State returns the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Restore replaces the state with a stored snapshot and supersedes any
// background work.
func (e *Engine) Restore(s State) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.refreshSeq++
	e.moveSeq++
	e.cancelBackgroundLocked()
	if s.Units == nil {
		s.Units = append([]Unit(nil), e.cfg.SeedUnits...)
	}
	s.Previews = nil
	e.state = s
	e.fetched = len(s.News) > 0
	e.updateGaugesLocked()
}

// Wait blocks until background animation and verification finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close cancels background work and waits for it to stop.
func (e *Engine) Close() {
	e.stop()
	e.wg.Wait()
}

// Refresh fetches one batch, merges it into history and starts movement
// animation and location verification in the background. A refresh that
// was superseded while fetching returns a result with Stale set and leaves
// state untouched.
func (e *Engine) Refresh(ctx context.Context) (*RefreshResult, error) {
	start := e.now()

	e.mu.Lock()
	e.refreshSeq++
	token := e.refreshSeq
	mode := extract.ModeRefresh
	if !e.fetched {
		mode = extract.ModeInitial
	}
	e.mu.Unlock()

	opts := extract.Options{
		Mode:        mode,
		Scope:       e.cfg.Scope,
		TargetCount: e.cfg.TargetCount,
	}
	if e.cfg.Previews {
		opts.OnPreview = func(items []intel.NewsItem) {
			e.mu.Lock()
			defer e.mu.Unlock()
			if e.refreshSeq != token {
				return
			}
			e.state.Previews = items
			e.state.UpdatedAt = e.now()
		}
	}

	items, err := e.extractor.FetchIntelNews(ctx, e.cfg.Settings, opts)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refreshSeq != token {
		metrics.RefreshTotal.WithLabelValues("stale").Inc()
		logging.Debug().Msg("Refresh superseded, discarding batch")
		return &RefreshResult{Stale: true}, nil
	}
	e.state.Previews = nil
	if err != nil {
		metrics.RecordRefresh(e.now().Sub(start), err)
		return nil, err
	}
	e.fetched = true

	now := e.now()
	fresh := tagBatch(items, now)
	merged := append(append([]intel.NewsItem(nil), fresh...), e.state.News...)
	if len(merged) > e.cfg.MaxNewsItems {
		merged = merged[:e.cfg.MaxNewsItems]
	}

	derived := deriveLayers(merged, now)
	p := planMoves(e.state.Units, fresh, now)

	kept := make(map[string]bool, len(merged))
	for _, n := range merged {
		kept[n.ID] = true
	}
	arrows := append([]Arrow(nil), p.arrows...)
	for _, a := range e.state.Arrows {
		if kept[a.NewsID] {
			arrows = append(arrows, a)
		}
	}

	e.state = State{
		News:            merged,
		Units:           p.units,
		Events:          derived.events,
		Infrastructure:  derived.infrastructure,
		BattleResults:   derived.battleResults,
		Arrows:          arrows,
		LatestBatchSize: len(fresh),
		UpdatedAt:       now,
	}

	e.cancelBackgroundLocked()
	e.moveSeq++
	moveCtx, moveCancel := context.WithCancel(e.ctx)
	e.moveCancel = moveCancel
	e.wg.Add(1)
	go e.animate(moveCtx, e.moveSeq, p.queues)

	if e.verifier != nil && len(fresh) > 0 {
		verifyCtx, verifyCancel := context.WithCancel(e.ctx)
		e.verifyCancel = verifyCancel
		e.wg.Add(1)
		go e.backfill(verifyCtx, token, fresh)
	}

	e.updateGaugesLocked()
	metrics.RecordRefresh(e.now().Sub(start), nil)

	moves := 0
	for _, q := range p.queues {
		moves += len(q.steps)
	}
	logging.Info().
		Int("fetched", len(items)).
		Int("added", len(fresh)).
		Int("moves", moves).
		Int("arrows", len(p.arrows)).
		Int("history", len(merged)).
		Msg("Intel batch fused")

	return &RefreshResult{
		Fetched: len(items),
		Added:   len(fresh),
		Moves:   moves,
		Arrows:  len(p.arrows),
	}, nil
}

// tagBatch drops items without a URL or with a URL seen earlier in the
// batch, and gives each kept item a batch-unique id so historical items
// are never overwritten by later refreshes.
func tagBatch(items []intel.NewsItem, now time.Time) []intel.NewsItem {
	batchID := "b:" + strconv.FormatInt(now.UnixMilli(), 10)
	seen := make(map[string]bool, len(items))
	out := make([]intel.NewsItem, 0, len(items))
	for _, item := range items {
		if item.URL == "" || seen[item.URL] {
			continue
		}
		seen[item.URL] = true
		item.ID = item.ID + ":" + batchID + ":" + strconv.Itoa(len(out))
		out = append(out, item)
	}
	return out
}

func (e *Engine) cancelBackgroundLocked() {
	if e.moveCancel != nil {
		e.moveCancel()
		e.moveCancel = nil
	}
	if e.verifyCancel != nil {
		e.verifyCancel()
		e.verifyCancel = nil
	}
}

func (e *Engine) updateGaugesLocked() {
	metrics.UpdateFusionGauges(len(e.state.News), len(e.state.Units), len(e.state.Arrows))
}
