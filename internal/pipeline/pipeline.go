package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jacob-sheng/iran-situation-room/internal/collect"
	"github.com/jacob-sheng/iran-situation-room/internal/config"
	"github.com/jacob-sheng/iran-situation-room/internal/database"
	"github.com/jacob-sheng/iran-situation-room/internal/extract"
	"github.com/jacob-sheng/iran-situation-room/internal/fetch"
	"github.com/jacob-sheng/iran-situation-room/internal/fusion"
	"github.com/jacob-sheng/iran-situation-room/internal/geocode"
	"github.com/jacob-sheng/iran-situation-room/internal/hotspot"
	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
)

// ErrRunning is returned by TryRun while another refresh is in progress.
var ErrRunning = errors.New("a refresh is already running")

// StepResult holds the result of a single pipeline step.
type StepResult struct {
	Name    string
	Summary string
	Err     error
}

// Result holds the results of one refresh run.
type Result struct {
	RunID string
	Steps []StepResult
}

// Err returns the first step error, if any.
func (r *Result) Err() error {
	for _, s := range r.Steps {
		if s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// Pipeline wires the RSS, extraction, geocoding and fusion services to the
// database for refresh runs shared by the CLI and the server.
type Pipeline struct {
	cfg      *config.Config
	db       *database.DB
	engine   *fusion.Engine
	verifier *geocode.Verifier
	running  atomic.Bool
}

// New builds the service graph from cfg, loads the persisted geocode cache
// and restores the latest state snapshot.
func New(ctx context.Context, cfg *config.Config, db *database.DB) (*Pipeline, error) {
	feeds := collect.NewClient(collect.Config{
		AggregatorURL: cfg.RSS.AggregatorURL,
		JSONProxyURL:  cfg.RSS.JSONProxyURL,
		RawProxyURL:   cfg.RSS.RawProxyURL,
	})

	var enricher extract.Enricher
	if cfg.RSS.EnrichSnippets {
		enricher = fetch.NewEnricher(0, 0, "")
	}

	service := extract.NewService(feeds, extract.OpenAIFactory, enricher, extract.Config{
		Sources:       cfg.Sources(),
		MaxTotal:      cfg.RSS.MaxTotal,
		Concurrency:   cfg.RSS.Concurrency,
		InitialBudget: cfg.RSS.InitialBudget,
		RefreshBudget: cfg.RSS.RefreshBudget,
	})

	verifier, err := NewVerifier(ctx, cfg, db)
	if err != nil {
		return nil, err
	}

	return newPipeline(ctx, cfg, db, fusion.New(service, verifier, EngineConfig(cfg)), verifier)
}

func newPipeline(ctx context.Context, cfg *config.Config, db *database.DB, engine *fusion.Engine, verifier *geocode.Verifier) (*Pipeline, error) {
	p := &Pipeline{cfg: cfg, db: db, engine: engine, verifier: verifier}
	if err := p.restore(ctx); err != nil {
		return nil, err
	}
	return p, nil
}

// NewVerifier builds a geocode verifier backed by the persisted cache.
func NewVerifier(ctx context.Context, cfg *config.Config, db *database.DB) (*geocode.Verifier, error) {
	cache := geocode.NewCache(db, cfg.Geocode.CacheSize)
	if err := cache.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading geocode cache: %w", err)
	}
	return geocode.NewVerifier(
		geocode.NewNominatimClient(geocode.ClientConfig{
			BaseURL:   cfg.Geocode.BaseURL,
			UserAgent: cfg.Geocode.UserAgent,
			Timeout:   cfg.Geocode.Timeout,
		}),
		geocode.NewScheduler(cfg.Geocode.MinInterval),
		cache,
	), nil
}

// HotspotOptions maps cfg onto the hotspot aggregator options.
func HotspotOptions(cfg *config.Config) hotspot.Options {
	return hotspot.Options{
		CellSize: cfg.Hotspots.CellSize,
		Max:      cfg.Hotspots.Max,
		HalfLife: cfg.Hotspots.HalfLife,
	}
}

// EngineConfig maps cfg onto the fusion engine settings.
func EngineConfig(cfg *config.Config) fusion.Config {
	return fusion.Config{
		Settings:     cfg.LLMSettings(),
		Scope:        intel.Scope(cfg.Fusion.Scope),
		TargetCount:  cfg.Fusion.TargetCount,
		MaxNewsItems: cfg.Fusion.MaxNewsItems,
		StepCount:    cfg.Fusion.StepCount,
		StepDuration: cfg.Fusion.StepDuration,
		VerifyLimit:  cfg.Fusion.VerifyLimit,
		Previews:     cfg.Fusion.Previews,
		SeedUnits:    cfg.Units(),
	}
}

func (p *Pipeline) restore(ctx context.Context) error {
	snap, err := p.db.LatestSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("loading snapshot: %w", err)
	}
	if snap != nil {
		p.engine.Restore(*snap)
		logging.Info().Int("news", len(snap.News)).Int("units", len(snap.Units)).Msg("Restored state snapshot")
	}
	return nil
}

// Engine returns the fusion engine.
func (p *Pipeline) Engine() *fusion.Engine {
	return p.engine
}

// Verifier returns the shared geocode verifier.
func (p *Pipeline) Verifier() *geocode.Verifier {
	return p.verifier
}

// Running reports whether a refresh is in progress.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Hotspots ranks the current news history.
func (p *Pipeline) Hotspots() []hotspot.Hotspot {
	return hotspot.Derive(p.engine.State().News, HotspotOptions(p.cfg))
}

// TryRun runs a refresh unless one is already in progress.
func (p *Pipeline) TryRun(ctx context.Context) (*Result, error) {
	if !p.running.CompareAndSwap(false, true) {
		return nil, ErrRunning
	}
	defer p.running.Store(false)
	return p.run(ctx), nil
}

// Run executes one refresh: fetch and fuse a batch, wait for movement and
// verification to settle, then store a state snapshot.
func (p *Pipeline) Run(ctx context.Context) *Result {
	for !p.running.CompareAndSwap(false, true) {
		select {
		case <-ctx.Done():
			return &Result{Steps: []StepResult{{Name: "Refresh", Err: ctx.Err()}}}
		case <-time.After(100 * time.Millisecond):
		}
	}
	defer p.running.Store(false)
	return p.run(ctx)
}

func (p *Pipeline) run(ctx context.Context) *Result {
	r := &Result{}
	start := time.Now()

	run, err := p.db.StartRun(ctx, p.cfg.Fusion.Scope, start)
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to record refresh start")
	} else {
		r.RunID = run.ID
	}

	// Step 1: Refresh
	logging.Info().Str("run", r.RunID).Str("scope", p.cfg.Fusion.Scope).Msg("Step 1/3: Fetching and fusing intel...")
	res, err := p.engine.Refresh(ctx)
	step := StepResult{Name: "Refresh", Err: err}
	if err == nil {
		step.Summary = summarize(res)
	}
	r.Steps = append(r.Steps, step)
	p.finishRun(ctx, run, res, err)
	if err != nil {
		return r
	}

	// Step 2: Settle
	logging.Info().Str("run", r.RunID).Msg("Step 2/3: Waiting for movement and verification...")
	settleStart := time.Now()
	p.engine.Wait()
	state := p.engine.State()
	r.Steps = append(r.Steps, StepResult{
		Name: "Settle",
		Summary: fmt.Sprintf("%d units, %d arrows, %d events after %s",
			len(state.Units), len(state.Arrows), len(state.Events), time.Since(settleStart).Round(time.Millisecond)),
	})

	// Step 3: Snapshot
	logging.Info().Str("run", r.RunID).Msg("Step 3/3: Storing state snapshot...")
	id, err := p.db.SaveSnapshot(ctx, state)
	step = StepResult{Name: "Snapshot", Err: err}
	if err == nil {
		step.Summary = fmt.Sprintf("Stored snapshot %d (%d news items)", id, len(state.News))
	}
	r.Steps = append(r.Steps, step)

	return r
}

func summarize(res *fusion.RefreshResult) string {
	if res.Stale {
		return "Superseded by a newer refresh"
	}
	return fmt.Sprintf("Fused %d new items (%d fetched), %d unit moves, %d arrows",
		res.Added, res.Fetched, res.Moves, res.Arrows)
}

func (p *Pipeline) finishRun(ctx context.Context, run *database.RefreshRun, res *fusion.RefreshResult, err error) {
	if run == nil {
		return
	}
	now := time.Now()
	run.FinishedAt = &now
	if res != nil {
		run.Fetched, run.Added, run.Moves, run.Stale = res.Fetched, res.Added, res.Moves, res.Stale
	}
	if err != nil {
		msg := err.Error()
		run.Error = &msg
	}
	if err := p.db.FinishRun(ctx, run); err != nil {
		logging.Warn().Err(err).Str("run", run.ID).Msg("Failed to record refresh result")
	}
}

// Close stops background fusion work.
func (p *Pipeline) Close() {
	p.engine.Close()
}

// State returns the engine's current state.
func (p *Pipeline) State() fusion.State {
	return p.engine.State()
}
