package fusion

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
	"github.com/jacob-sheng/iran-situation-room/internal/metrics"
)

var errStaleMove = errors.New("movement superseded")

// animate replays every unit's queue. Queues of different units run
// concurrently; the steps of one queue run strictly in order.
func (e *Engine) animate(ctx context.Context, token uint64, queues []moveQueue) {
	defer e.wg.Done()

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queues {
		q := q
		g.Go(func() error {
			for _, step := range q.steps {
				if err := e.moveUnit(gctx, token, step); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.FusionMoves.WithLabelValues("stale").Inc()
		logging.Debug().Err(err).Msg("Unit movement stopped")
	}
}

// moveUnit interpolates a unit from step.from to step.to, checking the
// movement token before every frame.
func (e *Engine) moveUnit(ctx context.Context, token uint64, step moveStep) error {
	if step.from == step.to {
		if !e.applyFrame(token, step, step.to, false) {
			return errStaleMove
		}
		metrics.FusionMoves.WithLabelValues("completed").Inc()
		return nil
	}

	steps := e.cfg.StepCount
	frame := e.cfg.StepDuration / time.Duration(steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		pos := intel.Coordinates{
			step.from[0] + (step.to[0]-step.from[0])*t,
			step.from[1] + (step.to[1]-step.from[1])*t,
		}
		if i == steps {
			pos = step.to
		}
		if !e.applyFrame(token, step, pos, i%2 == 0) {
			return errStaleMove
		}
		if frame > 0 {
			timer := time.NewTimer(frame)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	metrics.FusionMoves.WithLabelValues("completed").Inc()
	return nil
}

// applyFrame moves the unit to pos and records the step's provenance. It
// reports false when token is no longer current.
func (e *Engine) applyFrame(token uint64, step moveStep, pos intel.Coordinates, trail bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.moveSeq != token {
		return false
	}

	units := make([]Unit, len(e.state.Units))
	copy(units, e.state.Units)
	for i, u := range units {
		if u.ID != step.unitID {
			continue
		}
		u.Coordinates = pos
		u.NewsID = step.newsID
		u.Sources = mergeSources(u.Sources, step.source)
		u.Confidence = intel.Clamp01(step.confidence)
		if step.verified != nil {
			u.Verified = step.verified
		}
		if trail {
			u.PathHistory = appendPath(u.PathHistory, pos)
		}
		units[i] = u
		break
	}
	e.state.Units = units
	e.state.UpdatedAt = e.now()
	return true
}

// appendPath returns a new trail with pos appended, keeping the last
// maxPathHistory points.
func appendPath(path []intel.Coordinates, pos intel.Coordinates) []intel.Coordinates {
	out := make([]intel.Coordinates, 0, len(path)+1)
	out = append(out, path...)
	out = append(out, pos)
	if len(out) > maxPathHistory {
		out = out[len(out)-maxPathHistory:]
	}
	return out
}

func mergeSources(existing []SourceRef, add SourceRef) []SourceRef {
	for _, s := range existing {
		if s.URL == add.URL {
			return existing
		}
	}
	out := make([]SourceRef, 0, len(existing)+1)
	out = append(out, existing...)
	return append(out, add)
}
