package fusion

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/jacob-sheng/iran-situation-room/internal/geocode"
	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
)

type locPath string

const (
	pathLocation locPath = "location"
	pathFrom     locPath = "from"
	pathTo       locPath = "to"
)

// fromWeight discounts movement origins, which models report less reliably.
const fromWeight = 0.8

type candidate struct {
	newsID     string
	signalID   string
	path       locPath
	loc        intel.Location
	confidence float64
}

func (c candidate) key() string {
	return c.newsID + "::" + c.signalID + "::" + string(c.path)
}

// verificationCandidates lists every signal location and movement endpoint
// in batch, highest confidence first, deduplicated by name, country and
// coordinates, and capped at limit.
func verificationCandidates(batch []intel.NewsItem, limit int) []candidate {
	var all []candidate
	for _, item := range batch {
		for _, sig := range item.Signals {
			conf := intel.Clamp01(sig.Confidence)
			all = append(all, candidate{item.ID, sig.ID, pathLocation, sig.Location, conf})
			if sig.Movement != nil {
				if sig.Movement.From != nil {
					all = append(all, candidate{item.ID, sig.ID, pathFrom, *sig.Movement.From, conf * fromWeight})
				}
				all = append(all, candidate{item.ID, sig.ID, pathTo, sig.Movement.To, conf})
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].confidence > all[j].confidence })

	seen := make(map[string]bool, len(all))
	var picked []candidate
	for _, c := range all {
		k := strings.ToLower(c.loc.Name) + "|" + strings.ToLower(c.loc.Country) + "|" +
			strconv.FormatFloat(c.loc.Coordinates[0], 'f', -1, 64) + "," +
			strconv.FormatFloat(c.loc.Coordinates[1], 'f', -1, 64)
		if seen[k] {
			continue
		}
		seen[k] = true
		picked = append(picked, c)
		if len(picked) == limit {
			break
		}
	}
	return picked
}

// backfill verifies the batch's best locations one at a time and merges the
// results into state. It gives up as soon as the refresh token changes.
func (e *Engine) backfill(ctx context.Context, token uint64, batch []intel.NewsItem) {
	defer e.wg.Done()

	results := make(map[string]geocode.Result)
	for _, c := range verificationCandidates(batch, e.cfg.VerifyLimit) {
		if !e.refreshCurrent(token) || ctx.Err() != nil {
			return
		}
		res := e.verifier.Verify(ctx, c.loc)
		if ctx.Err() != nil {
			return
		}
		results[c.key()] = res
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.refreshSeq != token {
		return
	}

	patched := make(map[string]intel.NewsItem, len(batch))
	ends := make(map[string]intel.Coordinates)
	for _, item := range batch {
		item = applyVerification(item, results)
		patched[item.ID] = item
		for _, sig := range item.Signals {
			if sig.Kind == intel.KindMovement || sig.Kind == intel.KindUnit {
				ends["intel-arrow:"+item.ID+":"+sig.ID] = sig.Target()
			}
		}
	}

	news := make([]intel.NewsItem, len(e.state.News))
	for i, n := range e.state.News {
		if p, ok := patched[n.ID]; ok {
			n = p
		}
		news[i] = n
	}
	derived := deriveLayers(news, e.now())

	arrows := make([]Arrow, len(e.state.Arrows))
	for i, a := range e.state.Arrows {
		if end, ok := ends[a.ID]; ok {
			a.End = end
		}
		arrows[i] = a
	}

	e.state.News = news
	e.state.Events = derived.events
	e.state.Infrastructure = derived.infrastructure
	e.state.BattleResults = derived.battleResults
	e.state.Arrows = arrows
	e.state.UpdatedAt = e.now()

	logging.Debug().Int("verified", len(results)).Msg("Verified locations merged")
}

func (e *Engine) refreshCurrent(token uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.refreshSeq == token
}

// applyVerification returns a copy of item with verified coordinates
// merged into its signals. An existing country is never overwritten.
func applyVerification(item intel.NewsItem, results map[string]geocode.Result) intel.NewsItem {
	signals := make([]intel.Signal, len(item.Signals))
	for i, sig := range item.Signals {
		base := item.ID + "::" + sig.ID + "::"
		vLoc, okLoc := results[base+string(pathLocation)]
		vFrom, okFrom := results[base+string(pathFrom)]
		vTo, okTo := results[base+string(pathTo)]

		if okLoc {
			sig.Location = mergeLocation(sig.Location, vLoc)
			sig.Verified = intel.Bool(vLoc.Verified)
		}
		if sig.Movement != nil && (okFrom || okTo) {
			m := *sig.Movement
			if m.From != nil && okFrom {
				from := mergeLocation(*m.From, vFrom)
				m.From = &from
			}
			if okTo {
				m.To = mergeLocation(m.To, vTo)
			}
			sig.Movement = &m
			if sig.Verified == nil {
				if okTo {
					sig.Verified = intel.Bool(vTo.Verified)
				} else {
					sig.Verified = intel.Bool(vFrom.Verified)
				}
			}
		}
		signals[i] = sig
	}
	item.Signals = signals
	return item
}

func mergeLocation(loc intel.Location, res geocode.Result) intel.Location {
	if loc.Country == "" {
		loc.Country = res.Location.Country
	}
	loc.Coordinates = res.Location.Coordinates
	return loc
}
