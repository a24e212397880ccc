// Package hotspot buckets news items into a lon/lat grid and ranks the
// cells by recency-, severity- and confidence-weighted score.
package hotspot

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
)

const (
	DefaultCellSize = 4
	DefaultMax      = 12
	DefaultHalfLife = 36 * time.Hour
	futureSkew      = time.Minute
)

// Hotspot is one grid cell's aggregate.
type Hotspot struct {
	ID         string                 `json:"id"`
	Label      string                 `json:"label"`
	Center     intel.Coordinates      `json:"center"`
	Score      float64                `json:"score"`
	Count      int                    `json:"count"`
	Categories map[intel.Category]int `json:"categories"`
}

// Options tunes Derive. Zero values take the defaults.
type Options struct {
	CellSize int
	Max      int
	HalfLife time.Duration
	Now      time.Time
}

// ID returns the grid cell id for coords.
func ID(coords intel.Coordinates, cellSize int) string {
	size := max(1, cellSize)
	x := int(math.Floor((coords.Lon() + 180) / float64(size)))
	y := int(math.Floor((coords.Lat() + 90) / float64(size)))
	return fmt.Sprintf("hs:%d:%d:%d", size, x, y)
}

type aggregate struct {
	id         string
	score      float64
	count      int
	sumLon     float64
	sumLat     float64
	labels     map[string]int
	labelOrder []string
	categories map[intel.Category]int
}

// Derive aggregates items by the target coordinates of each item's most
// confident signal. Items without valid coordinates are skipped. Results are
// sorted by score, then count, and capped at Max.
func Derive(items []intel.NewsItem, opts Options) []Hotspot {
	cellSize := opts.CellSize
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	maxHotspots := opts.Max
	if maxHotspots <= 0 {
		maxHotspots = DefaultMax
	}
	halfLife := opts.HalfLife
	if halfLife <= 0 {
		halfLife = DefaultHalfLife
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	byID := make(map[string]*aggregate)
	var order []*aggregate

	for _, item := range items {
		best := bestSignal(item.Signals)
		if best == nil {
			continue
		}
		coords := best.Target()
		if !coords.Valid() {
			continue
		}

		score := recency(now, parseTimestamp(item.Timestamp), halfLife) *
			severityFactor(best.Severity) *
			intel.Clamp01(best.Confidence)

		id := ID(coords, cellSize)
		agg, ok := byID[id]
		if !ok {
			agg = &aggregate{id: id, labels: make(map[string]int), categories: make(map[intel.Category]int)}
			byID[id] = agg
			order = append(order, agg)
		}

		label := labelFor(item, best)
		if agg.labels[label] == 0 {
			agg.labelOrder = append(agg.labelOrder, label)
		}
		agg.labels[label]++

		cat := item.Category
		if cat == "" {
			cat = intel.CategoryOther
		}
		agg.categories[cat]++

		agg.score += score
		agg.count++
		agg.sumLon += coords.Lon()
		agg.sumLat += coords.Lat()
	}

	out := make([]Hotspot, 0, len(order))
	for _, agg := range order {
		label, top := "Unknown", 0
		for _, l := range agg.labelOrder {
			if agg.labels[l] > top {
				label, top = l, agg.labels[l]
			}
		}
		out = append(out, Hotspot{
			ID:         agg.id,
			Label:      label,
			Center:     intel.Coordinates{agg.sumLon / float64(agg.count), agg.sumLat / float64(agg.count)},
			Score:      agg.score,
			Count:      agg.count,
			Categories: agg.categories,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Count > out[j].Count
	})
	if len(out) > maxHotspots {
		out = out[:maxHotspots]
	}
	return out
}

// bestSignal picks the first signal with the highest clamped confidence.
func bestSignal(signals []intel.Signal) *intel.Signal {
	var best *intel.Signal
	bestScore := -1.0
	for i := range signals {
		if c := intel.Clamp01(signals[i].Confidence); c > bestScore {
			bestScore = c
			best = &signals[i]
		}
	}
	return best
}

func labelFor(item intel.NewsItem, best *intel.Signal) string {
	if len(item.Mentions) > 0 {
		if l := strings.TrimSpace(item.Mentions[0].Name); l != "" {
			return l
		}
	}
	if l := strings.TrimSpace(best.Location.Country); l != "" {
		return l
	}
	if l := strings.TrimSpace(best.Location.Name); l != "" {
		return l
	}
	return "Unknown"
}

func parseTimestamp(ts string) time.Time {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseAny(ts)
	if err != nil {
		return time.Time{}
	}
	return t
}

func severityFactor(s intel.Severity) float64 {
	switch s {
	case intel.SeverityHigh:
		return 2.0
	case intel.SeverityMedium:
		return 1.4
	}
	return 1.0
}

// recency halves every halfLife. Unknown or future timestamps count as fresh.
func recency(now, ts time.Time, halfLife time.Duration) float64 {
	if ts.IsZero() || ts.After(now.Add(futureSkew)) {
		return 1
	}
	age := max(0, now.Sub(ts))
	return math.Pow(0.5, float64(age)/float64(halfLife))
}
