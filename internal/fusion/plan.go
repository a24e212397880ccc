package fusion

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
)

const arrowColor = "#06b6d4"

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	s = slugRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(s, "-")
}

// moveStep is one queued unit move.
type moveStep struct {
	unitID     string
	from, to   intel.Coordinates
	newsID     string
	source     SourceRef
	confidence float64
	verified   *bool
}

// moveQueue holds one unit's moves in the order they must replay.
type moveQueue struct {
	unitID string
	steps  []moveStep
}

type plan struct {
	units  []Unit
	queues []moveQueue
	arrows []Arrow
}

type flatSignal struct {
	at    int64
	order int
	item  intel.NewsItem
	sig   intel.Signal
}

// planMoves resolves unit identities for the movement and unit signals of
// batch and builds per-unit move queues plus the arrows they draw. units
// is not modified; plan.units is the planned roster including minted units.
func planMoves(units []Unit, batch []intel.NewsItem, now time.Time) plan {
	p := plan{units: append([]Unit(nil), units...)}
	byID := make(map[string]int, len(units))
	byName := make(map[string]int, len(units))
	pos := make(map[string]intel.Coordinates, len(units))
	for i, u := range p.units {
		byID[u.ID] = i
		byName[strings.ToLower(u.Name)] = i
		pos[u.ID] = u.Coordinates
	}

	var flat []flatSignal
	order := 0
	for _, item := range batch {
		at := parseTimestamp(item.Timestamp, int64(order))
		for _, sig := range item.Signals {
			if sig.Kind != intel.KindMovement && sig.Kind != intel.KindUnit {
				continue
			}
			flat = append(flat, flatSignal{at: at, order: order, item: item, sig: sig})
			order++
		}
	}
	sort.SliceStable(flat, func(i, j int) bool {
		if flat[i].at != flat[j].at {
			return flat[i].at < flat[j].at
		}
		return flat[i].order < flat[j].order
	})

	ensureUnit := func(sig intel.Signal, item intel.NewsItem, start intel.Coordinates) string {
		var spec intel.UnitSpec
		if sig.Unit != nil {
			spec = *sig.Unit
		}
		id := strings.TrimSpace(spec.ID)
		name := strings.TrimSpace(firstNonEmpty(spec.Name, sig.Title, item.Title))
		if name == "" {
			name = "Unknown Unit"
		}
		key := strings.ToLower(name)

		if i, ok := byID[id]; ok && id != "" {
			return p.units[i].ID
		}
		if i, ok := byName[key]; ok {
			return p.units[i].ID
		}

		base := id
		if base == "" {
			base = "intel-" + orDefault(slugify(name), "unit")
		}
		next := base
		for n := 2; ; n++ {
			if _, taken := byID[next]; !taken {
				break
			}
			next = base + "-" + strconv.Itoa(n)
		}
		p.units = append(p.units, Unit{
			ID:          next,
			Name:        name,
			Type:        asUnitType(spec.Type),
			Affiliation: asAffiliation(spec.Affiliation),
			Coordinates: start,
			Description: sig.Description,
			PathHistory: []intel.Coordinates{},
		})
		byID[next] = len(p.units) - 1
		byName[key] = len(p.units) - 1
		pos[next] = start
		return next
	}

	queueIdx := make(map[string]int)
	for _, f := range flat {
		item, sig := f.item, f.sig
		src := sourceRef(item, now)
		to := sig.Target()
		var fromLoc *intel.Location
		if sig.Movement != nil {
			fromLoc = sig.Movement.From
		}
		arrow := Arrow{
			ID:         "intel-arrow:" + item.ID + ":" + sig.ID,
			End:        to,
			Color:      arrowColor,
			Label:      sig.Title,
			Sources:    []SourceRef{src},
			NewsID:     item.ID,
			Confidence: intel.Clamp01(sig.Confidence),
			Verified:   sig.Verified,
		}

		// Without a unit identity a movement only draws its direction.
		if sig.Kind == intel.KindMovement && (sig.Unit == nil || (sig.Unit.ID == "" && sig.Unit.Name == "")) {
			if fromLoc != nil && fromLoc.Coordinates != to {
				arrow.Start = fromLoc.Coordinates
				p.arrows = append(p.arrows, arrow)
			}
			continue
		}

		start := to
		if fromLoc != nil {
			start = fromLoc.Coordinates
		}
		unitID := ensureUnit(sig, item, start)
		from := pos[unitID]
		if fromLoc != nil {
			from = fromLoc.Coordinates
		}

		step := moveStep{
			unitID:     unitID,
			from:       from,
			to:         to,
			newsID:     item.ID,
			source:     src,
			confidence: intel.Clamp01(sig.Confidence),
			verified:   sig.Verified,
		}
		qi, ok := queueIdx[unitID]
		if !ok {
			qi = len(p.queues)
			queueIdx[unitID] = qi
			p.queues = append(p.queues, moveQueue{unitID: unitID})
		}
		p.queues[qi].steps = append(p.queues[qi].steps, step)
		pos[unitID] = to

		if from != to {
			arrow.Start = from
			p.arrows = append(p.arrows, arrow)
		}
	}
	return p
}

// parseTimestamp returns ts as Unix milliseconds, or fallback when it
// does not parse.
func parseTimestamp(ts string, fallback int64) int64 {
	if strings.TrimSpace(ts) == "" {
		return fallback
	}
	t, err := dateparse.ParseAny(ts)
	if err != nil {
		return fallback
	}
	return t.UnixMilli()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
