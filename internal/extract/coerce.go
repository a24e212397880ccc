package extract

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/places"
)

const (
	evidenceMaxLen    = 120
	summaryPreviewLen = 220
	descriptionLen    = 300
)

var nan = math.NaN()

var categoryRules = []struct {
	category intel.Category
	pattern  *regexp.Regexp
}{
	{intel.CategoryConflict, regexp.MustCompile(`strike|missile|drone|attack|war|battle|shell|air\s*raid|invasion|ceasefire|hostage|terror|military`)},
	{intel.CategoryPolitics, regexp.MustCompile(`election|parliament|president|prime\s*minister|diplomacy|sanction|treaty|protest|policy|vote`)},
	{intel.CategoryEconomy, regexp.MustCompile(`market|stocks|inflation|gdp|trade|tariff|bank|interest\s*rate|oil\s*price|jobs|econom`)},
	{intel.CategoryDisaster, regexp.MustCompile(`earthquake|hurricane|storm|flood|wildfire|tsunami|eruption|disaster|rescue`)},
	{intel.CategoryHealth, regexp.MustCompile(`outbreak|virus|covid|flu|ebola|vaccine|who|health|disease`)},
	{intel.CategoryTech, regexp.MustCompile(`ai|chip|semiconductor|software|cyber|hack|iphone|google|microsoft|openai|tech`)},
	{intel.CategoryScience, regexp.MustCompile(`nasa|space|rocket|telescope|research|study|science|quantum`)},
	{intel.CategoryEnergy, regexp.MustCompile(`oil|gas|pipeline|refinery|power\s*grid|nuclear|uranium|energy`)},
}

// GuessCategory classifies text by keyword, first matching rule wins.
func GuessCategory(text string) intel.Category {
	t := strings.ToLower(text)
	if strings.TrimSpace(t) == "" {
		return intel.CategoryOther
	}
	for _, r := range categoryRules {
		if r.pattern.MatchString(t) {
			return r.category
		}
	}
	return intel.CategoryOther
}

// asCategory accepts a model-supplied category if it is in the closed set.
func asCategory(v string) (intel.Category, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, c := range intel.Categories {
		if string(c) == v {
			return c, true
		}
	}
	return "", false
}

func asKind(v string) intel.Kind {
	switch k := intel.Kind(v); k {
	case intel.KindEvent, intel.KindMovement, intel.KindInfrastructure, intel.KindBattle, intel.KindUnit:
		return k
	}
	return intel.KindEvent
}

func asSeverity(v string) intel.Severity {
	switch s := intel.Severity(v); s {
	case intel.SeverityLow, intel.SeverityMedium, intel.SeverityHigh:
		return s
	}
	return intel.SeverityMedium
}

// NormalizeEvidence forces evidence to be a substring of snippet. It tries
// an exact match, then a whitespace-collapsed match, and otherwise returns
// the first 120 characters of the snippet.
func NormalizeEvidence(evidence, snippet string) string {
	ev := clip(strings.TrimSpace(evidence), evidenceMaxLen)
	if ev == "" {
		return clip(snippet, evidenceMaxLen)
	}
	if snippet != "" && strings.Contains(snippet, ev) {
		return ev
	}
	compactSnippet := collapseSpace(snippet)
	compactEv := collapseSpace(ev)
	if compactEv != "" && strings.Contains(compactSnippet, compactEv) {
		return clip(compactEv, evidenceMaxLen)
	}
	return clip(snippet, evidenceMaxLen)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// clip truncates s to at most n runes.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// pickBestURL finds an article whose title equals or contains the given
// title (or vice versa), case-insensitively.
func pickBestURL(title string, articles []intel.Article) string {
	t := strings.ToLower(title)
	if t == "" {
		return ""
	}
	for _, a := range articles {
		at := strings.ToLower(a.Title)
		if at != "" && (at == t || strings.Contains(at, t) || strings.Contains(t, at)) {
			return a.Link
		}
	}
	return ""
}

// sanitizeLocation turns a model-supplied location object into a stored
// location. Missing or out-of-range coordinates are replaced by the
// fallback; usedFallback reports whether that happened.
func sanitizeLocation(raw map[string]any, fb places.Fallback) (loc intel.Location, usedFallback bool) {
	loc.Name = strings.TrimSpace(getString(raw, "name"))
	if loc.Name == "" {
		loc.Name = fb.Picked
	}
	if loc.Name == "" {
		loc.Name = "Unknown"
	}

	if c, ok := raw["country"].(string); ok {
		loc.Country = strings.TrimSpace(c)
	} else {
		loc.Country = fb.Country
	}

	if coords, ok := getCoordinates(raw, "coordinates"); ok {
		loc.Coordinates = coords
		return loc, false
	}
	loc.Coordinates = fb.Coordinates
	return loc, true
}

// getCoordinates reads a strict [lon, lat] pair of JSON numbers in range.
func getCoordinates(m map[string]any, key string) (intel.Coordinates, bool) {
	arr, ok := m[key].([]any)
	if !ok || len(arr) != 2 {
		return intel.Coordinates{}, false
	}
	lon, ok1 := arr[0].(float64)
	lat, ok2 := arr[1].(float64)
	if !ok1 || !ok2 || !intel.ValidLonLat(lon, lat) {
		return intel.Coordinates{}, false
	}
	return intel.Coordinates{lon, lat}, true
}

func getString(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// getFloat reads a number or numeric string; anything else is NaN.
func getFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	case bool:
		if v {
			return 1
		}
		return 0
	}
	return nan
}

func getMap(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key].(map[string]any)
	return v, ok
}

func getSlice(m map[string]any, key string) []any {
	v, _ := m[key].([]any)
	return v
}
