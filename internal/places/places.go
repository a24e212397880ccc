// Package places finds country and region mentions in free text and maps
// them to capital-city coordinates for use as a location fallback.
package places

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
)

const maxMentions = 8

var (
	nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

	canonicalByKey = buildCanonicalIndex()
	aliasPatterns  = buildAliasPatterns()
)

type aliasPattern struct {
	alias     string
	canonical string
	re        *regexp.Regexp
}

// Capital is a resolved fallback point.
type Capital struct {
	Name        string
	Coordinates intel.Coordinates
}

func normalizeKey(s string) string {
	s = strings.ReplaceAll(strings.ToLower(s), ".", "")
	return strings.TrimSpace(nonAlnum.ReplaceAllString(s, " "))
}

func buildCanonicalIndex() map[string]string {
	idx := make(map[string]string, len(capitalsByCountry))
	for name := range capitalsByCountry {
		idx[normalizeKey(name)] = name
	}
	return idx
}

// canonicalCountry maps an alias or canonical name to its canonical form,
// or returns "" when unknown.
func canonicalCountry(s string) string {
	key := normalizeKey(s)
	if key == "" {
		return ""
	}
	if c, ok := countryAliases[key]; ok {
		return c
	}
	return canonicalByKey[key]
}

func buildAliasPatterns() []aliasPattern {
	var patterns []aliasPattern
	add := func(alias, canonical string) {
		alias = strings.TrimSpace(alias)
		if alias == "" || canonical == "" {
			return
		}
		// Soft boundaries keep "us" from matching inside "thus".
		re := regexp.MustCompile(`(?i)(^|[^a-z0-9])` + regexp.QuoteMeta(strings.ToLower(alias)) + `([^a-z0-9]|$)`)
		patterns = append(patterns, aliasPattern{alias: alias, canonical: canonical, re: re})
	}

	for name := range capitalsByCountry {
		add(name, name)
	}
	for name := range extraCapitals {
		if c := canonicalCountry(name); c != "" {
			add(name, c)
		} else {
			add(name, name)
		}
	}
	for alias, canonical := range countryAliases {
		add(alias, canonical)
	}

	sort.Slice(patterns, func(i, j int) bool {
		if len(patterns[i].alias) != len(patterns[j].alias) {
			return len(patterns[i].alias) > len(patterns[j].alias)
		}
		return patterns[i].alias < patterns[j].alias
	})
	return patterns
}

// ExtractMentions returns the countries and regions named in text, in order
// of first appearance, one per canonical name, at most eight. Each alias is
// matched on its own, so a name nested in a longer one is reported too:
// "South Sudan" yields both South Sudan and Sudan.
func ExtractMentions(text string) []intel.Mention {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	type hit struct {
		index     int
		canonical string
	}
	var hits []hit
	for _, p := range aliasPatterns {
		loc := p.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		hits = append(hits, hit{index: loc[0], canonical: p.canonical})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].index != hits[j].index {
			return hits[i].index < hits[j].index
		}
		return hits[i].canonical < hits[j].canonical
	})

	var out []intel.Mention
	seen := make(map[string]bool)
	for _, h := range hits {
		if seen[h.canonical] {
			continue
		}
		seen[h.canonical] = true
		out = append(out, intel.Mention{Name: h.canonical, Country: h.canonical})
		if len(out) >= maxMentions {
			break
		}
	}
	return out
}

// ResolveToCapital returns the capital (or representative city) for a
// country or region name, accepting aliases.
func ResolveToCapital(countryOrRegion string) (Capital, bool) {
	canonical := canonicalCountry(countryOrRegion)
	if canonical == "" {
		canonical = strings.TrimSpace(countryOrRegion)
	}
	if c, ok := extraCapitals[canonical]; ok {
		return c, true
	}
	if c, ok := capitalsByCountry[canonical]; ok {
		return c, true
	}
	return Capital{}, false
}

// PickBestMentionForFallback returns the first mention, which is usually
// the one most relevant to the document.
func PickBestMentionForFallback(mentions []intel.Mention) string {
	if len(mentions) == 0 {
		return ""
	}
	if c := strings.TrimSpace(mentions[0].Country); c != "" {
		return c
	}
	return strings.TrimSpace(mentions[0].Name)
}

// Fallback is the precomputed location fallback for one article.
type Fallback struct {
	Mentions    []intel.Mention
	Picked      string
	Country     string
	Coordinates intel.Coordinates
}

// Location renders the fallback as an IntelLocation.
func (f Fallback) Location() intel.Location {
	name := f.Picked
	if name == "" {
		name = f.Country
	}
	if name == "" {
		name = "Unknown"
	}
	return intel.Location{Name: name, Country: f.Country, Coordinates: f.Coordinates}
}

// BuildFallback extracts mentions from title and snippet and resolves the
// best one to a capital, or to center when nothing resolves.
func BuildFallback(title, snippet string, center intel.Coordinates) Fallback {
	mentions := ExtractMentions(title + "\n" + snippet)
	picked := PickBestMentionForFallback(mentions)
	fb := Fallback{Mentions: mentions, Picked: picked, Country: picked, Coordinates: center}
	if picked != "" {
		if c, ok := ResolveToCapital(picked); ok {
			fb.Coordinates = c.Coordinates
		}
	}
	return fb
}
