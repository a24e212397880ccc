// Package intel holds the data model shared by extraction, verification,
// fusion and hotspot aggregation.
package intel

// Coordinates is a [lon, lat] pair.
type Coordinates [2]float64

func (c Coordinates) Lon() float64 { return c[0] }
func (c Coordinates) Lat() float64 { return c[1] }

type Kind string

const (
	KindEvent          Kind = "event"
	KindMovement       Kind = "movement"
	KindInfrastructure Kind = "infrastructure"
	KindBattle         Kind = "battle"
	KindUnit           Kind = "unit"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Reliability records where a signal's location came from.
type Reliability string

const (
	ReliabilityVerified        Reliability = "verified"
	ReliabilityLLMInferred     Reliability = "llm_inferred"
	ReliabilityCapitalFallback Reliability = "capital_fallback"
)

type Category string

const (
	CategoryConflict Category = "conflict"
	CategoryPolitics Category = "politics"
	CategoryEconomy  Category = "economy"
	CategoryDisaster Category = "disaster"
	CategoryHealth   Category = "health"
	CategoryTech     Category = "tech"
	CategoryScience  Category = "science"
	CategoryEnergy   Category = "energy"
	CategoryOther    Category = "other"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryConflict, CategoryPolitics, CategoryEconomy, CategoryDisaster,
	CategoryHealth, CategoryTech, CategoryScience, CategoryEnergy, CategoryOther,
}

// Scope selects a regional feed catalogue.
type Scope string

const (
	ScopeGlobal      Scope = "global"
	ScopeAmericas    Scope = "americas"
	ScopeEurope      Scope = "europe"
	ScopeAfrica      Scope = "africa"
	ScopeMiddleEast  Scope = "middle_east"
	ScopeAsiaPacific Scope = "asia_pacific"
)

var Scopes = []Scope{ScopeGlobal, ScopeAmericas, ScopeEurope, ScopeAfrica, ScopeMiddleEast, ScopeAsiaPacific}

// Location is a named place. Coordinates are always in range once stored.
type Location struct {
	Name        string      `json:"name"`
	Country     string      `json:"country,omitempty"`
	Coordinates Coordinates `json:"coordinates"`
}

type Movement struct {
	From *Location `json:"from,omitempty"`
	To   Location  `json:"to"`
}

type UnitSpec struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name,omitempty"`
	Type        string `json:"type,omitempty"`
	Affiliation string `json:"affiliation,omitempty"`
}

type InfraSpec struct {
	Name   string `json:"name,omitempty"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
}

type BattleSpec struct {
	Type string `json:"type,omitempty"`
}

// Signal is one atomic, evidence-grounded fact extracted from an article.
type Signal struct {
	ID          string      `json:"id"`
	Kind        Kind        `json:"kind"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Severity    Severity    `json:"severity"`
	Location    Location    `json:"location"`
	Movement    *Movement   `json:"movement,omitempty"`
	Unit        *UnitSpec   `json:"unit,omitempty"`
	Infra       *InfraSpec  `json:"infra,omitempty"`
	Battle      *BattleSpec `json:"battle,omitempty"`
	Evidence    string      `json:"evidence"`
	Confidence  float64     `json:"confidence"`
	Verified    *bool       `json:"verified,omitempty"`
	Reliability Reliability `json:"locationReliability,omitempty"`
}

// Target returns the coordinates a signal points at: the movement
// destination when present, else its location.
func (s Signal) Target() Coordinates {
	if s.Movement != nil {
		return s.Movement.To.Coordinates
	}
	return s.Location.Coordinates
}

// Mention is a country or region named in article text.
type Mention struct {
	Name    string `json:"name"`
	Country string `json:"country,omitempty"`
}

// NewsItem is one ingested article with its extracted signals.
type NewsItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Timestamp string    `json:"timestamp"`
	Signals   []Signal  `json:"signals"`
	Scope     Scope     `json:"scope,omitempty"`
	Category  Category  `json:"category,omitempty"`
	IsPreview bool      `json:"isPreview,omitempty"`
	Mentions  []Mention `json:"mentions,omitempty"`
}

// BestSignal returns the highest-confidence signal, or nil.
func (n NewsItem) BestSignal() *Signal {
	var best *Signal
	for i := range n.Signals {
		if best == nil || n.Signals[i].Confidence > best.Confidence {
			best = &n.Signals[i]
		}
	}
	return best
}

// Article is a canonicalized RSS entry.
type Article struct {
	Index     int    `json:"index"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	PubDate   string `json:"pubDate"`
	Snippet   string `json:"snippet"`
	Source    string `json:"source"`
	Scope     Scope  `json:"scope"`
	SourceURL string `json:"sourceUrl,omitempty"`
}
