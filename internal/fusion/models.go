package fusion

import (
	"time"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
)

type UnitType string

const (
	UnitMilitary UnitType = "military"
	UnitNaval    UnitType = "naval"
	UnitAir      UnitType = "air"
	UnitBase     UnitType = "base"
)

type Affiliation string

const (
	AffiliationIran   Affiliation = "iran"
	AffiliationUS     Affiliation = "us"
	AffiliationAllied Affiliation = "allied"
	AffiliationIsrael Affiliation = "israel"
	AffiliationOther  Affiliation = "other"
)

type InfraType string

const (
	InfraOil          InfraType = "oil"
	InfraNuclear      InfraType = "nuclear"
	InfraMilitaryBase InfraType = "military_base"
	InfraCivilian     InfraType = "civilian"
)

type InfraStatus string

const (
	StatusIntact    InfraStatus = "intact"
	StatusDamaged   InfraStatus = "damaged"
	StatusDestroyed InfraStatus = "destroyed"
)

type BattleType string

const (
	BattleKill    BattleType = "kill"
	BattleStrike  BattleType = "strike"
	BattleCapture BattleType = "capture"
)

// SourceRef records the provenance of a map entity.
type SourceRef struct {
	Name      string `json:"name"`
	URL       string `json:"url"`
	Timestamp string `json:"timestamp"`
}

// Unit is a tracked force on the map. Identity is its ID; Name is matched
// case-insensitively when a report carries no id.
type Unit struct {
	ID          string              `json:"id"`
	Name        string              `json:"name"`
	Type        UnitType            `json:"type"`
	Affiliation Affiliation         `json:"affiliation"`
	Coordinates intel.Coordinates   `json:"coordinates"`
	Description string              `json:"description,omitempty"`
	Velocity    *intel.Coordinates  `json:"velocity,omitempty"`
	PathHistory []intel.Coordinates `json:"pathHistory,omitempty"`
	Sources     []SourceRef         `json:"sources,omitempty"`
	NewsID      string              `json:"newsId,omitempty"`
	Confidence  float64             `json:"confidence,omitempty"`
	Verified    *bool               `json:"verified,omitempty"`
}

// Event is a per-signal marker. Movement and unit signals also produce one
// so every news item stays selectable after its unit moves on.
type Event struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Date        string            `json:"date"`
	Description string            `json:"description"`
	Severity    intel.Severity    `json:"severity"`
	Coordinates intel.Coordinates `json:"coordinates"`
	Sources     []SourceRef       `json:"sources,omitempty"`
	NewsID      string            `json:"newsId,omitempty"`
	Confidence  float64           `json:"confidence"`
	Verified    *bool             `json:"verified,omitempty"`
}

type Infrastructure struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Type        InfraType         `json:"type"`
	Country     string            `json:"country"`
	Status      InfraStatus       `json:"status"`
	Description string            `json:"description,omitempty"`
	Coordinates intel.Coordinates `json:"coordinates"`
	Sources     []SourceRef       `json:"sources,omitempty"`
	NewsID      string            `json:"newsId,omitempty"`
	Confidence  float64           `json:"confidence"`
	Verified    *bool             `json:"verified,omitempty"`
}

type BattleResult struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Type        BattleType        `json:"type"`
	Date        string            `json:"date"`
	Description string            `json:"description"`
	Coordinates intel.Coordinates `json:"coordinates"`
	Sources     []SourceRef       `json:"sources,omitempty"`
	NewsID      string            `json:"newsId,omitempty"`
	Confidence  float64           `json:"confidence"`
	Verified    *bool             `json:"verified,omitempty"`
}

// Arrow is a sourced movement from Start to End. Its ID is derived from
// the news item and signal so verification can retarget End in place.
type Arrow struct {
	ID         string            `json:"id"`
	Start      intel.Coordinates `json:"start"`
	End        intel.Coordinates `json:"end"`
	Color      string            `json:"color"`
	Label      string            `json:"label,omitempty"`
	Sources    []SourceRef       `json:"sources,omitempty"`
	NewsID     string            `json:"newsId,omitempty"`
	Confidence float64           `json:"confidence"`
	Verified   *bool             `json:"verified,omitempty"`
}

// State is an immutable view of the engine. Every transition replaces
// whole collections, so a State obtained from Engine.State is never
// modified afterwards.
type State struct {
	News            []intel.NewsItem `json:"news"`
	Previews        []intel.NewsItem `json:"previews,omitempty"`
	Units           []Unit           `json:"units"`
	Events          []Event          `json:"events"`
	Infrastructure  []Infrastructure `json:"infrastructure"`
	BattleResults   []BattleResult   `json:"battleResults"`
	Arrows          []Arrow          `json:"arrows"`
	LatestBatchSize int              `json:"latestBatchSize"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// RefreshResult summarizes one Refresh call.
type RefreshResult struct {
	Fetched int
	Added   int
	Moves   int
	Arrows  int
	Stale   bool
}
