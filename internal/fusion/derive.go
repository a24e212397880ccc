package fusion

import (
	"strings"
	"time"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
)

type layers struct {
	events         []Event
	infrastructure []Infrastructure
	battleResults  []BattleResult
}

func sourceRef(item intel.NewsItem, now time.Time) SourceRef {
	name := item.Source
	if name == "" {
		name = "Unknown source"
	}
	return SourceRef{Name: name, URL: item.URL, Timestamp: itemDate(item, now)}
}

func itemDate(item intel.NewsItem, now time.Time) string {
	if item.Timestamp != "" {
		return item.Timestamp
	}
	return now.UTC().Format(time.RFC3339)
}

// deriveLayers builds display markers for every signal in news.
func deriveLayers(news []intel.NewsItem, now time.Time) layers {
	var out layers
	for _, item := range news {
		src := sourceRef(item, now)
		date := itemDate(item, now)
		for _, sig := range item.Signals {
			coords := sig.Target()
			switch sig.Kind {
			case intel.KindInfrastructure:
				out.infrastructure = append(out.infrastructure, Infrastructure{
					ID:          "intel-infra:" + item.ID + ":" + sig.ID,
					Name:        infraName(sig),
					Type:        infraType(sig),
					Country:     orDefault(sig.Location.Country, "Unknown"),
					Status:      infraStatus(sig),
					Description: sig.Description,
					Coordinates: coords,
					Sources:     []SourceRef{src},
					NewsID:      item.ID,
					Confidence:  intel.Clamp01(sig.Confidence),
					Verified:    sig.Verified,
				})
			case intel.KindBattle:
				out.battleResults = append(out.battleResults, BattleResult{
					ID:          "intel-battle:" + item.ID + ":" + sig.ID,
					Title:       sig.Title,
					Type:        battleType(sig),
					Date:        date,
					Description: sig.Description,
					Coordinates: coords,
					Sources:     []SourceRef{src},
					NewsID:      item.ID,
					Confidence:  intel.Clamp01(sig.Confidence),
					Verified:    sig.Verified,
				})
			case intel.KindEvent, intel.KindMovement, intel.KindUnit:
				out.events = append(out.events, Event{
					ID:          "intel-event:" + item.ID + ":" + sig.ID,
					Title:       sig.Title,
					Date:        date,
					Description: sig.Description,
					Severity:    sig.Severity,
					Coordinates: coords,
					Sources:     []SourceRef{src},
					NewsID:      item.ID,
					Confidence:  intel.Clamp01(sig.Confidence),
					Verified:    sig.Verified,
				})
			}
		}
	}
	return out
}

func infraName(sig intel.Signal) string {
	if sig.Infra != nil && sig.Infra.Name != "" {
		return sig.Infra.Name
	}
	return orDefault(sig.Title, "Infrastructure")
}

func infraType(sig intel.Signal) InfraType {
	if sig.Infra != nil && sig.Infra.Type != "" {
		return asInfraType(sig.Infra.Type)
	}
	return GuessInfraType(sig.Title)
}

func infraStatus(sig intel.Signal) InfraStatus {
	if sig.Infra != nil && sig.Infra.Status != "" {
		switch s := InfraStatus(sig.Infra.Status); s {
		case StatusIntact, StatusDamaged, StatusDestroyed:
			return s
		}
	}
	return GuessInfraStatus(sig.Title, sig.Severity)
}

func battleType(sig intel.Signal) BattleType {
	if sig.Battle != nil {
		switch t := BattleType(sig.Battle.Type); t {
		case BattleKill, BattleStrike, BattleCapture:
			return t
		}
	}
	return BattleStrike
}

func asInfraType(s string) InfraType {
	switch t := InfraType(s); t {
	case InfraOil, InfraNuclear, InfraMilitaryBase, InfraCivilian:
		return t
	}
	return InfraMilitaryBase
}

func asUnitType(s string) UnitType {
	switch t := UnitType(s); t {
	case UnitMilitary, UnitNaval, UnitAir, UnitBase:
		return t
	}
	return UnitMilitary
}

func asAffiliation(s string) Affiliation {
	switch a := Affiliation(s); a {
	case AffiliationIran, AffiliationUS, AffiliationAllied, AffiliationIsrael, AffiliationOther:
		return a
	}
	return AffiliationOther
}

// GuessInfraType infers an infrastructure type from a headline.
func GuessInfraType(title string) InfraType {
	t := strings.ToLower(title)
	switch {
	case containsAny(t, "oil", "pipeline", "refinery"):
		return InfraOil
	case containsAny(t, "nuclear", "uranium", "enrichment"):
		return InfraNuclear
	case containsAny(t, "airport", "port", "terminal"):
		return InfraCivilian
	}
	return InfraMilitaryBase
}

// GuessInfraStatus infers damage from destructive keywords or severity.
func GuessInfraStatus(title string, severity intel.Severity) InfraStatus {
	t := strings.ToLower(title)
	switch {
	case containsAny(t, "destroy", "flatten", "obliterate"):
		return StatusDestroyed
	case containsAny(t, "damage", "hit", "strike"):
		return StatusDamaged
	case severity == intel.SeverityHigh:
		return StatusDamaged
	}
	return StatusIntact
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
