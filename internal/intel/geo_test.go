package intel

import (
	"math"
	"strings"
	"testing"
)

func TestValidLonLat(t *testing.T) {
	if !ValidLonLat(51.67, 32.65) {
		t.Error("expected Isfahan coordinates to be valid")
	}
	if !ValidLonLat(-180, 90) {
		t.Error("expected boundary coordinates to be valid")
	}
	for _, c := range [][2]float64{{999, 999}, {181, 0}, {0, -91}, {math.NaN(), 0}, {math.Inf(1), 0}} {
		if ValidLonLat(c[0], c[1]) {
			t.Errorf("expected %v to be invalid", c)
		}
	}
}

func TestRound(t *testing.T) {
	got := Coordinates{51.666666, 32.653912}.Round(4)
	if got != (Coordinates{51.6667, 32.6539}) {
		t.Errorf("expected [51.6667 32.6539], got %v", got)
	}
}

func TestClamp01(t *testing.T) {
	if Clamp01(1.7) != 1 || Clamp01(-0.2) != 0 || Clamp01(0.4) != 0.4 || Clamp01(math.NaN()) != 0 {
		t.Error("Clamp01 did not clamp into [0,1]")
	}
}

func TestStableNewsID(t *testing.T) {
	a := StableNewsID("https://example.com/a")
	b := StableNewsID("https://example.com/a")
	c := StableNewsID("https://example.com/b")
	if a != b {
		t.Errorf("expected identical ids, got %q and %q", a, b)
	}
	if a == c {
		t.Error("expected different URLs to produce different ids")
	}
	if !strings.HasPrefix(a, "news:") {
		t.Errorf("expected news: prefix, got %q", a)
	}
	// FNV-1a of the empty string is the offset basis 2166136261.
	if got := StableNewsID(""); got != "news:ztntfp" {
		t.Errorf("expected news:ztntfp, got %q", got)
	}
}

func TestBestSignal(t *testing.T) {
	item := NewsItem{Signals: []Signal{{ID: "a", Confidence: 0.2}, {ID: "b", Confidence: 0.9}, {ID: "c", Confidence: 0.5}}}
	if best := item.BestSignal(); best == nil || best.ID != "b" {
		t.Errorf("expected signal b, got %v", best)
	}
	if (NewsItem{}).BestSignal() != nil {
		t.Error("expected nil for item without signals")
	}
}

func TestSignalTarget(t *testing.T) {
	s := Signal{Location: Location{Coordinates: Coordinates{1, 1}}}
	if s.Target() != (Coordinates{1, 1}) {
		t.Errorf("expected location target, got %v", s.Target())
	}
	s.Movement = &Movement{To: Location{Coordinates: Coordinates{2, 2}}}
	if s.Target() != (Coordinates{2, 2}) {
		t.Errorf("expected movement target, got %v", s.Target())
	}
}
