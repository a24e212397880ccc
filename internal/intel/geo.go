package intel

import (
	"hash/fnv"
	"math"
	"strconv"
)

// IranCenter is the default map center used when nothing better is known.
var IranCenter = Coordinates{53.6880, 32.4279}

// ValidLonLat reports whether lon/lat are finite and in range.
func ValidLonLat(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsNaN(lat) || math.IsInf(lon, 0) || math.IsInf(lat, 0) {
		return false
	}
	return lon >= -180 && lon <= 180 && lat >= -90 && lat <= 90
}

func (c Coordinates) Valid() bool { return ValidLonLat(c[0], c[1]) }

// Round returns the coordinates rounded to the given number of decimals.
func (c Coordinates) Round(decimals int) Coordinates {
	p := math.Pow(10, float64(decimals))
	return Coordinates{math.Round(c[0]*p) / p, math.Round(c[1]*p) / p}
}

// Clamp01 clamps n into [0,1]; NaN becomes 0.
func Clamp01(n float64) float64 {
	if math.IsNaN(n) {
		return 0
	}
	return math.Max(0, math.Min(1, n))
}

// StableNewsID derives a deterministic id from a canonical URL
// (32-bit FNV-1a rendered in base 36).
func StableNewsID(canonicalURL string) string {
	h := fnv.New32a()
	h.Write([]byte(canonicalURL))
	return "news:" + strconv.FormatUint(uint64(h.Sum32()), 36)
}

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }
