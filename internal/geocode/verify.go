// Package geocode verifies extracted locations against a geocoding service
// through a shared, rate-limited queue and a persistent result cache.
package geocode

import (
	"context"
	"errors"
	"strings"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
	"github.com/jacob-sheng/iran-situation-room/internal/metrics"
)

// availability is implemented by geocoders that can tell in advance that a
// request would be rejected.
type availability interface {
	Available() bool
}

// Verifier checks locations. Verification failure is a soft outcome: Verify
// never returns an error.
type Verifier struct {
	geocoder  Geocoder
	scheduler *Scheduler
	cache     *Cache
}

// NewVerifier creates a verifier. All verifiers sharing a scheduler share
// its rate limit.
func NewVerifier(geocoder Geocoder, scheduler *Scheduler, cache *Cache) *Verifier {
	if scheduler == nil {
		scheduler = NewScheduler(DefaultMinInterval)
	}
	if cache == nil {
		cache = NewCache(nil, DefaultPersistSize)
	}
	return &Verifier{geocoder: geocoder, scheduler: scheduler, cache: cache}
}

// Verify checks loc. When the reverse lookup of the rounded coordinates
// agrees on country and place name, the rounded coordinates are returned as
// verified. Otherwise a forward search by "name, country" supplies verified
// coordinates. If both fail, loc is returned unchanged (apart from a country
// learned from the reverse lookup) with Verified false. Outcomes reached while
// the geocoder was unavailable are not cached, so the location is checked
// again once it recovers.
func (v *Verifier) Verify(ctx context.Context, loc intel.Location) Result {
	rounded := loc.Coordinates.Round(4)
	key := cacheKey(loc, rounded)

	if r, ok := v.cache.Get(key); ok {
		metrics.GeocodeCacheHits.Inc()
		return r
	}
	metrics.GeocodeCacheMisses.Inc()

	var ready func() bool
	if a, ok := v.geocoder.(availability); ok {
		ready = a.Available
	}

	var result Result
	var unavailable bool
	err := v.scheduler.DoWhen(ctx, ready, func(ctx context.Context) {
		result, unavailable = v.lookup(ctx, loc, rounded)
	})
	if err == nil {
		err = ctx.Err()
	}
	if errors.Is(err, ErrSkipped) {
		logging.Debug().Str("name", loc.Name).Msg("Geocoder unavailable, skipping verification")
		return Result{Location: loc}
	}
	if err != nil {
		logging.Debug().Err(err).Str("name", loc.Name).Msg("Geocode verification abandoned")
		return Result{Location: loc}
	}

	if !unavailable {
		v.cache.Put(ctx, key, result)
	}
	metrics.RecordVerification(result.Verified)
	logging.Debug().
		Str("name", loc.Name).
		Str("country", loc.Country).
		Bool("verified", result.Verified).
		Bool("unavailable", unavailable).
		Msg("Geocode verification")
	return result
}

// lookup runs the reverse then search checks. The flag reports that a call
// failed because the geocoder was unavailable.
func (v *Verifier) lookup(ctx context.Context, loc intel.Location, rounded intel.Coordinates) (Result, bool) {
	var reverseCountry string
	unavailable := false

	if rounded.Valid() {
		place, err := v.geocoder.Reverse(ctx, rounded.Lat(), rounded.Lon())
		unavailable = errors.Is(err, ErrUnavailable)
		if err == nil && place != nil {
			reverseCountry = place.Address.Country
			countryOK := loc.Country == "" || includesLoose(reverseCountry, loc.Country)
			nameOK := includesLoose(place.DisplayName, loc.Name) ||
				includesLoose(place.Address.City, loc.Name) ||
				includesLoose(place.Address.Town, loc.Name) ||
				includesLoose(place.Address.State, loc.Name) ||
				includesLoose(place.Address.County, loc.Name)
			if countryOK && nameOK {
				return Result{
					Location: intel.Location{Name: loc.Name, Country: firstNonEmpty(loc.Country, reverseCountry), Coordinates: rounded},
					Verified: true,
				}, false
			}
		}
	}

	query := loc.Name
	if loc.Country != "" {
		query = loc.Name + ", " + loc.Country
	}
	hits, err := v.geocoder.Search(ctx, query)
	if errors.Is(err, ErrUnavailable) {
		unavailable = true
	}
	if err == nil && len(hits) > 0 && intel.ValidLonLat(hits[0].Lon, hits[0].Lat) {
		return Result{
			Location: intel.Location{
				Name:        loc.Name,
				Country:     firstNonEmpty(loc.Country, reverseCountry),
				Coordinates: intel.Coordinates{hits[0].Lon, hits[0].Lat},
			},
			Verified: true,
		}, false
	}

	unverified := loc
	unverified.Country = firstNonEmpty(loc.Country, reverseCountry)
	return Result{Location: unverified}, unavailable
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}
