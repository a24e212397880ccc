package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/jacob-sheng/iran-situation-room/internal/logging"
	"github.com/jacob-sheng/iran-situation-room/internal/metrics"
)

// DefaultBaseURL is the public Nominatim instance used when none is configured.
const DefaultBaseURL = "https://nominatim.terrestris.de"

// ErrUnavailable wraps transport failures, HTTP error statuses and circuit
// breaker rejections. Results produced while the geocoder is unavailable
// are not cached.
var ErrUnavailable = errors.New("geocoder unavailable")

// Address holds the locality fields of a reverse-geocode answer.
type Address struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Town    string `json:"town"`
	State   string `json:"state"`
	County  string `json:"county"`
}

// Place is a reverse-geocode answer.
type Place struct {
	DisplayName string  `json:"display_name"`
	Address     Address `json:"address"`
}

// Hit is one forward-search candidate. Unparsable coordinates are NaN.
type Hit struct {
	Lon float64
	Lat float64
}

// Geocoder resolves coordinates to places and free text to coordinates.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (*Place, error)
	Search(ctx context.Context, query string) ([]Hit, error)
}

// ClientConfig configures a NominatimClient.
type ClientConfig struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	// BreakerTimeout is how long the breaker stays open before letting a
	// trial request through. Defaults to 30s.
	BreakerTimeout time.Duration
}

// NominatimClient is a Geocoder for the Nominatim jsonv2 API, guarded by a
// circuit breaker so a dead instance fails fast.
type NominatimClient struct {
	http    *resty.Client
	baseURL string
	cb      *gobreaker.CircuitBreaker[[]byte]
}

// NewNominatimClient creates a client.
func NewNominatimClient(cfg ClientConfig) *NominatimClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = "situationroom/1.0 (geocode verification)"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 30 * time.Second
	}

	metrics.GeocodeBreakerState.Set(0)
	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "nominatim",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Geocoder circuit breaker state change")
			metrics.GeocodeBreakerState.Set(stateToFloat(to))
		},
	})

	return &NominatimClient{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("User-Agent", ua).
			SetHeader("Accept", "application/json"),
		baseURL: baseURL,
		cb:      cb,
	}
}

func (c *NominatimClient) get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	body, err := c.cb.Execute(func() ([]byte, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(params).
			Get(c.baseURL + "/" + endpoint)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("geocode %s returned %d", endpoint, resp.StatusCode())
		}
		return resp.Body(), nil
	})
	metrics.RecordGeocodeRequest(endpoint, err)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		logging.Debug().Err(err).Str("endpoint", endpoint).Msg("Geocode request rejected by circuit breaker")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return body, nil
}

// Available reports whether the breaker would let a request through.
func (c *NominatimClient) Available() bool {
	return c.cb.State() != gobreaker.StateOpen
}

// Reverse looks up the place at lat/lon.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	body, err := c.get(ctx, "reverse", map[string]string{
		"format": "jsonv2",
		"lat":    formatCoord(lat),
		"lon":    formatCoord(lon),
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		Place
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decoding reverse response: %w", err)
	}
	if data.Error != "" {
		return nil, fmt.Errorf("reverse geocode: %s", data.Error)
	}
	return &data.Place, nil
}

// Search returns at most one candidate for the free-text query.
func (c *NominatimClient) Search(ctx context.Context, query string) ([]Hit, error) {
	body, err := c.get(ctx, "search", map[string]string{
		"format": "jsonv2",
		"q":      query,
		"limit":  "1",
	})
	if err != nil {
		return nil, err
	}

	var data []struct {
		Lat string `json:"lat"`
		Lon string `json:"lon"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}
	hits := make([]Hit, 0, len(data))
	for _, d := range data {
		hits = append(hits, Hit{Lon: parseCoord(d.Lon), Lat: parseCoord(d.Lat)})
	}
	return hits, nil
}

func parseCoord(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	}
	return 0
}
