// Package metrics exposes Prometheus instrumentation for the ingestion and
// fusion pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Refresh metrics
	RefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "situationroom_refresh_total",
			Help: "Total number of intel refreshes by result",
		},
		[]string{"result"}, // "ok", "error", "stale"
	)

	RefreshDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "situationroom_refresh_duration_seconds",
			Help:    "Duration of intel refreshes in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80},
		},
	)

	// RSS metrics
	RSSFetchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "situationroom_rss_fetch_total",
			Help: "Total number of per-source feed fetches by strategy and result",
		},
		[]string{"strategy", "result"},
	)

	RSSPoolArticles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "situationroom_rss_pool_articles",
			Help: "Unique articles returned by the most recent RSS pool fetch",
		},
	)

	// LLM metrics
	LLMRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "situationroom_llm_requests_total",
			Help: "Total number of chat-completion requests by result",
		},
		[]string{"result"},
	)

	LLMRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "situationroom_llm_request_duration_seconds",
			Help:    "Duration of chat-completion requests in seconds",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160},
		},
	)

	ExtractedSignals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "situationroom_extracted_signals_total",
			Help: "Signals produced by extraction, by location reliability",
		},
		[]string{"reliability"},
	)

	// Geocode metrics
	GeocodeRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "situationroom_geocode_requests_total",
			Help: "Total number of geocoding calls by endpoint and result",
		},
		[]string{"endpoint", "result"}, // endpoint: "reverse", "search"
	)

	GeocodeCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "situationroom_geocode_cache_hits_total",
			Help: "Total number of geocode verification cache hits",
		},
	)

	GeocodeCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "situationroom_geocode_cache_misses_total",
			Help: "Total number of geocode verification cache misses",
		},
	)

	GeocodeVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "situationroom_geocode_verifications_total",
			Help: "Total number of location verifications by outcome",
		},
		[]string{"verified"},
	)

	GeocodeBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "situationroom_geocode_breaker_state",
			Help: "Geocoder circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Fusion metrics
	FusionNewsItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "situationroom_fusion_news_items",
			Help: "News items retained in fusion history",
		},
	)

	FusionUnits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "situationroom_fusion_units",
			Help: "Units tracked by the fusion engine",
		},
	)

	FusionArrows = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "situationroom_fusion_arrows",
			Help: "Movement arrows currently displayed",
		},
	)

	FusionMoves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "situationroom_fusion_moves_total",
			Help: "Unit movement steps by outcome",
		},
		[]string{"result"}, // "completed", "stale"
	)
)

// RecordRefresh records the outcome and duration of one refresh.
func RecordRefresh(duration time.Duration, err error) {
	RefreshDuration.Observe(duration.Seconds())
	if err != nil {
		RefreshTotal.WithLabelValues("error").Inc()
		return
	}
	RefreshTotal.WithLabelValues("ok").Inc()
}

// RecordRSSFetch records one per-source strategy attempt.
func RecordRSSFetch(strategy string, err error) {
	RSSFetchTotal.WithLabelValues(strategy, resultLabel(err)).Inc()
}

// RecordLLMRequest records one chat-completion call.
func RecordLLMRequest(duration time.Duration, err error) {
	LLMRequestDuration.Observe(duration.Seconds())
	LLMRequestTotal.WithLabelValues(resultLabel(err)).Inc()
}

// RecordGeocodeRequest records one outbound geocoding call.
func RecordGeocodeRequest(endpoint string, err error) {
	GeocodeRequestTotal.WithLabelValues(endpoint, resultLabel(err)).Inc()
}

// RecordVerification records the outcome of a location verification.
func RecordVerification(verified bool) {
	if verified {
		GeocodeVerifications.WithLabelValues("true").Inc()
		return
	}
	GeocodeVerifications.WithLabelValues("false").Inc()
}

// UpdateFusionGauges sets the fusion state gauges.
func UpdateFusionGauges(newsItems, units, arrows int) {
	FusionNewsItems.Set(float64(newsItems))
	FusionUnits.Set(float64(units))
	FusionArrows.Set(float64(arrows))
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
