// Package collect aggregates RSS and Atom feeds into a deduplicated,
// newest-first pool of canonical articles.
package collect

import (
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	jsonProxyTimeout = 7 * time.Second
	rawRelayTimeout  = 7500 * time.Millisecond
	directTimeout    = 7 * time.Second
	healthTimeout    = 900 * time.Millisecond
	aggregateTimeout = 3500 * time.Millisecond
)

// Config selects the endpoints the client may use. Empty URLs disable the
// corresponding path.
type Config struct {
	AggregatorURL string
	JSONProxyURL  string
	RawProxyURL   string
	UserAgent     string
	DisableDirect bool
}

// Client fetches feeds. It is safe for concurrent use.
type Client struct {
	http          *resty.Client
	aggregatorURL string
	strategies    []Strategy
}

// NewClient creates a feed client with the strategy chain described by cfg.
func NewClient(cfg Config) *Client {
	ua := cfg.UserAgent
	if ua == "" {
		ua = "situationroom/1.0 (news aggregator)"
	}
	hc := resty.New().
		SetHeader("User-Agent", ua).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))

	c := &Client{
		http:          hc,
		aggregatorURL: strings.TrimRight(cfg.AggregatorURL, "/"),
	}
	if cfg.JSONProxyURL != "" {
		c.strategies = append(c.strategies, &jsonProxyStrategy{client: hc, baseURL: cfg.JSONProxyURL, timeout: jsonProxyTimeout})
	}
	if cfg.RawProxyURL != "" {
		c.strategies = append(c.strategies, &rawRelayStrategy{client: hc, baseURL: cfg.RawProxyURL, timeout: rawRelayTimeout, attempts: 2})
	}
	if !cfg.DisableDirect {
		c.strategies = append(c.strategies, &directStrategy{client: hc, timeout: directTimeout})
	}
	return c
}

// Strategies returns the names of the configured per-source strategies.
func (c *Client) Strategies() []string {
	names := make([]string, len(c.strategies))
	for i, s := range c.strategies {
		names[i] = s.Name()
	}
	return names
}
