package collect

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
)

type aggregatorResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		PubDate string `json:"pubDate"`
		Snippet string `json:"snippet"`
		Source  string `json:"source"`
		Scope   string `json:"scope"`
	} `json:"items"`
}

// fetchAggregator tries the trusted aggregator endpoint. A nil result means
// the fast path is unavailable and the caller should fan out to sources.
func (c *Client) fetchAggregator(ctx context.Context, scope intel.Scope, perSourceLimit, maxTotal int, budget time.Duration) []intel.Article {
	if c.aggregatorURL == "" {
		return nil
	}

	hctx, cancel := context.WithTimeout(ctx, min(healthTimeout, budget))
	health, err := c.http.R().SetContext(hctx).SetHeader("Accept", "application/json").Get(c.aggregatorURL + "/api/rss/health")
	cancel()
	if err != nil || !health.IsSuccess() {
		logging.Debug().Err(err).Msg("Aggregator health probe failed")
		return nil
	}

	actx, cancel := context.WithTimeout(ctx, min(aggregateTimeout, budget))
	defer cancel()
	resp, err := c.http.R().
		SetContext(actx).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"scope":          string(scope),
			"perSourceLimit": strconv.Itoa(perSourceLimit),
			"maxTotal":       strconv.Itoa(maxTotal),
		}).
		Get(c.aggregatorURL + "/api/rss/articles")
	if err != nil || !resp.IsSuccess() {
		logging.Debug().Err(err).Msg("Aggregator articles request failed")
		return nil
	}

	var data aggregatorResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		logging.Debug().Err(err).Msg("Aggregator returned invalid JSON")
		return nil
	}

	var out []intel.Article
	for _, it := range data.Items {
		a := intel.Article{
			Title:   strings.TrimSpace(it.Title),
			Link:    CanonicalizeURL(it.Link),
			PubDate: strings.TrimSpace(it.PubDate),
			Snippet: strings.TrimSpace(it.Snippet),
			Source:  strings.TrimSpace(it.Source),
			Scope:   parseScope(it.Scope, scope),
		}
		if a.Title == "" || a.Link == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}

func parseScope(s string, fallback intel.Scope) intel.Scope {
	for _, sc := range intel.Scopes {
		if string(sc) == s {
			return sc
		}
	}
	return fallback
}
