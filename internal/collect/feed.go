package collect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/metrics"
)

// Source is one configured feed.
type Source struct {
	Name  string
	URL   string
	Scope intel.Scope
}

// Strategy fetches the items of one feed in one particular way.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, src Source, limit int) ([]intel.Article, error)
}

var errEmptyFeed = errors.New("feed has no usable items")

// fetchFeedItems runs the strategies in order; the first non-empty result wins.
func fetchFeedItems(ctx context.Context, strategies []Strategy, src Source, limit int) ([]intel.Article, error) {
	var lastErr error
	for _, s := range strategies {
		items, err := s.Fetch(ctx, src, limit)
		if err == nil && len(items) == 0 {
			err = errEmptyFeed
		}
		metrics.RecordRSSFetch(s.Name(), err)
		if err != nil {
			lastErr = err
			continue
		}
		return items, nil
	}
	if lastErr == nil {
		lastErr = errEmptyFeed
	}
	return nil, fmt.Errorf("fetching %s: %w", src.Name, lastErr)
}

// jsonProxyStrategy reads a feed through an rss2json-style JSON proxy.
type jsonProxyStrategy struct {
	client  *resty.Client
	baseURL string
	timeout time.Duration
}

type jsonProxyResponse struct {
	Status string `json:"status"`
	Items  []struct {
		Title         string `json:"title"`
		Link          string `json:"link"`
		PubDate       string `json:"pubDate"`
		PublishedDate string `json:"publishedDate"`
		Date          string `json:"date"`
		Description   string `json:"description"`
		Content       string `json:"content"`
	} `json:"items"`
}

func (s *jsonProxyStrategy) Name() string { return "json_proxy" }

func (s *jsonProxyStrategy) Fetch(ctx context.Context, src Source, limit int) ([]intel.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetQueryParams(map[string]string{
			"rss_url": src.URL,
			"count":   strconv.Itoa(limit),
		}).
		Get(s.baseURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("json proxy returned %d", resp.StatusCode())
	}

	var data jsonProxyResponse
	if err := json.Unmarshal(resp.Body(), &data); err != nil {
		return nil, fmt.Errorf("decoding json proxy response: %w", err)
	}
	if data.Status != "ok" {
		return nil, fmt.Errorf("json proxy status %q", data.Status)
	}

	var out []intel.Article
	for _, it := range data.Items {
		if len(out) >= limit {
			break
		}
		pub := firstNonEmpty(it.PubDate, it.PublishedDate, it.Date)
		body := firstNonEmpty(it.Description, it.Content)
		a := newArticle(src, it.Title, it.Link, pub, body)
		if a.Title == "" || a.Link == "" {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// rawRelayStrategy fetches raw feed XML through a relay proxy, retrying once.
type rawRelayStrategy struct {
	client   *resty.Client
	baseURL  string
	timeout  time.Duration
	attempts int
}

func (s *rawRelayStrategy) Name() string { return "raw_relay" }

func (s *rawRelayStrategy) Fetch(ctx context.Context, src Source, limit int) ([]intel.Article, error) {
	var lastErr error
	for attempt := 0; attempt < s.attempts; attempt++ {
		items, err := s.fetchOnce(ctx, src, limit)
		if err == nil {
			return items, nil
		}
		lastErr = err

		backoff := time.Duration(350+attempt*550) * time.Millisecond
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return nil, lastErr
}

func (s *rawRelayStrategy) fetchOnce(ctx context.Context, src Source, limit int) ([]intel.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "*/*").
		SetQueryParam("url", src.URL).
		Get(s.baseURL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("raw relay returned %d", resp.StatusCode())
	}
	return parseFeedXML(resp.String(), src, limit)
}

// directStrategy fetches the feed URL itself.
type directStrategy struct {
	client  *resty.Client
	timeout time.Duration
}

func (s *directStrategy) Name() string { return "direct" }

func (s *directStrategy) Fetch(ctx context.Context, src Source, limit int) ([]intel.Article, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8").
		Get(src.URL)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("feed returned %d", resp.StatusCode())
	}
	return parseFeedXML(resp.String(), src, limit)
}

// parseFeedXML parses RSS or Atom. Bodies that are not feeds (HTML error
// pages, truncated XML) are rejected.
func parseFeedXML(body string, src Source, limit int) ([]intel.Article, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errEmptyFeed
	}
	feed, err := gofeed.NewParser().ParseString(body)
	if err != nil {
		return nil, fmt.Errorf("parsing feed: %w", err)
	}

	var out []intel.Article
	for _, item := range feed.Items {
		if len(out) >= limit {
			break
		}
		link := item.Link
		if link == "" {
			link = atomLink(item)
		}
		pub := firstNonEmpty(item.Published, item.Updated)
		body := firstNonEmpty(item.Description, item.Content)
		a := newArticle(src, item.Title, link, pub, body)
		if a.Title == "" || a.Link == "" {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func atomLink(item *gofeed.Item) string {
	for _, l := range item.Links {
		if strings.TrimSpace(l) != "" {
			return l
		}
	}
	return ""
}

func newArticle(src Source, title, link, pubDate, body string) intel.Article {
	return intel.Article{
		Title:     strings.TrimSpace(StripHTML(title)),
		Link:      CanonicalizeURL(link),
		PubDate:   strings.TrimSpace(pubDate),
		Snippet:   StripHTML(body),
		Source:    src.Name,
		Scope:     src.Scope,
		SourceURL: src.URL,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
