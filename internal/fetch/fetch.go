// Package fetch fills in empty article snippets from the article page using
// readability extraction.
package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
	"github.com/jacob-sheng/iran-situation-room/internal/logging"
)

const (
	defaultTimeout = 10 * time.Second
	maxSnippetLen  = 500
	minTextLen     = 100
	maxBodyBytes   = 4 << 20
)

// Result holds the results of one enrichment run.
type Result struct {
	Enriched        int
	AlreadyHadText  int
	Failed          int
	SkippedByDomain int
}

// Enricher fetches article pages via HTTP and extracts readable text.
type Enricher struct {
	client    *http.Client
	userAgent string
	maxPages  int
}

// NewEnricher creates an enricher. maxPages caps how many pages one run may
// request.
func NewEnricher(timeout time.Duration, maxPages int, userAgent string) *Enricher {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	if maxPages <= 0 {
		maxPages = 8
	}
	if userAgent == "" {
		userAgent = "situationroom/1.0 (news aggregator)"
	}
	return &Enricher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxPages:  maxPages,
	}
}

// EnrichSnippets fills empty snippets in place. A domain that answers with an
// HTTP error is skipped for the rest of the run.
func (e *Enricher) EnrichSnippets(ctx context.Context, articles []intel.Article) *Result {
	result := &Result{}
	failedDomains := make(map[string]struct{})
	requested := 0

	for i := range articles {
		a := &articles[i]
		if strings.TrimSpace(a.Snippet) != "" {
			result.AlreadyHadText++
			continue
		}
		if requested >= e.maxPages || ctx.Err() != nil {
			break
		}

		domain := ""
		if u, err := url.Parse(a.Link); err == nil {
			domain = strings.ToLower(u.Host)
		}
		if _, failed := failedDomains[domain]; failed {
			result.SkippedByDomain++
			continue
		}

		requested++
		text, err := e.fetchText(ctx, a.Link)
		if err != nil {
			result.Failed++
			if domain != "" {
				failedDomains[domain] = struct{}{}
			}
			logging.Debug().Err(err).Str("url", a.Link).Str("domain", domain).Msg("HTTP error, skipping remaining pages from domain")
			continue
		}
		if text == "" {
			result.Failed++
			logging.Debug().Str("url", a.Link).Msg("No extractable content")
			continue
		}
		a.Snippet = clip(text, maxSnippetLen)
		result.Enriched++
	}

	if result.Enriched > 0 || result.Failed > 0 {
		logging.Info().
			Int("enriched", result.Enriched).
			Int("failed", result.Failed).
			Msg("Snippet enrichment complete")
	}
	return result
}

func (e *Enricher) fetchText(ctx context.Context, articleURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", nil
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", nil
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", nil
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if len(text) > minTextLen {
		return text, nil
	}
	return "", nil
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
