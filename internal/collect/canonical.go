package collect

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	"golang.org/x/net/html"
)

var trackingParams = []string{"fbclid", "gclid", "igshid", "mc_cid", "mc_eid"}

// CanonicalizeURL removes the fragment and known tracking query parameters.
// It is idempotent.
func CanonicalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		before, _, _ := strings.Cut(raw, "#")
		return strings.TrimSpace(before)
	}
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		q := u.Query()
		removed := false
		for key := range q {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				q.Del(key)
				removed = true
			}
		}
		for _, key := range trackingParams {
			if q.Has(key) {
				q.Del(key)
				removed = true
			}
		}
		if removed {
			u.RawQuery = q.Encode()
		}
	}
	return u.String()
}

// StripHTML drops script and style elements and all markup, returning the
// text with whitespace collapsed.
func StripHTML(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	if !strings.ContainsAny(input, "<&") {
		return strings.Join(strings.Fields(input), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err != nil {
		return strings.Join(strings.Fields(input), " ")
	}
	doc.Find("script, style").Remove()

	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// ParseDate parses a feed date in any common layout. Unparsable input
// yields the zero time.
func ParseDate(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	t, err := dateparse.ParseAny(s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// dateKey returns the publish time in Unix milliseconds and whether the
// date parsed at all. Pre-1970 dates have negative keys but still count as
// dated.
func dateKey(s string) (int64, bool) {
	t := ParseDate(s)
	if t.IsZero() {
		return 0, false
	}
	return t.UnixMilli(), true
}

// extractSourceName derives a display name from a feed URL's host.
func extractSourceName(feedURL string) string {
	u, err := url.Parse(feedURL)
	if err != nil || u.Hostname() == "" {
		return feedURL
	}
	host := strings.ToLower(u.Hostname())

	for _, prefix := range []string{"www.", "rss.", "feeds.", "feeds2."} {
		host = strings.TrimPrefix(host, prefix)
	}

	parts := strings.Split(host, ".")
	name := host
	if len(parts) >= 2 {
		name = parts[len(parts)-2]
	}
	if name == "" {
		return feedURL
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
