package extract

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jacob-sheng/iran-situation-room/internal/intel"
)

const snippetPromptLen = 500

const promptSchema = `Each news item MUST be an object with keys:
- id (string)
- title (string)
- summary (string, 1-2 sentences)
- category (string, one of: conflict|politics|economy|disaster|health|tech|science|energy|other)
- source (string, MUST match the source name of the chosen url)
- url (string, MUST be one of the provided RSS links)
- timestamp (string, ISO-like date or best-effort)
- signals (array, at least 1 element)

Each signal MUST be an object with keys:
- id (string)
- kind ("event" | "movement" | "infrastructure" | "battle" | "unit")
- title (string)
- description (string)
- severity ("low" | "medium" | "high")
- location (object): { name (string), country (string optional), coordinates ([lon, lat]) }
- evidence (string, MUST be copied as a direct substring from the provided article snippet, <= 120 chars)
- confidence (number 0..1)

Optional keys (use them when relevant):
- movement (object) for kind="movement": { from?: location, to: location }
- unit (object) for kind="movement" or kind="unit": { id?: string, name?: string, type?: "military"|"naval"|"air"|"base", affiliation?: "iran"|"us"|"allied"|"israel"|"other" }
- infra (object) for kind="infrastructure": { name?: string, type?: "oil"|"nuclear"|"military_base"|"civilian", status?: "intact"|"damaged"|"destroyed" }
- battle (object) for kind="battle": { type?: "kill"|"strike"|"capture" }

Notes:
- coordinates MUST be [longitude, latitude].
- url MUST come from the provided RSS links list. Do not invent URLs.
- Keep url and source exactly as provided for each article.
- If kind="movement", include movement.to (it can be the same as location).
- If you are unsure about the exact city, use the best country/region mentioned in the article and provide coordinates near its capital.
- Do not include any markdown formatting like ` + "```json."

// systemPrompt describes the output schema for a batch of n articles.
func systemPrompt(n int) string {
	var b strings.Builder
	b.WriteString("You are a real-time intelligence analyst.\n")
	fmt.Fprintf(&b, "You will be given %d RSS articles about global breaking news from multiple sources.\n", n)
	fmt.Fprintf(&b, "Generate exactly %d news items (one per provided RSS article) and return ONLY a valid JSON array (no markdown).\n\n", n)
	b.WriteString(promptSchema)
	return b.String()
}

type promptArticle struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	URL       string      `json:"url"`
	Timestamp string      `json:"timestamp"`
	Snippet   string      `json:"snippet"`
	Source    string      `json:"source"`
	Scope     intel.Scope `json:"scope"`
}

type promptPayload struct {
	RSS            []promptArticle `json:"rss"`
	AllowedURLs    []string        `json:"allowed_urls"`
	AllowedSources []string        `json:"allowed_sources"`
}

// userMessage lists every article plus the exhaustive allowed URL and
// source sets.
func userMessage(articles []intel.Article) (string, error) {
	p := promptPayload{
		RSS:            make([]promptArticle, 0, len(articles)),
		AllowedURLs:    make([]string, 0, len(articles)),
		AllowedSources: []string{},
	}
	seen := make(map[string]bool)
	for _, a := range articles {
		p.RSS = append(p.RSS, promptArticle{
			ID:        fmt.Sprintf("rss-%d", a.Index),
			Title:     a.Title,
			URL:       a.Link,
			Timestamp: a.PubDate,
			Snippet:   clip(a.Snippet, snippetPromptLen),
			Source:    a.Source,
			Scope:     a.Scope,
		})
		p.AllowedURLs = append(p.AllowedURLs, a.Link)
		if a.Source != "" && !seen[a.Source] {
			seen[a.Source] = true
			p.AllowedSources = append(p.AllowedSources, a.Source)
		}
	}
	sort.Strings(p.AllowedSources)

	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshaling prompt payload: %w", err)
	}
	return "RSS_ARTICLES_JSON:\n" + string(data), nil
}
