package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/jacob-sheng/iran-situation-room/internal/fusion"
	"github.com/jacob-sheng/iran-situation-room/internal/hotspot"
)

const digestNewsLimit = 15

var mdEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`,
	"[", `\[`, "]", `\]`, "<", "&lt;", ">", "&gt;", "#", `\#`,
)

// Digest renders the state and ranked hotspots as a markdown summary.
func Digest(state fusion.State, hotspots []hotspot.Hotspot) string {
	var b strings.Builder

	if state.UpdatedAt.IsZero() {
		b.WriteString("_No intel fetched yet._\n\n")
	} else {
		fmt.Fprintf(&b, "_Updated %s. %d new items in the latest batch, %d in history._\n\n",
			state.UpdatedAt.UTC().Format(time.RFC1123), state.LatestBatchSize, len(state.News))
	}

	b.WriteString("## Hotspots\n\n")
	if len(hotspots) == 0 {
		b.WriteString("No located activity.\n\n")
	}
	for i, h := range hotspots {
		fmt.Fprintf(&b, "%d. **%s** (score %.2f, %d items, %.1f/%.1f)\n",
			i+1, escapeMarkdown(h.Label), h.Score, h.Count, h.Center.Lat(), h.Center.Lon())
	}
	if len(hotspots) > 0 {
		b.WriteString("\n")
	}

	b.WriteString("## Latest intel\n\n")
	if len(state.News) == 0 {
		b.WriteString("Nothing yet.\n")
	}
	for i, n := range state.News {
		if i == digestNewsLimit {
			fmt.Fprintf(&b, "\n_%d older items not shown._\n", len(state.News)-digestNewsLimit)
			break
		}
		fmt.Fprintf(&b, "- [%s](%s) (%s", escapeMarkdown(n.Title), n.URL, escapeMarkdown(n.Source))
		if n.Category != "" {
			fmt.Fprintf(&b, ", %s", n.Category)
		}
		b.WriteString(")")
		if s := n.BestSignal(); s != nil && s.Location.Name != "" {
			fmt.Fprintf(&b, ": %s", escapeMarkdown(s.Location.Name))
		}
		b.WriteString("\n")
	}

	return b.String()
}

func escapeMarkdown(s string) string {
	return mdEscaper.Replace(strings.Join(strings.Fields(s), " "))
}
