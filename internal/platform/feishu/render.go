package feishu

import (
	"fmt"
	"strings"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

func header(title, template string) map[string]any {
	return map[string]any{
		"title":    map[string]any{"tag": "plain_text", "content": title},
		"template": template,
	}
}

func mdElement(content string) map[string]any {
	return map[string]any{
		"tag":  "div",
		"text": map[string]any{"tag": "lark_md", "content": content},
	}
}

func renderCard(card *domain.PatchCard) map[string]any {
	var b strings.Builder
	fmt.Fprintf(&b, "**Author:** %s\n**Subsystem:** %s\n", card.Author, card.SubsystemName)
	if card.PatchVersion != "" {
		fmt.Fprintf(&b, "**Version:** %s\n", card.PatchVersion)
	}
	if card.URL != "" {
		fmt.Fprintf(&b, "[View on lore](%s)\n", card.URL)
	}
	if card.IsSeriesPatch {
		fmt.Fprintf(&b, "**Series:** %d patches\n", card.PatchTotal)
		for _, p := range card.SeriesPatches {
			fmt.Fprintf(&b, "%d/%d %s\n", p.PatchIndex, p.PatchTotal, p.Subject)
		}
	}
	if len(card.MatchedFilters) > 0 {
		fmt.Fprintf(&b, "**Matched filters:** %s\n", strings.Join(card.MatchedFilters, ", "))
	}

	return map[string]any{
		"header":   header(card.Subject, "green"),
		"elements": []any{mdElement(strings.TrimRight(b.String(), "\n"))},
	}
}

func renderSubsystemUpdate(result domain.SubsystemResult, maxEntries int) map[string]any {
	entries := result.Entries
	if maxEntries > 0 && len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	var b strings.Builder
	for _, e := range entries {
		if e.URL != "" {
			fmt.Fprintf(&b, "[%s](%s)\n", e.Subject, e.URL)
		} else {
			fmt.Fprintf(&b, "%s\n", e.Subject)
		}
	}
	if len(result.Entries) > len(entries) {
		fmt.Fprintf(&b, "… and %d more\n", len(result.Entries)-len(entries))
	}

	title := fmt.Sprintf("%s: %d new, %d replies", result.Subsystem, result.NewCount, result.ReplyCount)
	return map[string]any{
		"header":   header(title, "blue"),
		"elements": []any{mdElement(strings.TrimRight(b.String(), "\n"))},
	}
}

func renderOverviewSummary(data *domain.ThreadOverviewData) map[string]any {
	var b strings.Builder
	for _, sub := range data.SubPatchOverviews {
		fmt.Fprintf(&b, "%d/%d %s (%d replies)\n", sub.Patch.PatchIndex, sub.Patch.PatchTotal, sub.Patch.Subject, len(sub.Replies))
	}
	return map[string]any{
		"header":   header("Watching: "+data.Card.Subject, "turquoise"),
		"elements": []any{mdElement(strings.TrimRight(b.String(), "\n"))},
	}
}

func renderNotice(title, body string) map[string]any {
	return map[string]any{
		"header":   header(title, "yellow"),
		"elements": []any{mdElement(body)},
	}
}
