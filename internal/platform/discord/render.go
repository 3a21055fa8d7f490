package discord

import (
	"fmt"
	"strings"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

const (
	colorPatch        = 0x2ecc71
	colorUpdate       = 0x3498db
	colorNotification = 0xf1c40f

	maxContentLen = 1900
	maxFieldLen   = 1024
)

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	URL         string       `json:"url,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// renderCardEmbed turns a patch card into one channel embed.
func renderCardEmbed(card *domain.PatchCard) embed {
	e := embed{
		Title: truncate(card.Subject, 256),
		URL:   card.URL,
		Color: colorPatch,
		Fields: []embedField{
			{Name: "Author", Value: orDash(card.Author), Inline: true},
			{Name: "Subsystem", Value: orDash(card.SubsystemName), Inline: true},
		},
	}
	if card.PatchVersion != "" {
		e.Fields = append(e.Fields, embedField{Name: "Version", Value: card.PatchVersion, Inline: true})
	}
	if card.IsSeriesPatch {
		e.Fields = append(e.Fields, embedField{
			Name:   "Series",
			Value:  renderSeriesList(card.SeriesPatches, card.PatchTotal),
			Inline: false,
		})
	}
	if len(card.MatchedFilters) > 0 {
		e.Fields = append(e.Fields, embedField{
			Name:   "Matched filters",
			Value:  truncate(strings.Join(card.MatchedFilters, ", "), maxFieldLen),
			Inline: false,
		})
	}
	e.Fields = append(e.Fields, embedField{
		Name:  "Message-ID",
		Value: truncate("`"+card.MessageIDHeader+"`", maxFieldLen),
	})
	return e
}

func renderSeriesList(patches []domain.SeriesPatchInfo, total int) string {
	if len(patches) == 0 {
		return fmt.Sprintf("0/%d patches seen so far", total)
	}
	var b strings.Builder
	for _, p := range patches {
		line := fmt.Sprintf("%d/%d %s", p.PatchIndex, p.PatchTotal, p.Subject)
		if p.URL != "" {
			line = fmt.Sprintf("[%d/%d](%s) %s", p.PatchIndex, p.PatchTotal, p.URL, p.Subject)
		}
		b.WriteString(truncate(line, 120))
		b.WriteByte('\n')
	}
	return truncate(strings.TrimRight(b.String(), "\n"), maxFieldLen)
}

// renderSubsystemUpdate summarizes one poll cycle for one subsystem.
func renderSubsystemUpdate(result domain.SubsystemResult, maxEntries int) embed {
	e := embed{
		Title: fmt.Sprintf("%s: %d new, %d replies", result.Subsystem, result.NewCount, result.ReplyCount),
		Color: colorUpdate,
	}
	entries := result.Entries
	if maxEntries > 0 && len(entries) > maxEntries {
		entries = entries[:maxEntries]
	}
	var b strings.Builder
	for _, entry := range entries {
		line := entry.Subject
		if entry.URL != "" {
			line = fmt.Sprintf("[%s](%s)", truncate(entry.Subject, 90), entry.URL)
		}
		b.WriteString(truncate(line, 140))
		b.WriteByte('\n')
	}
	if len(result.Entries) > len(entries) {
		b.WriteString(fmt.Sprintf("… and %d more", len(result.Entries)-len(entries)))
	}
	e.Description = truncate(strings.TrimRight(b.String(), "\n"), 2048)
	return e
}

// renderSubPatchOverview renders the overview message for one sub-patch:
// header line plus the indented reply tree.
func renderSubPatchOverview(sub domain.SubPatchOverview) string {
	var b strings.Builder
	if sub.Patch.URL != "" {
		fmt.Fprintf(&b, "**[%d/%d]** [%s](%s)\n", sub.Patch.PatchIndex, sub.Patch.PatchTotal, truncate(sub.Patch.Subject, 120), sub.Patch.URL)
	} else {
		fmt.Fprintf(&b, "**[%d/%d]** %s\n", sub.Patch.PatchIndex, sub.Patch.PatchTotal, truncate(sub.Patch.Subject, 120))
	}

	if len(sub.Hierarchy.Roots) == 0 {
		b.WriteString("_No replies yet._")
		return truncate(b.String(), maxContentLen)
	}

	fmt.Fprintf(&b, "%d replies:\n", len(sub.Replies))
	for _, root := range sub.Hierarchy.Roots {
		writeReplyTree(&b, sub.Hierarchy, root, 0)
	}
	return truncate(strings.TrimRight(b.String(), "\n"), maxContentLen)
}

func writeReplyTree(b *strings.Builder, h domain.ReplyHierarchy, id string, depth int) {
	entry, ok := h.Entries[id]
	if !ok || depth > 8 {
		return
	}
	indent := strings.Repeat("  ", depth)
	marker := "•"
	if depth > 0 {
		marker = "└"
	}
	author := entry.Reply.Author
	if author == "" {
		author = entry.Reply.AuthorEmail
	}
	line := fmt.Sprintf("%s%s %s", indent, marker, orDash(author))
	if entry.Reply.URL != "" {
		line = fmt.Sprintf("%s%s [%s](%s)", indent, marker, orDash(author), entry.Reply.URL)
	}
	b.WriteString(truncate(line, 140))
	b.WriteByte('\n')
	for _, child := range entry.Children {
		writeReplyTree(b, h, child, depth+1)
	}
}

func renderThreadUpdateNotice(threadID, patchCardMessageID string) embed {
	desc := fmt.Sprintf("Thread updated: <#%s>", threadID)
	if patchCardMessageID != "" {
		desc += fmt.Sprintf(" (card message `%s`)", patchCardMessageID)
	}
	return embed{Title: "Thread updated", Description: desc, Color: colorNotification}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
