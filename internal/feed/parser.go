package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// ParsedEntry holds the raw fields extracted from one Atom entry, before
// classification.
type ParsedEntry struct {
	MessageID       string
	MessageIDHeader string
	InReplyToHeader string
	Subject         string
	Author          string
	AuthorEmail     string
	Content         string
	URL             string
	ReceivedAt      time.Time

	// HasTimestamp is false when the feed carried no parseable timestamp;
	// such entries are conservatively treated as new by the poller.
	HasTimestamp bool

	// UUIDRef flags an in_reply_to that came from a urn:uuid threading ref.
	// It is kept as-is but will never match a Message-ID downstream.
	UUIDRef bool
}

var (
	bracketedEmailRe = regexp.MustCompile(`[<\(]([^<>\(\)]+@[^<>\(\)]+\.[^<>\(\)]+)[>\)]`)
	bareEmailRe      = regexp.MustCompile(`([a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,})`)
)

// ExtractEmail pulls the address out of an author string like
// "Alice <a@example.com>" or "Bob (b@example.org)". Returns "" when no
// address is found.
func ExtractEmail(author string) string {
	if m := bracketedEmailRe.FindStringSubmatch(author); m != nil {
		return m[1]
	}
	if m := bareEmailRe.FindStringSubmatch(author); m != nil {
		return m[1]
	}
	return ""
}

// MessageIDFromLink extracts the upstream Message-ID from a lore.kernel.org
// entry link: the last non-empty path segment. Links whose path has fewer
// than two segments yield "" (the archive root, not a message page).
func MessageIDFromLink(link string) string {
	if link == "" {
		return ""
	}
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return ""
	}
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// ParseEntry turns one Atom entry into the raw fields the classifier needs.
func ParseEntry(subsystem string, item *gofeed.Item) ParsedEntry {
	entry := ParsedEntry{
		Subject: item.Title,
		URL:     item.Link,
		Content: entryContent(item),
	}

	if item.Author != nil {
		entry.Author = item.Author.Name
		if entry.Author == "" {
			entry.Author = item.Author.Email
		}
		if item.Author.Email != "" {
			entry.AuthorEmail = item.Author.Email
		}
	}
	if entry.AuthorEmail == "" {
		entry.AuthorEmail = ExtractEmail(entry.Author)
	}

	if ts, ok := entryTimestamp(item); ok {
		entry.ReceivedAt = ts
		entry.HasTimestamp = true
	} else {
		entry.ReceivedAt = time.Now().UTC()
	}

	entry.MessageIDHeader = MessageIDFromLink(item.Link)
	entry.InReplyToHeader, entry.UUIDRef = extractInReplyTo(item)
	entry.MessageID = syntheticMessageID(subsystem, item, entry.ReceivedAt)

	return entry
}

// entryTimestamp returns the entry's updated timestamp as aware UTC, falling
// back to the published timestamp.
func entryTimestamp(item *gofeed.Item) (time.Time, bool) {
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC(), true
	}
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC(), true
	}
	return time.Time{}, false
}

func entryContent(item *gofeed.Item) string {
	if item.Description != "" {
		return item.Description
	}
	return item.Content
}

// extractInReplyTo reads the Atom threading extension. The href attribute is
// preferred (a full URL whose last path segment is the parent Message-ID);
// ref is the fallback and may be a non-resolvable urn:uuid value, which is
// kept but flagged.
func extractInReplyTo(item *gofeed.Item) (string, bool) {
	thr, ok := item.Extensions["thr"]
	if !ok {
		return "", false
	}
	for _, name := range []string{"in-reply-to", "in_reply_to"} {
		for _, ext := range thr[name] {
			if href := ext.Attrs["href"]; href != "" {
				if id := MessageIDFromLink(href); id != "" {
					return id, false
				}
			}
			if ref := ext.Attrs["ref"]; ref != "" {
				return ref, strings.HasPrefix(ref, "urn:uuid:")
			}
		}
	}
	return "", false
}

// syntheticMessageID builds a stable message_id: entry id, entry link, or the
// first 40 hex chars of SHA-256(subsystem|title|unix timestamp).
func syntheticMessageID(subsystem string, item *gofeed.Item, receivedAt time.Time) string {
	if item.GUID != "" {
		return item.GUID
	}
	if item.Link != "" {
		return item.Link
	}
	base := fmt.Sprintf("%s|%s|%d", subsystem, item.Title, receivedAt.Unix())
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:])[:40]
}
