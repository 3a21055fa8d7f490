package feed

import (
	"log"
	"regexp"
	"strconv"
	"strings"

	"github.com/hust-open-atom-club/lkml-bot/internal/domain"
)

var (
	// Bracket containing the word PATCH, e.g. "[PATCH v5 1/4]",
	// "[RFC PATCH]", or the second bracket of "[for-linus][PATCH 0/2]".
	patchBracketRe = regexp.MustCompile(`(?i)\[([^\]]*PATCH[^\]]*)\]`)

	versionRe    = regexp.MustCompile(`(?i)\bv(\d+)\b`)
	indexTotalRe = regexp.MustCompile(`\b(\d+)/(\d+)\b`)
)

// ParsePatchSubject extracts patch metadata from a subject line. Supported
// shapes: "[PATCH] x", "[PATCH v5] x", "[PATCH 1/4] x", "[PATCH v5 1/4] x",
// "[RFC PATCH v2 3/5] x", and the "patch:" prefix. Total stays 0 when the
// subject carries no index/total pair.
func ParsePatchSubject(subject string) domain.PatchInfo {
	var info domain.PatchInfo

	lowered := strings.ToLower(subject)
	hasKeyword := (strings.Contains(lowered, "patch") && strings.Contains(lowered, "[")) ||
		strings.HasPrefix(lowered, "patch:")
	if !hasKeyword {
		return info
	}
	info.IsPatch = true

	m := patchBracketRe.FindStringSubmatch(subject)
	if m == nil {
		return info
	}
	bracket := m[1]

	if vm := versionRe.FindStringSubmatch(bracket); vm != nil {
		info.Version = "v" + vm[1]
	}

	if itm := indexTotalRe.FindStringSubmatch(bracket); itm != nil {
		index, _ := strconv.Atoi(itm[1])
		total, _ := strconv.Atoi(itm[2])
		info.Index = index
		info.Total = total
		info.IsCoverLetter = index == 0
	}

	return info
}

// Classify decides PATCH/REPLY/series membership from the subject and the
// threading headers alone. It is a pure function: identical inputs always
// yield the identical classification.
//
// Rules, in order:
//  1. A "re:" subject prefix always wins and yields REPLY.
//  2. Otherwise the bracketed PATCH token is parsed; no token means the
//     message is neither PATCH nor REPLY.
//  3. An index/total pair makes it a series patch. Without in_reply_to the
//     message is the cover letter and anchors the series on its own
//     Message-ID; with in_reply_to it is a sub-patch pointing at the cover
//     letter.
func Classify(subject, inReplyToHeader, messageIDHeader string) domain.Classification {
	var c domain.Classification

	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		c.IsReply = true
		return c
	}

	info := ParsePatchSubject(subject)
	if !info.IsPatch {
		log.Printf("[Classifier] Failed to parse PATCH from subject: %.100s, in_reply_to=%t, message_id=%s",
			subject, inReplyToHeader != "", messageIDHeader)
		return c
	}

	c.IsPatch = true

	if info.Total >= 1 {
		c.IsSeriesPatch = true
		if inReplyToHeader == "" {
			info.IsCoverLetter = true
			c.SeriesMessageID = messageIDHeader
		} else {
			info.IsCoverLetter = false
			c.SeriesMessageID = inReplyToHeader
		}
	} else {
		info.IsCoverLetter = false
	}

	c.PatchInfo = &info
	return c
}
