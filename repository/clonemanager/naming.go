/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package clonemanager

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// DefaultBranchPrefix prefixes every branch this module pushes.
	DefaultBranchPrefix = "changeagent"

	maxSlugWords = 5
	maxSlugLen   = 40
	maxSubject   = 72
	subjectLead  = "Automated changes: "
)

// BranchName derives "<prefix>/<slug>-<unix seconds>" from the prompt. The
// timestamp avoids collisions between runs with the same prompt.
func BranchName(prefix, prompt string, now time.Time) string {
	if prefix = strings.Trim(prefix, "/ "); prefix == "" {
		prefix = DefaultBranchPrefix
	}
	return fmt.Sprintf("%s/%s-%d", prefix, Slug(prompt), now.Unix())
}

// Slug keeps the first words of the prompt as lower-case [a-z0-9-].
func Slug(prompt string) string {
	var words []string
	for _, w := range strings.Fields(strings.ToLower(prompt)) {
		var sb strings.Builder
		for _, r := range w {
			if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
				sb.WriteRune(r)
			}
		}
		if sb.Len() == 0 {
			continue
		}
		words = append(words, sb.String())
		if len(words) == maxSlugWords {
			break
		}
	}
	slug := strings.Join(words, "-")
	if len(slug) > maxSlugLen {
		slug = strings.TrimRight(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return "change"
	}
	return slug
}

// CommitMessage returns the subject line and body for a prompt. The subject
// is the first prompt line, truncated; the body carries the full prompt.
func CommitMessage(prompt string) (subject, body string) {
	prompt = strings.TrimSpace(prompt)
	first, _, _ := strings.Cut(prompt, "\n")
	subject = truncate(subjectLead+strings.TrimSpace(first), maxSubject)
	return subject, prompt
}

// truncate shortens s to at most n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n-3])) + "..."
}
