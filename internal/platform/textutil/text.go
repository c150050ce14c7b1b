// Package textutil holds small string helpers shared by services.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeList trims entries, drops empties and duplicates, and keeps first-seen order.
// With fold, entries are lower-cased and compared case-insensitively.
func NormalizeList(values []string, fold bool) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if fold {
			value = strings.ToLower(value)
		}
		if value == "" {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CollapseSpace replaces runs of whitespace with a single space and trims the result.
func CollapseSpace(s string) string {
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Truncate shortens s to at most limit runes, cutting at a word boundary when one is
// close and appending an ellipsis.
func Truncate(s string, limit int) string {
	s = CollapseSpace(s)
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	cut := limit - 1
	head := string(runes[:cut])
	if !unicode.IsSpace(runes[cut]) {
		if space := strings.LastIndexFunc(head, unicode.IsSpace); space > 0 && utf8.RuneCountInString(head[:space]) > limit/2 {
			head = head[:space]
		}
	}
	return strings.TrimRightFunc(head, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsPunct(r) }) + "…"
}
