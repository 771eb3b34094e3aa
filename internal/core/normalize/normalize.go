// Package normalize canonicalizes free text into slug-safe identifiers and
// searchable keyword sets.
package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSlugLen    = 50
	minKeywordLen = 3
)

var (
	stripMarks   = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	nonSlugRe    = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Slugify turns free text into a lowercase, accent-stripped, hyphen-separated
// slug capped at 50 characters. Empty input yields an empty string, and the
// function is idempotent over its own output.
func Slugify(text string) string {
	if text == "" {
		return ""
	}

	stripped, _, err := transform.String(stripMarks, text)
	if err != nil {
		stripped = text
	}

	s := strings.ToLower(stripped)
	s = nonSlugRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(strings.TrimSpace(s), "-")
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}

	return strings.TrimRight(s, "-")
}

// Keywords extracts the searchable token set from free text: the text is
// slugified, split on hyphens, and tokens longer than two characters are kept.
// The result is a set, it carries no ordering.
func Keywords(text string) map[string]struct{} {
	keywords := make(map[string]struct{})
	for _, token := range strings.Split(Slugify(text), "-") {
		if len(token) >= minKeywordLen {
			keywords[token] = struct{}{}
		}
	}
	return keywords
}

// KeywordList returns the keyword set as a sorted slice, for persistence.
func KeywordList(text string) []string {
	return SetToList(Keywords(text))
}

// SetToList flattens a keyword set into a sorted slice.
func SetToList(set map[string]struct{}) []string {
	list := make([]string, 0, len(set))
	for kw := range set {
		list = append(list, kw)
	}
	sort.Strings(list)
	return list
}

// MergeSets unions keyword sets into a new set.
func MergeSets(sets ...map[string]struct{}) map[string]struct{} {
	merged := make(map[string]struct{})
	for _, set := range sets {
		for kw := range set {
			merged[kw] = struct{}{}
		}
	}
	return merged
}
