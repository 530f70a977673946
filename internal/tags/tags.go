// Package tags canonicalizes free-text memo tags and encodes collaborator
// references as specially prefixed tags.
//
// Tags are hierarchical: segments are separated by '/'. Normalization is
// lenient (it only trims and strips leading '#' markers); validation is strict
// (no empty segments, no Unicode punctuation inside a segment).
package tags

import (
	"strings"
	"unicode"
)

const segmentSeparator = "/"

// NormalizeTagName trims raw, strips any number of leading '#' characters at
// every hierarchy level, trims each segment, drops empty segments and joins the
// rest with '/'. It returns "" when nothing is left.
func NormalizeTagName(raw string) string {
	parts := strings.Split(strings.TrimSpace(raw), segmentSeparator)

	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		s := normalizeSegment(p)
		if s == "" {
			continue
		}
		segments = append(segments, s)
	}

	return strings.Join(segments, segmentSeparator)
}

func normalizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "#")
	return strings.TrimSpace(s)
}

// IsValidTagName reports whether every segment of tag is non-empty and free of
// punctuation. Segments are normalized before the check, so "#work" is valid
// while "work/" and "a.b" are not.
func IsValidTagName(tag string) bool {
	if strings.TrimSpace(tag) == "" {
		return false
	}

	for _, p := range strings.Split(strings.TrimSpace(tag), segmentSeparator) {
		s := normalizeSegment(p)
		if s == "" {
			return false
		}
		for _, r := range s {
			if unicode.IsPunct(r) {
				return false
			}
		}
	}
	return true
}

// NormalizeTagList normalizes every tag, drops invalid ones and removes
// duplicates while keeping the first-seen order.
func NormalizeTagList(raw []string) []string {
	result := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, t := range raw {
		name := NormalizeTagName(t)
		if name == "" || !IsValidTagName(name) {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	return result
}

// ExtractFromContent collects inline "#tag" words from memo content,
// trailing punctuation excluded, as a normalized list.
func ExtractFromContent(content string) []string {
	var raw []string
	for _, word := range strings.Fields(content) {
		if !strings.HasPrefix(word, "#") {
			continue
		}
		raw = append(raw, strings.TrimRightFunc(word, unicode.IsPunct))
	}
	return NormalizeTagList(raw)
}

func dedupe(items []string) []string {
	result := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		result = append(result, s)
	}
	return result
}
