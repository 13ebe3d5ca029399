// Package chunker splits free text into overlapping word windows for
// embedding, and provides the near-duplicate filter used after retrieval and
// ingestion. Windows are produced lazily so callers can stop early without
// materialising the whole split.
package chunker

import (
	"iter"
	"strings"
)

// fingerprintLen is the number of leading bytes of normalised content used as
// the dedup fingerprint.
const fingerprintLen = 100

// Chunks returns a lazy, restartable sequence of word windows over text.
// Window i covers words [i*step, i*step+size) where step = size - overlap,
// so every word lands in at least one window. Text shorter than size yields
// a single window holding the whole text; blank text yields nothing.
// An overlap >= size is clamped to size/10, matching the ingestion defaults.
func Chunks(text string, size, overlap int) iter.Seq[string] {
	return func(yield func(string) bool) {
		words := strings.Fields(text)
		if len(words) == 0 {
			return
		}
		if size <= 0 {
			size = 100
		}
		if overlap < 0 {
			overlap = 0
		}
		if overlap >= size {
			overlap = size / 10
		}

		step := size - overlap
		for start := 0; start < len(words); start += step {
			end := min(start+size, len(words))
			if !yield(strings.Join(words[start:end], " ")) {
				return
			}
			if end == len(words) {
				return
			}
		}
	}
}

// Fingerprint returns the heuristic near-duplicate key for content: the
// lowercase, whitespace-collapsed prefix of the text. Two chunks with the
// same opening but diverging tails collide — that is a documented limitation
// of the heuristic, not a bug. Do not strengthen it silently; callers rely
// on the looseness.
func Fingerprint(content string) string {
	norm := strings.ToLower(strings.Join(strings.Fields(content), " "))
	if len(norm) > fingerprintLen {
		norm = norm[:fingerprintLen]
	}
	return norm
}

// Dedupe filters items by content fingerprint, keeping the first item
// encountered per fingerprint in input order. content extracts the text to
// fingerprint from each item. The input slice is never mutated.
func Dedupe[T any](items []T, content func(T) string) []T {
	seen := make(map[string]bool, len(items))
	out := make([]T, 0, len(items))
	for _, it := range items {
		fp := Fingerprint(content(it))
		if seen[fp] {
			continue
		}
		seen[fp] = true
		out = append(out, it)
	}
	return out
}
