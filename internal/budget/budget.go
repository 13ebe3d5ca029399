// Package budget provides token budget estimation and history trimming for
// prompt assembly. Because curio supports multiple generation backends with
// different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (English prose). This deliberately
// under-estimates token counts to leave headroom for model-specific overhead.
package budget

import (
	"github.com/curio-ai/curio-go/internal/session"
)

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for English; using 3 would be
	// more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input context budget in tokens.
	// Conservative enough to fit within 8k-context models while leaving
	// room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateEntries returns the estimated total token count for conversation
// entries, summing role + content for each.
func EstimateEntries(entries []session.Entry) int {
	total := 0
	for _, e := range entries {
		// Each entry carries a small per-message overhead (~4 tokens in most APIs).
		total += 4
		total += Estimate(string(e.Role))
		total += Estimate(e.Content)
	}
	return total
}

// TrimEntries removes the oldest entries until the fixed prompt text plus the
// remaining entries fit within maxTokens. fixed is the untouchable part of
// the prompt (system instruction, retrieved context, current question);
// entries are prior conversation turns that may be dropped oldest-first.
//
// Returns the trimmed slice. If even an empty history exceeds the budget, the
// empty slice is returned; fixed text is never shortened here.
func TrimEntries(fixed string, entries []session.Entry, maxTokens int) []session.Entry {
	if len(entries) == 0 {
		return entries
	}

	fixedTokens := Estimate(fixed)

	// History is typically ≤20 entries; a linear scan dropping the oldest
	// is clear and correct.
	for len(entries) > 0 {
		if fixedTokens+EstimateEntries(entries) <= maxTokens {
			break
		}
		entries = entries[1:]
	}
	return entries
}
