// Package answer builds mode-specific prompts and invokes the generation
// backend. Prompt assembly is a pure function of (mode, context, history,
// question) so it can be unit-tested without a model.
package answer

import (
	"fmt"
	"strings"

	"github.com/curio-ai/curio-go/internal/budget"
	"github.com/curio-ai/curio-go/internal/session"
)

// Sentinel is the exact answer returned when strict mode has no context to
// work from. The strict system prompt instructs the model to emit the same
// string, so callers can match on it.
const Sentinel = "I don't have enough information in my knowledge base to answer that question."

// noContextPlaceholder stands in for the context block when retrieval came
// back empty (hybrid mode still calls the model in that case).
const noContextPlaceholder = "No relevant information found in the knowledge base."

// Mode selects the answer-synthesis policy.
type Mode int

const (
	// ModeStrict confines the model to the supplied context; without
	// sufficient context it must answer with Sentinel.
	ModeStrict Mode = iota
	// ModeHybrid lets the model fall back to its own knowledge when the
	// context does not cover the question.
	ModeHybrid
)

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m == ModeHybrid {
		return "hybrid"
	}
	return "strict"
}

// ParseMode maps a config string to a Mode, defaulting to strict.
func ParseMode(s string) Mode {
	if strings.EqualFold(s, "hybrid") {
		return ModeHybrid
	}
	return ModeStrict
}

// SystemPrompt returns the system instruction for the given mode.
func SystemPrompt(mode Mode) string {
	if mode == ModeHybrid {
		return "You are a knowledgeable research assistant. Use the provided context " +
			"when it is relevant to the question, and your own knowledge otherwise. " +
			"Answer naturally without mentioning which source you relied on. " +
			"Be accurate, clear, and concise."
	}
	return "You are a research assistant that answers strictly from the provided context. " +
		"If the context does not contain enough information to answer the question, " +
		"respond with exactly: \"" + Sentinel + "\" " +
		"Do not use any knowledge beyond the context. Be accurate, clear, and concise."
}

// FormatRecent renders history entries as "role: content" lines for the
// prompt's recent-conversation block.
func FormatRecent(entries []session.Entry) string {
	if len(entries) == 0 {
		return ""
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("%s: %s", e.Role, e.Content))
	}
	return strings.Join(lines, "\n")
}

// UserPrompt assembles the user-turn prompt from the context block, an
// optional recent-conversation block, and the question.
func UserPrompt(contextBlock, recentBlock, question string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	if contextBlock == "" {
		b.WriteString(noContextPlaceholder)
	} else {
		b.WriteString(strings.TrimRight(contextBlock, "\n"))
	}
	b.WriteString("\n\n")
	if recentBlock != "" {
		b.WriteString("Recent conversation:\n")
		b.WriteString(recentBlock)
		b.WriteString("\n\n")
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

// BuildPrompts produces the (system, user) prompt pair, trimming the
// recent-history block oldest-first until the whole prompt fits the token
// budget.
func BuildPrompts(mode Mode, contextBlock string, recent []session.Entry, question string, maxTokens int) (string, string) {
	if maxTokens <= 0 {
		maxTokens = budget.DefaultMaxContextTokens
	}
	system := SystemPrompt(mode)
	fixed := system + UserPrompt(contextBlock, "", question)
	recent = budget.TrimEntries(fixed, recent, maxTokens)
	return system, UserPrompt(contextBlock, FormatRecent(recent), question)
}
