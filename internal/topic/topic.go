// Package topic derives stable topic identifiers from free-text topic names.
// The id is a lossy lowercase slug: the same display name always maps to the
// same id, but two names differing only in punctuation collide and share a
// collection. That looseness is intentional — "Go (language)" and "Go
// language" refer to the same knowledge base.
package topic

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	// MaxNameLength is the maximum raw display-name length accepted by Slug.
	MaxNameLength = 100

	// maxIDLength bounds the slug after normalisation.
	maxIDLength = 64
)

// ValidationError reports a rejected caller input. It is returned for empty
// or oversized topic names and questions; callers should surface it directly
// without retrying.
type ValidationError struct {
	// Field names the rejected input ("topic", "question").
	Field string
	// Reason is a human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("topic: invalid %s: %s", e.Field, e.Reason)
}

// Topic pairs a derived id with the display name it was derived from.
type Topic struct {
	// ID is the slug used as the vector store collection key.
	ID string
	// DisplayName is the original, human-readable topic name.
	DisplayName string
}

// Slug derives the topic id for a display name. Pure and deterministic:
// lowercase, non-alphanumeric characters stripped, whitespace runs collapsed
// to single underscores, truncated to a bounded length.
func Slug(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", &ValidationError{Field: "topic", Reason: "name must not be empty"}
	}
	if len(trimmed) > MaxNameLength {
		return "", &ValidationError{
			Field:  "topic",
			Reason: fmt.Sprintf("name exceeds %d characters", MaxNameLength),
		}
	}

	var b strings.Builder
	lastUnderscore := true // suppress a leading underscore
	for _, r := range strings.ToLower(trimmed) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastUnderscore = false
		case unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		default:
			// punctuation dropped entirely — this is where collisions come from
		}
	}

	id := strings.Trim(b.String(), "_")
	if id == "" {
		return "", &ValidationError{Field: "topic", Reason: "name contains no letters or digits"}
	}
	if len(id) > maxIDLength {
		id = strings.Trim(id[:maxIDLength], "_")
	}
	return id, nil
}

// New validates the display name and returns the Topic with its derived id.
func New(name string) (Topic, error) {
	id, err := Slug(name)
	if err != nil {
		return Topic{}, err
	}
	return Topic{ID: id, DisplayName: strings.TrimSpace(name)}, nil
}

// ValidateQuestion checks a user question against the same bounds the topic
// name uses, with a larger ceiling. Returns a ValidationError on failure.
func ValidateQuestion(q string) error {
	trimmed := strings.TrimSpace(q)
	if trimmed == "" {
		return &ValidationError{Field: "question", Reason: "question must not be empty"}
	}
	if len(trimmed) > 500 {
		return &ValidationError{Field: "question", Reason: "question exceeds 500 characters"}
	}
	return nil
}
