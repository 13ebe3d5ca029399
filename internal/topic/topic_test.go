package topic

import (
	"errors"
	"strings"
	"testing"
)

func Test_Slug(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		want string
	}{
		{"Rust programming language", "rust_programming_language"},
		{"Go (language)", "go_language"},
		{"Go language", "go_language"},
		{"  Quantum   Computing  ", "quantum_computing"},
		{"C++", "c"},
		{"HTTP/2", "http2"},
		{"a", "a"},
	}
	for _, tc := range cases {
		got, err := Slug(tc.name)
		if err != nil {
			t.Fatalf("Slug(%q): %v", tc.name, err)
		}
		if got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func Test_Slug_Deterministic(t *testing.T) {
	t.Parallel()
	names := []string{"Rust programming language", "Ada Lovelace", "φ golden ratio 1.618"}
	for _, name := range names {
		first, err := Slug(name)
		if err != nil {
			t.Fatalf("Slug(%q): %v", name, err)
		}
		for range 5 {
			again, err := Slug(name)
			if err != nil {
				t.Fatalf("Slug(%q): %v", name, err)
			}
			if again != first {
				t.Fatalf("Slug(%q) not deterministic: %q then %q", name, first, again)
			}
		}
	}
}

func Test_Slug_RejectsInvalid(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"blank", "   "},
		{"punctuation only", "!!! ???"},
		{"too long", strings.Repeat("x", MaxNameLength+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Slug(tc.input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Slug(%q): want ValidationError, got %v", tc.input, err)
			}
		})
	}
}

func Test_Slug_LengthBounded(t *testing.T) {
	t.Parallel()
	id, err := Slug(strings.Repeat("ab ", 33)) // 99 chars raw, well over the id bound once joined
	if err != nil {
		t.Fatalf("Slug: %v", err)
	}
	if len(id) > 64 {
		t.Errorf("id length %d exceeds bound", len(id))
	}
	if strings.HasSuffix(id, "_") || strings.HasPrefix(id, "_") {
		t.Errorf("id %q has dangling underscore after truncation", id)
	}
}

func Test_ValidateQuestion(t *testing.T) {
	t.Parallel()
	if err := ValidateQuestion("what is rust?"); err != nil {
		t.Errorf("valid question rejected: %v", err)
	}
	if err := ValidateQuestion("  "); err == nil {
		t.Error("blank question accepted")
	}
	if err := ValidateQuestion(strings.Repeat("q", 501)); err == nil {
		t.Error("oversized question accepted")
	}
}
