package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/curio-ai/curio-go/internal/rag"
)

func Test_NewSerperProvider_RequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewSerperProvider(&SerperConfig{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
	if _, err := NewSerperProvider(&SerperConfig{APIKey: "k"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func Test_SerperProvider_Search(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-API-KEY"); got != "test-key" {
			t.Errorf("X-API-KEY = %q, want %q", got, "test-key")
		}
		var req serperRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Query != "what is rust" {
			t.Errorf("query = %q, want %q", req.Query, "what is rust")
		}
		if req.Num != 5 {
			t.Errorf("num = %d, want 5", req.Num)
		}
		json.NewEncoder(w).Encode(serperResponse{
			Organic: []struct {
				Title         string `json:"title"`
				Snippet       string `json:"snippet"`
				DisplayedLink string `json:"displayedLink"`
				Link          string `json:"link"`
			}{
				{Title: "Rust", Snippet: "A systems language.", DisplayedLink: "wikipedia.org", Link: "https://en.wikipedia.org/wiki/Rust"},
			},
			KnowledgeGraph: &struct {
				Title       string            `json:"title"`
				Description string            `json:"description"`
				Attributes  map[string]string `json:"attributes"`
			}{
				Title:       "Rust",
				Description: "Programming language",
				Attributes:  map[string]string{"Designed by": "Graydon Hoare", "Appeared": "2010"},
			},
		})
	}))
	defer srv.Close()

	provider, err := NewSerperProvider(&SerperConfig{APIKey: "test-key", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("NewSerperProvider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := provider.Search(ctx, "what is rust", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(result.Organic) != 1 {
		t.Fatalf("got %d organic results, want 1", len(result.Organic))
	}
	if result.Organic[0].Description != "A systems language." {
		t.Errorf("description = %q", result.Organic[0].Description)
	}
	if result.Knowledge == nil {
		t.Fatal("expected knowledge graph")
	}
	// Facts come back sorted by key regardless of map order.
	want := []Fact{{Key: "Appeared", Value: "2010"}, {Key: "Designed by", Value: "Graydon Hoare"}}
	if len(result.Knowledge.Facts) != len(want) {
		t.Fatalf("got %d facts, want %d", len(result.Knowledge.Facts), len(want))
	}
	for i, f := range result.Knowledge.Facts {
		if f != want[i] {
			t.Errorf("fact[%d] = %+v, want %+v", i, f, want[i])
		}
	}
}

func Test_SerperProvider_Search_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"message": "invalid api key"})
	}))
	defer srv.Close()

	provider, err := NewSerperProvider(&SerperConfig{APIKey: "bad", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("NewSerperProvider: %v", err)
	}

	_, err = provider.Search(context.Background(), "anything", 3)
	if err == nil {
		t.Fatal("expected error for HTTP 403")
	}
	var upstreamErr *rag.UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("error %T is not an UpstreamError", err)
	}
	if upstreamErr.Collaborator != "search" {
		t.Errorf("collaborator = %q, want %q", upstreamErr.Collaborator, "search")
	}
}

func Test_parseSerper_SkipsEmptyKnowledgeGraph(t *testing.T) {
	t.Parallel()

	body := &serperResponse{
		KnowledgeGraph: &struct {
			Title       string            `json:"title"`
			Description string            `json:"description"`
			Attributes  map[string]string `json:"attributes"`
		}{Title: "Bare title"},
	}
	if got := parseSerper(body); got.Knowledge != nil {
		t.Errorf("expected nil knowledge graph, got %+v", got.Knowledge)
	}
}
