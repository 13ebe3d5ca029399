package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"time"
)

// defaultSerperEndpoint is the Serper.dev Google search API.
const defaultSerperEndpoint = "https://google.serper.dev/search"

// SerperConfig holds the settings for constructing a SerperProvider.
type SerperConfig struct {
	// APIKey is the Serper.dev API key (required).
	APIKey string
	// Endpoint overrides the API URL; used by tests.
	Endpoint string
	// Timeout bounds each search request. Defaults to 30s.
	Timeout time.Duration
}

// SerperProvider implements Provider against the Serper.dev REST API.
// It is safe for concurrent use.
type SerperProvider struct {
	// apiKey is sent as the X-API-KEY header.
	apiKey string
	// endpoint is the search API URL.
	endpoint string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// NewSerperProvider constructs a SerperProvider from the given config.
func NewSerperProvider(cfg *SerperConfig) (*SerperProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("search: serper requires SERPER_API_KEY")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultSerperEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SerperProvider{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// serperRequest is the JSON body sent to the search endpoint.
type serperRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num,omitempty"`
}

// serperResponse is the JSON body returned from the search endpoint.
type serperResponse struct {
	Organic []struct {
		Title         string `json:"title"`
		Snippet       string `json:"snippet"`
		DisplayedLink string `json:"displayedLink"`
		Link          string `json:"link"`
	} `json:"organic"`
	KnowledgeGraph *struct {
		Title       string            `json:"title"`
		Description string            `json:"description"`
		Attributes  map[string]string `json:"attributes"`
	} `json:"knowledgeGraph"`
	Message string `json:"message,omitempty"`
}

// Search runs a query and parses the response into the provider-neutral
// Result shape.
func (p *SerperProvider) Search(ctx context.Context, query string, resultCount int) (*Result, error) {
	payload, err := json.Marshal(serperRequest{Query: query, Num: resultCount})
	if err != nil {
		return nil, upstream(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, upstream(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, upstream(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	var body serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, upstream(fmt.Errorf("decode response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if body.Message != "" {
			msg = body.Message
		}
		return nil, upstream(fmt.Errorf("serper: %s", msg))
	}

	return parseSerper(&body), nil
}

// parseSerper converts the raw Serper payload into a Result.
func parseSerper(body *serperResponse) *Result {
	result := &Result{Organic: make([]Organic, 0, len(body.Organic))}
	for _, o := range body.Organic {
		result.Organic = append(result.Organic, Organic{
			Title:       o.Title,
			Description: o.Snippet,
			DisplayLink: o.DisplayedLink,
			Link:        o.Link,
		})
	}
	if kg := body.KnowledgeGraph; kg != nil && (kg.Description != "" || len(kg.Attributes) > 0) {
		parsed := &KnowledgeGraph{Title: kg.Title, Description: kg.Description}
		// Map iteration order is randomised; stable fact order keeps the
		// derived chunk content (and its fingerprint) deterministic.
		for _, k := range slices.Sorted(maps.Keys(kg.Attributes)) {
			parsed.Facts = append(parsed.Facts, Fact{Key: k, Value: kg.Attributes[k]})
		}
		result.Knowledge = parsed
	}
	return result
}
