package rag

import (
	"math"
	"strings"
)

// DefaultTrustedSources are the domains that earn a per-chunk quality boost
// in the confidence score. Override via RETRIEVAL_TRUSTED_SOURCES.
var DefaultTrustedSources = []string{
	"wikipedia.org",
	"britannica.com",
	"reuters.com",
	"bbc.com",
	"nature.com",
	"stanford.edu",
}

// Confidence scores a retrieved chunk set on a 0-100 scale. An empty set is
// exactly 0. Otherwise the score combines the mean similarity of the set, a
// capped boost per chunk from a trusted domain, and a capped boost for the
// raw chunk count:
//
//	similarity  = max(0, 1 - meanDistance)
//	quality     = min(0.15 * trustedChunks, 0.4)
//	sourceCount = min(0.10 * chunkCount,    0.3)
//	score       = round(100 * min(1, similarity + quality + sourceCount))
//
// The result is a heuristic reliability estimate, not a probability.
func Confidence(chunks []RetrievedChunk, trusted []string) int {
	if len(chunks) == 0 {
		return 0
	}
	if trusted == nil {
		trusted = DefaultTrustedSources
	}

	var distSum float64
	trustedCount := 0
	for _, c := range chunks {
		distSum += float64(c.Distance)
		if fromTrustedSource(c, trusted) {
			trustedCount++
		}
	}

	similarity := max(0, 1-distSum/float64(len(chunks)))
	quality := min(0.15*float64(trustedCount), 0.4)
	sourceCount := min(0.10*float64(len(chunks)), 0.3)

	return int(math.Round(100 * min(1, similarity+quality+sourceCount)))
}

// fromTrustedSource reports whether the chunk's source or URL matches any
// trusted domain.
func fromTrustedSource(c RetrievedChunk, trusted []string) bool {
	source := strings.ToLower(c.Source)
	url := strings.ToLower(c.URL)
	for _, domain := range trusted {
		if strings.Contains(source, domain) || strings.Contains(url, domain) {
			return true
		}
	}
	return false
}
