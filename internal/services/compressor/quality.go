// internal/services/compressor/quality.go
package compressor

import (
	"fmt"
	"strings"
)

// ScoreQuality scores a compressed prompt against its source with cheap
// heuristics, no provider call. Completeness doubles the overlap ratio on
// the assumption that a good query keeps roughly half the source terms.
func ScoreQuality(generationPrompt, retrievalPrompt string) QualityMetrics {
	m := QualityMetrics{}
	if generationPrompt == "" {
		return m
	}

	m.LengthRatio = float64(len(retrievalPrompt)) / float64(len(generationPrompt))

	originalTerms := termSet(generationPrompt)
	compressedTerms := termSet(retrievalPrompt)

	if len(originalTerms) > 0 {
		overlap := 0
		for term := range compressedTerms {
			if _, ok := originalTerms[term]; ok {
				overlap++
			}
		}
		m.TermOverlap = float64(overlap) / float64(len(originalTerms))
	}

	m.Readability = readability(retrievalPrompt)

	m.Completeness = m.TermOverlap * 2
	if m.Completeness > 1 {
		m.Completeness = 1
	}

	switch {
	case m.LengthRatio > 0.8:
		m.Warning = fmt.Sprintf("compressed prompt is %.0f%% of the original length; compression had little effect", m.LengthRatio*100)
	case m.LengthRatio < 0.1:
		m.Warning = fmt.Sprintf("compressed prompt is only %.0f%% of the original length; information may have been lost", m.LengthRatio*100)
	}

	return m
}

func termSet(s string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,;:!?\"'()[]{}")
		if word != "" {
			terms[word] = struct{}{}
		}
	}
	return terms
}

// readability approximates ease of reading from average word length: short
// words score near 1, very long words push the score toward 0.
func readability(s string) float64 {
	words := strings.Fields(s)
	if len(words) == 0 {
		return 0
	}
	totalLen := 0
	for _, w := range words {
		totalLen += len(w)
	}
	avg := float64(totalLen) / float64(len(words))

	score := 1.0 - (avg-4.0)/10.0
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}
