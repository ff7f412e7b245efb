// internal/services/compressor/quality_test.go
package compressor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreQuality_ReasonableCompression(t *testing.T) {
	original := "Draft a comprehensive analysis of the indemnification clauses found in commercial merger agreements, covering liability caps and survival periods"
	compressed := "indemnification clauses merger agreements liability caps"

	m := ScoreQuality(original, compressed)

	assert.Greater(t, m.LengthRatio, 0.1)
	assert.Less(t, m.LengthRatio, 0.8)
	assert.Greater(t, m.TermOverlap, 0.0)
	assert.Greater(t, m.Completeness, 0.0)
	assert.LessOrEqual(t, m.Completeness, 1.0)
	assert.Empty(t, m.Warning)
}

func TestScoreQuality_UnderCompressionWarning(t *testing.T) {
	original := "Summarize the quarterly report"
	compressed := "Summarize the quarterly repor" // barely shorter

	m := ScoreQuality(original, compressed)

	assert.Greater(t, m.LengthRatio, 0.8)
	assert.Contains(t, m.Warning, "little effect")
}

func TestScoreQuality_OverCompressionWarning(t *testing.T) {
	original := strings.Repeat("Describe the obligations of each contracting party in detail. ", 10)
	compressed := "obligations"

	m := ScoreQuality(original, compressed)

	assert.Less(t, m.LengthRatio, 0.1)
	assert.Contains(t, m.Warning, "lost")
}

func TestScoreQuality_FullOverlapCapsCompleteness(t *testing.T) {
	original := "alpha beta"
	compressed := "alpha beta"

	m := ScoreQuality(original, compressed)

	assert.Equal(t, 1.0, m.TermOverlap)
	assert.Equal(t, 1.0, m.Completeness)
}

func TestScoreQuality_EmptyInputs(t *testing.T) {
	m := ScoreQuality("", "anything")
	assert.Zero(t, m.LengthRatio)
	assert.Zero(t, m.TermOverlap)

	m = ScoreQuality("something", "")
	assert.Zero(t, m.Readability)
	assert.Zero(t, m.TermOverlap)
}
