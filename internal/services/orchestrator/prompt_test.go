// internal/services/orchestrator/prompt_test.go
package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/models"
)

func TestBuildPrompt_SentinelsWhenEmpty(t *testing.T) {
	prompt, err := buildPrompt("Summarize {retrieved_chunks} {additional_instructions}", nil, "")

	require.NoError(t, err)
	assert.Contains(t, prompt, sentinelNoChunks)
	assert.Contains(t, prompt, sentinelNoInstructions)
	assert.NotContains(t, prompt, "{retrieved_chunks}")
	assert.NotContains(t, prompt, "{additional_instructions}")
}

func TestBuildPrompt_SubstitutesChunksAndInstructions(t *testing.T) {
	chunks := []models.Chunk{
		{DocumentTitle: "Lease Agreement", PageNumber: 4, ChunkText: "The tenant shall give 60 days notice."},
		{DocumentTitle: "Addendum A", PageNumber: 1, ChunkText: "Notice must be in writing."},
	}

	prompt, err := buildPrompt(
		"Context:\n{retrieved_chunks}\n\nInstructions: {additional_instructions}",
		chunks, "Keep it under 100 words")

	require.NoError(t, err)
	assert.Contains(t, prompt, "[1] Source: Lease Agreement, Page 4")
	assert.Contains(t, prompt, "The tenant shall give 60 days notice.")
	assert.Contains(t, prompt, "[2] Source: Addendum A, Page 1")
	assert.Contains(t, prompt, "Keep it under 100 words")
	assert.NotContains(t, prompt, sentinelNoChunks)
}

func TestBuildPrompt_UndefinedPlaceholderIsFormatError(t *testing.T) {
	_, err := buildPrompt("Summarize {undefined_token} for {retrieved_chunks}", nil, "")

	require.Error(t, err)
	assert.True(t, pipelineerrors.IsCode(err, pipelineerrors.ErrCodeTemplateFormat))
	assert.Contains(t, err.Error(), "undefined placeholder")
}

func TestBuildPrompt_ChunkTextBracesAreNotPlaceholders(t *testing.T) {
	chunks := []models.Chunk{
		{DocumentTitle: "Manual", PageNumber: 2, ChunkText: "set the field to {value} literally"},
	}

	prompt, err := buildPrompt("Explain: {retrieved_chunks}", chunks, "")

	require.NoError(t, err)
	assert.Contains(t, prompt, "{value}")
}

func TestBuildPrompt_NoPlaceholdersPassesThrough(t *testing.T) {
	prompt, err := buildPrompt("A fixed prompt with no slots", nil, "these instructions have nowhere to go")

	require.NoError(t, err)
	assert.Equal(t, "A fixed prompt with no slots", prompt)
}
