// internal/services/orchestrator/prompt.go
package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	pipelineerrors "prompt-pipeline/internal/common/errors"
	"prompt-pipeline/internal/models"
)

const (
	placeholderChunks       = "{retrieved_chunks}"
	placeholderInstructions = "{additional_instructions}"

	sentinelNoChunks       = "No relevant document chunks found."
	sentinelNoInstructions = "No additional instructions provided."
)

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_]+)\}`)

// buildPrompt substitutes the two supported placeholders into the generation
// prompt. Any other {name} token left after substitution is an authoring bug
// in the template and aborts the generation.
func buildPrompt(generationPrompt string, chunks []models.Chunk, additionalInstructions string) (string, error) {
	for _, match := range placeholderPattern.FindAllStringSubmatch(generationPrompt, -1) {
		token := "{" + match[1] + "}"
		if token != placeholderChunks && token != placeholderInstructions {
			return "", pipelineerrors.NewTemplateFormatError(match[1])
		}
	}

	chunkListing := sentinelNoChunks
	if len(chunks) > 0 {
		chunkListing = formatChunks(chunks)
	}

	instructions := strings.TrimSpace(additionalInstructions)
	if instructions == "" {
		instructions = sentinelNoInstructions
	}

	prompt := strings.ReplaceAll(generationPrompt, placeholderChunks, chunkListing)
	prompt = strings.ReplaceAll(prompt, placeholderInstructions, instructions)
	return prompt, nil
}

// formatChunks renders retrieved chunks as a numbered listing with source
// attribution, the shape the generation prompts are written against.
func formatChunks(chunks []models.Chunk) string {
	var sb strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%d] Source: %s, Page %d\n%s", i+1, chunk.DocumentTitle, chunk.PageNumber, chunk.ChunkText)
	}
	return sb.String()
}
