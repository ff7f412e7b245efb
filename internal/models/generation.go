// internal/models/generation.go
package models

import "time"

// GenerationStatus follows Pending -> Processing -> {Completed | Failed}.
// Completed and Failed are terminal; a record in either state is append-only.
type GenerationStatus string

const (
	GenerationStatusPending    GenerationStatus = "pending"
	GenerationStatusProcessing GenerationStatus = "processing"
	GenerationStatusCompleted  GenerationStatus = "completed"
	GenerationStatusFailed     GenerationStatus = "failed"
)

// Generation is one execution record of an element against a project's
// documents. It is created and mutated only by the orchestrator that owns it.
type Generation struct {
	ID                     string            `json:"id"`
	ElementID              string            `json:"elementId"`
	ProjectID              string            `json:"projectId"`
	UserID                 string            `json:"userId"`
	Status                 GenerationStatus  `json:"status"`
	AdditionalInstructions string            `json:"additionalInstructions,omitempty"`
	SourceChunks           []Chunk           `json:"sourceChunks,omitempty"`
	GeneratedContent       []string          `json:"generatedContent,omitempty"`
	Metrics                GenerationMetrics `json:"metrics"`
	ErrorDetails           *ErrorDetails     `json:"errorDetails,omitempty"`
	CreatedAt              time.Time         `json:"createdAt"`
	CompletedAt            *time.Time        `json:"completedAt,omitempty"`
}

// GenerationMetrics captures per-stage wall-clock timings in milliseconds.
type GenerationMetrics struct {
	RetrievalTimeMs    int64 `json:"retrievalTimeMs"`
	GenerationTimeMs   int64 `json:"generationTimeMs"`
	ProcessingTimeMs   int64 `json:"processingTimeMs"`
	DocumentsRetrieved int   `json:"documentsRetrieved"`
}

// ErrorDetails records where and why a generation failed.
type ErrorDetails struct {
	Stage     string    `json:"stage"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Chunk is one retrieved document fragment used as generation context.
type Chunk struct {
	DocumentTitle string  `json:"documentTitle"`
	PageNumber    int     `json:"pageNumber"`
	ChunkText     string  `json:"chunkText"`
	Score         float64 `json:"score,omitempty"`
}
