// internal/services/compressor/models.go
package compressor

// Context carries optional tenant information used to pick the compression
// instruction wording.
type Context struct {
	TenantType string `json:"tenantType,omitempty"`
	TaskType   string `json:"taskType,omitempty"`
}

// BatchResult is one entry of a BatchCompress report, aligned with the input
// index. Fallback marks entries where the provider failed and the retrieval
// prompt is a truncated prefix of the original input.
type BatchResult struct {
	Index           int    `json:"index"`
	RetrievalPrompt string `json:"retrievalPrompt"`
	Fallback        bool   `json:"fallback"`
}

// SweepReport summarizes one missing-retrieval-prompt sweep.
type SweepReport struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
}

// QualityMetrics scores a compressed prompt against its source without
// another provider call.
type QualityMetrics struct {
	LengthRatio  float64 `json:"lengthRatio"`
	TermOverlap  float64 `json:"termOverlap"`
	Readability  float64 `json:"readability"`
	Completeness float64 `json:"completeness"`
	Warning      string  `json:"warning,omitempty"`
}
