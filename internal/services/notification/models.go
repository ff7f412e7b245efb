// internal/services/notification/models.go
package notification

// Event names the pipeline occurrence a notification reports.
type Event string

const (
	EventGenerationCompleted Event = "generation_completed"
	EventGenerationFailed    Event = "generation_failed"
	EventBulkCompleted       Event = "bulk_completed"
)

// Status of one delivery attempt.
type Status string

const (
	StatusSent     Status = "sent"
	StatusFailed   Status = "failed"
	StatusDisabled Status = "disabled"
)

// Message is one notification to deliver. Priority "high" additionally sends
// an SMS when the recipient has a phone number on file.
type Message struct {
	RecipientID string                 `json:"recipientId"`
	Event       Event                  `json:"event"`
	ProjectID   string                 `json:"projectId"`
	Priority    string                 `json:"priority,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Receipt reports the outcome of one delivery.
type Receipt struct {
	NotificationID string `json:"notificationId"`
	Status         Status `json:"status"`
	SentAt         string `json:"sentAt"`
}
