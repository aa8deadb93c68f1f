package models

import "time"

// WebhookEvent is a persisted record of a callback received from the
// external generation workflow, kept for inspection and debugging.
// The relation to invoices is soft: events may reference invoice numbers
// that have since been swept.
type WebhookEvent struct {
	ID             int64     `json:"id"`
	EventType      string    `json:"event_type"`
	Payload        string    `json:"payload"`
	ProcessedState string    `json:"processed_state,omitempty"`
	InvoiceNumber  string    `json:"invoice_number,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
	ProcessingMs   int64     `json:"processing_ms"`
}

// WebhookEventFilter narrows event listing; zero values mean "no filter"
type WebhookEventFilter struct {
	EventType     string
	InvoiceNumber string
	Limit         int
	Offset        int
}
