package models

import "time"

// Status represents the lifecycle state of an invoice PDF generation job
type Status string

const (
	StatusPending    Status = "pending"
	StatusGenerating Status = "generating"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusGenerating: true,
	StatusCompleted:  true,
	StatusFailed:     true,
}

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
}

// transitions is the allowed status transition table.
// Terminal statuses permit no further transitions.
var transitions = map[Status][]Status{
	StatusPending:    {StatusGenerating, StatusCompleted, StatusFailed},
	StatusGenerating: {StatusCompleted, StatusFailed},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// IsValid returns true if the status is one of the recognized values
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if no further transitions are allowed from the status
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// CanTransitionTo returns true if the transition from s to target is allowed.
// A same-status transition is always allowed and treated as an idempotent no-op
// by callers, so a duplicate completion callback does not become an error.
func (s Status) CanTransitionTo(target Status) bool {
	if s == target {
		return true
	}
	for _, t := range transitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// InvoiceStatus is the tracked record for a single invoice, keyed by invoice number
type InvoiceStatus struct {
	InvoiceNumber string    `json:"invoice_number"`
	Status        Status    `json:"status"`
	PDFURL        string    `json:"pdf_url,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// InvoiceUpdate carries a partial update; nil fields are left untouched
type InvoiceUpdate struct {
	Status       *Status
	PDFURL       *string
	ErrorMessage *string
}

// Stats holds aggregate counters over the invoice store
type Stats struct {
	TotalInvoices      int `json:"total_invoices"`
	PendingInvoices    int `json:"pending_invoices"`
	GeneratingInvoices int `json:"generating_invoices"`
	CompletedInvoices  int `json:"completed_invoices"`
	FailedInvoices     int `json:"failed_invoices"`
	TotalWebhookEvents int `json:"total_webhook_events"`
}
