package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/models"
	"github.com/alphabizdigital/invoice-tracker/internal/tracker"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EventLog records accepted callbacks; failures are logged, never surfaced
type EventLog interface {
	Insert(ctx context.Context, event *models.WebhookEvent) error
}

// Handler handles callback requests from the external PDF generation workflow
type Handler struct {
	verifier *Verifier
	tracker  *tracker.Tracker
	events   EventLog
	logger   *zap.Logger
}

// NewHandler creates a new callback handler. The event log may be nil,
// in which case callbacks are not recorded.
func NewHandler(verifier *Verifier, tr *tracker.Tracker, events EventLog, logger *zap.Logger) *Handler {
	return &Handler{
		verifier: verifier,
		tracker:  tr,
		events:   events,
		logger:   logger,
	}
}

// callbackResponse echoes the accepted callback back to the workflow
type callbackResponse struct {
	Accepted      bool   `json:"accepted"`
	InvoiceNumber string `json:"invoice_number"`
	Status        string `json:"status"`
	PDFURL        string `json:"pdf_url,omitempty"`
	ReceivedAt    string `json:"received_at"`
}

// Handle processes a POST callback. Once the credential and payload are
// valid the workflow always gets a 200: it has no way to act on our local
// bookkeeping failures, so those are logged and swallowed.
func (h *Handler) Handle(c *gin.Context) {
	start := time.Now()

	if !h.verifier.Verify(c.GetHeader("Authorization"), c.GetHeader("X-API-Key")) {
		h.logger.Warn("Rejected callback with invalid credential", zap.String("ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized. Invalid API key."})
		return
	}

	var payload CallbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.logger.Warn("Malformed callback payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload", "details": err.Error()})
		return
	}

	normalized, err := payload.Normalize()
	if err != nil {
		h.logger.Warn("Rejected callback payload",
			zap.String("invoice_number", payload.InvoiceNumber),
			zap.String("status", payload.Status),
			zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.apply(c.Request.Context(), normalized)
	h.record(c.Request.Context(), &payload, normalized, time.Since(start))

	c.JSON(http.StatusOK, callbackResponse{
		Accepted:      true,
		InvoiceNumber: normalized.InvoiceNumber,
		Status:        normalized.Status.String(),
		PDFURL:        normalized.PDFURL,
		ReceivedAt:    time.Now().UTC().Format(time.RFC3339),
	})
}

// MethodNotAllowed rejects anything but POST on the callback path
func (h *Handler) MethodNotAllowed(c *gin.Context) {
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}

// apply ensures the record exists and drives the matching transition
func (h *Handler) apply(ctx context.Context, cb *NormalizedCallback) {
	if _, err := h.tracker.CreateInvoice(ctx, cb.InvoiceNumber); err != nil {
		h.logger.Error("Failed to ensure invoice record for callback",
			zap.String("invoice_number", cb.InvoiceNumber),
			zap.Error(err))
		return
	}

	var err error
	switch cb.Status {
	case models.StatusCompleted:
		_, err = h.tracker.MarkCompleted(ctx, cb.InvoiceNumber, cb.PDFURL)
	case models.StatusFailed:
		message := cb.ErrorMessage
		if message == "" {
			message = "Processing failed"
		}
		_, err = h.tracker.MarkFailed(ctx, cb.InvoiceNumber, message)
	case models.StatusGenerating:
		_, err = h.tracker.MarkGenerating(ctx, cb.InvoiceNumber)
	case models.StatusPending:
		// Creation above already left the record pending
	}

	switch {
	case err == nil:
	case errors.Is(err, tracker.ErrInvalidTransition):
		// Stale or duplicate delivery against a terminal record
		h.logger.Warn("Callback ignored by transition table",
			zap.String("invoice_number", cb.InvoiceNumber),
			zap.String("status", cb.Status.String()),
			zap.Error(err))
	default:
		h.logger.Error("Failed to apply callback",
			zap.String("invoice_number", cb.InvoiceNumber),
			zap.String("status", cb.Status.String()),
			zap.Error(err))
	}
}

// record appends the callback to the event log
func (h *Handler) record(ctx context.Context, payload *CallbackPayload, cb *NormalizedCallback, elapsed time.Duration) {
	if h.events == nil {
		return
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal callback for event log", zap.Error(err))
		return
	}

	event := &models.WebhookEvent{
		EventType:      "invoice_callback",
		Payload:        string(raw),
		ProcessedState: cb.Status.String(),
		InvoiceNumber:  cb.InvoiceNumber,
		ReceivedAt:     time.Now().UTC(),
		ProcessingMs:   elapsed.Milliseconds(),
	}
	if err := h.events.Insert(ctx, event); err != nil {
		h.logger.Error("Failed to record webhook event", zap.Error(err))
	}
}
