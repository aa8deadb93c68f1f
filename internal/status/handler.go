// Package status exposes the UI-facing read and correction surface for
// invoice records, plus the webhook event and statistics queries.
package status

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/models"
	"github.com/alphabizdigital/invoice-tracker/internal/tracker"
	"github.com/alphabizdigital/invoice-tracker/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("invoicenum", func(fl validator.FieldLevel) bool {
			return utils.ValidateInvoiceNumber(fl.Field().String()) == nil
		})
	}
}

// EventStore is the webhook event query surface used by this handler
type EventStore interface {
	List(ctx context.Context, filter models.WebhookEventFilter) ([]*models.WebhookEvent, int, error)
	Count(ctx context.Context) (int, error)
}

// Handler serves the status query endpoints
type Handler struct {
	tracker *tracker.Tracker
	events  EventStore
	logger  *zap.Logger
}

// NewHandler creates a new status handler. The event store may be nil,
// in which case the event endpoints report empty results.
func NewHandler(tr *tracker.Tracker, events EventStore, logger *zap.Logger) *Handler {
	return &Handler{
		tracker: tr,
		events:  events,
		logger:  logger,
	}
}

type statusResponse struct {
	models.InvoiceStatus
	Message string `json:"message,omitempty"`
}

// Get returns the current record for an invoice number. An unknown number
// yields a synthetic pending view with a 200, never a 404: the poll may
// simply have arrived before the record was created.
func (h *Handler) Get(c *gin.Context) {
	invoiceNumber := c.Param("invoice_number")

	record, err := h.tracker.GetStatus(c.Request.Context(), invoiceNumber)
	if err != nil {
		if errors.Is(err, tracker.ErrNotFound) {
			now := time.Now().UTC()
			c.JSON(http.StatusOK, statusResponse{
				InvoiceStatus: models.InvoiceStatus{
					InvoiceNumber: invoiceNumber,
					Status:        models.StatusPending,
					CreatedAt:     now,
					UpdatedAt:     now,
				},
				Message: "Invoice submitted, waiting for processing",
			})
			return
		}

		h.logger.Error("Failed to read invoice status",
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, statusResponse{InvoiceStatus: *record})
}

// patchRequest is the partial update body for manual corrections and
// client-reported failures
type patchRequest struct {
	Status       *models.Status `json:"status" binding:"omitempty,oneof=pending generating completed failed"`
	PDFURL       *string        `json:"pdf_url" binding:"omitempty,url"`
	ErrorMessage *string        `json:"error_message"`
}

// Patch applies a partial update to an existing record
func (h *Handler) Patch(c *gin.Context) {
	invoiceNumber := c.Param("invoice_number")

	var req patchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Invalid status. Must be one of: %s, %s, %s, %s",
				models.StatusPending, models.StatusGenerating, models.StatusCompleted, models.StatusFailed),
		})
		return
	}

	record, err := h.tracker.UpdateStatus(c.Request.Context(), invoiceNumber, models.InvoiceUpdate{
		Status:       req.Status,
		PDFURL:       req.PDFURL,
		ErrorMessage: req.ErrorMessage,
	})
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Invoice not found", "invoice_number": invoiceNumber})
	case errors.Is(err, tracker.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case err != nil:
		h.logger.Error("Failed to update invoice status",
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	default:
		c.JSON(http.StatusOK, statusResponse{
			InvoiceStatus: *record,
			Message:       "Invoice status updated successfully",
		})
	}
}

// ensureRequest is the pre-flight creation body. The invoice number is
// optional; a missing one is generated server-side.
type ensureRequest struct {
	InvoiceNumber string         `json:"invoice_number" binding:"omitempty,invoicenum"`
	Status        *models.Status `json:"status" binding:"omitempty,oneof=pending generating completed failed"`
}

// Ensure idempotently creates a record before the UI starts polling
func (h *Handler) Ensure(c *gin.Context) {
	var req ensureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	invoiceNumber := req.InvoiceNumber
	if invoiceNumber == "" {
		invoiceNumber = fmt.Sprintf("INV-%s", uuid.New().String())
	}

	record, err := h.tracker.CreateInvoice(c.Request.Context(), invoiceNumber)
	if err != nil {
		h.logger.Error("Failed to create invoice record",
			zap.String("invoice_number", invoiceNumber),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if req.Status != nil && *req.Status != record.Status {
		record, err = h.tracker.UpdateStatus(c.Request.Context(), invoiceNumber, models.InvoiceUpdate{Status: req.Status})
		if err != nil {
			h.logger.Error("Failed to set initial invoice status",
				zap.String("invoice_number", invoiceNumber),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "invoice": record})
}

// Stats reports aggregate store counters
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.tracker.Stats(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to collect stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if h.events != nil {
		count, err := h.events.Count(c.Request.Context())
		if err != nil {
			h.logger.Error("Failed to count webhook events", zap.Error(err))
		} else {
			stats.TotalWebhookEvents = count
		}
	}

	c.JSON(http.StatusOK, stats)
}

// ListEvents returns stored webhook events, newest first
func (h *Handler) ListEvents(c *gin.Context) {
	filter := models.WebhookEventFilter{
		EventType:     c.Query("event_type"),
		InvoiceNumber: c.Query("invoice_number"),
		Limit:         intQuery(c, "limit", 50),
		Offset:        intQuery(c, "offset", 0),
	}

	if h.events == nil {
		c.JSON(http.StatusOK, gin.H{"data": []interface{}{}, "pagination": gin.H{"total": 0}})
		return
	}

	events, total, err := h.events.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list webhook events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if events == nil {
		events = []*models.WebhookEvent{}
	}
	c.JSON(http.StatusOK, gin.H{
		"data": events,
		"pagination": gin.H{
			"total":    total,
			"limit":    filter.Limit,
			"offset":   filter.Offset,
			"has_more": filter.Offset+len(events) < total,
		},
	})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
