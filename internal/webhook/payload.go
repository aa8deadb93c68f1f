package webhook

import (
	"fmt"

	"github.com/alphabizdigital/invoice-tracker/internal/models"
	"github.com/alphabizdigital/invoice-tracker/pkg/utils"
)

// CallbackPayload is the raw body posted by the external generation
// workflow. Different scenario templates use different field and status
// names for the same thing, so all known aliases are accepted here and
// normalized before any state is touched.
type CallbackPayload struct {
	InvoiceNumber string `json:"invoice_number" binding:"required"`
	Status        string `json:"status" binding:"required"`
	ErrorMessage  string `json:"error_message"`

	// PDF URL aliases, first non-empty wins
	PDFURL      string `json:"pdf_url"`
	PDFURLCamel string `json:"pdfUrl"`
	DownloadURL string `json:"download_url"`
	URL         string `json:"url"`
}

// statusAliases maps the status tokens used by known callers onto the
// recognized enumeration
var statusAliases = map[string]models.Status{
	"success":     models.StatusCompleted,
	"completed":   models.StatusCompleted,
	"done":        models.StatusCompleted,
	"failed":      models.StatusFailed,
	"error":       models.StatusFailed,
	"processing":  models.StatusGenerating,
	"generating":  models.StatusGenerating,
	"in_progress": models.StatusGenerating,
	"pending":     models.StatusPending,
}

// NormalizedCallback is a validated, alias-free view of a callback
type NormalizedCallback struct {
	InvoiceNumber string
	Status        models.Status
	PDFURL        string
	ErrorMessage  string
}

// Normalize validates the payload and resolves aliases.
// A success status without a well-formed absolute PDF URL is rejected.
func (p *CallbackPayload) Normalize() (*NormalizedCallback, error) {
	if err := utils.ValidateInvoiceNumber(p.InvoiceNumber); err != nil {
		return nil, err
	}

	status, ok := statusAliases[p.Status]
	if !ok {
		return nil, fmt.Errorf("unrecognized status: %q", p.Status)
	}

	pdfURL := firstNonEmpty(p.PDFURL, p.PDFURLCamel, p.DownloadURL, p.URL)

	if status == models.StatusCompleted {
		if pdfURL == "" {
			return nil, fmt.Errorf("success status requires pdf_url or download_url")
		}
		if err := utils.ValidateAbsoluteURL(pdfURL); err != nil {
			return nil, err
		}
	}

	return &NormalizedCallback{
		InvoiceNumber: p.InvoiceNumber,
		Status:        status,
		PDFURL:        pdfURL,
		ErrorMessage:  utils.SanitizeString(p.ErrorMessage),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
