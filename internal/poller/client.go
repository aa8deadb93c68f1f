package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/alphabizdigital/invoice-tracker/internal/models"
	"go.uber.org/zap"
)

// Client is the HTTP StatusSource backed by the status query endpoint
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a status client for the given service base URL
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Fetch issues one GET against the status endpoint. The endpoint never
// 404s for unknown invoices, so any non-200 is a real error.
func (c *Client) Fetch(ctx context.Context, invoiceNumber string) (*models.InvoiceStatus, error) {
	endpoint := fmt.Sprintf("%s/api/status/%s", c.baseURL, url.PathEscape(invoiceNumber))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request returned %d", resp.StatusCode)
	}

	var record models.InvoiceStatus
	if err := json.NewDecoder(resp.Body).Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &record, nil
}

var _ StatusSource = (*Client)(nil)
