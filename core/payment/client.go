// Package payment talks to the store backend that fronts the payment
// gateway. The bot never holds gateway credentials; it only asks the
// backend to create invoices.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fanfansh/topupbot/core/logger"
	"log/slog"
)

const (
	// DefaultInvoiceTimeout bounds one invoice creation end to end.
	DefaultInvoiceTimeout = 15 * time.Second

	maxBodyBytes = 1 << 20
)

// InvoiceRequest carries everything the backend needs to create a
// payment invoice. The order reference itself is minted backend-side.
type InvoiceRequest struct {
	Amount         int64  `json:"paymentAmount"`
	ProductDetails string `json:"productDetails"`
	CustomerName   string `json:"customerVaName"`
	CallbackURL    string `json:"callbackUrl"`
	ReturnURL      string `json:"returnUrl"`
	SKU            string `json:"productSku"`
	UserID         int64  `json:"userId"`
	Destination    string `json:"target"`
	IdemKey        string `json:"idempotencyKey"`
}

// Invoice is the successful response to an invoice request.
type Invoice struct {
	PaymentURL string `json:"paymentUrl"`
	Reference  string `json:"reference"`
}

// UpstreamError carries the backend's own failure message so it can
// be shown to the user verbatim.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("payment: upstream %d: %s", e.Status, e.Message)
}

// Client creates invoices through the store backend.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a payment client for the given backend base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: DefaultInvoiceTimeout},
	}
}

// NewClientWith uses the supplied HTTP client.
func NewClientWith(baseURL string, hc *http.Client) *Client {
	c := NewClient(baseURL)
	if hc != nil {
		c.http = hc
	}
	return c
}

// CreateInvoice asks the backend for a payment link.
func (c *Client) CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	start := time.Now()
	payload, err := json.Marshal(req)
	if err != nil {
		return Invoice{}, fmt.Errorf("payment: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/invoices", bytes.NewReader(payload))
	if err != nil {
		return Invoice{}, fmt.Errorf("payment: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		logger.SVCPayment.Warn("invoice.create",
			slog.String("event", "fail"),
			slog.String("sku", req.SKU),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return Invoice{}, fmt.Errorf("payment: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return Invoice{}, fmt.Errorf("payment: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ue := &UpstreamError{Status: resp.StatusCode, Message: upstreamMessage(body)}
		logger.SVCPayment.Warn("invoice.create",
			slog.String("event", "fail"),
			slog.String("sku", req.SKU),
			slog.Int("http_status", resp.StatusCode),
			slog.String("err", logger.SanitizeLimit(ue.Message, 256)),
		)
		return Invoice{}, ue
	}

	var inv Invoice
	if err := json.Unmarshal(body, &inv); err != nil {
		return Invoice{}, fmt.Errorf("payment: decode response: %w", err)
	}
	if inv.PaymentURL == "" {
		return Invoice{}, &UpstreamError{Status: resp.StatusCode, Message: upstreamMessage(body)}
	}

	logger.SVCPayment.Info("invoice.create",
		slog.String("event", "complete"),
		slog.String("sku", req.SKU),
		slog.Int64("amount", req.Amount),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return inv, nil
}

// upstreamMessage pulls the human-readable error out of a backend
// payload, checking the fields the backend is known to use.
func upstreamMessage(body []byte) string {
	var parsed struct {
		Message       string `json:"message"`
		StatusMessage string `json:"statusMessage"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.StatusMessage != "" {
			return parsed.StatusMessage
		}
	}
	return "Error tidak diketahui dari server."
}
