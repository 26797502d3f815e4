package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fanfansh/topupbot/core/logger"
	"github.com/fanfansh/topupbot/core/notify"
	"github.com/fanfansh/topupbot/core/orders"
	"log/slog"
)

// StatusNotifier forwards order updates to the buyer.
type StatusNotifier interface {
	OrderProcessing(ctx context.Context, userID int64, d notify.Details) error
	OrderStatus(ctx context.Context, userID int64, d notify.Details, status orders.Status) error
}

// OrdersHandler receives order webhooks from the store backend.
type OrdersHandler struct {
	notifier StatusNotifier
	journal  orders.Store
	timeout  time.Duration
}

func NewOrdersHandler(notifier StatusNotifier, journal orders.Store, timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{notifier: notifier, journal: journal, timeout: timeout}
}

type orderNotifyRequest struct {
	UserID      int64  `json:"userId"`
	TrxID       string `json:"trxId"`
	Product     string `json:"product"`
	Destination string `json:"destination"`
	Status      string `json:"status"`
}

type orderProcessingRequest struct {
	UserID      int64  `json:"userId"`
	TrxID       string `json:"trxId"`
	Product     string `json:"product"`
	Destination string `json:"destination"`
	Price       int64  `json:"price"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// POST /orders/notify
func (h *OrdersHandler) Notify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req orderNotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if msg := validateCommon(req.UserID, req.TrxID, req.Product, req.Destination); msg != "" {
		respondError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}
	status := orders.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	if !orders.ValidStatus(status) {
		respondError(w, http.StatusBadRequest, "invalid_request", "status must be pending, success or failed")
		return
	}

	if h.journal != nil {
		if err := h.journal.RecordStatus(ctx, req.TrxID, status); err != nil {
			logger.HTTP.Warn("orders.notify",
				slog.String("event", "journal_fail"),
				slog.String("trx_id", req.TrxID),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}

	d := notify.Details{TrxID: req.TrxID, Product: req.Product, Destination: req.Destination}
	if err := h.notifier.OrderStatus(ctx, req.UserID, d, status); err != nil {
		if errors.Is(err, notify.ErrRecipientNotFound) {
			respondError(w, http.StatusNotFound, "recipient_not_found", "user cannot be messaged")
			return
		}
		respondError(w, http.StatusBadGateway, "delivery_failed", "failed to deliver notification")
		return
	}

	logger.HTTP.Info("orders.notify",
		slog.String("event", "complete"),
		slog.String("trx_id", req.TrxID),
		slog.String("order_status", string(status)),
	)
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

// POST /orders/processing
func (h *OrdersHandler) Processing(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req orderProcessingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if msg := validateCommon(req.UserID, req.TrxID, req.Product, req.Destination); msg != "" {
		respondError(w, http.StatusBadRequest, "invalid_request", msg)
		return
	}
	if req.Price < 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "price must not be negative")
		return
	}

	d := notify.Details{TrxID: req.TrxID, Product: req.Product, Destination: req.Destination, Price: req.Price}
	if err := h.notifier.OrderProcessing(ctx, req.UserID, d); err != nil {
		if errors.Is(err, notify.ErrRecipientNotFound) {
			respondError(w, http.StatusNotFound, "recipient_not_found", "user cannot be messaged")
			return
		}
		respondError(w, http.StatusBadGateway, "delivery_failed", "failed to deliver notification")
		return
	}

	logger.HTTP.Info("orders.processing",
		slog.String("event", "complete"),
		slog.String("trx_id", req.TrxID),
	)
	respondJSON(w, http.StatusOK, successResponse{Success: true})
}

func validateCommon(userID int64, trxID, product, destination string) string {
	if userID <= 0 {
		return "userId is required"
	}
	if strings.TrimSpace(trxID) == "" {
		return "trxId is required"
	}
	if strings.TrimSpace(product) == "" {
		return "product is required"
	}
	if strings.TrimSpace(destination) == "" {
		return "destination is required"
	}
	return ""
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.HTTP.Warn("respond", slog.String("err", err.Error()))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}
