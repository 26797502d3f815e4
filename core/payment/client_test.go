package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateInvoice(t *testing.T) {
	var got InvoiceRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/invoices" {
			t.Errorf("path = %s, want /invoices", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"paymentUrl": "https://pay.example/inv/123"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	inv, err := client.CreateInvoice(context.Background(), InvoiceRequest{
		Amount:         25000,
		ProductDetails: "Diamond 100",
		CustomerName:   "budi",
		CallbackURL:    "https://bot.example/callback",
		ReturnURL:      "tg://user?id=42",
		SKU:            "ML100",
		UserID:         42,
		Destination:    "08123456789",
	})
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if inv.PaymentURL != "https://pay.example/inv/123" {
		t.Fatalf("payment url = %q", inv.PaymentURL)
	}
	if got.Amount != 25000 || got.SKU != "ML100" || got.Destination != "08123456789" {
		t.Fatalf("request payload = %+v", got)
	}
}

func TestCreateInvoiceUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "insufficient stock"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.CreateInvoice(context.Background(), InvoiceRequest{SKU: "ML100"})

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Status != http.StatusBadRequest || ue.Message != "insufficient stock" {
		t.Fatalf("upstream error = %+v", ue)
	}
}

func TestCreateInvoiceStatusMessageFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"statusMessage": "gateway closed"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.CreateInvoice(context.Background(), InvoiceRequest{})

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Message != "gateway closed" {
		t.Fatalf("message = %q", ue.Message)
	}
}

func TestCreateInvoiceMissingPaymentURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"statusMessage": "no url issued"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.CreateInvoice(context.Background(), InvoiceRequest{})

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, want *UpstreamError", err)
	}
	if ue.Message != "no url issued" {
		t.Fatalf("message = %q", ue.Message)
	}
}
