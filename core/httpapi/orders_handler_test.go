package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fanfansh/topupbot/core/notify"
	"github.com/fanfansh/topupbot/core/orders"
)

type fakeNotifier struct {
	err        error
	processing []notify.Details
	statuses   []orders.Status
	users      []int64
}

func (f *fakeNotifier) OrderProcessing(_ context.Context, userID int64, d notify.Details) error {
	if f.err != nil {
		return f.err
	}
	f.users = append(f.users, userID)
	f.processing = append(f.processing, d)
	return nil
}

func (f *fakeNotifier) OrderStatus(_ context.Context, userID int64, _ notify.Details, status orders.Status) error {
	if f.err != nil {
		return f.err
	}
	f.users = append(f.users, userID)
	f.statuses = append(f.statuses, status)
	return nil
}

func postJSON(t *testing.T, handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestNotifyDeliversStatus(t *testing.T) {
	notifier := &fakeNotifier{}
	journal := orders.NewMemoryStore()
	h := NewOrdersHandler(notifier, journal, time.Second)

	rec := postJSON(t, h.Notify, `{"userId":42,"trxId":"TRX-1","product":"Diamond 100","destination":"08123","status":"success"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp successResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || !resp.Success {
		t.Fatalf("body = %s", rec.Body.String())
	}
	if len(notifier.statuses) != 1 || notifier.statuses[0] != orders.StatusSuccess {
		t.Fatalf("statuses = %v", notifier.statuses)
	}
	if notifier.users[0] != 42 {
		t.Fatalf("user = %d", notifier.users[0])
	}

	n, _ := journal.Count(context.Background())
	if n != 1 {
		t.Fatalf("journal entries = %d, want 1", n)
	}
}

func TestNotifyValidation(t *testing.T) {
	h := NewOrdersHandler(&fakeNotifier{}, nil, time.Second)

	cases := []struct {
		name string
		body string
	}{
		{"bad_json", `{"userId":`},
		{"missing_user", `{"trxId":"T","product":"P","destination":"D","status":"success"}`},
		{"missing_trx", `{"userId":42,"product":"P","destination":"D","status":"success"}`},
		{"missing_product", `{"userId":42,"trxId":"T","destination":"D","status":"success"}`},
		{"missing_destination", `{"userId":42,"trxId":"T","product":"P","status":"success"}`},
		{"unknown_status", `{"userId":42,"trxId":"T","product":"P","destination":"D","status":"paid"}`},
		{"created_not_reportable", `{"userId":42,"trxId":"T","product":"P","destination":"D","status":"created"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h.Notify, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Code != "invalid_request" {
				t.Fatalf("body = %s", rec.Body.String())
			}
		})
	}
}

func TestNotifyRecipientNotFound(t *testing.T) {
	h := NewOrdersHandler(&fakeNotifier{err: notify.ErrRecipientNotFound}, nil, time.Second)

	rec := postJSON(t, h.Notify, `{"userId":42,"trxId":"T","product":"P","destination":"D","status":"failed"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestNotifyDeliveryFailure(t *testing.T) {
	h := NewOrdersHandler(&fakeNotifier{err: context.DeadlineExceeded}, nil, time.Second)

	rec := postJSON(t, h.Notify, `{"userId":42,"trxId":"T","product":"P","destination":"D","status":"pending"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
}

func TestProcessingDelivers(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewOrdersHandler(notifier, nil, time.Second)

	rec := postJSON(t, h.Processing, `{"userId":42,"trxId":"TRX-1","product":"Diamond 100","destination":"08123","price":25000}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(notifier.processing) != 1 || notifier.processing[0].Price != 25000 {
		t.Fatalf("processing = %+v", notifier.processing)
	}
}

func TestProcessingNegativePrice(t *testing.T) {
	h := NewOrdersHandler(&fakeNotifier{}, nil, time.Second)

	rec := postJSON(t, h.Processing, `{"userId":42,"trxId":"T","product":"P","destination":"D","price":-1}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestProcessingMissingFields(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewOrdersHandler(notifier, nil, time.Second)

	cases := []struct {
		name string
		body string
	}{
		{"missing_product", `{"userId":42,"trxId":"T","destination":"D","price":1000}`},
		{"missing_destination", `{"userId":42,"trxId":"T","product":"P","price":1000}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, h.Processing, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Code != "invalid_request" {
				t.Fatalf("body = %s", rec.Body.String())
			}
		})
	}
	if len(notifier.processing) != 0 {
		t.Fatalf("notifier called for invalid payloads: %+v", notifier.processing)
	}
}

func TestRoutesWired(t *testing.T) {
	srv := NewServer(0, &fakeNotifier{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/orders/processing", strings.NewReader(`{"userId":1,"trxId":"T","product":"P","destination":"D","price":1}`))
	rec = httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("processing status = %d, body %s", rec.Code, rec.Body.String())
	}
}
