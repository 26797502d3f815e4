package shop

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/fanfansh/topupbot/core/orders"
	"github.com/fanfansh/topupbot/core/payment"
	"github.com/fanfansh/topupbot/core/shop/token"
)

type fakeInvoicer struct {
	calls   int
	lastReq payment.InvoiceRequest
	invoice payment.Invoice
	err     error
}

func (f *fakeInvoicer) CreateInvoice(_ context.Context, req payment.InvoiceRequest) (payment.Invoice, error) {
	f.calls++
	f.lastReq = req
	if f.err != nil {
		return payment.Invoice{}, f.err
	}
	return f.invoice, nil
}

func orderToken() token.Token {
	return token.Order(0, 0, 0, "08123456789", "k1a2b3c4d5e6")
}

func TestOrderCreatesInvoice(t *testing.T) {
	invoicer := &fakeInvoicer{invoice: payment.Invoice{PaymentURL: "https://pay.example/i/1", Reference: "TRX-1"}}
	journal := orders.NewMemoryStore()
	fin := NewFinalizer(testSource(), invoicer, journal, FinalizeConfig{
		CallbackURL: "https://bot.example/callback",
	})

	c := callbackCtx(orderToken())
	if err := fin.OnOrder(c); err != nil {
		t.Fatalf("OnOrder: %v", err)
	}

	if invoicer.calls != 1 {
		t.Fatalf("invoicer called %d times, want 1", invoicer.calls)
	}
	req := invoicer.lastReq
	if req.Amount != 14000 || req.SKU != "ML50" || req.Destination != "08123456789" {
		t.Fatalf("invoice request = %+v", req)
	}
	if req.CustomerName != "budi" || req.UserID != 42 {
		t.Fatalf("customer fields = %+v", req)
	}
	if req.CallbackURL != "https://bot.example/callback" {
		t.Fatalf("callback url = %q", req.CallbackURL)
	}
	if req.ReturnURL != "tg://user?id=42" {
		t.Fatalf("return url fallback = %q", req.ReturnURL)
	}
	if req.IdemKey != "k1a2b3c4d5e6" {
		t.Fatalf("idem key = %q", req.IdemKey)
	}

	if len(c.edited) != 1 || !strings.Contains(c.edited[0].text, "https://pay.example/i/1") {
		t.Fatalf("terminal edit = %+v", c.edited)
	}
	if btns := flatButtons(c.edited[0].markup); len(btns) != 0 {
		t.Fatalf("terminal screen still has %d buttons", len(btns))
	}

	if len(c.sent) != 1 || !strings.Contains(c.sent[0].text, "Rekap Pesanan Anda") {
		t.Fatalf("recap = %+v", c.sent)
	}

	n, _ := journal.Count(context.Background())
	if n != 1 {
		t.Fatalf("journal entries = %d, want 1", n)
	}
}

func TestOrderDoubleTapMakesOneInvoice(t *testing.T) {
	invoicer := &fakeInvoicer{invoice: payment.Invoice{PaymentURL: "https://pay.example/i/1"}}
	journal := orders.NewMemoryStore()
	fin := NewFinalizer(testSource(), invoicer, journal, FinalizeConfig{CallbackURL: "https://cb"})

	first := callbackCtx(orderToken())
	if err := fin.OnOrder(first); err != nil {
		t.Fatalf("first OnOrder: %v", err)
	}

	second := callbackCtx(orderToken())
	if err := fin.OnOrder(second); err != nil {
		t.Fatalf("second OnOrder: %v", err)
	}

	if invoicer.calls != 1 {
		t.Fatalf("invoicer called %d times, want 1", invoicer.calls)
	}
	if len(second.edited) != 1 || second.edited[0].text != textDuplicateOrder {
		t.Fatalf("duplicate response = %+v", second.edited)
	}
}

func TestOrderConfiguredReturnURL(t *testing.T) {
	invoicer := &fakeInvoicer{invoice: payment.Invoice{PaymentURL: "https://pay.example/i/1"}}
	fin := NewFinalizer(testSource(), invoicer, orders.NewMemoryStore(), FinalizeConfig{
		CallbackURL: "https://cb",
		ReturnURL:   "https://store.example/thanks",
	})

	if err := fin.OnOrder(callbackCtx(orderToken())); err != nil {
		t.Fatalf("OnOrder: %v", err)
	}
	if invoicer.lastReq.ReturnURL != "https://store.example/thanks" {
		t.Fatalf("return url = %q", invoicer.lastReq.ReturnURL)
	}
}

func TestOrderUpstreamErrorSurfaced(t *testing.T) {
	invoicer := &fakeInvoicer{err: &payment.UpstreamError{Status: http.StatusBadRequest, Message: "insufficient stock"}}
	fin := NewFinalizer(testSource(), invoicer, orders.NewMemoryStore(), FinalizeConfig{CallbackURL: "https://cb"})

	c := callbackCtx(orderToken())
	err := fin.OnOrder(c)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(c.edited) != 1 {
		t.Fatalf("edited %d messages, want 1", len(c.edited))
	}
	if !strings.Contains(c.edited[0].text, "insufficient stock") {
		t.Fatalf("upstream message not surfaced: %q", c.edited[0].text)
	}
	if btns := flatButtons(c.edited[0].markup); len(btns) != 0 {
		t.Fatalf("failure screen still has %d buttons", len(btns))
	}
	if len(c.sent) != 0 {
		t.Fatalf("recap sent on failure: %+v", c.sent)
	}
}

func TestOrderStaleProductIndex(t *testing.T) {
	invoicer := &fakeInvoicer{invoice: payment.Invoice{PaymentURL: "https://pay"}}
	fin := NewFinalizer(testSource(), invoicer, orders.NewMemoryStore(), FinalizeConfig{CallbackURL: "https://cb"})

	c := callbackCtx(token.Order(0, 0, 9, "08123", "k9"))
	if err := fin.OnOrder(c); err == nil {
		t.Fatal("expected error")
	}
	if invoicer.calls != 0 {
		t.Fatal("invoicer called for unresolvable product")
	}
	if len(c.edited) != 1 || c.edited[0].text != textInvalidChoice {
		t.Fatalf("edited = %+v", c.edited)
	}
}
