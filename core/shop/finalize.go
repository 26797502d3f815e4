package shop

import (
	"context"
	"errors"
	"fmt"

	"github.com/fanfansh/topupbot/core/catalog"
	"github.com/fanfansh/topupbot/core/logger"
	"github.com/fanfansh/topupbot/core/orders"
	"github.com/fanfansh/topupbot/core/payment"
	"github.com/fanfansh/topupbot/core/shop/token"
	tghelpers "github.com/fanfansh/topupbot/core/telegram/helpers"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Invoicer creates payment invoices through the store backend.
type Invoicer interface {
	CreateInvoice(ctx context.Context, req payment.InvoiceRequest) (payment.Invoice, error)
}

// FinalizeConfig carries the payment URLs forwarded to the backend.
type FinalizeConfig struct {
	CallbackURL string
	ReturnURL   string
}

// Finalizer turns a confirmed order token into an invoice. The token's
// idempotency key is claimed in the journal before the gateway is
// called, so a double tap never produces two invoices.
type Finalizer struct {
	catalog  Source
	payments Invoicer
	journal  orders.Store
	cfg      FinalizeConfig
}

func NewFinalizer(src Source, payments Invoicer, journal orders.Store, cfg FinalizeConfig) *Finalizer {
	return &Finalizer{catalog: src, payments: payments, journal: journal, cfg: cfg}
}

// OnOrder handles taps on the order confirmation button.
func (f *Finalizer) OnOrder(c tele.Context) error {
	tok, err := callbackToken(c, token.StageOrder)
	if err != nil {
		return renderError(c, err)
	}

	ctx := tghelpers.BuildContext(c)
	products, err := f.catalog.Products(ctx)
	if err != nil {
		return renderError(c, err)
	}
	_, _, p, err := catalog.ProductAt(products, tok.Category, tok.Brand, tok.Product)
	if err != nil {
		return renderError(c, err)
	}

	if f.journal != nil {
		switch err := f.journal.Reserve(ctx, tok.IdemKey); {
		case errors.Is(err, orders.ErrDuplicate):
			logger.LogEvent(ctx, logger.SVCOrders, slog.LevelInfo, "order.duplicate",
				slog.String("idem_key", tok.IdemKey),
			)
			return tghelpers.EditOrSend(c, textDuplicateOrder, emptyMarkup())
		case err != nil:
			// Journal outage: proceed without dedupe.
			logger.LogEvent(ctx, logger.SVCOrders, slog.LevelWarn, "order.reserve_failed",
				slog.String("idem_key", tok.IdemKey),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}

	sender := c.Sender()
	returnURL := f.cfg.ReturnURL
	if returnURL == "" && sender != nil {
		returnURL = fmt.Sprintf("tg://user?id=%d", sender.ID)
	}

	req := payment.InvoiceRequest{
		Amount:         p.Price,
		ProductDetails: p.Name,
		CustomerName:   senderName(sender),
		CallbackURL:    f.cfg.CallbackURL,
		ReturnURL:      returnURL,
		SKU:            p.SKU,
		Destination:    tok.Destination,
		IdemKey:        tok.IdemKey,
	}
	if sender != nil {
		req.UserID = sender.ID
	}

	inv, err := f.payments.CreateInvoice(ctx, req)
	if err != nil {
		var ue *payment.UpstreamError
		if errors.As(err, &ue) {
			_ = tghelpers.EditOrSend(c, "❌ Gagal membuat invoice: "+ue.Message, emptyMarkup())
			return err
		}
		_ = tghelpers.EditOrSend(c, "❌ Terjadi kesalahan saat menghubungi server pembayaran.", emptyMarkup())
		return err
	}

	if f.journal != nil {
		entry := orders.Order{
			IdemKey:     tok.IdemKey,
			TrxID:       inv.Reference,
			SKU:         p.SKU,
			Product:     p.Name,
			Destination: tok.Destination,
			Amount:      p.Price,
			Status:      orders.StatusCreated,
		}
		if sender != nil {
			entry.UserID = sender.ID
		}
		if err := f.journal.Record(ctx, entry); err != nil {
			logger.LogEvent(ctx, logger.SVCOrders, slog.LevelWarn, "order.record_failed",
				slog.String("idem_key", tok.IdemKey),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}

	logger.LogEvent(ctx, logger.SVCOrders, slog.LevelInfo, "order.finalized",
		slog.String("sku", p.SKU),
		slog.Int64("amount", p.Price),
		slog.String("idem_key", tok.IdemKey),
		slog.String("trx_id", inv.Reference),
	)

	// Recap delivery failures are logged, never surfaced.
	if err := tghelpers.SendText(c, recapText(p, tok.Destination, inv.PaymentURL)); err != nil {
		logger.LogEvent(ctx, logger.SVCOrders, slog.LevelWarn, "order.recap_failed",
			slog.String("idem_key", tok.IdemKey),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}

	return tghelpers.EditOrSend(c, invoiceCreatedText(p, tok.Destination, inv.PaymentURL), emptyMarkup())
}

func newIdemKey() string {
	return orders.NewIdemKey()
}

func senderName(u *tele.User) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}
