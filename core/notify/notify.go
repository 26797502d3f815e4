// Package notify delivers order updates from the store backend to the
// buyer's Telegram chat.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fanfansh/topupbot/core/logger"
	"github.com/fanfansh/topupbot/core/orders"
	"github.com/fanfansh/topupbot/core/shop"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// ErrRecipientNotFound marks a user the bot cannot message: unknown
// chat, blocked bot, deactivated account.
var ErrRecipientNotFound = errors.New("notify: recipient not found")

// Sender is the part of the bot API the notifier needs.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Details describes the order being reported.
type Details struct {
	TrxID       string
	Product     string
	Destination string
	Price       int64
}

// Notifier sends order updates as direct messages.
type Notifier struct {
	bot Sender
}

func New(bot Sender) *Notifier {
	return &Notifier{bot: bot}
}

// OrderProcessing tells the user their paid order is being worked on.
func (n *Notifier) OrderProcessing(ctx context.Context, userID int64, d Details) error {
	return n.send(ctx, userID, d.TrxID, ProcessingText(d))
}

// OrderStatus reports a pending, successful or failed order.
func (n *Notifier) OrderStatus(ctx context.Context, userID int64, d Details, status orders.Status) error {
	text, err := StatusText(d, status)
	if err != nil {
		return err
	}
	return n.send(ctx, userID, d.TrxID, text)
}

func (n *Notifier) send(ctx context.Context, userID int64, trxID, text string) error {
	_, err := n.bot.Send(&tele.User{ID: userID}, text)
	if err != nil {
		if recipientGone(err) {
			logger.LogEvent(ctx, logger.SVCNotify, slog.LevelWarn, "notify.send",
				slog.String("trx_id", trxID),
				slog.Int64("user", userID),
				slog.String("reason", "recipient_gone"),
			)
			return fmt.Errorf("%w: user %d", ErrRecipientNotFound, userID)
		}
		logger.LogEvent(ctx, logger.SVCNotify, slog.LevelWarn, "notify.send",
			slog.String("trx_id", trxID),
			slog.Int64("user", userID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return err
	}
	logger.LogEvent(ctx, logger.SVCNotify, slog.LevelInfo, "notify.send",
		slog.String("trx_id", trxID),
		slog.Int64("user", userID),
	)
	return nil
}

// ProcessingText renders the "order is being processed" message.
func ProcessingText(d Details) string {
	return fmt.Sprintf(
		"🔄 Pesanan Anda sedang diproses!\n\n- No. Transaksi: %s\n- Produk: %s\n- Tujuan: %s\n- Harga: %s",
		d.TrxID, d.Product, d.Destination, shop.FormatRupiah(d.Price),
	)
}

// StatusText renders a status update message. Each status has its own
// wording so users can tell updates apart at a glance.
func StatusText(d Details, status orders.Status) (string, error) {
	switch status {
	case orders.StatusPending:
		return fmt.Sprintf(
			"⏳ Pembayaran untuk pesanan %s masih menunggu.\n\n- Produk: %s\n- Tujuan: %s\n\nSelesaikan pembayaran agar pesanan dapat diproses.",
			d.TrxID, d.Product, d.Destination,
		), nil
	case orders.StatusSuccess:
		return fmt.Sprintf(
			"✅ Pesanan %s berhasil!\n\n- Produk: %s\n- Tujuan: %s\n\nTerima kasih sudah berbelanja.",
			d.TrxID, d.Product, d.Destination,
		), nil
	case orders.StatusFailed:
		return fmt.Sprintf(
			"❌ Pesanan %s gagal.\n\n- Produk: %s\n- Tujuan: %s\n\nSilakan hubungi admin jika dana sudah terpotong.",
			d.TrxID, d.Product, d.Destination,
		), nil
	}
	return "", fmt.Errorf("notify: unknown status %q", status)
}

func recipientGone(err error) bool {
	var apiErr *tele.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == 403 {
		return true
	}
	desc := strings.ToLower(apiErr.Description)
	return apiErr.Code == 400 && strings.Contains(desc, "chat not found")
}
