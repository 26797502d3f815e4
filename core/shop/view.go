package shop

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fanfansh/topupbot/core/catalog"
	"github.com/fanfansh/topupbot/core/shop/token"
	"github.com/fanfansh/topupbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

const maxLabelRunes = 80

const (
	textNoProducts     = "Saat ini tidak ada produk yang tersedia."
	textNoCategories   = "Tidak ada kategori produk yang tersedia saat ini."
	textInvalidAction  = "Aksi tidak valid."
	textInvalidChoice  = "Pilihan tidak valid."
	textFetchFailed    = "Gagal memuat produk. Coba lagi nanti."
	textDuplicateOrder = "Pesanan ini sudah diproses."
	textDestTooLong    = "Nomor tujuan terlalu panjang. Silakan ulangi dengan nomor yang lebih pendek."
	textDestEmpty      = "Nomor tujuan tidak boleh kosong. Balas pesan sebelumnya untuk mencoba lagi."

	labelPrev       = "⬅️ Sebelumnya"
	labelNext       = "Berikutnya ➡️"
	labelToCats     = "↩️ Ke Daftar Kategori"
	labelToBrands   = "↩️ Ke Daftar Brand"
	labelOrderNow   = "🛒 Order Sekarang"
	promptRefPrefix = "Ref: "
)

// FormatRupiah renders an amount with Indonesian thousand separators.
func FormatRupiah(amount int64) string {
	digits := strconv.FormatInt(amount, 10)
	neg := false
	if strings.HasPrefix(digits, "-") {
		neg = true
		digits = digits[1:]
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "Rp " + b.String()
	if neg {
		out = "Rp -" + b.String()
	}
	return out
}

// CategoriesView renders one page of the category list.
func CategoriesView(cats []string, pg Page) (string, *tele.ReplyMarkup) {
	var btns []keyboard.InlineBtn
	for i := pg.Start; i < pg.End; i++ {
		btns = append(btns, tokenButton(clipLabel(cats[i]), token.Brands(i, 0)))
	}

	var nav []keyboard.InlineBtn
	if pg.HasPrev {
		nav = append(nav, tokenButton(labelPrev, token.Categories(pg.Index-1)))
	}
	if pg.HasNext {
		nav = append(nav, tokenButton(labelNext, token.Categories(pg.Index+1)))
	}

	text := fmt.Sprintf("Silakan pilih kategori (Halaman %d dari %d):", pg.Index+1, pg.Total)
	return text, buildMarkup(btns, nav)
}

// BrandsView renders one page of brands within a category.
func BrandsView(category string, brands []string, pg Page, catIdx int) (string, *tele.ReplyMarkup) {
	var btns []keyboard.InlineBtn
	for i := pg.Start; i < pg.End; i++ {
		btns = append(btns, tokenButton(clipLabel(brands[i]), token.Products(catIdx, i, 0)))
	}

	nav := []keyboard.InlineBtn{tokenButton(labelToCats, token.Categories(0))}
	if pg.HasPrev {
		nav = append(nav, tokenButton(labelPrev, token.Brands(catIdx, pg.Index-1)))
	}
	if pg.HasNext {
		nav = append(nav, tokenButton(labelNext, token.Brands(catIdx, pg.Index+1)))
	}

	text := fmt.Sprintf("Kategori: %s (Halaman Brand %d dari %d)\nSilakan pilih brand:", category, pg.Index+1, pg.Total)
	return text, buildMarkup(btns, nav)
}

// ProductsView renders one page of products for a category/brand pair,
// in the price-ascending order the resolver produced.
func ProductsView(category, brand string, list []catalog.Product, pg Page, catIdx, brandIdx int) (string, *tele.ReplyMarkup) {
	var btns []keyboard.InlineBtn
	for i := pg.Start; i < pg.End; i++ {
		label := clipLabel(fmt.Sprintf("%s - %s", list[i].Name, FormatRupiah(list[i].Price)))
		btns = append(btns, tokenButton(label, token.Destination(catIdx, brandIdx, i)))
	}

	nav := []keyboard.InlineBtn{tokenButton(labelToBrands, token.Brands(catIdx, 0))}
	if pg.HasPrev {
		nav = append(nav, tokenButton(labelPrev, token.Products(catIdx, brandIdx, pg.Index-1)))
	}
	if pg.HasNext {
		nav = append(nav, tokenButton(labelNext, token.Products(catIdx, brandIdx, pg.Index+1)))
	}

	text := fmt.Sprintf("Kategori: %s\nBrand: %s (Halaman Produk %d dari %d)\nSilakan pilih produk:", category, brand, pg.Index+1, pg.Total)
	return text, buildMarkup(btns, nav)
}

// DestinationPrompt builds the force-reply prompt for a chosen product.
// The trailing reference line carries the selection, so the reply
// handler can pick it back up without any server-side state.
func DestinationPrompt(p catalog.Product, tok token.Token) string {
	return fmt.Sprintf(
		"Masukkan Nomor Tujuan/ID Game untuk %s.\nContoh: 08123456789 atau 123456781234 (ID+Server)\n\nBalas pesan ini dengan nomor tujuan Anda.\n\n%s%s",
		p.Name, promptRefPrefix, tok.Encode(),
	)
}

// PromptToken extracts the selection reference from a prompt message.
func PromptToken(text string) (token.Token, bool) {
	for _, line := range strings.Split(text, "\n") {
		if !strings.HasPrefix(line, promptRefPrefix) {
			continue
		}
		tok, err := token.Decode(strings.TrimSpace(strings.TrimPrefix(line, promptRefPrefix)))
		if err != nil {
			return token.Token{}, false
		}
		return tok, true
	}
	return token.Token{}, false
}

// OrderConfirmView renders the confirmation screen with a single
// order button carrying the full purchase token.
func OrderConfirmView(p catalog.Product, destination string, tok token.Token) (string, *tele.ReplyMarkup) {
	text := fmt.Sprintf(
		"Konfirmasi Pesanan:\n\n- Produk: %s - %s - %s\n- Harga: %s\n- Tujuan: %s\n\nTekan tombol di bawah untuk menyelesaikan pesanan.",
		p.Category, p.Brand, p.Name, FormatRupiah(p.Price), destination,
	)
	return text, buildMarkup([]keyboard.InlineBtn{tokenButton(labelOrderNow, tok)}, nil)
}

func invoiceCreatedText(p catalog.Product, destination, paymentURL string) string {
	return fmt.Sprintf(
		"✅ Invoice berhasil dibuat!\n\n- Produk: %s\n- Harga: %s\n- Tujuan: %s\n\nSilakan lanjutkan pembayaran melalui link berikut: %s\n\nRekap juga dikirim sebagai pesan terpisah.",
		p.Name, FormatRupiah(p.Price), destination, paymentURL,
	)
}

func recapText(p catalog.Product, destination, paymentURL string) string {
	return fmt.Sprintf(
		"📝 Rekap Pesanan Anda:\n\n- Kategori: %s\n- Brand: %s\n- Produk: %s\n- Harga: %s\n- Tujuan: %s\n\n🔗 Link Pembayaran: %s",
		p.Category, p.Brand, p.Name, FormatRupiah(p.Price), destination, paymentURL,
	)
}

func tokenButton(label string, tok token.Token) keyboard.InlineBtn {
	unique, payload := tok.Callback()
	return keyboard.InlineBtn{Text: label, Unique: unique, Data: payload}
}

func buildMarkup(items, nav []keyboard.InlineBtn) *tele.ReplyMarkup {
	rows := keyboard.ChunkRows(items, ButtonsPerRow)
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	return keyboard.InlineButtonsRows(rows...)
}

func clipLabel(s string) string {
	runes := []rune(s)
	if len(runes) <= maxLabelRunes {
		return s
	}
	return string(runes[:maxLabelRunes])
}

func emptyMarkup() *tele.ReplyMarkup {
	return &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{}}
}
