// Package shop implements the stateless browsing flow: category,
// brand, product, destination and order confirmation screens. Every
// screen re-fetches the catalog and resolves the position carried by
// the tapped button's token.
package shop

import (
	"context"
	"errors"
	"strings"

	"github.com/fanfansh/topupbot/core/catalog"
	"github.com/fanfansh/topupbot/core/logger"
	"github.com/fanfansh/topupbot/core/shop/token"
	"github.com/fanfansh/topupbot/core/telegram/callbacks"
	tghelpers "github.com/fanfansh/topupbot/core/telegram/helpers"
	"github.com/fanfansh/topupbot/core/telegram/keyboard"
	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// Source supplies the product catalog. The backend is queried on
// every interaction; tokens stay valid across catalog updates as far
// as their indices still resolve.
type Source interface {
	Products(ctx context.Context) ([]catalog.Product, error)
}

// Flow owns the browsing screens up to order confirmation.
type Flow struct {
	catalog Source
}

func NewFlow(src Source) *Flow {
	return &Flow{catalog: src}
}

// OnTopup handles the /topup command and shows the first category page.
func (f *Flow) OnTopup(c tele.Context) error {
	return f.navigate(c, token.Categories(0), false)
}

// OnCategories handles taps on category pagination buttons.
func (f *Flow) OnCategories(c tele.Context) error {
	return f.onCallback(c, token.StageCategories)
}

// OnBrands handles category selection and brand pagination.
func (f *Flow) OnBrands(c tele.Context) error {
	return f.onCallback(c, token.StageBrands)
}

// OnProducts handles brand selection and product pagination.
func (f *Flow) OnProducts(c tele.Context) error {
	return f.onCallback(c, token.StageProducts)
}

// OnDestination handles product selection and prompts for a
// delivery destination.
func (f *Flow) OnDestination(c tele.Context) error {
	return f.onCallback(c, token.StageDestination)
}

func (f *Flow) onCallback(c tele.Context, want token.Stage) error {
	tok, err := callbackToken(c, want)
	if err != nil {
		return renderError(c, err)
	}
	return f.navigate(c, tok, true)
}

func (f *Flow) navigate(c tele.Context, tok token.Token, edit bool) error {
	ctx := tghelpers.BuildContext(c)
	products, err := f.catalog.Products(ctx)
	if err != nil {
		return renderError(c, err)
	}

	var (
		text   string
		markup *tele.ReplyMarkup
	)
	switch tok.Stage {
	case token.StageCategories:
		text, markup, err = f.categoriesScreen(products, tok)
	case token.StageBrands:
		text, markup, err = f.brandsScreen(products, tok)
	case token.StageProducts:
		text, markup, err = f.productsScreen(products, tok)
	case token.StageDestination:
		return f.promptDestination(ctx, c, products, tok)
	default:
		err = token.ErrInvalidToken
	}
	if err != nil {
		return renderError(c, err)
	}

	if edit {
		return tghelpers.EditOrSend(c, text, markup)
	}
	return tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
}

func (f *Flow) categoriesScreen(products []catalog.Product, tok token.Token) (string, *tele.ReplyMarkup, error) {
	cats := catalog.Categories(products)
	if len(cats) == 0 {
		return textNoCategories, emptyMarkup(), nil
	}
	pg, err := Paginate(len(cats), tok.Page)
	if err != nil {
		return "", nil, err
	}
	text, markup := CategoriesView(cats, pg)
	return text, markup, nil
}

func (f *Flow) brandsScreen(products []catalog.Product, tok token.Token) (string, *tele.ReplyMarkup, error) {
	cat, err := catalog.CategoryAt(products, tok.Category)
	if err != nil {
		return "", nil, err
	}
	brands := catalog.Brands(products, cat)
	if len(brands) == 0 {
		return "Tidak ada brand yang ditemukan untuk kategori: " + cat, emptyMarkup(), nil
	}
	pg, err := Paginate(len(brands), tok.Page)
	if err != nil {
		return "", nil, err
	}
	text, markup := BrandsView(cat, brands, pg, tok.Category)
	return text, markup, nil
}

func (f *Flow) productsScreen(products []catalog.Product, tok token.Token) (string, *tele.ReplyMarkup, error) {
	cat, brand, err := catalog.BrandAt(products, tok.Category, tok.Brand)
	if err != nil {
		return "", nil, err
	}
	list := catalog.ProductsIn(products, cat, brand)
	if len(list) == 0 {
		return "Tidak ada produk yang ditemukan untuk Kategori: " + cat + " - Brand: " + brand, emptyMarkup(), nil
	}
	pg, err := Paginate(len(list), tok.Page)
	if err != nil {
		return "", nil, err
	}
	text, markup := ProductsView(cat, brand, list, pg, tok.Category, tok.Brand)
	return text, markup, nil
}

func (f *Flow) promptDestination(ctx context.Context, c tele.Context, products []catalog.Product, tok token.Token) error {
	_, _, p, err := catalog.ProductAt(products, tok.Category, tok.Brand, tok.Product)
	if err != nil {
		return renderError(c, err)
	}

	logger.LogEvent(ctx, logger.SVCShop, slog.LevelDebug, "shop.prompt",
		slog.String("stage", "destination"),
		slog.String("sku", p.SKU),
	)
	prompt := DestinationPrompt(p, tok)
	return tghelpers.SendText(c, prompt, &tele.SendOptions{ReplyMarkup: keyboard.ForceReply()})
}

// Resolve implements the reply-router hook. It consumes text messages
// replying to a destination prompt and renders the confirmation screen.
func (f *Flow) Resolve(c tele.Context) (bool, error) {
	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil {
		return false, nil
	}
	tok, ok := PromptToken(msg.ReplyTo.Text)
	if !ok || tok.Stage != token.StageDestination {
		return false, nil
	}

	destination := strings.TrimSpace(c.Text())
	if destination == "" {
		return true, tghelpers.SendText(c, textDestEmpty)
	}

	ctx := tghelpers.BuildContext(c)
	products, err := f.catalog.Products(ctx)
	if err != nil {
		return true, renderError(c, err)
	}
	_, _, p, err := catalog.ProductAt(products, tok.Category, tok.Brand, tok.Product)
	if err != nil {
		return true, renderError(c, err)
	}

	orderTok := token.Order(tok.Category, tok.Brand, tok.Product, destination, newIdemKey())
	// The wire form prefixes one formfeed byte before the encoded token.
	if len(orderTok.Encode())+1 > maxCallbackData {
		return true, tghelpers.SendText(c, textDestTooLong)
	}

	logger.LogEvent(ctx, logger.SVCShop, slog.LevelInfo, "shop.confirm",
		slog.String("sku", p.SKU),
		slog.Int64("amount", p.Price),
		slog.String("idem_key", orderTok.IdemKey),
	)
	text, markup := OrderConfirmView(p, destination, orderTok)
	return true, tghelpers.SendText(c, text, &tele.SendOptions{ReplyMarkup: markup})
}

// maxCallbackData is Telegram's limit on callback button payloads.
const maxCallbackData = 64

func callbackToken(c tele.Context, want token.Stage) (token.Token, error) {
	key := callbacks.CallbackKey(c)
	payload := callbacks.CallbackPayload(c)
	tok, err := token.FromCallback(key, payload)
	if err != nil {
		return token.Token{}, err
	}
	if tok.Stage != want {
		return token.Token{}, token.ErrInvalidToken
	}
	return tok, nil
}

func renderError(c tele.Context, err error) error {
	var fetchErr *catalog.FetchError
	var text string
	switch {
	case errors.Is(err, token.ErrInvalidToken):
		text = textInvalidAction
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, ErrPageRange):
		text = textInvalidChoice
	case errors.As(err, &fetchErr):
		text = textFetchFailed
	default:
		text = textFetchFailed
	}
	_ = tghelpers.EditOrSend(c, text, emptyMarkup())
	return err
}
