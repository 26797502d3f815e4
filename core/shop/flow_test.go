package shop

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/fanfansh/topupbot/core/catalog"
	"github.com/fanfansh/topupbot/core/shop/token"

	tele "gopkg.in/telebot.v4"
)

type sentMessage struct {
	text   string
	markup *tele.ReplyMarkup
}

// fakeContext implements the handful of tele.Context methods the flow
// touches. Anything else panics via the embedded nil interface.
type fakeContext struct {
	tele.Context
	sender   *tele.User
	message  *tele.Message
	callback *tele.Callback
	text     string
	kv       map[string]any
	sent     []sentMessage
	edited   []sentMessage
}

func newFakeContext() *fakeContext {
	return &fakeContext{
		sender: &tele.User{ID: 42, Username: "budi"},
		kv:     map[string]any{},
	}
}

func (f *fakeContext) Update() tele.Update       { return tele.Update{ID: 1} }
func (f *fakeContext) Sender() *tele.User        { return f.sender }
func (f *fakeContext) Chat() *tele.Chat          { return &tele.Chat{ID: 42} }
func (f *fakeContext) Message() *tele.Message    { return f.message }
func (f *fakeContext) Callback() *tele.Callback  { return f.callback }
func (f *fakeContext) Text() string              { return f.text }
func (f *fakeContext) Get(key string) any        { return f.kv[key] }
func (f *fakeContext) Set(key string, val any)   { f.kv[key] = val }
func (f *fakeContext) Respond(_ ...*tele.CallbackResponse) error { return nil }

func (f *fakeContext) Send(what any, opts ...any) error {
	f.sent = append(f.sent, capture(what, opts...))
	return nil
}

func (f *fakeContext) EditOrSend(what any, opts ...any) error {
	f.edited = append(f.edited, capture(what, opts...))
	return nil
}

func capture(what any, opts ...any) sentMessage {
	msg := sentMessage{}
	if s, ok := what.(string); ok {
		msg.text = s
	}
	for _, opt := range opts {
		switch v := opt.(type) {
		case *tele.SendOptions:
			if v != nil {
				msg.markup = v.ReplyMarkup
			}
		case *tele.ReplyMarkup:
			msg.markup = v
		}
	}
	return msg
}

func callbackCtx(tok token.Token) *fakeContext {
	c := newFakeContext()
	c.callback = &tele.Callback{Data: "\f" + tok.Encode()}
	return c
}

type fakeSource struct {
	products []catalog.Product
	err      error
	calls    int
}

func (s *fakeSource) Products(context.Context) ([]catalog.Product, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.products, nil
}

func testSource() *fakeSource {
	return &fakeSource{products: []catalog.Product{
		{Name: "Diamond 100", Category: "Game", Brand: "Mobile Legends", Price: 25000, SKU: "ML100"},
		{Name: "Diamond 50", Category: "Game", Brand: "Mobile Legends", Price: 14000, SKU: "ML50"},
		{Name: "UC 60", Category: "Game", Brand: "PUBG", Price: 15000, SKU: "PUBG60"},
		{Name: "Pulsa 10rb", Category: "Pulsa", Brand: "Telkomsel", Price: 11500, SKU: "TSEL10"},
	}}
}

func flatButtons(markup *tele.ReplyMarkup) []tele.InlineButton {
	if markup == nil {
		return nil
	}
	var out []tele.InlineButton
	for _, row := range markup.InlineKeyboard {
		out = append(out, row...)
	}
	return out
}

func TestTopupShowsCategories(t *testing.T) {
	flow := NewFlow(testSource())
	c := newFakeContext()

	if err := flow.OnTopup(c); err != nil {
		t.Fatalf("OnTopup: %v", err)
	}
	if len(c.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(c.sent))
	}
	if !strings.Contains(c.sent[0].text, "Silakan pilih kategori (Halaman 1 dari 1):") {
		t.Fatalf("text = %q", c.sent[0].text)
	}

	btns := flatButtons(c.sent[0].markup)
	if len(btns) != 2 {
		t.Fatalf("got %d buttons, want 2", len(btns))
	}
	if btns[0].Text != "Game" || btns[0].Unique != "brands" || btns[0].Data != "0|0" {
		t.Fatalf("first button = %+v", btns[0])
	}
	if btns[1].Text != "Pulsa" || btns[1].Data != "1|0" {
		t.Fatalf("second button = %+v", btns[1])
	}
}

func TestCategoryTapShowsBrands(t *testing.T) {
	flow := NewFlow(testSource())
	c := callbackCtx(token.Brands(0, 0))

	if err := flow.OnBrands(c); err != nil {
		t.Fatalf("OnBrands: %v", err)
	}
	if len(c.edited) != 1 {
		t.Fatalf("edited %d messages, want 1", len(c.edited))
	}
	if !strings.Contains(c.edited[0].text, "Kategori: Game") {
		t.Fatalf("text = %q", c.edited[0].text)
	}

	btns := flatButtons(c.edited[0].markup)
	// two brands plus the back-to-categories nav button
	if len(btns) != 3 {
		t.Fatalf("got %d buttons, want 3", len(btns))
	}
	if btns[0].Text != "Mobile Legends" || btns[0].Unique != "prods" || btns[0].Data != "0|0|0" {
		t.Fatalf("first button = %+v", btns[0])
	}
	if btns[2].Unique != "cats" {
		t.Fatalf("nav button = %+v", btns[2])
	}
}

func TestBrandTapShowsProductsSortedByPrice(t *testing.T) {
	flow := NewFlow(testSource())
	c := callbackCtx(token.Products(0, 0, 0))

	if err := flow.OnProducts(c); err != nil {
		t.Fatalf("OnProducts: %v", err)
	}
	btns := flatButtons(c.edited[0].markup)
	if len(btns) != 3 {
		t.Fatalf("got %d buttons, want 3", len(btns))
	}
	if btns[0].Text != "Diamond 50 - Rp 14.000" || btns[0].Unique != "dest" || btns[0].Data != "0|0|0" {
		t.Fatalf("first product button = %+v", btns[0])
	}
	if btns[1].Text != "Diamond 100 - Rp 25.000" || btns[1].Data != "0|0|1" {
		t.Fatalf("second product button = %+v", btns[1])
	}
}

func TestProductTapPromptsForDestination(t *testing.T) {
	flow := NewFlow(testSource())
	c := callbackCtx(token.Destination(0, 0, 0))

	if err := flow.OnDestination(c); err != nil {
		t.Fatalf("OnDestination: %v", err)
	}
	if len(c.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(c.sent))
	}
	prompt := c.sent[0]
	if !strings.Contains(prompt.text, "Diamond 50") {
		t.Fatalf("prompt = %q", prompt.text)
	}
	if prompt.markup == nil || !prompt.markup.ForceReply {
		t.Fatal("prompt does not force a reply")
	}

	tok, ok := PromptToken(prompt.text)
	if !ok || tok != token.Destination(0, 0, 0) {
		t.Fatalf("prompt token = %+v, ok=%v", tok, ok)
	}
}

func TestReplyBuildsOrderConfirmation(t *testing.T) {
	flow := NewFlow(testSource())

	prompt := DestinationPrompt(catalog.Product{Name: "Diamond 50"}, token.Destination(0, 0, 0))
	c := newFakeContext()
	c.text = "08123456789"
	c.message = &tele.Message{Text: c.text, ReplyTo: &tele.Message{Text: prompt}}

	handled, err := flow.Resolve(c)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !handled {
		t.Fatal("reply to prompt not handled")
	}
	if len(c.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(c.sent))
	}

	confirm := c.sent[0]
	for _, want := range []string{"Konfirmasi Pesanan", "Diamond 50", "Rp 14.000", "08123456789"} {
		if !strings.Contains(confirm.text, want) {
			t.Fatalf("confirmation %q missing %q", confirm.text, want)
		}
	}

	btns := flatButtons(confirm.markup)
	if len(btns) != 1 {
		t.Fatalf("got %d buttons, want exactly 1", len(btns))
	}
	tok, err := token.FromCallback(btns[0].Unique, btns[0].Data)
	if err != nil {
		t.Fatalf("decode order token: %v", err)
	}
	if tok.Stage != token.StageOrder || tok.Destination != "08123456789" || tok.IdemKey == "" {
		t.Fatalf("order token = %+v", tok)
	}
}

func TestReplyWithoutPromptIgnored(t *testing.T) {
	flow := NewFlow(testSource())
	c := newFakeContext()
	c.text = "halo"
	c.message = &tele.Message{Text: "halo", ReplyTo: &tele.Message{Text: "pesan biasa"}}

	handled, err := flow.Resolve(c)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if handled {
		t.Fatal("plain reply should not be handled")
	}
}

func TestEmptyDestinationRejected(t *testing.T) {
	flow := NewFlow(testSource())
	prompt := DestinationPrompt(catalog.Product{Name: "Diamond 50"}, token.Destination(0, 0, 0))
	c := newFakeContext()
	c.text = "   "
	c.message = &tele.Message{Text: c.text, ReplyTo: &tele.Message{Text: prompt}}

	handled, err := flow.Resolve(c)
	if err != nil || !handled {
		t.Fatalf("Resolve = %v, %v", handled, err)
	}
	if len(c.sent) != 1 || c.sent[0].text != textDestEmpty {
		t.Fatalf("sent = %+v", c.sent)
	}
}

func TestOverlongDestinationRejected(t *testing.T) {
	flow := NewFlow(testSource())
	prompt := DestinationPrompt(catalog.Product{Name: "Diamond 50"}, token.Destination(0, 0, 0))
	c := newFakeContext()
	c.text = strings.Repeat("9", 80)
	c.message = &tele.Message{Text: c.text, ReplyTo: &tele.Message{Text: prompt}}

	handled, err := flow.Resolve(c)
	if err != nil || !handled {
		t.Fatalf("Resolve = %v, %v", handled, err)
	}
	if len(c.sent) != 1 || c.sent[0].text != textDestTooLong {
		t.Fatalf("sent = %+v", c.sent)
	}
}

func TestDestinationAtCallbackBudgetBoundary(t *testing.T) {
	flow := NewFlow(testSource())
	prompt := DestinationPrompt(catalog.Product{Name: "Diamond 50"}, token.Destination(0, 0, 0))

	// The idempotency key is always 12 bytes, so a 39-digit destination
	// encodes to exactly 64 bytes and the formfeed prefix pushes the
	// wire form one byte over Telegram's limit.
	c := newFakeContext()
	c.text = strings.Repeat("9", 39)
	c.message = &tele.Message{Text: c.text, ReplyTo: &tele.Message{Text: prompt}}
	handled, err := flow.Resolve(c)
	if err != nil || !handled {
		t.Fatalf("Resolve = %v, %v", handled, err)
	}
	if len(c.sent) != 1 || c.sent[0].text != textDestTooLong {
		t.Fatalf("sent = %+v", c.sent)
	}

	c = newFakeContext()
	c.text = strings.Repeat("9", 38)
	c.message = &tele.Message{Text: c.text, ReplyTo: &tele.Message{Text: prompt}}
	handled, err = flow.Resolve(c)
	if err != nil || !handled {
		t.Fatalf("Resolve = %v, %v", handled, err)
	}
	if len(c.sent) != 1 || !strings.Contains(c.sent[0].text, "Konfirmasi Pesanan") {
		t.Fatalf("sent = %+v", c.sent)
	}
}

func TestStaleTokenRendersInvalidChoice(t *testing.T) {
	flow := NewFlow(testSource())
	c := callbackCtx(token.Brands(9, 0))

	err := flow.OnBrands(c)
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(c.edited) != 1 || c.edited[0].text != textInvalidChoice {
		t.Fatalf("edited = %+v", c.edited)
	}
	if btns := flatButtons(c.edited[0].markup); len(btns) != 0 {
		t.Fatalf("error screen still has %d buttons", len(btns))
	}
}

func TestMalformedCallbackRendersInvalidAction(t *testing.T) {
	flow := NewFlow(testSource())
	c := newFakeContext()
	c.callback = &tele.Callback{Data: "\fbrands|not-a-number|0"}

	err := flow.OnBrands(c)
	if !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("err = %v, want ErrInvalidToken", err)
	}
	if len(c.edited) != 1 || c.edited[0].text != textInvalidAction {
		t.Fatalf("edited = %+v", c.edited)
	}
}

func TestFetchFailureRendersRetryText(t *testing.T) {
	flow := NewFlow(&fakeSource{err: &catalog.FetchError{Status: 500, Err: errors.New("boom")}})
	c := callbackCtx(token.Categories(0))

	err := flow.OnCategories(c)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(c.edited) != 1 || c.edited[0].text != textFetchFailed {
		t.Fatalf("edited = %+v", c.edited)
	}
}

func TestEveryScreenRefetchesCatalog(t *testing.T) {
	src := testSource()
	flow := NewFlow(src)

	_ = flow.OnTopup(newFakeContext())
	_ = flow.OnBrands(callbackCtx(token.Brands(0, 0)))
	_ = flow.OnProducts(callbackCtx(token.Products(0, 0, 0)))

	if src.calls != 3 {
		t.Fatalf("catalog fetched %d times, want 3", src.calls)
	}
}
