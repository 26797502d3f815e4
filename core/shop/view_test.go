package shop

import (
	"strings"
	"testing"

	"github.com/fanfansh/topupbot/core/catalog"
	"github.com/fanfansh/topupbot/core/shop/token"
)

func TestFormatRupiah(t *testing.T) {
	cases := []struct {
		amount int64
		want   string
	}{
		{0, "Rp 0"},
		{500, "Rp 500"},
		{1500, "Rp 1.500"},
		{25000, "Rp 25.000"},
		{1234567, "Rp 1.234.567"},
		{1000000000, "Rp 1.000.000.000"},
	}
	for _, tc := range cases {
		if got := FormatRupiah(tc.amount); got != tc.want {
			t.Errorf("FormatRupiah(%d) = %q, want %q", tc.amount, got, tc.want)
		}
	}
}

func TestPromptTokenIgnoresGarbage(t *testing.T) {
	if _, ok := PromptToken("tidak ada referensi di sini"); ok {
		t.Fatal("extracted token from plain text")
	}
	if _, ok := PromptToken("Ref: bukan|token"); ok {
		t.Fatal("extracted token from invalid reference")
	}
}

func TestClipLabel(t *testing.T) {
	long := strings.Repeat("x", 120)
	if got := clipLabel(long); len([]rune(got)) != maxLabelRunes {
		t.Fatalf("clipped to %d runes", len([]rune(got)))
	}
	if got := clipLabel("pendek"); got != "pendek" {
		t.Fatalf("short label changed: %q", got)
	}
}

func TestKeyboardRowLayout(t *testing.T) {
	products := make([]catalog.Product, 0, 20)
	for i := 0; i < 20; i++ {
		products = append(products, catalog.Product{
			Name: "Item", Category: "Game", Brand: "X", Price: int64(1000 * (i + 1)), SKU: "S",
		})
	}
	pg, err := Paginate(len(products), 0)
	if err != nil {
		t.Fatalf("Paginate: %v", err)
	}
	_, markup := ProductsView("Game", "X", products, pg, 0, 0)

	// four item rows of five plus one navigation row
	if len(markup.InlineKeyboard) != 5 {
		t.Fatalf("got %d rows, want 5", len(markup.InlineKeyboard))
	}
	for i := 0; i < 4; i++ {
		if len(markup.InlineKeyboard[i]) != ButtonsPerRow {
			t.Fatalf("row %d has %d buttons", i, len(markup.InlineKeyboard[i]))
		}
	}
}

func TestPaginationButtons(t *testing.T) {
	cats := make([]string, 45)
	for i := range cats {
		cats[i] = "Kategori"
	}

	pg, _ := Paginate(len(cats), 1)
	_, markup := CategoriesView(cats, pg)

	navRow := markup.InlineKeyboard[len(markup.InlineKeyboard)-1]
	if len(navRow) != 2 {
		t.Fatalf("middle page nav row has %d buttons, want prev and next", len(navRow))
	}
	prev, err := token.FromCallback(navRow[0].Unique, navRow[0].Data)
	if err != nil || prev != token.Categories(0) {
		t.Fatalf("prev token = %+v, err %v", prev, err)
	}
	next, err := token.FromCallback(navRow[1].Unique, navRow[1].Data)
	if err != nil || next != token.Categories(2) {
		t.Fatalf("next token = %+v, err %v", next, err)
	}
}
