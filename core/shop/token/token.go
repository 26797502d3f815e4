// Package token encodes the complete browsing position into the
// callback data of inline buttons. Decoding a token is the only way
// the bot recovers state; nothing is kept server-side between taps.
package token

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Stage identifies which screen a token navigates to.
type Stage string

const (
	StageCategories  Stage = "cats"
	StageBrands      Stage = "brands"
	StageProducts    Stage = "prods"
	StageDestination Stage = "dest"
	StageOrder       Stage = "order"
)

// ErrInvalidToken marks callback data that does not decode to a known
// stage with the right shape. Stale or tampered buttons produce it.
var ErrInvalidToken = errors.New("token: invalid")

const sep = "|"

// arity is the exact number of pipe-separated parts per stage,
// including the stage tag itself.
var arity = map[Stage]int{
	StageCategories:  2,
	StageBrands:      3,
	StageProducts:    4,
	StageDestination: 4,
	StageOrder:       6,
}

// Token is a decoded navigation position. Only the fields relevant to
// the stage are meaningful.
type Token struct {
	Stage       Stage
	Page        int
	Category    int
	Brand       int
	Product     int
	Destination string
	IdemKey     string
}

// Categories points at a page of the category list.
func Categories(page int) Token {
	return Token{Stage: StageCategories, Page: page}
}

// Brands points at a page of brands within a category.
func Brands(category, page int) Token {
	return Token{Stage: StageBrands, Category: category, Page: page}
}

// Products points at a page of products within a category/brand pair.
func Products(category, brand, page int) Token {
	return Token{Stage: StageProducts, Category: category, Brand: brand, Page: page}
}

// Destination asks the user where to deliver the selected product.
func Destination(category, brand, product int) Token {
	return Token{Stage: StageDestination, Category: category, Brand: brand, Product: product}
}

// Order confirms a fully specified purchase. The idempotency key is
// minted once, when the confirmation screen is built.
func Order(category, brand, product int, destination, idemKey string) Token {
	return Token{
		Stage:       StageOrder,
		Category:    category,
		Brand:       brand,
		Product:     product,
		Destination: destination,
		IdemKey:     idemKey,
	}
}

// Encode renders the token as pipe-separated callback data.
func (t Token) Encode() string {
	switch t.Stage {
	case StageCategories:
		return join(string(t.Stage), itoa(t.Page))
	case StageBrands:
		return join(string(t.Stage), itoa(t.Category), itoa(t.Page))
	case StageProducts:
		return join(string(t.Stage), itoa(t.Category), itoa(t.Brand), itoa(t.Page))
	case StageDestination:
		return join(string(t.Stage), itoa(t.Category), itoa(t.Brand), itoa(t.Product))
	case StageOrder:
		return join(string(t.Stage), itoa(t.Category), itoa(t.Brand), itoa(t.Product),
			url.QueryEscape(t.Destination), t.IdemKey)
	default:
		return ""
	}
}

// Callback splits the encoded token into the unique key and payload
// used by inline buttons.
func (t Token) Callback() (unique, payload string) {
	raw := t.Encode()
	if raw == "" {
		return "", ""
	}
	parts := strings.SplitN(raw, sep, 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// Decode parses pipe-separated callback data back into a token.
func Decode(raw string) (Token, error) {
	parts := strings.Split(raw, sep)
	stage := Stage(parts[0])

	want, ok := arity[stage]
	if !ok {
		return Token{}, fmt.Errorf("%w: unknown stage %q", ErrInvalidToken, parts[0])
	}
	if len(parts) != want {
		return Token{}, fmt.Errorf("%w: stage %q expects %d parts, got %d", ErrInvalidToken, stage, want, len(parts))
	}

	t := Token{Stage: stage}
	var err error
	switch stage {
	case StageCategories:
		t.Page, err = index(parts[1])
	case StageBrands:
		if t.Category, err = index(parts[1]); err == nil {
			t.Page, err = index(parts[2])
		}
	case StageProducts:
		if t.Category, err = index(parts[1]); err == nil {
			if t.Brand, err = index(parts[2]); err == nil {
				t.Page, err = index(parts[3])
			}
		}
	case StageDestination:
		if t.Category, err = index(parts[1]); err == nil {
			if t.Brand, err = index(parts[2]); err == nil {
				t.Product, err = index(parts[3])
			}
		}
	case StageOrder:
		if t.Category, err = index(parts[1]); err == nil {
			if t.Brand, err = index(parts[2]); err == nil {
				t.Product, err = index(parts[3])
			}
		}
		if err == nil {
			t.Destination, err = unescape(parts[4])
		}
		if err == nil {
			t.IdemKey = strings.TrimSpace(parts[5])
			if t.IdemKey == "" {
				err = fmt.Errorf("%w: empty order key", ErrInvalidToken)
			}
		}
	}
	if err != nil {
		return Token{}, err
	}
	return t, nil
}

// FromCallback reassembles a token from a callback unique key and its
// payload as delivered by Telegram.
func FromCallback(unique, payload string) (Token, error) {
	if payload == "" {
		return Decode(unique)
	}
	return Decode(unique + sep + payload)
}

func join(parts ...string) string { return strings.Join(parts, sep) }

func itoa(v int) string { return strconv.Itoa(v) }

func index(s string) (int, error) {
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: bad index %q", ErrInvalidToken, s)
	}
	return v, nil
}

func unescape(s string) (string, error) {
	v, err := url.QueryUnescape(s)
	if err != nil {
		return "", fmt.Errorf("%w: bad destination encoding", ErrInvalidToken)
	}
	return v, nil
}
