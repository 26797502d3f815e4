package catalog

import (
	"errors"
	"sort"
	"strings"
)

// ErrNotFound marks a category, brand or product index that does not
// exist in the current catalog snapshot.
var ErrNotFound = errors.New("catalog: selection not found")

// Categories lists distinct non-empty category names in first-seen order.
func Categories(products []Product) []string {
	return distinct(products, func(p Product) string { return p.Category })
}

// Brands lists distinct non-empty brand names within a category,
// in first-seen order.
func Brands(products []Product, category string) []string {
	return distinct(products, func(p Product) string {
		if p.Category != category {
			return ""
		}
		return p.Brand
	})
}

// ProductsIn returns the products of a category/brand pair sorted by
// ascending price. Equal prices keep their catalog order.
func ProductsIn(products []Product, category, brand string) []Product {
	var out []Product
	for _, p := range products {
		if p.Category == category && p.Brand == brand {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price < out[j].Price })
	return out
}

// CategoryAt resolves a category by positional index.
func CategoryAt(products []Product, idx int) (string, error) {
	cats := Categories(products)
	if idx < 0 || idx >= len(cats) {
		return "", ErrNotFound
	}
	return cats[idx], nil
}

// BrandAt resolves a brand by positional index within a category.
func BrandAt(products []Product, catIdx, brandIdx int) (string, string, error) {
	cat, err := CategoryAt(products, catIdx)
	if err != nil {
		return "", "", err
	}
	brands := Brands(products, cat)
	if brandIdx < 0 || brandIdx >= len(brands) {
		return "", "", ErrNotFound
	}
	return cat, brands[brandIdx], nil
}

// ProductAt resolves a product by positional index within a
// category/brand pair, following the price-sorted order.
func ProductAt(products []Product, catIdx, brandIdx, prodIdx int) (string, string, Product, error) {
	cat, brand, err := BrandAt(products, catIdx, brandIdx)
	if err != nil {
		return "", "", Product{}, err
	}
	list := ProductsIn(products, cat, brand)
	if prodIdx < 0 || prodIdx >= len(list) {
		return "", "", Product{}, ErrNotFound
	}
	return cat, brand, list[prodIdx], nil
}

func distinct(products []Product, key func(Product) string) []string {
	seen := make(map[string]struct{}, len(products))
	var out []string
	for _, p := range products {
		k := key(p)
		if strings.TrimSpace(k) == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
