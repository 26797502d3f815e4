package catalog

// Product is a single purchasable item from the backend catalog.
type Product struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Brand    string `json:"brand"`
	Price    int64  `json:"price"`
	SKU      string `json:"sku"`
}
