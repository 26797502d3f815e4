package shop

import "errors"

const (
	// PageSize keeps four rows of five item buttons per screen; the
	// fifth row is reserved for navigation.
	PageSize      = 20
	ButtonsPerRow = 5
)

// ErrPageRange marks a page index outside the current list.
var ErrPageRange = errors.New("shop: page out of range")

// Page is a resolved window over a list.
type Page struct {
	Index   int
	Total   int
	Start   int
	End     int
	HasPrev bool
	HasNext bool
}

// Paginate resolves a page over a list of total items. An empty list
// has exactly one (empty) page.
func Paginate(total, page int) (Page, error) {
	pages := (total + PageSize - 1) / PageSize
	if pages == 0 {
		pages = 1
	}
	if page < 0 || page >= pages {
		return Page{}, ErrPageRange
	}
	start := page * PageSize
	end := start + PageSize
	if end > total {
		end = total
	}
	return Page{
		Index:   page,
		Total:   pages,
		Start:   start,
		End:     end,
		HasPrev: page > 0,
		HasNext: page < pages-1,
	}, nil
}
