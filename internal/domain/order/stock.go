package order

import (
	"sort"

	"github.com/distriplus/backend/internal/domain/product"
)

// StockAdjustments computes the per-product signed quantity deltas between
// an order's previous and new item sets. A positive delta means the new
// order consumes more units (stock must decrease); a negative delta returns
// units to stock. Products absent from one set count as quantity 0, and
// zero deltas are omitted.
func StockAdjustments(oldQty, newQty map[string]int) map[string]int {
	adjustments := make(map[string]int)
	for id, qty := range newQty {
		if diff := qty - oldQty[id]; diff != 0 {
			adjustments[id] = diff
		}
	}
	for id, qty := range oldQty {
		if _, seen := newQty[id]; !seen {
			adjustments[id] = -qty
		}
	}
	return adjustments
}

// ValidateAvailability checks every positive delta against the fetched
// product state before any write is applied, so a failing later item can
// never leave earlier decrements behind. Negative deltas need no
// precondition. Products are checked in ID order so the reported failure is
// deterministic.
func ValidateAvailability(adjustments map[string]int, products map[string]*product.Product) error {
	ids := make([]string, 0, len(adjustments))
	for id := range adjustments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		delta := adjustments[id]
		if delta <= 0 {
			continue
		}
		p, ok := products[id]
		if !ok {
			return &product.NotFoundError{ProductID: id}
		}
		if p.Stock < delta {
			return &InsufficientStockError{
				Product:   p.Name,
				Required:  delta,
				Available: p.Stock,
			}
		}
	}
	return nil
}
