package order

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/distriplus/backend/internal/domain/history"
	"github.com/distriplus/backend/internal/domain/pagination"
	"github.com/distriplus/backend/internal/domain/product"
)

// Audit labels for price adjustments, kept in the operators' language.
const (
	fieldPriceIncrease  = "Ajuste de precio (%)"
	fieldPriceDiscount  = "Descuento aplicado (%)"
	fieldSuggestedPrice = "Precio sugerido (%)"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var one = decimal.NewFromInt(1)

var hundred = decimal.NewFromInt(100)

// ItemInput is one requested order line.
type ItemInput struct {
	ProductID string
	Quantity  int
}

// CreateRequest holds the validated input for creating an order.
type CreateRequest struct {
	ClientID string
	Items    []ItemInput
}

// UpdateRequest holds the replacement item set for an order update.
type UpdateRequest struct {
	Items []ItemInput
}

// PriceAdjustment holds the percentage knobs for AdjustPrices. At least one
// must be set. Increase takes precedence over decrease when both are given.
type PriceAdjustment struct {
	IncreasePct        *decimal.Decimal
	DecreasePct        *decimal.Decimal
	SuggestedPriceRate *decimal.Decimal
}

// Service orchestrates order mutations. Every mutating operation runs inside
// exactly one transaction: client read, product reads, stock writes, and the
// order write all commit or roll back together.
type Service struct {
	tx       Transactor
	clients  ClientDirectory
	products ProductLedger
	orders   Repository
	counter  InvoiceCounter
	now      func() time.Time
}

// NewService creates an order Service with the required collaborators.
func NewService(
	tx Transactor,
	clients ClientDirectory,
	products ProductLedger,
	orders Repository,
	counter InvoiceCounter,
) *Service {
	return &Service{
		tx:       tx,
		clients:  clients,
		products: products,
		orders:   orders,
		counter:  counter,
		now:      time.Now,
	}
}

// Create validates the client and products, snapshots unit prices from the
// current catalog, decrements stock per item with a write-time availability
// condition, mints an invoice number, and persists the order — atomically.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor string) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
	}

	var created *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.clients.GetByID(ctx, req.ClientID); err != nil {
			return err
		}

		products, err := s.fetchProducts(ctx, productIDs(req.Items))
		if err != nil {
			return err
		}

		// Existence check before any write, naming the first missing
		// product in request order.
		for _, item := range req.Items {
			if _, ok := products[item.ProductID]; !ok {
				return &product.NotFoundError{ProductID: item.ProductID}
			}
		}

		items := make([]OrderItem, len(req.Items))
		subTotal := decimal.Zero
		for i, item := range req.Items {
			price := products[item.ProductID].PriceSell
			items[i] = OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: price,
			}
			subTotal = subTotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}

		// The conditional decrement re-evaluates availability at write
		// time: the existence check above cannot rule out a concurrent
		// order consuming the same units.
		for _, item := range req.Items {
			ok, err := s.products.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return errors.Wrapf(err, "decrement stock for product %s", item.ProductID)
			}
			if !ok {
				p := products[item.ProductID]
				return &InsufficientStockError{
					Product:   p.Name,
					Required:  item.Quantity,
					Available: p.Stock,
				}
			}
		}

		invoiceNumber, err := s.counter.NextInvoiceNumber(ctx)
		if err != nil {
			return errors.Wrap(err, "next invoice number")
		}

		subTotal = subTotal.Round(2)
		o := &Order{
			ID:            uuid.New().String(),
			ClientID:      req.ClientID,
			Items:         items,
			SubTotal:      subTotal,
			TotalAmount:   subTotal,
			InvoiceNumber: invoiceNumber,
			ChangeHistory: []history.Entry{history.Creation(actor)},
		}
		if err := s.orders.Create(ctx, o); err != nil {
			return errors.Wrap(err, "create order")
		}

		created = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// Update replaces an order's item set: it reconciles quantity deltas against
// product stock, reprices every item from the current catalog, recomputes
// totals, and appends an audit entry for the fields that changed — all
// inside one transaction.
func (s *Service) Update(ctx context.Context, orderID string, req UpdateRequest, actor string) (*Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrNoItems
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return nil, &InvalidQuantityError{ProductID: item.ProductID}
		}
	}

	var updated *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		oldQty := make(map[string]int, len(o.Items))
		for _, item := range o.Items {
			oldQty[item.ProductID] = item.Quantity
		}
		newQty := make(map[string]int, len(req.Items))
		for _, item := range req.Items {
			newQty[item.ProductID] = item.Quantity
		}

		adjustments := StockAdjustments(oldQty, newQty)

		// One batch fetch over the union of both item sets.
		union := make([]ItemInput, 0, len(oldQty)+len(newQty))
		for id := range oldQty {
			union = append(union, ItemInput{ProductID: id})
		}
		for id := range newQty {
			if _, seen := oldQty[id]; !seen {
				union = append(union, ItemInput{ProductID: id})
			}
		}
		products, err := s.fetchProducts(ctx, productIDs(union))
		if err != nil {
			return err
		}

		if err := ValidateAvailability(adjustments, products); err != nil {
			return err
		}

		if err := s.applyAdjustments(ctx, adjustments, products); err != nil {
			return err
		}

		// Rebuild items repriced from the current catalog, keeping the
		// suggested-price policy if the order carries one.
		newItems := make([]OrderItem, len(req.Items))
		newSubTotal := decimal.Zero
		for i, item := range req.Items {
			price := products[item.ProductID].PriceSell
			newItems[i] = OrderItem{
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				UnitPrice: price,
			}
			if o.SuggestedPriceRate != nil {
				suggested := price.Mul(one.Add(o.SuggestedPriceRate.Div(hundred))).Round(2)
				newItems[i].SuggestedPrice = &suggested
			}
			newSubTotal = newSubTotal.Add(price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		}
		newSubTotal = newSubTotal.Round(2)
		newTotal := newSubTotal

		var d history.Diff
		d.Compare("items", formatItems(o.Items), formatItems(newItems))
		d.Compare("subTotal", o.SubTotal.Round(2).StringFixed(2), newSubTotal.StringFixed(2))
		d.Compare("totalAmount", o.TotalAmount.Round(2).StringFixed(2), newTotal.StringFixed(2))

		u := Update{
			Items:       &newItems,
			SubTotal:    &newSubTotal,
			TotalAmount: &newTotal,
		}
		if entry, ok := d.Entry(actor); ok {
			u.Entry = &entry
		}

		updated, err = s.orders.Update(ctx, orderID, u)
		if err != nil {
			return errors.Wrap(err, "update order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// AdjustPrices applies percentage-based repricing across all line items.
// Increase takes precedence when both increase and decrease are supplied;
// an explicit suggested-price rate overrides the derived suggested prices.
// Each call compounds on the current prices.
func (s *Service) AdjustPrices(ctx context.Context, orderID string, adj PriceAdjustment, actor string) (*Order, error) {
	if adj.IncreasePct == nil && adj.DecreasePct == nil && adj.SuggestedPriceRate == nil {
		return nil, ErrNoAdjustment
	}
	for _, pct := range []*decimal.Decimal{adj.IncreasePct, adj.DecreasePct, adj.SuggestedPriceRate} {
		if pct != nil && pct.IsNegative() {
			return nil, ErrNegativeAdjustment
		}
	}

	var updated *Order
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		o, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}

		items := make([]OrderItem, len(o.Items))
		copy(items, o.Items)
		newSubTotal := decimal.Zero

		for i := range items {
			switch {
			case adj.IncreasePct != nil:
				items[i].UnitPrice = items[i].UnitPrice.Mul(one.Add(adj.IncreasePct.Div(hundred))).Round(2)
				if o.SuggestedPriceRate != nil {
					suggested := items[i].UnitPrice.Mul(one.Add(o.SuggestedPriceRate.Div(hundred))).Round(2)
					items[i].SuggestedPrice = &suggested
				}
			case adj.DecreasePct != nil:
				items[i].UnitPrice = items[i].UnitPrice.Mul(one.Sub(adj.DecreasePct.Div(hundred))).Round(2)
				if o.SuggestedPriceRate != nil {
					suggested := items[i].UnitPrice.Mul(one.Sub(o.SuggestedPriceRate.Div(hundred))).Round(2)
					items[i].SuggestedPrice = &suggested
				}
			}
			if adj.SuggestedPriceRate != nil {
				suggested := items[i].UnitPrice.Mul(one.Add(adj.SuggestedPriceRate.Div(hundred))).Round(2)
				items[i].SuggestedPrice = &suggested
			}
			newSubTotal = newSubTotal.Add(items[i].UnitPrice.Mul(decimal.NewFromInt(int64(items[i].Quantity))))
		}

		newSubTotal = newSubTotal.Round(2)
		newTotal := newSubTotal

		var d history.Diff
		u := Update{
			Items:       &items,
			SubTotal:    &newSubTotal,
			TotalAmount: &newTotal,
		}

		if adj.IncreasePct != nil {
			d.Record(fieldPriceIncrease, o.TotalAmount.StringFixed(2), newTotal.StringFixed(2))
			u.IncreasePct = adj.IncreasePct
		}
		if adj.DecreasePct != nil {
			d.Record(fieldPriceDiscount, o.TotalAmount.StringFixed(2), newTotal.StringFixed(2))
			u.DiscountPct = adj.DecreasePct
			discountAmount := o.TotalAmount.Sub(newTotal).Round(2)
			u.DiscountAmount = &discountAmount
		}
		if adj.SuggestedPriceRate != nil {
			before := "N/A"
			if o.SuggestedPriceRate != nil {
				before = o.SuggestedPriceRate.String()
			}
			d.Record(fieldSuggestedPrice, before, adj.SuggestedPriceRate.String())
			u.SuggestedPriceRate = adj.SuggestedPriceRate
		}

		if entry, ok := d.Entry(actor); ok {
			u.Entry = &entry
		}

		updated, err = s.orders.Update(ctx, orderID, u)
		if err != nil {
			return errors.Wrap(err, "adjust order prices")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetByID returns a single order with its full history.
func (s *Service) GetByID(ctx context.Context, id string) (*Order, error) {
	return s.orders.GetByID(ctx, id)
}

// List returns a filtered page of order summaries.
func (s *Service) List(ctx context.Context, filter ListFilter) (pagination.Page[Summary], error) {
	filter.Params = pagination.Normalize(filter.Page, filter.Limit, defaultPageSize, maxPageSize)
	switch filter.SortBy {
	case "createdAt", "totalAmount", "subTotal", "invoiceNumber":
	default:
		filter.SortBy = "createdAt"
	}
	if filter.SortOrder != "asc" {
		filter.SortOrder = "desc"
	}
	return s.orders.List(ctx, filter)
}

// GetInvoiceReport computes the financial summary and top-client ranking for
// the requested window.
func (s *Service) GetInvoiceReport(ctx context.Context, filter ReportFilter) (*Report, error) {
	start, end := filter.Window(s.now())

	agg, err := s.orders.Aggregate(ctx, start, end)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate orders")
	}

	period := string(filter.Period)
	if period == "" {
		period = "custom"
	}
	return &Report{
		Period:           period,
		Range:            DateRange{Start: start, End: end},
		TotalOrders:      agg.TotalOrders,
		FinancialSummary: agg.Summary,
		TopClients:       agg.TopClients,
	}, nil
}

// Export returns the denormalized orders of the requested window for
// spreadsheet rendering.
func (s *Service) Export(ctx context.Context, filter ReportFilter) ([]ExportOrder, error) {
	start, end := filter.Window(s.now())
	return s.orders.Export(ctx, start, end)
}

// applyAdjustments turns the delta map into stock writes: conditional
// decrements first, then all increments as one batch. The gate already
// validated availability, but each decrement still carries its own
// write-time condition against concurrent consumers.
func (s *Service) applyAdjustments(ctx context.Context, adjustments map[string]int, products map[string]*product.Product) error {
	decrements := make([]string, 0, len(adjustments))
	increments := make(map[string]int)
	for id, delta := range adjustments {
		switch {
		case delta > 0:
			decrements = append(decrements, id)
		case delta < 0:
			increments[id] = -delta
		}
	}
	sort.Strings(decrements)

	for _, id := range decrements {
		qty := adjustments[id]
		ok, err := s.products.DecrementStock(ctx, id, qty)
		if err != nil {
			return errors.Wrapf(err, "decrement stock for product %s", id)
		}
		if !ok {
			p := products[id]
			return &InsufficientStockError{
				Product:   p.Name,
				Required:  qty,
				Available: p.Stock,
			}
		}
	}

	if len(increments) > 0 {
		if err := s.products.IncrementStock(ctx, increments); err != nil {
			return errors.Wrap(err, "increment stock")
		}
	}
	return nil
}

// fetchProducts batch-fetches the given IDs and indexes them by ID.
func (s *Service) fetchProducts(ctx context.Context, ids []string) (map[string]*product.Product, error) {
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	m := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		m[fetched[i].ID] = &fetched[i]
	}
	return m, nil
}

// productIDs extracts the unique product IDs in request order.
func productIDs(items []ItemInput) []string {
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}
	return ids
}

// formatItems renders an item set as the compact audit representation.
func formatItems(items []OrderItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = fmt.Sprintf("%s x%d @ %s", item.ProductID, item.Quantity, item.UnitPrice.StringFixed(2))
	}
	return strings.Join(parts, "; ")
}
