// Package product manages the catalog and treats each product's stock as a
// quantity ledger: every mutation is a conditional atomic increment or
// decrement guarded at write time.
package product

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/distriplus/backend/internal/domain/history"
	"github.com/distriplus/backend/internal/domain/pagination"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// NotFoundError indicates a specific requested product does not exist.
type NotFoundError struct {
	ProductID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// DuplicateBarcodeError indicates an attempt to register a second product
// with the same barcode.
type DuplicateBarcodeError struct {
	CodeBar string
}

func (e *DuplicateBarcodeError) Error() string {
	return fmt.Sprintf("product with barcode %s already exists", e.CodeBar)
}

// Product is a catalog item. Stock is never written directly: it only moves
// through the conditional decrement / batched increment repository
// operations.
type Product struct {
	ID            string
	Name          string
	Category      string
	SubCategory   string
	CodeBar       string
	PriceBuy      decimal.Decimal
	PriceSell     decimal.Decimal
	Stock         int
	UnitMeasure   string
	Description   string
	Brand         string
	Provider      string
	Status        string
	ChangeHistory []history.Entry
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ListFilter narrows a paginated product listing.
type ListFilter struct {
	NameMatch     string
	Category      string
	SubCategory   string
	CodeBar       string
	BrandMatch    string
	ProviderMatch string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
	MinStock      *int
	MaxStock      *int
	pagination.Params
}

// Update is the allow-listed set of mutable product fields. Stock is absent
// on purpose: it moves only through the ledger operations.
type Update struct {
	Name        *string
	Category    *string
	SubCategory *string
	CodeBar     *string
	PriceBuy    *decimal.Decimal
	PriceSell   *decimal.Decimal
	UnitMeasure *string
	Description *string
	Brand       *string
	Provider    *string
	Status      *string
	Entry       *history.Entry
}

// Repository defines persistence and stock-ledger operations for products.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	// GetByIDs returns the products matching any of the given IDs in a
	// single query. Missing IDs are simply absent from the result.
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Create(ctx context.Context, p *Product) error
	Update(ctx context.Context, id string, u Update) (*Product, error)
	List(ctx context.Context, filter ListFilter) (pagination.Page[Product], error)

	// DecrementStock atomically subtracts qty from the product's stock,
	// conditioned on stock >= qty evaluated at write time. It reports false
	// when the condition did not hold (insufficient stock), which is the
	// concurrency-sensitive signal the order engine relies on.
	DecrementStock(ctx context.Context, id string, qty int) (bool, error)
	// IncrementStock adds the given quantities back in one batched write.
	// Increments need no precondition.
	IncrementStock(ctx context.Context, quantities map[string]int) error
}
