// Package order implements the order mutation engine: creating and updating
// orders atomically against client, product stock, and invoice-counter
// state, with an append-only audit trail on every change.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/distriplus/backend/internal/domain/client"
	"github.com/distriplus/backend/internal/domain/history"
	"github.com/distriplus/backend/internal/domain/pagination"
	"github.com/distriplus/backend/internal/domain/product"
)

// Sentinel errors for order validation.
var (
	ErrNoItems            = errors.New("order must contain at least one item")
	ErrNoAdjustment       = errors.New("no values provided for price adjustment")
	ErrNegativeAdjustment = errors.New("adjustment percentages must not be negative")
	ErrNotFound           = errors.New("order not found")
)

// NotFoundError indicates a specific requested order does not exist.
type NotFoundError struct {
	OrderID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("order %s not found", e.OrderID)
}

// Is lets errors.Is match a NotFoundError against ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidQuantityError indicates a line item with a quantity below 1.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// InsufficientStockError indicates a stock decrement found fewer available
// units than requested.
type InsufficientStockError struct {
	Product   string
	Required  int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: required %d, available %d",
		e.Product, e.Required, e.Available)
}

// OrderItem is a single line of an order. UnitPrice is the price snapshot
// taken when the item entered the order; later catalog changes never affect
// it retroactively.
type OrderItem struct {
	ProductID      string           `json:"productId"`
	Quantity       int              `json:"quantity"`
	UnitPrice      decimal.Decimal  `json:"unitPrice"`
	SuggestedPrice *decimal.Decimal `json:"suggestedPrice,omitempty"`
}

// Order is a customer order with its pricing state and audit trail.
type Order struct {
	ID                 string
	ClientID           string
	Items              []OrderItem
	SubTotal           decimal.Decimal
	TotalAmount        decimal.Decimal
	InvoiceNumber      string
	IncreasePct        *decimal.Decimal
	DiscountPct        *decimal.Decimal
	DiscountAmount     *decimal.Decimal
	SuggestedPriceRate *decimal.Decimal
	ChangeHistory      []history.Entry
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Update is the allow-listed set of order fields a single atomic update may
// touch. Nil fields are left untouched; Entry, when set, is appended to the
// change history in the same statement.
type Update struct {
	Items              *[]OrderItem
	SubTotal           *decimal.Decimal
	TotalAmount        *decimal.Decimal
	IncreasePct        *decimal.Decimal
	DiscountPct        *decimal.Decimal
	DiscountAmount     *decimal.Decimal
	SuggestedPriceRate *decimal.Decimal
	Entry              *history.Entry
}

// ClientInfo is the client projection joined into order listings.
type ClientInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

// Summary is the listing projection of an order (history and items elided).
type Summary struct {
	ID                 string           `json:"id"`
	InvoiceNumber      string           `json:"invoiceNumber"`
	SubTotal           decimal.Decimal  `json:"subTotal"`
	TotalAmount        decimal.Decimal  `json:"totalAmount"`
	IncreasePct        *decimal.Decimal `json:"increasePct,omitempty"`
	DiscountPct        *decimal.Decimal `json:"discountPct,omitempty"`
	DiscountAmount     *decimal.Decimal `json:"discountAmount,omitempty"`
	SuggestedPriceRate *decimal.Decimal `json:"suggestedPriceRate,omitempty"`
	Client             ClientInfo       `json:"client"`
	CreatedAt          time.Time        `json:"createdAt"`
	UpdatedAt          time.Time        `json:"updatedAt"`
}

// ListFilter narrows a paginated order listing.
type ListFilter struct {
	ClientID      string
	InvoiceNumber string
	DateFrom      *time.Time
	// DateTo is inclusive: the filter extends to the end of that day.
	DateTo    *time.Time
	SortBy    string
	SortOrder string
	pagination.Params
}

// Repository defines persistence operations for orders.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, o *Order) error
	// Update applies the given fields and history append as one atomic
	// statement and returns the updated order.
	Update(ctx context.Context, id string, u Update) (*Order, error)
	List(ctx context.Context, filter ListFilter) (pagination.Page[Summary], error)
	// Aggregate computes the report figures for [start, end) in a single
	// consistent query.
	Aggregate(ctx context.Context, start, end time.Time) (*Aggregation, error)
	// Export returns the orders in [start, end) denormalized with client
	// and product data for spreadsheet export.
	Export(ctx context.Context, start, end time.Time) ([]ExportOrder, error)
}

// InvoiceCounter mints monotonically increasing human-readable invoice
// numbers. Every call atomically increments the shared counter.
type InvoiceCounter interface {
	NextInvoiceNumber(ctx context.Context) (string, error)
}

// Transactor runs a function inside one storage transaction. Every store
// access made through the wrapped context joins that transaction; if fn
// returns an error the whole transaction rolls back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ClientDirectory is the narrow view of the client registry the engine
// needs. client.Repository satisfies it.
type ClientDirectory interface {
	GetByID(ctx context.Context, id string) (*client.Client, error)
}

// ProductLedger is the narrow view of the product repository the engine
// needs: batch reads plus the stock-ledger writes. product.Repository
// satisfies it.
type ProductLedger interface {
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
	DecrementStock(ctx context.Context, id string, qty int) (bool, error)
	IncrementStock(ctx context.Context, quantities map[string]int) error
}
