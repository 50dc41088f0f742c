package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/distriplus/backend/internal/domain/order"
)

// The single-row UPDATE both increments and reads the counter, so
// concurrent orders always mint distinct numbers.
const nextInvoiceNumberSQL = `UPDATE invoice_counter
	SET current_number = current_number + 1
	WHERE id = 1
	RETURNING current_number`

var _ order.InvoiceCounter = (*InvoiceCounter)(nil)

// InvoiceCounter mints invoice numbers from the single-row counter table.
type InvoiceCounter struct {
	pool *pgxpool.Pool
}

// NewInvoiceCounter returns an InvoiceCounter that uses the given pool.
func NewInvoiceCounter(pool *pgxpool.Pool) *InvoiceCounter {
	return &InvoiceCounter{pool: pool}
}

// NextInvoiceNumber atomically increments the counter and returns the
// formatted number, e.g. F000042.
func (c *InvoiceCounter) NextInvoiceNumber(ctx context.Context) (string, error) {
	var n int64
	if err := dbFrom(ctx, c.pool).QueryRow(ctx, nextInvoiceNumberSQL).Scan(&n); err != nil {
		return "", fmt.Errorf("incrementing invoice counter: %w", err)
	}
	return fmt.Sprintf("F%06d", n), nil
}
