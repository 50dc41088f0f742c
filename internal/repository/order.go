package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/distriplus/backend/internal/domain/order"
	"github.com/distriplus/backend/internal/domain/pagination"
)

const (
	orderColumns = `id, client_id, items, sub_total, total_amount, invoice_number,
		increase_pct, discount_pct, discount_amount, suggested_price_rate,
		change_history, created_at, updated_at`

	getOrderByIDSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	createOrderSQL = `INSERT INTO orders
		(id, client_id, items, sub_total, total_amount, invoice_number, change_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	listOrdersSQL = `SELECT o.id, o.invoice_number, o.sub_total, o.total_amount,
		o.increase_pct, o.discount_pct, o.discount_amount, o.suggested_price_rate,
		c.id, c.name, c.email, c.phone_number,
		o.created_at, o.updated_at,
		count(*) OVER () AS total
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		WHERE ($1 = '' OR o.client_id::text = $1)
		  AND ($2 = '' OR o.invoice_number ILIKE '%%' || $2 || '%%')
		  AND ($3::timestamptz IS NULL OR o.created_at >= $3)
		  AND ($4::timestamptz IS NULL OR o.created_at < $4 + interval '1 day')
		ORDER BY %s %s
		LIMIT $5 OFFSET $6`

	// Summary figures and the top-client ranking come out of one statement
	// so the report is a consistent snapshot of the window.
	aggregateOrdersSQL = `WITH windowed AS (
		SELECT id, client_id, sub_total, total_amount
		FROM orders
		WHERE created_at >= $1 AND created_at < $2
	), ranked AS (
		SELECT c.id, c.name,
			sum(w.total_amount) AS total_amount,
			count(*) AS orders_count
		FROM windowed w
		JOIN clients c ON c.id = w.client_id
		GROUP BY c.id, c.name
		ORDER BY total_amount DESC
		LIMIT 5
	)
	SELECT
		(SELECT count(*) FROM windowed),
		(SELECT COALESCE(sum(total_amount), 0) FROM windowed),
		(SELECT COALESCE(sum(sub_total), 0) FROM windowed),
		(SELECT COALESCE(json_agg(json_build_object(
			'id', r.id, 'name', r.name,
			'totalAmount', r.total_amount, 'ordersCount', r.orders_count
		)), '[]'::json) FROM ranked r)`

	exportOrdersSQL = `SELECT o.invoice_number, o.created_at,
		c.name, COALESCE(c.cuit, ''), c.iva_condition,
		o.sub_total, o.total_amount,
		o.increase_pct, o.discount_pct, o.suggested_price_rate,
		o.items,
		(SELECT COALESCE(json_object_agg(p.id::text, json_build_object(
			'name', p.name, 'brand', COALESCE(p.brand, ''))), '{}'::json)
		 FROM products p
		 WHERE p.id::text IN (SELECT item->>'productId' FROM jsonb_array_elements(o.items) item))
		FROM orders o
		JOIN clients c ON c.id = o.client_id
		WHERE o.created_at >= $1 AND o.created_at < $2
		ORDER BY o.created_at`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// GetByID returns a single order with its full item set and history.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{OrderID: id}
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// Create persists a new order. Items and history are serialized to JSONB.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	history, err := json.Marshal(o.ChangeHistory)
	if err != nil {
		return fmt.Errorf("marshaling order history: %w", err)
	}

	_, err = dbFrom(ctx, r.pool).Exec(ctx, createOrderSQL,
		o.ID, o.ClientID, items, o.SubTotal, o.TotalAmount, o.InvoiceNumber, history,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Update applies the non-nil fields of u and appends the history entry as
// one atomic statement, returning the updated row.
func (r *OrderRepository) Update(ctx context.Context, id string, u order.Update) (*order.Order, error) {
	b := newUpdateBuilder("orders", id)
	if u.Items != nil {
		items, err := json.Marshal(u.Items)
		if err != nil {
			return nil, fmt.Errorf("marshaling order items: %w", err)
		}
		b.setRaw("items", items)
	}
	if u.SubTotal != nil {
		b.setRaw("sub_total", *u.SubTotal)
	}
	if u.TotalAmount != nil {
		b.setRaw("total_amount", *u.TotalAmount)
	}
	if u.IncreasePct != nil {
		b.setRaw("increase_pct", *u.IncreasePct)
	}
	if u.DiscountPct != nil {
		b.setRaw("discount_pct", *u.DiscountPct)
	}
	if u.DiscountAmount != nil {
		b.setRaw("discount_amount", *u.DiscountAmount)
	}
	if u.SuggestedPriceRate != nil {
		b.setRaw("suggested_price_rate", *u.SuggestedPriceRate)
	}
	if u.Entry != nil {
		entry, err := json.Marshal(u.Entry)
		if err != nil {
			return nil, fmt.Errorf("marshaling history entry: %w", err)
		}
		b.appendHistory(entry)
	}

	sql, args := b.build(orderColumns)
	rows, err := dbFrom(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &order.NotFoundError{OrderID: id}
		}
		return nil, fmt.Errorf("updating order %q: %w", id, err)
	}
	return &o, nil
}

// List returns a filtered page of order summaries joined with their client.
func (r *OrderRepository) List(ctx context.Context, filter order.ListFilter) (pagination.Page[order.Summary], error) {
	column, ok := sortColumns[filter.SortBy]
	if !ok {
		column = "o.created_at"
	}
	direction := "DESC"
	if filter.SortOrder == "asc" {
		direction = "ASC"
	}
	sql := fmt.Sprintf(listOrdersSQL, column, direction)

	rows, err := dbFrom(ctx, r.pool).Query(ctx, sql,
		filter.ClientID, filter.InvoiceNumber, filter.DateFrom, filter.DateTo,
		filter.Limit, filter.Offset(),
	)
	if err != nil {
		return pagination.Page[order.Summary]{}, fmt.Errorf("listing orders: %w", err)
	}

	var total int
	summaries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Summary, error) {
		var s order.Summary
		err := row.Scan(
			&s.ID, &s.InvoiceNumber, &s.SubTotal, &s.TotalAmount,
			&s.IncreasePct, &s.DiscountPct, &s.DiscountAmount, &s.SuggestedPriceRate,
			&s.Client.ID, &s.Client.Name, &s.Client.Email, &s.Client.PhoneNumber,
			&s.CreatedAt, &s.UpdatedAt, &total,
		)
		return s, err
	})
	if err != nil {
		return pagination.Page[order.Summary]{}, fmt.Errorf("listing orders: %w", err)
	}
	return pagination.NewPage(summaries, filter.Params, total), nil
}

// sortColumns maps the sort keys the service whitelists to column
// expressions. Raw client input never reaches the ORDER BY clause.
var sortColumns = map[string]string{
	"createdAt":     "o.created_at",
	"totalAmount":   "o.total_amount",
	"subTotal":      "o.sub_total",
	"invoiceNumber": "o.invoice_number",
}

// Aggregate computes the report figures for [start, end).
func (r *OrderRepository) Aggregate(ctx context.Context, start, end time.Time) (*order.Aggregation, error) {
	var (
		agg     order.Aggregation
		ranking []byte
	)
	err := dbFrom(ctx, r.pool).QueryRow(ctx, aggregateOrdersSQL, start, end).Scan(
		&agg.TotalOrders,
		&agg.Summary.TotalAmount,
		&agg.Summary.TotalSubTotal,
		&ranking,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregating orders: %w", err)
	}
	if err := json.Unmarshal(ranking, &agg.TopClients); err != nil {
		return nil, fmt.Errorf("unmarshaling client ranking: %w", err)
	}
	return &agg, nil
}

// Export returns the denormalized orders of [start, end) with client and
// product data resolved for spreadsheet rendering.
func (r *OrderRepository) Export(ctx context.Context, start, end time.Time) ([]order.ExportOrder, error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, exportOrdersSQL, start, end)
	if err != nil {
		return nil, fmt.Errorf("exporting orders: %w", err)
	}
	return pgx.CollectRows(rows, scanExportOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o       order.Order
		invoice *string
		items   []byte
		history []byte
	)
	err := row.Scan(
		&o.ID, &o.ClientID, &items, &o.SubTotal, &o.TotalAmount, &invoice,
		&o.IncreasePct, &o.DiscountPct, &o.DiscountAmount, &o.SuggestedPriceRate,
		&history, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return o, err
	}
	o.InvoiceNumber = deref(invoice)
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return o, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(history, &o.ChangeHistory); err != nil {
		return o, fmt.Errorf("unmarshaling order history: %w", err)
	}
	return o, nil
}

// exportProduct is the product projection embedded in the export query.
type exportProduct struct {
	Name  string `json:"name"`
	Brand string `json:"brand"`
}

func scanExportOrder(row pgx.CollectableRow) (order.ExportOrder, error) {
	var (
		e        order.ExportOrder
		invoice  *string
		items    []byte
		products []byte
	)
	err := row.Scan(
		&invoice, &e.CreatedAt,
		&e.ClientName, &e.ClientCUIT, &e.ClientIvaCondition,
		&e.SubTotal, &e.TotalAmount,
		&e.IncreasePct, &e.DiscountPct, &e.SuggestedPriceRate,
		&items, &products,
	)
	if err != nil {
		return e, err
	}
	e.InvoiceNumber = deref(invoice)

	var lines []order.OrderItem
	if err := json.Unmarshal(items, &lines); err != nil {
		return e, fmt.Errorf("unmarshaling order items: %w", err)
	}
	byID := make(map[string]exportProduct)
	if err := json.Unmarshal(products, &byID); err != nil {
		return e, fmt.Errorf("unmarshaling export products: %w", err)
	}

	e.Items = make([]order.ExportItem, len(lines))
	for i, line := range lines {
		p := byID[line.ProductID]
		e.Items[i] = order.ExportItem{
			ProductName:    p.Name,
			Brand:          p.Brand,
			Quantity:       line.Quantity,
			UnitPrice:      line.UnitPrice,
			SuggestedPrice: line.SuggestedPrice,
		}
	}
	return e, nil
}
