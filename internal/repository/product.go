package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/distriplus/backend/internal/domain/pagination"
	"github.com/distriplus/backend/internal/domain/product"
)

const (
	productColumns = `id, name, category, sub_category, code_bar, price_buy, price_sell,
		stock, unit_measure, description, brand, provider, status, change_history,
		created_at, updated_at`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	createProductSQL = `INSERT INTO products
		(id, name, category, sub_category, code_bar, price_buy, price_sell,
		 stock, unit_measure, description, brand, provider, status, change_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	listProductsSQL = `SELECT ` + productColumns + `, count(*) OVER () AS total
		FROM products
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR category = $2)
		  AND ($3 = '' OR sub_category = $3)
		  AND ($4 = '' OR code_bar = $4)
		  AND ($5 = '' OR brand ILIKE '%' || $5 || '%')
		  AND ($6 = '' OR provider ILIKE '%' || $6 || '%')
		  AND ($7::numeric IS NULL OR price_sell >= $7)
		  AND ($8::numeric IS NULL OR price_sell <= $8)
		  AND ($9::integer IS NULL OR stock >= $9)
		  AND ($10::integer IS NULL OR stock <= $10)
		ORDER BY name
		LIMIT $11 OFFSET $12`

	// The stock condition is evaluated by the row write itself, so two
	// concurrent orders can never oversell the same units.
	decrementStockSQL = `UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`

	incrementStockSQL = `UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	history, err := json.Marshal(p.ChangeHistory)
	if err != nil {
		return fmt.Errorf("marshaling product history: %w", err)
	}

	_, err = dbFrom(ctx, r.pool).Exec(ctx, createProductSQL,
		p.ID, p.Name, p.Category, nullable(p.SubCategory), nullable(p.CodeBar),
		p.PriceBuy, p.PriceSell, p.Stock, p.UnitMeasure,
		nullable(p.Description), nullable(p.Brand), nullable(p.Provider),
		p.Status, history,
	)
	if err != nil {
		if uniqueViolation(err, "products_code_bar_key") {
			return &product.DuplicateBarcodeError{CodeBar: p.CodeBar}
		}
		return fmt.Errorf("creating product %q: %w", p.ID, err)
	}
	return nil
}

// Update applies the non-nil fields of u and appends the history entry in
// the same statement. Stock is deliberately not updatable here.
func (r *ProductRepository) Update(ctx context.Context, id string, u product.Update) (*product.Product, error) {
	b := newUpdateBuilder("products", id)
	b.set("name", u.Name)
	b.set("category", u.Category)
	b.set("sub_category", u.SubCategory)
	b.set("code_bar", u.CodeBar)
	if u.PriceBuy != nil {
		b.setRaw("price_buy", *u.PriceBuy)
	}
	if u.PriceSell != nil {
		b.setRaw("price_sell", *u.PriceSell)
	}
	b.set("unit_measure", u.UnitMeasure)
	b.set("description", u.Description)
	b.set("brand", u.Brand)
	b.set("provider", u.Provider)
	b.set("status", u.Status)
	if u.Entry != nil {
		entry, err := json.Marshal(u.Entry)
		if err != nil {
			return nil, fmt.Errorf("marshaling history entry: %w", err)
		}
		b.appendHistory(entry)
	}

	sql, args := b.build(productColumns)
	rows, err := dbFrom(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		if uniqueViolation(err, "products_code_bar_key") {
			return nil, &product.DuplicateBarcodeError{CodeBar: deref(u.CodeBar)}
		}
		return nil, fmt.Errorf("updating product %q: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		if uniqueViolation(err, "products_code_bar_key") {
			return nil, &product.DuplicateBarcodeError{CodeBar: deref(u.CodeBar)}
		}
		return nil, fmt.Errorf("updating product %q: %w", id, err)
	}
	return &p, nil
}

// List returns a filtered page of products ordered by name.
func (r *ProductRepository) List(ctx context.Context, filter product.ListFilter) (pagination.Page[product.Product], error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, listProductsSQL,
		filter.NameMatch, filter.Category, filter.SubCategory, filter.CodeBar,
		filter.BrandMatch, filter.ProviderMatch,
		filter.MinPrice, filter.MaxPrice, filter.MinStock, filter.MaxStock,
		filter.Limit, filter.Offset(),
	)
	if err != nil {
		return pagination.Page[product.Product]{}, fmt.Errorf("listing products: %w", err)
	}

	var total int
	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (product.Product, error) {
		return scanProductColumns(func(dest ...any) error {
			return row.Scan(append(dest, &total)...)
		})
	})
	if err != nil {
		return pagination.Page[product.Product]{}, fmt.Errorf("listing products: %w", err)
	}
	return pagination.NewPage(products, filter.Params, total), nil
}

// DecrementStock subtracts qty from the product's stock if and only if at
// least qty units are available at write time.
func (r *ProductRepository) DecrementStock(ctx context.Context, id string, qty int) (bool, error) {
	tag, err := dbFrom(ctx, r.pool).Exec(ctx, decrementStockSQL, id, qty)
	if err != nil {
		return false, fmt.Errorf("decrementing stock for product %q: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementStock adds the given quantities back as one batched round trip.
func (r *ProductRepository) IncrementStock(ctx context.Context, quantities map[string]int) error {
	batch := &pgx.Batch{}
	for id, qty := range quantities {
		batch.Queue(incrementStockSQL, id, qty)
	}

	results := dbFrom(ctx, r.pool).SendBatch(ctx, batch)
	defer results.Close() //nolint:errcheck

	for range quantities {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("incrementing stock: %w", err)
		}
	}
	return results.Close()
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	return scanProductColumns(row.Scan)
}

func scanProductColumns(scan func(dest ...any) error) (product.Product, error) {
	var (
		p           product.Product
		subCategory *string
		codeBar     *string
		description *string
		brand       *string
		provider    *string
		history     []byte
	)
	err := scan(
		&p.ID, &p.Name, &p.Category, &subCategory, &codeBar, &p.PriceBuy, &p.PriceSell,
		&p.Stock, &p.UnitMeasure, &description, &brand, &provider, &p.Status, &history,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return p, err
	}
	p.SubCategory = deref(subCategory)
	p.CodeBar = deref(codeBar)
	p.Description = deref(description)
	p.Brand = deref(brand)
	p.Provider = deref(provider)
	if err := json.Unmarshal(history, &p.ChangeHistory); err != nil {
		return p, fmt.Errorf("unmarshaling product history: %w", err)
	}
	return p, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
