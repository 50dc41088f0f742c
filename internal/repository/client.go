package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/distriplus/backend/internal/domain/client"
	"github.com/distriplus/backend/internal/domain/pagination"
)

const (
	clientColumns = `id, name, email, phone_number, business_name, commerce_name,
		address, iva_condition, cuit, ingresos_brutos, status, change_history,
		created_at, updated_at`

	getClientByIDSQL = `SELECT ` + clientColumns + ` FROM clients WHERE id = $1`

	createClientSQL = `INSERT INTO clients
		(id, name, email, phone_number, business_name, commerce_name,
		 address, iva_condition, cuit, ingresos_brutos, status, change_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	// The filter guards keep the statement static: an empty parameter
	// disables its clause.
	listClientsSQL = `SELECT ` + clientColumns + `, count(*) OVER () AS total
		FROM clients
		WHERE ($1 = '' OR name ILIKE '%' || $1 || '%')
		  AND ($2 = '' OR email = $2)
		  AND ($3 = '' OR cuit = $3)
		  AND ($4 = '' OR iva_condition = $4)
		  AND ($5 = '' OR status = $5)
		  AND ($6 = '' OR address->>'city' ILIKE '%' || $6 || '%')
		  AND ($7 = '' OR address->>'province' ILIKE '%' || $7 || '%')
		ORDER BY name
		LIMIT $8 OFFSET $9`
)

var _ client.Repository = (*ClientRepository)(nil)

// ClientRepository implements client.Repository backed by PostgreSQL.
type ClientRepository struct {
	pool *pgxpool.Pool
}

// NewClientRepository returns a ClientRepository that uses the given pool.
func NewClientRepository(pool *pgxpool.Pool) *ClientRepository {
	return &ClientRepository{pool: pool}
}

// GetByID returns a single client by its identifier.
func (r *ClientRepository) GetByID(ctx context.Context, id string) (*client.Client, error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, getClientByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting client %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanClient)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, client.ErrNotFound
		}
		return nil, fmt.Errorf("getting client %q: %w", id, err)
	}
	return &c, nil
}

// Create persists a new client. Address and change history are serialized to
// JSONB.
func (r *ClientRepository) Create(ctx context.Context, c *client.Client) error {
	address, err := json.Marshal(c.Address)
	if err != nil {
		return fmt.Errorf("marshaling client address: %w", err)
	}
	history, err := json.Marshal(c.ChangeHistory)
	if err != nil {
		return fmt.Errorf("marshaling client history: %w", err)
	}

	_, err = dbFrom(ctx, r.pool).Exec(ctx, createClientSQL,
		c.ID, c.Name, c.Email, c.PhoneNumber, c.BusinessName, c.CommerceName,
		address, string(c.IvaCondition), nullable(c.CUIT), nullable(c.IngresosBrutos),
		c.Status, history,
	)
	if err != nil {
		if uniqueViolation(err, "clients_cuit_key") {
			return &client.DuplicateCUITError{CUIT: c.CUIT}
		}
		return fmt.Errorf("creating client %q: %w", c.ID, err)
	}
	return nil
}

// Update applies the non-nil fields of u and appends the history entry in
// the same statement.
func (r *ClientRepository) Update(ctx context.Context, id string, u client.Update) (*client.Client, error) {
	b := newUpdateBuilder("clients", id)
	b.set("name", u.Name)
	b.set("email", u.Email)
	b.set("phone_number", u.PhoneNumber)
	b.set("business_name", u.BusinessName)
	b.set("commerce_name", u.CommerceName)
	if u.Address != nil {
		address, err := json.Marshal(u.Address)
		if err != nil {
			return nil, fmt.Errorf("marshaling client address: %w", err)
		}
		b.setRaw("address", address)
	}
	if u.IvaCondition != nil {
		b.setRaw("iva_condition", string(*u.IvaCondition))
	}
	b.set("ingresos_brutos", u.IngresosBrutos)
	b.set("status", u.Status)
	if u.Entry != nil {
		entry, err := json.Marshal(u.Entry)
		if err != nil {
			return nil, fmt.Errorf("marshaling history entry: %w", err)
		}
		b.appendHistory(entry)
	}

	sql, args := b.build(clientColumns)
	rows, err := dbFrom(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("updating client %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanClient)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, client.ErrNotFound
		}
		return nil, fmt.Errorf("updating client %q: %w", id, err)
	}
	return &c, nil
}

// List returns a filtered page of clients ordered by name.
func (r *ClientRepository) List(ctx context.Context, filter client.ListFilter) (pagination.Page[client.Client], error) {
	rows, err := dbFrom(ctx, r.pool).Query(ctx, listClientsSQL,
		filter.NameMatch, filter.Email, filter.CUIT, filter.IvaCondition,
		filter.Status, filter.CityMatch, filter.ProvinceMatch,
		filter.Limit, filter.Offset(),
	)
	if err != nil {
		return pagination.Page[client.Client]{}, fmt.Errorf("listing clients: %w", err)
	}

	var total int
	clients, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (client.Client, error) {
		return scanClientWithTotal(row, &total)
	})
	if err != nil {
		return pagination.Page[client.Client]{}, fmt.Errorf("listing clients: %w", err)
	}
	return pagination.NewPage(clients, filter.Params, total), nil
}

func scanClient(row pgx.CollectableRow) (client.Client, error) {
	return scanClientColumns(row.Scan)
}

func scanClientWithTotal(row pgx.CollectableRow, total *int) (client.Client, error) {
	return scanClientColumns(func(dest ...any) error {
		return row.Scan(append(dest, total)...)
	})
}

func scanClientColumns(scan func(dest ...any) error) (client.Client, error) {
	var (
		c       client.Client
		address []byte
		history []byte
		cuit    *string
		ingreso *string
	)
	err := scan(
		&c.ID, &c.Name, &c.Email, &c.PhoneNumber, &c.BusinessName, &c.CommerceName,
		&address, (*string)(&c.IvaCondition), &cuit, &ingreso, &c.Status, &history,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	if cuit != nil {
		c.CUIT = *cuit
	}
	if ingreso != nil {
		c.IngresosBrutos = *ingreso
	}
	if err := json.Unmarshal(address, &c.Address); err != nil {
		return c, fmt.Errorf("unmarshaling client address: %w", err)
	}
	if err := json.Unmarshal(history, &c.ChangeHistory); err != nil {
		return c, fmt.Errorf("unmarshaling client history: %w", err)
	}
	return c, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
