// Package client manages the customer registry of the distribution business.
package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/distriplus/backend/internal/domain/history"
	"github.com/distriplus/backend/internal/domain/pagination"
)

// ErrNotFound is returned when a requested client does not exist.
var ErrNotFound = errors.New("client not found")

// DuplicateCUITError indicates an attempt to register a second client with
// the same tax identifier.
type DuplicateCUITError struct {
	CUIT string
}

func (e *DuplicateCUITError) Error() string {
	return fmt.Sprintf("client with CUIT %s already exists", e.CUIT)
}

// IvaCondition enumerates the Argentine VAT standings a client can have.
type IvaCondition string

const (
	IvaResponsableInscripto IvaCondition = "RESPONSABLE_INSCRIPTO"
	IvaMonotributo          IvaCondition = "MONOTRIBUTO"
	IvaExento               IvaCondition = "EXENTO"
	IvaConsumidorFinal      IvaCondition = "CONSUMIDOR_FINAL"
)

// Address is the client's registered location.
type Address struct {
	Street   string `json:"street"`
	Number   string `json:"number"`
	City     string `json:"city"`
	Province string `json:"province"`
	CP       string `json:"cp"`
}

// Client is a customer of the distribution business.
type Client struct {
	ID             string
	Name           string
	Email          string
	PhoneNumber    string
	BusinessName   string
	CommerceName   string
	Address        Address
	IvaCondition   IvaCondition
	CUIT           string
	IngresosBrutos string
	Status         string
	ChangeHistory  []history.Entry
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ListFilter narrows a paginated client listing. String fields with a
// Match suffix are case-insensitive substring matches.
type ListFilter struct {
	NameMatch     string
	Email         string
	CUIT          string
	IvaCondition  string
	Status        string
	CityMatch     string
	ProvinceMatch string
	pagination.Params
}

// Repository defines persistence operations for clients.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Client, error)
	Create(ctx context.Context, c *Client) error
	Update(ctx context.Context, id string, u Update) (*Client, error)
	List(ctx context.Context, filter ListFilter) (pagination.Page[Client], error)
}

// Update is the allow-listed set of mutable client fields. Nil pointers are
// left untouched; Entry, when set, is appended to the change history.
type Update struct {
	Name           *string
	Email          *string
	PhoneNumber    *string
	BusinessName   *string
	CommerceName   *string
	Address        *Address
	IvaCondition   *IvaCondition
	IngresosBrutos *string
	Status         *string
	Entry          *history.Entry
}
