package client

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/distriplus/backend/internal/domain/history"
	"github.com/distriplus/backend/internal/domain/pagination"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// CreateRequest holds the validated input for registering a client.
type CreateRequest struct {
	Name           string
	Email          string
	PhoneNumber    string
	BusinessName   string
	CommerceName   string
	Address        Address
	IvaCondition   IvaCondition
	CUIT           string
	IngresosBrutos string
}

// UpdateRequest holds the partial input for a client update. Nil fields are
// not modified.
type UpdateRequest struct {
	Name           *string
	Email          *string
	PhoneNumber    *string
	BusinessName   *string
	CommerceName   *string
	Address        *Address
	IvaCondition   *IvaCondition
	IngresosBrutos *string
	Status         *string
}

// Service exposes the client registry operations.
type Service struct {
	clients Repository
}

// NewService creates a client Service.
func NewService(clients Repository) *Service {
	return &Service{clients: clients}
}

// Create registers a new client. Free-text identity fields are uppercased so
// lookups stay consistent regardless of how operators type them.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor string) (*Client, error) {
	c := &Client{
		ID:             uuid.New().String(),
		Name:           strings.ToUpper(req.Name),
		Email:          req.Email,
		PhoneNumber:    req.PhoneNumber,
		BusinessName:   strings.ToUpper(req.BusinessName),
		CommerceName:   strings.ToUpper(req.CommerceName),
		Address:        req.Address,
		IvaCondition:   req.IvaCondition,
		CUIT:           req.CUIT,
		IngresosBrutos: req.IngresosBrutos,
		Status:         "active",
		ChangeHistory:  []history.Entry{history.Creation(actor)},
	}
	if c.IvaCondition == "" {
		c.IvaCondition = IvaConsumidorFinal
	}

	if err := s.clients.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create client")
	}
	return c, nil
}

// GetByID returns a single client.
func (s *Service) GetByID(ctx context.Context, id string) (*Client, error) {
	return s.clients.GetByID(ctx, id)
}

// Update applies the supplied fields to an existing client and appends one
// audit entry covering exactly the fields that changed.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest, actor string) (*Client, error) {
	existing, err := s.clients.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var d history.Diff
	u := Update{}
	if req.Name != nil {
		name := strings.ToUpper(*req.Name)
		d.Compare("name", existing.Name, name)
		u.Name = &name
	}
	if req.Email != nil {
		d.Compare("email", existing.Email, *req.Email)
		u.Email = req.Email
	}
	if req.PhoneNumber != nil {
		d.Compare("phoneNumber", existing.PhoneNumber, *req.PhoneNumber)
		u.PhoneNumber = req.PhoneNumber
	}
	if req.BusinessName != nil {
		bn := strings.ToUpper(*req.BusinessName)
		d.Compare("businessName", existing.BusinessName, bn)
		u.BusinessName = &bn
	}
	if req.CommerceName != nil {
		cn := strings.ToUpper(*req.CommerceName)
		d.Compare("commerceName", existing.CommerceName, cn)
		u.CommerceName = &cn
	}
	if req.Address != nil {
		d.Compare("address", formatAddress(existing.Address), formatAddress(*req.Address))
		u.Address = req.Address
	}
	if req.IvaCondition != nil {
		d.Compare("ivaCondition", string(existing.IvaCondition), string(*req.IvaCondition))
		u.IvaCondition = req.IvaCondition
	}
	if req.IngresosBrutos != nil {
		d.Compare("ingresosBrutos", existing.IngresosBrutos, *req.IngresosBrutos)
		u.IngresosBrutos = req.IngresosBrutos
	}
	if req.Status != nil {
		d.Compare("status", existing.Status, *req.Status)
		u.Status = req.Status
	}

	if entry, ok := d.Entry(actor); ok {
		u.Entry = &entry
	}

	updated, err := s.clients.Update(ctx, id, u)
	if err != nil {
		return nil, errors.Wrap(err, "update client")
	}
	return updated, nil
}

// List returns a filtered page of clients sorted by name.
func (s *Service) List(ctx context.Context, filter ListFilter) (pagination.Page[Client], error) {
	filter.Params = pagination.Normalize(filter.Page, filter.Limit, defaultPageSize, maxPageSize)
	return s.clients.List(ctx, filter)
}

func formatAddress(a Address) string {
	return strings.Join([]string{a.Street, a.Number, a.City, a.Province, a.CP}, " ")
}
