package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/distriplus/backend/internal/domain/history"
	"github.com/distriplus/backend/internal/domain/pagination"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// CreateRequest holds the validated input for registering a product.
type CreateRequest struct {
	Name        string
	Category    string
	SubCategory string
	CodeBar     string
	PriceBuy    decimal.Decimal
	PriceSell   decimal.Decimal
	Stock       int
	UnitMeasure string
	Description string
	Brand       string
	Provider    string
}

// UpdateRequest holds the partial input for a product update. Nil fields are
// not modified.
type UpdateRequest struct {
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
}

// Service exposes catalog operations.
type Service struct {
	products Repository
}

// NewService creates a product Service.
func NewService(products Repository) *Service {
	return &Service{products: products}
}

// Create registers a new product with an initial audit entry.
func (s *Service) Create(ctx context.Context, req CreateRequest, actor string) (*Product, error) {
	p := &Product{
		ID:            uuid.New().String(),
		Name:          strings.ToUpper(req.Name),
		Category:      strings.ToUpper(req.Category),
		SubCategory:   strings.ToUpper(req.SubCategory),
		CodeBar:       req.CodeBar,
		PriceBuy:      req.PriceBuy,
		PriceSell:     req.PriceSell,
		Stock:         req.Stock,
		UnitMeasure:   strings.ToUpper(req.UnitMeasure),
		Description:   req.Description,
		Brand:         strings.ToUpper(req.Brand),
		Provider:      strings.ToUpper(req.Provider),
		Status:        "active",
		ChangeHistory: []history.Entry{history.Creation(actor)},
	}

	if err := s.products.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// GetByID returns a single product.
func (s *Service) GetByID(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// Update applies the supplied fields and appends one audit entry covering
// exactly the fields that changed. Stock cannot be edited here.
func (s *Service) Update(ctx context.Context, id string, req UpdateRequest, actor string) (*Product, error) {
	existing, err := s.products.GetByID(ctx, id)
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
	if req.Category != nil {
		cat := strings.ToUpper(*req.Category)
		d.Compare("category", existing.Category, cat)
		u.Category = &cat
	}
	if req.SubCategory != nil {
		sub := strings.ToUpper(*req.SubCategory)
		d.Compare("subCategory", existing.SubCategory, sub)
		u.SubCategory = &sub
	}
	if req.CodeBar != nil {
		d.Compare("codeBar", existing.CodeBar, *req.CodeBar)
		u.CodeBar = req.CodeBar
	}
	if req.PriceBuy != nil {
		d.Compare("priceBuy", existing.PriceBuy.StringFixed(2), req.PriceBuy.StringFixed(2))
		u.PriceBuy = req.PriceBuy
	}
	if req.PriceSell != nil {
		d.Compare("priceSell", existing.PriceSell.StringFixed(2), req.PriceSell.StringFixed(2))
		u.PriceSell = req.PriceSell
	}
	if req.UnitMeasure != nil {
		um := strings.ToUpper(*req.UnitMeasure)
		d.Compare("unitMeasure", existing.UnitMeasure, um)
		u.UnitMeasure = &um
	}
	if req.Description != nil {
		d.Compare("description", existing.Description, *req.Description)
		u.Description = req.Description
	}
	if req.Brand != nil {
		brand := strings.ToUpper(*req.Brand)
		d.Compare("brand", existing.Brand, brand)
		u.Brand = &brand
	}
	if req.Provider != nil {
		prov := strings.ToUpper(*req.Provider)
		d.Compare("provider", existing.Provider, prov)
		u.Provider = &prov
	}
	if req.Status != nil {
		d.Compare("status", existing.Status, *req.Status)
		u.Status = req.Status
	}

	if entry, ok := d.Entry(actor); ok {
		u.Entry = &entry
	}

	updated, err := s.products.Update(ctx, id, u)
	if err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	return updated, nil
}

// List returns a filtered page of products sorted by name.
func (s *Service) List(ctx context.Context, filter ListFilter) (pagination.Page[Product], error) {
	filter.Params = pagination.Normalize(filter.Page, filter.Limit, defaultPageSize, maxPageSize)
	return s.products.List(ctx, filter)
}
