package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/distriplus/backend/internal/domain/history"
	"github.com/distriplus/backend/internal/domain/pagination"
	"github.com/distriplus/backend/internal/domain/product"
)

type productResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category"`
	SubCategory   string          `json:"subCategory,omitempty"`
	CodeBar       string          `json:"codeBar,omitempty"`
	PriceBuy      decimal.Decimal `json:"priceBuy"`
	PriceSell     decimal.Decimal `json:"priceSell"`
	Stock         int             `json:"stock"`
	UnitMeasure   string          `json:"unitMeasure"`
	Description   string          `json:"description,omitempty"`
	Brand         string          `json:"brand,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	Status        string          `json:"status"`
	ChangeHistory []history.Entry `json:"changeHistory"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func toProductResponse(p *product.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		SubCategory:   p.SubCategory,
		CodeBar:       p.CodeBar,
		PriceBuy:      p.PriceBuy,
		PriceSell:     p.PriceSell,
		Stock:         p.Stock,
		UnitMeasure:   p.UnitMeasure,
		Description:   p.Description,
		Brand:         p.Brand,
		Provider:      p.Provider,
		Status:        p.Status,
		ChangeHistory: p.ChangeHistory,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

type createProductRequest struct {
	Name        string          `json:"name" validate:"required"`
	Category    string          `json:"category" validate:"required"`
	SubCategory string          `json:"subCategory"`
	CodeBar     string          `json:"codeBar"`
	PriceBuy    decimal.Decimal `json:"priceBuy"`
	PriceSell   decimal.Decimal `json:"priceSell"`
	Stock       int             `json:"stock" validate:"gte=0"`
	UnitMeasure string          `json:"unitMeasure"`
	Description string          `json:"description"`
	Brand       string          `json:"brand"`
	Provider    string          `json:"provider"`
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.products.Create(r.Context(), product.CreateRequest{
		Name:        req.Name,
		Category:    req.Category,
		SubCategory: req.SubCategory,
		CodeBar:     req.CodeBar,
		PriceBuy:    req.PriceBuy,
		PriceSell:   req.PriceSell,
		Stock:       req.Stock,
		UnitMeasure: req.UnitMeasure,
		Description: req.Description,
		Brand:       req.Brand,
		Provider:    req.Provider,
	}, actorFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.GetByID(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

type updateProductRequest struct {
	Name        *string          `json:"name"`
	Category    *string          `json:"category"`
	SubCategory *string          `json:"subCategory"`
	CodeBar     *string          `json:"codeBar"`
	PriceBuy    *decimal.Decimal `json:"priceBuy"`
	PriceSell   *decimal.Decimal `json:"priceSell"`
	UnitMeasure *string          `json:"unitMeasure"`
	Description *string          `json:"description"`
	Brand       *string          `json:"brand"`
	Provider    *string          `json:"provider"`
	Status      *string          `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var req updateProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.products.Update(r.Context(), chi.URLParam(r, "productID"), product.UpdateRequest{
		Name:        req.Name,
		Category:    req.Category,
		SubCategory: req.SubCategory,
		CodeBar:     req.CodeBar,
		PriceBuy:    req.PriceBuy,
		PriceSell:   req.PriceSell,
		UnitMeasure: req.UnitMeasure,
		Description: req.Description,
		Brand:       req.Brand,
		Provider:    req.Provider,
		Status:      req.Status,
	}, actorFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := product.ListFilter{
		NameMatch:     q.Get("name"),
		Category:      q.Get("category"),
		SubCategory:   q.Get("subCategory"),
		CodeBar:       q.Get("codeBar"),
		BrandMatch:    q.Get("brand"),
		ProviderMatch: q.Get("provider"),
		Params:        queryParams(q.Get("page"), q.Get("limit")),
	}
	var err error
	filter.MinPrice, err = decimalParam(q.Get("minPrice"), "minPrice")
	if err == nil {
		filter.MaxPrice, err = decimalParam(q.Get("maxPrice"), "maxPrice")
	}
	if err == nil {
		filter.MinStock, err = intParam(q.Get("minStock"), "minStock")
	}
	if err == nil {
		filter.MaxStock, err = intParam(q.Get("maxStock"), "maxStock")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.products.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]productResponse, len(page.Data))
	for i := range page.Data {
		out[i] = toProductResponse(&page.Data[i])
	}
	writeJSON(w, http.StatusOK, pagination.Page[productResponse]{
		Data:           out,
		Page:           page.Page,
		Limit:          page.Limit,
		TotalDocuments: page.TotalDocuments,
		TotalPages:     page.TotalPages,
		HasNextPage:    page.HasNextPage,
		HasPrevPage:    page.HasPrevPage,
	})
}
