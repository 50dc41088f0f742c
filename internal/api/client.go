package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/distriplus/backend/internal/domain/client"
	"github.com/distriplus/backend/internal/domain/history"
	"github.com/distriplus/backend/internal/domain/pagination"
)

type addressDTO struct {
	Street   string `json:"street"`
	Number   string `json:"number"`
	City     string `json:"city"`
	Province string `json:"province"`
	CP       string `json:"cp"`
}

type clientResponse struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	PhoneNumber    string          `json:"phoneNumber"`
	BusinessName   string          `json:"businessName"`
	CommerceName   string          `json:"commerceName"`
	Address        addressDTO      `json:"address"`
	IvaCondition   string          `json:"ivaCondition"`
	CUIT           string          `json:"cuit,omitempty"`
	IngresosBrutos string          `json:"ingresosBrutos,omitempty"`
	Status         string          `json:"status"`
	ChangeHistory  []history.Entry `json:"changeHistory"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

func toClientResponse(c *client.Client) clientResponse {
	return clientResponse{
		ID:             c.ID,
		Name:           c.Name,
		Email:          c.Email,
		PhoneNumber:    c.PhoneNumber,
		BusinessName:   c.BusinessName,
		CommerceName:   c.CommerceName,
		Address:        addressDTO(c.Address),
		IvaCondition:   string(c.IvaCondition),
		CUIT:           c.CUIT,
		IngresosBrutos: c.IngresosBrutos,
		Status:         c.Status,
		ChangeHistory:  c.ChangeHistory,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

type createClientRequest struct {
	Name           string     `json:"name" validate:"required"`
	Email          string     `json:"email" validate:"omitempty,email"`
	PhoneNumber    string     `json:"phoneNumber"`
	BusinessName   string     `json:"businessName"`
	CommerceName   string     `json:"commerceName"`
	Address        addressDTO `json:"address"`
	IvaCondition   string     `json:"ivaCondition" validate:"omitempty,oneof=RESPONSABLE_INSCRIPTO MONOTRIBUTO EXENTO CONSUMIDOR_FINAL"`
	CUIT           string     `json:"cuit"`
	IngresosBrutos string     `json:"ingresosBrutos"`
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req createClientRequest
	if !h.decode(w, r, &req) {
		return
	}

	c, err := h.clients.Create(r.Context(), client.CreateRequest{
		Name:           req.Name,
		Email:          req.Email,
		PhoneNumber:    req.PhoneNumber,
		BusinessName:   req.BusinessName,
		CommerceName:   req.CommerceName,
		Address:        client.Address(req.Address),
		IvaCondition:   client.IvaCondition(req.IvaCondition),
		CUIT:           req.CUIT,
		IngresosBrutos: req.IngresosBrutos,
	}, actorFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toClientResponse(c))
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	c, err := h.clients.GetByID(r.Context(), chi.URLParam(r, "clientID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(c))
}

type updateClientRequest struct {
	Name           *string     `json:"name"`
	Email          *string     `json:"email" validate:"omitempty,email"`
	PhoneNumber    *string     `json:"phoneNumber"`
	BusinessName   *string     `json:"businessName"`
	CommerceName   *string     `json:"commerceName"`
	Address        *addressDTO `json:"address"`
	IvaCondition   *string     `json:"ivaCondition" validate:"omitempty,oneof=RESPONSABLE_INSCRIPTO MONOTRIBUTO EXENTO CONSUMIDOR_FINAL"`
	IngresosBrutos *string     `json:"ingresosBrutos"`
	Status         *string     `json:"status" validate:"omitempty,oneof=active inactive"`
}

func (h *Handler) updateClient(w http.ResponseWriter, r *http.Request) {
	var req updateClientRequest
	if !h.decode(w, r, &req) {
		return
	}

	domainReq := client.UpdateRequest{
		Name:           req.Name,
		Email:          req.Email,
		PhoneNumber:    req.PhoneNumber,
		BusinessName:   req.BusinessName,
		CommerceName:   req.CommerceName,
		IngresosBrutos: req.IngresosBrutos,
		Status:         req.Status,
	}
	if req.Address != nil {
		addr := client.Address(*req.Address)
		domainReq.Address = &addr
	}
	if req.IvaCondition != nil {
		cond := client.IvaCondition(*req.IvaCondition)
		domainReq.IvaCondition = &cond
	}

	c, err := h.clients.Update(r.Context(), chi.URLParam(r, "clientID"), domainReq, actorFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientResponse(c))
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := client.ListFilter{
		NameMatch:     q.Get("name"),
		Email:         q.Get("email"),
		CUIT:          q.Get("cuit"),
		IvaCondition:  q.Get("ivaCondition"),
		Status:        q.Get("status"),
		CityMatch:     q.Get("city"),
		ProvinceMatch: q.Get("province"),
		Params:        queryParams(q.Get("page"), q.Get("limit")),
	}

	page, err := h.clients.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	out := make([]clientResponse, len(page.Data))
	for i := range page.Data {
		out[i] = toClientResponse(&page.Data[i])
	}
	writeJSON(w, http.StatusOK, pagination.Page[clientResponse]{
		Data:           out,
		Page:           page.Page,
		Limit:          page.Limit,
		TotalDocuments: page.TotalDocuments,
		TotalPages:     page.TotalPages,
		HasNextPage:    page.HasNextPage,
		HasPrevPage:    page.HasPrevPage,
	})
}

// queryParams parses raw page and limit query values. Bounds are applied by
// the services.
func queryParams(page, limit string) pagination.Params {
	p, _ := strconv.Atoi(page)
	l, _ := strconv.Atoi(limit)
	return pagination.Params{Page: p, Limit: l}
}
