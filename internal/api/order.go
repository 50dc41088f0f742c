package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/distriplus/backend/internal/domain/history"
	"github.com/distriplus/backend/internal/domain/order"
)

var errInvalidPeriod = errors.New("invalid parameter period")

type orderResponse struct {
	ID                 string            `json:"id"`
	ClientID           string            `json:"clientId"`
	Items              []order.OrderItem `json:"items"`
	SubTotal           decimal.Decimal   `json:"subTotal"`
	TotalAmount        decimal.Decimal   `json:"totalAmount"`
	InvoiceNumber      string            `json:"invoiceNumber"`
	IncreasePct        *decimal.Decimal  `json:"increasePct,omitempty"`
	DiscountPct        *decimal.Decimal  `json:"discountPct,omitempty"`
	DiscountAmount     *decimal.Decimal  `json:"discountAmount,omitempty"`
	SuggestedPriceRate *decimal.Decimal  `json:"suggestedPriceRate,omitempty"`
	ChangeHistory      []history.Entry   `json:"changeHistory"`
	CreatedAt          time.Time         `json:"createdAt"`
	UpdatedAt          time.Time         `json:"updatedAt"`
}

func toOrderResponse(o *order.Order) orderResponse {
	return orderResponse{
		ID:                 o.ID,
		ClientID:           o.ClientID,
		Items:              o.Items,
		SubTotal:           o.SubTotal,
		TotalAmount:        o.TotalAmount,
		InvoiceNumber:      o.InvoiceNumber,
		IncreasePct:        o.IncreasePct,
		DiscountPct:        o.DiscountPct,
		DiscountAmount:     o.DiscountAmount,
		SuggestedPriceRate: o.SuggestedPriceRate,
		ChangeHistory:      o.ChangeHistory,
		CreatedAt:          o.CreatedAt,
		UpdatedAt:          o.UpdatedAt,
	}
}

type orderItemInput struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gte=1"`
}

type createOrderRequest struct {
	ClientID string           `json:"clientId" validate:"required"`
	Items    []orderItemInput `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.Create(r.Context(), order.CreateRequest{
		ClientID: req.ClientID,
		Items:    toItemInputs(req.Items),
	}, actorFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetByID(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateOrderRequest struct {
	Items []orderItemInput `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.Update(r.Context(), chi.URLParam(r, "orderID"), order.UpdateRequest{
		Items: toItemInputs(req.Items),
	}, actorFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type adjustPricesRequest struct {
	Increase           *decimal.Decimal `json:"increase"`
	Decrease           *decimal.Decimal `json:"decrease"`
	SuggestedPriceRate *decimal.Decimal `json:"suggestedPriceRate"`
}

func (h *Handler) adjustOrderPrices(w http.ResponseWriter, r *http.Request) {
	var req adjustPricesRequest
	if !h.decode(w, r, &req) {
		return
	}

	o, err := h.orders.AdjustPrices(r.Context(), chi.URLParam(r, "orderID"), order.PriceAdjustment{
		IncreasePct:        req.Increase,
		DecreasePct:        req.Decrease,
		SuggestedPriceRate: req.SuggestedPriceRate,
	}, actorFrom(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := order.ListFilter{
		ClientID:      q.Get("clientId"),
		InvoiceNumber: q.Get("invoiceNumber"),
		SortBy:        q.Get("sortBy"),
		SortOrder:     q.Get("sortOrder"),
		Params:        queryParams(q.Get("page"), q.Get("limit")),
	}
	var err error
	filter.DateFrom, err = dateParam(q.Get("dateFrom"), "dateFrom")
	if err == nil {
		filter.DateTo, err = dateParam(q.Get("dateTo"), "dateTo")
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := h.orders.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) invoiceReport(w http.ResponseWriter, r *http.Request) {
	filter, err := reportFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.orders.GetInvoiceReport(r.Context(), filter)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func reportFilter(r *http.Request) (order.ReportFilter, error) {
	q := r.URL.Query()
	filter := order.ReportFilter{}

	switch period := q.Get("period"); period {
	case "", "custom":
	case string(order.PeriodDaily), string(order.PeriodWeekly), string(order.PeriodMonthly):
		filter.Period = order.Period(period)
	default:
		return filter, errInvalidPeriod
	}

	var err error
	filter.StartDate, err = dateParam(q.Get("startDate"), "startDate")
	if err == nil {
		filter.EndDate, err = dateParam(q.Get("endDate"), "endDate")
	}
	return filter, err
}

func toItemInputs(items []orderItemInput) []order.ItemInput {
	out := make([]order.ItemInput, len(items))
	for i, item := range items {
		out[i] = order.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity}
	}
	return out
}
