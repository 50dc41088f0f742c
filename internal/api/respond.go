package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/distriplus/backend/internal/auth"
	"github.com/distriplus/backend/internal/domain/client"
	"github.com/distriplus/backend/internal/domain/order"
	"github.com/distriplus/backend/internal/domain/product"
	"github.com/distriplus/backend/internal/domain/user"
)

const maxBodySize = 1 << 20

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// decode reads, unmarshals, and validates a JSON request body.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) && len(vErrs) > 0 {
			writeError(w, http.StatusBadRequest, "invalid field "+vErrs[0].Field())
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// respondError maps domain errors onto HTTP statuses. Anything unmapped is a
// 500 and gets logged with its cause.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, client.ErrNotFound),
		errors.Is(err, product.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())

	case errors.Is(err, order.ErrNoItems),
		errors.Is(err, order.ErrNoAdjustment),
		errors.Is(err, order.ErrNegativeAdjustment):
		writeError(w, http.StatusBadRequest, err.Error())

	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error())

	default:
		var (
			invalidQty  *order.InvalidQuantityError
			noStock     *order.InsufficientStockError
			missingProd *product.NotFoundError
			dupCUIT     *client.DuplicateCUITError
			dupBarcode  *product.DuplicateBarcodeError
			dupEmail    *user.DuplicateEmailError
		)
		switch {
		case errors.As(err, &invalidQty):
			writeError(w, http.StatusBadRequest, invalidQty.Error())
		case errors.As(err, &noStock):
			writeError(w, http.StatusConflict, noStock.Error())
		case errors.As(err, &missingProd):
			writeError(w, http.StatusNotFound, missingProd.Error())
		case errors.As(err, &dupCUIT):
			writeError(w, http.StatusConflict, dupCUIT.Error())
		case errors.As(err, &dupBarcode):
			writeError(w, http.StatusConflict, dupBarcode.Error())
		case errors.As(err, &dupEmail):
			writeError(w, http.StatusConflict, dupEmail.Error())
		default:
			h.lg.Error("request failed",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}
