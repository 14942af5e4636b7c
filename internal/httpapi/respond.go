package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vendaro/commerce-engine/internal/domain"
)

// errorEnvelope — машинно-читаемая форма ошибки API.
type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Available — доступный остаток; заполняется только для insufficient_stock.
	Available *int64 `json:"available,omitempty"`
}

var errorKinds = []struct {
	target error
	kind   string
	status int
}{
	{domain.ErrNoTenantAvailable, "no_tenant_available", http.StatusServiceUnavailable},
	{domain.ErrProductNotFound, "product_not_found", http.StatusNotFound},
	{domain.ErrVariantRequired, "variant_required", http.StatusUnprocessableEntity},
	{domain.ErrVariantNotAllowed, "variant_not_allowed", http.StatusUnprocessableEntity},
	{domain.ErrVariantNotFound, "variant_not_found", http.StatusNotFound},
	{domain.ErrVariantInactive, "variant_inactive", http.StatusUnprocessableEntity},
	{domain.ErrInvalidQuantity, "invalid_quantity", http.StatusUnprocessableEntity},
	{domain.ErrPricingClassInvalid, "pricing_class_invalid", http.StatusUnprocessableEntity},
	{domain.ErrInsufficientStock, "insufficient_stock", http.StatusConflict},
	{domain.ErrCartNotFound, "cart_not_found", http.StatusNotFound},
	{domain.ErrCartLineNotFound, "cart_line_not_found", http.StatusNotFound},
	{domain.ErrCartOwnerInvalid, "cart_owner_invalid", http.StatusBadRequest},
	{domain.ErrStockConflict, "stock_conflict", http.StatusConflict},
	{domain.ErrIdempotencyHashMismatch, "idempotency_key_reuse", http.StatusUnprocessableEntity},
	{domain.ErrIdempotencyKeyAlreadyExists, "idempotency_in_progress", http.StatusConflict},
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	envelope := errorEnvelope{Error: apiError{Kind: "internal", Message: "internal error"}}
	status := http.StatusInternalServerError

	for _, e := range errorKinds {
		if errors.Is(err, e.target) {
			envelope.Error.Kind = e.kind
			envelope.Error.Message = err.Error()
			status = e.status
			break
		}
	}
	if available, ok := domain.AvailableFromError(err); ok {
		envelope.Error.Available = &available
	}
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}

	writeJSON(w, status, envelope)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// decodeJSON читает тело запроса, отклоняя неизвестные поля.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
