package httpx

import (
	"errors"
	"net/http"

	"github.com/proyek/coffeeshop-pos/internal/orders"
)

// writeEngineErr maps the engine's typed failures onto HTTP status codes in one
// place. Nothing is coerced: insufficient stock and lost transitions carry
// their numbers through to the client.
func writeEngineErr(w http.ResponseWriter, err error) {
	var (
		notFound      *orders.NotFoundError
		validation    *orders.ValidationError
		stock         *orders.InsufficientStockError
		badTransition *orders.InvalidTransitionError
	)
	switch {
	case errors.As(err, &notFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": notFound.Error()})
	case errors.As(err, &validation):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": validation.Error()})
	case errors.As(err, &stock):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":      stock.Error(),
			"product_id": stock.ProductID,
			"requested":  stock.Requested,
			"available":  stock.Available,
		})
	case errors.As(err, &badTransition):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": badTransition.Error(),
			"from":  badTransition.From,
			"to":    badTransition.To,
		})
	case errors.Is(err, orders.ErrConflict):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}
