package httpx

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mysafawale-ai/safawala-booking/internal/booking"
	"github.com/mysafawale-ai/safawala-booking/internal/inventory"
	"github.com/mysafawale-ai/safawala-booking/internal/returns"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor maps the domain error taxonomy onto HTTP codes.
func statusFor(err error) int {
	var (
		ve    booking.ValidationError
		ce    booking.ConflictError
		te    booking.TransitionError
		short *inventory.InsufficientStockError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, returns.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &ce), errors.As(err, &te), errors.As(err, &short),
		errors.Is(err, returns.ErrBarcodeTaken):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrLockTimeout):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
