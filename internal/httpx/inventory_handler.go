package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mysafawale-ai/safawala-booking/internal/booking"
	"github.com/mysafawale-ai/safawala-booking/internal/coupons"
	"github.com/mysafawale-ai/safawala-booking/internal/inventory"
)

// InventoryHandler exposes the raw ledger operations used by the item
// selection flow, plus coupon validation.
type InventoryHandler struct {
	Ledger  inventory.Ledger
	Coupons *coupons.Service
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Post("/inventory/reserve", h.adjust)
	r.Get("/products/{id}/stock", h.stock)
	if h.Coupons != nil {
		r.Post("/coupons/validate", h.validateCoupon)
	}
}

type adjustReq struct {
	Operation string `json:"operation"` // reserve | release
	BookingID string `json:"bookingId"`
	Items     []struct {
		ProductID string `json:"product_id"`
		Qty       int    `json:"quantity"`
	} `json:"items"`
}

// adjust serves the reserve/release operations. Reserve is all-or-nothing:
// a shortfall returns 409 with per-item details and changes no stock.
func (h *InventoryHandler) adjust(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.BookingID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bookingId required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var err error
	switch req.Operation {
	case "reserve":
		items := make([]booking.ItemQty, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, booking.ItemQty{ProductID: it.ProductID, Qty: it.Qty})
		}
		if len(items) == 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "no items"})
			return
		}
		err = h.Ledger.Adjust(ctx, req.BookingID, items)
	case "release":
		_, err = h.Ledger.ReleaseAll(ctx, req.BookingID)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "operation must be reserve or release"})
		return
	}

	if err != nil {
		var short *inventory.InsufficientStockError
		if errors.As(err, &short) {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":   "insufficient stock",
				"details": short.Details,
			})
			return
		}
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *InventoryHandler) stock(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	n, err := h.Ledger.Stock(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stock_available": n})
}

type validateCouponReq struct {
	Code            string `json:"code"`
	OrderValuePaise int64  `json:"orderValue"`
	CustomerID      string `json:"customerId"`
}

func (h *InventoryHandler) validateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	res, err := h.Coupons.Validate(ctx, req.Code, req.OrderValuePaise, req.CustomerID)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
