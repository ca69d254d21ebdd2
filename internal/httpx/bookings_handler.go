package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mysafawale-ai/safawala-booking/internal/booking"
	"github.com/mysafawale-ai/safawala-booking/internal/fulfillment"
	"github.com/mysafawale-ai/safawala-booking/internal/pricing"
	"github.com/mysafawale-ai/safawala-booking/internal/returns"
)

type BookingsHandler struct {
	Svc *fulfillment.Service
}

func (h *BookingsHandler) Register(r *chi.Mux) {
	r.Post("/bookings", h.create)
	r.Get("/bookings", h.fetchMany)
	r.Get("/bookings/{id}", h.get)
	r.Get("/bookings/{id}/status", h.status)
	r.Post("/bookings/{id}/items", h.attachItems)
	r.Post("/bookings/{id}/convert", h.convert)
	r.Post("/bookings/{id}/deliver", h.deliver)
	r.Post("/bookings/{id}/cancel", h.cancel)
	r.Delete("/bookings/{id}", h.delete)
	r.Get("/bookings/{id}/barcodes", h.barcodes)
	r.Get("/bookings/{id}/returns", h.returnStats)
	r.Post("/bookings/{id}/adjustments", h.addAdjustment)
	r.Post("/barcodes/scan", h.scan)
}

type lineReq struct {
	Source              booking.LineSource `json:"source"`
	ProductID           string             `json:"product_id,omitempty"`
	PackageID           string             `json:"package_id,omitempty"`
	Qty                 int                `json:"qty"`
	UnitPricePaise      int64              `json:"unit_price_paise"`
	DepositPerUnitPaise int64              `json:"deposit_per_unit_paise"`
}

func (l lineReq) toLine() booking.Line {
	if l.Source == booking.SourcePackage {
		return booking.PackageLine(l.PackageID, l.Qty, l.UnitPricePaise, l.DepositPerUnitPaise)
	}
	return booking.ProductLine(l.ProductID, l.Qty, l.UnitPricePaise, l.DepositPerUnitPaise)
}

func toLines(reqs []lineReq) []booking.Line {
	out := make([]booking.Line, 0, len(reqs))
	for _, lr := range reqs {
		out = append(out, lr.toLine())
	}
	return out
}

type createBookingReq struct {
	CustomerID        string              `json:"customer_id"`
	Kind              booking.Kind        `json:"kind"`
	Quote             bool                `json:"quote"`
	Items             []lineReq           `json:"items"`
	EventDate         time.Time           `json:"event_date"`
	DeliveryDate      *time.Time          `json:"delivery_date,omitempty"`
	ReturnDue         *time.Time          `json:"return_due,omitempty"`
	DiscountPaise     int64               `json:"discount_paise"`
	CouponCode        string              `json:"coupon_code,omitempty"`
	DepositExtraPaise int64               `json:"deposit_extra_paise"`
	PaymentType       pricing.PaymentType `json:"payment_type"`
	CustomPaise       int64               `json:"custom_paise"`
}

func (h *BookingsHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createBookingReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	b, err := h.Svc.Create(ctx, fulfillment.CreateInput{
		CustomerID:        req.CustomerID,
		Kind:              req.Kind,
		Quote:             req.Quote,
		Items:             toLines(req.Items),
		EventDate:         req.EventDate,
		DeliveryDate:      req.DeliveryDate,
		ReturnDue:         req.ReturnDue,
		DiscountPaise:     req.DiscountPaise,
		CouponCode:        req.CouponCode,
		DepositExtraPaise: req.DepositExtraPaise,
		PaymentType:       req.PaymentType,
		CustomPaise:       req.CustomPaise,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bookingResp(b))
}

func (h *BookingsHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	b, err := h.Svc.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResp(b))
}

// fetchMany serves /bookings?ids=a,b,c with a per-item success/failure
// report instead of an all-or-nothing response.
func (h *BookingsHandler) fetchMany(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("ids"))
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "ids query parameter required"})
		return
	}
	ids := strings.Split(raw, ",")

	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	report, err := h.Svc.FetchAll(ctx, ids)
	if err != nil {
		writeErr(w, err)
		return
	}
	failed := make(map[string]string, len(report.Failed))
	for id, ferr := range report.Failed {
		failed[id] = ferr.Error()
	}
	bookings := make([]map[string]any, 0, len(report.Bookings))
	for _, b := range report.Bookings {
		bookings = append(bookings, bookingResp(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings, "failed": failed})
}

func (h *BookingsHandler) status(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	st, err := h.Svc.StatusOf(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": st})
}

type attachItemsReq struct {
	Version int       `json:"version"`
	Items   []lineReq `json:"items"`
}

func (h *BookingsHandler) attachItems(w http.ResponseWriter, r *http.Request) {
	var req attachItemsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	b, err := h.Svc.AttachItems(ctx, chi.URLParam(r, "id"), req.Version, toLines(req.Items))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResp(b))
}

type versionReq struct {
	Version int `json:"version"`
}

func (h *BookingsHandler) convert(w http.ResponseWriter, r *http.Request) {
	var req versionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	b, err := h.Svc.ConvertQuote(ctx, chi.URLParam(r, "id"), req.Version)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResp(b))
}

type deliverReq struct {
	Version  int                        `json:"version"`
	Barcodes []fulfillment.BarcodeIssue `json:"barcodes"`
}

func (h *BookingsHandler) deliver(w http.ResponseWriter, r *http.Request) {
	var req deliverReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	b, err := h.Svc.MarkDelivered(ctx, chi.URLParam(r, "id"), req.Version, req.Barcodes)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResp(b))
}

func (h *BookingsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	var req versionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	b, err := h.Svc.Cancel(ctx, chi.URLParam(r, "id"), req.Version)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bookingResp(b))
}

func (h *BookingsHandler) delete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := h.Svc.Delete(ctx, chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *BookingsHandler) barcodes(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	as, err := h.Svc.Tracker.Store.ListAssignments(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"barcodes": as})
}

func (h *BookingsHandler) returnStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	id := chi.URLParam(r, "id")
	stats, err := h.Svc.Tracker.StatsFor(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	adjs, err := h.Svc.Tracker.Adjustments(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stats": stats, "adjustments": adjs})
}

type adjustmentReq struct {
	ProductID   string `json:"product_id,omitempty"`
	AmountPaise int64  `json:"amount_paise"`
	Reason      string `json:"reason"`
}

func (h *BookingsHandler) addAdjustment(w http.ResponseWriter, r *http.Request) {
	var req adjustmentReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	adj := returns.Adjustment{
		BookingID:   chi.URLParam(r, "id"),
		ProductID:   req.ProductID,
		AmountPaise: req.AmountPaise,
		Reason:      req.Reason,
	}
	if err := h.Svc.Tracker.AddAdjustment(ctx, adj); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, adj)
}

type scanReq struct {
	BarcodeID string `json:"barcode_id"`
}

func (h *BookingsHandler) scan(w http.ResponseWriter, r *http.Request) {
	var req scanReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BarcodeID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "barcode_id required"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	a, b, err := h.Svc.RecordReturn(ctx, req.BarcodeID, time.Now().UTC())
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"assignment":     a,
		"booking_status": b.Status,
	})
}

func bookingResp(b booking.Booking) map[string]any {
	items := make([]map[string]any, 0, len(b.Items))
	for _, l := range b.Items {
		items = append(items, map[string]any{
			"source":                 l.Source,
			"ref":                    l.Ref(),
			"qty":                    l.Qty,
			"unit_price_paise":       l.UnitPricePaise,
			"total_paise":            l.TotalPaise,
			"deposit_per_unit_paise": l.DepositPerUnitPaise,
		})
	}
	return map[string]any{
		"id":         b.ID,
		"number":     b.Number,
		"customer":   b.CustomerID,
		"kind":       b.Kind,
		"status":     b.Status,
		"version":    b.Version,
		"items":      items,
		"financials": b.Financials,
		"event_date": b.EventDate,
	}
}
