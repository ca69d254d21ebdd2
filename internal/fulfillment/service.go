// Package fulfillment turns carts into priced, stock-reserved, state-tracked
// bookings and reconciles delivery and return against issued barcodes.
package fulfillment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mysafawale-ai/safawala-booking/internal/audit"
	"github.com/mysafawale-ai/safawala-booking/internal/booking"
	"github.com/mysafawale-ai/safawala-booking/internal/coupons"
	"github.com/mysafawale-ai/safawala-booking/internal/inventory"
	"github.com/mysafawale-ai/safawala-booking/internal/pricing"
	"github.com/mysafawale-ai/safawala-booking/internal/redisx"
	"github.com/mysafawale-ai/safawala-booking/internal/returns"
)

type Repo interface {
	Create(ctx context.Context, b *booking.Booking) error
	Get(ctx context.Context, id string) (booking.Booking, error)
	ReplaceItems(ctx context.Context, bookingID string, version int, items []booking.Line, fin booking.Financials, status booking.Status) error
	UpdateStatus(ctx context.Context, bookingID string, version int, to booking.Status) error
	Delete(ctx context.Context, bookingID string) error
}

type CouponService interface {
	Validate(ctx context.Context, code string, orderValuePaise int64, customerID string) (coupons.Result, error)
	TrackUsage(ctx context.Context, couponID, bookingID, customerID string, discountPaise int64)
}

// Service orchestrates the booking lifecycle. Stock moves only through
// Ledger; status moves only through the guarded transition table, serialized
// per booking by the repo's optimistic version check.
type Service struct {
	Repo    Repo
	Ledger  inventory.Ledger
	Tracker *returns.Tracker
	Coupons CouponService // optional
	Events  *Events
	Audit   *audit.Recorder
	Redis   *redis.Client // optional status cache

	TaxRateBps        int64 // GST on product bookings, e.g. 500 = 5%
	PackageTaxRateBps int64

	// FetchConcurrency bounds parallel booking fetches; see FetchAll.
	FetchConcurrency int
}

type CreateInput struct {
	CustomerID   string
	Kind         booking.Kind
	Quote        bool
	Items        []booking.Line
	EventDate    time.Time
	DeliveryDate *time.Time
	ReturnDue    *time.Time

	DiscountPaise     int64
	CouponCode        string
	DepositExtraPaise int64
	PaymentType       pricing.PaymentType
	CustomPaise       int64
}

func (s *Service) taxRate(kind booking.Kind) int64 {
	if kind == booking.KindPackage {
		return s.PackageTaxRateBps
	}
	return s.TaxRateBps
}

// Create builds a booking from a cart. With items and not a quote it reserves
// stock first and only then persists; a reservation shortfall aborts with
// *inventory.InsufficientStockError and nothing written. A persistence
// failure after a successful reservation releases the stock again.
func (s *Service) Create(ctx context.Context, in CreateInput) (booking.Booking, error) {
	if in.CustomerID == "" {
		return booking.Booking{}, booking.ValidationError{Field: "customer_id", Msg: "customer is required"}
	}
	if in.EventDate.IsZero() {
		return booking.Booking{}, booking.ValidationError{Field: "event_date", Msg: "event date is required"}
	}
	if !in.Kind.Valid() {
		return booking.Booking{}, booking.ValidationError{Field: "kind", Msg: "unknown booking kind"}
	}
	switch in.PaymentType {
	case "", pricing.PaymentFull, pricing.PaymentAdvance, pricing.PaymentPartial:
	default:
		return booking.Booking{}, booking.ValidationError{Field: "payment_type", Msg: "unknown payment type"}
	}

	couponPaise, couponID, err := s.applyCoupon(ctx, in)
	if err != nil {
		return booking.Booking{}, err
	}

	totals, err := pricing.Compute(pricing.Input{
		Items:             in.Items,
		Kind:              in.Kind,
		DiscountPaise:     in.DiscountPaise,
		CouponPaise:       couponPaise,
		DepositExtraPaise: in.DepositExtraPaise,
		PaymentType:       in.PaymentType,
		CustomPaise:       in.CustomPaise,
		TaxRateBps:        s.taxRate(in.Kind),
	})
	if err != nil {
		return booking.Booking{}, err
	}

	now := time.Now().UTC()
	status := booking.StatusConfirmed
	switch {
	case in.Quote:
		status = booking.StatusQuote
	case len(in.Items) == 0:
		status = booking.StatusPendingSelection
	}

	b := booking.Booking{
		ID:           uuid.NewString(),
		Number:       booking.NewNumber(in.Kind, in.Quote, now),
		CustomerID:   in.CustomerID,
		Kind:         in.Kind,
		Status:       status,
		Items:        in.Items,
		Financials:   totals.Financials(),
		EventDate:    in.EventDate,
		DeliveryDate: in.DeliveryDate,
		ReturnDue:    in.ReturnDue,
		CouponCode:   in.CouponCode,
	}
	for i := range b.Items {
		b.Items[i].BookingID = b.ID
	}

	reserved := status == booking.StatusConfirmed
	if reserved {
		if err := s.reserve(ctx, b.ID, b.Items); err != nil {
			return booking.Booking{}, err
		}
	}

	if err := s.Repo.Create(ctx, &b); err != nil {
		if reserved {
			if _, rerr := s.Ledger.ReleaseAll(ctx, b.ID); rerr != nil {
				log.Printf("release after failed create (booking=%s): %v", b.ID, rerr)
			}
		}
		return booking.Booking{}, fmt.Errorf("persist booking: %w", err)
	}

	s.Events.bookingCreated(b)
	s.cacheStatus(ctx, b.ID, b.Status)
	s.Audit.Record(audit.Entry{
		EntityType: "bookings", EntityID: b.ID, Action: "created",
		Changes: map[string]any{"number": b.Number, "kind": b.Kind, "status": b.Status, "total_paise": b.Financials.TotalPaise},
	})
	if couponID != "" && !in.Quote && s.Coupons != nil {
		s.Coupons.TrackUsage(ctx, couponID, b.ID, b.CustomerID, couponPaise)
	}
	return b, nil
}

// applyCoupon resolves the coupon discount against the after-manual-discount
// subtotal. An invalid code is a validation error; only infrastructure
// failures propagate as-is.
func (s *Service) applyCoupon(ctx context.Context, in CreateInput) (int64, string, error) {
	if in.CouponCode == "" {
		return 0, "", nil
	}
	if s.Coupons == nil {
		return 0, "", booking.ValidationError{Field: "coupon_code", Msg: "coupon validation unavailable"}
	}
	var subtotal int64
	for _, it := range in.Items {
		subtotal += it.TotalPaise
	}
	orderValue := subtotal - in.DiscountPaise
	if orderValue < 0 {
		orderValue = 0
	}
	res, err := s.Coupons.Validate(ctx, in.CouponCode, orderValue, in.CustomerID)
	if err != nil {
		return 0, "", fmt.Errorf("validate coupon: %w", err)
	}
	if !res.Valid {
		return 0, "", booking.ValidationError{Field: "coupon_code", Msg: res.Message}
	}
	return res.DiscountPaise, res.CouponID, nil
}

// AttachItems replaces the item list of a quote, pending-selection or
// confirmed booking. For pending_selection the booking moves to confirmed once
// at least one item is attached and reserved; the reserve-then-persist order
// with compensation makes the transition all-or-nothing.
func (s *Service) AttachItems(ctx context.Context, bookingID string, version int, items []booking.Line) (booking.Booking, error) {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return booking.Booking{}, err
		}
	}

	b, err := s.Repo.Get(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}

	switch b.Status {
	case booking.StatusQuote:
		// quotes hold no stock; just restate the cart
		return s.replaceAndRecompute(ctx, b, version, items, booking.StatusQuote, nil)

	case booking.StatusPendingSelection:
		if len(items) == 0 {
			return booking.Booking{}, booking.ValidationError{Field: "items", Msg: "at least one item is required"}
		}
		if err := s.reserve(ctx, b.ID, items); err != nil {
			return booking.Booking{}, err
		}
		rollback := func() {
			if err := s.Ledger.Adjust(ctx, b.ID, nil); err != nil {
				log.Printf("rollback reservation (booking=%s): %v", b.ID, err)
			}
		}
		return s.replaceAndRecompute(ctx, b, version, items, booking.StatusConfirmed, rollback)

	case booking.StatusConfirmed:
		if len(items) == 0 {
			return booking.Booking{}, booking.ValidationError{Field: "items", Msg: "at least one item is required"}
		}
		prev, err := s.Ledger.Reserved(ctx, b.ID)
		if err != nil {
			return booking.Booking{}, err
		}
		if err := s.reserve(ctx, b.ID, items); err != nil {
			return booking.Booking{}, err
		}
		rollback := func() {
			if err := s.Ledger.Adjust(ctx, b.ID, prev); err != nil {
				log.Printf("rollback reservation (booking=%s): %v", b.ID, err)
			}
		}
		return s.replaceAndRecompute(ctx, b, version, items, booking.StatusConfirmed, rollback)
	}
	return booking.Booking{}, booking.TransitionError{BookingID: b.ID, Kind: b.Kind, From: b.Status, To: booking.StatusConfirmed}
}

func (s *Service) replaceAndRecompute(ctx context.Context, b booking.Booking, version int, items []booking.Line, status booking.Status, rollback func()) (booking.Booking, error) {
	totals, err := pricing.Compute(pricing.Input{
		Items:         items,
		Kind:          b.Kind,
		DiscountPaise: b.Financials.DiscountPaise,
		CouponPaise:   b.Financials.CouponDiscountPaise,
		PaymentType:   pricing.PaymentFull,
		TaxRateBps:    s.taxRate(b.Kind),
	})
	if err != nil {
		if rollback != nil {
			rollback()
		}
		return booking.Booking{}, err
	}
	fin := totals.Financials()
	// keep the money already taken; pending absorbs the difference
	fin.PaidPaise = b.Financials.PaidPaise
	fin.PendingPaise = fin.TotalPaise - fin.PaidPaise

	for i := range items {
		items[i].BookingID = b.ID
	}
	if err := s.Repo.ReplaceItems(ctx, b.ID, version, items, fin, status); err != nil {
		if rollback != nil {
			rollback()
		}
		return booking.Booking{}, err
	}

	if status != b.Status {
		s.Events.statusChanged(booking.EventItemsAttached, b.ID, status)
		s.cacheStatus(ctx, b.ID, status)
	}
	s.Audit.Record(audit.Entry{
		EntityType: "bookings", EntityID: b.ID, Action: "items_replaced",
		Changes: map[string]any{"items": len(items), "subtotal_paise": fin.SubtotalPaise},
	})

	b.Items = items
	b.Financials = fin
	b.Status = status
	b.Version = version + 1
	return b, nil
}

// ConvertQuote turns an accepted quote into a confirmed booking, reserving
// stock for every item first.
func (s *Service) ConvertQuote(ctx context.Context, bookingID string, version int) (booking.Booking, error) {
	b, err := s.Repo.Get(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	if b.Status != booking.StatusQuote {
		return booking.Booking{}, booking.TransitionError{BookingID: b.ID, Kind: b.Kind, From: b.Status, To: booking.StatusConfirmed}
	}
	if len(b.Items) == 0 {
		return booking.Booking{}, booking.ValidationError{Field: "items", Msg: "quote has no items to confirm"}
	}

	if err := s.reserve(ctx, b.ID, b.Items); err != nil {
		return booking.Booking{}, err
	}
	if err := s.Repo.UpdateStatus(ctx, b.ID, version, booking.StatusConfirmed); err != nil {
		if _, rerr := s.Ledger.ReleaseAll(ctx, b.ID); rerr != nil {
			log.Printf("release after failed convert (booking=%s): %v", b.ID, rerr)
		}
		return booking.Booking{}, err
	}

	b.Status = booking.StatusConfirmed
	b.Version = version + 1
	s.Events.statusChanged(booking.EventQuoteConverted, b.ID, b.Status)
	s.cacheStatus(ctx, b.ID, b.Status)
	s.Audit.Record(audit.Entry{EntityType: "bookings", EntityID: b.ID, Action: "quote_converted"})
	return b, nil
}

type BarcodeIssue struct {
	BarcodeID string `json:"barcode_id"`
	ProductID string `json:"product_id"`
}

// MarkDelivered transitions a confirmed booking to delivered. Rental and
// package bookings must hand over barcoded units; sale bookings deliver
// immediately and complete in the same call.
func (s *Service) MarkDelivered(ctx context.Context, bookingID string, version int, issues []BarcodeIssue) (booking.Booking, error) {
	b, err := s.Repo.Get(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	if !booking.CanTransition(b.Kind, b.Status, booking.StatusDelivered) {
		return booking.Booking{}, booking.TransitionError{BookingID: b.ID, Kind: b.Kind, From: b.Status, To: booking.StatusDelivered}
	}
	if b.Kind != booking.KindSale && len(issues) == 0 {
		return booking.Booking{}, booking.ValidationError{Field: "barcodes", Msg: "rental and package deliveries require issued barcodes"}
	}
	for _, is := range issues {
		if is.BarcodeID == "" || is.ProductID == "" {
			return booking.Booking{}, booking.ValidationError{Field: "barcodes", Msg: "barcode and product ids are required"}
		}
	}

	// The version check claims the booking; concurrent edits lose here before
	// any stock or barcode side effect runs.
	if err := s.Repo.UpdateStatus(ctx, b.ID, version, booking.StatusDelivered); err != nil {
		return booking.Booking{}, err
	}
	version++

	// On a barcode or stock failure the booking goes back to confirmed so a
	// retry can claim it again. Already-issued barcodes stay assigned to this
	// booking and re-issue idempotently on the retry.
	revert := func() {
		if err := s.Repo.UpdateStatus(ctx, b.ID, version, booking.StatusConfirmed); err != nil {
			log.Printf("revert delivery status (booking=%s): %v", b.ID, err)
		}
	}

	now := time.Now().UTC()
	barcodes := make([]string, 0, len(issues))
	for _, is := range issues {
		if err := s.Tracker.Issue(ctx, b.ID, is.ProductID, is.BarcodeID, now); err != nil {
			revert()
			return booking.Booking{}, fmt.Errorf("issue barcode %s: %w", is.BarcodeID, err)
		}
		barcodes = append(barcodes, is.BarcodeID)
	}

	consume := b.Kind == booking.KindSale
	if err := s.Ledger.ConfirmDelivery(ctx, b.ID, consume); err != nil {
		revert()
		return booking.Booking{}, fmt.Errorf("confirm delivery stock: %w", err)
	}

	b.Status = booking.StatusDelivered
	if consume {
		if err := s.Repo.UpdateStatus(ctx, b.ID, version, booking.StatusOrderComplete); err != nil {
			return booking.Booking{}, err
		}
		version++
		b.Status = booking.StatusOrderComplete
	}
	b.Version = version

	if s.Events != nil {
		s.Events.publish(s.Events.Status, booking.EventBookingDelivered, b.ID, booking.BookingDeliveredPayload{BookingID: b.ID, Barcodes: barcodes})
	}
	s.cacheStatus(ctx, b.ID, b.Status)
	s.Audit.Record(audit.Entry{
		EntityType: "bookings", EntityID: b.ID, Action: "delivered",
		Changes: map[string]any{"barcodes": len(barcodes), "status": b.Status},
	})
	return b, nil
}

// RecordReturn marks one scanned barcode as returned. When the last issued
// unit comes back, in-use stock is credited and the booking itself moves to
// returned. Partial returns leave the booking delivered.
func (s *Service) RecordReturn(ctx context.Context, barcodeID string, at time.Time) (returns.Assignment, booking.Booking, error) {
	a, err := s.Tracker.RecordReturn(ctx, barcodeID, at)
	if err != nil {
		return returns.Assignment{}, booking.Booking{}, err
	}
	b, err := s.Repo.Get(ctx, a.BookingID)
	if err != nil {
		return a, booking.Booking{}, err
	}

	if s.Events != nil {
		s.Events.publish(s.Events.Status, booking.EventBarcodeReturned, b.ID, booking.BarcodeReturnedPayload{
			BookingID: b.ID, BarcodeID: a.BarcodeID, ProductID: a.ProductID, ReturnedAt: at,
		})
	}

	if b.Status != booking.StatusDelivered || !booking.CanTransition(b.Kind, b.Status, booking.StatusReturned) {
		return a, b, nil
	}
	all, err := s.Tracker.AllReturned(ctx, b.ID)
	if err != nil || !all {
		return a, b, err
	}

	// A lost version race surfaces as ConflictError; the winner or a rescan
	// completes the booking-level return.
	if err := s.Repo.UpdateStatus(ctx, b.ID, b.Version, booking.StatusReturned); err != nil {
		return a, b, err
	}
	if err := s.Ledger.ReturnStock(ctx, b.ID); err != nil {
		return a, b, fmt.Errorf("credit returned stock: %w", err)
	}
	b.Status = booking.StatusReturned
	b.Version++

	s.Events.statusChanged(booking.EventBookingReturned, b.ID, b.Status)
	s.cacheStatus(ctx, b.ID, b.Status)
	s.Audit.Record(audit.Entry{EntityType: "bookings", EntityID: b.ID, Action: "returned"})
	return a, b, nil
}

// Cancel moves any non-terminal booking to cancelled and releases exactly the
// stock it still holds.
func (s *Service) Cancel(ctx context.Context, bookingID string, version int) (booking.Booking, error) {
	b, err := s.Repo.Get(ctx, bookingID)
	if err != nil {
		return booking.Booking{}, err
	}
	if !booking.CanTransition(b.Kind, b.Status, booking.StatusCancelled) {
		return booking.Booking{}, booking.TransitionError{BookingID: b.ID, Kind: b.Kind, From: b.Status, To: booking.StatusCancelled}
	}

	if err := s.Repo.UpdateStatus(ctx, b.ID, version, booking.StatusCancelled); err != nil {
		return booking.Booking{}, err
	}
	released, err := s.Ledger.ReleaseAll(ctx, b.ID)
	if err != nil {
		return booking.Booking{}, fmt.Errorf("release reserved stock: %w", err)
	}

	b.Status = booking.StatusCancelled
	b.Version = version + 1
	s.Events.stockReleased(b.ID, released)
	s.Events.statusChanged(booking.EventBookingCancelled, b.ID, b.Status)
	s.cacheStatus(ctx, b.ID, b.Status)
	s.Audit.Record(audit.Entry{
		EntityType: "bookings", EntityID: b.ID, Action: "cancelled",
		Changes: map[string]any{"released_items": len(released)},
	})
	return b, nil
}

// Delete removes a booking outright. Reserved stock is released and barcode
// assignments archived before the rows go.
func (s *Service) Delete(ctx context.Context, bookingID string) error {
	if _, err := s.Repo.Get(ctx, bookingID); err != nil {
		return err
	}
	released, err := s.Ledger.ReleaseAll(ctx, bookingID)
	if err != nil {
		return fmt.Errorf("release before delete: %w", err)
	}
	if s.Tracker != nil {
		if err := s.Tracker.Store.ArchiveAssignments(ctx, bookingID); err != nil {
			return fmt.Errorf("archive barcodes: %w", err)
		}
	}
	if err := s.Repo.Delete(ctx, bookingID); err != nil {
		return err
	}
	s.Events.stockReleased(bookingID, released)
	s.cacheStatus(ctx, bookingID, "")
	s.Audit.Record(audit.Entry{EntityType: "bookings", EntityID: bookingID, Action: "deleted"})
	return nil
}

func (s *Service) Get(ctx context.Context, bookingID string) (booking.Booking, error) {
	return s.Repo.Get(ctx, bookingID)
}

// StatusOf serves the hot status read through the redis cache.
func (s *Service) StatusOf(ctx context.Context, bookingID string) (booking.Status, error) {
	if s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyBookingStatus, bookingID)
		if raw, err := s.Redis.Get(ctx, key).Result(); err == nil && raw != "" {
			var body struct {
				Status booking.Status `json:"status"`
			}
			if json.Unmarshal([]byte(raw), &body) == nil && body.Status != "" {
				return body.Status, nil
			}
		}
	}
	b, err := s.Repo.Get(ctx, bookingID)
	if err != nil {
		return "", err
	}
	s.cacheStatus(ctx, bookingID, b.Status)
	return b.Status, nil
}

// reserve adjusts the ledger to the booking's product lines and publishes the
// reserved/rejected event. Package lines carry no product reference and are
// not stock-tracked here.
func (s *Service) reserve(ctx context.Context, bookingID string, items []booking.Line) error {
	target := productQty(items)
	err := s.Ledger.Adjust(ctx, bookingID, target)
	if err != nil {
		var short *inventory.InsufficientStockError
		if errors.As(err, &short) {
			s.Events.stockRejected(bookingID, short.Details)
		}
		return err
	}
	s.Events.stockReserved(bookingID, target)
	return nil
}

func (s *Service) cacheStatus(ctx context.Context, bookingID string, status booking.Status) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyBookingStatus, bookingID)
	if status == "" {
		_ = s.Redis.Del(ctx, key).Err()
		return
	}
	_ = s.Redis.Set(ctx, key, fmt.Sprintf(`{"status":%q}`, status), redisx.TTLStatusCache).Err()
}

func productQty(items []booking.Line) []booking.ItemQty {
	byID := map[string]int{}
	var order []string
	for _, it := range items {
		if it.Source != booking.SourceProduct {
			continue
		}
		if _, ok := byID[it.ProductID]; !ok {
			order = append(order, it.ProductID)
		}
		byID[it.ProductID] += it.Qty
	}
	out := make([]booking.ItemQty, 0, len(order))
	for _, id := range order {
		out = append(out, booking.ItemQty{ProductID: id, Qty: byID[id]})
	}
	return out
}
