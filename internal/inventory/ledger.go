// Package inventory owns stock_available. Every mutation routes through a
// Ledger; nothing else in the service writes stock.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mysafawale-ai/safawala-booking/internal/booking"
)

// ErrLockTimeout: the per-product lock could not be acquired in time. The
// operation did not run and is safe to retry.
var ErrLockTimeout = errors.New("inventory: lock timeout, retry")

// InsufficientStockError aborts the whole reservation; no stock was changed.
type InsufficientStockError struct {
	BookingID string
	Details   []booking.StockShortDetail
}

func (e *InsufficientStockError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "insufficient stock for booking %s:", e.BookingID)
	for _, d := range e.Details {
		fmt.Fprintf(&b, " %s (need %d, have %d)", d.ProductID, d.Required, d.Available)
	}
	return b.String()
}

// Ledger tracks reserved quantities per booking-product pair, which makes
// Release idempotent: releasing twice credits stock once.
//
// Reserve and Adjust are all-or-nothing. If any line cannot be satisfied the
// call fails with *InsufficientStockError and no stock changes.
type Ledger interface {
	// Reserve brings the booking's reservations up to exactly the given
	// quantities (an alias for Adjust, kept for the common create path).
	Reserve(ctx context.Context, bookingID string, items []booking.ItemQty) error

	// Adjust reconciles the booking's reservations against target quantities:
	// increases draw from stock, decreases and omissions credit it back.
	Adjust(ctx context.Context, bookingID string, target []booking.ItemQty) error

	// ReleaseAll returns every still-reserved or in-use unit of the booking to
	// available stock. Used on cancellation and deletion.
	ReleaseAll(ctx context.Context, bookingID string) ([]booking.ItemQty, error)

	// ConfirmDelivery moves the booking's reserved units to in-use (rental,
	// package) or consumes them outright (sale).
	ConfirmDelivery(ctx context.Context, bookingID string, consume bool) error

	// ReturnStock credits the booking's in-use units back to available stock
	// once the physical return is complete.
	ReturnStock(ctx context.Context, bookingID string) error

	// Reserved reports the currently reserved quantities for a booking.
	Reserved(ctx context.Context, bookingID string) ([]booking.ItemQty, error)

	// Stock reads a product's available quantity.
	Stock(ctx context.Context, productID string) (int, error)
}
