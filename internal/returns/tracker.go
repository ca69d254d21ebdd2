// Package returns reconciles physical item return against issued barcodes.
package returns

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("barcode assignment not found")

	// ErrBarcodeTaken: the barcode is already assigned to a different booking.
	// Re-issuing for the same booking stays a no-op.
	ErrBarcodeTaken = errors.New("barcode already assigned to another booking")
)

type AssignmentStatus string

const (
	StatusPending   AssignmentStatus = "pending"
	StatusDelivered AssignmentStatus = "delivered"
	StatusReturned  AssignmentStatus = "returned"
	StatusCompleted AssignmentStatus = "completed"
)

// Assignment is one physical unit issued against a booking.
type Assignment struct {
	BarcodeID   string           `json:"barcode_id"`
	BookingID   string           `json:"booking_id"`
	ProductID   string           `json:"product_id"`
	Status      AssignmentStatus `json:"status"`
	DeliveredAt *time.Time       `json:"delivered_at,omitempty"`
	ReturnedAt  *time.Time       `json:"returned_at,omitempty"`
}

func (a Assignment) returned() bool {
	return a.Status == StatusReturned || a.Status == StatusCompleted
}

// Adjustment is a manual damage/loss amount attached to the settlement.
// Amounts are never derived automatically from scans.
type Adjustment struct {
	ID          string    `json:"id"`
	BookingID   string    `json:"booking_id"`
	ProductID   string    `json:"product_id,omitempty"`
	AmountPaise int64     `json:"amount_paise"`
	Reason      string    `json:"reason"`
	CreatedAt   time.Time `json:"created_at"`
}

type Stat struct {
	Returned int `json:"returned"`
	Pending  int `json:"pending"`
}

type Store interface {
	InsertAssignment(ctx context.Context, a Assignment) error
	GetAssignment(ctx context.Context, barcodeID string) (Assignment, error)
	UpdateAssignmentStatus(ctx context.Context, barcodeID string, status AssignmentStatus, returnedAt *time.Time) error
	ListAssignments(ctx context.Context, bookingID string) ([]Assignment, error)
	ArchiveAssignments(ctx context.Context, bookingID string) error
	InsertAdjustment(ctx context.Context, adj Adjustment) error
	ListAdjustments(ctx context.Context, bookingID string) ([]Adjustment, error)
}

// Tracker aggregates barcode statuses per product and gates the booking-level
// delivered -> returned transition on the aggregate being complete.
type Tracker struct {
	Store Store
}

// Issue records a physical unit handed out against a delivered booking.
func (t *Tracker) Issue(ctx context.Context, bookingID, productID, barcodeID string, at time.Time) error {
	if barcodeID == "" || bookingID == "" || productID == "" {
		return fmt.Errorf("returns: issue needs barcode, booking and product ids")
	}
	return t.Store.InsertAssignment(ctx, Assignment{
		BarcodeID:   barcodeID,
		BookingID:   bookingID,
		ProductID:   productID,
		Status:      StatusDelivered,
		DeliveredAt: &at,
	})
}

// RecordReturn marks a scanned barcode returned. Scanning a barcode that is
// already back is a no-op, so a double scan cannot skew the aggregate.
func (t *Tracker) RecordReturn(ctx context.Context, barcodeID string, at time.Time) (Assignment, error) {
	a, err := t.Store.GetAssignment(ctx, barcodeID)
	if err != nil {
		return Assignment{}, err
	}
	if a.returned() {
		return a, nil
	}
	if err := t.Store.UpdateAssignmentStatus(ctx, barcodeID, StatusReturned, &at); err != nil {
		return Assignment{}, err
	}
	a.Status = StatusReturned
	a.ReturnedAt = &at
	return a, nil
}

// StatsFor aggregates returned/pending counts per product for a booking.
func (t *Tracker) StatsFor(ctx context.Context, bookingID string) (map[string]Stat, error) {
	as, err := t.Store.ListAssignments(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	stats := make(map[string]Stat, len(as))
	for _, a := range as {
		s := stats[a.ProductID]
		if a.returned() {
			s.Returned++
		} else {
			s.Pending++
		}
		stats[a.ProductID] = s
	}
	return stats, nil
}

// AllReturned reports whether every issued barcode of the booking is back.
// A booking with no issued barcodes is not considered returned.
func (t *Tracker) AllReturned(ctx context.Context, bookingID string) (bool, error) {
	as, err := t.Store.ListAssignments(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if len(as) == 0 {
		return false, nil
	}
	for _, a := range as {
		if !a.returned() {
			return false, nil
		}
	}
	return true, nil
}

// AddAdjustment attaches a manual damage/loss amount to the settlement.
func (t *Tracker) AddAdjustment(ctx context.Context, adj Adjustment) error {
	if adj.BookingID == "" {
		return fmt.Errorf("returns: adjustment needs a booking id")
	}
	if adj.Reason == "" {
		return fmt.Errorf("returns: adjustment needs a reason")
	}
	return t.Store.InsertAdjustment(ctx, adj)
}

func (t *Tracker) Adjustments(ctx context.Context, bookingID string) ([]Adjustment, error) {
	return t.Store.ListAdjustments(ctx, bookingID)
}
