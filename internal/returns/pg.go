package returns

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore keeps barcode assignments and settlement adjustments in postgres.
type PgStore struct{ DB *pgxpool.Pool }

func (s *PgStore) InsertAssignment(ctx context.Context, a Assignment) error {
	ct, err := s.DB.Exec(ctx, `
		INSERT INTO barcode_assignments (barcode_id, booking_id, product_id, status, delivered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (barcode_id) DO NOTHING`,
		a.BarcodeID, a.BookingID, a.ProductID, a.Status, a.DeliveredAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		var owner string
		if err := s.DB.QueryRow(ctx, `
			SELECT booking_id FROM barcode_assignments WHERE barcode_id = $1`, a.BarcodeID).Scan(&owner); err != nil {
			return err
		}
		if owner != a.BookingID {
			return fmt.Errorf("%w: %s", ErrBarcodeTaken, a.BarcodeID)
		}
	}
	return nil
}

func (s *PgStore) GetAssignment(ctx context.Context, barcodeID string) (Assignment, error) {
	var a Assignment
	err := s.DB.QueryRow(ctx, `
		SELECT barcode_id, booking_id, product_id, status, delivered_at, returned_at
		FROM barcode_assignments WHERE barcode_id = $1 AND archived_at IS NULL`, barcodeID).
		Scan(&a.BarcodeID, &a.BookingID, &a.ProductID, &a.Status, &a.DeliveredAt, &a.ReturnedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Assignment{}, ErrNotFound
	}
	return a, err
}

func (s *PgStore) UpdateAssignmentStatus(ctx context.Context, barcodeID string, status AssignmentStatus, returnedAt *time.Time) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE barcode_assignments SET status = $2, returned_at = COALESCE($3, returned_at)
		WHERE barcode_id = $1 AND archived_at IS NULL`, barcodeID, status, returnedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) ListAssignments(ctx context.Context, bookingID string) ([]Assignment, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT barcode_id, booking_id, product_id, status, delivered_at, returned_at
		FROM barcode_assignments
		WHERE booking_id = $1 AND archived_at IS NULL
		ORDER BY barcode_id`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Assignment
	for rows.Next() {
		var a Assignment
		if err := rows.Scan(&a.BarcodeID, &a.BookingID, &a.ProductID, &a.Status, &a.DeliveredAt, &a.ReturnedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ArchiveAssignments soft-deletes a booking's assignments; barcodes stay on
// record for audit but drop out of every aggregate.
func (s *PgStore) ArchiveAssignments(ctx context.Context, bookingID string) error {
	_, err := s.DB.Exec(ctx, `
		UPDATE barcode_assignments SET archived_at = now()
		WHERE booking_id = $1 AND archived_at IS NULL`, bookingID)
	return err
}

func (s *PgStore) InsertAdjustment(ctx context.Context, adj Adjustment) error {
	if adj.ID == "" {
		adj.ID = uuid.NewString()
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO settlement_adjustments (id, booking_id, product_id, amount_paise, reason)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)`,
		adj.ID, adj.BookingID, adj.ProductID, adj.AmountPaise, adj.Reason)
	return err
}

func (s *PgStore) ListAdjustments(ctx context.Context, bookingID string) ([]Adjustment, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, booking_id, COALESCE(product_id, ''), amount_paise, reason, created_at
		FROM settlement_adjustments WHERE booking_id = $1 ORDER BY created_at`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Adjustment
	for rows.Next() {
		var a Adjustment
		if err := rows.Scan(&a.ID, &a.BookingID, &a.ProductID, &a.AmountPaise, &a.Reason, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
