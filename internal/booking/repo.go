package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgRepo persists bookings and their lines. Every mutation is guarded by the
// optimistic version column: writing with a stale version yields
// ConflictError, never a silent overwrite.
type PgRepo struct{ DB *pgxpool.Pool }

func (r *PgRepo) Create(ctx context.Context, b *Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.Version = 1

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (
			id, number, customer_id, kind, status,
			subtotal_paise, discount_paise, coupon_discount_paise, tax_paise,
			security_deposit_paise, total_paise, paid_paise, pending_paise,
			coupon_code, event_date, delivery_date, return_due, version
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULLIF($14,''),$15,$16,$17,$18)`,
		b.ID, b.Number, b.CustomerID, b.Kind, b.Status,
		b.Financials.SubtotalPaise, b.Financials.DiscountPaise, b.Financials.CouponDiscountPaise,
		b.Financials.TaxPaise, b.Financials.SecurityDepositPaise, b.Financials.TotalPaise,
		b.Financials.PaidPaise, b.Financials.PendingPaise,
		b.CouponCode, b.EventDate, b.DeliveryDate, b.ReturnDue, b.Version)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	if err := insertLines(ctx, tx, b.ID, b.Items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgRepo) Get(ctx context.Context, id string) (Booking, error) {
	var b Booking
	var coupon *string
	err := r.DB.QueryRow(ctx, `
		SELECT id, number, customer_id, kind, status,
		       subtotal_paise, discount_paise, coupon_discount_paise, tax_paise,
		       security_deposit_paise, total_paise, paid_paise, pending_paise,
		       coupon_code, event_date, delivery_date, return_due, version, created_at, updated_at
		FROM bookings WHERE id = $1`, id).
		Scan(&b.ID, &b.Number, &b.CustomerID, &b.Kind, &b.Status,
			&b.Financials.SubtotalPaise, &b.Financials.DiscountPaise, &b.Financials.CouponDiscountPaise,
			&b.Financials.TaxPaise, &b.Financials.SecurityDepositPaise, &b.Financials.TotalPaise,
			&b.Financials.PaidPaise, &b.Financials.PendingPaise,
			&coupon, &b.EventDate, &b.DeliveryDate, &b.ReturnDue, &b.Version, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	if err != nil {
		return Booking{}, err
	}
	if coupon != nil {
		b.CouponCode = *coupon
	}

	rows, err := r.DB.Query(ctx, `
		SELECT id, booking_id, source, COALESCE(product_id, ''), COALESCE(package_id, ''),
		       qty, unit_price_paise, total_paise, deposit_per_unit_paise
		FROM order_items WHERE booking_id = $1 ORDER BY position`, id)
	if err != nil {
		return Booking{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.BookingID, &l.Source, &l.ProductID, &l.PackageID,
			&l.Qty, &l.UnitPricePaise, &l.TotalPaise, &l.DepositPerUnitPaise); err != nil {
			return Booking{}, err
		}
		b.Items = append(b.Items, l)
	}
	return b, rows.Err()
}

// ReplaceItems swaps the full item list, stores the recomputed financials and
// optionally moves status, all in one transaction keyed on the caller's
// version.
func (r *PgRepo) ReplaceItems(ctx context.Context, bookingID string, version int, items []Line, fin Financials, status Status) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ct, err := tx.Exec(ctx, `
		UPDATE bookings SET
			status = $3,
			subtotal_paise = $4, discount_paise = $5, coupon_discount_paise = $6,
			tax_paise = $7, security_deposit_paise = $8, total_paise = $9,
			paid_paise = $10, pending_paise = $11,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2`,
		bookingID, version, status,
		fin.SubtotalPaise, fin.DiscountPaise, fin.CouponDiscountPaise,
		fin.TaxPaise, fin.SecurityDepositPaise, fin.TotalPaise,
		fin.PaidPaise, fin.PendingPaise)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.conflictOrNotFound(ctx, bookingID, version)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE booking_id = $1`, bookingID); err != nil {
		return err
	}
	if err := insertLines(ctx, tx, bookingID, items); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgRepo) UpdateStatus(ctx context.Context, bookingID string, version int, to Status) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE bookings SET status = $3, version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $2`, bookingID, version, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return r.conflictOrNotFound(ctx, bookingID, version)
	}
	return nil
}

func (r *PgRepo) Delete(ctx context.Context, bookingID string) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM order_items WHERE booking_id = $1`, bookingID); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, bookingID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return tx.Commit(ctx)
}

func (r *PgRepo) conflictOrNotFound(ctx context.Context, bookingID string, version int) error {
	var exists bool
	if err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE id = $1)`, bookingID).Scan(&exists); err == nil && !exists {
		return ErrNotFound
	}
	return ConflictError{BookingID: bookingID, Version: version}
}

func insertLines(ctx context.Context, tx pgx.Tx, bookingID string, items []Line) error {
	for pos, l := range items {
		id := l.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items (
				id, booking_id, source, product_id, package_id, position,
				qty, unit_price_paise, total_paise, deposit_per_unit_paise
			) VALUES ($1,$2,$3,NULLIF($4,''),NULLIF($5,''),$6,$7,$8,$9,$10)`,
			id, bookingID, l.Source, l.ProductID, l.PackageID, pos,
			l.Qty, l.UnitPricePaise, l.TotalPaise, l.DepositPerUnitPaise); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}
