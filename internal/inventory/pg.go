package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mysafawale-ai/safawala-booking/internal/booking"
)

// Reservation row statuses.
const (
	resReserved = "RESERVED"
	resInUse    = "IN_USE"
	resConsumed = "CONSUMED" // sale units, gone for good
	resReleased = "RELEASED"
	resReturned = "RETURNED"
)

// PgLedger implements Ledger on postgres. Product rows are locked FOR UPDATE
// inside a single transaction, so the read-modify-write of stock_available is
// serialized per product and a whole adjustment either commits or rolls back.
type PgLedger struct {
	DB *pgxpool.Pool

	// LockTimeoutMS bounds how long a reservation waits for contended product
	// rows before failing with ErrLockTimeout. Zero means no bound.
	LockTimeoutMS int
}

const lockNotAvailable = "55P03"

func (l *PgLedger) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := l.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	if l.LockTimeoutMS > 0 {
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", l.LockTimeoutMS)); err != nil {
			_ = tx.Rollback(ctx)
			return nil, err
		}
	}
	return tx, nil
}

func wrapLockErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
		return ErrLockTimeout
	}
	return err
}

func (l *PgLedger) Reserve(ctx context.Context, bookingID string, items []booking.ItemQty) error {
	return l.Adjust(ctx, bookingID, items)
}

// Adjust locks product rows in a stable order, computes per-product deltas
// against the booking's reservation rows, and applies them all or not at all.
func (l *PgLedger) Adjust(ctx context.Context, bookingID string, target []booking.ItemQty) error {
	want := map[string]int{}
	for _, it := range target {
		if it.Qty < 0 {
			return booking.ValidationError{Field: "quantity", Msg: "must not be negative"}
		}
		want[it.ProductID] += it.Qty
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	have, err := reservedQty(ctx, tx, bookingID)
	if err != nil {
		return err
	}

	// Union of current and target products, sorted so two concurrent
	// adjustments lock rows in the same order.
	ids := make([]string, 0, len(want)+len(have))
	seen := map[string]bool{}
	for id := range want {
		ids, seen[id] = append(ids, id), true
	}
	for id := range have {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	var shorts []booking.StockShortDetail
	type change struct {
		productID string
		delta     int
	}
	var changes []change
	for _, id := range ids {
		delta := want[id] - have[id]
		if delta == 0 && want[id] > 0 {
			continue // already reserved at the target quantity
		}
		var stock int
		err := tx.QueryRow(ctx, `SELECT stock_available FROM products WHERE id=$1 FOR UPDATE`, id).Scan(&stock)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("inventory: product not found: %s", id)
			}
			return wrapLockErr(err)
		}
		if delta > stock {
			shorts = append(shorts, booking.StockShortDetail{ProductID: id, Required: delta, Available: stock})
			continue
		}
		changes = append(changes, change{productID: id, delta: delta})
	}
	if len(shorts) > 0 {
		return &InsufficientStockError{BookingID: bookingID, Details: shorts} // rollback via defer
	}

	for _, c := range changes {
		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET stock_available = stock_available - $2,
			    qty_reserved    = qty_reserved + $2,
			    updated_at      = now()
			WHERE id = $1`, c.productID, c.delta); err != nil {
			return wrapLockErr(err)
		}
		if qty := want[c.productID]; qty > 0 {
			if _, err := tx.Exec(ctx, `
				INSERT INTO reservations (booking_id, product_id, qty, status)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (booking_id, product_id)
				DO UPDATE SET qty = EXCLUDED.qty, status = EXCLUDED.status`,
				bookingID, c.productID, qty, resReserved); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(ctx, `
				UPDATE reservations SET qty = 0, status = $3
				WHERE booking_id = $1 AND product_id = $2`,
				bookingID, c.productID, resReleased); err != nil {
				return err
			}
		}
	}
	return tx.Commit(ctx)
}

func (l *PgLedger) ReleaseAll(ctx context.Context, bookingID string) ([]booking.ItemQty, error) {
	tx, err := l.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
		SELECT product_id, qty, status FROM reservations
		WHERE booking_id = $1 AND status IN ($2, $3) AND qty > 0
		ORDER BY product_id`, bookingID, resReserved, resInUse)
	if err != nil {
		return nil, err
	}
	type rec struct {
		pid    string
		qty    int
		status string
	}
	var recs []rec
	for rows.Next() {
		var x rec
		if err := rows.Scan(&x.pid, &x.qty, &x.status); err != nil {
			rows.Close()
			return nil, err
		}
		recs = append(recs, x)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	released := make([]booking.ItemQty, 0, len(recs))
	for _, x := range recs {
		col := "qty_reserved"
		if x.status == resInUse {
			col = "qty_in_use"
		}
		if _, err := tx.Exec(ctx, `
			UPDATE products
			SET stock_available = stock_available + $2,
			    `+col+` = `+col+` - $2,
			    updated_at = now()
			WHERE id = $1`, x.pid, x.qty); err != nil {
			return nil, wrapLockErr(err)
		}
		released = append(released, booking.ItemQty{ProductID: x.pid, Qty: x.qty})
	}
	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status = $2
		WHERE booking_id = $1 AND status IN ($3, $4)`,
		bookingID, resReleased, resReserved, resInUse); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return released, nil
}

func (l *PgLedger) ConfirmDelivery(ctx context.Context, bookingID string, consume bool) error {
	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	next := resInUse
	inUseDelta := "qty_in_use = qty_in_use + r.qty,"
	if consume {
		next = resConsumed
		inUseDelta = ""
	}
	if _, err := tx.Exec(ctx, `
		UPDATE products p
		SET `+inUseDelta+`
		    qty_reserved = p.qty_reserved - r.qty,
		    updated_at   = now()
		FROM reservations r
		WHERE r.booking_id = $1 AND r.status = $2 AND r.qty > 0 AND p.id = r.product_id`,
		bookingID, resReserved); err != nil {
		return wrapLockErr(err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status = $2
		WHERE booking_id = $1 AND status = $3`, bookingID, next, resReserved); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *PgLedger) ReturnStock(ctx context.Context, bookingID string) error {
	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		UPDATE products p
		SET stock_available = p.stock_available + r.qty,
		    qty_in_use      = p.qty_in_use - r.qty,
		    updated_at      = now()
		FROM reservations r
		WHERE r.booking_id = $1 AND r.status = $2 AND r.qty > 0 AND p.id = r.product_id`,
		bookingID, resInUse); err != nil {
		return wrapLockErr(err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE reservations SET status = $2
		WHERE booking_id = $1 AND status = $3`, bookingID, resReturned, resInUse); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (l *PgLedger) Reserved(ctx context.Context, bookingID string) ([]booking.ItemQty, error) {
	have, err := reservedQty(ctx, l.DB, bookingID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(have))
	for id := range have {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]booking.ItemQty, 0, len(ids))
	for _, id := range ids {
		out = append(out, booking.ItemQty{ProductID: id, Qty: have[id]})
	}
	return out, nil
}

func (l *PgLedger) Stock(ctx context.Context, productID string) (int, error) {
	var n int
	err := l.DB.QueryRow(ctx, `SELECT stock_available FROM products WHERE id=$1`, productID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("inventory: product not found: %s", productID)
	}
	return n, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func reservedQty(ctx context.Context, q querier, bookingID string) (map[string]int, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, qty FROM reservations
		WHERE booking_id = $1 AND status = $2 AND qty > 0`, bookingID, resReserved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var pid string
		var qty int
		if err := rows.Scan(&pid, &qty); err != nil {
			return nil, err
		}
		out[pid] = qty
	}
	return out, rows.Err()
}
