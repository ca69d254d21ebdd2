package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mysafawale-ai/safawala-booking/internal/booking"
)

type memProduct struct {
	stock    int
	reserved int
	inUse    int
}

type memReservation struct {
	qty    int
	status string
}

// MemLedger is the in-memory Ledger: a single mutex guards the whole
// reserve/release critical section. Used by tests and small deployments.
type MemLedger struct {
	mu           sync.Mutex
	products     map[string]*memProduct
	reservations map[string]map[string]*memReservation // bookingID -> productID
}

func NewMemLedger() *MemLedger {
	return &MemLedger{
		products:     make(map[string]*memProduct),
		reservations: make(map[string]map[string]*memReservation),
	}
}

// SetStock seeds or overwrites a product's available quantity.
func (l *MemLedger) SetStock(productID string, stock int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.products[productID]
	if !ok {
		p = &memProduct{}
		l.products[productID] = p
	}
	p.stock = stock
}

func (l *MemLedger) Reserve(ctx context.Context, bookingID string, items []booking.ItemQty) error {
	return l.Adjust(ctx, bookingID, items)
}

func (l *MemLedger) Adjust(_ context.Context, bookingID string, target []booking.ItemQty) error {
	want := map[string]int{}
	for _, it := range target {
		if it.Qty < 0 {
			return booking.ValidationError{Field: "quantity", Msg: "must not be negative"}
		}
		want[it.ProductID] += it.Qty
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	have := l.reservedLocked(bookingID)

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

	// First pass: validate every delta so a failure changes nothing. Unknown
	// products are an error even at zero quantity, matching the pg ledger.
	var shorts []booking.StockShortDetail
	for _, id := range ids {
		p, ok := l.products[id]
		if !ok {
			return fmt.Errorf("inventory: product not found: %s", id)
		}
		delta := want[id] - have[id]
		if delta > p.stock {
			shorts = append(shorts, booking.StockShortDetail{ProductID: id, Required: delta, Available: p.stock})
		}
	}
	if len(shorts) > 0 {
		return &InsufficientStockError{BookingID: bookingID, Details: shorts}
	}

	book := l.reservations[bookingID]
	if book == nil {
		book = make(map[string]*memReservation)
		l.reservations[bookingID] = book
	}
	for _, id := range ids {
		delta := want[id] - have[id]
		p := l.products[id]
		p.stock -= delta
		p.reserved += delta
		if qty := want[id]; qty > 0 {
			book[id] = &memReservation{qty: qty, status: resReserved}
		} else if r, ok := book[id]; ok {
			r.qty, r.status = 0, resReleased
		}
	}
	return nil
}

func (l *MemLedger) ReleaseAll(_ context.Context, bookingID string) ([]booking.ItemQty, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var released []booking.ItemQty
	for _, id := range l.bookingProductsLocked(bookingID) {
		r := l.reservations[bookingID][id]
		if r.qty == 0 || (r.status != resReserved && r.status != resInUse) {
			continue
		}
		p := l.products[id]
		p.stock += r.qty
		if r.status == resInUse {
			p.inUse -= r.qty
		} else {
			p.reserved -= r.qty
		}
		released = append(released, booking.ItemQty{ProductID: id, Qty: r.qty})
		r.status = resReleased
	}
	return released, nil
}

func (l *MemLedger) ConfirmDelivery(_ context.Context, bookingID string, consume bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range l.bookingProductsLocked(bookingID) {
		r := l.reservations[bookingID][id]
		if r.status != resReserved || r.qty == 0 {
			continue
		}
		p := l.products[id]
		p.reserved -= r.qty
		if consume {
			r.status = resConsumed
		} else {
			p.inUse += r.qty
			r.status = resInUse
		}
	}
	return nil
}

func (l *MemLedger) ReturnStock(_ context.Context, bookingID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, id := range l.bookingProductsLocked(bookingID) {
		r := l.reservations[bookingID][id]
		if r.status != resInUse || r.qty == 0 {
			continue
		}
		p := l.products[id]
		p.inUse -= r.qty
		p.stock += r.qty
		r.status = resReturned
	}
	return nil
}

func (l *MemLedger) Reserved(_ context.Context, bookingID string) ([]booking.ItemQty, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	have := l.reservedLocked(bookingID)
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

func (l *MemLedger) Stock(_ context.Context, productID string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.products[productID]
	if !ok {
		return 0, fmt.Errorf("inventory: product not found: %s", productID)
	}
	return p.stock, nil
}

func (l *MemLedger) reservedLocked(bookingID string) map[string]int {
	out := map[string]int{}
	for id, r := range l.reservations[bookingID] {
		if r.status == resReserved && r.qty > 0 {
			out[id] = r.qty
		}
	}
	return out
}

func (l *MemLedger) bookingProductsLocked(bookingID string) []string {
	ids := make([]string, 0, len(l.reservations[bookingID]))
	for id := range l.reservations[bookingID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
