package fulfillment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mysafawale-ai/safawala-booking/internal/booking"
	"github.com/mysafawale-ai/safawala-booking/internal/coupons"
	"github.com/mysafawale-ai/safawala-booking/internal/inventory"
	"github.com/mysafawale-ai/safawala-booking/internal/pricing"
	"github.com/mysafawale-ai/safawala-booking/internal/returns"
)

// memRepo keeps bookings in a map and enforces the same optimistic version
// check the postgres repo does.
type memRepo struct {
	mu       sync.Mutex
	bookings map[string]booking.Booking

	failCreate  error
	failReplace error
	failUpdate  error
}

func newMemRepo() *memRepo {
	return &memRepo{bookings: make(map[string]booking.Booking)}
}

func (r *memRepo) Create(_ context.Context, b *booking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate != nil {
		return r.failCreate
	}
	b.Version = 1
	b.CreatedAt = time.Now().UTC()
	r.bookings[b.ID] = *b
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (booking.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[id]
	if !ok {
		return booking.Booking{}, booking.ErrNotFound
	}
	return b, nil
}

func (r *memRepo) ReplaceItems(_ context.Context, bookingID string, version int, items []booking.Line, fin booking.Financials, status booking.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failReplace != nil {
		return r.failReplace
	}
	b, ok := r.bookings[bookingID]
	if !ok {
		return booking.ErrNotFound
	}
	if b.Version != version {
		return booking.ConflictError{BookingID: bookingID, Version: version}
	}
	b.Items = items
	b.Financials = fin
	b.Status = status
	b.Version++
	r.bookings[bookingID] = b
	return nil
}

func (r *memRepo) UpdateStatus(_ context.Context, bookingID string, version int, to booking.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate != nil {
		return r.failUpdate
	}
	b, ok := r.bookings[bookingID]
	if !ok {
		return booking.ErrNotFound
	}
	if b.Version != version {
		return booking.ConflictError{BookingID: bookingID, Version: version}
	}
	b.Status = to
	b.Version++
	r.bookings[bookingID] = b
	return nil
}

func (r *memRepo) Delete(_ context.Context, bookingID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bookings[bookingID]; !ok {
		return booking.ErrNotFound
	}
	delete(r.bookings, bookingID)
	return nil
}

// memCoupons accepts one known code and records tracked usage.
type memCoupons struct {
	code     string
	discount int64
	tracked  int
}

func (c *memCoupons) Validate(_ context.Context, code string, orderValue int64, _ string) (coupons.Result, error) {
	if code != c.code {
		return coupons.Result{Valid: false, Message: "Invalid coupon code"}, nil
	}
	d := c.discount
	if d > orderValue {
		d = orderValue
	}
	return coupons.Result{Valid: true, CouponID: "c1", DiscountPaise: d}, nil
}

func (c *memCoupons) TrackUsage(_ context.Context, _, _, _ string, _ int64) {
	c.tracked++
}

type fixture struct {
	svc    *Service
	repo   *memRepo
	ledger *inventory.MemLedger
}

func newFixture() fixture {
	repo := newMemRepo()
	ledger := inventory.NewMemLedger()
	return fixture{
		svc: &Service{
			Repo:              repo,
			Ledger:            ledger,
			Tracker:           &returns.Tracker{Store: returns.NewMemStore()},
			TaxRateBps:        500,
			PackageTaxRateBps: 500,
		},
		repo:   repo,
		ledger: ledger,
	}
}

func rentalInput(items ...booking.Line) CreateInput {
	return CreateInput{
		CustomerID:  "cust-1",
		Kind:        booking.KindRental,
		Items:       items,
		EventDate:   time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		PaymentType: pricing.PaymentFull,
	}
}

func TestCreateConfirmedReservesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 10)

	b, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 4, 10000, 2000)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != booking.StatusConfirmed {
		t.Errorf("status = %s, want %s", b.Status, booking.StatusConfirmed)
	}
	if b.Version != 1 {
		t.Errorf("version = %d, want 1", b.Version)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 6 {
		t.Errorf("stock = %d, want 6", n)
	}
	// 4 x 100 rupees, 5% GST, full payment, 4 x 20 deposit
	if b.Financials.TotalPaise != 42000 {
		t.Errorf("total = %d, want 42000", b.Financials.TotalPaise)
	}
	if b.Financials.SecurityDepositPaise != 8000 {
		t.Errorf("deposit = %d, want 8000", b.Financials.SecurityDepositPaise)
	}
	if b.Financials.PendingPaise != 0 {
		t.Errorf("pending = %d, want 0 for full payment", b.Financials.PendingPaise)
	}
}

func TestCreateQuoteHoldsNoStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 2)

	in := rentalInput(booking.ProductLine("chair", 2, 10000, 0))
	in.Quote = true
	b, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != booking.StatusQuote {
		t.Errorf("status = %s, want %s", b.Status, booking.StatusQuote)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 2 {
		t.Errorf("stock = %d, want 2 (quotes never reserve)", n)
	}
}

func TestCreateWithoutItemsIsPendingSelection(t *testing.T) {
	f := newFixture()
	b, err := f.svc.Create(context.Background(), rentalInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Status != booking.StatusPendingSelection {
		t.Errorf("status = %s, want %s", b.Status, booking.StatusPendingSelection)
	}
}

func TestCreateInsufficientStockWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 3)

	_, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 5, 10000, 0)))
	var short *inventory.InsufficientStockError
	if !errors.As(err, &short) {
		t.Fatalf("err = %v, want InsufficientStockError", err)
	}
	if len(f.repo.bookings) != 0 {
		t.Error("a failed reservation must not persist a booking")
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 3 {
		t.Errorf("stock = %d, want 3", n)
	}
}

func TestCreatePersistFailureReleasesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)
	f.repo.failCreate = errors.New("connection refused")

	_, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 2, 10000, 0)))
	if err == nil {
		t.Fatal("Create should surface the persistence failure")
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 5 {
		t.Errorf("stock = %d, want 5 after compensation", n)
	}
}

func TestCreateWithCoupon(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)
	cs := &memCoupons{code: "WELCOME10", discount: 5000}
	f.svc.Coupons = cs

	in := rentalInput(booking.ProductLine("chair", 2, 50000, 0))
	in.CouponCode = "WELCOME10"
	b, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.Financials.CouponDiscountPaise != 5000 {
		t.Errorf("coupon discount = %d, want 5000", b.Financials.CouponDiscountPaise)
	}
	// (100000 - 5000) + 5% tax
	if b.Financials.TotalPaise != 99750 {
		t.Errorf("total = %d, want 99750", b.Financials.TotalPaise)
	}
	if cs.tracked != 1 {
		t.Errorf("tracked = %d, want usage recorded once", cs.tracked)
	}

	in.CouponCode = "NOPE"
	_, err = f.svc.Create(ctx, in)
	var verr booking.ValidationError
	if !errors.As(err, &verr) || verr.Field != "coupon_code" {
		t.Fatalf("err = %v, want coupon_code validation error", err)
	}
}

func TestCouponNotTrackedForQuote(t *testing.T) {
	f := newFixture()
	cs := &memCoupons{code: "WELCOME10", discount: 5000}
	f.svc.Coupons = cs

	in := rentalInput(booking.ProductLine("chair", 1, 50000, 0))
	in.Quote = true
	in.CouponCode = "WELCOME10"
	if _, err := f.svc.Create(context.Background(), in); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if cs.tracked != 0 {
		t.Errorf("tracked = %d, quotes must not consume coupon uses", cs.tracked)
	}
}

func TestAttachItemsConfirmsPendingSelection(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 10)

	b, err := f.svc.Create(ctx, rentalInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := f.svc.AttachItems(ctx, b.ID, b.Version, []booking.Line{booking.ProductLine("chair", 3, 10000, 0)})
	if err != nil {
		t.Fatalf("AttachItems: %v", err)
	}
	if got.Status != booking.StatusConfirmed {
		t.Errorf("status = %s, want %s", got.Status, booking.StatusConfirmed)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 7 {
		t.Errorf("stock = %d, want 7", n)
	}
}

func TestAttachItemsPersistFailureRollsBackReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 10)

	b, err := f.svc.Create(ctx, rentalInput())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.repo.failReplace = errors.New("connection refused")

	_, err = f.svc.AttachItems(ctx, b.ID, b.Version, []booking.Line{booking.ProductLine("chair", 3, 10000, 0)})
	if err == nil {
		t.Fatal("AttachItems should surface the persistence failure")
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 10 {
		t.Errorf("stock = %d, want 10 after rollback", n)
	}
}

func TestAttachItemsAdjustsExistingReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 10)
	f.ledger.SetStock("table", 4)

	b, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 4, 10000, 0)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	// swap two chairs for a table
	got, err := f.svc.AttachItems(ctx, b.ID, b.Version, []booking.Line{
		booking.ProductLine("chair", 2, 10000, 0),
		booking.ProductLine("table", 1, 30000, 0),
	})
	if err != nil {
		t.Fatalf("AttachItems: %v", err)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 8 {
		t.Errorf("chair stock = %d, want 8", n)
	}
	if n, _ := f.ledger.Stock(ctx, "table"); n != 3 {
		t.Errorf("table stock = %d, want 3", n)
	}
	if got.Financials.SubtotalPaise != 50000 {
		t.Errorf("subtotal = %d, want 50000", got.Financials.SubtotalPaise)
	}
}

func TestAttachItemsEditFailureRestoresPreviousReservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 10)

	b, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 4, 10000, 0)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.repo.failReplace = errors.New("connection refused")

	_, err = f.svc.AttachItems(ctx, b.ID, b.Version, []booking.Line{booking.ProductLine("chair", 6, 10000, 0)})
	if err == nil {
		t.Fatal("AttachItems should surface the persistence failure")
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 6 {
		t.Errorf("stock = %d, want 6 (original 4-unit hold restored)", n)
	}
	held, _ := f.ledger.Reserved(ctx, b.ID)
	if len(held) != 1 || held[0].Qty != 4 {
		t.Errorf("reserved = %+v, want the original 4 units", held)
	}
}

func TestConvertQuote(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)

	in := rentalInput(booking.ProductLine("chair", 2, 10000, 0))
	in.Quote = true
	b, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := f.svc.ConvertQuote(ctx, b.ID, b.Version)
	if err != nil {
		t.Fatalf("ConvertQuote: %v", err)
	}
	if got.Status != booking.StatusConfirmed {
		t.Errorf("status = %s, want %s", got.Status, booking.StatusConfirmed)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 3 {
		t.Errorf("stock = %d, want 3", n)
	}

	// already converted
	_, err = f.svc.ConvertQuote(ctx, b.ID, got.Version)
	var terr booking.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want TransitionError", err)
	}
}

func TestConvertQuoteStaleVersionReleasesStock(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)

	in := rentalInput(booking.ProductLine("chair", 2, 10000, 0))
	in.Quote = true
	b, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err = f.svc.ConvertQuote(ctx, b.ID, b.Version+7)
	var conflict booking.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 5 {
		t.Errorf("stock = %d, want 5 (lost race must not hold stock)", n)
	}
}

func TestCancelReleasesExactlyWhatWasHeld(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 10)

	b, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 4, 10000, 0)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := f.svc.Cancel(ctx, b.ID, b.Version)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if got.Status != booking.StatusCancelled {
		t.Errorf("status = %s, want %s", got.Status, booking.StatusCancelled)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 10 {
		t.Errorf("stock = %d, want 10", n)
	}

	// cancelling a cancelled booking is rejected
	_, err = f.svc.Cancel(ctx, b.ID, got.Version)
	var terr booking.TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("err = %v, want TransitionError", err)
	}
}

func TestRentalDeliveryRequiresBarcodes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)

	b, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 2, 10000, 0)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = f.svc.MarkDelivered(ctx, b.ID, b.Version, nil)
	var verr booking.ValidationError
	if !errors.As(err, &verr) || verr.Field != "barcodes" {
		t.Fatalf("err = %v, want barcodes validation error", err)
	}
}

func TestSaleDeliveryCompletesAndConsumes(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)

	in := rentalInput(booking.ProductLine("chair", 2, 10000, 0))
	in.Kind = booking.KindSale
	b, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := f.svc.MarkDelivered(ctx, b.ID, b.Version, nil)
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if got.Status != booking.StatusOrderComplete {
		t.Errorf("status = %s, want %s", got.Status, booking.StatusOrderComplete)
	}
	// sold units never return to stock
	if _, err := f.ledger.ReleaseAll(ctx, b.ID); err != nil {
		t.Fatalf("ReleaseAll: %v", err)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 3 {
		t.Errorf("stock = %d, want 3", n)
	}
}

func TestRentalReturnLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)
	now := time.Now().UTC()

	b, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 2, 10000, 2000)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	b, err = f.svc.MarkDelivered(ctx, b.ID, b.Version, []BarcodeIssue{
		{BarcodeID: "BC-1", ProductID: "chair"},
		{BarcodeID: "BC-2", ProductID: "chair"},
	})
	if err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if b.Status != booking.StatusDelivered {
		t.Fatalf("status = %s, want %s", b.Status, booking.StatusDelivered)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 3 {
		t.Errorf("stock while out = %d, want 3", n)
	}

	// first chair back: booking stays delivered
	_, got, err := f.svc.RecordReturn(ctx, "BC-1", now)
	if err != nil {
		t.Fatalf("RecordReturn BC-1: %v", err)
	}
	if got.Status != booking.StatusDelivered {
		t.Errorf("status = %s, want still %s", got.Status, booking.StatusDelivered)
	}

	// second chair closes the booking and credits stock
	_, got, err = f.svc.RecordReturn(ctx, "BC-2", now)
	if err != nil {
		t.Fatalf("RecordReturn BC-2: %v", err)
	}
	if got.Status != booking.StatusReturned {
		t.Errorf("status = %s, want %s", got.Status, booking.StatusReturned)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 5 {
		t.Errorf("stock after full return = %d, want 5", n)
	}

	// rescanning after completion stays a no-op
	_, got, err = f.svc.RecordReturn(ctx, "BC-2", now)
	if err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if got.Status != booking.StatusReturned {
		t.Errorf("status = %s after rescan, want %s", got.Status, booking.StatusReturned)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 5 {
		t.Errorf("stock after rescan = %d, want 5", n)
	}
}

// failingLedger injects a stock-confirmation failure.
type failingLedger struct {
	inventory.Ledger
	confirmErr error
}

func (l *failingLedger) ConfirmDelivery(ctx context.Context, bookingID string, consume bool) error {
	if l.confirmErr != nil {
		return l.confirmErr
	}
	return l.Ledger.ConfirmDelivery(ctx, bookingID, consume)
}

func TestDeliverStockFailureRevertsStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)

	b, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 2, 10000, 0)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	fl := &failingLedger{Ledger: f.ledger, confirmErr: errors.New("connection refused")}
	f.svc.Ledger = fl
	_, err = f.svc.MarkDelivered(ctx, b.ID, b.Version, []BarcodeIssue{{BarcodeID: "BC-1", ProductID: "chair"}})
	if err == nil {
		t.Fatal("MarkDelivered should surface the stock failure")
	}

	got, err := f.svc.Get(ctx, b.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != booking.StatusConfirmed {
		t.Fatalf("status = %s, want reverted to %s", got.Status, booking.StatusConfirmed)
	}
	held, _ := f.ledger.Reserved(ctx, b.ID)
	if len(held) != 1 || held[0].Qty != 2 {
		t.Fatalf("reserved = %+v, want the 2-unit hold intact", held)
	}

	// retry with the current version succeeds; the issued barcode re-issues
	fl.confirmErr = nil
	got, err = f.svc.MarkDelivered(ctx, b.ID, got.Version, []BarcodeIssue{{BarcodeID: "BC-1", ProductID: "chair"}})
	if err != nil {
		t.Fatalf("retry MarkDelivered: %v", err)
	}
	if got.Status != booking.StatusDelivered {
		t.Errorf("status = %s, want %s", got.Status, booking.StatusDelivered)
	}
}

func TestDeliverBarcodeConflictRevertsStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)

	first, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 1, 10000, 0)))
	if err != nil {
		t.Fatalf("Create first: %v", err)
	}
	if _, err := f.svc.MarkDelivered(ctx, first.ID, first.Version, []BarcodeIssue{{BarcodeID: "BC-1", ProductID: "chair"}}); err != nil {
		t.Fatalf("deliver first: %v", err)
	}

	second, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 1, 10000, 0)))
	if err != nil {
		t.Fatalf("Create second: %v", err)
	}
	_, err = f.svc.MarkDelivered(ctx, second.ID, second.Version, []BarcodeIssue{{BarcodeID: "BC-1", ProductID: "chair"}})
	if !errors.Is(err, returns.ErrBarcodeTaken) {
		t.Fatalf("err = %v, want ErrBarcodeTaken", err)
	}

	got, err := f.svc.Get(ctx, second.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != booking.StatusConfirmed {
		t.Errorf("status = %s, want reverted to %s", got.Status, booking.StatusConfirmed)
	}
	if ok, _ := f.svc.Tracker.AllReturned(ctx, second.ID); ok {
		t.Error("no barcodes should be tracked under the second booking")
	}
}

func TestDeliverStaleVersionHasNoSideEffects(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)

	b, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 2, 10000, 0)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_, err = f.svc.MarkDelivered(ctx, b.ID, b.Version+1, []BarcodeIssue{{BarcodeID: "BC-1", ProductID: "chair"}})
	var conflict booking.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want ConflictError", err)
	}
	// the loser issued no barcodes and touched no stock
	if ok, _ := f.svc.Tracker.AllReturned(ctx, b.ID); ok {
		t.Error("no barcodes should exist for the losing delivery")
	}
	stats, _ := f.svc.Tracker.StatsFor(ctx, b.ID)
	if len(stats) != 0 {
		t.Errorf("stats = %+v, want none", stats)
	}
}

func TestDeleteReleasesAndArchives(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)

	b, err := f.svc.Create(ctx, rentalInput(booking.ProductLine("chair", 2, 10000, 0)))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := f.svc.Delete(ctx, b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := f.ledger.Stock(ctx, "chair"); n != 5 {
		t.Errorf("stock = %d, want 5", n)
	}
	if _, err := f.svc.Get(ctx, b.ID); !errors.Is(err, booking.ErrNotFound) {
		t.Fatalf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture()
	for _, tc := range []struct {
		name  string
		mut   func(*CreateInput)
		field string
	}{
		{"missing customer", func(in *CreateInput) { in.CustomerID = "" }, "customer_id"},
		{"missing event date", func(in *CreateInput) { in.EventDate = time.Time{} }, "event_date"},
		{"bad kind", func(in *CreateInput) { in.Kind = "lease" }, "kind"},
		{"bad payment type", func(in *CreateInput) { in.PaymentType = "installments" }, "payment_type"},
	} {
		in := rentalInput(booking.ProductLine("chair", 1, 10000, 0))
		tc.mut(&in)
		_, err := f.svc.Create(context.Background(), in)
		var verr booking.ValidationError
		if !errors.As(err, &verr) || verr.Field != tc.field {
			t.Errorf("%s: err = %v, want validation error on %s", tc.name, err, tc.field)
		}
	}
}

func TestPackageLinesAreNotStockTracked(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.ledger.SetStock("chair", 5)

	in := rentalInput(
		booking.ProductLine("chair", 2, 10000, 0),
		booking.PackageLine("wedding-silver", 1, 500000, 0),
	)
	in.Kind = booking.KindPackage
	b, err := f.svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	held, _ := f.ledger.Reserved(ctx, b.ID)
	if len(held) != 1 || held[0].ProductID != "chair" {
		t.Errorf("reserved = %+v, want only the product line held", held)
	}
	if b.Financials.SubtotalPaise != 520000 {
		t.Errorf("subtotal = %d, want package priced in", b.Financials.SubtotalPaise)
	}
}
