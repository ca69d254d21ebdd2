package booking

import "time"

// All monetary amounts are integer paise.

type Booking struct {
	ID           string
	Number       string
	CustomerID   string
	Kind         Kind
	Status       Status
	Items        []Line // insertion order = display order
	Financials   Financials
	EventDate    time.Time
	DeliveryDate *time.Time
	ReturnDue    *time.Time
	CouponCode   string
	Version      int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Financials struct {
	SubtotalPaise        int64 `json:"subtotal_paise"`
	DiscountPaise        int64 `json:"discount_paise"`
	CouponDiscountPaise  int64 `json:"coupon_discount_paise"`
	TaxPaise             int64 `json:"tax_paise"`
	SecurityDepositPaise int64 `json:"security_deposit_paise"`
	TotalPaise           int64 `json:"total_paise"`
	PaidPaise            int64 `json:"paid_paise"`
	PendingPaise         int64 `json:"pending_paise"`
}

type LineSource string

const (
	SourceProduct LineSource = "product"
	SourcePackage LineSource = "package"
)

// Line is one row of a booking: either a product line or a package line,
// discriminated by Source. Exactly one of ProductID/PackageID is set.
type Line struct {
	ID                  string
	BookingID           string
	Source              LineSource
	ProductID           string
	PackageID           string
	Qty                 int
	UnitPricePaise      int64
	TotalPaise          int64
	DepositPerUnitPaise int64 // zero for sale bookings
}

// ProductLine builds a product-backed line with the derived total filled in.
func ProductLine(productID string, qty int, unitPricePaise, depositPerUnitPaise int64) Line {
	return Line{
		Source:              SourceProduct,
		ProductID:           productID,
		Qty:                 qty,
		UnitPricePaise:      unitPricePaise,
		TotalPaise:          unitPricePaise * int64(qty),
		DepositPerUnitPaise: depositPerUnitPaise,
	}
}

// PackageLine builds a package-backed line.
func PackageLine(packageID string, qty int, unitPricePaise, depositPerUnitPaise int64) Line {
	return Line{
		Source:              SourcePackage,
		PackageID:           packageID,
		Qty:                 qty,
		UnitPricePaise:      unitPricePaise,
		TotalPaise:          unitPricePaise * int64(qty),
		DepositPerUnitPaise: depositPerUnitPaise,
	}
}

func (l Line) Validate() error {
	switch l.Source {
	case SourceProduct:
		if l.ProductID == "" || l.PackageID != "" {
			return ValidationError{Field: "product_id", Msg: "product line must reference exactly one product"}
		}
	case SourcePackage:
		if l.PackageID == "" || l.ProductID != "" {
			return ValidationError{Field: "package_id", Msg: "package line must reference exactly one package"}
		}
	default:
		return ValidationError{Field: "source", Msg: "unknown line source"}
	}
	if l.Qty <= 0 {
		return ValidationError{Field: "quantity", Msg: "quantity must be positive"}
	}
	if l.UnitPricePaise < 0 || l.DepositPerUnitPaise < 0 {
		return ValidationError{Field: "unit_price", Msg: "negative amount"}
	}
	if l.TotalPaise != l.UnitPricePaise*int64(l.Qty) {
		return ValidationError{Field: "total_price", Msg: "total must equal unit price times quantity"}
	}
	return nil
}

// Ref returns the catalog reference the line points at, regardless of source.
func (l Line) Ref() string {
	if l.Source == SourcePackage {
		return l.PackageID
	}
	return l.ProductID
}

type Product struct {
	ID                   string
	Code                 string
	Name                 string
	StockAvailable       int
	QtyReserved          int
	QtyInUse             int
	RentalPricePaise     int64
	SalePricePaise       int64
	SecurityDepositPaise int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
