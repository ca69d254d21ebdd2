// Package pricing computes booking totals. All math is integer paise so that
// subtotal, discounts, tax and the paid/pending split reconcile exactly.
package pricing

import (
	"github.com/mysafawale-ai/safawala-booking/internal/booking"
)

type PaymentType string

const (
	PaymentFull    PaymentType = "full"
	PaymentAdvance PaymentType = "advance" // 50% now
	PaymentPartial PaymentType = "partial" // caller-chosen amount, clamped to the grand total
)

type Input struct {
	Items             []booking.Line
	Kind              booking.Kind
	DiscountPaise     int64
	CouponPaise       int64
	DepositExtraPaise int64
	PaymentType       PaymentType
	CustomPaise       int64 // only read for PaymentPartial
	TaxRateBps        int64 // e.g. 500 = 5% GST
}

type Totals struct {
	SubtotalPaise      int64
	DiscountPaise      int64
	CouponPaise        int64
	AfterDiscountPaise int64
	TaxPaise           int64
	GrandTotalPaise    int64
	DepositPaise       int64 // auto per-item deposit + manual extra; excluded from GrandTotal
	PayableNowPaise    int64 // includes deposit
	RemainingPaise     int64
}

// Compute derives the totals for a cart. It is a pure function: no side
// effects, deterministic for identical inputs.
//
// Negative discount or custom amounts are rejected rather than clamped so a
// caller bug cannot hide behind a silently corrected total.
func Compute(in Input) (Totals, error) {
	if in.DiscountPaise < 0 {
		return Totals{}, booking.ValidationError{Field: "discount_amount", Msg: "must not be negative"}
	}
	if in.CouponPaise < 0 {
		return Totals{}, booking.ValidationError{Field: "coupon_discount", Msg: "must not be negative"}
	}
	if in.DepositExtraPaise < 0 {
		return Totals{}, booking.ValidationError{Field: "deposit_extra", Msg: "must not be negative"}
	}
	if in.PaymentType == PaymentPartial && in.CustomPaise < 0 {
		return Totals{}, booking.ValidationError{Field: "custom_amount", Msg: "must not be negative"}
	}
	if in.TaxRateBps < 0 {
		return Totals{}, booking.ValidationError{Field: "tax_rate", Msg: "must not be negative"}
	}

	var subtotal, autoDeposit int64
	for _, it := range in.Items {
		if err := it.Validate(); err != nil {
			return Totals{}, err
		}
		subtotal += it.TotalPaise
		if in.Kind == booking.KindRental {
			autoDeposit += it.DepositPerUnitPaise * int64(it.Qty)
		}
	}

	afterDiscount := subtotal - in.DiscountPaise - in.CouponPaise
	if afterDiscount < 0 {
		afterDiscount = 0
	}
	tax := afterDiscount * in.TaxRateBps / 10000
	grand := afterDiscount + tax
	deposit := autoDeposit + in.DepositExtraPaise

	var payable int64
	switch in.PaymentType {
	case PaymentAdvance:
		payable = grand / 2
	case PaymentPartial:
		payable = in.CustomPaise
		if payable > grand {
			payable = grand
		}
	default: // full
		payable = grand
	}

	return Totals{
		SubtotalPaise:      subtotal,
		DiscountPaise:      in.DiscountPaise,
		CouponPaise:        in.CouponPaise,
		AfterDiscountPaise: afterDiscount,
		TaxPaise:           tax,
		GrandTotalPaise:    grand,
		DepositPaise:       deposit,
		PayableNowPaise:    payable + deposit,
		RemainingPaise:     grand - payable,
	}, nil
}

// Financials maps computed totals onto the persisted booking shape. Deposit is
// tracked separately and never folded into TotalPaise.
func (t Totals) Financials() booking.Financials {
	return booking.Financials{
		SubtotalPaise:        t.SubtotalPaise,
		DiscountPaise:        t.DiscountPaise,
		CouponDiscountPaise:  t.CouponPaise,
		TaxPaise:             t.TaxPaise,
		SecurityDepositPaise: t.DepositPaise,
		TotalPaise:           t.GrandTotalPaise,
		PaidPaise:            t.PayableNowPaise - t.DepositPaise,
		PendingPaise:         t.RemainingPaise,
	}
}
