// Package coupons validates and redeems coupon codes. Administration of the
// codes themselves lives elsewhere; this service only reads rules and tracks
// usage. Usage tracking is best-effort and must never fail a booking.
package coupons

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/mysafawale-ai/safawala-booking/internal/audit"
	"github.com/mysafawale-ai/safawala-booking/internal/redisx"
)

const (
	DiscountPercent = "percent"
	DiscountFlat    = "flat"
)

type Coupon struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	DiscountType  string     `json:"discount_type"`  // percent | flat
	DiscountValue int64      `json:"discount_value"` // percent points or paise
	MinOrderPaise int64      `json:"min_order_paise"`
	MaxUses       int        `json:"max_uses"` // 0 = unlimited
	UsedCount     int        `json:"used_count"`
	ValidUntil    *time.Time `json:"valid_until,omitempty"`
	Active        bool       `json:"active"`
}

// Result mirrors the validate contract: invalid codes are a Valid=false
// result with a message, not an error. Errors are reserved for infrastructure
// failures.
type Result struct {
	Valid         bool   `json:"valid"`
	CouponID      string `json:"coupon_id,omitempty"`
	DiscountPaise int64  `json:"discount_paise"`
	Message       string `json:"message,omitempty"`
}

type Service struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
	Audit *audit.Recorder
}

// Validate checks a code against its rule and the order value (the
// after-manual-discount subtotal, per the pricing flow) and computes the
// discount it would grant. It does not redeem.
func (s *Service) Validate(ctx context.Context, code string, orderValuePaise int64, customerID string) (Result, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Result{Message: "coupon code required"}, nil
	}
	if orderValuePaise < 0 {
		return Result{}, fmt.Errorf("coupons: negative order value")
	}

	c, err := s.lookup(ctx, code)
	if errors.Is(err, pgx.ErrNoRows) {
		return Result{Message: "invalid coupon"}, nil
	}
	if err != nil {
		return Result{}, err
	}

	switch {
	case !c.Active:
		return Result{Message: "coupon is inactive"}, nil
	case c.ValidUntil != nil && time.Now().After(*c.ValidUntil):
		return Result{Message: "coupon has expired"}, nil
	case c.MaxUses > 0 && c.UsedCount >= c.MaxUses:
		return Result{Message: "coupon usage limit reached"}, nil
	case orderValuePaise < c.MinOrderPaise:
		return Result{Message: fmt.Sprintf("order value below minimum of %d paise", c.MinOrderPaise)}, nil
	}

	discount := c.DiscountValue
	if c.DiscountType == DiscountPercent {
		discount = orderValuePaise * c.DiscountValue / 100
	}
	if discount > orderValuePaise {
		discount = orderValuePaise
	}
	return Result{Valid: true, CouponID: c.ID, DiscountPaise: discount}, nil
}

// TrackUsage records a redemption: a coupon_usage row, the usage counter
// bump, and an audit entry. Failures are logged and swallowed.
func (s *Service) TrackUsage(ctx context.Context, couponID, bookingID, customerID string, discountPaise int64) {
	if s.DB == nil || couponID == "" {
		return
	}
	var code string
	err := s.DB.QueryRow(ctx, `
		UPDATE coupons SET used_count = used_count + 1 WHERE id = $1
		RETURNING code`, couponID).Scan(&code)
	if err != nil {
		log.Printf("coupon usage update failed (coupon=%s booking=%s): %v", couponID, bookingID, err)
		return
	}
	if _, err := s.DB.Exec(ctx, `
		INSERT INTO coupon_usage (id, coupon_id, booking_id, customer_id, discount_applied_paise)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), couponID, bookingID, customerID, discountPaise); err != nil {
		log.Printf("coupon usage insert failed (coupon=%s booking=%s): %v", couponID, bookingID, err)
	}
	if s.Redis != nil {
		_ = s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyCoupon, code)).Err()
	}
	s.Audit.Record(audit.Entry{
		EntityType: "coupons",
		EntityID:   couponID,
		Action:     "redeemed",
		Changes:    map[string]any{"booking_id": bookingID, "discount_paise": discountPaise},
	})
}

func (s *Service) lookup(ctx context.Context, code string) (Coupon, error) {
	key := fmt.Sprintf(redisx.KeyCoupon, code)
	if s.Redis != nil {
		if raw, err := s.Redis.Get(ctx, key).Result(); err == nil && raw != "" {
			var c Coupon
			if json.Unmarshal([]byte(raw), &c) == nil {
				return c, nil
			}
		}
	}

	var c Coupon
	err := s.DB.QueryRow(ctx, `
		SELECT id, code, discount_type, discount_value, min_order_paise, max_uses, used_count, valid_until, active
		FROM coupons WHERE code = $1`, code).
		Scan(&c.ID, &c.Code, &c.DiscountType, &c.DiscountValue, &c.MinOrderPaise, &c.MaxUses, &c.UsedCount, &c.ValidUntil, &c.Active)
	if err != nil {
		return Coupon{}, err
	}
	if s.Redis != nil {
		if b, err := json.Marshal(c); err == nil {
			_ = s.Redis.Set(ctx, key, b, redisx.TTLCouponCache).Err()
		}
	}
	return c, nil
}
