package redisx

import "time"

const (
	// Cache booking status: booking_status:{booking_id} -> {"status": "..."}
	KeyBookingStatus = "booking_status:%s"

	// Cache coupon row by code: coupon:{code} -> coupon JSON
	KeyCoupon = "coupon:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLCouponCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
