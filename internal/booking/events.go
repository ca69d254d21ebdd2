package booking

import (
	"encoding/json"
	"time"
)

const (
	EventBookingCreated   = "BookingCreated"
	EventItemsAttached    = "ItemsAttached"
	EventQuoteConverted   = "QuoteConverted"
	EventStockReserved    = "StockReserved"
	EventStockRejected    = "StockRejected"
	EventStockReleased    = "StockReleased"
	EventBookingDelivered = "BookingDelivered"
	EventBarcodeReturned  = "BarcodeReturned"
	EventBookingReturned  = "BookingReturned"
	EventBookingCancelled = "BookingCancelled"
	EventAuditEntry       = "AuditEntry"
)

// Envelope wraps every event published by the service. Payload is the
// event-type-specific body below.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // booking_id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type BookingCreatedPayload struct {
	BookingID  string `json:"booking_id"`
	Number     string `json:"number"`
	CustomerID string `json:"customer_id"`
	Kind       Kind   `json:"kind"`
	Status     Status `json:"status"`
	TotalPaise int64  `json:"total_paise"`
}

type StockReservedPayload struct {
	BookingID string    `json:"booking_id"`
	Items     []ItemQty `json:"items"`
}

type StockShortDetail struct {
	ProductID string `json:"product_id"`
	Required  int    `json:"required"`
	Available int    `json:"available"`
}

type StockRejectedPayload struct {
	BookingID string             `json:"booking_id"`
	Reason    string             `json:"reason"` // e.g. OUT_OF_STOCK
	Details   []StockShortDetail `json:"details,omitempty"`
}

type StockReleasedPayload struct {
	BookingID string    `json:"booking_id"`
	Items     []ItemQty `json:"items"`
}

type BookingDeliveredPayload struct {
	BookingID string   `json:"booking_id"`
	Barcodes  []string `json:"barcodes,omitempty"`
}

type BarcodeReturnedPayload struct {
	BookingID  string    `json:"booking_id"`
	BarcodeID  string    `json:"barcode_id"`
	ProductID  string    `json:"product_id"`
	ReturnedAt time.Time `json:"returned_at"`
}

type BookingStatusPayload struct {
	BookingID string `json:"booking_id"`
	Status    Status `json:"status"`
}

type AuditPayload struct {
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Action     string         `json:"action"`
	Changes    map[string]any `json:"changes,omitempty"`
}
