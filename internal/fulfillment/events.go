package fulfillment

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/mysafawale-ai/safawala-booking/internal/booking"
	kafkax "github.com/mysafawale-ai/safawala-booking/internal/kafka"
)

// Events fans booking lifecycle events out to their kafka topics. Each field
// is a producer bound to one topic; a nil Events (or a nil producer) is a
// no-op so tests and stripped-down deployments need no wiring.
type Events struct {
	Created       *kafkax.Producer // booking.created
	Status        *kafkax.Producer // booking.status
	StockReserved *kafkax.Producer // booking.stock.reserved
	StockRejected *kafkax.Producer // booking.stock.rejected
	StockReleased *kafkax.Producer // booking.stock.released

	Service string
}

func (e *Events) publish(p *kafkax.Producer, eventType, bookingID string, payload any) {
	if e == nil || p == nil {
		return
	}
	ev := booking.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      e.Service,
		CorrelationID: bookingID,
		Payload:       kafkax.MustMarshal(payload),
	}
	p.Publish(booking.PartitionKey(bookingID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (e *Events) bookingCreated(b booking.Booking) {
	if e == nil {
		return
	}
	e.publish(e.Created, booking.EventBookingCreated, b.ID, booking.BookingCreatedPayload{
		BookingID:  b.ID,
		Number:     b.Number,
		CustomerID: b.CustomerID,
		Kind:       b.Kind,
		Status:     b.Status,
		TotalPaise: b.Financials.TotalPaise,
	})
}

func (e *Events) statusChanged(eventType, bookingID string, status booking.Status) {
	if e == nil {
		return
	}
	e.publish(e.Status, eventType, bookingID, booking.BookingStatusPayload{
		BookingID: bookingID,
		Status:    status,
	})
}

func (e *Events) stockReserved(bookingID string, items []booking.ItemQty) {
	if e == nil || len(items) == 0 {
		return
	}
	e.publish(e.StockReserved, booking.EventStockReserved, bookingID, booking.StockReservedPayload{
		BookingID: bookingID,
		Items:     items,
	})
}

func (e *Events) stockRejected(bookingID string, details []booking.StockShortDetail) {
	if e == nil {
		return
	}
	e.publish(e.StockRejected, booking.EventStockRejected, bookingID, booking.StockRejectedPayload{
		BookingID: bookingID,
		Reason:    "OUT_OF_STOCK",
		Details:   details,
	})
}

func (e *Events) stockReleased(bookingID string, items []booking.ItemQty) {
	if e == nil || len(items) == 0 {
		return
	}
	e.publish(e.StockReleased, booking.EventStockReleased, bookingID, booking.StockReleasedPayload{
		BookingID: bookingID,
		Items:     items,
	})
}
