// Package audit is the fire-and-forget audit side channel. Record never fails
// the primary booking operation: publish errors are logged and swallowed.
package audit

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/mysafawale-ai/safawala-booking/internal/booking"
	kafkax "github.com/mysafawale-ai/safawala-booking/internal/kafka"
)

type Entry struct {
	EntityType string
	EntityID   string
	Action     string
	Changes    map[string]any
}

// Recorder publishes audit entries onto the audit topic. A nil Recorder is a
// valid no-op, so call sites don't need to guard.
type Recorder struct {
	Producer *kafkax.Producer
	Service  string
}

func (r *Recorder) Record(e Entry) {
	if r == nil || r.Producer == nil {
		return
	}
	ev := booking.Envelope{
		EventID:       uuid.NewString(),
		EventType:     booking.EventAuditEntry,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      r.Service,
		CorrelationID: e.EntityID,
		Payload: kafkax.MustMarshal(booking.AuditPayload{
			EntityType: e.EntityType,
			EntityID:   e.EntityID,
			Action:     e.Action,
			Changes:    e.Changes,
		}),
	}
	r.Producer.Publish(booking.PartitionKey(e.EntityID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(booking.EventAuditEntry)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
