package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/mysafawale-ai/safawala-booking/internal/booking"
	"github.com/mysafawale-ai/safawala-booking/internal/redisx"
)

// Consumer materializes the audit stream into the audit_log table.
type Consumer struct {
	DB    *pgxpool.Pool
	Redis *redis.Client
}

// HandleAuditEvent is wired as the kafka consumer handler. Duplicate
// deliveries are dropped via a redis event-id dedup key.
func (c *Consumer) HandleAuditEvent(ctx context.Context, m kafkago.Message) error {
	var env booking.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != booking.EventAuditEntry {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "auditor", env.EventID)
	if exists, _ := redisx.Exists(ctx, c.Redis, dkey); exists {
		return nil
	}

	var p booking.AuditPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return err
	}
	changes, err := json.Marshal(p.Changes)
	if err != nil {
		return err
	}
	if _, err := c.DB.Exec(ctx, `
		INSERT INTO audit_log (event_id, entity_type, entity_id, action, changes, producer, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (event_id) DO NOTHING`,
		env.EventID, p.EntityType, p.EntityID, p.Action, changes, env.Producer, env.OccurredAt); err != nil {
		return err
	}
	_ = c.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return nil
}
