package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Event types recorded in the log.
const (
	IngredientUpserted = "ingredient.upserted"
	IngredientStock    = "ingredient.stock"
	IngredientDeleted  = "ingredient.deleted"
	IngredientImported = "ingredient.imported"
	ScheduleUpserted   = "schedule.upserted"
	ScheduleDeleted    = "schedule.deleted"
	ConfigImported     = "config.imported"
	OrdersSuggested    = "orders.suggested"
)

type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records an event inside the caller's transaction so the log never
// disagrees with the data it describes.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	if actorID == "" {
		actorID = "local-user"
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`,
		now().UTC().Format(time.RFC3339), evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
