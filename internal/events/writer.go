package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"quoteline/internal/db"
	"quoteline/internal/domain"
)

// Event types appended by workflow operations.
const (
	UserRegistered     = "user.registered"
	UserActivated      = "user.activated"
	UserDeactivated    = "user.deactivated"
	OrderCreated       = "order.created"
	OrderStatusChanged = "order.status_changed"
	OrderVendorsAdded  = "order.vendors_assigned"
	QuoteSubmitted     = "quote.submitted"
	QuoteApproved      = "quote.approved"
	QuoteRejected      = "quote.rejected"
	RequirementCreated = "requirement.created"
)

type Writer struct {
	Dialect db.Dialect
	Now     func() time.Time
}

type EventPayload map[string]any

// Append records an event inside tx so it commits or rolls back with the change.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := domain.FormatTime(w.Now())
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, w.Dialect.Rebind(`INSERT INTO events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`),
		ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
