package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/tradehub-backend/internal/engine/escrow"
)

// OrderEvent: строка журнала order_events.
type OrderEvent struct {
	ID                  int64          `db:"id" json:"id"`
	OrderID             uuid.UUID      `db:"order_id" json:"order_id"`
	EventType           string         `db:"event_type" json:"event_type"`
	OccurredAt          time.Time      `db:"occurred_at" json:"occurred_at"`
	Actor               string         `db:"actor" json:"actor"`
	Outcome             sql.NullString `db:"outcome" json:"-"`
	MilestonesCompleted sql.NullInt32  `db:"milestones_completed" json:"-"`
	MilestonesRequired  sql.NullInt32  `db:"milestones_required" json:"-"`
	FundsHeld           bool           `db:"funds_held" json:"funds_held"`
	CreatedAt           time.Time      `db:"created_at" json:"created_at"`
}

// ToEvent переводит строку журнала в событие машины состояний.
func (e OrderEvent) ToEvent() escrow.Event {
	ev := escrow.Event{
		Type:      escrow.EventType(e.EventType),
		Timestamp: e.OccurredAt,
		Actor:     e.Actor,
		FundsHeld: e.FundsHeld,
	}
	if e.Outcome.Valid {
		ev.Outcome = escrow.Outcome(e.Outcome.String)
	}
	if e.MilestonesRequired.Valid {
		ev.Milestones = &escrow.MilestoneProgress{
			Completed: int(e.MilestonesCompleted.Int32),
			Required:  int(e.MilestonesRequired.Int32),
		}
	}
	return ev
}

// OrderEventFromEvent готовит событие к записи в журнал.
func OrderEventFromEvent(orderID uuid.UUID, ev escrow.Event) OrderEvent {
	row := OrderEvent{
		OrderID:    orderID,
		EventType:  string(ev.Type),
		OccurredAt: ev.Timestamp,
		Actor:      ev.Actor,
		FundsHeld:  ev.FundsHeld,
	}
	if ev.Outcome != "" {
		row.Outcome = sql.NullString{String: string(ev.Outcome), Valid: true}
	}
	if ev.Milestones != nil {
		row.MilestonesCompleted = sql.NullInt32{Int32: int32(ev.Milestones.Completed), Valid: true}
		row.MilestonesRequired = sql.NullInt32{Int32: int32(ev.Milestones.Required), Valid: true}
	}
	return row
}
