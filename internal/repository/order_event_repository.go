package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/tradehub-backend/internal/engine/escrow"
	"github.com/ignatzorin/tradehub-backend/internal/models"
	"github.com/ignatzorin/tradehub-backend/internal/repository/common"
)

const orderEventColumns = 8

// OrderEventRepository ведёт журнал событий заказа. Строки только добавляются.
type OrderEventRepository struct {
	db *sqlx.DB
}

func NewOrderEventRepository(db *sqlx.DB) *OrderEventRepository {
	return &OrderEventRepository{db: db}
}

// Append дописывает события в журнал одной транзакцией, сохраняя порядок.
// Внутри WithOrderLock пишет в уже открытую транзакцию.
func (r *OrderEventRepository) Append(ctx context.Context, orderID uuid.UUID, events []escrow.Event) error {
	if len(events) == 0 {
		return nil
	}

	return common.RunInTx(ctx, r.db, func(ctx context.Context) error {
		bi := common.NewBatchInserter(common.Conn(ctx, r.db), `INSERT INTO order_events
			(order_id, event_type, occurred_at, actor, outcome, milestones_completed, milestones_required, funds_held)`,
			orderEventColumns, 100)

		for _, ev := range events {
			row := models.OrderEventFromEvent(orderID, ev)
			if err := bi.Add(ctx, row.OrderID, row.EventType, row.OccurredAt, row.Actor,
				row.Outcome, row.MilestonesCompleted, row.MilestonesRequired, row.FundsHeld); err != nil {
				return fmt.Errorf("order event repository: append %w", err)
			}
		}
		if err := bi.Flush(ctx); err != nil {
			return fmt.Errorf("order event repository: append %w", err)
		}

		return nil
	})
}

// ListByOrder возвращает журнал в порядке добавления.
func (r *OrderEventRepository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]escrow.Event, error) {
	var rows []models.OrderEvent
	query := `
		SELECT id, order_id, event_type, occurred_at, actor, outcome,
		       milestones_completed, milestones_required, funds_held, created_at
		FROM order_events
		WHERE order_id = $1
		ORDER BY id ASC
	`
	if err := sqlx.SelectContext(ctx, common.Conn(ctx, r.db), &rows, query, orderID); err != nil {
		return nil, fmt.Errorf("order event repository: list %w", err)
	}

	events := make([]escrow.Event, len(rows))
	for i, row := range rows {
		events[i] = row.ToEvent()
	}
	return events, nil
}
