package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/tradehub-backend/internal/engine/trust"
	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
)

// InactivityWindow: компания без новых заказов за этот срок помечается как неактивная.
const InactivityWindow = 90 * 24 * time.Hour

// NoResponseDataHours подставляется, когда у компании нет ни одного отвеченного запроса.
// Середина шкалы ответа: половина балла и без пометки slow_responder.
const NoResponseDataHours = 48.0

// TrustProfileRepository собирает агрегаты поведения компании для оценки доверия.
type TrustProfileRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewTrustProfileRepository(db *sqlx.DB) *TrustProfileRepository {
	return &TrustProfileRepository{db: db, now: time.Now}
}

type trustProfileRow struct {
	CompletedOrders  int             `db:"completed_orders"`
	CancelledOrders  int             `db:"cancelled_orders"`
	DisputedOrders   int             `db:"disputed_orders"`
	AvgResponseHours sql.NullFloat64 `db:"avg_response_hours"`
	VerificationTier string          `db:"verification_tier"`
	AccountAgeDays   int             `db:"account_age_days"`
	LastOrderAt      sql.NullTime    `db:"last_order_at"`
}

// GetProfile считает агрегаты по заказам, где компания покупатель или продавец.
func (r *TrustProfileRepository) GetProfile(ctx context.Context, companyID uuid.UUID) (trust.Profile, error) {
	var row trustProfileRow
	query := `
		SELECT
			COALESCE((SELECT COUNT(*) FROM orders o
				WHERE (o.buyer_id = c.id OR o.seller_id = c.id) AND o.status = 'completed'), 0) AS completed_orders,
			COALESCE((SELECT COUNT(*) FROM orders o
				WHERE (o.buyer_id = c.id OR o.seller_id = c.id) AND o.status = 'cancelled'), 0) AS cancelled_orders,
			COALESCE((SELECT COUNT(DISTINCT ev.order_id) FROM order_events ev
				JOIN orders o ON o.id = ev.order_id
				WHERE (o.buyer_id = c.id OR o.seller_id = c.id) AND ev.event_type = 'dispute_opened'), 0) AS disputed_orders,
			(SELECT AVG(EXTRACT(EPOCH FROM (i.responded_at - i.received_at)) / 3600.0) FROM inquiries i
				WHERE i.company_id = c.id AND i.responded_at IS NOT NULL) AS avg_response_hours,
			c.verification_tier,
			GREATEST(0, EXTRACT(DAY FROM (NOW() - c.created_at)))::INT AS account_age_days,
			(SELECT MAX(o.created_at) FROM orders o
				WHERE o.buyer_id = c.id OR o.seller_id = c.id) AS last_order_at
		FROM companies c
		WHERE c.id = $1
	`
	if err := r.db.GetContext(ctx, &row, query, companyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return trust.Profile{}, apperror.ErrCompanyNotFound
		}
		return trust.Profile{}, fmt.Errorf("trust profile repository: get %w", err)
	}

	return row.toProfile(r.now()), nil
}

func (row trustProfileRow) toProfile(now time.Time) trust.Profile {
	p := trust.Profile{
		CompletedOrders:  row.CompletedOrders,
		CancelledOrders:  row.CancelledOrders,
		DisputedOrders:   row.DisputedOrders,
		VerificationTier: trust.VerificationTier(row.VerificationTier),
		AccountAgeDays:   row.AccountAgeDays,
		NoRecentOrders:   !row.LastOrderAt.Valid || now.Sub(row.LastOrderAt.Time) > InactivityWindow,
		AvgResponseHours: NoResponseDataHours,
	}
	if row.AvgResponseHours.Valid {
		p.AvgResponseHours = row.AvgResponseHours.Float64
	}
	return p
}
