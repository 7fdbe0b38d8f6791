package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/tradehub-backend/internal/engine/escrow"
	"github.com/ignatzorin/tradehub-backend/internal/models"
	"github.com/ignatzorin/tradehub-backend/internal/repository/common"
)

var ErrEscrowNotFound = errors.New("escrow not found")

// EscrowRepository хранит денежное состояние escrow по заказам.
type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// GetByOrderID возвращает запись и участников сделки или ErrEscrowNotFound.
func (r *EscrowRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowRecord, error) {
	var rec models.EscrowRecord
	query := `
		SELECT e.order_id, o.buyer_id, o.seller_id, e.currency, e.gross_amount, e.held_amount,
		       e.released_amount, e.status, e.pre_dispute_status, e.archived, e.updated_at
		FROM escrow_records e
		JOIN orders o ON o.id = e.order_id
		WHERE e.order_id = $1
	`
	if err := sqlx.GetContext(ctx, common.Conn(ctx, r.db), &rec, query, orderID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: get %w", err)
	}
	return &rec, nil
}

// Upsert сохраняет запись. Архивную запись не перезаписывает.
func (r *EscrowRepository) Upsert(ctx context.Context, rec escrow.Record) error {
	row := models.EscrowRecordFromRecord(rec)
	query := `
		INSERT INTO escrow_records
			(order_id, currency, gross_amount, held_amount, released_amount, status, pre_dispute_status, archived, updated_at)
		VALUES (:order_id, :currency, :gross_amount, :held_amount, :released_amount, :status, :pre_dispute_status, :archived, NOW())
		ON CONFLICT (order_id) DO UPDATE SET
			held_amount = EXCLUDED.held_amount,
			released_amount = EXCLUDED.released_amount,
			status = EXCLUDED.status,
			pre_dispute_status = EXCLUDED.pre_dispute_status,
			archived = EXCLUDED.archived,
			updated_at = NOW()
		WHERE escrow_records.archived = FALSE
	`
	if _, err := sqlx.NamedExecContext(ctx, common.Conn(ctx, r.db), query, row); err != nil {
		return fmt.Errorf("escrow repository: upsert %w", err)
	}
	return nil
}
