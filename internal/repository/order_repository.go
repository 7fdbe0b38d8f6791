package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/tradehub-backend/internal/models"
	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tradehub-backend/internal/repository/common"
)

// OrderRepository читает торговые заказы.
type OrderRepository struct {
	db *sqlx.DB
}

func NewOrderRepository(db *sqlx.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// GetByID возвращает заказ или apperror.ErrOrderNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return common.GetByID[models.Order](ctx, common.Conn(ctx, r.db), "orders", id, apperror.ErrOrderNotFound)
}

// WithOrderLock открывает транзакцию, берёт строку заказа FOR UPDATE и выполняет fn.
// Репозитории, вызванные из fn с переданным ctx, работают в той же транзакции.
// Ошибка fn откатывает всё, что fn успела записать.
func (r *OrderRepository) WithOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error {
	return common.RunInTx(ctx, r.db, func(ctx context.Context) error {
		var locked uuid.UUID
		err := sqlx.GetContext(ctx, common.Conn(ctx, r.db), &locked,
			`SELECT id FROM orders WHERE id = $1 FOR UPDATE`, orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return apperror.ErrOrderNotFound
			}
			return fmt.Errorf("order repository: lock %w", err)
		}
		return fn(ctx)
	})
}
