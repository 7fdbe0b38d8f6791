package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/tradehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tradehub-backend/internal/engine/fee"
	"github.com/ignatzorin/tradehub-backend/internal/models"
	"github.com/ignatzorin/tradehub-backend/internal/repository/common"
)

// FXRateRepository читает справочные курсы.
type FXRateRepository struct {
	db *sqlx.DB
}

func NewFXRateRepository(db *sqlx.DB) *FXRateRepository {
	return &FXRateRepository{db: db}
}

// LatestRates возвращает последний курс по каждой валюте относительно base.
// Валюты, которые платформа не поддерживает, пропускаются.
func (r *FXRateRepository) LatestRates(ctx context.Context, base valueobject.Currency) (fee.RateTable, error) {
	var rows []models.FXRate
	query := `
		SELECT DISTINCT ON (quote) base, quote, rate, fetched_at
		FROM fx_rates
		WHERE base = $1
		ORDER BY quote, fetched_at DESC
	`
	if err := r.db.SelectContext(ctx, &rows, query, string(base)); err != nil {
		return nil, fmt.Errorf("fx rate repository: latest %w", err)
	}

	table := make(fee.RateTable, len(rows))
	for _, row := range rows {
		cur := valueobject.Currency(row.Quote)
		if !cur.IsSupported() || !row.Rate.IsPositive() {
			continue
		}
		table[cur] = row.Rate
	}
	return table, nil
}

// Save записывает набор курсов одной вставкой.
func (r *FXRateRepository) Save(ctx context.Context, base valueobject.Currency, rates fee.RateTable) error {
	if len(rates) == 0 {
		return nil
	}
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		bi := common.NewBatchInserter(tx, "INSERT INTO fx_rates (base, quote, rate)", 3, 100)
		for cur, rate := range rates {
			if err := bi.Add(ctx, string(base), string(cur), rate); err != nil {
				return fmt.Errorf("fx rate repository: save %w", err)
			}
		}
		if err := bi.Flush(ctx); err != nil {
			return fmt.Errorf("fx rate repository: save %w", err)
		}
		return nil
	})
}
