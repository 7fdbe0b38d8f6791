package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/tradehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tradehub-backend/internal/engine/fee"
)

// FXRateStore: источник справочных курсов в БД.
type FXRateStore interface {
	LatestRates(ctx context.Context, base valueobject.Currency) (fee.RateTable, error)
	Save(ctx context.Context, base valueobject.Currency, rates fee.RateTable) error
}

// FeeService отдаёт превью комиссий и оценку конвертации.
type FeeService struct {
	engine   *fee.Engine
	store    FXRateStore
	cache    *CacheService
	fallback fee.RateTable
	ttl      time.Duration
	log      logrus.FieldLogger
}

// NewFeeService создаёт сервис. fallback используется, когда в БД нет курса для валюты.
func NewFeeService(engine *fee.Engine, store FXRateStore, cache *CacheService, fallback fee.RateTable, ttl time.Duration, log logrus.FieldLogger) *FeeService {
	return &FeeService{
		engine:   engine,
		store:    store,
		cache:    cache,
		fallback: fallback,
		ttl:      ttl,
		log:      log,
	}
}

// PreviewFees раскладывает брутто-сумму на комиссии.
func (s *FeeService) PreviewFees(gross valueobject.Money) (fee.Breakdown, error) {
	return s.engine.CalculateTradeFees(gross)
}

// Rates возвращает ставки комиссий платформы.
func (s *FeeService) Rates() fee.Rates {
	return s.engine.Rates()
}

// EstimateFX пересчитывает сумму в USD в валюту покупателя по текущим курсам.
func (s *FeeService) EstimateFX(ctx context.Context, amountUSD decimal.Decimal, target valueobject.Currency) (fee.FXQuote, error) {
	rates, err := s.RateTable(ctx)
	if err != nil {
		return fee.FXQuote{}, err
	}
	return s.engine.EstimateFX(amountUSD, target, rates)
}

// RateTable возвращает снимок курсов: курсы из БД поверх резервных.
// Недоступная БД не ломает оценку, пока есть резервный снимок.
func (s *FeeService) RateTable(ctx context.Context) (fee.RateTable, error) {
	value, err := s.cache.GetOrSet(ctx, FXRatesCacheKey(string(valueobject.USD)), s.ttl, func(ctx context.Context) (interface{}, error) {
		stored, err := s.store.LatestRates(ctx, valueobject.USD)
		if err != nil {
			if len(s.fallback) == 0 {
				return nil, fmt.Errorf("fee service: курсы недоступны: %w", err)
			}
			s.log.WithError(err).Warn("fee service: курсы из БД недоступны, используем резервный снимок")
			return s.fallback, nil
		}
		return mergeRates(s.fallback, stored), nil
	})
	if err != nil {
		return nil, err
	}
	return value.(fee.RateTable), nil
}

// BootstrapRates заполняет пустую таблицу курсов резервным снимком.
func (s *FeeService) BootstrapRates(ctx context.Context) error {
	stored, err := s.store.LatestRates(ctx, valueobject.USD)
	if err != nil {
		return fmt.Errorf("fee service: bootstrap %w", err)
	}
	if len(stored) > 0 || len(s.fallback) == 0 {
		return nil
	}
	if err := s.store.Save(ctx, valueobject.USD, s.fallback); err != nil {
		return fmt.Errorf("fee service: bootstrap %w", err)
	}
	// Снимки по всем базовым валютам выведены из старой таблицы.
	s.cache.InvalidateByPrefix(fxRatesKeyPrefix)
	s.log.WithField("currencies", len(s.fallback)).Info("fee service: таблица курсов заполнена резервным снимком")
	return nil
}

func mergeRates(base, override fee.RateTable) fee.RateTable {
	out := make(fee.RateTable, len(base)+len(override))
	for c, r := range base {
		out[c] = r
	}
	for c, r := range override {
		out[c] = r
	}
	return out
}
