// Package fee раскладывает стоимость сделки на комиссии платформы и оценивает конвертацию валют.
package fee

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/tradehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
)

// maxCombinedRate ограничивает сумму ставок: при ней net остаётся неотрицательным после округления компонентов.
var maxCombinedRate = decimal.RequireFromString("0.5")

// Rates: доли от брутто-суммы сделки.
type Rates struct {
	Escrow   decimal.Decimal `json:"escrow"`
	Service  decimal.Decimal `json:"service"`
	FXSpread decimal.Decimal `json:"fx_spread"`
}

// DefaultRates возвращает бизнес-константы платформы: 5% escrow, 1.8% сервис, 1.2% FX спред.
func DefaultRates() Rates {
	return Rates{
		Escrow:   decimal.RequireFromString("0.05"),
		Service:  decimal.RequireFromString("0.018"),
		FXSpread: decimal.RequireFromString("0.012"),
	}
}

// Combined возвращает суммарную ставку.
func (r Rates) Combined() decimal.Decimal {
	return r.Escrow.Add(r.Service).Add(r.FXSpread)
}

// Validate проверяет, что ставки неотрицательны и в сумме не превышают 50%.
func (r Rates) Validate() error {
	if r.Escrow.IsNegative() || r.Service.IsNegative() || r.FXSpread.IsNegative() {
		return apperror.New(apperror.ErrCodeValidation, "ставки комиссий не могут быть отрицательными")
	}
	if r.Combined().GreaterThan(maxCombinedRate) {
		return apperror.Newf(apperror.ErrCodeValidation, "суммарная ставка %s превышает %s", r.Combined(), maxCombinedRate)
	}
	return nil
}

// Breakdown: разложение брутто-суммы. Total всегда равен сумме округлённых компонентов.
type Breakdown struct {
	Gross      valueobject.Money `json:"gross"`
	EscrowFee  valueobject.Money `json:"escrow_fee"`
	ServiceFee valueobject.Money `json:"service_fee"`
	FXSpread   valueobject.Money `json:"fx_spread"`
	Total      valueobject.Money `json:"total"`
	Net        valueobject.Money `json:"net"`
}

// Engine считает комиссии по заданным ставкам. Не хранит состояния и безопасен для конкурентного использования.
type Engine struct {
	rates Rates
}

// NewEngine создаёт движок комиссий.
func NewEngine(rates Rates) (*Engine, error) {
	if err := rates.Validate(); err != nil {
		return nil, err
	}
	return &Engine{rates: rates}, nil
}

// NewDefaultEngine создаёт движок со стандартными ставками.
func NewDefaultEngine() *Engine {
	return &Engine{rates: DefaultRates()}
}

// Rates возвращает ставки движка.
func (e *Engine) Rates() Rates {
	return e.rates
}

// CalculateTradeFees раскладывает брутто-сумму на escrow, сервисную комиссию и FX спред.
func (e *Engine) CalculateTradeFees(gross valueobject.Money) (Breakdown, error) {
	if gross.Amount.IsNegative() {
		return Breakdown{}, apperror.Newf(apperror.ErrCodeInvalidAmount, "сумма сделки не может быть отрицательной: %s", gross.Amount)
	}
	if gross.Currency == "" {
		gross.Currency = valueobject.USD
	}
	if !gross.Currency.IsSupported() {
		return Breakdown{}, apperror.Newf(apperror.ErrCodeUnsupportedCurrency, "валюта %q не поддерживается", gross.Currency)
	}

	component := func(rate decimal.Decimal) valueobject.Money {
		return valueobject.Money{
			Amount:   gross.Currency.Round(gross.Amount.Mul(rate)),
			Currency: gross.Currency,
		}
	}

	escrowFee := component(e.rates.Escrow)
	serviceFee := component(e.rates.Service)
	fxSpread := component(e.rates.FXSpread)
	total := escrowFee.Add(serviceFee).Add(fxSpread)

	return Breakdown{
		Gross:      gross,
		EscrowFee:  escrowFee,
		ServiceFee: serviceFee,
		FXSpread:   fxSpread,
		Total:      total,
		Net:        gross.Sub(total),
	}, nil
}
