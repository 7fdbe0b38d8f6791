package valueobject

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
)

// Money: неотрицательная сумма в фиксированной точке с кодом валюты.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if amount.IsNegative() {
		return Money{}, apperror.Newf(apperror.ErrCodeInvalidAmount, "сумма не может быть отрицательной: %s", amount)
	}
	if currency == "" {
		currency = USD
	}
	if !currency.IsSupported() {
		return Money{}, apperror.Newf(apperror.ErrCodeUnsupportedCurrency, "валюта %q не поддерживается", currency)
	}
	return Money{Amount: amount, Currency: currency}, nil
}

// NewMoneyFromFloat принимает сумму из JSON/форм, отсекая NaN и бесконечности.
func NewMoneyFromFloat(amount float64, currency Currency) (Money, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return Money{}, apperror.New(apperror.ErrCodeInvalidAmount, "сумма должна быть конечным числом")
	}
	return NewMoney(decimal.NewFromFloat(amount), currency)
}

// NewMoneyFromString разбирает десятичную строку без потери точности.
func NewMoneyFromString(amount string, currency Currency) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, apperror.Wrap(err, apperror.ErrCodeInvalidAmount, "сумма должна быть десятичным числом")
	}
	return NewMoney(d, currency)
}

// RoundMinor округляет сумму до минимальной единицы валюты (half-up для неотрицательных сумм).
func (m Money) RoundMinor() Money {
	return Money{Amount: m.Currency.Round(m.Amount), Currency: m.Currency}
}

func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

func (m Money) Sub(other Money) Money {
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}
}

func (m Money) IsZero() bool {
	return m.Amount.IsZero()
}

func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Currency, m.Amount.StringFixed(m.Currency.MinorUnits()))
}
