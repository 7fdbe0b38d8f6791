package fee

import (
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/tradehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
)

var hundred = decimal.NewFromInt(100)

// RateTable: снимок справочных курсов: сколько единиц валюты за 1 USD.
// Загружается вызывающей стороной (БД, файл), движок только читает его.
type RateTable map[valueobject.Currency]decimal.Decimal

// Rate возвращает курс для валюты. Для USD курс всегда 1.
func (t RateTable) Rate(c valueobject.Currency) (decimal.Decimal, bool) {
	if c == valueobject.USD {
		return decimal.NewFromInt(1), true
	}
	rate, ok := t[c]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, false
	}
	return rate, true
}

// FXQuote: результат оценки конвертации. Спред раскрывается отдельно от курса.
type FXQuote struct {
	AmountUSD   decimal.Decimal   `json:"amount_usd"`
	LocalAmount valueobject.Money `json:"local_amount"`
	Rate        decimal.Decimal   `json:"rate"`
	SpreadPct   decimal.Decimal   `json:"spread_pct"`
}

// EstimateFX пересчитывает сумму в USD в целевую валюту со спредом против покупателя.
// Конвертация USD в USD не несёт спреда.
func (e *Engine) EstimateFX(amountUSD decimal.Decimal, target valueobject.Currency, rates RateTable) (FXQuote, error) {
	if amountUSD.IsNegative() {
		return FXQuote{}, apperror.Newf(apperror.ErrCodeInvalidAmount, "сумма не может быть отрицательной: %s", amountUSD)
	}
	if !target.IsSupported() {
		return FXQuote{}, apperror.Newf(apperror.ErrCodeUnsupportedCurrency, "валюта %q не поддерживается", target)
	}

	rate, ok := rates.Rate(target)
	if !ok {
		return FXQuote{}, apperror.Newf(apperror.ErrCodeUnsupportedCurrency, "нет справочного курса для %s", target)
	}

	spread := e.rates.FXSpread
	if target == valueobject.USD {
		spread = decimal.Zero
	}

	local := amountUSD.Mul(rate).Mul(decimal.NewFromInt(1).Add(spread))

	return FXQuote{
		AmountUSD:   amountUSD,
		LocalAmount: valueobject.Money{Amount: target.Round(local), Currency: target},
		Rate:        rate,
		SpreadPct:   spread.Mul(hundred),
	}, nil
}
