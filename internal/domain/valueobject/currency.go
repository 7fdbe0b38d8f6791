package valueobject

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
)

// Currency: код валюты ISO 4217.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	NGN Currency = "NGN"
	GHS Currency = "GHS"
	KES Currency = "KES"
	ZAR Currency = "ZAR"
	CNY Currency = "CNY"
	JPY Currency = "JPY"
)

// minorUnits хранит число знаков после запятой для поддерживаемых валют.
var minorUnits = map[Currency]int32{
	USD: 2,
	EUR: 2,
	GBP: 2,
	NGN: 2,
	GHS: 2,
	KES: 2,
	ZAR: 2,
	CNY: 2,
	JPY: 0,
}

func (c Currency) IsSupported() bool {
	_, ok := minorUnits[c]
	return ok
}

// MinorUnits возвращает точность валюты; для неизвестных кодов 2.
func (c Currency) MinorUnits() int32 {
	if units, ok := minorUnits[c]; ok {
		return units
	}
	return 2
}

// Round округляет сумму до минимальной единицы валюты.
// decimal.Round округляет половину от нуля, что для неотрицательных сумм совпадает с half-up.
func (c Currency) Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(c.MinorUnits())
}

// ParseCurrency нормализует код и проверяет, что валюта поддерживается.
func ParseCurrency(raw string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(raw)))
	if c == "" {
		return USD, nil
	}
	if !c.IsSupported() {
		return "", apperror.Newf(apperror.ErrCodeUnsupportedCurrency, "валюта %q не поддерживается", raw)
	}
	return c, nil
}

// SupportedCurrencies возвращает список поддерживаемых кодов.
func SupportedCurrencies() []Currency {
	return []Currency{USD, EUR, GBP, NGN, GHS, KES, ZAR, CNY, JPY}
}
