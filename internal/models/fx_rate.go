package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FXRate: справочный курс: Rate единиц Quote за 1 Base.
type FXRate struct {
	Base      string          `db:"base"`
	Quote     string          `db:"quote"`
	Rate      decimal.Decimal `db:"rate"`
	FetchedAt time.Time       `db:"fetched_at"`
}
