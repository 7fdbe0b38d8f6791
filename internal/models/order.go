package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Статусы заказа в таблице orders.
const (
	OrderStatusOpen      = "open"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
)

// Order: торговый заказ между покупателем и продавцом.
type Order struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	BuyerID     uuid.UUID       `db:"buyer_id" json:"buyer_id"`
	SellerID    uuid.UUID       `db:"seller_id" json:"seller_id"`
	Currency    string          `db:"currency" json:"currency"`
	GrossAmount decimal.Decimal `db:"gross_amount" json:"gross_amount"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	ClosedAt    *time.Time      `db:"closed_at" json:"closed_at,omitempty"`
}

// IsParty сообщает, участвует ли компания в заказе.
func (o *Order) IsParty(companyID uuid.UUID) bool {
	return o.BuyerID == companyID || o.SellerID == companyID
}
