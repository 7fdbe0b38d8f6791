package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/tradehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tradehub-backend/internal/engine/escrow"
)

// EscrowRecord: строка escrow_records. BuyerID и SellerID подтягиваются из orders.
type EscrowRecord struct {
	OrderID          uuid.UUID       `db:"order_id"`
	BuyerID          uuid.UUID       `db:"buyer_id"`
	SellerID         uuid.UUID       `db:"seller_id"`
	Currency         string          `db:"currency"`
	GrossAmount      decimal.Decimal `db:"gross_amount"`
	HeldAmount       decimal.Decimal `db:"held_amount"`
	ReleasedAmount   decimal.Decimal `db:"released_amount"`
	Status           string          `db:"status"`
	PreDisputeStatus string          `db:"pre_dispute_status"`
	Archived         bool            `db:"archived"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

// ToRecord собирает доменную запись escrow.
func (r EscrowRecord) ToRecord() escrow.Record {
	return escrow.Record{
		TradeID:          r.OrderID,
		Currency:         valueobject.Currency(r.Currency),
		Gross:            r.GrossAmount,
		Held:             r.HeldAmount,
		Released:         r.ReleasedAmount,
		Status:           escrow.Status(r.Status),
		PreDisputeStatus: escrow.Status(r.PreDisputeStatus),
		Archived:         r.Archived,
	}
}

// EscrowRecordFromRecord готовит доменную запись к сохранению.
func EscrowRecordFromRecord(rec escrow.Record) EscrowRecord {
	return EscrowRecord{
		OrderID:          rec.TradeID,
		Currency:         string(rec.Currency),
		GrossAmount:      rec.Gross,
		HeldAmount:       rec.Held,
		ReleasedAmount:   rec.Released,
		Status:           string(rec.Status),
		PreDisputeStatus: string(rec.PreDisputeStatus),
		Archived:         rec.Archived,
	}
}
