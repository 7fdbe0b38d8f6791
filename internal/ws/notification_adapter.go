package ws

import (
	"context"

	"github.com/google/uuid"

	"github.com/ignatzorin/tradehub-backend/internal/service"
)

// EventEscrowStatusChanged: имя события смены состояния escrow.
const EventEscrowStatusChanged = "escrow.status_changed"

// EscrowNotifier доставляет смену состояния escrow покупателю и продавцу через хаб.
type EscrowNotifier struct {
	hub *Hub
}

func NewEscrowNotifier(hub *Hub) *EscrowNotifier {
	return &EscrowNotifier{hub: hub}
}

// EscrowStatusChanged реализует service.EscrowNotifier. Ошибки доставки только логируются.
func (n *EscrowNotifier) EscrowStatusChanged(_ context.Context, change service.EscrowStatusChange) {
	for _, companyID := range []uuid.UUID{change.BuyerID, change.SellerID} {
		if err := n.hub.SendToCompany(companyID, EventEscrowStatusChanged, change); err != nil {
			n.hub.log.WithError(err).WithField("order_id", change.OrderID).Warn("ws: уведомление не доставлено")
		}
	}
}
