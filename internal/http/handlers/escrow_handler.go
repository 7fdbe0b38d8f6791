package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/tradehub-backend/internal/engine/escrow"
	"github.com/ignatzorin/tradehub-backend/internal/http/handlers/common"
	"github.com/ignatzorin/tradehub-backend/internal/service"
)

type EscrowManager interface {
	GetEscrow(ctx context.Context, who service.Principal, orderID uuid.UUID) (*service.EscrowView, error)
	AppendEvents(ctx context.Context, who service.Principal, orderID uuid.UUID, events []escrow.Event) (*service.EscrowView, error)
}

type EscrowHandler struct {
	escrow EscrowManager
}

func NewEscrowHandler(escrow EscrowManager) *EscrowHandler {
	return &EscrowHandler{escrow: escrow}
}

// Get GET /api/orders/:id/escrow
func (h *EscrowHandler) Get(c *gin.Context) {
	principal, orderID, ok := h.target(c)
	if !ok {
		return
	}

	view, err := h.escrow.GetEscrow(c.Request.Context(), principal, orderID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type appendEventsRequest struct {
	Events []escrow.Event `json:"events" binding:"required"`
}

// AppendEvents POST /api/orders/:id/escrow/events
func (h *EscrowHandler) AppendEvents(c *gin.Context) {
	principal, orderID, ok := h.target(c)
	if !ok {
		return
	}

	var req appendEventsRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	view, err := h.escrow.AppendEvents(c.Request.Context(), principal, orderID, req.Events)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *EscrowHandler) target(c *gin.Context) (service.Principal, uuid.UUID, bool) {
	principal, err := common.CurrentPrincipal(c)
	if err != nil {
		common.Fail(c, err)
		return service.Principal{}, uuid.Nil, false
	}
	orderID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return service.Principal{}, uuid.Nil, false
	}
	return principal, orderID, true
}
