package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ignatzorin/tradehub-backend/internal/engine/trust"
	"github.com/ignatzorin/tradehub-backend/internal/http/handlers/common"
	"github.com/ignatzorin/tradehub-backend/internal/service"
)

type TrustScorer interface {
	ScoreCompany(ctx context.Context, companyID uuid.UUID, refresh bool) (*service.TrustResult, error)
	ScoreBatch(ctx context.Context, ids []uuid.UUID, refresh bool) ([]service.BatchItem, error)
	ScoreProfile(profile trust.Profile) (trust.Assessment, error)
}

// TrustHandler обслуживает административные ручки оценки контрагентов.
type TrustHandler struct {
	trust TrustScorer
}

func NewTrustHandler(trust TrustScorer) *TrustHandler {
	return &TrustHandler{trust: trust}
}

// GetCompany GET /api/admin/companies/:id/trust?refresh=true
func (h *TrustHandler) GetCompany(c *gin.Context) {
	companyID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}

	result, err := h.trust.ScoreCompany(c.Request.Context(), companyID, common.ParseBoolQuery(c, "refresh", false))
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type trustBatchRequest struct {
	CompanyIDs []uuid.UUID `json:"company_ids" binding:"required"`
	Refresh    bool        `json:"refresh"`
}

// Batch POST /api/admin/trust/batch
func (h *TrustHandler) Batch(c *gin.Context) {
	var req trustBatchRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	items, err := h.trust.ScoreBatch(c.Request.Context(), req.CompanyIDs, req.Refresh)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// ScoreProfile POST /api/admin/trust/score
// Оценивает переданный профиль как есть, без обращения к БД.
func (h *TrustHandler) ScoreProfile(c *gin.Context) {
	var profile trust.Profile
	if err := common.BindJSON(c, &profile); err != nil {
		common.Fail(c, err)
		return
	}

	assessment, err := h.trust.ScoreProfile(profile)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, assessment)
}
