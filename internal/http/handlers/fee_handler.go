package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/tradehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tradehub-backend/internal/engine/fee"
	"github.com/ignatzorin/tradehub-backend/internal/http/handlers/common"
	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
)

// FeeCalculator описывает то, что хэндлеру нужно от FeeService.
type FeeCalculator interface {
	PreviewFees(gross valueobject.Money) (fee.Breakdown, error)
	EstimateFX(ctx context.Context, amountUSD decimal.Decimal, target valueobject.Currency) (fee.FXQuote, error)
	Rates() fee.Rates
}

type FeeHandler struct {
	fees FeeCalculator
}

func NewFeeHandler(fees FeeCalculator) *FeeHandler {
	return &FeeHandler{fees: fees}
}

type feePreviewRequest struct {
	Amount         string `json:"amount" binding:"required"`
	Currency       string `json:"currency"`
	TargetCurrency string `json:"target_currency"`
}

type feePreviewResponse struct {
	Breakdown fee.Breakdown `json:"breakdown"`
	FX        *fee.FXQuote  `json:"fx,omitempty"`
}

// Preview POST /api/fees/preview
// С target_currency к разбивке добавляется оценка суммы в валюте покупателя, исходная сумма тогда должна быть в USD.
func (h *FeeHandler) Preview(c *gin.Context) {
	var req feePreviewRequest
	if err := common.BindJSON(c, &req); err != nil {
		common.Fail(c, err)
		return
	}

	currency, err := valueobject.ParseCurrency(req.Currency)
	if err != nil {
		common.Fail(c, err)
		return
	}
	gross, err := valueobject.NewMoneyFromString(req.Amount, currency)
	if err != nil {
		common.Fail(c, err)
		return
	}

	breakdown, err := h.fees.PreviewFees(gross)
	if err != nil {
		common.Fail(c, err)
		return
	}
	resp := feePreviewResponse{Breakdown: breakdown}

	if req.TargetCurrency != "" {
		if currency != valueobject.USD {
			common.Fail(c, apperror.New(apperror.ErrCodeValidation, "оценка конвертации доступна только для сумм в USD"))
			return
		}
		target, err := valueobject.ParseCurrency(req.TargetCurrency)
		if err != nil {
			common.Fail(c, err)
			return
		}
		quote, err := h.fees.EstimateFX(c.Request.Context(), gross.Amount, target)
		if err != nil {
			common.Fail(c, err)
			return
		}
		resp.FX = &quote
	}

	c.JSON(http.StatusOK, resp)
}

// EstimateFX GET /api/fx/estimate?amount=&currency=
func (h *FeeHandler) EstimateFX(c *gin.Context) {
	raw := c.Query("amount")
	if raw == "" {
		common.Fail(c, apperror.New(apperror.ErrCodeValidation, "параметр amount обязателен"))
		return
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		common.Fail(c, apperror.Wrap(err, apperror.ErrCodeInvalidAmount, "сумма должна быть десятичным числом"))
		return
	}
	target, err := valueobject.ParseCurrency(c.Query("currency"))
	if err != nil {
		common.Fail(c, err)
		return
	}

	quote, err := h.fees.EstimateFX(c.Request.Context(), amount, target)
	if err != nil {
		common.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// Rates GET /api/fees/rates
func (h *FeeHandler) Rates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"rates":      h.fees.Rates(),
		"currencies": valueobject.SupportedCurrencies(),
	})
}
