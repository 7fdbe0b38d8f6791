package escrow

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ignatzorin/tradehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
)

// Record: деньги одной сделки. Held + Released никогда не превышает Gross, Released только растёт.
type Record struct {
	TradeID          uuid.UUID            `json:"trade_id"`
	Currency         valueobject.Currency `json:"currency"`
	Gross            decimal.Decimal      `json:"gross_amount"`
	Held             decimal.Decimal      `json:"held_amount"`
	Released         decimal.Decimal      `json:"released_amount"`
	Status           Status               `json:"status"`
	PreDisputeStatus Status               `json:"pre_dispute_status,omitempty"`
	Archived         bool                 `json:"archived"`
}

// NewRecord создаёт запись при входе сделки в оплату.
func NewRecord(tradeID uuid.UUID, gross valueobject.Money) (*Record, error) {
	if gross.Amount.IsNegative() {
		return nil, apperror.New(apperror.ErrCodeInvalidAmount, "сумма сделки не может быть отрицательной")
	}
	return &Record{
		TradeID:  tradeID,
		Currency: gross.Currency,
		Gross:    gross.Amount,
		Held:     decimal.Zero,
		Released: decimal.Zero,
		Status:   StatusNone,
	}, nil
}

func (r *Record) checkMutable(amount decimal.Decimal) error {
	if r.Archived {
		return apperror.New(apperror.ErrCodeConflict, "escrow уже закрыт")
	}
	if !amount.IsPositive() {
		return apperror.New(apperror.ErrCodeInvalidAmount, "сумма движения должна быть положительной")
	}
	return nil
}

// Fund удерживает средства покупателя.
func (r *Record) Fund(amount decimal.Decimal) error {
	if err := r.checkMutable(amount); err != nil {
		return err
	}
	if r.Held.Add(r.Released).Add(amount).GreaterThan(r.Gross) {
		return apperror.Newf(apperror.ErrCodeInvalidAmount, "удержание %s превышает сумму сделки %s", amount, r.Gross)
	}
	r.Held = r.Held.Add(amount)
	return nil
}

// Release перечисляет часть удержанных средств продавцу.
func (r *Record) Release(amount decimal.Decimal) error {
	if err := r.checkMutable(amount); err != nil {
		return err
	}
	if amount.GreaterThan(r.Held) {
		return apperror.Newf(apperror.ErrCodeInvalidAmount, "к выплате %s, удержано только %s", amount, r.Held)
	}
	r.Held = r.Held.Sub(amount)
	r.Released = r.Released.Add(amount)
	return nil
}

// Refund возвращает часть удержанных средств покупателю.
func (r *Record) Refund(amount decimal.Decimal) error {
	if err := r.checkMutable(amount); err != nil {
		return err
	}
	if amount.GreaterThan(r.Held) {
		return apperror.Newf(apperror.ErrCodeInvalidAmount, "к возврату %s, удержано только %s", amount, r.Held)
	}
	r.Held = r.Held.Sub(amount)
	return nil
}

// Apply переносит выведенное состояние в запись и архивирует её, когда сделка закрыта и средств не осталось.
func (r *Record) Apply(d Derivation) {
	r.Status = d.Status
	r.PreDisputeStatus = d.PreDisputeStatus
	if d.Status.IsTerminal() && r.Held.IsZero() {
		r.Archived = true
	}
}

// Settle проводит движения денег по переходам деривации и применяет итоговое состояние.
// Движения считаются от текущих сумм, поэтому повторный вызов с той же деривацией ничего не меняет.
// Пачка, проходящая сразу через funded к released, сначала удерживает средства, затем выплачивает их.
func (r *Record) Settle(d Derivation) error {
	if r.Archived {
		return nil
	}

	for _, t := range d.Transitions {
		var err error
		switch t.To {
		case StatusFunded:
			err = r.fundUntouched()
		case StatusReleased:
			if err = r.fundUntouched(); err == nil && r.Held.IsPositive() {
				err = r.Release(r.Held)
			}
		case StatusRefunded, StatusCancelled:
			if r.Held.IsPositive() {
				err = r.Refund(r.Held)
			}
		}
		if err != nil {
			return err
		}
	}

	r.Apply(d)
	return nil
}

// fundUntouched удерживает всю сумму сделки, если по записи ещё не было движений.
func (r *Record) fundUntouched() error {
	if r.Held.IsZero() && r.Released.IsZero() && r.Gross.IsPositive() {
		return r.Fund(r.Gross)
	}
	return nil
}

// percentByStatus: фиксированная шкала для индикатора прогресса.
var percentByStatus = map[Status]int{
	StatusNone:      0,
	StatusLocked:    0,
	StatusFunded:    50,
	StatusVerified:  75,
	StatusReleased:  100,
	StatusRefunded:  0,
	StatusCancelled: 0,
}

// UnlockedPercent возвращает долю разблокированной стоимости для отображения.
// В споре процент замораживается на значении до спора. На движение денег не влияет.
func UnlockedPercent(r Record) int {
	if r.Status == StatusDisputed {
		return percentByStatus[r.PreDisputeStatus]
	}
	return percentByStatus[r.Status]
}
