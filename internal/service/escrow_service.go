package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/tradehub-backend/internal/domain/valueobject"
	"github.com/ignatzorin/tradehub-backend/internal/engine/escrow"
	"github.com/ignatzorin/tradehub-backend/internal/models"
	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tradehub-backend/internal/repository"
)

// maxEventsPerAppend ограничивает размер одной пачки событий.
const maxEventsPerAppend = 50

// OrderReader читает заказы и сериализует изменения их журнала.
// Хранилища, вызванные из fn с переданным ctx, работают под той же блокировкой.
type OrderReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	WithOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error
}

type OrderEventStore interface {
	Append(ctx context.Context, orderID uuid.UUID, events []escrow.Event) error
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]escrow.Event, error)
}

type EscrowStore interface {
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowRecord, error)
	Upsert(ctx context.Context, rec escrow.Record) error
}

// EscrowStatusChange: уведомление о смене состояния escrow.
type EscrowStatusChange struct {
	OrderID         uuid.UUID     `json:"order_id"`
	BuyerID         uuid.UUID     `json:"-"`
	SellerID        uuid.UUID     `json:"-"`
	From            escrow.Status `json:"from"`
	To              escrow.Status `json:"to"`
	UnlockedPercent int           `json:"unlocked_percent"`
	At              time.Time     `json:"at"`
}

// EscrowNotifier доставляет уведомления участникам сделки.
type EscrowNotifier interface {
	EscrowStatusChanged(ctx context.Context, change EscrowStatusChange)
}

// TrustInvalidator сбрасывает закэшированные оценки доверия.
type TrustInvalidator interface {
	Invalidate(ctx context.Context, companyIDs ...uuid.UUID) error
}

// EscrowView: состояние escrow заказа вместе с журналом аудита.
type EscrowView struct {
	OrderID          uuid.UUID             `json:"order_id"`
	Status           escrow.Status         `json:"status"`
	PreDisputeStatus escrow.Status         `json:"pre_dispute_status,omitempty"`
	UnlockedPercent  int                   `json:"unlocked_percent"`
	Currency         valueobject.Currency  `json:"currency"`
	Gross            decimal.Decimal       `json:"gross_amount"`
	Held             decimal.Decimal       `json:"held_amount"`
	Released         decimal.Decimal       `json:"released_amount"`
	Archived         bool                  `json:"archived"`
	Events           []escrow.Event        `json:"events"`
	Transitions      []escrow.Transition   `json:"transitions"`
	Ignored          []escrow.IgnoredEvent `json:"ignored"`
}

// EscrowService ведёт журнал событий заказа и поддерживает денежное состояние escrow.
type EscrowService struct {
	orders      OrderReader
	events      OrderEventStore
	records     EscrowStore
	machine     *escrow.Machine
	notifier    EscrowNotifier
	invalidator TrustInvalidator
	log         logrus.FieldLogger
	now         func() time.Time
}

func NewEscrowService(orders OrderReader, events OrderEventStore, records EscrowStore, machine *escrow.Machine, log logrus.FieldLogger) *EscrowService {
	return &EscrowService{
		orders:  orders,
		events:  events,
		records: records,
		machine: machine,
		log:     log,
		now:     time.Now,
	}
}

// SetNotifier подключает доставку уведомлений о смене состояния.
func (s *EscrowService) SetNotifier(n EscrowNotifier) {
	s.notifier = n
}

// SetTrustInvalidator подключает сброс оценок доверия при открытии спора.
func (s *EscrowService) SetTrustInvalidator(inv TrustInvalidator) {
	s.invalidator = inv
}

// GetEscrow выводит состояние escrow из журнала. Доступно участникам заказа и администраторам.
func (s *EscrowService) GetEscrow(ctx context.Context, who Principal, orderID uuid.UUID) (*EscrowView, error) {
	order, err := s.authorizedOrder(ctx, who, orderID)
	if err != nil {
		return nil, err
	}

	events, err := s.events.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	d, err := s.machine.Derive(events)
	if err != nil {
		return nil, err
	}

	rec, err := s.loadRecord(ctx, order)
	if err != nil {
		return nil, err
	}
	if err := rec.Settle(d); err != nil {
		return nil, err
	}

	return buildView(rec, events, d), nil
}

// AppendEvents дописывает события в журнал, пересчитывает escrow и уведомляет участников о смене состояния.
// Чтение журнала, дозапись и сохранение записи идут под блокировкой заказа одной транзакцией.
// Пачка, нарушающая хронологию журнала, отклоняется целиком и не сохраняется.
func (s *EscrowService) AppendEvents(ctx context.Context, who Principal, orderID uuid.UUID, incoming []escrow.Event) (*EscrowView, error) {
	if len(incoming) == 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "нужно хотя бы одно событие")
	}
	if len(incoming) > maxEventsPerAppend {
		return nil, apperror.Newf(apperror.ErrCodeValidation, "не более %d событий за запрос", maxEventsPerAppend)
	}

	order, err := s.authorizedOrder(ctx, who, orderID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for i := range incoming {
		if incoming[i].Type == "" {
			return nil, apperror.Newf(apperror.ErrCodeValidation, "событие #%d: не указан тип", i)
		}
		if m := incoming[i].Milestones; m != nil && (!validMilestoneCount(m.Completed) || !validMilestoneCount(m.Required)) {
			return nil, apperror.Newf(apperror.ErrCodeValidation, "событие #%d: счётчики этапов вне диапазона 0..%d", i, math.MaxInt32)
		}
		if incoming[i].Timestamp.IsZero() {
			incoming[i].Timestamp = now
		}
		if incoming[i].Actor == "" {
			incoming[i].Actor = who.Subject.String()
		}
	}

	var (
		all  []escrow.Event
		d    escrow.Derivation
		rec  *escrow.Record
		prev escrow.Status
	)
	err = s.orders.WithOrderLock(ctx, orderID, func(ctx context.Context) error {
		existing, err := s.events.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		all = append(append(make([]escrow.Event, 0, len(existing)+len(incoming)), existing...), incoming...)

		if d, err = s.machine.Derive(all); err != nil {
			return err
		}
		if err := s.events.Append(ctx, orderID, incoming); err != nil {
			return err
		}

		if rec, err = s.loadRecord(ctx, order); err != nil {
			return err
		}
		prev = rec.Status
		wasArchived := rec.Archived
		if err := rec.Settle(d); err != nil {
			return err
		}
		if wasArchived {
			return nil
		}
		return s.records.Upsert(ctx, *rec)
	})
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"order_id": orderID, "appended": len(incoming), "status": d.Status})
	if skipped := len(d.Ignored); skipped > 0 {
		log = log.WithField("ignored_total", skipped)
	}
	log.Info("escrow: журнал событий дополнен")

	if prev != d.Status {
		s.notifyChange(ctx, order, prev, rec)
	}
	if s.invalidator != nil && containsType(incoming, escrow.EventDisputeOpened) {
		if err := s.invalidator.Invalidate(ctx, order.BuyerID, order.SellerID); err != nil {
			s.log.WithError(err).WithField("order_id", orderID).Warn("escrow: не удалось сбросить оценки доверия")
		}
	}

	return buildView(rec, all, d), nil
}

func (s *EscrowService) authorizedOrder(ctx context.Context, who Principal, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !who.IsAdmin() && !order.IsParty(who.Subject) {
		return nil, apperror.ErrForbidden
	}
	return order, nil
}

// loadRecord читает сохранённую запись или создаёт новую по сумме заказа.
func (s *EscrowService) loadRecord(ctx context.Context, order *models.Order) (*escrow.Record, error) {
	stored, err := s.records.GetByOrderID(ctx, order.ID)
	if err == nil {
		rec := stored.ToRecord()
		return &rec, nil
	}
	if !errors.Is(err, repository.ErrEscrowNotFound) {
		return nil, err
	}

	currency, err := valueobject.ParseCurrency(order.Currency)
	if err != nil {
		return nil, fmt.Errorf("escrow service: заказ %s: %w", order.ID, err)
	}
	return escrow.NewRecord(order.ID, valueobject.Money{Amount: order.GrossAmount, Currency: currency})
}

func (s *EscrowService) notifyChange(ctx context.Context, order *models.Order, from escrow.Status, rec *escrow.Record) {
	if s.notifier == nil {
		return
	}
	s.notifier.EscrowStatusChanged(ctx, EscrowStatusChange{
		OrderID:         order.ID,
		BuyerID:         order.BuyerID,
		SellerID:        order.SellerID,
		From:            from,
		To:              rec.Status,
		UnlockedPercent: escrow.UnlockedPercent(*rec),
		At:              s.now().UTC(),
	})
}

func buildView(rec *escrow.Record, events []escrow.Event, d escrow.Derivation) *EscrowView {
	return &EscrowView{
		OrderID:          rec.TradeID,
		Status:           d.Status,
		PreDisputeStatus: d.PreDisputeStatus,
		UnlockedPercent:  escrow.UnlockedPercent(*rec),
		Currency:         rec.Currency,
		Gross:            rec.Gross,
		Held:             rec.Held,
		Released:         rec.Released,
		Archived:         rec.Archived,
		Events:           events,
		Transitions:      d.Transitions,
		Ignored:          d.Ignored,
	}
}

// validMilestoneCount: счётчик этапов хранится в INTEGER.
func validMilestoneCount(n int) bool {
	return n >= 0 && n <= math.MaxInt32
}

func containsType(events []escrow.Event, t escrow.EventType) bool {
	for _, ev := range events {
		if ev.Type == t {
			return true
		}
	}
	return false
}
