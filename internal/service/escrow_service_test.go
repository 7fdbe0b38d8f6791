package service

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/tradehub-backend/internal/engine/escrow"
	"github.com/ignatzorin/tradehub-backend/internal/logger"
	"github.com/ignatzorin/tradehub-backend/internal/models"
	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
	"github.com/ignatzorin/tradehub-backend/internal/repository"
)

type mockOrderReader struct {
	mock.Mock
	locks int
}

func (m *mockOrderReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Order), args.Error(1)
}

// WithOrderLock считает блокировки и выполняет fn без транзакции.
func (m *mockOrderReader) WithOrderLock(ctx context.Context, orderID uuid.UUID, fn func(ctx context.Context) error) error {
	m.locks++
	return fn(ctx)
}

type mockEventStore struct {
	mock.Mock
}

func (m *mockEventStore) Append(ctx context.Context, orderID uuid.UUID, events []escrow.Event) error {
	return m.Called(ctx, orderID, events).Error(0)
}

func (m *mockEventStore) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]escrow.Event, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]escrow.Event), args.Error(1)
}

type mockEscrowStore struct {
	mock.Mock
}

func (m *mockEscrowStore) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*models.EscrowRecord, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.EscrowRecord), args.Error(1)
}

func (m *mockEscrowStore) Upsert(ctx context.Context, rec escrow.Record) error {
	return m.Called(ctx, rec).Error(0)
}

type recordingNotifier struct {
	changes []EscrowStatusChange
}

func (n *recordingNotifier) EscrowStatusChanged(_ context.Context, change EscrowStatusChange) {
	n.changes = append(n.changes, change)
}

type mockInvalidator struct {
	mock.Mock
}

func (m *mockInvalidator) Invalidate(ctx context.Context, ids ...uuid.UUID) error {
	return m.Called(ctx, ids).Error(0)
}

type escrowFixture struct {
	svc      *EscrowService
	orders   *mockOrderReader
	events   *mockEventStore
	records  *mockEscrowStore
	notifier *recordingNotifier
	order    *models.Order
	buyer    Principal
}

var escrowT0 = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

func newEscrowFixture(t *testing.T) *escrowFixture {
	t.Helper()
	f := &escrowFixture{
		orders:   new(mockOrderReader),
		events:   new(mockEventStore),
		records:  new(mockEscrowStore),
		notifier: &recordingNotifier{},
		order: &models.Order{
			ID:          uuid.New(),
			BuyerID:     uuid.New(),
			SellerID:    uuid.New(),
			Currency:    "USD",
			GrossAmount: decimal.NewFromInt(1000),
		},
	}
	f.buyer = Principal{Subject: f.order.BuyerID, Role: RoleCompany}
	f.svc = NewEscrowService(f.orders, f.events, f.records, escrow.NewMachine(escrow.DefaultClockSkew), logger.Discard())
	f.svc.SetNotifier(f.notifier)
	f.svc.now = func() time.Time { return escrowT0.Add(time.Hour) }
	f.orders.On("GetByID", mock.Anything, f.order.ID).Return(f.order, nil)
	return f
}

func TestEscrowService_AppendEventsTransitionNotifies(t *testing.T) {
	f := newEscrowFixture(t)
	existing := []escrow.Event{{Type: escrow.EventOrderConfirmed, Timestamp: escrowT0, Actor: "buyer"}}
	incoming := []escrow.Event{{Type: escrow.EventPaymentSecured, Timestamp: escrowT0.Add(time.Minute)}}

	f.events.On("ListByOrder", mock.Anything, f.order.ID).Return(existing, nil)
	f.events.On("Append", mock.Anything, f.order.ID, mock.Anything).Return(nil)
	f.records.On("GetByOrderID", mock.Anything, f.order.ID).Return(nil, repository.ErrEscrowNotFound)
	f.records.On("Upsert", mock.Anything, mock.MatchedBy(func(rec escrow.Record) bool {
		return rec.Status == escrow.StatusFunded && rec.Held.Equal(decimal.NewFromInt(1000))
	})).Return(nil)

	view, err := f.svc.AppendEvents(context.Background(), f.buyer, f.order.ID, incoming)
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusFunded, view.Status)
	assert.Equal(t, 50, view.UnlockedPercent)
	assert.Len(t, view.Events, 2)
	assert.Equal(t, f.buyer.Subject.String(), view.Events[1].Actor)

	require.Len(t, f.notifier.changes, 1)
	change := f.notifier.changes[0]
	assert.Equal(t, escrow.StatusNone, change.From)
	assert.Equal(t, escrow.StatusFunded, change.To)
	assert.Equal(t, f.order.SellerID, change.SellerID)

	f.events.AssertExpectations(t)
	f.records.AssertExpectations(t)
}

func TestEscrowService_AppendDuplicateDoesNotNotify(t *testing.T) {
	f := newEscrowFixture(t)
	existing := []escrow.Event{
		{Type: escrow.EventOrderConfirmed, Timestamp: escrowT0},
		{Type: escrow.EventPaymentSecured, Timestamp: escrowT0.Add(time.Minute)},
	}
	stored := &models.EscrowRecord{
		OrderID: f.order.ID, Currency: "USD", GrossAmount: decimal.NewFromInt(1000),
		HeldAmount: decimal.NewFromInt(1000), ReleasedAmount: decimal.Zero, Status: "funded",
	}

	f.events.On("ListByOrder", mock.Anything, f.order.ID).Return(existing, nil)
	f.events.On("Append", mock.Anything, f.order.ID, mock.Anything).Return(nil)
	f.records.On("GetByOrderID", mock.Anything, f.order.ID).Return(stored, nil)
	f.records.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	view, err := f.svc.AppendEvents(context.Background(), f.buyer, f.order.ID, []escrow.Event{
		{Type: escrow.EventPaymentSecured, Timestamp: escrowT0.Add(2 * time.Minute)},
	})
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusFunded, view.Status)
	require.Len(t, view.Ignored, 1)
	assert.Equal(t, escrow.ReasonNoTransition, view.Ignored[0].Reason)
	assert.Empty(t, f.notifier.changes)
}

func TestEscrowService_AppendOutOfOrderRejected(t *testing.T) {
	f := newEscrowFixture(t)
	existing := []escrow.Event{{Type: escrow.EventOrderConfirmed, Timestamp: escrowT0}}
	f.events.On("ListByOrder", mock.Anything, f.order.ID).Return(existing, nil)

	_, err := f.svc.AppendEvents(context.Background(), f.buyer, f.order.ID, []escrow.Event{
		{Type: escrow.EventPaymentSecured, Timestamp: escrowT0.Add(-time.Hour)},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrOutOfOrderEvents))
	f.events.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_DisputeInvalidatesTrust(t *testing.T) {
	f := newEscrowFixture(t)
	inv := new(mockInvalidator)
	f.svc.SetTrustInvalidator(inv)

	existing := []escrow.Event{
		{Type: escrow.EventOrderConfirmed, Timestamp: escrowT0},
		{Type: escrow.EventPaymentSecured, Timestamp: escrowT0.Add(time.Minute)},
		{Type: escrow.EventMilestoneVerified, Timestamp: escrowT0.Add(2 * time.Minute)},
	}
	f.events.On("ListByOrder", mock.Anything, f.order.ID).Return(existing, nil)
	f.events.On("Append", mock.Anything, f.order.ID, mock.Anything).Return(nil)
	f.records.On("GetByOrderID", mock.Anything, f.order.ID).Return(nil, repository.ErrEscrowNotFound)
	f.records.On("Upsert", mock.Anything, mock.Anything).Return(nil)
	inv.On("Invalidate", mock.Anything, []uuid.UUID{f.order.BuyerID, f.order.SellerID}).Return(nil).Once()

	view, err := f.svc.AppendEvents(context.Background(), f.buyer, f.order.ID, []escrow.Event{
		{Type: escrow.EventDisputeOpened, Timestamp: escrowT0.Add(3 * time.Minute)},
	})
	require.NoError(t, err)

	assert.Equal(t, escrow.StatusDisputed, view.Status)
	assert.Equal(t, escrow.StatusVerified, view.PreDisputeStatus)
	assert.Equal(t, 75, view.UnlockedPercent)
	inv.AssertExpectations(t)
}

func TestEscrowService_ForbiddenForOutsider(t *testing.T) {
	f := newEscrowFixture(t)
	outsider := Principal{Subject: uuid.New(), Role: RoleCompany}

	_, err := f.svc.GetEscrow(context.Background(), outsider, f.order.ID)
	assert.True(t, apperror.IsForbidden(err))

	_, err = f.svc.AppendEvents(context.Background(), outsider, f.order.ID, []escrow.Event{{Type: escrow.EventShipped}})
	assert.True(t, apperror.IsForbidden(err))
}

func TestEscrowService_AdminReadsAnyOrder(t *testing.T) {
	f := newEscrowFixture(t)
	f.events.On("ListByOrder", mock.Anything, f.order.ID).Return([]escrow.Event{}, nil)
	f.records.On("GetByOrderID", mock.Anything, f.order.ID).Return(nil, repository.ErrEscrowNotFound)

	view, err := f.svc.GetEscrow(context.Background(), Principal{Subject: uuid.New(), Role: RoleAdmin}, f.order.ID)
	require.NoError(t, err)
	assert.Equal(t, escrow.StatusNone, view.Status)
	assert.Equal(t, 0, view.UnlockedPercent)
	f.records.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestEscrowService_AppendValidation(t *testing.T) {
	f := newEscrowFixture(t)

	_, err := f.svc.AppendEvents(context.Background(), f.buyer, f.order.ID, nil)
	assert.True(t, apperror.IsValidation(err))

	_, err = f.svc.AppendEvents(context.Background(), f.buyer, f.order.ID, []escrow.Event{{Timestamp: escrowT0}})
	assert.True(t, apperror.IsValidation(err))

	tooMany := make([]escrow.Event, maxEventsPerAppend+1)
	_, err = f.svc.AppendEvents(context.Background(), f.buyer, f.order.ID, tooMany)
	assert.True(t, apperror.IsValidation(err))
}

func TestEscrowService_OrderNotFound(t *testing.T) {
	f := newEscrowFixture(t)
	missing := uuid.New()
	f.orders.On("GetByID", mock.Anything, missing).Return(nil, apperror.ErrOrderNotFound)

	_, err := f.svc.GetEscrow(context.Background(), f.buyer, missing)
	assert.True(t, apperror.IsNotFound(err))
}

func TestEscrowService_AppendRunsUnderOrderLock(t *testing.T) {
	f := newEscrowFixture(t)
	storeErr := errors.New("upsert failed")
	f.events.On("ListByOrder", mock.Anything, f.order.ID).Return([]escrow.Event{}, nil)
	f.events.On("Append", mock.Anything, f.order.ID, mock.Anything).Return(nil)
	f.records.On("GetByOrderID", mock.Anything, f.order.ID).Return(nil, repository.ErrEscrowNotFound)
	f.records.On("Upsert", mock.Anything, mock.Anything).Return(storeErr)

	_, err := f.svc.AppendEvents(context.Background(), f.buyer, f.order.ID, []escrow.Event{
		{Type: escrow.EventOrderConfirmed, Timestamp: escrowT0},
	})
	require.ErrorIs(t, err, storeErr)
	assert.Equal(t, 1, f.orders.locks)
	assert.Empty(t, f.notifier.changes)
}

func TestEscrowService_AppendRejectsMilestoneOverflow(t *testing.T) {
	f := newEscrowFixture(t)

	for _, m := range []*escrow.MilestoneProgress{
		{Completed: -1, Required: 3},
		{Completed: 1, Required: math.MaxInt32 + 1},
	} {
		_, err := f.svc.AppendEvents(context.Background(), f.buyer, f.order.ID, []escrow.Event{
			{Type: escrow.EventDeliveryConfirmed, Timestamp: escrowT0, Milestones: m},
		})
		assert.True(t, apperror.IsValidation(err))
	}
	assert.Zero(t, f.orders.locks)
	f.events.AssertNotCalled(t, "Append", mock.Anything, mock.Anything, mock.Anything)
}
