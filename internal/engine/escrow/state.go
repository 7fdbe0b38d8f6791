// Package escrow выводит состояние escrow заказа из журнала событий и считает процент разблокированных средств.
package escrow

import "time"

// Status: каноническое состояние escrow.
type Status string

const (
	StatusNone      Status = "none"
	StatusLocked    Status = "locked"
	StatusFunded    Status = "funded"
	StatusVerified  Status = "verified"
	StatusReleased  Status = "released"
	StatusRefunded  Status = "refunded"
	StatusDisputed  Status = "disputed"
	StatusCancelled Status = "cancelled"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusNone, StatusLocked, StatusFunded, StatusVerified, StatusReleased,
		StatusRefunded, StatusDisputed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal сообщает, что из состояния больше нет переходов.
func (s Status) IsTerminal() bool {
	return s == StatusReleased || s == StatusRefunded || s == StatusCancelled
}

// EventType: тип события жизненного цикла заказа.
type EventType string

const (
	EventOrderConfirmed    EventType = "order_confirmed"
	EventPaymentSecured    EventType = "payment_secured"
	EventMilestoneVerified EventType = "milestone_verified"
	EventDisputeOpened     EventType = "dispute_opened"
	EventDeliveryConfirmed EventType = "delivery_confirmed"
	EventRefundIssued      EventType = "refund_issued"
	EventDisputeResolved   EventType = "dispute_resolved"
	EventCancelled         EventType = "cancelled"

	// Информационные события: попадают в журнал, но состояние escrow не меняют.
	EventShipped   EventType = "shipped"
	EventDelivered EventType = "delivered"
)

func (t EventType) IsValid() bool {
	switch t {
	case EventOrderConfirmed, EventPaymentSecured, EventMilestoneVerified, EventDisputeOpened,
		EventDeliveryConfirmed, EventRefundIssued, EventDisputeResolved, EventCancelled,
		EventShipped, EventDelivered:
		return true
	}
	return false
}

// Outcome: решение по спору.
type Outcome string

const (
	OutcomeRelease Outcome = "release"
	OutcomeRefund  Outcome = "refund"
)

// MilestoneProgress описывает выполнение этапов на момент события milestone_verified.
type MilestoneProgress struct {
	Completed int `json:"completed"`
	Required  int `json:"required"`
}

// Complete сообщает, что выполнены все обязательные этапы.
func (p *MilestoneProgress) Complete() bool {
	return p == nil || p.Completed >= p.Required
}

// Event: запись журнала заказа. Журнал только дополняется.
type Event struct {
	Type       EventType          `json:"event_type"`
	Timestamp  time.Time          `json:"timestamp"`
	Actor      string             `json:"actor"`
	Outcome    Outcome            `json:"outcome,omitempty"`
	Milestones *MilestoneProgress `json:"milestones,omitempty"`
	// FundsHeld учитывается только для cancelled: были ли средства фактически удержаны.
	FundsHeld bool `json:"funds_held,omitempty"`
}

// Причины, по которым событие пропущено.
const (
	ReasonNoTransition         = "no_transition"
	ReasonTerminalState        = "terminal_state"
	ReasonInformational        = "informational"
	ReasonUnknownEvent         = "unknown_event"
	ReasonMilestonesIncomplete = "milestones_incomplete"
	ReasonMissingOutcome       = "missing_outcome"
)

// next применяет таблицу переходов. Пустой reason означает, что переход состоялся.
func next(current Status, ev Event) (Status, string) {
	if !ev.Type.IsValid() {
		return current, ReasonUnknownEvent
	}
	if ev.Type == EventShipped || ev.Type == EventDelivered {
		return current, ReasonInformational
	}
	if current.IsTerminal() {
		return current, ReasonTerminalState
	}

	switch ev.Type {
	case EventOrderConfirmed:
		if current == StatusNone {
			return StatusLocked, ""
		}
	case EventPaymentSecured:
		if current == StatusLocked {
			return StatusFunded, ""
		}
	case EventMilestoneVerified:
		if current == StatusFunded {
			if !ev.Milestones.Complete() {
				return current, ReasonMilestonesIncomplete
			}
			return StatusVerified, ""
		}
	case EventDisputeOpened:
		if current == StatusFunded || current == StatusVerified {
			return StatusDisputed, ""
		}
	case EventDeliveryConfirmed:
		if current == StatusVerified {
			return StatusReleased, ""
		}
	case EventRefundIssued:
		if current == StatusLocked || current == StatusFunded || current == StatusDisputed {
			return StatusRefunded, ""
		}
	case EventDisputeResolved:
		if current == StatusDisputed {
			switch ev.Outcome {
			case OutcomeRelease:
				return StatusReleased, ""
			case OutcomeRefund:
				return StatusRefunded, ""
			default:
				return current, ReasonMissingOutcome
			}
		}
	case EventCancelled:
		switch current {
		case StatusNone:
			return StatusCancelled, ""
		case StatusLocked:
			if ev.FundsHeld {
				return StatusRefunded, ""
			}
			return StatusCancelled, ""
		}
	}

	return current, ReasonNoTransition
}
