package escrow

import (
	"time"

	"github.com/ignatzorin/tradehub-backend/internal/pkg/apperror"
)

// DefaultClockSkew: допустимый откат времени между соседними событиями (ретраи вебхуков, рассинхрон часов).
const DefaultClockSkew = 5 * time.Second

// Transition: применённый переход.
type Transition struct {
	From  Status `json:"from"`
	To    Status `json:"to"`
	Event Event  `json:"event"`
}

// IgnoredEvent: событие, не давшее перехода, с причиной. Это журнал аудита для повторных и запоздалых событий.
type IgnoredEvent struct {
	Index  int    `json:"index"`
	Event  Event  `json:"event"`
	State  Status `json:"state"`
	Reason string `json:"reason"`
}

// Derivation: результат воспроизведения журнала.
type Derivation struct {
	Status           Status         `json:"status"`
	PreDisputeStatus Status         `json:"pre_dispute_status,omitempty"`
	Transitions      []Transition   `json:"transitions"`
	Ignored          []IgnoredEvent `json:"ignored"`
}

// Machine воспроизводит журнал событий. Значение без полей пригодно к использованию (skew = 0).
type Machine struct {
	ClockSkew time.Duration
}

// NewMachine создаёт машину состояний с допуском рассинхрона часов.
func NewMachine(clockSkew time.Duration) *Machine {
	if clockSkew < 0 {
		clockSkew = 0
	}
	return &Machine{ClockSkew: clockSkew}
}

// Derive проходит события по порядку и возвращает итоговое состояние вместе с журналом аудита.
// События, для которых нет перехода из текущего состояния, пропускаются, а не отклоняются.
func (m *Machine) Derive(events []Event) (Derivation, error) {
	d := Derivation{
		Status:      StatusNone,
		Transitions: make([]Transition, 0, len(events)),
		Ignored:     make([]IgnoredEvent, 0),
	}

	var latest time.Time
	for i, ev := range events {
		if i > 0 && ev.Timestamp.Before(latest.Add(-m.ClockSkew)) {
			return Derivation{}, apperror.Newf(apperror.ErrCodeOutOfOrderEvents,
				"событие #%d (%s, %s) раньше предыдущего (%s) больше чем на %s",
				i, ev.Type, ev.Timestamp.Format(time.RFC3339Nano), latest.Format(time.RFC3339Nano), m.ClockSkew)
		}
		if ev.Timestamp.After(latest) {
			latest = ev.Timestamp
		}

		to, reason := next(d.Status, ev)
		if reason != "" {
			d.Ignored = append(d.Ignored, IgnoredEvent{Index: i, Event: ev, State: d.Status, Reason: reason})
			continue
		}

		if to == StatusDisputed {
			d.PreDisputeStatus = d.Status
		}
		d.Transitions = append(d.Transitions, Transition{From: d.Status, To: to, Event: ev})
		d.Status = to
	}

	return d, nil
}

// DeriveState возвращает только итоговое состояние при стандартном допуске рассинхрона.
func DeriveState(events []Event) (Status, error) {
	d, err := NewMachine(DefaultClockSkew).Derive(events)
	if err != nil {
		return "", err
	}
	return d.Status, nil
}
