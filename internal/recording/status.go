package recording

import (
	"time"
)

// transitions описывает допустимые переходы статусов.
// Терминальные статусы переходов не имеют.
var transitions = map[Status][]Status{
	StatusPending:   {StatusRecording, StatusFailed, StatusCancelled},
	StatusRecording: {StatusCompleted, StatusFailed, StatusCancelled},
}

// CanTransition проверяет допустимость перехода from -> to
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal сообщает, является ли статус терминальным
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanIngest сообщает, допустим ли прием батчей в данном статусе
func (r *Recording) CanIngest() bool {
	return r.Status == StatusRecording
}

// Transition переводит запись в новый статус с проверкой допустимости
func (r *Recording) Transition(to Status) error {
	if !CanTransition(r.Status, to) {
		return &InvalidStateError{Operation: "transition to " + string(to), Status: r.Status}
	}
	r.Status = to
	return nil
}

// Complete завершает запись и фиксирует длительность.
// Допустимо только из статуса recording. Если endTime оказался раньше
// старта (рассинхронизация часов устройства), длительность не может быть
// отрицательной: конец сдвигается на start_time + 1 секунда.
func (r *Recording) Complete(endTime time.Time) error {
	if r.Status != StatusRecording {
		return &InvalidStateError{Operation: "complete", Status: r.Status}
	}

	if endTime.Before(r.StartTime) {
		endTime = r.StartTime.Add(time.Second)
	}

	r.Status = StatusCompleted
	r.EndTime = &endTime
	r.DurationSeconds = int64(endTime.Sub(r.StartTime).Seconds())
	return nil
}

// Fail переводит запись в статус failed
func (r *Recording) Fail() error {
	return r.Transition(StatusFailed)
}

// Cancel переводит запись в статус cancelled
func (r *Recording) Cancel() error {
	return r.Transition(StatusCancelled)
}
