package recording

import (
	"errors"
	"fmt"
)

// ErrRecordingNotFound возвращается, когда запись не найдена ни в одном хранилище
var ErrRecordingNotFound = errors.New("recording not found")

// ValidationError возвращается при некорректном содержимом батча
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

// InvalidStateError возвращается при операции, недопустимой в текущем статусе записи
type InvalidStateError struct {
	Operation string
	Status    Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("operation %q not allowed in status %q", e.Operation, e.Status)
}

// IsValidation сообщает, является ли ошибка ошибкой валидации
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsInvalidState сообщает, является ли ошибка ошибкой статуса
func IsInvalidState(err error) bool {
	var se *InvalidStateError
	return errors.As(err, &se)
}
