// Package stale содержит фоновую проверку брошенных записей:
// клиент упал, потерял сеть или превысил отведенную длительность,
// так и не вызвав stop.
package stale

import (
	"time"

	"github.com/srwicak/unastelemed/internal/recording"
)

// graceStep описывает одну ступень таблицы grace-периодов
type graceStep struct {
	maxDuration time.Duration
	grace       time.Duration
}

// Ступенчатая функция от max_duration: короткие сессии получают
// щедрый grace в абсолютном выражении, для очень длинных он ограничен сверху.
var graceTable = []graceStep{
	{60 * time.Second, 60 * time.Second},
	{300 * time.Second, 60 * time.Second},
	{600 * time.Second, 120 * time.Second},
	{1800 * time.Second, 300 * time.Second},
	{3600 * time.Second, 600 * time.Second},
	{7200 * time.Second, 900 * time.Second},
	{14400 * time.Second, 1800 * time.Second},
}

const graceCeiling = 3600 * time.Second

// GracePeriod возвращает grace-период для заданной максимальной длительности
func GracePeriod(maxDuration time.Duration) time.Duration {
	for _, step := range graceTable {
		if maxDuration <= step.maxDuration {
			return step.grace
		}
	}
	return graceCeiling
}

// ExceededMaxDuration проверяет, превысила ли запись отведенную длительность
// плюс grace-период. Без политики длительности проверка пропускается:
// отсутствие лимита не означает его превышение.
func ExceededMaxDuration(rec *recording.Recording, now time.Time) bool {
	if rec.MaxDurationSeconds == nil {
		return false
	}

	maxDuration := time.Duration(*rec.MaxDurationSeconds) * time.Second
	elapsed := now.Sub(rec.StartTime)

	return elapsed > maxDuration+GracePeriod(maxDuration)
}

// InactiveSince проверяет штиль по активности: запись стартовала давно,
// а батчей либо не было вовсе, либо последний сохранен слишком давно.
func InactiveSince(rec *recording.Recording, last *recording.LastBatchInfo, threshold time.Duration, now time.Time) bool {
	if now.Sub(rec.StartTime) <= threshold {
		return false
	}

	if last == nil {
		return true
	}

	return now.Sub(last.PersistedAt) > threshold
}
