package stale

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/srwicak/unastelemed/internal/recording"
)

// Monitor периодически находит брошенные записи и принудительно их завершает
type Monitor struct {
	repository recording.Repository
	cache      recording.CacheStore

	interval  time.Duration
	threshold time.Duration

	stopChan chan struct{}
	doneChan chan struct{}
}

// SweepStats содержит итоги одного прохода
type SweepStats struct {
	Scanned   int
	Completed int
	Failed    int
}

// NewMonitor создает монитор брошенных записей
func NewMonitor(repository recording.Repository, cache recording.CacheStore, interval, threshold time.Duration) *Monitor {
	return &Monitor{
		repository: repository,
		cache:      cache,
		interval:   interval,
		threshold:  threshold,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start запускает периодический проход в фоне
func (m *Monitor) Start() {
	go m.run()
	log.Printf("[STALE] Monitor started: interval=%s threshold=%s", m.interval, m.threshold)
}

// Stop останавливает монитор и дожидается завершения текущего прохода
func (m *Monitor) Stop() {
	close(m.stopChan)
	<-m.doneChan
	log.Printf("[STALE] Monitor stopped")
}

func (m *Monitor) run() {
	defer close(m.doneChan)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.interval)
			m.Sweep(ctx)
			cancel()

		case <-m.stopChan:
			return
		}
	}
}

// Sweep выполняет один проход по активным записям.
// Ошибка завершения одной записи не прерывает проход: она логируется
// и учитывается в счетчике, остальные записи обрабатываются дальше.
func (m *Monitor) Sweep(ctx context.Context) SweepStats {
	stats := SweepStats{}

	active, err := m.repository.ListActiveRecordings(ctx)
	if err != nil {
		log.Printf("[STALE] Failed to list active recordings: %v", err)
		return stats
	}

	stats.Scanned = len(active)
	if len(active) == 0 {
		return stats
	}

	now := time.Now()

	for _, rec := range active {
		completed, err := m.reclaim(ctx, rec, now)
		if err != nil {
			stats.Failed++
			log.Printf("[STALE] Failed to complete recording %d: %v", rec.ID, err)
			continue
		}
		if completed {
			stats.Completed++
		}
	}

	if stats.Completed > 0 || stats.Failed > 0 {
		log.Printf("[STALE] Sweep finished: scanned=%d completed=%d failed=%d",
			stats.Scanned, stats.Completed, stats.Failed)
	}

	return stats
}

// reclaim проверяет одну запись и завершает ее, если она брошена
func (m *Monitor) reclaim(ctx context.Context, rec *recording.Recording, now time.Time) (bool, error) {
	exceeded := ExceededMaxDuration(rec, now)

	// Дешевая первая проверка по отметке активности в Redis:
	// свежий touch означает, что батчи приходят и поднимать
	// последний батч из базы незачем
	if !exceeded && m.recentlyActive(ctx, rec.ID, now) {
		return false, nil
	}

	last, err := m.repository.LastBatch(ctx, rec.ID)
	if err != nil {
		return false, fmt.Errorf("failed to load last batch: %w", err)
	}

	if !exceeded && !InactiveSince(rec, last, m.threshold, now) {
		return false, nil
	}

	endTime := m.resolveEndTime(rec, last)
	duration := int64(endTime.Sub(rec.StartTime).Seconds())
	if duration < 1 {
		duration = 1
	}

	// Optimistic-guard: если конкурирующий stop уже завершил запись,
	// завершение монитора становится no-op, а не ошибкой
	updated, err := m.repository.CompleteRecording(ctx, rec.ID, endTime, duration)
	if err != nil {
		return false, err
	}
	if !updated {
		log.Printf("[STALE] Recording %d already left recording state, skipping", rec.ID)
		return false, nil
	}

	m.writeNote(ctx, rec, exceeded, now)
	m.refreshCache(ctx, rec, endTime, duration)

	log.Printf("[STALE] Force-completed recording %d: duration=%ds samples=%d",
		rec.ID, duration, rec.TotalSamples)

	return true, nil
}

// recentlyActive проверяет отметку активности в кэше. Отсутствие
// отметки ничего не доказывает (TTL, рестарт Redis): решение в этом
// случае принимается по последнему батчу из базы.
func (m *Monitor) recentlyActive(ctx context.Context, id int64, now time.Time) bool {
	if m.cache == nil {
		return false
	}

	at, err := m.cache.LastActivity(ctx, id)
	if err != nil {
		return false
	}

	return now.Sub(at) <= m.threshold
}

// resolveEndTime выбирает время завершения брошенной записи:
// конец последнего батча, затем start+max_duration при наличии политики,
// иначе start+1s
func (m *Monitor) resolveEndTime(rec *recording.Recording, last *recording.LastBatchInfo) time.Time {
	if last != nil {
		return last.EndTimestamp
	}

	if rec.MaxDurationSeconds != nil {
		return rec.StartTime.Add(time.Duration(*rec.MaxDurationSeconds) * time.Second)
	}

	return rec.StartTime.Add(time.Second)
}

// writeNote сохраняет человекочитаемую причину завершения.
// Запись причины best-effort: ее ошибка не отменяет завершение.
func (m *Monitor) writeNote(ctx context.Context, rec *recording.Recording, exceeded bool, now time.Time) {
	batches, err := m.repository.CountBatches(ctx, rec.ID)
	if err != nil {
		batches = -1
	}

	var reason string
	if exceeded {
		maxDuration := time.Duration(*rec.MaxDurationSeconds) * time.Second
		reason = fmt.Sprintf("exceeded max_duration (%s) + grace_period (%s); batches=%d samples=%d",
			maxDuration, GracePeriod(maxDuration), batches, rec.TotalSamples)
	} else {
		reason = fmt.Sprintf("no activity in %s; batches=%d samples=%d",
			m.threshold, batches, rec.TotalSamples)
	}

	if err := m.repository.SetCompletionNote(ctx, rec.ID, reason); err != nil {
		log.Printf("[WARN] Failed to write completion note for recording %d: %v", rec.ID, err)
	}
}

// refreshCache обновляет кэш завершенной записи best-effort
func (m *Monitor) refreshCache(ctx context.Context, rec *recording.Recording, endTime time.Time, duration int64) {
	if m.cache == nil {
		return
	}

	rec.Status = recording.StatusCompleted
	rec.EndTime = &endTime
	rec.DurationSeconds = duration

	if err := m.cache.SetRecording(ctx, rec); err != nil {
		log.Printf("[WARN] Failed to refresh cache for recording %d: %v", rec.ID, err)
	}
}
