package recording

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ProgressSink получает уведомления о принятых батчах (live-обновления)
type ProgressSink interface {
	OnIngest(rec *Recording, res *IngestResult)
}

// Manager управляет жизненным циклом записей (Application Layer)
type Manager struct {
	cache      CacheStore
	repository Repository
	store      *BatchStore
	progress   ProgressSink

	defaultSampleRate      float64
	defaultSamplesPerBatch int

	mu               sync.RWMutex
	activeRecordings map[int64]*Recording // Кэш активных записей в памяти
}

// NewManager создает новый менеджер записей
func NewManager(cache CacheStore, repository Repository, store *BatchStore, defaultSampleRate float64, defaultSamplesPerBatch int) *Manager {
	return &Manager{
		cache:                  cache,
		repository:             repository,
		store:                  store,
		defaultSampleRate:      defaultSampleRate,
		defaultSamplesPerBatch: defaultSamplesPerBatch,
		activeRecordings:       make(map[int64]*Recording),
	}
}

// SetProgressSink подключает получателя live-уведомлений
func (m *Manager) SetProgressSink(sink ProgressSink) {
	m.progress = sink
}

// StartRecording создает новую запись в статусе recording.
// Повторный start для все еще активной сессии идемпотентен:
// возвращается существующая запись вместо создания новой.
func (m *Manager) StartRecording(ctx context.Context, req *StartRequest) (*Recording, bool, error) {
	if req.SessionID != "" {
		existing, err := m.GetRecordingBySession(ctx, req.SessionID)
		if err == nil {
			if existing.Status == StatusPending || existing.Status == StatusRecording {
				log.Printf("[RECORDING] Reusing active recording %d for session %s", existing.ID, existing.SessionID)
				return existing, true, nil
			}
			// Сессия уже завершена, для нового захвата нужен новый session_id
			req.SessionID = ""
		}
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = fmt.Sprintf("recording_%s_%d", uuid.New().String(), time.Now().Unix())
	}

	sampleRate := req.SampleRate
	if sampleRate <= 0 {
		sampleRate = m.defaultSampleRate
	}

	samplesPerBatch := req.SamplesPerBatch
	if samplesPerBatch <= 0 {
		samplesPerBatch = m.defaultSamplesPerBatch
	}

	rec := &Recording{
		SessionID:          sessionID,
		Status:             StatusRecording,
		StartTime:          time.Now(),
		SampleRate:         sampleRate,
		PatientID:          req.PatientID,
		HospitalID:         req.HospitalID,
		DeviceID:           req.DeviceID,
		MaxDurationSeconds: req.MaxDurationSeconds,
		SamplesPerBatch:    samplesPerBatch,
	}

	if err := m.repository.CreateRecording(ctx, rec); err != nil {
		return nil, false, fmt.Errorf("failed to create recording: %w", err)
	}

	if err := m.cache.SetRecording(ctx, rec); err != nil {
		log.Printf("[WARN] Failed to cache recording %d: %v", rec.ID, err)
	}

	// В карту попадает собственная копия: наружу разделяемое
	// состояние никогда не отдается
	m.mu.Lock()
	shared := *rec
	m.activeRecordings[rec.ID] = &shared
	m.mu.Unlock()

	log.Printf("[RECORDING] Started recording %d (session %s, rate=%.1fHz)", rec.ID, rec.SessionID, rec.SampleRate)
	return rec, false, nil
}

// GetRecording получает запись по ID: память -> Redis -> PostgreSQL.
// Из памяти возвращается копия: разделяемая запись изменяется
// только под мьютексом менеджера.
func (m *Manager) GetRecording(ctx context.Context, id int64) (*Recording, error) {
	m.mu.RLock()
	if rec, ok := m.activeRecordings[id]; ok {
		snapshot := *rec
		m.mu.RUnlock()
		return &snapshot, nil
	}
	m.mu.RUnlock()

	if rec, err := m.cache.GetRecording(ctx, id); err == nil {
		return rec, nil
	}

	return m.repository.GetRecording(ctx, id)
}

// GetRecordingBySession получает запись по идентификатору сессии
func (m *Manager) GetRecordingBySession(ctx context.Context, sessionID string) (*Recording, error) {
	if rec, err := m.cache.GetRecordingBySession(ctx, sessionID); err == nil {
		return rec, nil
	}

	return m.repository.GetRecordingBySession(ctx, sessionID)
}

// ListRecordings возвращает список записей
func (m *Manager) ListRecordings(ctx context.Context, limit, offset int) ([]*Recording, error) {
	return m.repository.ListRecordings(ctx, limit, offset)
}

// IngestBatch принимает один батч для записи
func (m *Manager) IngestBatch(ctx context.Context, recordingID int64, p *BatchPayload) (*Recording, *IngestResult, error) {
	rec, err := m.GetRecording(ctx, recordingID)
	if err != nil {
		return nil, nil, err
	}

	res, err := m.store.Ingest(ctx, rec, p)
	if err != nil {
		return rec, nil, err
	}

	if !res.IsDuplicate {
		m.commitSamples(rec, int64(res.SamplesCount))
	}

	m.touchActivity(ctx, rec)

	if m.progress != nil {
		m.progress.OnIngest(rec, res)
	}

	return rec, res, nil
}

// RecoverData принимает массив потерянных батчей с поштучной изоляцией ошибок
func (m *Manager) RecoverData(ctx context.Context, recordingID int64, payloads []BatchPayload) (*Recording, *BulkResult, error) {
	rec, err := m.GetRecording(ctx, recordingID)
	if err != nil {
		return nil, nil, err
	}

	result := m.store.IngestBulk(ctx, rec, payloads)
	m.commitSamples(rec, result.ProcessedSamples())
	m.touchActivity(ctx, rec)

	log.Printf("[RECORDING] Recovery for recording %d: processed=%d duplicate=%d failed=%d",
		rec.ID, result.ProcessedCount(), result.DuplicateCount(), result.FailedCount())

	return rec, result, nil
}

// StopRecording останавливает запись. Батчи, собранные клиентом после
// обрыва стрима, принимаются до перехода статуса, каждый независимо.
func (m *Manager) StopRecording(ctx context.Context, req *StopRequest) (*Recording, *BulkResult, error) {
	// resolveRecording возвращает копию: конкурирующий stop не видит
	// промежуточные мутации чужого вызова
	rec, err := m.resolveRecording(ctx, req.RecordingID, req.SessionID)
	if err != nil {
		return nil, nil, err
	}

	if rec.Status != StatusRecording {
		return rec, nil, &InvalidStateError{Operation: "stop", Status: rec.Status}
	}

	var trailing *BulkResult
	if len(req.Batches) > 0 {
		log.Printf("[RECORDING] Processing %d trailing batches sent with stop request", len(req.Batches))
		trailing = m.store.IngestBulk(ctx, rec, req.Batches)
		m.commitSamples(rec, trailing.ProcessedSamples())
	}

	endTime := time.Now()
	if err := rec.Complete(endTime); err != nil {
		return rec, trailing, err
	}

	updated, err := m.repository.CompleteRecording(ctx, rec.ID, *rec.EndTime, rec.DurationSeconds)
	if err != nil {
		return rec, trailing, fmt.Errorf("failed to complete recording: %w", err)
	}
	if !updated {
		// Фоновая проверка успела завершить запись первой
		fresh, ferr := m.repository.GetRecording(ctx, rec.ID)
		if ferr == nil {
			rec = fresh
		}
		return rec, trailing, &InvalidStateError{Operation: "stop", Status: rec.Status}
	}

	m.finishRecording(ctx, rec)

	log.Printf("[RECORDING] Stopped recording %d: duration=%ds samples=%d",
		rec.ID, rec.DurationSeconds, rec.TotalSamples)

	return rec, trailing, nil
}

// CancelRecording переводит запись в cancelled (явное действие оператора)
func (m *Manager) CancelRecording(ctx context.Context, recordingID int64) (*Recording, error) {
	return m.markRecording(ctx, recordingID, StatusCancelled)
}

// FailRecording переводит запись в failed (проблема, обнаруженная системой)
func (m *Manager) FailRecording(ctx context.Context, recordingID int64) (*Recording, error) {
	return m.markRecording(ctx, recordingID, StatusFailed)
}

func (m *Manager) markRecording(ctx context.Context, recordingID int64, to Status) (*Recording, error) {
	rec, err := m.GetRecording(ctx, recordingID)
	if err != nil {
		return nil, err
	}

	if !CanTransition(rec.Status, to) {
		return rec, &InvalidStateError{Operation: "transition to " + string(to), Status: rec.Status}
	}

	endTime := time.Now()
	updated, err := m.repository.MarkRecording(ctx, rec.ID, to, endTime)
	if err != nil {
		return rec, fmt.Errorf("failed to mark recording: %w", err)
	}
	if !updated {
		fresh, ferr := m.repository.GetRecording(ctx, rec.ID)
		if ferr == nil {
			rec = fresh
		}
		return rec, &InvalidStateError{Operation: string(to), Status: rec.Status}
	}

	// Переход публикуется только после выигранного guard в базе
	rec.Status = to
	rec.EndTime = &endTime
	m.finishRecording(ctx, rec)

	log.Printf("[RECORDING] Recording %d marked %s", rec.ID, to)
	return rec, nil
}

// BatchesInRange возвращает батчи записи, пересекающиеся с диапазоном
func (m *Manager) BatchesInRange(ctx context.Context, rec *Recording, start, end time.Time) ([]*Batch, error) {
	return m.repository.BatchesInRange(ctx, rec.ID, start, end)
}

// LogicalEnd возвращает конец записи на логической шкале: зафиксированный
// end_time для завершенных, иначе оценку по принятым сэмплам
func (m *Manager) LogicalEnd(rec *Recording) time.Time {
	if rec.EndTime != nil {
		return *rec.EndTime
	}

	if rec.SampleRate > 0 {
		seconds := float64(rec.TotalSamples) / rec.SampleRate
		return rec.StartTime.Add(time.Duration(seconds * float64(time.Second)))
	}

	return rec.StartTime
}

// ClampRange ограничивает запрошенный диапазон границами записи
func (m *Manager) ClampRange(rec *Recording, start, end time.Time) (time.Time, time.Time) {
	recStart := rec.StartTime
	recEnd := m.LogicalEnd(rec)

	if start.IsZero() || start.Before(recStart) {
		start = recStart
	}
	if end.IsZero() || end.After(recEnd) {
		end = recEnd
	}

	return start, end
}

// commitSamples применяет прирост счетчика сэмплов к разделяемой
// записи. Счетчик в памяти изменяется только здесь, под m.mu;
// авторитетное значение копируется обратно в rec для ответа клиенту.
func (m *Manager) commitSamples(rec *Recording, added int64) {
	if added == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if shared, ok := m.activeRecordings[rec.ID]; ok {
		shared.TotalSamples += added
		rec.TotalSamples = shared.TotalSamples
	}
}

// resolveRecording находит запись по recording_id или session_id.
// Возвращает собственную копию записи.
func (m *Manager) resolveRecording(ctx context.Context, recordingID int64, sessionID string) (*Recording, error) {
	if recordingID != 0 {
		return m.GetRecording(ctx, recordingID)
	}
	if sessionID != "" {
		return m.GetRecordingBySession(ctx, sessionID)
	}
	return nil, ErrRecordingNotFound
}

// finishRecording синхронизирует кэш и память после терминального перехода
func (m *Manager) finishRecording(ctx context.Context, rec *Recording) {
	// Ключ активности завершенной записи больше не нужен,
	// метаданные перезаписываются терминальным состоянием
	if err := m.cache.DeleteRecording(ctx, rec); err != nil {
		log.Printf("[WARN] Failed to drop cache keys for recording %d: %v", rec.ID, err)
	}
	if err := m.cache.SetRecording(ctx, rec); err != nil {
		log.Printf("[WARN] Failed to update recording %d in cache: %v", rec.ID, err)
	}

	m.mu.Lock()
	delete(m.activeRecordings, rec.ID)
	m.mu.Unlock()
}

func (m *Manager) touchActivity(ctx context.Context, rec *Recording) {
	if err := m.cache.TouchActivity(ctx, rec.ID, time.Now()); err != nil {
		log.Printf("[WARN] Failed to touch activity for recording %d: %v", rec.ID, err)
	}

	if err := m.cache.SetRecording(ctx, rec); err != nil {
		log.Printf("[WARN] Failed to refresh recording %d in cache: %v", rec.ID, err)
	}
}
