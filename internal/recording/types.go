package recording

import (
	"time"
)

// Status представляет статус записи
type Status string

const (
	StatusPending   Status = "pending"
	StatusRecording Status = "recording"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Recording представляет одну непрерывную сессию снятия ЭКГ
type Recording struct {
	ID              int64      `json:"id"`
	SessionID       string     `json:"session_id"`
	Status          Status     `json:"status"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
	SampleRate      float64    `json:"sample_rate"`
	TotalSamples    int64      `json:"total_samples"`

	// Внешние ссылки (идентификация вне зоны ответственности сервиса)
	PatientID  string `json:"patient_id,omitempty"`
	HospitalID string `json:"hospital_id,omitempty"`
	DeviceID   string `json:"device_id,omitempty"`

	// Политика длительности из внешнего QR/session объекта (может отсутствовать)
	MaxDurationSeconds *int64 `json:"max_duration_seconds,omitempty"`

	// Размер батча устройства. Используется маркерами для глобального
	// индекса сэмпла, поэтому хранится явно на записи, а не как константа.
	SamplesPerBatch int `json:"samples_per_batch"`

	// Причина принудительного завершения (заполняется фоновой проверкой)
	CompletionNote string `json:"completion_note,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Batch представляет один батч сэмплов с устройства
type Batch struct {
	ID             int64     `json:"id"`
	RecordingID    int64     `json:"recording_id"`
	BatchSequence  int64     `json:"batch_sequence"`
	StartTimestamp time.Time `json:"start_timestamp"`
	EndTimestamp   time.Time `json:"end_timestamp"`
	SampleRate     float64   `json:"sample_rate"`
	SampleCount    int       `json:"sample_count"`
	Samples        []float64 `json:"samples"`
	MinValue       float64   `json:"min_value"`
	MaxValue       float64   `json:"max_value"`
	CreatedAt      time.Time `json:"created_at"`
}

// BatchPayload представляет батч в том виде, в котором его присылает устройство
type BatchPayload struct {
	BatchSequence  int64     `json:"batch_sequence"`
	StartTimestamp time.Time `json:"start_timestamp"`
	EndTimestamp   time.Time `json:"end_timestamp"`
	SampleRate     float64   `json:"sample_rate,omitempty"`
	Samples        []float64 `json:"samples"`
}

// IngestResult представляет результат приема одного батча
type IngestResult struct {
	BatchID       int64 `json:"batch_id"`
	BatchSequence int64 `json:"batch_sequence"`
	SamplesCount  int   `json:"samples_count"`
	IsDuplicate   bool  `json:"is_duplicate"`
}

// BatchOutcome представляет исход обработки одного батча из массива
type BatchOutcome struct {
	BatchSequence int64  `json:"batch_sequence"`
	SamplesCount  int    `json:"samples_count,omitempty"`
	Error         string `json:"error,omitempty"`
}

// BulkResult представляет сводный результат приема массива батчей
type BulkResult struct {
	Processed  []BatchOutcome `json:"processed_batches"`
	Duplicates []BatchOutcome `json:"duplicate_batches"`
	Failed     []BatchOutcome `json:"failed_batches"`
}

// ProcessedCount возвращает число успешно сохраненных батчей
func (r *BulkResult) ProcessedCount() int { return len(r.Processed) }

// DuplicateCount возвращает число повторно присланных батчей
func (r *BulkResult) DuplicateCount() int { return len(r.Duplicates) }

// FailedCount возвращает число батчей с ошибками
func (r *BulkResult) FailedCount() int { return len(r.Failed) }

// ProcessedSamples возвращает суммарное число сэмплов в новых батчах
func (r *BulkResult) ProcessedSamples() int64 {
	var total int64
	for _, o := range r.Processed {
		total += int64(o.SamplesCount)
	}
	return total
}

// LastBatchInfo содержит сведения о последнем принятом батче записи
type LastBatchInfo struct {
	BatchSequence int64
	EndTimestamp  time.Time
	PersistedAt   time.Time
}

// StartRequest представляет запрос на старт записи с мобильного устройства
type StartRequest struct {
	SessionID          string  `json:"session_id"`
	PatientID          string  `json:"patient_id,omitempty"`
	HospitalID         string  `json:"hospital_id,omitempty"`
	DeviceID           string  `json:"device_id,omitempty"`
	SampleRate         float64 `json:"sample_rate,omitempty"`
	MaxDurationSeconds *int64  `json:"max_duration_seconds,omitempty"`
	SamplesPerBatch    int     `json:"samples_per_batch,omitempty"`
}

// StopRequest представляет запрос на остановку записи
type StopRequest struct {
	RecordingID int64          `json:"recording_id,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	Batches     []BatchPayload `json:"batches,omitempty"`
}

// RecoverRequest представляет запрос на дозагрузку потерянных батчей
type RecoverRequest struct {
	Batches []BatchPayload `json:"batches"`
}
