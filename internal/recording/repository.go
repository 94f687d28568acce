package recording

import (
	"context"
	"time"
)

// Repository определяет интерфейс для работы с хранилищем записей (Domain Layer)
type Repository interface {
	// Управление записями
	CreateRecording(ctx context.Context, rec *Recording) error
	GetRecording(ctx context.Context, id int64) (*Recording, error)
	GetRecordingBySession(ctx context.Context, sessionID string) (*Recording, error)
	ListRecordings(ctx context.Context, limit, offset int) ([]*Recording, error)
	ListActiveRecordings(ctx context.Context) ([]*Recording, error)

	// Переходы статусов. Все обновления выполняются с optimistic-guard по
	// текущему статусу: возвращают false, если запись уже не в исходном
	// статусе (конкурирующий переход выигран другим участником).
	CompleteRecording(ctx context.Context, id int64, endTime time.Time, durationSeconds int64) (bool, error)
	MarkRecording(ctx context.Context, id int64, to Status, endTime time.Time) (bool, error)

	// Пояснение к принудительному завершению. Пишется best-effort:
	// ошибка записи не должна отменять само завершение.
	SetCompletionNote(ctx context.Context, id int64, note string) error

	// Батчи
	UpsertBatch(ctx context.Context, recordingID int64, p *BatchPayload, minValue, maxValue float64) (batchID int64, inserted bool, err error)
	BatchesInRange(ctx context.Context, recordingID int64, start, end time.Time) ([]*Batch, error)
	CountBatches(ctx context.Context, recordingID int64) (int64, error)
	LastBatch(ctx context.Context, recordingID int64) (*LastBatchInfo, error)
}

// CacheStore определяет интерфейс для кэша активных записей (Redis)
type CacheStore interface {
	SetRecording(ctx context.Context, rec *Recording) error
	GetRecording(ctx context.Context, id int64) (*Recording, error)
	GetRecordingBySession(ctx context.Context, sessionID string) (*Recording, error)
	DeleteRecording(ctx context.Context, rec *Recording) error

	// Отметка последней активности записи (прием батча).
	// Читается фоновой проверкой как дешевый индикатор штиля.
	TouchActivity(ctx context.Context, id int64, at time.Time) error
	LastActivity(ctx context.Context, id int64) (time.Time, error)
}
