package recording

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresRepository реализует Repository для PostgreSQL (Infrastructure Layer)
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository создает новый экземпляр PostgresRepository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

// NewPostgresRepositoryFromDSN создает репозиторий из строки подключения
func NewPostgresRepositoryFromDSN(dsn string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Проверяем соединение
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Настройки пула соединений
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PostgresRepository{db: db}, nil
}

// Close закрывает соединение с БД
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// DB возвращает пул соединений для репозиториев соседних пакетов
func (r *PostgresRepository) DB() *sql.DB {
	return r.db
}

// ===== Управление записями =====

const recordingColumns = `
	id, session_id, status, start_time, end_time, duration_seconds,
	sample_rate, total_samples, patient_id, hospital_id, device_id,
	max_duration_seconds, samples_per_batch, completion_note,
	created_at, updated_at
`

func (r *PostgresRepository) CreateRecording(ctx context.Context, rec *Recording) error {
	query := `
		INSERT INTO recordings (
			session_id, status, start_time, end_time, duration_seconds,
			sample_rate, total_samples, patient_id, hospital_id, device_id,
			max_duration_seconds, samples_per_batch, completion_note,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		rec.SessionID,
		rec.Status,
		rec.StartTime,
		rec.EndTime,
		rec.DurationSeconds,
		rec.SampleRate,
		rec.TotalSamples,
		rec.PatientID,
		rec.HospitalID,
		rec.DeviceID,
		rec.MaxDurationSeconds,
		rec.SamplesPerBatch,
		rec.CompletionNote,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create recording: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetRecording(ctx context.Context, id int64) (*Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`
	return r.scanRecording(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetRecordingBySession(ctx context.Context, sessionID string) (*Recording, error) {
	query := `SELECT ` + recordingColumns + ` FROM recordings WHERE session_id = $1`
	return r.scanRecording(r.db.QueryRowContext(ctx, query, sessionID))
}

func (r *PostgresRepository) scanRecording(row *sql.Row) (*Recording, error) {
	var rec Recording

	err := row.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.Status,
		&rec.StartTime,
		&rec.EndTime,
		&rec.DurationSeconds,
		&rec.SampleRate,
		&rec.TotalSamples,
		&rec.PatientID,
		&rec.HospitalID,
		&rec.DeviceID,
		&rec.MaxDurationSeconds,
		&rec.SamplesPerBatch,
		&rec.CompletionNote,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrRecordingNotFound
		}
		return nil, fmt.Errorf("failed to get recording: %w", err)
	}

	return &rec, nil
}

func (r *PostgresRepository) ListRecordings(ctx context.Context, limit, offset int) ([]*Recording, error) {
	query := `
		SELECT ` + recordingColumns + `
		FROM recordings
		ORDER BY start_time DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list recordings: %w", err)
	}
	defer rows.Close()

	return r.collectRecordings(rows)
}

func (r *PostgresRepository) ListActiveRecordings(ctx context.Context) ([]*Recording, error) {
	query := `
		SELECT ` + recordingColumns + `
		FROM recordings
		WHERE status = $1
		ORDER BY start_time ASC
	`

	rows, err := r.db.QueryContext(ctx, query, StatusRecording)
	if err != nil {
		return nil, fmt.Errorf("failed to list active recordings: %w", err)
	}
	defer rows.Close()

	return r.collectRecordings(rows)
}

func (r *PostgresRepository) collectRecordings(rows *sql.Rows) ([]*Recording, error) {
	var recordings []*Recording

	for rows.Next() {
		var rec Recording

		err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.Status,
			&rec.StartTime,
			&rec.EndTime,
			&rec.DurationSeconds,
			&rec.SampleRate,
			&rec.TotalSamples,
			&rec.PatientID,
			&rec.HospitalID,
			&rec.DeviceID,
			&rec.MaxDurationSeconds,
			&rec.SamplesPerBatch,
			&rec.CompletionNote,
			&rec.CreatedAt,
			&rec.UpdatedAt,
		)

		if err != nil {
			continue // Пропускаем поврежденные записи
		}

		recordings = append(recordings, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recordings: %w", err)
	}

	return recordings, nil
}

// CompleteRecording переводит запись в completed с optimistic-guard:
// обновление проходит только если запись все еще в статусе recording.
// Возвращает false, если конкурирующий stop уже завершил запись.
func (r *PostgresRepository) CompleteRecording(ctx context.Context, id int64, endTime time.Time, durationSeconds int64) (bool, error) {
	query := `
		UPDATE recordings
		SET status = $2, end_time = $3, duration_seconds = $4, updated_at = NOW()
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.ExecContext(ctx, query, id, StatusCompleted, endTime, durationSeconds, StatusRecording)
	if err != nil {
		return false, fmt.Errorf("failed to complete recording: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MarkRecording переводит запись в терминальный статус failed/cancelled
// из нетерминального, с тем же optimistic-guard, что и CompleteRecording
func (r *PostgresRepository) MarkRecording(ctx context.Context, id int64, to Status, endTime time.Time) (bool, error) {
	query := `
		UPDATE recordings
		SET status = $2, end_time = $3, updated_at = NOW()
		WHERE id = $1 AND status IN ($4, $5)
	`

	result, err := r.db.ExecContext(ctx, query, id, to, endTime, StatusPending, StatusRecording)
	if err != nil {
		return false, fmt.Errorf("failed to mark recording %s: %w", to, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func (r *PostgresRepository) SetCompletionNote(ctx context.Context, id int64, note string) error {
	query := `UPDATE recordings SET completion_note = $2, updated_at = NOW() WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, note); err != nil {
		return fmt.Errorf("failed to set completion note: %w", err)
	}

	return nil
}

// ===== Батчи =====

// UpsertBatch атомарно вставляет или перезаписывает батч по ключу
// (recording_id, batch_sequence). Инкремент total_samples выполняется
// только на пути вставки и в той же транзакции, поэтому два конкурирующих
// приема одного sequence дают ровно один инкремент: проигравший гонку
// попадает на ветку DO UPDATE и счетчик не трогает.
func (r *PostgresRepository) UpsertBatch(ctx context.Context, recordingID int64, p *BatchPayload, minValue, maxValue float64) (int64, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO biopotential_batches (
			recording_id, batch_sequence, start_timestamp, end_timestamp,
			sample_rate, sample_count, samples, min_value, max_value,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (recording_id, batch_sequence) DO UPDATE SET
			start_timestamp = EXCLUDED.start_timestamp,
			end_timestamp = EXCLUDED.end_timestamp,
			sample_rate = EXCLUDED.sample_rate,
			sample_count = EXCLUDED.sample_count,
			samples = EXCLUDED.samples,
			min_value = EXCLUDED.min_value,
			max_value = EXCLUDED.max_value,
			updated_at = NOW()
		RETURNING id, (xmax = 0) AS inserted
	`

	var (
		batchID  int64
		inserted bool
	)

	err = tx.QueryRowContext(ctx, query,
		recordingID,
		p.BatchSequence,
		p.StartTimestamp,
		p.EndTimestamp,
		p.SampleRate,
		len(p.Samples),
		pq.Array(p.Samples),
		minValue,
		maxValue,
	).Scan(&batchID, &inserted)

	if err != nil {
		return 0, false, fmt.Errorf("failed to upsert batch: %w", err)
	}

	if inserted {
		// Атомарный инкремент на уровне БД, read-modify-write недопустим
		incrQuery := `
			UPDATE recordings
			SET total_samples = total_samples + $2, updated_at = NOW()
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, incrQuery, recordingID, len(p.Samples)); err != nil {
			return 0, false, fmt.Errorf("failed to increment total_samples: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return batchID, inserted, nil
}

// BatchesInRange возвращает батчи, пересекающиеся с диапазоном [start, end].
// Предикат пересечения включает частично перекрывающиеся батчи на краях
// диапазона, а не только полностью вложенные.
func (r *PostgresRepository) BatchesInRange(ctx context.Context, recordingID int64, start, end time.Time) ([]*Batch, error) {
	query := `
		SELECT id, recording_id, batch_sequence, start_timestamp, end_timestamp,
			sample_rate, sample_count, samples, min_value, max_value, created_at
		FROM biopotential_batches
		WHERE recording_id = $1 AND start_timestamp <= $3 AND end_timestamp >= $2
		ORDER BY batch_sequence ASC
	`

	rows, err := r.db.QueryContext(ctx, query, recordingID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query batches: %w", err)
	}
	defer rows.Close()

	var batches []*Batch

	for rows.Next() {
		var b Batch
		var samples pq.Float64Array

		err := rows.Scan(
			&b.ID,
			&b.RecordingID,
			&b.BatchSequence,
			&b.StartTimestamp,
			&b.EndTimestamp,
			&b.SampleRate,
			&b.SampleCount,
			&samples,
			&b.MinValue,
			&b.MaxValue,
			&b.CreatedAt,
		)

		if err != nil {
			continue
		}

		b.Samples = []float64(samples)
		batches = append(batches, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate batches: %w", err)
	}

	return batches, nil
}

func (r *PostgresRepository) CountBatches(ctx context.Context, recordingID int64) (int64, error) {
	query := `SELECT COUNT(*) FROM biopotential_batches WHERE recording_id = $1`

	var count int64
	if err := r.db.QueryRowContext(ctx, query, recordingID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count batches: %w", err)
	}

	return count, nil
}

// LastBatch возвращает сведения о последнем принятом батче записи.
// Если батчей нет, возвращает (nil, nil).
func (r *PostgresRepository) LastBatch(ctx context.Context, recordingID int64) (*LastBatchInfo, error) {
	query := `
		SELECT batch_sequence, end_timestamp, created_at
		FROM biopotential_batches
		WHERE recording_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	var info LastBatchInfo

	err := r.db.QueryRowContext(ctx, query, recordingID).Scan(
		&info.BatchSequence,
		&info.EndTimestamp,
		&info.PersistedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get last batch: %w", err)
	}

	return &info, nil
}
