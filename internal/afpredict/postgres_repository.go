package afpredict

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrPredictionNotFound возвращается, когда у записи нет сохраненного анализа
var ErrPredictionNotFound = errors.New("prediction not found")

// Repository определяет контракт хранилища результатов анализа
type Repository interface {
	// SavePrediction сохраняет результат анализа
	SavePrediction(ctx context.Context, p *Prediction) error

	// LatestPrediction возвращает последний результат анализа записи
	LatestPrediction(ctx context.Context, recordingID int64) (*Prediction, error)

	// DeletePredictions удаляет все результаты анализа записи
	DeletePredictions(ctx context.Context, recordingID int64) error
}

// PostgresRepository реализует Repository для PostgreSQL
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository создает новый экземпляр PostgresRepository
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{
		db: db,
	}
}

func (r *PostgresRepository) SavePrediction(ctx context.Context, p *Prediction) error {
	events, err := json.Marshal(p.AFEvents)
	if err != nil {
		return fmt.Errorf("failed to encode af events: %w", err)
	}

	hrv := p.HRVMetrics
	if hrv == nil {
		hrv = json.RawMessage("{}")
	}

	query := `
		INSERT INTO af_predictions (
			recording_id, af_detected, af_event_count, af_burden_percent,
			total_analyzed_minutes, normal_rhythm_minutes, af_minutes,
			hr_min_bpm, hr_avg_bpm, hr_max_bpm,
			af_events, hrv_metrics, window_probabilities, conclusion,
			predicted_at, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())
		RETURNING id
	`

	err = r.db.QueryRowContext(ctx, query,
		p.RecordingID,
		p.AFDetected,
		p.AFEventCount,
		p.AFBurdenPercent,
		p.TotalAnalyzedMinutes,
		p.NormalRhythmMinutes,
		p.AFMinutes,
		p.HRMinBPM,
		p.HRAvgBPM,
		p.HRMaxBPM,
		events,
		[]byte(hrv),
		pq.Array(p.WindowProbabilities),
		p.Conclusion,
		p.PredictedAt,
	).Scan(&p.ID)

	if err != nil {
		return fmt.Errorf("failed to save prediction: %w", err)
	}

	return nil
}

func (r *PostgresRepository) LatestPrediction(ctx context.Context, recordingID int64) (*Prediction, error) {
	query := `
		SELECT id, recording_id, af_detected, af_event_count, af_burden_percent,
			total_analyzed_minutes, normal_rhythm_minutes, af_minutes,
			hr_min_bpm, hr_avg_bpm, hr_max_bpm,
			af_events, hrv_metrics, window_probabilities, conclusion, predicted_at
		FROM af_predictions
		WHERE recording_id = $1
		ORDER BY predicted_at DESC
		LIMIT 1
	`

	var (
		p      Prediction
		events []byte
		hrv    []byte
		probs  pq.Float64Array
	)

	err := r.db.QueryRowContext(ctx, query, recordingID).Scan(
		&p.ID,
		&p.RecordingID,
		&p.AFDetected,
		&p.AFEventCount,
		&p.AFBurdenPercent,
		&p.TotalAnalyzedMinutes,
		&p.NormalRhythmMinutes,
		&p.AFMinutes,
		&p.HRMinBPM,
		&p.HRAvgBPM,
		&p.HRMaxBPM,
		&events,
		&hrv,
		&probs,
		&p.Conclusion,
		&p.PredictedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrPredictionNotFound
		}
		return nil, fmt.Errorf("failed to get prediction: %w", err)
	}

	if err := json.Unmarshal(events, &p.AFEvents); err != nil {
		return nil, fmt.Errorf("failed to decode af events: %w", err)
	}
	p.HRVMetrics = json.RawMessage(hrv)
	p.WindowProbabilities = []float64(probs)

	return &p, nil
}

func (r *PostgresRepository) DeletePredictions(ctx context.Context, recordingID int64) error {
	query := `DELETE FROM af_predictions WHERE recording_id = $1`

	if _, err := r.db.ExecContext(ctx, query, recordingID); err != nil {
		return fmt.Errorf("failed to delete predictions: %w", err)
	}

	return nil
}
