// Package afpredict интегрируется с внешним сервисом детекции
// фибрилляции предсердий: собирает полный сигнал записи, отправляет
// его на анализ и сохраняет результат.
package afpredict

import (
	"encoding/json"
	"time"
)

// Event описывает один эпизод фибрилляции на шкале записи
type Event struct {
	StartSeconds    float64 `json:"start_seconds"`
	EndSeconds      float64 `json:"end_seconds"`
	DurationSeconds float64 `json:"duration_seconds"`
	Confidence      float64 `json:"confidence"`
}

// Summary агрегирует статистику анализа
type Summary struct {
	AFEventCount         int     `json:"af_event_count"`
	AFBurdenPercent      float64 `json:"af_burden_percent"`
	TotalAnalyzedMinutes float64 `json:"total_analyzed_minutes"`
	NormalRhythmMinutes  float64 `json:"normal_rhythm_minutes"`
	AFMinutes            float64 `json:"af_minutes"`
}

// HeartRate содержит статистику ЧСС за время анализа
type HeartRate struct {
	MinBPM float64 `json:"min_bpm"`
	AvgBPM float64 `json:"avg_bpm"`
	MaxBPM float64 `json:"max_bpm"`
}

// Result представляет ответ сервиса анализа
type Result struct {
	Status               string          `json:"status"`
	Message              string          `json:"message,omitempty"`
	AFDetected           bool            `json:"af_detected"`
	AFEvents             []Event         `json:"af_events"`
	Summary              Summary         `json:"summary"`
	HeartRate            HeartRate       `json:"heart_rate"`
	HRVMetrics           json.RawMessage `json:"hrv_metrics,omitempty"`
	Conclusion           string          `json:"conclusion,omitempty"`
	WindowProbabilities  []float64       `json:"window_probabilities,omitempty"`
}

// Prediction представляет сохраненный результат анализа записи
type Prediction struct {
	ID                   int64           `json:"id"`
	RecordingID          int64           `json:"recording_id"`
	AFDetected           bool            `json:"af_detected"`
	AFEventCount         int             `json:"af_event_count"`
	AFBurdenPercent      float64         `json:"af_burden_percent"`
	TotalAnalyzedMinutes float64         `json:"total_analyzed_minutes"`
	NormalRhythmMinutes  float64         `json:"normal_rhythm_minutes"`
	AFMinutes            float64         `json:"af_minutes"`
	HRMinBPM             float64         `json:"hr_min_bpm"`
	HRAvgBPM             float64         `json:"hr_avg_bpm"`
	HRMaxBPM             float64         `json:"hr_max_bpm"`
	AFEvents             []Event         `json:"af_events"`
	HRVMetrics           json.RawMessage `json:"hrv_metrics,omitempty"`
	WindowProbabilities  []float64       `json:"window_probabilities,omitempty"`
	Conclusion           string          `json:"conclusion,omitempty"`
	PredictedAt          time.Time       `json:"predicted_at"`
}

// FromResult переносит ответ сервиса в сохраняемую форму
func FromResult(recordingID int64, res *Result) *Prediction {
	return &Prediction{
		RecordingID:          recordingID,
		AFDetected:           res.AFDetected,
		AFEventCount:         res.Summary.AFEventCount,
		AFBurdenPercent:      res.Summary.AFBurdenPercent,
		TotalAnalyzedMinutes: res.Summary.TotalAnalyzedMinutes,
		NormalRhythmMinutes:  res.Summary.NormalRhythmMinutes,
		AFMinutes:            res.Summary.AFMinutes,
		HRMinBPM:             res.HeartRate.MinBPM,
		HRAvgBPM:             res.HeartRate.AvgBPM,
		HRMaxBPM:             res.HeartRate.MaxBPM,
		AFEvents:             res.AFEvents,
		HRVMetrics:           res.HRVMetrics,
		WindowProbabilities:  res.WindowProbabilities,
		Conclusion:           res.Conclusion,
		PredictedAt:          time.Now(),
	}
}
