package recording

import (
	"context"
	"fmt"
	"log"
)

// BatchStore отвечает за идемпотентное сохранение батчей.
// Повторная доставка одного и того же batch_sequence (ретраи мобильного
// клиента) перезаписывает содержимое батча, но не изменяет total_samples.
type BatchStore struct {
	repository Repository
	cache      CacheStore

	maxSamplesPerBatch int
}

// NewBatchStore создает новое хранилище батчей
func NewBatchStore(repository Repository, cache CacheStore, maxSamplesPerBatch int) *BatchStore {
	return &BatchStore{
		repository:         repository,
		cache:              cache,
		maxSamplesPerBatch: maxSamplesPerBatch,
	}
}

// Ingest принимает один батч для записи.
// Возвращает IsDuplicate=true, если batch_sequence уже был сохранен ранее.
func (s *BatchStore) Ingest(ctx context.Context, rec *Recording, p *BatchPayload) (*IngestResult, error) {
	if !rec.CanIngest() {
		return nil, &InvalidStateError{Operation: "ingest", Status: rec.Status}
	}

	if err := s.validatePayload(p); err != nil {
		return nil, err
	}

	if p.SampleRate == 0 {
		p.SampleRate = rec.SampleRate
	}

	minValue, maxValue := sampleBounds(p.Samples)

	batchID, inserted, err := s.repository.UpsertBatch(ctx, rec.ID, p, minValue, maxValue)
	if err != nil {
		return nil, fmt.Errorf("failed to persist batch: %w", err)
	}

	if inserted {
		rec.TotalSamples += int64(len(p.Samples))
	}

	return &IngestResult{
		BatchID:       batchID,
		BatchSequence: p.BatchSequence,
		SamplesCount:  len(p.Samples),
		IsDuplicate:   !inserted,
	}, nil
}

// IngestBulk принимает массив батчей. Батчи обрабатываются независимо:
// ошибка одного не прерывает обработку остальных, каждый исход
// классифицируется как processed/duplicate/failed.
func (s *BatchStore) IngestBulk(ctx context.Context, rec *Recording, payloads []BatchPayload) *BulkResult {
	result := &BulkResult{}

	for i := range payloads {
		p := &payloads[i]

		res, err := s.Ingest(ctx, rec, p)
		if err != nil {
			log.Printf("[WARN] Failed to ingest batch seq=%d for recording %d: %v",
				p.BatchSequence, rec.ID, err)
			result.Failed = append(result.Failed, BatchOutcome{
				BatchSequence: p.BatchSequence,
				Error:         err.Error(),
			})
			continue
		}

		outcome := BatchOutcome{
			BatchSequence: res.BatchSequence,
			SamplesCount:  res.SamplesCount,
		}

		if res.IsDuplicate {
			result.Duplicates = append(result.Duplicates, outcome)
		} else {
			result.Processed = append(result.Processed, outcome)
		}
	}

	return result
}

func (s *BatchStore) validatePayload(p *BatchPayload) error {
	if len(p.Samples) == 0 {
		return &ValidationError{Reason: "empty samples array"}
	}

	if len(p.Samples) > s.maxSamplesPerBatch {
		return &ValidationError{Reason: fmt.Sprintf("batch too large: %d samples, max %d", len(p.Samples), s.maxSamplesPerBatch)}
	}

	if p.BatchSequence < 0 {
		return &ValidationError{Reason: fmt.Sprintf("negative batch_sequence: %d", p.BatchSequence)}
	}

	if !p.EndTimestamp.After(p.StartTimestamp) {
		return &ValidationError{Reason: "invalid time range: end_timestamp must be after start_timestamp"}
	}

	return nil
}

// sampleBounds возвращает минимум и максимум массива сэмплов
func sampleBounds(samples []float64) (float64, float64) {
	if len(samples) == 0 {
		return 0, 0
	}

	minValue, maxValue := samples[0], samples[0]
	for _, v := range samples[1:] {
		if v < minValue {
			minValue = v
		}
		if v > maxValue {
			maxValue = v
		}
	}

	return minValue, maxValue
}
