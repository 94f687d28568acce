package recording

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeRepository для тестирования - хранит записи и батчи в памяти
type fakeRepository struct {
	mu         sync.Mutex
	recordings map[int64]*Recording
	batches    map[int64]map[int64]*Batch // recording_id -> batch_sequence -> batch
	nextID     int64
	upsertErr  error
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		recordings: make(map[int64]*Recording),
		batches:    make(map[int64]map[int64]*Batch),
	}
}

func (f *fakeRepository) CreateRecording(ctx context.Context, rec *Recording) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	rec.ID = f.nextID
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	clone := *rec
	f.recordings[rec.ID] = &clone
	return nil
}

func (f *fakeRepository) GetRecording(ctx context.Context, id int64) (*Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	if !ok {
		return nil, ErrRecordingNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeRepository) GetRecordingBySession(ctx context.Context, sessionID string) (*Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range f.recordings {
		if rec.SessionID == sessionID {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, ErrRecordingNotFound
}

func (f *fakeRepository) ListRecordings(ctx context.Context, limit, offset int) ([]*Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Recording
	for _, rec := range f.recordings {
		clone := *rec
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeRepository) ListActiveRecordings(ctx context.Context) ([]*Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Recording
	for _, rec := range f.recordings {
		if rec.Status == StatusRecording {
			clone := *rec
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (f *fakeRepository) CompleteRecording(ctx context.Context, id int64, endTime time.Time, durationSeconds int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	if !ok || rec.Status != StatusRecording {
		return false, nil
	}
	rec.Status = StatusCompleted
	rec.EndTime = &endTime
	rec.DurationSeconds = durationSeconds
	return true, nil
}

func (f *fakeRepository) MarkRecording(ctx context.Context, id int64, to Status, endTime time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	if !ok || (rec.Status != StatusPending && rec.Status != StatusRecording) {
		return false, nil
	}
	rec.Status = to
	rec.EndTime = &endTime
	return true, nil
}

func (f *fakeRepository) SetCompletionNote(ctx context.Context, id int64, note string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rec, ok := f.recordings[id]; ok {
		rec.CompletionNote = note
	}
	return nil
}

func (f *fakeRepository) UpsertBatch(ctx context.Context, recordingID int64, p *BatchPayload, minValue, maxValue float64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.upsertErr != nil {
		return 0, false, f.upsertErr
	}

	if f.batches[recordingID] == nil {
		f.batches[recordingID] = make(map[int64]*Batch)
	}

	existing, found := f.batches[recordingID][p.BatchSequence]

	b := &Batch{
		RecordingID:    recordingID,
		BatchSequence:  p.BatchSequence,
		StartTimestamp: p.StartTimestamp,
		EndTimestamp:   p.EndTimestamp,
		SampleRate:     p.SampleRate,
		SampleCount:    len(p.Samples),
		Samples:        append([]float64(nil), p.Samples...),
		MinValue:       minValue,
		MaxValue:       maxValue,
		CreatedAt:      time.Now(),
	}

	if found {
		b.ID = existing.ID
		f.batches[recordingID][p.BatchSequence] = b
		return b.ID, false, nil
	}

	f.nextID++
	b.ID = f.nextID
	f.batches[recordingID][p.BatchSequence] = b

	if rec, ok := f.recordings[recordingID]; ok {
		rec.TotalSamples += int64(len(p.Samples))
	}

	return b.ID, true, nil
}

func (f *fakeRepository) BatchesInRange(ctx context.Context, recordingID int64, start, end time.Time) ([]*Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*Batch
	var maxSeq int64 = -1
	for seq := range f.batches[recordingID] {
		if seq > maxSeq {
			maxSeq = seq
		}
	}
	for seq := int64(0); seq <= maxSeq; seq++ {
		b, ok := f.batches[recordingID][seq]
		if !ok {
			continue
		}
		if !b.StartTimestamp.After(end) && !b.EndTimestamp.Before(start) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeRepository) CountBatches(ctx context.Context, recordingID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.batches[recordingID])), nil
}

func (f *fakeRepository) LastBatch(ctx context.Context, recordingID int64) (*LastBatchInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var last *Batch
	for _, b := range f.batches[recordingID] {
		if last == nil || b.CreatedAt.After(last.CreatedAt) || b.BatchSequence > last.BatchSequence {
			last = b
		}
	}
	if last == nil {
		return nil, nil
	}
	return &LastBatchInfo{
		BatchSequence: last.BatchSequence,
		EndTimestamp:  last.EndTimestamp,
		PersistedAt:   last.CreatedAt,
	}, nil
}

// fakeCache для тестирования - кэш в памяти
type fakeCache struct {
	mu         sync.Mutex
	recordings map[int64]*Recording
	sessions   map[string]int64
	activity   map[int64]time.Time
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		recordings: make(map[int64]*Recording),
		sessions:   make(map[string]int64),
		activity:   make(map[int64]time.Time),
	}
}

func (f *fakeCache) SetRecording(ctx context.Context, rec *Recording) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	clone := *rec
	f.recordings[rec.ID] = &clone
	f.sessions[rec.SessionID] = rec.ID
	return nil
}

func (f *fakeCache) GetRecording(ctx context.Context, id int64) (*Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recordings[id]
	if !ok {
		return nil, ErrRecordingNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeCache) GetRecordingBySession(ctx context.Context, sessionID string) (*Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.sessions[sessionID]
	if !ok {
		return nil, ErrRecordingNotFound
	}
	rec, ok := f.recordings[id]
	if !ok {
		return nil, ErrRecordingNotFound
	}
	clone := *rec
	return &clone, nil
}

func (f *fakeCache) DeleteRecording(ctx context.Context, rec *Recording) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.recordings, rec.ID)
	delete(f.sessions, rec.SessionID)
	delete(f.activity, rec.ID)
	return nil
}

func (f *fakeCache) TouchActivity(ctx context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.activity[id] = at
	return nil
}

func (f *fakeCache) LastActivity(ctx context.Context, id int64) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.activity[id]
	if !ok {
		return time.Time{}, fmt.Errorf("no activity for recording %d", id)
	}
	return at, nil
}

// ===== Тесты =====

func activeRecording(repo *fakeRepository) *Recording {
	rec := &Recording{
		SessionID:       "session-test",
		Status:          StatusRecording,
		StartTime:       time.Now().Add(-time.Minute),
		SampleRate:      400,
		SamplesPerBatch: 5000,
	}
	repo.CreateRecording(context.Background(), rec)
	return rec
}

func payloadAt(seq int64, start time.Time, samples []float64) *BatchPayload {
	return &BatchPayload{
		BatchSequence:  seq,
		StartTimestamp: start,
		EndTimestamp:   start.Add(time.Second),
		SampleRate:     400,
		Samples:        samples,
	}
}

func TestBatchStore_IngestAndDuplicate(t *testing.T) {
	repo := newFakeRepository()
	store := NewBatchStore(repo, newFakeCache(), 10000)
	rec := activeRecording(repo)

	start := time.Now()
	p := payloadAt(0, start, []float64{1, 2, 3})

	res, err := store.Ingest(context.Background(), rec, p)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if res.IsDuplicate {
		t.Errorf("First delivery must not be a duplicate")
	}
	if rec.TotalSamples != 3 {
		t.Errorf("Expected total_samples=3, got %d", rec.TotalSamples)
	}

	// Повторная доставка того же sequence - дубликат, счетчик не меняется
	res, err = store.Ingest(context.Background(), rec, payloadAt(0, start, []float64{1, 2, 3}))
	if err != nil {
		t.Fatalf("Duplicate ingest failed: %v", err)
	}
	if !res.IsDuplicate {
		t.Errorf("Redelivery of the same sequence must be a duplicate")
	}
	if rec.TotalSamples != 3 {
		t.Errorf("Duplicate must not change total_samples, got %d", rec.TotalSamples)
	}
}

func TestBatchStore_Validation(t *testing.T) {
	repo := newFakeRepository()
	store := NewBatchStore(repo, newFakeCache(), 5)
	rec := activeRecording(repo)
	start := time.Now()

	cases := []struct {
		name    string
		payload *BatchPayload
	}{
		{"empty samples", payloadAt(0, start, nil)},
		{"too large", payloadAt(0, start, []float64{1, 2, 3, 4, 5, 6})},
		{"negative sequence", payloadAt(-1, start, []float64{1})},
		{"inverted time range", &BatchPayload{
			BatchSequence:  0,
			StartTimestamp: start,
			EndTimestamp:   start.Add(-time.Second),
			Samples:        []float64{1},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.Ingest(context.Background(), rec, tc.payload)
			if !IsValidation(err) {
				t.Errorf("Expected validation error, got %v", err)
			}
		})
	}
}

func TestBatchStore_RejectsTerminalRecording(t *testing.T) {
	repo := newFakeRepository()
	store := NewBatchStore(repo, newFakeCache(), 10000)
	rec := activeRecording(repo)
	rec.Status = StatusCompleted

	_, err := store.Ingest(context.Background(), rec, payloadAt(0, time.Now(), []float64{1}))
	if !IsInvalidState(err) {
		t.Errorf("Expected invalid state error, got %v", err)
	}
}

func TestBatchStore_DefaultSampleRate(t *testing.T) {
	repo := newFakeRepository()
	store := NewBatchStore(repo, newFakeCache(), 10000)
	rec := activeRecording(repo)

	p := payloadAt(0, time.Now(), []float64{1, 2})
	p.SampleRate = 0

	if _, err := store.Ingest(context.Background(), rec, p); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if p.SampleRate != rec.SampleRate {
		t.Errorf("Expected sample rate %v inherited from recording, got %v", rec.SampleRate, p.SampleRate)
	}
}

func TestBatchStore_IngestBulkIsolation(t *testing.T) {
	repo := newFakeRepository()
	store := NewBatchStore(repo, newFakeCache(), 10000)
	rec := activeRecording(repo)
	start := time.Now()

	// Батч 1 сохраняем заранее, чтобы он стал дубликатом
	if _, err := store.Ingest(context.Background(), rec, payloadAt(1, start, []float64{1, 2})); err != nil {
		t.Fatalf("Setup ingest failed: %v", err)
	}

	payloads := []BatchPayload{
		*payloadAt(0, start, []float64{1, 2, 3}),
		*payloadAt(1, start, []float64{1, 2}),
		*payloadAt(-5, start, []float64{1}), // невалидный, не должен прервать остальные
		*payloadAt(2, start.Add(2*time.Second), []float64{4, 5}),
	}

	result := store.IngestBulk(context.Background(), rec, payloads)

	if result.ProcessedCount() != 2 {
		t.Errorf("Expected 2 processed, got %d", result.ProcessedCount())
	}
	if result.DuplicateCount() != 1 {
		t.Errorf("Expected 1 duplicate, got %d", result.DuplicateCount())
	}
	if result.FailedCount() != 1 {
		t.Errorf("Expected 1 failed, got %d", result.FailedCount())
	}
	if result.Failed[0].BatchSequence != -5 {
		t.Errorf("Expected failed batch -5, got %d", result.Failed[0].BatchSequence)
	}
}
