package emulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/srwicak/unastelemed/internal/recording"
)

// Device имитирует регистратор, передающий батчи по HTTP
type Device struct {
	baseURL    string
	httpClient *http.Client
	generator  *Generator

	sampleRate      float64
	samplesPerBatch int

	// Каждый N-й батч отправляется повторно для проверки идемпотентности
	duplicateEvery int

	// Каждый N-й батч пропускается и позже дозаливается через recover_data
	dropEvery int

	recordingID int64
	sessionID   string
	sequence    int64
	cursor      time.Time
	dropped     []recording.BatchPayload
}

// Options настраивает поведение эмулятора
type Options struct {
	BaseURL         string
	SampleRate      float64
	HeartRate       float64
	Noise           float64
	SamplesPerBatch int
	DuplicateEvery  int
	DropEvery       int
}

// NewDevice создает эмулятор регистратора
func NewDevice(opts Options) *Device {
	return &Device{
		baseURL:         opts.BaseURL,
		httpClient:      &http.Client{Timeout: 30 * time.Second},
		generator:       NewGenerator(opts.SampleRate, opts.HeartRate, opts.Noise),
		sampleRate:      opts.SampleRate,
		samplesPerBatch: opts.SamplesPerBatch,
		duplicateEvery:  opts.DuplicateEvery,
		dropEvery:       opts.DropEvery,
	}
}

// Start начинает новую запись на сервере
func (d *Device) Start(ctx context.Context, deviceID string) error {
	req := recording.StartRequest{
		DeviceID:        deviceID,
		SampleRate:      d.sampleRate,
		SamplesPerBatch: d.samplesPerBatch,
	}

	var resp struct {
		Recording recording.Recording `json:"recording"`
	}

	if err := d.post(ctx, "/api/recordings/start", req, &resp); err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}

	d.recordingID = resp.Recording.ID
	d.sessionID = resp.Recording.SessionID
	d.sequence = 0
	d.cursor = time.Now()
	d.dropped = nil

	log.Printf("[EMULATOR] Started recording %d (session %s)", d.recordingID, d.sessionID)
	return nil
}

// SendBatch генерирует и отправляет очередной батч
func (d *Device) SendBatch(ctx context.Context) error {
	batchDuration := time.Duration(float64(d.samplesPerBatch) / d.sampleRate * float64(time.Second))

	payload := recording.BatchPayload{
		BatchSequence:  d.sequence,
		StartTimestamp: d.cursor,
		EndTimestamp:   d.cursor.Add(batchDuration),
		SampleRate:     d.sampleRate,
		Samples:        d.generator.NextBatch(d.samplesPerBatch),
	}

	d.sequence++
	d.cursor = payload.EndTimestamp

	if d.dropEvery > 0 && payload.BatchSequence > 0 && payload.BatchSequence%int64(d.dropEvery) == 0 {
		// Имитация потери: батч не отправляется, но запоминается
		d.dropped = append(d.dropped, payload)
		log.Printf("[EMULATOR] Dropped batch %d (will recover later)", payload.BatchSequence)
		return nil
	}

	if err := d.postBatch(ctx, payload); err != nil {
		return err
	}

	if d.duplicateEvery > 0 && payload.BatchSequence > 0 && payload.BatchSequence%int64(d.duplicateEvery) == 0 {
		// Имитация ретрая после потерянного ACK
		log.Printf("[EMULATOR] Resending batch %d to exercise idempotency", payload.BatchSequence)
		return d.postBatch(ctx, payload)
	}

	return nil
}

func (d *Device) postBatch(ctx context.Context, payload recording.BatchPayload) error {
	path := fmt.Sprintf("/api/recordings/%d/data", d.recordingID)

	var resp struct {
		BatchSequence int64 `json:"batch_sequence"`
		IsDuplicate   bool  `json:"is_duplicate"`
		TotalSamples  int64 `json:"total_samples"`
	}

	if err := d.post(ctx, path, payload, &resp); err != nil {
		return fmt.Errorf("failed to send batch %d: %w", payload.BatchSequence, err)
	}

	log.Printf("[EMULATOR] Sent batch %d: duplicate=%v total_samples=%d",
		resp.BatchSequence, resp.IsDuplicate, resp.TotalSamples)
	return nil
}

// Recover дозаливает потерянные батчи через recover_data
func (d *Device) Recover(ctx context.Context) error {
	if len(d.dropped) == 0 {
		return nil
	}

	path := fmt.Sprintf("/api/recordings/%d/recover_data", d.recordingID)

	var resp struct {
		ProcessedCount int `json:"processed_count"`
		DuplicateCount int `json:"duplicate_count"`
		FailedCount    int `json:"failed_count"`
	}

	if err := d.post(ctx, path, recording.RecoverRequest{Batches: d.dropped}, &resp); err != nil {
		return fmt.Errorf("failed to recover batches: %w", err)
	}

	log.Printf("[EMULATOR] Recovered %d batches: processed=%d duplicate=%d failed=%d",
		len(d.dropped), resp.ProcessedCount, resp.DuplicateCount, resp.FailedCount)

	d.dropped = nil
	return nil
}

// Stop останавливает запись, передавая несколько хвостовых батчей
// вместе с запросом остановки
func (d *Device) Stop(ctx context.Context, trailingBatches int) error {
	batchDuration := time.Duration(float64(d.samplesPerBatch) / d.sampleRate * float64(time.Second))

	trailing := make([]recording.BatchPayload, 0, trailingBatches)
	for i := 0; i < trailingBatches; i++ {
		trailing = append(trailing, recording.BatchPayload{
			BatchSequence:  d.sequence,
			StartTimestamp: d.cursor,
			EndTimestamp:   d.cursor.Add(batchDuration),
			SampleRate:     d.sampleRate,
			Samples:        d.generator.NextBatch(d.samplesPerBatch),
		})
		d.sequence++
		d.cursor = d.cursor.Add(batchDuration)
	}

	req := recording.StopRequest{
		RecordingID: d.recordingID,
		Batches:     trailing,
	}

	var resp struct {
		Status          string `json:"status"`
		DurationSeconds int64  `json:"duration_seconds"`
		TotalSamples    int64  `json:"total_samples"`
	}

	if err := d.post(ctx, "/api/recordings/stop", req, &resp); err != nil {
		return fmt.Errorf("failed to stop recording: %w", err)
	}

	log.Printf("[EMULATOR] Stopped recording %d: status=%s duration=%ds samples=%d",
		d.recordingID, resp.Status, resp.DurationSeconds, resp.TotalSamples)
	return nil
}

func (d *Device) post(ctx context.Context, path string, body, out interface{}) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, respBody)
	}

	if out != nil {
		return json.Unmarshal(respBody, out)
	}
	return nil
}
