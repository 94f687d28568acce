package recording

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/srwicak/unastelemed/internal/bpm"
	"github.com/srwicak/unastelemed/internal/timeline"
)

// Окно оценки ЧСС: 10 секунд из середины записи
const bpmWindowSeconds = 10

// HTTPHandler обрабатывает HTTP запросы жизненного цикла записей (Presentation Layer)
type HTTPHandler struct {
	manager       *Manager
	reconstructor *timeline.Reconstructor
}

// NewHTTPHandler создает новый HTTP обработчик
func NewHTTPHandler(manager *Manager, reconstructor *timeline.Reconstructor) *HTTPHandler {
	return &HTTPHandler{
		manager:       manager,
		reconstructor: reconstructor,
	}
}

// RegisterRoutes регистрирует маршруты в роутере
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/recordings").Subrouter()

	api.HandleFunc("/start", h.StartRecording).Methods("POST")
	api.HandleFunc("/stop", h.StopRecording).Methods("POST")
	api.HandleFunc("", h.ListRecordings).Methods("GET")
	api.HandleFunc("/{id}", h.GetRecording).Methods("GET")
	api.HandleFunc("/{id}/data", h.IngestBatch).Methods("POST")
	api.HandleFunc("/{id}/stop", h.StopRecording).Methods("POST")
	api.HandleFunc("/{id}/cancel", h.CancelRecording).Methods("POST")
	api.HandleFunc("/{id}/recover_data", h.RecoverData).Methods("POST")
	api.HandleFunc("/{id}/chart_data", h.ChartData).Methods("GET")
	api.HandleFunc("/{id}/bpm", h.EstimateBPM).Methods("GET")
}

// StartRecording начинает новую запись
// @Summary Начать запись
// @Description Создает запись в статусе recording. Повторный start активной сессии идемпотентен.
// @Tags Recordings
// @Accept json
// @Produce json
// @Param request body StartRequest true "Параметры записи"
// @Success 201 {object} Recording
// @Router /api/recordings/start [post]
func (h *HTTPHandler) StartRecording(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, reused, err := h.manager.StartRecording(r.Context(), &req)
	if err != nil {
		log.Printf("[ERROR] Failed to start recording: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to start recording")
		return
	}

	status := http.StatusCreated
	if reused {
		status = http.StatusOK
	}

	respondJSON(w, status, map[string]interface{}{
		"recording":            rec,
		"max_duration_seconds": rec.MaxDurationSeconds,
	})
}

// IngestBatch принимает один батч сэмплов
// @Summary Принять батч данных
// @Description Идемпотентный прием батча: повторная доставка того же batch_sequence возвращает 200 вместо 201.
// @Tags Recordings
// @Accept json
// @Produce json
// @Param id path int true "ID записи"
// @Param request body BatchPayload true "Батч сэмплов"
// @Success 201 {object} IngestResult
// @Success 200 {object} IngestResult "Дубликат"
// @Failure 400 {object} map[string]interface{} "Ошибка валидации"
// @Failure 422 {object} map[string]interface{} "Запись не в статусе recording"
// @Router /api/recordings/{id}/data [post]
func (h *HTTPHandler) IngestBatch(w http.ResponseWriter, r *http.Request) {
	recordingID, ok := pathID(w, r)
	if !ok {
		return
	}

	var payload BatchPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rec, res, err := h.manager.IngestBatch(r.Context(), recordingID, &payload)
	if err != nil {
		h.respondIngestError(w, rec, err)
		return
	}

	status := http.StatusCreated
	if res.IsDuplicate {
		status = http.StatusOK
	}

	respondJSON(w, status, map[string]interface{}{
		"recording_id":     rec.ID,
		"batch_sequence":   res.BatchSequence,
		"samples_received": res.SamplesCount,
		"is_duplicate":     res.IsDuplicate,
		"total_samples":    rec.TotalSamples,
	})
}

// StopRecording останавливает запись
// @Summary Остановить запись
// @Description Принимает опциональные хвостовые батчи и переводит запись в completed.
// @Tags Recordings
// @Accept json
// @Produce json
// @Param request body StopRequest true "Идентификация записи и хвостовые батчи"
// @Success 200 {object} map[string]interface{}
// @Router /api/recordings/stop [post]
func (h *HTTPHandler) StopRecording(w http.ResponseWriter, r *http.Request) {
	var req StopRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// Для member-маршрута body может отсутствовать, но битый JSON -
		// это ошибка клиента, а не пустое тело
		if !errors.Is(err, io.EOF) {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	if idStr, ok := mux.Vars(r)["id"]; ok {
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid recording id")
			return
		}
		req.RecordingID = id
	}

	rec, trailing, err := h.manager.StopRecording(r.Context(), &req)
	if err != nil {
		if errors.Is(err, ErrRecordingNotFound) {
			respondError(w, http.StatusNotFound, "Recording not found")
			return
		}
		if IsInvalidState(err) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":          "Recording is not in recording state",
				"current_status": rec.Status,
			})
			return
		}
		log.Printf("[ERROR] Failed to stop recording: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to stop recording")
		return
	}

	response := map[string]interface{}{
		"recording_id":     rec.ID,
		"session_id":       rec.SessionID,
		"status":           rec.Status,
		"started_at":       rec.StartTime,
		"ended_at":         rec.EndTime,
		"duration_seconds": rec.DurationSeconds,
		"total_samples":    rec.TotalSamples,
	}
	if trailing != nil {
		response["trailing_batches"] = map[string]int{
			"processed": trailing.ProcessedCount(),
			"duplicate": trailing.DuplicateCount(),
			"failed":    trailing.FailedCount(),
		}
	}

	respondJSON(w, http.StatusOK, response)
}

// CancelRecording отменяет запись
// @Summary Отменить запись
// @Tags Recordings
// @Produce json
// @Param id path int true "ID записи"
// @Success 200 {object} map[string]interface{}
// @Router /api/recordings/{id}/cancel [post]
func (h *HTTPHandler) CancelRecording(w http.ResponseWriter, r *http.Request) {
	recordingID, ok := pathID(w, r)
	if !ok {
		return
	}

	rec, err := h.manager.CancelRecording(r.Context(), recordingID)
	if err != nil {
		if errors.Is(err, ErrRecordingNotFound) {
			respondError(w, http.StatusNotFound, "Recording not found")
			return
		}
		if IsInvalidState(err) {
			respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"error":          "Recording cannot be cancelled",
				"current_status": rec.Status,
			})
			return
		}
		log.Printf("[ERROR] Failed to cancel recording %d: %v", recordingID, err)
		respondError(w, http.StatusInternalServerError, "Failed to cancel recording")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recording_id": rec.ID,
		"status":       rec.Status,
	})
}

// RecoverData принимает массив потерянных батчей
// @Summary Дозагрузить потерянные батчи
// @Description Каждый батч обрабатывается независимо; ответ содержит счетчики processed/duplicate/failed.
// @Tags Recordings
// @Accept json
// @Produce json
// @Param id path int true "ID записи"
// @Param request body RecoverRequest true "Массив батчей"
// @Success 200 {object} map[string]interface{}
// @Router /api/recordings/{id}/recover_data [post]
func (h *HTTPHandler) RecoverData(w http.ResponseWriter, r *http.Request) {
	recordingID, ok := pathID(w, r)
	if !ok {
		return
	}

	var req RecoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.Batches) == 0 {
		respondError(w, http.StatusBadRequest, "Batches array is missing or empty")
		return
	}

	rec, result, err := h.manager.RecoverData(r.Context(), recordingID, req.Batches)
	if err != nil {
		if errors.Is(err, ErrRecordingNotFound) {
			respondError(w, http.StatusNotFound, "Recording not found")
			return
		}
		log.Printf("[ERROR] Failed to recover data for recording %d: %v", recordingID, err)
		respondError(w, http.StatusInternalServerError, "Failed to recover data")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recording_id":      rec.ID,
		"session_id":        rec.SessionID,
		"processed_count":   result.ProcessedCount(),
		"duplicate_count":   result.DuplicateCount(),
		"failed_count":      result.FailedCount(),
		"total_samples":     rec.TotalSamples,
		"processed_batches": result.Processed,
		"duplicate_batches": result.Duplicates,
		"failed_batches":    result.Failed,
	})
}

// ChartData возвращает прореженные точки для визуализации диапазона
// @Summary Получить данные графика
// @Description Восстанавливает непрерывную шкалу по батчам и прореживает до целевого числа точек с сохранением экстремумов.
// @Tags Recordings
// @Produce json
// @Param id path int true "ID записи"
// @Param start_time query string false "Начало диапазона (RFC3339)"
// @Param end_time query string false "Конец диапазона (RFC3339)"
// @Success 200 {object} map[string]interface{}
// @Router /api/recordings/{id}/chart_data [get]
func (h *HTTPHandler) ChartData(w http.ResponseWriter, r *http.Request) {
	recordingID, ok := pathID(w, r)
	if !ok {
		return
	}

	rec, err := h.manager.GetRecording(r.Context(), recordingID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Recording not found")
		return
	}

	start, end, err := parseRange(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid time range format, expected RFC3339")
		return
	}

	start, end = h.manager.ClampRange(rec, start, end)

	batches, err := h.manager.BatchesInRange(r.Context(), rec, start, end)
	if err != nil {
		log.Printf("[ERROR] Failed to load batches for recording %d: %v", rec.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load chart data")
		return
	}

	runs := make([][]float64, 0, len(batches))
	for _, b := range batches {
		runs = append(runs, b.Samples)
	}

	result := h.reconstructor.Build(rec.StartTime, rec.SampleRate, runs, start, end)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"points": result.Points,
		"meta": map[string]interface{}{
			"start_time":       result.StartTime.Format(time.RFC3339Nano),
			"end_time":         result.EndTime.Format(time.RFC3339Nano),
			"sample_count":     len(result.Points),
			"skip_factor":      result.SkipFactor,
			"recording_status": rec.Status,
		},
	})
}

// EstimateBPM возвращает оценку ЧСС по окну из середины записи
// @Summary Оценить ЧСС
// @Description Берет 10-секундное окно из временной середины записи и оценивает частоту по R-пикам. 0 означает недостаточный сигнал.
// @Tags Recordings
// @Produce json
// @Param id path int true "ID записи"
// @Success 200 {object} map[string]interface{}
// @Router /api/recordings/{id}/bpm [get]
func (h *HTTPHandler) EstimateBPM(w http.ResponseWriter, r *http.Request) {
	recordingID, ok := pathID(w, r)
	if !ok {
		return
	}

	rec, err := h.manager.GetRecording(r.Context(), recordingID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Recording not found")
		return
	}

	// Окно из временной середины записи вместо полного сигнала
	logicalEnd := h.manager.LogicalEnd(rec)
	mid := rec.StartTime.Add(logicalEnd.Sub(rec.StartTime) / 2)
	windowEnd := mid.Add(bpmWindowSeconds * time.Second)

	batches, err := h.manager.BatchesInRange(r.Context(), rec, mid, windowEnd)
	if err != nil {
		log.Printf("[ERROR] Failed to load BPM window for recording %d: %v", rec.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load samples")
		return
	}

	var window []float64
	for _, b := range batches {
		window = append(window, b.Samples...)
	}

	estimate := bpm.Estimate(window, rec.SampleRate)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recording_id": rec.ID,
		"bpm":          estimate,
		"window_start": mid,
		"window_end":   windowEnd,
	})
}

// GetRecording возвращает информацию о записи
// @Summary Получить запись
// @Tags Recordings
// @Produce json
// @Param id path int true "ID записи"
// @Success 200 {object} Recording
// @Router /api/recordings/{id} [get]
func (h *HTTPHandler) GetRecording(w http.ResponseWriter, r *http.Request) {
	recordingID, ok := pathID(w, r)
	if !ok {
		return
	}

	rec, err := h.manager.GetRecording(r.Context(), recordingID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Recording not found")
		return
	}

	respondJSON(w, http.StatusOK, rec)
}

// ListRecordings возвращает список записей
// @Summary Список записей
// @Tags Recordings
// @Produce json
// @Param limit query int false "Лимит" default(50)
// @Param offset query int false "Смещение" default(0)
// @Success 200 {object} map[string]interface{}
// @Router /api/recordings [get]
func (h *HTTPHandler) ListRecordings(w http.ResponseWriter, r *http.Request) {
	limit := getQueryInt(r, "limit", 50)
	offset := getQueryInt(r, "offset", 0)

	recordings, err := h.manager.ListRecordings(r.Context(), limit, offset)
	if err != nil {
		log.Printf("[ERROR] Failed to list recordings: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to list recordings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recordings": recordings,
		"limit":      limit,
		"offset":     offset,
		"count":      len(recordings),
	})
}

// respondIngestError сопоставляет ошибки приема батча с HTTP статусами
func (h *HTTPHandler) respondIngestError(w http.ResponseWriter, rec *Recording, err error) {
	switch {
	case errors.Is(err, ErrRecordingNotFound):
		respondError(w, http.StatusNotFound, "Recording not found")

	case IsValidation(err):
		respondError(w, http.StatusBadRequest, err.Error())

	case IsInvalidState(err):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":          "Recording is not in recording state",
			"current_status": rec.Status,
		})

	default:
		log.Printf("[ERROR] Failed to ingest batch: %v", err)
		respondError(w, http.StatusInternalServerError, "Failed to save batch")
	}
}

// ===== Утилиты =====

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid recording id")
		return 0, false
	}
	return id, true
}

func parseRange(r *http.Request) (time.Time, time.Time, error) {
	var start, end time.Time

	if s := r.URL.Query().Get("start_time"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return start, end, err
		}
		start = parsed
	}

	if s := r.URL.Query().Get("end_time"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return start, end, err
		}
		end = parsed
	}

	return start, end, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[ERROR] Failed to encode JSON response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":  message,
		"status": status,
	})
}

func getQueryInt(r *http.Request, key string, defaultValue int) int {
	valueStr := r.URL.Query().Get(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
