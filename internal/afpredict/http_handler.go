package afpredict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/srwicak/unastelemed/internal/recording"
)

// HTTPHandler обрабатывает HTTP запросы анализа фибрилляции
type HTTPHandler struct {
	client     *Client
	repository Repository
	recordings *recording.Manager
}

// NewHTTPHandler создает новый HTTP обработчик анализа
func NewHTTPHandler(client *Client, repository Repository, recordings *recording.Manager) *HTTPHandler {
	return &HTTPHandler{
		client:     client,
		repository: repository,
		recordings: recordings,
	}
}

// RegisterRoutes регистрирует маршруты в роутере
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/recordings/{id}/af_prediction", h.GetPrediction).Methods("GET")
	router.HandleFunc("/api/recordings/{id}/predict_af", h.Repredict).Methods("POST")
}

// GetPrediction возвращает результат анализа записи.
// Сохраненный результат отдается из БД; при его отсутствии
// выполняется первичный анализ.
// @Summary Получить анализ фибрилляции
// @Tags AFPrediction
// @Produce json
// @Param id path int true "ID записи"
// @Success 200 {object} Prediction
// @Router /api/recordings/{id}/af_prediction [get]
func (h *HTTPHandler) GetPrediction(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.pathRecording(w, r)
	if !ok {
		return
	}

	prediction, err := h.repository.LatestPrediction(r.Context(), rec.ID)
	if err == nil {
		respondJSON(w, http.StatusOK, prediction)
		return
	}
	if !errors.Is(err, ErrPredictionNotFound) {
		log.Printf("[ERROR] Failed to load prediction for recording %d: %v", rec.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load prediction")
		return
	}

	h.runPrediction(w, r.Context(), rec)
}

// Repredict удаляет сохраненный результат и выполняет анализ заново
// @Summary Повторить анализ фибрилляции
// @Tags AFPrediction
// @Produce json
// @Param id path int true "ID записи"
// @Success 200 {object} Prediction
// @Router /api/recordings/{id}/predict_af [post]
func (h *HTTPHandler) Repredict(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.pathRecording(w, r)
	if !ok {
		return
	}

	if err := h.repository.DeletePredictions(r.Context(), rec.ID); err != nil {
		log.Printf("[ERROR] Failed to delete predictions for recording %d: %v", rec.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to reset prediction")
		return
	}

	h.runPrediction(w, r.Context(), rec)
}

func (h *HTTPHandler) runPrediction(w http.ResponseWriter, ctx context.Context, rec *recording.Recording) {
	samples, err := h.collectSamples(ctx, rec)
	if err != nil {
		log.Printf("[ERROR] Failed to collect samples for recording %d: %v", rec.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to load samples")
		return
	}

	if len(samples) == 0 {
		respondError(w, http.StatusUnprocessableEntity, "Recording has no samples to analyze")
		return
	}

	result, err := h.client.Predict(ctx, samples, int(rec.SampleRate))
	if err != nil {
		log.Printf("[ERROR] AF prediction for recording %d failed: %v", rec.ID, err)
		respondError(w, http.StatusBadGateway, fmt.Sprintf("Prediction failed: %v", err))
		return
	}

	prediction := FromResult(rec.ID, result)
	if err := h.repository.SavePrediction(ctx, prediction); err != nil {
		log.Printf("[ERROR] Failed to save prediction for recording %d: %v", rec.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to save prediction")
		return
	}

	log.Printf("[AF] Recording %d analyzed: af_detected=%v events=%d burden=%.1f%%",
		rec.ID, prediction.AFDetected, prediction.AFEventCount, prediction.AFBurdenPercent)

	respondJSON(w, http.StatusOK, prediction)
}

// collectSamples собирает полный сигнал записи в порядке batch_sequence
func (h *HTTPHandler) collectSamples(ctx context.Context, rec *recording.Recording) ([]float64, error) {
	end := h.recordings.LogicalEnd(rec)

	batches, err := h.recordings.BatchesInRange(ctx, rec, rec.StartTime, end)
	if err != nil {
		return nil, err
	}

	var samples []float64
	for _, b := range batches {
		samples = append(samples, b.Samples...)
	}

	return samples, nil
}

func (h *HTTPHandler) pathRecording(w http.ResponseWriter, r *http.Request) (*recording.Recording, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid recording id")
		return nil, false
	}

	rec, err := h.recordings.GetRecording(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "Recording not found")
		return nil, false
	}

	return rec, true
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
