package marker

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/srwicak/unastelemed/internal/recording"
)

// HTTPHandler обрабатывает HTTP запросы отметок ЭКГ
type HTTPHandler struct {
	repository Repository
	recordings *recording.Manager
}

// NewHTTPHandler создает новый HTTP обработчик отметок
func NewHTTPHandler(repository Repository, recordings *recording.Manager) *HTTPHandler {
	return &HTTPHandler{
		repository: repository,
		recordings: recordings,
	}
}

// RegisterRoutes регистрирует маршруты в роутере
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/recordings/{recording_id}/markers", h.ListMarkers).Methods("GET")
	router.HandleFunc("/api/recordings/{recording_id}/markers", h.CreateMarker).Methods("POST")
	router.HandleFunc("/api/recordings/{recording_id}/markers/summary", h.MarkersSummary).Methods("GET")
	router.HandleFunc("/api/ekg_markers/{id}", h.GetMarker).Methods("GET")
	router.HandleFunc("/api/ekg_markers/{id}", h.UpdateMarker).Methods("PATCH", "PUT")
	router.HandleFunc("/api/ekg_markers/{id}", h.DeleteMarker).Methods("DELETE")
}

// markerView сериализует отметку вместе с производными полями
type markerView struct {
	*Marker
	GlobalSampleStart int     `json:"global_sample_start"`
	GlobalSampleEnd   int     `json:"global_sample_end"`
	SampleCount       int     `json:"sample_count"`
	DurationMs        float64 `json:"duration_ms"`
	Color             string  `json:"color"`
}

func (h *HTTPHandler) view(m *Marker, samplesPerBatch int) markerView {
	return markerView{
		Marker:            m,
		GlobalSampleStart: m.GlobalSampleStart(samplesPerBatch),
		GlobalSampleEnd:   m.GlobalSampleEnd(samplesPerBatch),
		SampleCount:       m.SampleCount(),
		DurationMs:        m.DurationMs(),
		Color:             m.Color(),
	}
}

// ListMarkers возвращает отметки записи
// @Summary Список отметок записи
// @Tags Markers
// @Produce json
// @Param recording_id path int true "ID записи"
// @Param type query string false "Фильтр по типу отметки"
// @Param severity query string false "Фильтр по важности"
// @Success 200 {object} map[string]interface{}
// @Router /api/recordings/{recording_id}/markers [get]
func (h *HTTPHandler) ListMarkers(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.pathRecording(w, r)
	if !ok {
		return
	}

	markers, err := h.repository.ListMarkers(r.Context(), rec.ID,
		r.URL.Query().Get("type"), r.URL.Query().Get("severity"))
	if err != nil {
		log.Printf("[ERROR] Failed to list markers for recording %d: %v", rec.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to list markers")
		return
	}

	views := make([]markerView, 0, len(markers))
	for _, m := range markers {
		views = append(views, h.view(m, rec.SamplesPerBatch))
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"recording_id":  rec.ID,
		"total_markers": len(views),
		"markers":       views,
	})
}

// CreateMarker создает отметку на записи
// @Summary Создать отметку
// @Tags Markers
// @Accept json
// @Produce json
// @Param recording_id path int true "ID записи"
// @Param request body Marker true "Отметка"
// @Success 201 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{} "Ошибка валидации"
// @Router /api/recordings/{recording_id}/markers [post]
func (h *HTTPHandler) CreateMarker(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.pathRecording(w, r)
	if !ok {
		return
	}

	var m Marker
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	m.RecordingID = rec.ID

	if err := m.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if err := h.repository.CreateMarker(r.Context(), &m); err != nil {
		log.Printf("[ERROR] Failed to create marker for recording %d: %v", rec.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to create marker")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"marker": h.view(&m, rec.SamplesPerBatch),
	})
}

// GetMarker возвращает отметку по ID
// @Summary Получить отметку
// @Tags Markers
// @Produce json
// @Param id path int true "ID отметки"
// @Success 200 {object} map[string]interface{}
// @Router /api/ekg_markers/{id} [get]
func (h *HTTPHandler) GetMarker(w http.ResponseWriter, r *http.Request) {
	m, ok := h.pathMarker(w, r)
	if !ok {
		return
	}

	rec, err := h.recordings.GetRecording(r.Context(), m.RecordingID)
	if err != nil {
		respondError(w, http.StatusNotFound, "Recording not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"marker": h.view(m, rec.SamplesPerBatch),
	})
}

// UpdateMarker обновляет изменяемые поля отметки
// @Summary Обновить отметку
// @Tags Markers
// @Accept json
// @Produce json
// @Param id path int true "ID отметки"
// @Success 200 {object} map[string]interface{}
// @Router /api/ekg_markers/{id} [patch]
func (h *HTTPHandler) UpdateMarker(w http.ResponseWriter, r *http.Request) {
	m, ok := h.pathMarker(w, r)
	if !ok {
		return
	}

	var patch struct {
		MarkerType  *string `json:"marker_type"`
		Label       *string `json:"label"`
		Description *string `json:"description"`
		Severity    *string `json:"severity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if patch.MarkerType != nil {
		m.MarkerType = *patch.MarkerType
	}
	if patch.Label != nil {
		m.Label = *patch.Label
	}
	if patch.Description != nil {
		m.Description = *patch.Description
	}
	if patch.Severity != nil {
		m.Severity = *patch.Severity
	}

	if err := m.Validate(); err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	updated, err := h.repository.UpdateMarker(r.Context(), m)
	if err != nil {
		log.Printf("[ERROR] Failed to update marker %d: %v", m.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to update marker")
		return
	}
	if !updated {
		respondError(w, http.StatusNotFound, "Marker not found")
		return
	}

	m.UpdatedAt = time.Now()

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"marker": m,
	})
}

// DeleteMarker удаляет отметку
// @Summary Удалить отметку
// @Tags Markers
// @Produce json
// @Param id path int true "ID отметки"
// @Success 200 {object} map[string]interface{}
// @Router /api/ekg_markers/{id} [delete]
func (h *HTTPHandler) DeleteMarker(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid marker id")
		return
	}

	deleted, err := h.repository.DeleteMarker(r.Context(), id)
	if err != nil {
		log.Printf("[ERROR] Failed to delete marker %d: %v", id, err)
		respondError(w, http.StatusInternalServerError, "Failed to delete marker")
		return
	}
	if !deleted {
		respondError(w, http.StatusNotFound, "Marker not found")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"deleted": true,
	})
}

// MarkersSummary возвращает сводку отметок записи по типам и важности
// @Summary Сводка отметок записи
// @Tags Markers
// @Produce json
// @Param recording_id path int true "ID записи"
// @Success 200 {object} Summary
// @Router /api/recordings/{recording_id}/markers/summary [get]
func (h *HTTPHandler) MarkersSummary(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.pathRecording(w, r)
	if !ok {
		return
	}

	markers, err := h.repository.ListMarkers(r.Context(), rec.ID, "", "")
	if err != nil {
		log.Printf("[ERROR] Failed to load markers for recording %d: %v", rec.ID, err)
		respondError(w, http.StatusInternalServerError, "Failed to build summary")
		return
	}

	respondJSON(w, http.StatusOK, BuildSummary(markers))
}

func (h *HTTPHandler) pathRecording(w http.ResponseWriter, r *http.Request) (*recording.Recording, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["recording_id"], 10, 64)
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

func (h *HTTPHandler) pathMarker(w http.ResponseWriter, r *http.Request) (*Marker, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid marker id")
		return nil, false
	}

	m, err := h.repository.GetMarker(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrMarkerNotFound) {
			respondError(w, http.StatusNotFound, "Marker not found")
		} else {
			log.Printf("[ERROR] Failed to get marker %d: %v", id, err)
			respondError(w, http.StatusInternalServerError, "Failed to get marker")
		}
		return nil, false
	}

	return m, true
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
