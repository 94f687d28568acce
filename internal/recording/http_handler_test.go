package recording

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/srwicak/unastelemed/internal/timeline"
)

func newTestServer() (*httptest.Server, *Manager) {
	m, _, _ := newTestManager()
	handler := NewHTTPHandler(m, timeline.NewReconstructor(10000))

	router := mux.NewRouter()
	handler.RegisterRoutes(router)

	return httptest.NewServer(router), m
}

func postJSON(t *testing.T, url string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	encoded, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to encode request: %v", err)
	}

	resp, err := http.Post(url, "application/json", bytes.NewReader(encoded))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	var decoded map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	return resp, decoded
}

func TestHTTP_IngestStatusCodes(t *testing.T) {
	server, m := newTestServer()
	defer server.Close()

	rec, _, err := m.StartRecording(context.Background(), &StartRequest{SessionID: "http-1"})
	if err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	url := fmt.Sprintf("%s/api/recordings/%d/data", server.URL, rec.ID)
	payload := payloadAt(0, time.Now(), []float64{1, 2, 3})

	// Первая доставка - 201
	resp, body := postJSON(t, url, payload)
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected 201 for first delivery, got %d", resp.StatusCode)
	}
	if body["is_duplicate"] != false {
		t.Errorf("Expected is_duplicate=false, got %v", body["is_duplicate"])
	}

	// Ретрай того же sequence - 200
	resp, body = postJSON(t, url, payload)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for duplicate, got %d", resp.StatusCode)
	}
	if body["is_duplicate"] != true {
		t.Errorf("Expected is_duplicate=true, got %v", body["is_duplicate"])
	}

	// Невалидный батч - 400
	resp, _ = postJSON(t, url, payloadAt(1, time.Now(), nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty samples, got %d", resp.StatusCode)
	}

	// Неизвестная запись - 404
	resp, _ = postJSON(t, server.URL+"/api/recordings/999/data", payload)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown recording, got %d", resp.StatusCode)
	}

	// После остановки - 422
	if _, _, err := m.StopRecording(context.Background(), &StopRequest{RecordingID: rec.ID}); err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	resp, _ = postJSON(t, url, payloadAt(2, time.Now(), []float64{1}))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422 after stop, got %d", resp.StatusCode)
	}
}

func TestHTTP_StartReuseReturns200(t *testing.T) {
	server, _ := newTestServer()
	defer server.Close()

	url := server.URL + "/api/recordings/start"

	resp, _ := postJSON(t, url, &StartRequest{SessionID: "http-reuse"})
	if resp.StatusCode != http.StatusCreated {
		t.Errorf("Expected 201 for new session, got %d", resp.StatusCode)
	}

	resp, _ = postJSON(t, url, &StartRequest{SessionID: "http-reuse"})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for reused session, got %d", resp.StatusCode)
	}
}

func TestHTTP_ChartData(t *testing.T) {
	server, m := newTestServer()
	defer server.Close()

	rec, _, err := m.StartRecording(context.Background(), &StartRequest{SessionID: "http-chart", SampleRate: 4})
	if err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	start := time.Now()
	if _, _, err := m.IngestBatch(context.Background(), rec.ID, payloadAt(0, start, []float64{1, 2, 3, 4})); err != nil {
		t.Fatalf("IngestBatch failed: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("%s/api/recordings/%d/chart_data", server.URL, rec.ID))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	var body struct {
		Points []timeline.Point `json:"points"`
		Meta   struct {
			SampleCount     int    `json:"sample_count"`
			SkipFactor      int    `json:"skip_factor"`
			RecordingStatus string `json:"recording_status"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(body.Points) != 4 {
		t.Errorf("Expected 4 points, got %d", len(body.Points))
	}
	if body.Meta.SkipFactor != 1 {
		t.Errorf("Expected skip factor 1, got %d", body.Meta.SkipFactor)
	}
	if body.Meta.RecordingStatus != string(StatusRecording) {
		t.Errorf("Expected status recording, got %s", body.Meta.RecordingStatus)
	}
}

func TestHTTP_DuplicateDoesNotInflateChart(t *testing.T) {
	m, _, _ := newTestManager()
	handler := NewHTTPHandler(m, timeline.NewReconstructor(6))

	router := mux.NewRouter()
	handler.RegisterRoutes(router)
	server := httptest.NewServer(router)
	defer server.Close()

	// Полный сценарий устройства: три батча по 4000 сэмплов,
	// затем вербатимный ретрай батча 1
	resp, body := postJSON(t, server.URL+"/api/recordings/start",
		&StartRequest{SessionID: "http-e2e", SampleRate: 4000})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected 201 on start, got %d", resp.StatusCode)
	}
	recID := int64(body["recording"].(map[string]interface{})["id"].(float64))

	samples := make([]float64, 4000)
	for i := range samples {
		samples[i] = float64(i % 100)
	}

	dataURL := fmt.Sprintf("%s/api/recordings/%d/data", server.URL, recID)
	start := time.Now()
	for seq := int64(0); seq < 3; seq++ {
		resp, _ := postJSON(t, dataURL, payloadAt(seq, start.Add(time.Duration(seq)*time.Second), samples))
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("Expected 201 for batch %d, got %d", seq, resp.StatusCode)
		}
	}

	resp, body = postJSON(t, dataURL, payloadAt(1, start.Add(time.Second), samples))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 for redelivered batch, got %d", resp.StatusCode)
	}
	if body["total_samples"] != float64(12000) {
		t.Errorf("Redelivery must not inflate total_samples: expected 12000, got %v", body["total_samples"])
	}

	chartResp, err := http.Get(fmt.Sprintf("%s/api/recordings/%d/chart_data", server.URL, recID))
	if err != nil {
		t.Fatalf("Chart request failed: %v", err)
	}
	defer chartResp.Body.Close()

	var chart struct {
		Points []timeline.Point `json:"points"`
		Meta   struct {
			SkipFactor int `json:"skip_factor"`
		} `json:"meta"`
	}
	if err := json.NewDecoder(chartResp.Body).Decode(&chart); err != nil {
		t.Fatalf("Failed to decode chart response: %v", err)
	}

	// Шаг прореживания считается от 12000 уникальных сэмплов,
	// а не от 16000 доставленных
	if chart.Meta.SkipFactor != 2000 {
		t.Errorf("Expected skip factor 2000 from deduplicated total, got %d", chart.Meta.SkipFactor)
	}

	// 6 чанков по 2 экстремума
	if len(chart.Points) != 12 {
		t.Errorf("Expected 12 chart points, got %d", len(chart.Points))
	}
}

func TestHTTP_StopBodyHandling(t *testing.T) {
	server, m := newTestServer()
	defer server.Close()

	// Битый JSON на коллекционном маршруте - ошибка клиента, не 404
	resp, err := http.Post(server.URL+"/api/recordings/stop", "application/json", strings.NewReader("{broken"))
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed stop body, got %d", resp.StatusCode)
	}

	// Пустое тело на member-маршруте допустимо
	rec, _, err := m.StartRecording(context.Background(), &StartRequest{SessionID: "http-stop-body"})
	if err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	resp, err = http.Post(fmt.Sprintf("%s/api/recordings/%d/stop", server.URL, rec.ID), "application/json", nil)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for member stop without body, got %d", resp.StatusCode)
	}
}

func TestHTTP_RecoverData(t *testing.T) {
	server, m := newTestServer()
	defer server.Close()

	rec, _, err := m.StartRecording(context.Background(), &StartRequest{SessionID: "http-recover"})
	if err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	url := fmt.Sprintf("%s/api/recordings/%d/recover_data", server.URL, rec.ID)
	start := time.Now()

	resp, body := postJSON(t, url, RecoverRequest{Batches: []BatchPayload{
		*payloadAt(0, start, []float64{1, 2}),
		*payloadAt(1, start.Add(time.Second), []float64{3}),
	}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}
	if body["processed_count"] != float64(2) {
		t.Errorf("Expected processed_count=2, got %v", body["processed_count"])
	}

	// Пустой массив - 400
	resp, _ = postJSON(t, url, RecoverRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected 400 for empty batches, got %d", resp.StatusCode)
	}
}
