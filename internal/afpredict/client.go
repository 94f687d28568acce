package afpredict

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"time"
)

// Client общается с внешним сервисом анализа по HTTP
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создает клиент сервиса анализа.
// Таймаут чтения задается отдельно от таймаута установки соединения:
// анализ длинной записи занимает десятки секунд, а недоступный
// сервис должен обнаруживаться быстро.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
			},
		},
	}
}

type predictRequest struct {
	Samples    []float64 `json:"samples"`
	SampleRate int       `json:"sample_rate"`
}

// Predict отправляет сигнал на анализ и возвращает разобранный результат
func (c *Client) Predict(ctx context.Context, samples []float64, sampleRate int) (*Result, error) {
	body, err := json.Marshal(predictRequest{
		Samples:    samples,
		SampleRate: sampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction request: %w", err)
	}

	url := c.baseURL + "/api/predict-af"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	log.Printf("[AF] Sending %d samples to %s", len(samples), c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("prediction service unavailable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read prediction response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("prediction service returned %d: %s", resp.StatusCode, respBody)
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to decode prediction response: %w", err)
	}

	if result.Status == "error" {
		return nil, fmt.Errorf("prediction failed: %s", result.Message)
	}

	return &result, nil
}

// Health проверяет доступность сервиса анализа
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("prediction service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("prediction service unhealthy: %d", resp.StatusCode)
	}

	return nil
}
