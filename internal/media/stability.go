package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultStabilityURL = "https://api.stability.ai/v1/generation/stable-diffusion-xl-1024-v1-0/text-to-image"

// StabilityClient — синхронная генерация изображений через Stability AI.
type StabilityClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

// NewStabilityClient возвращает nil при пустом ключе: шлюз трактует это
// как "не сконфигурировано".
func NewStabilityClient(apiKey string) *StabilityClient {
	if apiKey == "" {
		return nil
	}
	return &StabilityClient{
		apiKey:  apiKey,
		baseURL: defaultStabilityURL,
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
}

type stabilityRequest struct {
	TextPrompts []stabilityPrompt `json:"text_prompts"`
	CfgScale    int               `json:"cfg_scale"`
	Height      int               `json:"height"`
	Width       int               `json:"width"`
	Samples     int               `json:"samples"`
	Steps       int               `json:"steps"`
}

type stabilityPrompt struct {
	Text string `json:"text"`
}

type stabilityResponse struct {
	Artifacts []struct {
		Base64 string `json:"base64"`
	} `json:"artifacts"`
}

// GenerateImage возвращает base64 первого артефакта.
func (c *StabilityClient) GenerateImage(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(stabilityRequest{
		TextPrompts: []stabilityPrompt{{Text: prompt}},
		CfgScale:    7,
		Height:      1024,
		Width:       1024,
		Samples:     1,
		Steps:       30,
	})
	if err != nil {
		return "", fmt.Errorf("stability: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("stability: request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("stability: %v: %w", err, ErrTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("stability: status %d: %w", resp.StatusCode, ErrTransient)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("stability: status %d: %w", resp.StatusCode, ErrRejected)
	}

	var out stabilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("stability: decode: %w", err)
	}
	if len(out.Artifacts) == 0 {
		return "", fmt.Errorf("stability: пустой ответ без артефактов: %w", ErrRejected)
	}
	return out.Artifacts[0].Base64, nil
}
