package media

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/radboard/internal/model"
)

const defaultLumaURL = "https://api.lumalabs.ai/dream-machine/v1/generations"

// LumaClient — асинхронная генерация видео через Luma Dream Machine:
// submit возвращает handle, статус опрашивается отдельно.
type LumaClient struct {
	apiKey  string
	baseURL string
	httpc   *http.Client
}

func NewLumaClient(apiKey string) *LumaClient {
	if apiKey == "" {
		return nil
	}
	return &LumaClient{
		apiKey:  apiKey,
		baseURL: defaultLumaURL,
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

type lumaSubmitRequest struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio"`
	Loop        bool   `json:"loop"`
}

type lumaGeneration struct {
	ID     string `json:"id"`
	State  string `json:"state"`
	Assets struct {
		Video string `json:"video"`
	} `json:"assets"`
	FailureReason string `json:"failure_reason"`
}

// Submit ставит задание и возвращает его id у провайдера.
func (c *LumaClient) Submit(ctx context.Context, prompt, aspectRatio string) (string, error) {
	if aspectRatio == "" {
		aspectRatio = "16:9"
	}
	body, err := json.Marshal(lumaSubmitRequest{Prompt: prompt, AspectRatio: aspectRatio, Loop: true})
	if err != nil {
		return "", fmt.Errorf("luma: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(string(body)))
	if err != nil {
		return "", fmt.Errorf("luma: request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("luma: %v: %w", err, ErrTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("luma: status %d: %w", resp.StatusCode, ErrTransient)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("luma: status %d: %w", resp.StatusCode, ErrRejected)
	}

	var gen lumaGeneration
	if err := json.NewDecoder(resp.Body).Decode(&gen); err != nil {
		return "", fmt.Errorf("luma: decode: %w", err)
	}
	if gen.ID == "" {
		return "", fmt.Errorf("luma: ответ без id задания: %w", ErrRejected)
	}
	return gen.ID, nil
}

// Status опрашивает задание по handle.
func (c *LumaClient) Status(ctx context.Context, handle string) (Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+handle, nil)
	if err != nil {
		return Status{}, fmt.Errorf("luma: request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return Status{}, fmt.Errorf("luma: %v: %w", err, ErrTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return Status{}, fmt.Errorf("luma: status %d: %w", resp.StatusCode, ErrTransient)
	}
	if resp.StatusCode != http.StatusOK {
		return Status{}, fmt.Errorf("luma: status %d: %w", resp.StatusCode, ErrRejected)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Status{}, fmt.Errorf("luma: read body: %w", err)
	}
	var gen lumaGeneration
	if err := json.Unmarshal(raw, &gen); err != nil {
		return Status{}, fmt.Errorf("luma: decode: %w", err)
	}
	return Status{State: mapLumaState(gen.State), VideoURL: gen.Assets.Video, FullData: raw}, nil
}

func (c *LumaClient) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// mapLumaState переводит состояние провайдера в доменное.
// Неизвестные промежуточные состояния считаются processing: клиент
// продолжит опрашивать, а дедлайн шлюза не даст опросу жить вечно.
func mapLumaState(state string) model.JobState {
	switch state {
	case "queued":
		return model.JobSubmitted
	case "dreaming", "processing":
		return model.JobProcessing
	case "completed":
		return model.JobCompleted
	case "failed":
		return model.JobFailed
	default:
		return model.JobProcessing
	}
}
