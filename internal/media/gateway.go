package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/radboard/internal/logger"
	"github.com/radboard/internal/model"
)

var (
	// ErrNotConfigured — провайдер не сконфигурирован (нет API-ключа).
	ErrNotConfigured = errors.New("media provider not configured")
	// ErrTransient — провайдер временно недоступен, вызов можно повторить.
	ErrTransient = errors.New("media provider unavailable")
	// ErrTimeout — видео-задание не завершилось за отведённый дедлайн опроса.
	ErrTimeout = errors.New("media job deadline exceeded")
	// ErrRejected — провайдер отклонил запрос (невалидный prompt, квота).
	ErrRejected = errors.New("media request rejected")
)

// Status — снимок состояния видео-задания на момент опроса.
// FullData — сырой объект генерации от провайдера, отдаётся клиенту как есть.
type Status struct {
	State    model.JobState  `json:"status"`
	VideoURL string          `json:"video_url,omitempty"`
	FullData json.RawMessage `json:"full_data,omitempty"`
}

// Gateway объединяет провайдеров генерации: синхронные изображения (Stability)
// и асинхронное видео (Luma). Каждый провайдер независимо опционален.
type Gateway struct {
	images *StabilityClient
	video  *LumaClient

	pollDeadline time.Duration

	mu        sync.Mutex
	submitted map[string]time.Time
}

func NewGateway(images *StabilityClient, video *LumaClient, pollDeadline time.Duration) *Gateway {
	return &Gateway{
		images:       images,
		video:        video,
		pollDeadline: pollDeadline,
		submitted:    make(map[string]time.Time),
	}
}

// GenerateImage синхронно генерирует изображение и возвращает его в base64.
func (g *Gateway) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if g.images == nil {
		return "", ErrNotConfigured
	}
	defer logger.DeferLogDuration("media.GenerateImage", time.Now())()
	return g.images.GenerateImage(ctx, prompt)
}

// SubmitVideo ставит видео-задание и возвращает его handle.
// Момент постановки запоминается для дедлайна опроса.
func (g *Gateway) SubmitVideo(ctx context.Context, prompt, aspectRatio string) (string, error) {
	if g.video == nil {
		return "", ErrNotConfigured
	}
	defer logger.DeferLogDuration("media.SubmitVideo", time.Now())()
	handle, err := g.video.Submit(ctx, prompt, aspectRatio)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.submitted[handle] = time.Now()
	g.mu.Unlock()
	logger.Infof("media: видео-задание поставлено, handle=%s", handle)
	return handle, nil
}

// VideoStatus опрашивает провайдера по handle. Терминальное состояние
// (completed/failed) снимает задание с учёта дедлайна; незавершённое задание
// старше pollDeadline возвращает ErrTimeout. Handle, поставленный до
// рестарта процесса, дедлайном не ограничивается.
func (g *Gateway) VideoStatus(ctx context.Context, handle string) (Status, error) {
	if g.video == nil {
		return Status{}, ErrNotConfigured
	}
	defer logger.DeferLogDuration("media.VideoStatus", time.Now())()

	st, err := g.video.Status(ctx, handle)
	if err != nil {
		return Status{}, err
	}
	if st.State.Terminal() {
		g.mu.Lock()
		delete(g.submitted, handle)
		g.mu.Unlock()
		return st, nil
	}

	g.mu.Lock()
	submittedAt, tracked := g.submitted[handle]
	g.mu.Unlock()
	if tracked && time.Since(submittedAt) > g.pollDeadline {
		g.mu.Lock()
		delete(g.submitted, handle)
		g.mu.Unlock()
		return Status{}, fmt.Errorf("handle %s: %w", handle, ErrTimeout)
	}
	return st, nil
}
