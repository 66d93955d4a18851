package storage

import (
	"context"
	"time"
)

// SessionStore — хранилище сессий, rate limit логина и push-подписок.
// Реализации: redis.Client, memory.Client (для -dev без Redis).
type SessionStore interface {
	SetSession(ctx context.Context, token, userID string, ttl time.Duration) error
	// GetSession возвращает userID сессии; пустая строка — токен не найден или истёк.
	GetSession(ctx context.Context, token string) (string, error)
	DeleteSession(ctx context.Context, token string) error
	CheckLoginRateLimit(ctx context.Context, username string) (allowed bool, err error)
	AddPushSubscription(ctx context.Context, subscription string) error
	ListPushSubscriptions(ctx context.Context) ([]string, error)
	RemovePushSubscription(ctx context.Context, subscription string) error
	Close() error
}
