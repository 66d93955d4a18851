package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rate limit логина: 10 попыток / 10 минут на username.
const (
	loginRateLimitWindow = 600 // секунд
	loginRateLimitMax    = 10  // попыток за окно
	pushSubsKey          = "push_subs"
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// SetSession сохраняет userID по ключу session:{token} c TTL сессии.
func (c *Client) SetSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	return c.cli.Set(ctx, "session:"+token, userID, ttl).Err()
}

// GetSession возвращает userID сессии; пустая строка — токена нет (или истёк).
func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	val, err := c.cli.Get(ctx, "session:"+token).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

// DeleteSession удаляет сессию при logout.
func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.cli.Del(ctx, "session:"+token).Err()
}

// CheckLoginRateLimit проверяет login_limit:{username}: макс. loginRateLimitMax
// попыток за окно. При превышении — HTTP 429.
func (c *Client) CheckLoginRateLimit(ctx context.Context, username string) (allowed bool, err error) {
	key := "login_limit:" + username
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, key, loginRateLimitWindow*time.Second)
	}
	return n <= int64(loginRateLimitMax), nil
}

// AddPushSubscription сохраняет JSON подписки в множестве push_subs.
func (c *Client) AddPushSubscription(ctx context.Context, subscription string) error {
	return c.cli.SAdd(ctx, pushSubsKey, subscription).Err()
}

func (c *Client) ListPushSubscriptions(ctx context.Context) ([]string, error) {
	return c.cli.SMembers(ctx, pushSubsKey).Result()
}

// RemovePushSubscription удаляет протухшую подписку (404/410 от push-сервиса).
func (c *Client) RemovePushSubscription(ctx context.Context, subscription string) error {
	return c.cli.SRem(ctx, pushSubsKey, subscription).Err()
}

// FlushDB очищает текущую БД Redis (сброс сессий и подписок при тестах/перезапуске).
func (c *Client) FlushDB(ctx context.Context) error {
	return c.cli.FlushDB(ctx).Err()
}
