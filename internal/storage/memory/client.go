package memory

import (
	"context"
	"sync"
	"time"
)

const (
	loginRateLimitWindow = 600 * time.Second
	loginRateLimitMax    = 10
)

type item struct {
	val string
	exp time.Time
}

type Client struct {
	mu       sync.RWMutex
	sessions map[string]item
	limit    map[string][]time.Time
	subs     map[string]struct{}
}

func New() *Client {
	return &Client{
		sessions: make(map[string]item),
		limit:    make(map[string][]time.Time),
		subs:     make(map[string]struct{}),
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetSession(ctx context.Context, token, userID string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[token] = item{val: userID, exp: time.Now().Add(ttl)}
	return nil
}

func (c *Client) GetSession(ctx context.Context, token string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sessions[token]
	if !ok || time.Now().After(v.exp) {
		return "", nil
	}
	return v.val, nil
}

func (c *Client) DeleteSession(ctx context.Context, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, token)
	return nil
}

func (c *Client) CheckLoginRateLimit(ctx context.Context, username string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	cut := now.Add(-loginRateLimitWindow)
	slice := c.limit[username]
	var kept []time.Time
	for _, t := range slice {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= loginRateLimitMax {
		return false, nil
	}
	kept = append(kept, now)
	c.limit[username] = kept
	return true, nil
}

func (c *Client) AddPushSubscription(ctx context.Context, subscription string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[subscription] = struct{}{}
	return nil
}

func (c *Client) ListPushSubscriptions(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.subs))
	for s := range c.subs {
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) RemovePushSubscription(ctx context.Context, subscription string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, subscription)
	return nil
}
