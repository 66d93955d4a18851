package push

import (
	"context"
	"encoding/json"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/radboard/internal/logger"
	"github.com/radboard/internal/storage"
)

// PushSubscription — подписка из браузера.
type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

// notification — payload пуша в браузер.
type notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Sender рассылает Web Push всем сохранённым подпискам.
// Доска общая, поэтому адресата нет: новое сообщение уходит всем.
type Sender struct {
	vapid *webpush.Options
	store storage.SessionStore
}

// NewSender создаёт рассыльщика. Без ключей возвращает nil: пуши отключены.
func NewSender(keys *VAPIDKeys, store storage.SessionStore) *Sender {
	if keys == nil || keys.PublicKey == "" || keys.PrivateKey == "" {
		return nil
	}
	return &Sender{
		vapid: &webpush.Options{
			Subscriber:      "radboard-push",
			VAPIDPublicKey:  keys.PublicKey,
			VAPIDPrivateKey: keys.PrivateKey,
			TTL:             30,
		},
		store: store,
	}
}

// NotifyAll отправляет уведомление по каждой подписке. Подписки,
// отвергнутые push-сервисом как протухшие (404/410), удаляются.
func (s *Sender) NotifyAll(ctx context.Context, title, body string, data map[string]string) {
	list, err := s.store.ListPushSubscriptions(ctx)
	if err != nil {
		logger.Errorf("push: список подписок: %v", err)
		return
	}
	if len(list) == 0 {
		return
	}

	payload, err := json.Marshal(notification{Title: title, Body: body, Data: data})
	if err != nil {
		logger.Errorf("push: marshal payload: %v", err)
		return
	}

	for _, raw := range list {
		var sub PushSubscription
		if json.Unmarshal([]byte(raw), &sub) != nil || sub.Endpoint == "" {
			continue
		}
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := webpush.SendNotificationWithContext(ctx, payload, wpSub, s.vapid)
		if err != nil {
			logger.Errorf("push: send %s: %v", sub.Endpoint[:min(50, len(sub.Endpoint))], err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == 410 || resp.StatusCode == 404 {
			if err := s.store.RemovePushSubscription(ctx, raw); err != nil {
				logger.Errorf("push: удаление подписки: %v", err)
			}
		}
	}
}
