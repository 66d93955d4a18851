package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/radboard/internal/logger"
	"github.com/radboard/internal/storage"
)

const maxSubscriptionSize = 8 << 10

type PushHandler struct {
	store          storage.SessionStore
	vapidPublicKey string
}

func NewPushHandler(store storage.SessionStore, vapidPublicKey string) *PushHandler {
	return &PushHandler{store: store, vapidPublicKey: vapidPublicKey}
}

// VAPIDPublic отдаёт публичный VAPID-ключ для подписки в браузере.
func (h *PushHandler) VAPIDPublic(w http.ResponseWriter, r *http.Request) {
	if h.vapidPublicKey == "" {
		writeError(w, http.StatusNotImplemented, "push not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.vapidPublicKey})
}

// Subscribe сохраняет push-подписку браузера. Тело — подписка как есть
// (endpoint + keys); хранится дословно и используется при рассылке.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxSubscriptionSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	var sub struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.Unmarshal(raw, &sub); err != nil || sub.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "invalid subscription")
		return
	}
	if err := h.store.AddPushSubscription(r.Context(), string(raw)); err != nil {
		logger.Errorf("push subscribe: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
