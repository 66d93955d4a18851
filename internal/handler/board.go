package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/radboard/internal/board"
	"github.com/radboard/internal/logger"
	"github.com/radboard/internal/media"
	"github.com/radboard/internal/middleware"
	"github.com/radboard/internal/repository"
)

type BoardHandler struct {
	svc *board.Service
}

func NewBoardHandler(svc *board.Service) *BoardHandler {
	return &BoardHandler{svc: svc}
}

// boardError переводит доменные ошибки в HTTP-статус.
func boardError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, board.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, board.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, media.ErrNotConfigured):
		writeError(w, http.StatusNotImplemented, "media provider not configured")
	case errors.Is(err, media.ErrTransient):
		writeError(w, http.StatusBadGateway, "media provider unavailable")
	case errors.Is(err, media.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "media job deadline exceeded")
	case errors.Is(err, media.ErrRejected):
		writeError(w, http.StatusBadGateway, "media request rejected")
	case errors.Is(err, repository.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		logger.Errorf("board handler: %v", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// Feed возвращает агрегированную ленту и популярные теги.
func (h *BoardHandler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 0)
	messages, err := h.svc.Feed(r.Context(), limit)
	if err != nil {
		boardError(w, err)
		return
	}
	tags, err := h.svc.PopularTags(r.Context(), queryInt(r, "tags_limit", 0))
	if err != nil {
		boardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"messages":     messages,
		"popular_tags": tags,
	})
}

// TagFeed возвращает ленту по тегу.
func (h *BoardHandler) TagFeed(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "name")
	messages, err := h.svc.TagFeed(r.Context(), tag, queryInt(r, "limit", 0))
	if err != nil {
		boardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tag": board.NormalizeTag(tag), "messages": messages})
}

// PostMessage публикует сообщение (контент, теги, опциональные медиа).
func (h *BoardHandler) PostMessage(w http.ResponseWriter, r *http.Request) {
	v := formValues(r, "content", "tags", "image_data", "video_id")
	m, err := h.svc.PostMessage(r.Context(), middleware.GetUserID(r.Context()), board.PostMessageInput{
		Content:   v["content"],
		Tags:      v["tags"],
		ImageData: v["image_data"],
		VideoID:   v["video_id"],
	})
	if err != nil {
		boardError(w, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, m)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// PostComment добавляет комментарий к сообщению.
func (h *BoardHandler) PostComment(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	v := formValues(r, "content")
	c, err := h.svc.PostComment(r.Context(), middleware.GetUserID(r.Context()), messageID, v["content"])
	if err != nil {
		boardError(w, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, c)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// AddReaction ставит реакцию и возвращает пересчитанные счётчики.
func (h *BoardHandler) AddReaction(w http.ResponseWriter, r *http.Request) {
	messageID := chi.URLParam(r, "messageID")
	reaction := chi.URLParam(r, "reaction")
	counts, err := h.svc.AddReaction(r.Context(), middleware.GetUserID(r.Context()), messageID, reaction)
	if err != nil {
		boardError(w, err)
		return
	}
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"message_id": messageID, "reactions": counts})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// GenerateImage синхронно генерирует изображение, отдаёт base64.
func (h *BoardHandler) GenerateImage(w http.ResponseWriter, r *http.Request) {
	v := formValues(r, "prompt")
	data, err := h.svc.GenerateImage(r.Context(), v["prompt"])
	if err != nil {
		boardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"image_data": data})
}

// GenerateVideo ставит видео-задание, отдаёт handle.
func (h *BoardHandler) GenerateVideo(w http.ResponseWriter, r *http.Request) {
	v := formValues(r, "prompt", "aspect_ratio")
	handle, err := h.svc.GenerateVideo(r.Context(), v["prompt"], v["aspect_ratio"])
	if err != nil {
		boardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"generation_id": handle})
}

// CheckVideoStatus опрашивает видео-задание.
func (h *BoardHandler) CheckVideoStatus(w http.ResponseWriter, r *http.Request) {
	handle := chi.URLParam(r, "generationID")
	st, err := h.svc.CheckVideoStatus(r.Context(), handle)
	if err != nil {
		boardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// UpdateVideoURL вручную проставляет URL видео (только автор сообщения).
func (h *BoardHandler) UpdateVideoURL(w http.ResponseWriter, r *http.Request) {
	v := formValues(r, "message_id", "video_url")
	err := h.svc.UpdateVideoURL(r.Context(), middleware.GetUserID(r.Context()), v["message_id"], v["video_url"])
	if err != nil {
		boardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
