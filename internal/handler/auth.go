package handler

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/radboard/internal/auth"
	"github.com/radboard/internal/board"
	"github.com/radboard/internal/logger"
	"github.com/radboard/internal/middleware"
)

type AuthHandler struct {
	authSvc  *auth.Service
	boardSvc *board.Service
	ttl      time.Duration
}

func NewAuthHandler(authSvc *auth.Service, boardSvc *board.Service, ttl time.Duration) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, boardSvc: boardSvc, ttl: ttl}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   os.Getenv("APP_ENV") == "production",
	})
}

// Register создаёт пользователя и сразу логинит его.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	v := formValues(r, "username", "password", "avatar")
	if _, err := h.authSvc.Register(r.Context(), v["username"], v["password"], v["avatar"]); err != nil {
		switch {
		case errors.Is(err, auth.ErrValidation):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrUsernameTaken):
			writeError(w, http.StatusConflict, "username taken")
		default:
			logger.Errorf("register %s: %v", v["username"], err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}

	token, u, err := h.authSvc.Login(r.Context(), v["username"], v["password"])
	if err != nil {
		logger.Errorf("register auto-login %s: %v", v["username"], err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.setSessionCookie(w, token, h.ttl)
	if wantsJSON(r) {
		writeJSON(w, http.StatusCreated, map[string]any{"token": token, "user": u.ToPublic()})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Login проверяет пароль и выдаёт сессию (cookie + token в JSON-ответе).
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	v := formValues(r, "username", "password")
	token, u, err := h.authSvc.Login(r.Context(), v["username"], v["password"])
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrRateLimited):
			writeError(w, http.StatusTooManyRequests, "too many attempts")
		default:
			logger.Errorf("login %s: %v", v["username"], err)
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
		return
	}
	h.setSessionCookie(w, token, h.ttl)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u.ToPublic()})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Logout гасит сессию и сбрасывает cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.TokenFromRequest(r)
	if err := h.authSvc.Logout(r.Context(), token); err != nil {
		logger.Errorf("logout token=%s: %v", middleware.MaskToken(token), err)
	}
	h.setSessionCookie(w, "", -time.Hour)
	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Profile возвращает публичный профиль и сообщения автора.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	pub, messages, err := h.boardSvc.Profile(r.Context(), username)
	if err != nil {
		boardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": pub, "messages": messages})
}
