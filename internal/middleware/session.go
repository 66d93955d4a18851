package middleware

import (
	"context"
	"net/http"

	"github.com/radboard/internal/logger"
	"github.com/radboard/internal/storage"
)

// SessionCookieName — cookie с токеном сессии. SPA-клиенты могут вместо
// cookie передавать токен в заголовке X-Session-Token.
const SessionCookieName = "session_token"

// TokenFromRequest достаёт токен сессии из запроса; пустая строка — токена нет.
func TokenFromRequest(r *http.Request) string {
	if token := r.Header.Get("X-Session-Token"); token != "" {
		return token
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// SessionAuth резолвит токен сессии в user_id и кладёт его в контекст.
// Запрос без валидной сессии проходит дальше анонимным: границу
// проводит RequireAuth на защищённых маршрутах.
func SessionAuth(store storage.SessionStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := store.GetSession(r.Context(), token)
			if err != nil {
				logger.Errorf("session middleware token=%s: %v", MaskToken(token), err)
				next.ServeHTTP(w, r)
				return
			}
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth отклоняет запросы без user_id в контексте.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
