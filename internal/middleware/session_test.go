package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/radboard/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoUserID() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserID(r.Context())))
	})
}

func TestSessionAuthFromCookie(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.SetSession(context.Background(), "tok", "u1", time.Minute))

	h := SessionAuth(store)(echoUserID())
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "tok"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, "u1", rec.Body.String())
}

func TestSessionAuthFromHeader(t *testing.T) {
	store := memory.New()
	require.NoError(t, store.SetSession(context.Background(), "tok", "u1", time.Minute))

	h := SessionAuth(store)(echoUserID())
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Session-Token", "tok")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Equal(t, "u1", rec.Body.String())
}

func TestSessionAuthUnknownTokenIsAnonymous(t *testing.T) {
	h := SessionAuth(memory.New())(echoUserID())
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Session-Token", "ghost")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)

	assert.Empty(t, rec.Body.String())
}

func TestRequireAuth(t *testing.T) {
	h := RequireAuth(echoUserID())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(context.WithValue(r.Context(), UserIDKey, "u1"))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "****", MaskToken("abc"))
	assert.Equal(t, "abcd***", MaskToken("abcdefgh"))
}
