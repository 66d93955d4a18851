package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/radboard/internal/logger"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func queryInt(r *http.Request, key string, defaultVal int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// wantsJSON: SPA-клиенты шлют Accept: application/json и получают JSON;
// обычная форма получает 303-редирект на ленту.
func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

// formValues достаёт значения полей из формы либо из JSON-тела —
// форма классического фронта и JSON SPA обслуживаются одним handler'ом.
func formValues(r *http.Request, keys ...string) map[string]string {
	out := make(map[string]string, len(keys))
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			for _, k := range keys {
				out[k] = body[k]
			}
			return out
		}
		return out
	}
	for _, k := range keys {
		out[k] = r.FormValue(k)
	}
	return out
}
