// Package respond writes JSON responses. Every error body has the shape
// {"error": "<short message>"}.
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

const contentType = "application/json; charset=utf-8"

// ErrorBody is the JSON error envelope.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes v with status. Encoding failures after the header is written
// can only be logged.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		Error(w, r, http.StatusInternalServerError, "Internal server error", err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	if _, err := w.Write(append(payload, '\n')); err != nil && r != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("write response")
	}
}

// Error writes message as the error body. err is logged, never sent: 5xx at
// error level, 4xx at warn.
func Error(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	if r != nil && err != nil {
		logger := zerolog.Ctx(r.Context())
		var event *zerolog.Event
		if status >= http.StatusInternalServerError {
			event = logger.Error()
		} else {
			event = logger.Warn()
		}
		event.Err(err).
			Int("status", status).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg(message)
	}

	payload, _ := json.Marshal(ErrorBody{Error: message})
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(append(payload, '\n'))
}

// Success writes {"success": true}.
func Success(w http.ResponseWriter, r *http.Request) {
	JSON(w, r, http.StatusOK, map[string]bool{"success": true})
}
