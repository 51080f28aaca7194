package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/xilidan/meetings/pkg/json"
	"github.com/xilidan/meetings/pkg/jwt"
)

type ctxKey string

const subjectKey ctxKey = "subject"

// Authenticate requires a valid HS256 bearer token once a secret is
// configured. Without a secret every request passes.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	if h.jwtSecret == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := jwt.ParseTokenFromHeader(r)
		if err != nil {
			h.log.Debug("access denied", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
			json.WriteError(w, err)
			return
		}

		subject, err := jwt.ParseSubject(r.Context(), token, h.jwtSecret)
		if err != nil {
			h.log.Debug("access denied", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
			json.WriteError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), subjectKey, subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Subject returns the token subject of an authenticated request.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey).(string)
	return s
}

// RequestLogger logs one line per request through slog.
func RequestLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			started := time.Now()

			next.ServeHTTP(ww, r)

			log.Info("http request",
				slog.String("request_id", middleware.GetReqID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int("bytes", ww.BytesWritten()),
				slog.Duration("duration", time.Since(started)),
			)
		})
	}
}
