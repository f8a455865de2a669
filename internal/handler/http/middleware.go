package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/natusdeed/fashion-site-sub000/internal/session"
	"github.com/natusdeed/fashion-site-sub000/pkg/httputil"
	"github.com/natusdeed/fashion-site-sub000/pkg/logger"
	"github.com/natusdeed/fashion-site-sub000/pkg/middleware"
)

// SessionCookie carries the session id for browsers that do not send the
// X-Session-ID header.
const SessionCookie = "lola_drip_session"

const sessionCookieMaxAge = 365 * 24 * time.Hour

type contextKey string

const sessionKey contextKey = "session"

// Sessions resolves the request's session from the X-Session-ID header or
// the session cookie and opens its containers. A read-only request without
// a usable id is served an empty transient session and issued nothing; any
// other request without one is issued a new id, returned in both the header
// and the cookie. The request logger gains the session_id field.
func Sessions(m *session.Manager, fallback *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := requestSessionID(r)
			if id == "" && isReadOnly(r) {
				s, err := m.Transient()
				if err != nil {
					httputil.WriteError(w, r, err, fallback)
					return
				}
				next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey, s)))
				return
			}
			if id == "" {
				id = session.NewID()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    id,
					Path:     "/",
					MaxAge:   int(sessionCookieMaxAge.Seconds()),
					HttpOnly: true,
					Secure:   isHTTPS(r),
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(middleware.SessionHeader, id)

			l := logger.FromContextOr(r.Context(), fallback).With(slog.String("session_id", id))
			ctx := logger.NewContext(logger.WithSessionID(r.Context(), id), l)
			r = r.WithContext(ctx)

			s, err := m.Open(ctx, id)
			if err != nil {
				httputil.WriteError(w, r, err, fallback)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey, s)))
		})
	}
}

// requestSessionID returns the first valid id from the header or the
// cookie, or "" when neither carries one.
func requestSessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(middleware.SessionHeader)); session.ValidID(id) {
		return id
	}
	if c, err := r.Cookie(SessionCookie); err == nil && session.ValidID(c.Value) {
		return c.Value
	}
	return ""
}

func isReadOnly(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// sessionFromContext returns the session opened by Sessions.
func sessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey).(*session.Session)
	return s
}

// ContentTypeJSON rejects request bodies that are not JSON.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
