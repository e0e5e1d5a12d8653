package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
)

// SessionCookieName names the cookie carrying the signed session id.
const SessionCookieName = "turbogen_session"

// Sessions issues and verifies the signed cookie that ties a browser to its
// studio controller.
type Sessions struct {
	codec  *securecookie.SecureCookie
	ttl    time.Duration
	secure bool
}

// NewSessions builds a cookie codec. An empty secret gets a random key, so
// sessions do not survive a restart.
func NewSessions(secret string, ttl time.Duration, secure bool) *Sessions {
	key := []byte(secret)
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	codec := securecookie.New(key, nil)
	codec.MaxAge(int(ttl / time.Second))
	return &Sessions{codec: codec, ttl: ttl, secure: secure}
}

// Middleware loads the session id from the cookie, or starts a new session,
// and refreshes the cookie so it expires together with the idle session.
func (s *Sessions) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := s.decode(r)
		if id == "" {
			id = uuid.NewString()
		}
		if value, err := s.codec.Encode(SessionCookieName, id); err == nil {
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    value,
				Path:     "/",
				MaxAge:   int(s.ttl / time.Second),
				HttpOnly: true,
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := context.WithValue(r.Context(), sessionIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Sessions) decode(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	var id string
	if err := s.codec.Decode(SessionCookieName, c.Value, &id); err != nil {
		return ""
	}
	if _, err := uuid.Parse(id); err != nil {
		return ""
	}
	return id
}

func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// ContextWithSessionID is used by callers that drive a controller outside an
// HTTP request, such as tests.
func ContextWithSessionID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, sessionIDKey, id)
}
