package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	SessionCookieName = "session_id"
	sessionMaxAge     = 365 * 24 * time.Hour
)

// Session identifies the player by the session_id cookie, issuing a new
// random one when the request has none or the cookie is not a UUID.
// Sessions carry no credentials; they only group the stories a browser
// created.
type Session struct {
	secure bool
}

func NewSession(secure bool) *Session {
	return &Session{secure: secure}
}

func (s *Session) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := ""
		if c, err := r.Cookie(SessionCookieName); err == nil {
			if _, err := uuid.Parse(c.Value); err == nil {
				id = c.Value
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    id,
				Path:     "/",
				MaxAge:   int(sessionMaxAge.Seconds()),
				HttpOnly: true,
				Secure:   s.secure,
				SameSite: http.SameSiteLaxMode,
			})
		}
		next.ServeHTTP(w, r.WithContext(SetSessionID(r.Context(), id)))
	})
}
