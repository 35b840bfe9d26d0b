package ecommerce

import (
	"context"
	"net/http"
)

// Session carries the browser credentials forwarded to upstream services.
type Session struct {
	// Cookie is the raw Cookie header of the browser request.
	Cookie string
	// CSRFToken is sent as X-CSRFToken on mutating e-commerce requests.
	CSRFToken string
	// LMSCSRFToken is sent as X-CSRFToken on LMS requests.
	LMSCSRFToken string
}

type sessionKey struct{}

// WithSession returns a context carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFrom returns the session in ctx, or an empty one.
func SessionFrom(ctx context.Context) Session {
	s, _ := ctx.Value(sessionKey{}).(Session)
	return s
}

// SessionFromRequest reads the session of an incoming browser request.
// csrfCookie names the cookie holding the e-commerce CSRF token.
func SessionFromRequest(r *http.Request, csrfCookie string) Session {
	s := Session{Cookie: r.Header.Get("Cookie")}
	if c, err := r.Cookie(csrfCookie); err == nil {
		s.CSRFToken = c.Value
	}
	if c, err := r.Cookie("csrftoken"); err == nil {
		s.LMSCSRFToken = c.Value
	}
	return s
}
