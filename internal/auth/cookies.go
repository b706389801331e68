package auth

import (
	"net/http"
	"time"
)

// Cookie names carrying the tokens.
const (
	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"
)

// CookieTransport moves tokens between HTTP cookies and the token service.
// A missing cookie is reported as absent, never as an error.
type CookieTransport struct {
	secure bool
	path   string
}

// NewCookieTransport constructs a transport. secure should only be false in
// local development over plain HTTP.
func NewCookieTransport(secure bool) *CookieTransport {
	return &CookieTransport{secure: secure, path: "/"}
}

// Access returns the access token cookie value.
func (c *CookieTransport) Access(r *http.Request) (string, bool) {
	return read(r, AccessCookie)
}

// Refresh returns the refresh token cookie value.
func (c *CookieTransport) Refresh(r *http.Request) (string, bool) {
	return read(r, RefreshCookie)
}

// SetAccess writes the access token cookie.
func (c *CookieTransport) SetAccess(w http.ResponseWriter, value string, expiresAt time.Time) {
	c.write(w, AccessCookie, value, expiresAt)
}

// SetRefresh writes the refresh token cookie.
func (c *CookieTransport) SetRefresh(w http.ResponseWriter, value string, expiresAt time.Time) {
	c.write(w, RefreshCookie, value, expiresAt)
}

// Clear expires both token cookies.
func (c *CookieTransport) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     c.path,
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   c.secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

func (c *CookieTransport) write(w http.ResponseWriter, name, value string, expiresAt time.Time) {
	maxAge := int(time.Until(expiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     c.path,
		Expires:  expiresAt.UTC(),
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func read(r *http.Request, name string) (string, bool) {
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
