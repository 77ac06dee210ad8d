package memsession

import (
	"net/http"
	"strings"
	"time"
)

// DefaultCookieName is the cookie that carries the session id.
const DefaultCookieName = "shelf_session_id"

type cookieCodec struct {
	name     string
	sameSite http.SameSite
	now      func() time.Time
}

// extractID returns the session id carried by the Cookie header lines in h.
// Each line is split on ';' and each pair on its first '='. Pairs that do
// not parse are skipped, so an odd cookie set by another application never
// hides the session cookie. The last occurrence of the name wins, and a
// value that is not a well-formed id is reported as absent.
func (c cookieCodec) extractID(h http.Header) (string, bool) {
	var (
		id    string
		found bool
	)
	for _, line := range h.Values("Cookie") {
		for _, part := range strings.Split(line, ";") {
			name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
			if !ok || strings.TrimSpace(name) != c.name {
				continue
			}
			id, found = strings.TrimSpace(value), true
		}
	}
	if !found || !isValidID(id) {
		return "", false
	}
	return id, true
}

// build returns the cookie announcing id until expires.
// Callers must not build cookies for sessions that already expired.
func (c cookieCodec) build(id string, expires time.Time, secure bool) *http.Cookie {
	maxAge := int(expires.Sub(c.now()).Round(time.Second) / time.Second)
	if maxAge == 0 {
		// http.Cookie treats 0 as "no Max-Age"; -1 emits Max-Age=0.
		maxAge = -1
	}
	return &http.Cookie{
		Name:     c.name,
		Value:    id,
		Path:     "/",
		Expires:  expires,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: c.sameSite,
	}
}

// clear returns a cookie instructing the client to drop the session id.
func (c cookieCodec) clear(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: c.sameSite,
	}
}

// isSecureRequest reports whether r arrived over https.
func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || r.URL.Scheme == "https"
}
