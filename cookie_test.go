package memsession

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCookieCodec_ExtractID(t *testing.T) {
	codec := cookieCodec{name: DefaultCookieName, now: time.Now}
	id := strings.Repeat("a", 16) + strings.Repeat("Z", 16)

	tests := []struct {
		name    string
		headers []string
		wantID  string
		wantOK  bool
	}{
		{"no header", nil, "", false},
		{"single cookie", []string{"shelf_session_id=" + id}, id, true},
		{"among others", []string{"theme=dark; shelf_session_id=" + id + "; lang=en"}, id, true},
		{"other name", []string{"session=" + id}, "", false},
		{"malformed id", []string{"shelf_session_id=not-an-id"}, "", false},
		{"empty header", []string{""}, "", false},
		{"broken pair is skipped", []string{"shelf_session_id=" + id + "; =broken"}, id, true},
		{"json cookie before session", []string{`prefs={"a":1}; shelf_session_id=` + id}, id, true},
		{"json cookie after session", []string{"shelf_session_id=" + id + `; prefs={"a":1,"b":[2]}`}, id, true},
		{"pair without equals", []string{"garbage; shelf_session_id=" + id}, id, true},
		{"tight separators", []string{"a=1;shelf_session_id=" + id + ";b=2"}, id, true},
		{"only garbage", []string{"garbage"}, "", false},
		{"value with equals", []string{"shelf_session_id=" + id + "=x"}, "", false},
		{"last occurrence wins", []string{"shelf_session_id=" + strings.Repeat("b", 32), "shelf_session_id=" + id}, id, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for _, v := range tt.headers {
				h.Add("Cookie", v)
			}
			got, ok := codec.extractID(h)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, got)
		})
	}
}

func TestCookieCodec_Build(t *testing.T) {
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	codec := cookieCodec{name: "sid", sameSite: http.SameSiteLaxMode, now: func() time.Time { return now }}
	id := strings.Repeat("x", 32)

	c := codec.build(id, now.Add(DefaultLifetime), true)

	assert.Equal(t, "sid", c.Name)
	assert.Equal(t, id, c.Value)
	assert.Equal(t, "/", c.Path)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)
	assert.Equal(t, 129600, c.MaxAge)
	assert.True(t, c.Expires.Equal(now.Add(DefaultLifetime)))

	line := c.String()
	assert.Contains(t, line, "Max-Age=129600")
	assert.Contains(t, line, "HttpOnly")
	assert.Contains(t, line, "Secure")
	assert.Contains(t, line, "Path=/")

	plain := codec.build(id, now.Add(time.Hour), false)
	assert.False(t, plain.Secure)
	assert.Equal(t, 3600, plain.MaxAge)
}

func TestCookieCodec_Clear(t *testing.T) {
	codec := cookieCodec{name: "sid", now: time.Now}
	c := codec.clear(false)
	assert.Equal(t, "", c.Value)
	assert.Less(t, c.MaxAge, 0)
	assert.True(t, c.HttpOnly)
}
