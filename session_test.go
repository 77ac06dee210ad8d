package memsession

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_Accessors(t *testing.T) {
	s := newSession("AccessorsAccessorsAccessors12345", testEpoch)

	_, ok := s.Get("missing")
	assert.False(t, ok)

	s.Set("name", "mordicus")
	s.Set("count", 42)
	s.Set("big", int64(7))
	s.Set("float", 3.0)
	s.Set("flag", true)

	name, ok := s.GetString("name")
	assert.True(t, ok)
	assert.Equal(t, "mordicus", name)

	_, ok = s.GetString("count")
	assert.False(t, ok)

	for key, want := range map[string]int{"count": 42, "big": 7, "float": 3} {
		got, ok := s.GetInt(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	_, ok = s.GetInt("flag")
	assert.False(t, ok)

	s.Delete("flag")
	_, ok = s.Get("flag")
	assert.False(t, ok)

	s.Clear()
	assert.Empty(t, s.Values())
}

func TestSession_ValuesIsACopy(t *testing.T) {
	s := newSession("CopyCopyCopyCopyCopyCopyCopyCopy", testEpoch)
	s.Set("k", "v")

	vals := s.Values()
	vals["k"] = "changed"
	vals["extra"] = 1

	got, _ := s.GetString("k")
	assert.Equal(t, "v", got)
	_, ok := s.Get("extra")
	assert.False(t, ok)
}

func TestSession_Expired(t *testing.T) {
	s := newSession("ExpiredExpiredExpiredExpired1234", testEpoch)
	assert.False(t, s.expired(testEpoch))
	assert.True(t, s.expired(testEpoch.Add(time.Nanosecond)))
	assert.Equal(t, testEpoch, s.ExpiresAt())
}
