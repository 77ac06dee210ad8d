package memsession

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateID(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id, err := generateID(rand.Reader)
		require.NoError(t, err)
		require.Len(t, id, IDLength)
		for _, c := range id {
			require.True(t, strings.ContainsRune(idAlphabet, c), "unexpected character %q in %s", c, id)
		}
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestGenerateID_RejectsBiasedBytes(t *testing.T) {
	// 64 bytes that are all above the rejection threshold, followed by 64
	// zero bytes: the first batch must be discarded entirely.
	src := bytes.NewReader(append(bytes.Repeat([]byte{255}, 64), make([]byte, 64)...))

	id, err := generateID(src)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("A", IDLength), id)
}

func TestGenerateID_ShortSource(t *testing.T) {
	_, err := generateID(bytes.NewReader(make([]byte, 10)))
	assert.Error(t, err)
}

func TestIsValidID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"alphanumeric", "abcdefghijklmnopqrstuvwxyzABCDEF", true},
		{"digits", strings.Repeat("7", 32), true},
		{"too short", "abc", false},
		{"too long", strings.Repeat("a", 33), false},
		{"hyphen", strings.Repeat("a", 31) + "-", false},
		{"empty", "", false},
		{"non ascii", strings.Repeat("a", 30) + "é", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isValidID(tt.id))
		})
	}
}
