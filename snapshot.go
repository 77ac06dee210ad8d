package memsession

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	// ErrSnapshotFormat is returned when a snapshot is not well-formed YAML.
	ErrSnapshotFormat = errors.New("malformed session snapshot")

	// ErrSnapshotSchema is returned when a well-formed snapshot does not
	// describe a session table.
	ErrSnapshotSchema = errors.New("invalid session snapshot")
)

// snapshotEntry is the persisted form of one session.
type snapshotEntry struct {
	ID      string         `yaml:"id"`
	Expires string         `yaml:"expires"`
	Data    map[string]any `yaml:"data"`
}

// rawSnapshotEntry distinguishes missing fields from empty ones on decode.
type rawSnapshotEntry struct {
	ID      *string        `yaml:"id"`
	Expires *string        `yaml:"expires"`
	Data    map[string]any `yaml:"data"`
}

// Marshal renders the whole table as a YAML document keyed by session id.
// The store is locked for the duration of the capture.
func Marshal(s *Store) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer PutBuffer(buf)

	s.mu.Lock()
	doc := make(map[string]snapshotEntry, len(s.sessions))
	for id, sess := range s.sessions {
		doc[id] = snapshotEntry{
			ID:      id,
			Expires: sess.ExpiresAt().UTC().Format(time.RFC3339Nano),
			Data:    encodeFloats(sess.Values()).(map[string]any),
		}
	}
	enc := yaml.NewEncoder(buf)
	enc.SetIndent(2)
	err := enc.Encode(doc)
	if err == nil {
		err = enc.Close()
	}
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to encode session snapshot: %w", err)
	}

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// Unmarshal replaces the contents of s with the sessions described by text.
// Sessions that already expired are loaded as-is; the next sweep evicts them.
// On error the store is left untouched.
func Unmarshal(s *Store, text []byte) error {
	sessions, err := decodeSnapshot(text)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = sessions
	for id := range sessions {
		delete(s.reserved, id)
	}
	return nil
}

// wholeFloat is a float64 with no fractional part. yaml.v3 writes such a
// value as "3", which reads back as an int.
type wholeFloat float64

func (f wholeFloat) MarshalYAML() (any, error) {
	return &yaml.Node{
		Kind:  yaml.ScalarNode,
		Tag:   "!!float",
		Value: strconv.FormatFloat(float64(f), 'f', 1, 64),
	}, nil
}

// encodeFloats returns v with every whole float64 inside maps and lists
// replaced by a wholeFloat. Containers are copied; v is not modified.
func encodeFloats(v any) any {
	switch x := v.(type) {
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) && math.Abs(x) < 1e15 {
			return wholeFloat(x)
		}
		return x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = encodeFloats(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = encodeFloats(e)
		}
		return out
	default:
		return v
	}
}

func decodeSnapshot(text []byte) (map[string]*Session, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(text, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSnapshotFormat, err)
	}

	raw := make(map[string]rawSnapshotEntry)
	if root.Kind != 0 {
		if err := root.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSnapshotSchema, err)
		}
	}

	sessions := make(map[string]*Session, len(raw))
	for key, e := range raw {
		switch {
		case e.ID == nil:
			return nil, fmt.Errorf("%w: entry %q has no id", ErrSnapshotSchema, key)
		case e.Expires == nil:
			return nil, fmt.Errorf("%w: entry %q has no expires", ErrSnapshotSchema, key)
		case e.Data == nil:
			return nil, fmt.Errorf("%w: entry %q has no data", ErrSnapshotSchema, key)
		case *e.ID != key:
			return nil, fmt.Errorf("%w: entry %q carries id %q", ErrSnapshotSchema, key, *e.ID)
		}
		expires, err := time.Parse(time.RFC3339Nano, *e.Expires)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %q: %v", ErrSnapshotSchema, key, err)
		}
		sess := newSession(key, expires)
		sess.values = e.Data
		sessions[key] = sess
	}
	return sessions, nil
}
