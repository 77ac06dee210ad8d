package memsession

import (
	"context"
	"errors"
	"time"
)

// ErrNoSessionID is returned when the session id is requested for a request
// that did not pass through the Manager's interceptor. It signals a wiring
// bug, not a client error.
var ErrNoSessionID = errors.New("no session id: request was not intercepted")

type requestStateKey struct{}

// requestState is the per-request session context set up by the interceptor.
type requestState struct {
	id        string
	expires   time.Time
	secure    bool
	destroyed bool
}

func withRequestState(ctx context.Context, st *requestState) context.Context {
	return context.WithValue(ctx, requestStateKey{}, st)
}

func requestStateFrom(ctx context.Context) (*requestState, error) {
	st, ok := ctx.Value(requestStateKey{}).(*requestState)
	if !ok {
		return nil, ErrNoSessionID
	}
	return st, nil
}

// IDFromContext returns the session id resolved for the current request.
func IDFromContext(ctx context.Context) (string, error) {
	st, err := requestStateFrom(ctx)
	if err != nil {
		return "", err
	}
	return st.id, nil
}

// MustID is like IDFromContext but panics outside an intercepted request.
func MustID(ctx context.Context) string {
	id, err := IDFromContext(ctx)
	if err != nil {
		panic(err)
	}
	return id
}
