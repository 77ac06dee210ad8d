package memsession

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrNoSnapshotter is returned by Checkpoint and Restore when the Manager
	// has no Snapshotter configured.
	ErrNoSnapshotter = errors.New("no snapshotter configured")

	// ErrNotRestored is returned by Checkpoint until Restore has succeeded.
	// Writing before that would overwrite the stored snapshot with a table
	// that never saw it.
	ErrNotRestored = errors.New("session table was not restored")
)

const (
	restorePending int32 = iota
	restoreDone
	restoreFailed
)

// HandlerFunc is an HTTP handler that reports failure through its return
// value. The interceptor never catches or translates the error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

type Manager struct {
	store       *Store
	snapshotter Snapshotter
	logger      *slog.Logger
	secure      *bool

	cleanup    time.Duration
	checkpoint time.Duration
	stopChan   chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once

	// restoreState gates checkpoints: restorePending, restoreDone or
	// restoreFailed.
	restoreState atomic.Int32
}

type Config struct {
	TTL        time.Duration // Session lifetime. Defaults to 36h.
	CookieName string
	SameSite   http.SameSite
	// Secure overrides the Secure cookie attribute. When nil it mirrors the
	// request scheme.
	Secure *bool

	// CleanupInterval is the period of the background sweep. Negative
	// disables it; lookups still sweep lazily.
	CleanupInterval time.Duration
	// CheckpointInterval is the period of background snapshots when a
	// Snapshotter is set. Negative disables periodic checkpoints.
	CheckpointInterval time.Duration
	Snapshotter        Snapshotter

	Logger *slog.Logger
	Clock  func() time.Time
	Random io.Reader
}

func NewManager(cfg Config) *Manager {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultLifetime
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m := &Manager{
		store: NewStore(
			WithLifetime(cfg.TTL),
			WithCookieName(cfg.CookieName),
			WithSameSite(cfg.SameSite),
			WithClock(cfg.Clock),
			WithRandom(cfg.Random),
		),
		snapshotter: cfg.Snapshotter,
		logger:      cfg.Logger.With(slog.String("component", "memsession")),
		secure:      cfg.Secure,
		cleanup:     cfg.CleanupInterval,
		checkpoint:  cfg.CheckpointInterval,
		stopChan:    make(chan struct{}),
	}

	// Browsers reject SameSite=None cookies without the Secure attribute.
	if cfg.SameSite == http.SameSiteNoneMode {
		secure := true
		m.secure = &secure
	}

	if m.cleanup > 0 {
		m.wg.Add(1)
		go m.cleanupWorker()
	}
	if m.snapshotter != nil && m.checkpoint > 0 {
		m.wg.Add(1)
		go m.checkpointWorker()
	}

	return m
}

// Store returns the session table managed by m.
func (m *Manager) Store() *Store {
	return m.store
}

func (m *Manager) cleanupWorker() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.store.Sweep(); n > 0 {
				m.logger.Debug("expired sessions swept", slog.Int("count", n))
			}
		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) checkpointWorker() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.checkpoint)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if m.restoreState.Load() != restoreDone {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := m.Checkpoint(ctx); err != nil {
				m.logger.Error("session checkpoint failed", slog.Any("error", err))
			}
			cancel()
		case <-m.stopChan:
			return
		}
	}
}

// Close stops the background workers. When a Snapshotter is configured a
// final checkpoint is written before it is closed, provided the table was
// restored; otherwise the stored snapshot is left as it is.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stopChan)
		m.wg.Wait()
		if m.snapshotter == nil {
			return
		}
		if m.restoreState.Load() != restoreDone {
			m.logger.Warn("skipping final session checkpoint: table was not restored")
			err = m.snapshotter.Close()
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		err = errors.Join(m.Checkpoint(ctx), m.snapshotter.Close())
	})
	return err
}

// Checkpoint writes a snapshot of the whole table to the Snapshotter.
// It returns ErrNotRestored until Restore has succeeded, including after a
// failed Restore.
func (m *Manager) Checkpoint(ctx context.Context) error {
	if m.snapshotter == nil {
		return ErrNoSnapshotter
	}
	if m.restoreState.Load() != restoreDone {
		return ErrNotRestored
	}
	data, err := Marshal(m.store)
	if err != nil {
		return err
	}
	if err := m.snapshotter.SaveSnapshot(ctx, data); err != nil {
		return err
	}
	m.logger.Debug("session checkpoint written", slog.Int("bytes", len(data)))
	return nil
}

// Restore replaces the table with the snapshot held by the Snapshotter.
// A Snapshotter that holds no snapshot yet leaves the table empty.
//
// Checkpoints are enabled once Restore succeeds. After a failed Restore
// they stay disabled, so the stored snapshot survives for inspection.
func (m *Manager) Restore(ctx context.Context) error {
	if m.snapshotter == nil {
		return ErrNoSnapshotter
	}
	data, err := m.snapshotter.RestoreSnapshot(ctx)
	if errors.Is(err, ErrNoSnapshot) {
		m.logger.Info("no session snapshot to restore")
		m.restoreState.Store(restoreDone)
		return nil
	}
	if err == nil {
		err = Unmarshal(m.store, data)
	}
	if err != nil {
		m.restoreState.Store(restoreFailed)
		return err
	}
	m.restoreState.Store(restoreDone)
	m.logger.Info("session snapshot restored", slog.Int("sessions", m.store.Len()))
	return nil
}

// Middleware wraps next with session handling. The session id is resolved
// before next runs and announced in a refreshed cookie on the response.
// A panic in next propagates and the cookie is only present if next had
// already written the response headers.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = m.intercept(w, r, func(w http.ResponseWriter, r *http.Request) error {
			next.ServeHTTP(w, r)
			return nil
		})
	})
}

// Wrap is the error-returning form of Middleware. An error from h is
// returned unchanged and cookie decoration is skipped unless h already
// wrote the response headers.
func (m *Manager) Wrap(h HandlerFunc) HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		return m.intercept(w, r, h)
	}
}

func (m *Manager) intercept(w http.ResponseWriter, r *http.Request, h HandlerFunc) error {
	id, fresh, err := m.store.ResolveID(r.Header)
	if err != nil {
		m.logger.ErrorContext(r.Context(), "failed to generate session id", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil
	}
	if fresh {
		defer m.store.release(id)
	}

	st := &requestState{
		id:      id,
		expires: m.store.Touch(id),
		secure:  m.isSecure(r),
	}
	cw := &cookieWriter{ResponseWriter: w, manager: m, state: st}

	if err := h(cw, r.WithContext(withRequestState(r.Context(), st))); err != nil {
		cw.skip = true
		return err
	}
	cw.commit()
	return nil
}

func (m *Manager) isSecure(r *http.Request) bool {
	if m.secure != nil {
		return *m.secure
	}
	return isSecureRequest(r)
}

// Session returns the live session of the current request. ok is false
// when none has been created yet; use EnsureSession to create one.
func (m *Manager) Session(r *http.Request) (sess *Session, ok bool, err error) {
	st, err := requestStateFrom(r.Context())
	if err != nil {
		return nil, false, err
	}
	sess, ok = m.store.Get(st.id)
	return sess, ok, nil
}

// EnsureSession returns the live session of the current request, creating
// it first if needed.
func (m *Manager) EnsureSession(r *http.Request) (*Session, error) {
	st, err := requestStateFrom(r.Context())
	if err != nil {
		return nil, err
	}
	sess, created := m.store.GetOrCreate(st.id)
	if created {
		st.expires = sess.ExpiresAt()
		st.destroyed = false
	}
	return sess, nil
}

// Regenerate moves the session data of the current request to a fresh id
// to prevent session fixation. The old session is removed and the response
// cookie announces the new id. Call it before writing the response.
func (m *Manager) Regenerate(r *http.Request) (*Session, error) {
	st, err := requestStateFrom(r.Context())
	if err != nil {
		return nil, err
	}

	newID, _, err := m.store.ResolveID(nil)
	if err != nil {
		return nil, err
	}
	sess := m.store.move(st.id, newID)

	st.id = newID
	st.expires = sess.ExpiresAt()
	st.destroyed = false
	return sess, nil
}

// Destroy deletes the session of the current request and clears the cookie
// on the client. Call it before writing the response.
func (m *Manager) Destroy(r *http.Request) error {
	st, err := requestStateFrom(r.Context())
	if err != nil {
		return err
	}
	m.store.Delete(st.id)
	st.destroyed = true
	return nil
}

// cookieWriter attaches the session cookie when the response headers are
// committed, or when the handler returns without writing.
type cookieWriter struct {
	http.ResponseWriter
	manager   *Manager
	state     *requestState
	committed bool
	skip      bool
}

func (w *cookieWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true
	if w.skip {
		return
	}

	codec := w.manager.store.codec
	var c *http.Cookie
	if w.state.destroyed {
		c = codec.clear(w.state.secure)
	} else {
		c = codec.build(w.state.id, w.state.expires, w.state.secure)
	}
	http.SetCookie(w.ResponseWriter, c)
}

func (w *cookieWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *cookieWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *cookieWriter) Flush() {
	w.commit()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *cookieWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
