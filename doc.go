/*
Package memsession provides in-memory HTTP session management with durable
snapshots.

Each client is assigned a random 32-character session id through a cookie.
Session data lives in process memory, expires after a configurable lifetime
of inactivity, and the whole table can be written to and restored from a
snapshot so that sessions survive restarts.

Key Features:

  - Random alphanumeric session ids drawn from crypto/rand, unique among live
    sessions.
  - Sliding expiry: every request carrying a live id pushes its expiry out by
    the session lifetime. Expired sessions are never returned.
  - HttpOnly, SameSite=Lax cookies whose Secure flag mirrors the request
    scheme.
  - YAML snapshots of the whole table, saved to a file, SQLite, PostgreSQL,
    Memcached, Redis or S3, periodically and on Close.

Usage:

	mgr := memsession.NewManager(memsession.Config{
		TTL:         36 * time.Hour,
		Snapshotter: memsession.NewFileSnapshotter("sessions.yaml"),
	})
	defer mgr.Close()

	if err := mgr.Restore(ctx); err != nil {
		log.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		session, _ := mgr.EnsureSession(r)
		session.Set("user_id", 42)
	})
	http.ListenAndServe(":8080", mgr.Middleware(mux))

Sessions are only created when a handler asks for one with EnsureSession;
requests that never touch session data still receive a cookie but leave no
entry in the table.

Checkpoints start once Restore has succeeded. If Restore fails, neither the
background worker nor Close writes a snapshot, so the stored one is kept.

Snapshot Format:

The snapshot is a YAML mapping keyed by session id:

	AbCd...32 chars:
	  id: AbCd...32 chars
	  expires: "2025-01-02T03:04:05Z"
	  data:
	    count: 3
	    user: alice

Thread Safety:

Manager, Store and Session are safe for concurrent use. A Session pointer
should not be retained beyond the request that obtained it.
*/
package memsession
