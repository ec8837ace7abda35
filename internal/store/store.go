package store

import (
	"context"

	"trade-watch/internal/session"
)

// SessionKey is the fixed key the session blob is stored under.
const SessionKey = "trade-watch:session"

// SessionStore persists the whole session aggregate as one blob. Restore
// is called once at startup; Save after every mutating operation. A store
// that is unavailable at startup degrades the client to in-memory-only
// operation, it is never a hard failure.
type SessionStore interface {
	// Restore loads the stored session. ok is false when nothing has been
	// stored yet.
	Restore(ctx context.Context) (st *session.State, ok bool, err error)
	// Save serializes and stores the whole session.
	Save(ctx context.Context, st *session.State) error
	Close() error
}
