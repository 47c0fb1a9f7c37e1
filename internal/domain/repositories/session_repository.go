package repositories

import (
	"context"

	"github.com/nahid2887/today/internal/domain/entities"
)

// SessionStore owns conversation state. Callers receive snapshots; mutation
// happens only through Update and Reset.
//
// Stores are safe for concurrent use but do not serialize whole turns;
// callers hold a per-session lock across GetOrCreate and Update.
type SessionStore interface {
	// GetOrCreate returns the session, creating an empty one on first use.
	GetOrCreate(ctx context.Context, sessionID string) (*entities.SessionState, error)

	// Update applies a completed turn and returns the new snapshot.
	Update(ctx context.Context, sessionID string, turn entities.TurnUpdate) (*entities.SessionState, error)

	// Reset clears history, shown ids and last results.
	Reset(ctx context.Context, sessionID string) error
}
