package session

import (
	"context"
	"sync"
	"time"

	"github.com/nahid2887/today/internal/domain/entities"
	"github.com/nahid2887/today/internal/domain/repositories"
	apperrors "github.com/nahid2887/today/pkg/errors"
)

type slot struct {
	mu      sync.Mutex
	state   *entities.SessionState
	touched time.Time
	// dead marks a slot swept out of the arena; holders must look it up again.
	dead bool
}

// MemoryStore keeps sessions in an arena of per-key slots. The arena map is
// only locked to find or create a slot; reads and writes of a session lock
// that session's slot alone. Sessions idle for longer than ttl start over and
// are swept from the arena; a ttl of zero keeps them for the process lifetime.
type MemoryStore struct {
	mu        sync.RWMutex
	slots     map[string]*slot
	window    int
	ttl       time.Duration
	lastSweep time.Time
	now       func() time.Time
}

var _ repositories.SessionStore = (*MemoryStore)(nil)

// NewMemoryStore creates a store retaining the last window history turns and
// expiring sessions idle for longer than ttl.
func NewMemoryStore(window int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		slots:  make(map[string]*slot),
		window: window,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *MemoryStore) slot(sessionID string) *slot {
	s.mu.RLock()
	sl, ok := s.slots[sessionID]
	s.mu.RUnlock()
	if ok {
		return sl
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sl, ok = s.slots[sessionID]; !ok {
		s.maybeSweepLocked()
		sl = &slot{}
		s.slots[sessionID] = sl
	}
	return sl
}

// acquire returns the live slot for sessionID locked, with an expired session
// already cleared. The caller unlocks it.
func (s *MemoryStore) acquire(sessionID string) *slot {
	for {
		sl := s.slot(sessionID)
		sl.mu.Lock()
		if sl.dead {
			sl.mu.Unlock()
			continue
		}
		now := s.now()
		if s.expired(sl, now) {
			sl.state = nil
		}
		sl.touched = now
		return sl
	}
}

func (s *MemoryStore) expired(sl *slot, now time.Time) bool {
	return s.ttl > 0 && !sl.touched.IsZero() && now.Sub(sl.touched) > s.ttl
}

// Sweep drops sessions idle for longer than the ttl and reports how many went.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked()
}

func (s *MemoryStore) maybeSweepLocked() {
	if s.ttl <= 0 || s.now().Sub(s.lastSweep) < s.ttl {
		return
	}
	s.sweepLocked()
}

func (s *MemoryStore) sweepLocked() int {
	now := s.now()
	s.lastSweep = now
	removed := 0
	for id, sl := range s.slots {
		// A slot in use is not idle.
		if !sl.mu.TryLock() {
			continue
		}
		if s.expired(sl, now) {
			sl.dead = true
			delete(s.slots, id)
			removed++
		}
		sl.mu.Unlock()
	}
	return removed
}

// GetOrCreate implements repositories.SessionStore.
func (s *MemoryStore) GetOrCreate(_ context.Context, sessionID string) (*entities.SessionState, error) {
	if sessionID == "" {
		return nil, apperrors.NewValidationError("session id is required")
	}
	sl := s.acquire(sessionID)
	defer sl.mu.Unlock()

	if sl.state == nil {
		sl.state = entities.NewSessionState(sessionID, s.now())
	}
	if err := sl.state.Validate(); err != nil {
		return nil, apperrors.NewSessionIntegrityError("session "+sessionID+" is corrupted", err)
	}
	return sl.state.Clone(), nil
}

// Update implements repositories.SessionStore.
func (s *MemoryStore) Update(_ context.Context, sessionID string, turn entities.TurnUpdate) (*entities.SessionState, error) {
	if sessionID == "" {
		return nil, apperrors.NewValidationError("session id is required")
	}
	sl := s.acquire(sessionID)
	defer sl.mu.Unlock()

	if sl.state == nil {
		sl.state = entities.NewSessionState(sessionID, s.now())
	}
	sl.state.ApplyTurn(turn, s.window, s.now())
	return sl.state.Clone(), nil
}

// Reset implements repositories.SessionStore.
func (s *MemoryStore) Reset(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return apperrors.NewValidationError("session id is required")
	}
	sl := s.acquire(sessionID)
	defer sl.mu.Unlock()

	sl.state = entities.NewSessionState(sessionID, s.now())
	return nil
}

// Len reports how many sessions the arena holds.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slots)
}
