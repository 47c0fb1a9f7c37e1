package entities

import (
	"encoding/json"
	"sort"
	"time"
)

// Role tags a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one entry of a session's history.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// HotelIDSet is a set of hotel ids. It marshals as a sorted JSON array.
type HotelIDSet map[string]struct{}

// Add inserts ids into the set.
func (s HotelIDSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

// Has reports membership.
func (s HotelIDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in hotel id order.
func (s HotelIDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return CompareHotelIDs(out[i], out[j]) < 0 })
	return out
}

// MarshalJSON implements json.Marshaler.
func (s HotelIDSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *HotelIDSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	set := make(HotelIDSet, len(ids))
	set.Add(ids...)
	*s = set
	return nil
}

// SessionState is one conversation's continuity record.
type SessionState struct {
	SessionID     string          `json:"session_id"`
	History       []Turn          `json:"history"`
	ShownHotelIDs HotelIDSet      `json:"shown_hotel_ids"`
	LastResults   []HydratedHotel `json:"last_results"`
	LastFilters   QueryFilters    `json:"last_filters"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NewSessionState returns an empty session.
func NewSessionState(id string, now time.Time) *SessionState {
	return &SessionState{
		SessionID:     id,
		ShownHotelIDs: make(HotelIDSet),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy.
func (s *SessionState) Clone() *SessionState {
	out := &SessionState{
		SessionID:     s.SessionID,
		History:       append([]Turn(nil), s.History...),
		ShownHotelIDs: make(HotelIDSet, len(s.ShownHotelIDs)),
		LastFilters:   s.LastFilters.Clone(),
		CreatedAt:     s.CreatedAt,
		UpdatedAt:     s.UpdatedAt,
	}
	for id := range s.ShownHotelIDs {
		out.ShownHotelIDs[id] = struct{}{}
	}
	if s.LastResults != nil {
		out.LastResults = make([]HydratedHotel, len(s.LastResults))
		for i, h := range s.LastResults {
			out.LastResults[i] = h.Clone()
		}
	}
	return out
}

// Validate checks the invariants a decoded session must hold.
func (s *SessionState) Validate() error {
	if s.ShownHotelIDs == nil {
		return errInvalidSession("shown_hotel_ids missing")
	}
	for _, t := range s.History {
		if t.Role != RoleUser && t.Role != RoleAssistant {
			return errInvalidSession("unknown role " + string(t.Role))
		}
	}
	for _, h := range s.LastResults {
		if h.HotelID == "" {
			return errInvalidSession("last_results entry without hotel id")
		}
	}
	return nil
}

// LastUserQuery returns the most recent user turn, or "".
func (s *SessionState) LastUserQuery() string {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].Role == RoleUser {
			return s.History[i].Content
		}
	}
	return ""
}

// TurnUpdate is what a completed turn contributes to its session.
type TurnUpdate struct {
	Query    string
	Response string
	Hydrated []HydratedHotel
	Filters  QueryFilters
}

// ApplyTurn appends the turn, trims history to window turns, unions shown ids
// and replaces last results.
func (s *SessionState) ApplyTurn(u TurnUpdate, window int, now time.Time) {
	s.History = append(s.History,
		Turn{Role: RoleUser, Content: u.Query, At: now},
		Turn{Role: RoleAssistant, Content: u.Response, At: now},
	)
	if window > 0 && len(s.History) > window {
		s.History = append([]Turn(nil), s.History[len(s.History)-window:]...)
	}
	if s.ShownHotelIDs == nil {
		s.ShownHotelIDs = make(HotelIDSet)
	}
	results := make([]HydratedHotel, len(u.Hydrated))
	for i, h := range u.Hydrated {
		s.ShownHotelIDs.Add(h.HotelID)
		results[i] = h.Clone()
	}
	s.LastResults = results
	s.LastFilters = u.Filters.Clone()
	s.UpdatedAt = now
}

type sessionError string

func (e sessionError) Error() string { return "invalid session: " + string(e) }

func errInvalidSession(msg string) error { return sessionError(msg) }
