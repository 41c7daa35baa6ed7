package core

import "errors"

// ErrIdentityMismatch is returned when a session bound to one user receives events for another.
var ErrIdentityMismatch = errors.New("session is bound to a different user")

// ErrNoIdentity is returned when an event needs a user but none is known.
var ErrNoIdentity = errors.New("user identity required")

// TransitionKind classifies what a presence event did.
type TransitionKind int

const (
	// TransitionNone leaves the registry untouched.
	TransitionNone TransitionKind = iota
	// TransitionEnter moves NOT_PRESENT to PRESENT(v).
	TransitionEnter
	// TransitionSwitch moves PRESENT(v) to PRESENT(v2).
	TransitionSwitch
	// TransitionLeave moves PRESENT(v) to NOT_PRESENT.
	TransitionLeave
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionEnter:
		return "enter"
	case TransitionSwitch:
		return "switch"
	case TransitionLeave:
		return "leave"
	default:
		return "none"
	}
}

// Transition describes the outcome of applying one event to a session.
type Transition struct {
	Kind   TransitionKind
	UserID string
	From   string
	To     string
	// Changed is true when the registry was mutated and a broadcast is due.
	Changed  bool
	Snapshot Snapshot
}

// Session is the per-connection presence state machine: NOT_PRESENT or PRESENT(venue).
type Session struct {
	ConnectionID string
	UserID       string
	venueID      string
}

// NewSession creates a session in the NOT_PRESENT state.
func NewSession(connectionID string) *Session {
	return &Session{ConnectionID: connectionID}
}

// VenueID returns the venue the session is present at, or "".
func (s *Session) VenueID() string {
	return s.venueID
}

// Present reports whether the session is in PRESENT state.
func (s *Session) Present() bool {
	return s.venueID != ""
}

// Bind attaches a user identity. Rebinding to the same user is a no-op.
func (s *Session) Bind(userID string) error {
	switch {
	case userID == "":
		if s.UserID == "" {
			return ErrNoIdentity
		}
		return nil
	case s.UserID == "":
		s.UserID = userID
		return nil
	case s.UserID != userID:
		return ErrIdentityMismatch
	default:
		return nil
	}
}

// Update applies a location update with the matched candidate venue ("" for none).
func (s *Session) Update(reg *Registry, candidate string) Transition {
	tr := Transition{UserID: s.UserID, From: s.venueID, To: candidate}

	switch {
	case s.venueID == candidate:
		return tr
	case candidate == "":
		tr.Kind = TransitionLeave
		tr.Snapshot, tr.Changed = reg.MarkAbsent(s.venueID, s.UserID)
	case s.venueID == "":
		tr.Kind = TransitionEnter
		tr.Snapshot, tr.Changed = reg.MarkPresent(candidate, s.UserID)
	default:
		// MarkPresent removes the user from the previous venue under the same lock,
		// so readers never observe the user at both venues or at neither.
		tr.Kind = TransitionSwitch
		tr.Snapshot, tr.Changed = reg.MarkPresent(candidate, s.UserID)
	}

	s.venueID = candidate
	return tr
}

// Leave handles an explicit leave. It behaves like a null-candidate update, and also clears
// venueID when the client names a venue the session does not consider current.
func (s *Session) Leave(reg *Registry, venueID string) Transition {
	tr := s.Update(reg, "")
	if venueID != "" && venueID != tr.From {
		snap, changed := reg.MarkAbsent(venueID, s.UserID)
		if changed {
			tr.Kind = TransitionLeave
			tr.From = venueID
			tr.Changed = true
			tr.Snapshot = snap
		}
	}
	return tr
}

// Close runs the disconnect transition. A present session leaves its venue.
func (s *Session) Close(reg *Registry) Transition {
	if s.UserID == "" {
		return Transition{}
	}
	return s.Update(reg, "")
}
