// Package presence holds per-user call listeners and delivers call events to them.
package presence

// StateChange is delivered when a call moves to a new state.
type StateChange struct {
	CallID       string `json:"call_id"`
	ProviderType string `json:"provider_type"`
	State        string `json:"state"`
	OwnerID      string `json:"owner_id"`
	OwnerType    string `json:"owner_type"`
}

// Membership is delivered when a participant joins or leaves a call.
type Membership struct {
	CallID        string `json:"call_id"`
	ProviderType  string `json:"provider_type"`
	OwnerID       string `json:"owner_id"`
	OwnerType     string `json:"owner_type"`
	ParticipantID string `json:"participant_id"`
}

// Listener receives call events for one user and one client connection.
// Implementations must be comparable (normally a pointer type): the registry
// uses listener identity for set semantics.
type Listener interface {
	UserID() string
	ClientID() string

	OnCallStateChanged(e StateChange) error
	OnParticipantJoined(e Membership) error
	OnParticipantLeaved(e Membership) error
}

type EventKind string

const (
	EventStateChanged      EventKind = "state_changed"
	EventParticipantJoined EventKind = "participant_joined"
	EventParticipantLeaved EventKind = "participant_leaved"
)

// Event is one of StateChange or Membership, tagged by Kind.
type Event struct {
	Kind       EventKind
	State      StateChange
	Membership Membership
}

// CallID returns the call the event is about.
func (e Event) CallID() string {
	if e.Kind == EventStateChanged {
		return e.State.CallID
	}
	return e.Membership.CallID
}

func (e Event) deliver(l Listener) error {
	switch e.Kind {
	case EventStateChanged:
		return l.OnCallStateChanged(e.State)
	case EventParticipantJoined:
		return l.OnParticipantJoined(e.Membership)
	case EventParticipantLeaved:
		return l.OnParticipantLeaved(e.Membership)
	}
	return nil
}
