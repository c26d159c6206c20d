package calls

import "time"

// Call is one signaling session and its membership.
//
// Invariants:
// - ID is caller supplied and is the only identity of a call.
// - A group-owned call is unique per owner among live records.
// - Participants are unique by ID and keep insertion order.
//
// Media never flows through this model.
type Call struct {
	ID           string        `json:"id"`
	Title        string        `json:"title,omitempty"`
	Owner        Identity      `json:"owner"`
	ProviderType string        `json:"provider_type"`
	State        CallState     `json:"state"`
	LastDate     time.Time     `json:"last_date"`
	Group        bool          `json:"group"`
	Participants []Participant `json:"participants"`
}

// IsGroup reports whether the call was created for a space or chat room.
func (c *Call) IsGroup() bool { return c.Group }

// Participant returns the participant with the given id and type, or nil.
func (c *Call) Participant(id string, kind string) *Participant {
	for i := range c.Participants {
		p := &c.Participants[i]
		if p.ID == id && p.Type == kind {
			return p
		}
	}
	return nil
}

type CallState string

const (
	CallStateStarted CallState = "started"
	CallStatePaused  CallState = "paused"
	CallStateStopped CallState = "stopped"
)

// OrStopped reads an unset state as stopped.
func (s CallState) OrStopped() CallState {
	if s == "" {
		return CallStateStopped
	}
	return s
}

type ParticipantState string

const (
	ParticipantJoined ParticipantState = "joined"
	ParticipantLeaved ParticipantState = "leaved"
)

// ParticipantTypeUser marks participants resolved to an internal user.
// External participants carry the provider type instead.
const ParticipantTypeUser = "user"

type Participant struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	State    ParticipantState `json:"state,omitempty"`
	ClientID string           `json:"client_id,omitempty"`

	// Display data, resolved from the directory for internal participants.
	Title      string `json:"title,omitempty"`
	AvatarLink string `json:"avatar_link,omitempty"`
}

// IsUser reports whether the participant is an internal user.
func (p Participant) IsUser() bool { return p.Type == ParticipantTypeUser }

// HasClient reports whether the participant is bound to the given non-empty client id.
func (p Participant) HasClient(clientID string) bool {
	return p.ClientID != "" && p.ClientID == clientID
}

// CallStateInfo is the short form returned for a user's group calls.
type CallStateInfo struct {
	ID    string    `json:"id"`
	State CallState `json:"state"`
}

// NewCall carries the arguments of AddCall.
type NewCall struct {
	ID           string   `json:"id"`
	OwnerID      string   `json:"owner_id"`
	OwnerType    string   `json:"owner_type"`
	Title        string   `json:"title,omitempty"`
	ProviderType string   `json:"provider_type"`
	Participants []string `json:"participants"`
}

// IMInfo describes an instant messaging account a provider knows for a user.
type IMInfo struct {
	Type        string `json:"type"`
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	ProfileLink string `json:"profile_link,omitempty"`
}
