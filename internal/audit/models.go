package audit

import "time"

// Event is an immutable, append-only record of a destructive call reconciliation.
//
// Invariants:
// - Events are never updated or deleted.
// - Type is required; CallID is required except for bulk operations.
// - Audit is best-effort; critical flows must not fail on audit errors.
//
// Storage (Postgres): table call_events, INSERT only.
type Event struct {
	ID   string    `json:"id" db:"id"`
	Type EventType `json:"type" db:"type"`

	CallID string `json:"call_id,omitempty" db:"call_id"`

	// ActorUserID is the user whose request caused the event, empty for system work.
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	// EventCallSuperseded: a group call was replaced by a new call for the same owner.
	EventCallSuperseded EventType = "call_superseded"
	// EventCallStaleDeleted: a peer-to-peer call with no connected party was replaced.
	EventCallStaleDeleted EventType = "call_stale_deleted"
	EventCallRemoved      EventType = "call_removed"
	EventCallsPurged      EventType = "calls_purged"
)
