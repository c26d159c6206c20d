package calls

import (
	"context"
	"time"
)

// CallRecord is the persisted form of a Call without participants.
type CallRecord struct {
	ID           string    `json:"id" db:"id"`
	Title        string    `json:"title,omitempty" db:"title"`
	OwnerID      string    `json:"owner_id" db:"owner_id"`
	OwnerType    OwnerType `json:"owner_type" db:"owner_type"`
	ProviderType string    `json:"provider_type" db:"provider_type"`
	State        CallState `json:"state,omitempty" db:"state"`
	LastDate     time.Time `json:"last_date" db:"last_date"`
	IsGroup      bool      `json:"is_group" db:"is_group"`
	IsUser       bool      `json:"is_user" db:"is_user"`

	// Settings is JSON; chat room owners keep roomName and roomTitle here.
	Settings string `json:"settings,omitempty" db:"settings"`
}

// ParticipantRecord is keyed by (ID, CallID).
type ParticipantRecord struct {
	ID       string           `json:"id" db:"id"`
	CallID   string           `json:"call_id" db:"call_id"`
	Type     string           `json:"type" db:"type"`
	State    ParticipantState `json:"state,omitempty" db:"state"`
	ClientID string           `json:"client_id,omitempty" db:"client_id"`
}

// Reader is the read side of the session store.
//
// Lookups return found=false rather than an error for unknown ids.
// FindParticipants returns rows in insertion order.
type Reader interface {
	Find(ctx context.Context, id string) (CallRecord, bool, error)
	FindByGroupOwner(ctx context.Context, ownerID string) (CallRecord, bool, error)
	FindParticipants(ctx context.Context, callID string) ([]ParticipantRecord, error)
	FindUserGroupCalls(ctx context.Context, userID string) ([]CallRecord, error)
}

// Repository is the unit of work handed to Store.WithTx.
//
// Writes are visible to other readers only after the transaction commits.
// CreateCall returns a *DuplicateKeyError for an existing id or group owner.
// UpdateCall and UpdateParticipant return ErrNotFound for missing rows.
type Repository interface {
	Reader

	CreateCall(ctx context.Context, c CallRecord) error
	UpdateCall(ctx context.Context, c CallRecord) error
	// DeleteCall removes the call and its participants, reporting whether it existed.
	DeleteCall(ctx context.Context, id string) (bool, error)

	CreateParticipant(ctx context.Context, p ParticipantRecord) error
	UpdateParticipant(ctx context.Context, p ParticipantRecord) error
}

// TxFunc is the unit of work executed inside a store transaction.
type TxFunc func(ctx context.Context, repo Repository) error

// Store is the durable, transactional storage of calls and participants.
type Store interface {
	Reader

	// WithTx commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn TxFunc) error

	// DeleteAllUserCalls removes every peer-to-peer call and returns how many were removed.
	DeleteAllUserCalls(ctx context.Context) (int, error)
}
