package calls

import (
	"context"

	"webconferencing/internal/audit"
	"webconferencing/internal/presence"
)

// Directory resolves internal identities. Unknown ids report found=false.
//
// User identities carry their raw IM accounts (type and id only) in
// User.IMs. Space identities carry their members in Space.Members.
type Directory interface {
	User(ctx context.Context, id string) (Identity, bool, error)
	Space(ctx context.Context, id string) (Identity, bool, error)
}

// IMResolver turns a raw IM account into display info. A nil result means
// no active provider handles the IM type.
type IMResolver interface {
	ResolveIM(ctx context.Context, imType, imID string) (*IMInfo, error)
}

// Notifier fans an event out to the listeners of the given users.
type Notifier interface {
	Dispatch(recipients []string, e presence.Event)
}

// EventLog records destructive reconciliations.
type EventLog interface {
	Append(ctx context.Context, e audit.Event) error
	LogPurge(ctx context.Context, n int) error
}
