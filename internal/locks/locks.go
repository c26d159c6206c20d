// Package locks provides keyed mutual exclusion for call operations.
package locks

import (
	"context"
	"errors"
)

// Unlock releases a held key. Safe to call once.
type Unlock func()

// Locker serializes work on a key (a call id or a group owner).
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

var ErrLockTimeout = errors.New("locks: could not acquire lock")
