package audit

import (
	"context"
	"sync"

	"github.com/samber/lo"
)

// MemoryRepo keeps events in process. Used in tests and with the memory call store.
type MemoryRepo struct {
	mu     sync.Mutex
	events []Event
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of all events in append order.
func (r *MemoryRepo) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// ByType returns the events of one type in append order.
func (r *MemoryRepo) ByType(t EventType) []Event {
	return lo.Filter(r.Events(), func(e Event, _ int) bool { return e.Type == t })
}
