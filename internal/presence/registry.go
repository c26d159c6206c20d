package presence

import (
	"hash/fnv"
	"sync"
	"sync/atomic"

	"webconferencing/internal/metrics"
)

const stripes = 32

// Registry maps user ids to their listeners.
//
// The map is striped by user id. Every stripe stores immutable slices that
// are replaced on write, so Lookup hands out a snapshot that later
// registrations never modify.
type Registry struct {
	shards [stripes]shard
	count  atomic.Int64
}

type shard struct {
	mu    sync.RWMutex
	users map[string][]Listener
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].users = make(map[string][]Listener)
	}
	return r
}

func (r *Registry) shard(userID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &r.shards[h.Sum32()%stripes]
}

// Register adds l under l.UserID(). Adding the same listener twice is a no-op.
func (r *Registry) Register(l Listener) {
	userID := l.UserID()
	s := r.shard(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.users[userID]
	for _, existing := range cur {
		if existing == l {
			return
		}
	}
	next := make([]Listener, len(cur), len(cur)+1)
	copy(next, cur)
	s.users[userID] = append(next, l)
	r.count.Add(1)
	metrics.Listeners.Inc()
}

// Unregister removes l from its user's set. Unknown listeners are ignored.
func (r *Registry) Unregister(l Listener) {
	userID := l.UserID()
	s := r.shard(userID)

	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.users[userID]
	idx := -1
	for i, existing := range cur {
		if existing == l {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	if len(cur) == 1 {
		delete(s.users, userID)
	} else {
		next := make([]Listener, 0, len(cur)-1)
		next = append(next, cur[:idx]...)
		next = append(next, cur[idx+1:]...)
		s.users[userID] = next
	}
	r.count.Add(-1)
	metrics.Listeners.Dec()
}

// Lookup returns the user's listeners in registration order.
// The returned slice must not be modified.
func (r *Registry) Lookup(userID string) []Listener {
	s := r.shard(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.users[userID]
}

// HasClient reports whether userID has a listener bound to clientID.
func (r *Registry) HasClient(userID, clientID string) bool {
	if clientID == "" {
		return false
	}
	for _, l := range r.Lookup(userID) {
		if l.ClientID() == clientID {
			return true
		}
	}
	return false
}

// Count is the number of registered listeners.
func (r *Registry) Count() int {
	return int(r.count.Load())
}
