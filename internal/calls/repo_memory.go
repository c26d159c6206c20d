package calls

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store for tests and single-node development.
// Transactions are serialized and work on a private copy that replaces the
// shared state on commit, so readers never observe a partial write.
type MemoryStore struct {
	mu    sync.RWMutex
	state memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (s *MemoryStore) Find(ctx context.Context, id string) (CallRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.find(id)
}

func (s *MemoryStore) FindByGroupOwner(ctx context.Context, ownerID string) (CallRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findByGroupOwner(ownerID)
}

func (s *MemoryStore) FindParticipants(ctx context.Context, callID string) ([]ParticipantRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findParticipants(callID)
}

func (s *MemoryStore) FindUserGroupCalls(ctx context.Context, userID string) ([]CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.findUserGroupCalls(userID)
}

func (s *MemoryStore) WithTx(ctx context.Context, fn TxFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	if err := fn(ctx, &memTx{state: staged}); err != nil {
		return err
	}
	s.state = staged
	return nil
}

func (s *MemoryStore) DeleteAllUserCalls(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := s.state.clone()
	n := 0
	for id, c := range staged.calls {
		if !c.IsGroup {
			staged.delete(id)
			n++
		}
	}
	s.state = staged
	return n, nil
}

type memState struct {
	calls map[string]CallRecord
	parts map[string][]ParticipantRecord
}

func newMemState() memState {
	return memState{
		calls: make(map[string]CallRecord),
		parts: make(map[string][]ParticipantRecord),
	}
}

func (m memState) clone() memState {
	out := memState{
		calls: make(map[string]CallRecord, len(m.calls)),
		parts: make(map[string][]ParticipantRecord, len(m.parts)),
	}
	for k, v := range m.calls {
		out.calls[k] = v
	}
	for k, v := range m.parts {
		out.parts[k] = append([]ParticipantRecord(nil), v...)
	}
	return out
}

func (m memState) find(id string) (CallRecord, bool, error) {
	c, ok := m.calls[id]
	return c, ok, nil
}

func (m memState) findByGroupOwner(ownerID string) (CallRecord, bool, error) {
	for _, c := range m.calls {
		if c.IsGroup && c.OwnerID == ownerID {
			return c, true, nil
		}
	}
	return CallRecord{}, false, nil
}

func (m memState) findParticipants(callID string) ([]ParticipantRecord, error) {
	return append([]ParticipantRecord(nil), m.parts[callID]...), nil
}

func (m memState) findUserGroupCalls(userID string) ([]CallRecord, error) {
	var out []CallRecord
	for id, c := range m.calls {
		if !c.IsGroup {
			continue
		}
		for _, p := range m.parts[id] {
			if p.ID == userID && p.Type == ParticipantTypeUser {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m memState) delete(id string) bool {
	if _, ok := m.calls[id]; !ok {
		return false
	}
	delete(m.calls, id)
	delete(m.parts, id)
	return true
}

type memTx struct {
	state memState
}

func (t *memTx) Find(ctx context.Context, id string) (CallRecord, bool, error) {
	return t.state.find(id)
}

func (t *memTx) FindByGroupOwner(ctx context.Context, ownerID string) (CallRecord, bool, error) {
	return t.state.findByGroupOwner(ownerID)
}

func (t *memTx) FindParticipants(ctx context.Context, callID string) ([]ParticipantRecord, error) {
	return t.state.findParticipants(callID)
}

func (t *memTx) FindUserGroupCalls(ctx context.Context, userID string) ([]CallRecord, error) {
	return t.state.findUserGroupCalls(userID)
}

func (t *memTx) CreateCall(ctx context.Context, c CallRecord) error {
	if _, ok := t.state.calls[c.ID]; ok {
		return &DuplicateKeyError{Key: KeyCallID}
	}
	if c.IsGroup {
		if _, ok, _ := t.state.findByGroupOwner(c.OwnerID); ok {
			return &DuplicateKeyError{Key: KeyGroupOwner}
		}
	}
	t.state.calls[c.ID] = c
	return nil
}

func (t *memTx) UpdateCall(ctx context.Context, c CallRecord) error {
	if _, ok := t.state.calls[c.ID]; !ok {
		return ErrNotFound
	}
	t.state.calls[c.ID] = c
	return nil
}

func (t *memTx) DeleteCall(ctx context.Context, id string) (bool, error) {
	return t.state.delete(id), nil
}

func (t *memTx) CreateParticipant(ctx context.Context, p ParticipantRecord) error {
	if _, ok := t.state.calls[p.CallID]; !ok {
		return ErrNotFound
	}
	for _, existing := range t.state.parts[p.CallID] {
		if existing.ID == p.ID {
			return &DuplicateKeyError{Key: "participant_id"}
		}
	}
	t.state.parts[p.CallID] = append(t.state.parts[p.CallID], p)
	return nil
}

func (t *memTx) UpdateParticipant(ctx context.Context, p ParticipantRecord) error {
	parts := t.state.parts[p.CallID]
	for i := range parts {
		if parts[i].ID == p.ID {
			parts[i] = p
			return nil
		}
	}
	return ErrNotFound
}
