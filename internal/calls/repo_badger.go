package calls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
)

// Key layout:
//
//	call/<id>                  CallRecord JSON
//	owner/<owner id>           id of the live group call
//	part/<call id>\x00<seq>    ParticipantRecord JSON, seq keeps insertion order
const (
	badgerCallPrefix  = "call/"
	badgerOwnerPrefix = "owner/"
	badgerPartPrefix  = "part/"
)

// BadgerStore keeps calls in an embedded badger database.
type BadgerStore struct {
	db *badger.DB
}

func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

func (s *BadgerStore) Find(ctx context.Context, id string) (c CallRecord, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		c, ok, err = badgerTx{txn: txn}.Find(ctx, id)
		return err
	})
	return c, ok, err
}

func (s *BadgerStore) FindByGroupOwner(ctx context.Context, ownerID string) (c CallRecord, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		c, ok, err = badgerTx{txn: txn}.FindByGroupOwner(ctx, ownerID)
		return err
	})
	return c, ok, err
}

func (s *BadgerStore) FindParticipants(ctx context.Context, callID string) (parts []ParticipantRecord, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		parts, err = badgerTx{txn: txn}.FindParticipants(ctx, callID)
		return err
	})
	return parts, err
}

func (s *BadgerStore) FindUserGroupCalls(ctx context.Context, userID string) (out []CallRecord, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		out, err = badgerTx{txn: txn}.FindUserGroupCalls(ctx, userID)
		return err
	})
	return out, err
}

func (s *BadgerStore) WithTx(ctx context.Context, fn TxFunc) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return fn(ctx, badgerTx{txn: txn})
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: concurrent transaction: %v", ErrStorage, err)
	}
	return err
}

func (s *BadgerStore) DeleteAllUserCalls(ctx context.Context) (int, error) {
	n := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		tx := badgerTx{txn: txn}
		calls, err := tx.scanCalls()
		if err != nil {
			return err
		}
		for _, c := range calls {
			if c.IsGroup {
				continue
			}
			if _, err := tx.DeleteCall(ctx, c.ID); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

type badgerTx struct {
	txn *badger.Txn
}

func badgerCallKey(id string) []byte { return []byte(badgerCallPrefix + id) }

func badgerOwnerKey(ownerID string) []byte { return []byte(badgerOwnerPrefix + ownerID) }

func partPrefix(callID string) []byte { return []byte(badgerPartPrefix + callID + "\x00") }

func partKey(callID string, seq int) []byte {
	return append(partPrefix(callID), []byte(fmt.Sprintf("%08d", seq))...)
}

func (t badgerTx) getJSON(key []byte, v any) (bool, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func (t badgerTx) setJSON(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return t.txn.Set(key, data)
}

func (t badgerTx) Find(ctx context.Context, id string) (CallRecord, bool, error) {
	var c CallRecord
	ok, err := t.getJSON(badgerCallKey(id), &c)
	return c, ok, err
}

func (t badgerTx) FindByGroupOwner(ctx context.Context, ownerID string) (CallRecord, bool, error) {
	item, err := t.txn.Get(badgerOwnerKey(ownerID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return CallRecord{}, false, nil
	}
	if err != nil {
		return CallRecord{}, false, err
	}
	id, err := item.ValueCopy(nil)
	if err != nil {
		return CallRecord{}, false, err
	}
	return t.Find(ctx, string(id))
}

type storedPart struct {
	key []byte
	rec ParticipantRecord
}

func (t badgerTx) parts(callID string) ([]storedPart, error) {
	prefix := partPrefix(callID)
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var out []storedPart
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		var p ParticipantRecord
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &p)
		}); err != nil {
			return nil, err
		}
		out = append(out, storedPart{key: item.KeyCopy(nil), rec: p})
	}
	return out, nil
}

func (t badgerTx) FindParticipants(ctx context.Context, callID string) ([]ParticipantRecord, error) {
	stored, err := t.parts(callID)
	if err != nil {
		return nil, err
	}
	out := make([]ParticipantRecord, 0, len(stored))
	for _, s := range stored {
		out = append(out, s.rec)
	}
	return out, nil
}

func (t badgerTx) scanCalls() ([]CallRecord, error) {
	prefix := []byte(badgerCallPrefix)
	it := t.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	var out []CallRecord
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var c CallRecord
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &c)
		}); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (t badgerTx) FindUserGroupCalls(ctx context.Context, userID string) ([]CallRecord, error) {
	calls, err := t.scanCalls()
	if err != nil {
		return nil, err
	}
	var out []CallRecord
	for _, c := range calls {
		if !c.IsGroup {
			continue
		}
		parts, err := t.FindParticipants(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		for _, p := range parts {
			if p.ID == userID && p.Type == ParticipantTypeUser {
				out = append(out, c)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t badgerTx) CreateCall(ctx context.Context, c CallRecord) error {
	if _, ok, err := t.Find(ctx, c.ID); err != nil {
		return err
	} else if ok {
		return &DuplicateKeyError{Key: KeyCallID}
	}
	if c.IsGroup {
		if _, err := t.txn.Get(badgerOwnerKey(c.OwnerID)); err == nil {
			return &DuplicateKeyError{Key: KeyGroupOwner}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := t.txn.Set(badgerOwnerKey(c.OwnerID), []byte(c.ID)); err != nil {
			return err
		}
	}
	return t.setJSON(badgerCallKey(c.ID), c)
}

func (t badgerTx) UpdateCall(ctx context.Context, c CallRecord) error {
	existing, ok, err := t.Find(ctx, c.ID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	// Owner and classification never change after creation.
	c.OwnerID, c.OwnerType, c.IsGroup, c.IsUser = existing.OwnerID, existing.OwnerType, existing.IsGroup, existing.IsUser
	return t.setJSON(badgerCallKey(c.ID), c)
}

func (t badgerTx) DeleteCall(ctx context.Context, id string) (bool, error) {
	c, ok, err := t.Find(ctx, id)
	if err != nil || !ok {
		return false, err
	}
	stored, err := t.parts(id)
	if err != nil {
		return false, err
	}
	for _, s := range stored {
		if err := t.txn.Delete(s.key); err != nil {
			return false, err
		}
	}
	if c.IsGroup {
		if err := t.txn.Delete(badgerOwnerKey(c.OwnerID)); err != nil {
			return false, err
		}
	}
	return true, t.txn.Delete(badgerCallKey(id))
}

func (t badgerTx) CreateParticipant(ctx context.Context, p ParticipantRecord) error {
	if _, ok, err := t.Find(ctx, p.CallID); err != nil {
		return err
	} else if !ok {
		return ErrNotFound
	}
	stored, err := t.parts(p.CallID)
	if err != nil {
		return err
	}
	for _, s := range stored {
		if s.rec.ID == p.ID {
			return &DuplicateKeyError{Key: "participant_id"}
		}
	}
	return t.setJSON(partKey(p.CallID, len(stored)), p)
}

func (t badgerTx) UpdateParticipant(ctx context.Context, p ParticipantRecord) error {
	stored, err := t.parts(p.CallID)
	if err != nil {
		return err
	}
	for _, s := range stored {
		if s.rec.ID == p.ID {
			return t.setJSON(s.key, p)
		}
	}
	return ErrNotFound
}
