package presence

import (
	"fmt"
	"testing"
)

func stateEvent(callID, state string) Event {
	return Event{Kind: EventStateChanged, State: StateChange{CallID: callID, State: state}}
}

func TestDispatcher_SyncOrderAndIsolation(t *testing.T) {
	r := NewRegistry()
	failing := &recordingListener{user: "alice", client: "c1", fail: true}
	panicking := &recordingListener{user: "alice", client: "c2", panics: true}
	ok := &recordingListener{user: "alice", client: "c3"}
	bob := &recordingListener{user: "bob", client: "c4"}
	r.Register(failing)
	r.Register(panicking)
	r.Register(ok)
	r.Register(bob)

	d := NewDispatcher(r, 0, 0, nil)
	d.Dispatch([]string{"alice", "bob", "nobody"}, stateEvent("call1", "started"))

	if got := ok.Events(); len(got) != 1 || got[0] != "call1:started" {
		t.Fatalf("expected delivery after failing listeners, got %v", got)
	}
	if got := bob.Events(); len(got) != 1 {
		t.Fatalf("expected bob delivery, got %v", got)
	}
	if got := failing.Events(); len(got) != 1 {
		t.Fatalf("failing listener should still be invoked once, got %v", got)
	}
}

func TestDispatcher_MembershipEvents(t *testing.T) {
	r := NewRegistry()
	l := &recordingListener{user: "alice"}
	r.Register(l)

	d := NewDispatcher(r, 0, 0, nil)
	d.Dispatch([]string{"alice"}, Event{Kind: EventParticipantJoined, Membership: Membership{CallID: "c", ParticipantID: "bob"}})
	d.Dispatch([]string{"alice"}, Event{Kind: EventParticipantLeaved, Membership: Membership{CallID: "c", ParticipantID: "bob"}})

	got := l.Events()
	if len(got) != 2 || got[0] != "c:joined:bob" || got[1] != "c:leaved:bob" {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestDispatcher_WorkersKeepPerUserOrder(t *testing.T) {
	r := NewRegistry()
	alice := &recordingListener{user: "alice"}
	bob := &recordingListener{user: "bob"}
	r.Register(alice)
	r.Register(bob)

	d := NewDispatcher(r, 4, 8, nil)
	for i := 0; i < 100; i++ {
		d.Dispatch([]string{"alice", "bob"}, stateEvent(fmt.Sprintf("c%03d", i), "started"))
	}
	d.Close()

	for _, l := range []*recordingListener{alice, bob} {
		got := l.Events()
		if len(got) != 100 {
			t.Fatalf("%s: expected 100 events, got %d", l.user, len(got))
		}
		for i, e := range got {
			if want := fmt.Sprintf("c%03d:started", i); e != want {
				t.Fatalf("%s: event %d = %q, want %q", l.user, i, e, want)
			}
		}
	}

	// After Close delivery falls back to the caller's goroutine.
	d.Dispatch([]string{"alice"}, stateEvent("late", "stopped"))
	if got := alice.Events(); got[len(got)-1] != "late:stopped" {
		t.Fatalf("expected synchronous delivery after close, got %v", got[len(got)-1])
	}
}
