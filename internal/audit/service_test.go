package audit

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

func TestService_AppendRequiresTypeAndCall(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{CallID: "c1"}); err == nil {
		t.Fatalf("expected error without type")
	}
	if err := svc.Append(context.Background(), Event{Type: EventCallRemoved}); err == nil {
		t.Fatalf("expected error without call id")
	}
}

func TestService_AppendsImmutableEvents(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	if err := svc.Append(context.Background(), Event{Type: EventCallSuperseded, CallID: "c1", ActorUserID: "alice"}); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if err := svc.LogPurge(context.Background(), 3); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}

	evs := repo.Events()
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].ID == "" || evs[0].CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamp assigned: %+v", evs[0])
	}
	if evs[1].Type != EventCallsPurged || evs[1].Metadata != `{"count":3}` {
		t.Fatalf("unexpected purge event: %+v", evs[1])
	}
}

func TestPostgresRepo_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectExec("INSERT INTO call_events").
		WithArgs("e1", "call_removed", "c1", "alice", "removed", "", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	repo := NewPostgresRepo(db)
	err = repo.Append(context.Background(), Event{
		ID: "e1", Type: EventCallRemoved, CallID: "c1", ActorUserID: "alice", Message: "removed", CreatedAt: at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
