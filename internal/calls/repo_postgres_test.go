package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func TestPostgresStore_Find(t *testing.T) {
	s, mock := newMockStore(t)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, title, owner_id, owner_type, provider_type, state, last_date, is_group, is_user, settings FROM calls WHERE id = \$1`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(callColumns).
			AddRow("c1", "t", "alice", "user", "webrtc", nil, at, false, true, nil))

	rec, ok, err := s.Find(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, OwnerUser, rec.OwnerType)
	assert.Equal(t, CallState(""), rec.State)
	assert.Equal(t, CallStateStopped, rec.State.OrStopped())
	assert.True(t, rec.IsUser)
	assert.Equal(t, at, rec.LastDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindMissing(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`FROM calls WHERE is_group = \$1 AND owner_id = \$2 LIMIT 1`).
		WithArgs(true, "team").
		WillReturnRows(sqlmock.NewRows(callColumns))

	_, ok, err := s.FindByGroupOwner(context.Background(), "team")
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FindParticipantsOrdered(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT id, call_id, type, state, client_id FROM call_participants WHERE call_id = \$1 ORDER BY seq`).
		WithArgs("c1").
		WillReturnRows(sqlmock.NewRows(participantColumns).
			AddRow("bob", "c1", "user", "joined", "cl-b").
			AddRow("+1555", "c1", "sip", nil, nil))

	parts, err := s.FindParticipants(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, ParticipantRecord{ID: "bob", CallID: "c1", Type: "user", State: ParticipantJoined, ClientID: "cl-b"}, parts[0])
	assert.Equal(t, ParticipantRecord{ID: "+1555", CallID: "c1", Type: "sip"}, parts[1])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DuplicateKeyClassification(t *testing.T) {
	cases := []struct {
		constraint string
		key        string
	}{
		{constraintCallPK, KeyCallID},
		{constraintGroupOwner, KeyGroupOwner},
	}
	for _, tc := range cases {
		t.Run(tc.constraint, func(t *testing.T) {
			s, mock := newMockStore(t)
			mock.ExpectBegin()
			mock.ExpectExec(`INSERT INTO calls`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tc.constraint})
			mock.ExpectRollback()

			err := s.WithTx(context.Background(), func(ctx context.Context, repo Repository) error {
				return repo.CreateCall(ctx, CallRecord{ID: "g1", OwnerID: "team", OwnerType: OwnerSpace, IsGroup: true})
			})
			key, dup := duplicateKey(err)
			require.True(t, dup, "expected duplicate key, got %v", err)
			assert.Equal(t, tc.key, key)

			var pgErr *pgconn.PgError
			assert.True(t, errors.As(err, &pgErr))
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_OtherWriteErrorsAreNotDuplicates(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO call_participants`).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "call_participants_call_id_fkey"})
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(ctx context.Context, repo Repository) error {
		return repo.CreateParticipant(ctx, ParticipantRecord{ID: "bob", CallID: "nope", Type: "user"})
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrDuplicateKey))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateMissingRowIsNotFound(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE calls SET`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.WithTx(context.Background(), func(ctx context.Context, repo Repository) error {
		return repo.UpdateCall(ctx, CallRecord{ID: "missing", State: CallStateStopped})
	})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_TransactionCommits(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO calls`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO call_participants`).
		WithArgs("bob", "c1", "user", nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE call_participants SET state = \$1, client_id = \$2 WHERE call_id = \$3 AND id = \$4`).
		WithArgs("joined", "cl-b", "c1", "bob").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.WithTx(context.Background(), func(ctx context.Context, repo Repository) error {
		if err := repo.CreateCall(ctx, CallRecord{ID: "c1", OwnerID: "alice", OwnerType: OwnerUser, IsUser: true}); err != nil {
			return err
		}
		if err := repo.CreateParticipant(ctx, ParticipantRecord{ID: "bob", CallID: "c1", Type: "user"}); err != nil {
			return err
		}
		return repo.UpdateParticipant(ctx, ParticipantRecord{ID: "bob", CallID: "c1", Type: "user", State: ParticipantJoined, ClientID: "cl-b"})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteAllUserCalls(t *testing.T) {
	s, mock := newMockStore(t)
	mock.ExpectExec(`DELETE FROM calls WHERE is_group = \$1`).
		WithArgs(false).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := s.DeleteAllUserCalls(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
