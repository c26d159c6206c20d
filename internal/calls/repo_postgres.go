package calls

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"webconferencing/pkg/utils"
)

// psq is the PostgreSQL statement builder with dollar placeholders.
var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var callColumns = []string{
	"id", "title", "owner_id", "owner_type", "provider_type",
	"state", "last_date", "is_group", "is_user", "settings",
}

var participantColumns = []string{"id", "call_id", "type", "state", "client_id"}

// Constraint names from pkg/database/migrate/migrations.
const (
	constraintCallPK        = "calls_pkey"
	constraintGroupOwner    = "calls_group_owner_uidx"
	constraintParticipantPK = "call_participants_pkey"
)

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore keeps calls and participants in Postgres through database/sql (pgx stdlib).
type PostgresStore struct {
	pgRepo
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{pgRepo: pgRepo{q: db}, db: db}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn TxFunc) error {
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, pgRepo{q: tx})
	})
}

func (s *PostgresStore) DeleteAllUserCalls(ctx context.Context) (int, error) {
	query, args, err := psq.Delete("calls").Where(sq.Eq{"is_group": false}).ToSql()
	if err != nil {
		return 0, fmt.Errorf("building purge query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("deleting user calls: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting user calls: %w", err)
	}
	return int(n), nil
}

type pgRepo struct {
	q queryer
}

func (r pgRepo) Find(ctx context.Context, id string) (CallRecord, bool, error) {
	query, args, err := psq.Select(callColumns...).From("calls").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return CallRecord{}, false, fmt.Errorf("building call query: %w", err)
	}
	return r.findOne(ctx, query, args)
}

func (r pgRepo) FindByGroupOwner(ctx context.Context, ownerID string) (CallRecord, bool, error) {
	query, args, err := psq.Select(callColumns...).From("calls").
		Where(sq.Eq{"owner_id": ownerID, "is_group": true}).
		Limit(1).
		ToSql()
	if err != nil {
		return CallRecord{}, false, fmt.Errorf("building owner query: %w", err)
	}
	return r.findOne(ctx, query, args)
}

func (r pgRepo) findOne(ctx context.Context, query string, args []any) (CallRecord, bool, error) {
	c, err := scanCall(r.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return CallRecord{}, false, nil
	}
	if err != nil {
		return CallRecord{}, false, fmt.Errorf("reading call: %w", err)
	}
	return c, true, nil
}

func (r pgRepo) FindParticipants(ctx context.Context, callID string) ([]ParticipantRecord, error) {
	query, args, err := psq.Select(participantColumns...).From("call_participants").
		Where(sq.Eq{"call_id": callID}).
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building participants query: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying participants: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ParticipantRecord
	for rows.Next() {
		var (
			p               ParticipantRecord
			state, clientID sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.CallID, &p.Type, &state, &clientID); err != nil {
			return nil, fmt.Errorf("scanning participant: %w", err)
		}
		p.State = ParticipantState(state.String)
		p.ClientID = clientID.String
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating participants: %w", err)
	}
	return out, nil
}

func (r pgRepo) FindUserGroupCalls(ctx context.Context, userID string) ([]CallRecord, error) {
	cols := make([]string, len(callColumns))
	for i, c := range callColumns {
		cols[i] = "c." + c
	}
	query, args, err := psq.Select(cols...).From("calls c").
		Join("call_participants p ON p.call_id = c.id").
		Where(sq.Eq{"c.is_group": true, "p.id": userID, "p.type": ParticipantTypeUser}).
		OrderBy("c.id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building user calls query: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying user calls: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []CallRecord
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning call: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating user calls: %w", err)
	}
	return out, nil
}

func (r pgRepo) CreateCall(ctx context.Context, c CallRecord) error {
	query, args, err := psq.Insert("calls").Columns(callColumns...).
		Values(c.ID, nullString(c.Title), c.OwnerID, string(c.OwnerType), c.ProviderType,
			nullString(string(c.State)), c.LastDate, c.IsGroup, c.IsUser, nullString(c.Settings)).
		ToSql()
	if err != nil {
		return fmt.Errorf("building call insert: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return classifyPgError(err)
	}
	return nil
}

func (r pgRepo) UpdateCall(ctx context.Context, c CallRecord) error {
	query, args, err := psq.Update("calls").SetMap(map[string]any{
		"title":         nullString(c.Title),
		"provider_type": c.ProviderType,
		"state":         nullString(string(c.State)),
		"last_date":     c.LastDate,
		"settings":      nullString(c.Settings),
	}).Where(sq.Eq{"id": c.ID}).ToSql()
	if err != nil {
		return fmt.Errorf("building call update: %w", err)
	}
	return r.execOne(ctx, query, args, "updating call")
}

func (r pgRepo) DeleteCall(ctx context.Context, id string) (bool, error) {
	query, args, err := psq.Delete("calls").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return false, fmt.Errorf("building call delete: %w", err)
	}
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("deleting call: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting call: %w", err)
	}
	return n > 0, nil
}

func (r pgRepo) CreateParticipant(ctx context.Context, p ParticipantRecord) error {
	query, args, err := psq.Insert("call_participants").Columns(participantColumns...).
		Values(p.ID, p.CallID, p.Type, nullString(string(p.State)), nullString(p.ClientID)).
		ToSql()
	if err != nil {
		return fmt.Errorf("building participant insert: %w", err)
	}
	if _, err := r.q.ExecContext(ctx, query, args...); err != nil {
		return classifyPgError(err)
	}
	return nil
}

func (r pgRepo) UpdateParticipant(ctx context.Context, p ParticipantRecord) error {
	query, args, err := psq.Update("call_participants").
		Set("state", nullString(string(p.State))).
		Set("client_id", nullString(p.ClientID)).
		Where(sq.Eq{"id": p.ID, "call_id": p.CallID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building participant update: %w", err)
	}
	return r.execOne(ctx, query, args, "updating participant")
}

func (r pgRepo) execOne(ctx context.Context, query string, args []any, op string) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (CallRecord, error) {
	var (
		c                      CallRecord
		ownerType              string
		title, state, settings sql.NullString
	)
	err := row.Scan(&c.ID, &title, &c.OwnerID, &ownerType, &c.ProviderType,
		&state, &c.LastDate, &c.IsGroup, &c.IsUser, &settings)
	if err != nil {
		return CallRecord{}, err
	}
	c.Title = title.String
	c.OwnerType = OwnerType(ownerType)
	c.State = CallState(state.String)
	c.Settings = settings.String
	return c, nil
}

// classifyPgError maps unique violations to DuplicateKeyError by constraint.
func classifyPgError(err error) error {
	if constraint, ok := utils.UniqueViolation(err); ok {
		switch constraint {
		case constraintGroupOwner:
			return &DuplicateKeyError{Key: KeyGroupOwner, Err: err}
		case constraintParticipantPK:
			return &DuplicateKeyError{Key: "participant_id", Err: err}
		case constraintCallPK:
			return &DuplicateKeyError{Key: KeyCallID, Err: err}
		}
	}
	return fmt.Errorf("writing call: %w", err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
