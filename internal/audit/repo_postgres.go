package audit

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PostgresRepo appends events to the call_events table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	query, args, err := psq.Insert("call_events").
		Columns("id", "type", "call_id", "actor_user_id", "message", "metadata", "created_at").
		Values(e.ID, string(e.Type), e.CallID, e.ActorUserID, e.Message, e.Metadata, e.CreatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("building event insert: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting call event: %w", err)
	}
	return nil
}
