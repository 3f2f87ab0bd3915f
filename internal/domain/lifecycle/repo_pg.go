package lifecycle

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/db"
)

type historyRepoPG struct{ pool *pgxpool.Pool }

func NewHistoryRepoPG(pool *pgxpool.Pool) HistoryRepository {
	return &historyRepoPG{pool: pool}
}

// Append joins the caller's transaction when there is one, so the history
// row commits together with the status update.
func (r *historyRepoPG) Append(ctx context.Context, c StatusChange) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `
		INSERT INTO status_changes (entity, entity_id, from_status, to_status, changed_by, changed_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6)`,
		c.Entity, c.EntityID, c.From, c.To, c.ChangedBy, c.ChangedAt)
	return err
}

func (r *historyRepoPG) List(ctx context.Context, entity, entityID string) ([]StatusChange, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT entity, entity_id, from_status, to_status, COALESCE(changed_by, ''), changed_at
		FROM status_changes WHERE entity = $1 AND entity_id = $2 ORDER BY seq`, entity, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []StatusChange{}
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.Entity, &c.EntityID, &c.From, &c.To, &c.ChangedBy, &c.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
