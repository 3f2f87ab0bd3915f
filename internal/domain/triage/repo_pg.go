package triage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/db"
)

type requestRepoPG struct {
	pool    *pgxpool.Pool
	history lifecycle.HistoryRepository
}

func NewRequestRepoPG(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool, history: lifecycle.NewHistoryRepoPG(pool)}
}

func (r *requestRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const requestCols = `id, user_id, symptom, duration, to_char(date, 'YYYY-MM-DD'), status`

func scanRequest(row pgx.Row) (*HealthRequest, error) {
	var hr HealthRequest
	err := row.Scan(&hr.ID, &hr.UserID, &hr.Symptom, &hr.Duration, &hr.Date, &hr.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &hr, err
}

func (r *requestRepoPG) Create(ctx context.Context, hr *HealthRequest) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO health_requests (id, user_id, symptom, duration, date, status)
		VALUES ('r' || nextval('request_id_seq'), $1, $2, $3, $4::date, $5)
		RETURNING id`,
		hr.UserID, hr.Symptom, hr.Duration, hr.Date, hr.Status).Scan(&hr.ID)
}

func (r *requestRepoPG) GetByID(ctx context.Context, id string) (*HealthRequest, error) {
	return scanRequest(r.conn(ctx).QueryRow(ctx, `SELECT `+requestCols+` FROM health_requests WHERE id = $1`, id))
}

func (r *requestRepoPG) ListByUser(ctx context.Context, userID string) ([]*HealthRequest, error) {
	return r.list(ctx, `SELECT `+requestCols+` FROM health_requests WHERE user_id = $1 ORDER BY seq`, userID)
}

func (r *requestRepoPG) ListByUsers(ctx context.Context, userIDs []string) ([]*HealthRequest, error) {
	return r.list(ctx, `SELECT `+requestCols+` FROM health_requests WHERE user_id = ANY($1) ORDER BY seq`, userIDs)
}

func (r *requestRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*HealthRequest, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*HealthRequest{}
	for rows.Next() {
		hr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, hr)
	}
	return items, rows.Err()
}

func (r *requestRepoPG) ExistsForUserOnDate(ctx context.Context, userID, date string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM health_requests WHERE user_id = $1 AND date = $2::date)`,
		userID, date).Scan(&exists)
	return exists, err
}

func (r *requestRepoPG) UpdateStatus(ctx context.Context, change lifecycle.StatusChange, check func(from string) error) (*HealthRequest, error) {
	var out *HealthRequest
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		hr, err := scanRequest(r.conn(ctx).QueryRow(ctx,
			`SELECT `+requestCols+` FROM health_requests WHERE id = $1 FOR UPDATE`, change.EntityID))
		if err != nil {
			return err
		}
		if err := check(hr.Status); err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx,
			`UPDATE health_requests SET status = $2, updated_at = NOW() WHERE id = $1`, change.EntityID, change.To); err != nil {
			return err
		}
		change.From = hr.Status
		if err := r.history.Append(ctx, change); err != nil {
			return fmt.Errorf("record status change: %w", err)
		}
		hr.Status = change.To
		out = hr
		return nil
	})
	return out, err
}

// CreateBatch locks the patient's users row so concurrent batches for the
// same patient queue behind each other until the first one commits.
func (r *requestRepoPG) CreateBatch(ctx context.Context, userID, date string, batch []*HealthRequest) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		if _, err := r.conn(ctx).Exec(ctx, `SELECT 1 FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
			return fmt.Errorf("lock patient: %w", err)
		}
		exists, err := r.ExistsForUserOnDate(ctx, userID, date)
		if err != nil {
			return err
		}
		if exists {
			return ErrAlreadySubmittedToday
		}
		for _, hr := range batch {
			if err := r.Create(ctx, hr); err != nil {
				return err
			}
		}
		return nil
	})
}
