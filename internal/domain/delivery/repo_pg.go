package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/db"
)

type orderRepoPG struct {
	pool    *pgxpool.Pool
	history lifecycle.HistoryRepository
}

func NewOrderRepoPG(pool *pgxpool.Pool) OrderRepository {
	return &orderRepoPG{pool: pool, history: lifecycle.NewHistoryRepoPG(pool)}
}

func (r *orderRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const orderCols = `id, user_id, address, postal_code, description, COALESCE(prescription_blob_id, ''),
	COALESCE(prescribed_by, ''), to_char(date, 'YYYY-MM-DD'), status`

func scanOrder(row pgx.Row) (*MedicineOrder, error) {
	var o MedicineOrder
	err := row.Scan(&o.ID, &o.UserID, &o.Address, &o.PostalCode, &o.Description,
		&o.PrescriptionBlobID, &o.PrescribedBy, &o.Date, &o.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &o, err
}

func (r *orderRepoPG) Create(ctx context.Context, o *MedicineOrder) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medicine_orders (id, user_id, address, postal_code, description,
			prescription_blob_id, prescribed_by, date, status)
		VALUES ('o' || nextval('order_id_seq'), $1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7::date, $8)
		RETURNING id`,
		o.UserID, o.Address, o.PostalCode, o.Description,
		o.PrescriptionBlobID, o.PrescribedBy, o.Date, o.Status).Scan(&o.ID)
}

func (r *orderRepoPG) GetByID(ctx context.Context, id string) (*MedicineOrder, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx, `SELECT `+orderCols+` FROM medicine_orders WHERE id = $1`, id))
}

func (r *orderRepoPG) ListByUser(ctx context.Context, userID string) ([]*MedicineOrder, error) {
	return r.list(ctx, `SELECT `+orderCols+` FROM medicine_orders WHERE user_id = $1 ORDER BY seq`, userID)
}

func (r *orderRepoPG) ListByUsers(ctx context.Context, userIDs []string) ([]*MedicineOrder, error) {
	return r.list(ctx, `SELECT `+orderCols+` FROM medicine_orders WHERE user_id = ANY($1) ORDER BY seq`, userIDs)
}

func (r *orderRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*MedicineOrder, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []*MedicineOrder{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

func (r *orderRepoPG) UpdateStatus(ctx context.Context, change lifecycle.StatusChange, check func(from string) error) (*MedicineOrder, error) {
	var out *MedicineOrder
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		o, err := scanOrder(r.conn(ctx).QueryRow(ctx,
			`SELECT `+orderCols+` FROM medicine_orders WHERE id = $1 FOR UPDATE`, change.EntityID))
		if err != nil {
			return err
		}
		if err := check(o.Status); err != nil {
			return err
		}
		if _, err := r.conn(ctx).Exec(ctx,
			`UPDATE medicine_orders SET status = $2, updated_at = NOW() WHERE id = $1`, change.EntityID, change.To); err != nil {
			return err
		}
		change.From = o.Status
		if err := r.history.Append(ctx, change); err != nil {
			return fmt.Errorf("record status change: %w", err)
		}
		o.Status = change.To
		out = o
		return nil
	})
	return out, err
}

func (r *orderRepoPG) SetPrescription(ctx context.Context, id, blobID string) (*MedicineOrder, error) {
	return scanOrder(r.conn(ctx).QueryRow(ctx, `
		UPDATE medicine_orders SET prescription_blob_id = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING `+orderCols, id, blobID))
}
