package identity

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/db"
)

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const userCols = `id, name, phone, village, area, role, health_card_number`

func (r *userRepoPG) scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Phone, &u.Village, &u.Area, &u.Role, &u.HealthCardNumber)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, name, phone, village, area, role, health_card_number)
		VALUES ('p' || nextval('patient_id_seq'), $1, $2, $3, $4, $5, $6)
		RETURNING id`,
		u.Name, u.Phone, u.Village, u.Area, u.Role, u.HealthCardNumber).Scan(&u.ID)
}

func (r *userRepoPG) GetByID(ctx context.Context, id string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (r *userRepoPG) FindByIdentifier(ctx context.Context, identifier string) (*User, error) {
	return r.scanUser(r.conn(ctx).QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE phone = $1 OR id = $1 ORDER BY seq LIMIT 1`, identifier))
}

func (r *userRepoPG) ListByArea(ctx context.Context, area, role string) ([]*User, error) {
	return r.list(ctx, `SELECT `+userCols+` FROM users WHERE area = $1 AND role = $2 ORDER BY seq`, area, role)
}

func (r *userRepoPG) List(ctx context.Context) ([]*User, error) {
	return r.list(ctx, `SELECT `+userCols+` FROM users ORDER BY seq`)
}

func (r *userRepoPG) list(ctx context.Context, query string, args ...interface{}) ([]*User, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*User
	for rows.Next() {
		u, err := r.scanUser(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

func (r *userRepoPG) Update(ctx context.Context, u *User) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE users SET name=$2, phone=$3, village=$4, area=$5, health_card_number=$6, updated_at=NOW()
		WHERE id = $1`,
		u.ID, u.Name, u.Phone, u.Village, u.Area, u.HealthCardNumber)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
