package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/db"
)

type symptomRepoPG struct{ pool *pgxpool.Pool }

func NewSymptomRepoPG(pool *pgxpool.Pool) SymptomRepository {
	return &symptomRepoPG{pool: pool}
}

const symptomCols = `id, name_english, name_telugu, icon`

func scanSymptom(row pgx.Row) (*Symptom, error) {
	var s Symptom
	err := row.Scan(&s.ID, &s.Name.English, &s.Name.Telugu, &s.Icon)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *symptomRepoPG) List(ctx context.Context) ([]*Symptom, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT `+symptomCols+` FROM symptoms ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Symptom
	for rows.Next() {
		s, err := scanSymptom(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *symptomRepoPG) GetByID(ctx context.Context, id string) (*Symptom, error) {
	return scanSymptom(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+symptomCols+` FROM symptoms WHERE id = $1`, id))
}
