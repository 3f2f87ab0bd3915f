package catalog

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("symptom not found")

// SymptomRepository reads the symptom catalog in its display order.
type SymptomRepository interface {
	List(ctx context.Context) ([]*Symptom, error)
	GetByID(ctx context.Context, id string) (*Symptom, error)
}
