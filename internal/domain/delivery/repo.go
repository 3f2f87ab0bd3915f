package delivery

import (
	"context"
	"errors"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
)

var ErrNotFound = errors.New("medicine order not found")

// OrderRepository keeps medicine orders in insertion order.
type OrderRepository interface {
	// Create assigns the next "o<N>" id and appends o.
	Create(ctx context.Context, o *MedicineOrder) error
	GetByID(ctx context.Context, id string) (*MedicineOrder, error)
	ListByUser(ctx context.Context, userID string) ([]*MedicineOrder, error)
	ListByUsers(ctx context.Context, userIDs []string) ([]*MedicineOrder, error)
	// UpdateStatus has the same contract as the request repository's:
	// check sees the current status and vetoes the write atomically, and the
	// accepted change is appended to history with the status update.
	UpdateStatus(ctx context.Context, change lifecycle.StatusChange, check func(from string) error) (*MedicineOrder, error)
	SetPrescription(ctx context.Context, id, blobID string) (*MedicineOrder, error)
}
