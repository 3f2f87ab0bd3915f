package triage

import (
	"context"
	"errors"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
)

var ErrNotFound = errors.New("health request not found")

// RequestRepository keeps health requests in insertion order.
type RequestRepository interface {
	// Create assigns the next "r<N>" id and appends r.
	Create(ctx context.Context, r *HealthRequest) error
	GetByID(ctx context.Context, id string) (*HealthRequest, error)
	ListByUser(ctx context.Context, userID string) ([]*HealthRequest, error)
	ListByUsers(ctx context.Context, userIDs []string) ([]*HealthRequest, error)
	ExistsForUserOnDate(ctx context.Context, userID, date string) (bool, error)
	// CreateBatch files every request of batch, or none when userID already
	// has a request dated date (ErrAlreadySubmittedToday). The check and the
	// inserts are atomic with respect to other CreateBatch calls.
	CreateBatch(ctx context.Context, userID, date string, batch []*HealthRequest) error
	// UpdateStatus loads request change.EntityID, calls check with its
	// current status and moves it to change.To only when check returns nil.
	// The change, with From filled in, is appended to the status history in
	// the same transaction. The read and both writes are atomic with respect
	// to other UpdateStatus calls.
	UpdateStatus(ctx context.Context, change lifecycle.StatusChange, check func(from string) error) (*HealthRequest, error)
}
