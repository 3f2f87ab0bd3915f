package identity

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user not found")

// UserRepository keeps users in insertion order. Create assigns the next
// patient id ("p" followed by a counter that never goes backwards).
type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	// FindByIdentifier returns the first user whose phone or id equals identifier.
	FindByIdentifier(ctx context.Context, identifier string) (*User, error)
	ListByArea(ctx context.Context, area, role string) ([]*User, error)
	List(ctx context.Context) ([]*User, error)
	Update(ctx context.Context, u *User) error
}
