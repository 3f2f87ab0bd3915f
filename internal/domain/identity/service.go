package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/events"
)

var ErrValidation = errors.New("validation failed")

type Service struct {
	users      UserRepository
	postalCode string
	events     events.Publisher
}

func NewService(users UserRepository, defaultPostalCode string) *Service {
	return &Service{users: users, postalCode: defaultPostalCode, events: events.Nop{}}
}

// SetPublisher attaches the sink for registration and profile events.
func (s *Service) SetPublisher(p events.Publisher) {
	if p != nil {
		s.events = p
	}
}

// FindUserByIdentifier matches a phone number or a user id, first match in
// insertion order.
func (s *Service) FindUserByIdentifier(ctx context.Context, identifier string) (*User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrNotFound
	}
	return s.users.FindByIdentifier(ctx, identifier)
}

func (s *Service) FindUserByID(ctx context.Context, id string) (*User, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return s.users.GetByID(ctx, id)
}

// FindPatientsByArea returns patients whose area code equals area exactly.
func (s *Service) FindPatientsByArea(ctx context.Context, area string) ([]*User, error) {
	if area == "" {
		return []*User{}, nil
	}
	return s.users.ListByArea(ctx, area, RolePatient)
}

func (s *Service) PatientIDsInArea(ctx context.Context, area string) ([]string, error) {
	patients, err := s.FindPatientsByArea(ctx, area)
	if err != nil {
		return nil, err
	}
	return lo.Map(patients, func(u *User, _ int) string { return u.ID }), nil
}

// SaveUser registers a new patient. Any role on u is overwritten.
func (s *Service) SaveUser(ctx context.Context, u *User) (*User, error) {
	u.Name = strings.TrimSpace(u.Name)
	u.Phone = strings.TrimSpace(u.Phone)
	u.Village = strings.TrimSpace(u.Village)
	u.Area = strings.ToUpper(strings.TrimSpace(u.Area))
	if u.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if u.Phone == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrValidation)
	}
	u.ID = ""
	u.Role = RolePatient
	if err := s.users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	e := events.New(events.UserRegistered, u.ID)
	e.UserID = u.ID
	e.Data = map[string]string{"area": u.Area}
	_ = s.events.Publish(ctx, e)
	return u.Clone(), nil
}

// CompleteProfile fills in the delivery fields of an existing user.
func (s *Service) CompleteProfile(ctx context.Context, id, name, village, area string) (*User, error) {
	name, village = strings.TrimSpace(name), strings.TrimSpace(village)
	area = strings.ToUpper(strings.TrimSpace(area))
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if village == "" {
		missing = append(missing, "village")
	}
	if area == "" {
		missing = append(missing, "area")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s required", ErrValidation, strings.Join(missing, ", "))
	}

	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Name, u.Village, u.Area = name, village, area
	if err := s.users.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}

	e := events.New(events.ProfileCompleted, u.ID)
	e.UserID = u.ID
	_ = s.events.Publish(ctx, e)
	return u, nil
}

// GetPatientAddressAndPostalCode derives "<village>, <area>" and the
// placeholder postal code. An unknown user yields an empty Address.
func (s *Service) GetPatientAddressAndPostalCode(ctx context.Context, userID string) (Address, error) {
	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return Address{}, nil
	}
	if err != nil {
		return Address{}, err
	}
	return Address{
		Address:    fmt.Sprintf("%s, %s", u.Village, u.Area),
		PostalCode: s.postalCode,
	}, nil
}
