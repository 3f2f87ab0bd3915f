package triage

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/catalog"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/events"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/pkg/calendar"
)

var (
	ErrValidation            = errors.New("validation failed")
	ErrAlreadySubmittedToday = errors.New("a health request was already submitted today")
)

// PatientDirectory resolves the patients registered in an area.
type PatientDirectory interface {
	PatientIDsInArea(ctx context.Context, area string) ([]string, error)
}

type SymptomResolver interface {
	ResolveSymptom(ctx context.Context, label string) (*catalog.Symptom, error)
}

type Service struct {
	requests RequestRepository
	history  lifecycle.HistoryRepository
	patients PatientDirectory
	symptoms SymptomResolver
	cal      *calendar.Calendar
	events   events.Publisher
}

func NewService(requests RequestRepository, history lifecycle.HistoryRepository, patients PatientDirectory, symptoms SymptomResolver, cal *calendar.Calendar) *Service {
	return &Service{
		requests: requests,
		history:  history,
		patients: patients,
		symptoms: symptoms,
		cal:      cal,
		events:   events.Nop{},
	}
}

func (s *Service) SetPublisher(p events.Publisher) {
	if p != nil {
		s.events = p
	}
}

func (s *Service) FindRequestsByUserID(ctx context.Context, userID string) ([]*HealthRequest, error) {
	return s.requests.ListByUser(ctx, userID)
}

// FindRequestsByArea returns the requests of every patient in area, in
// insertion order.
func (s *Service) FindRequestsByArea(ctx context.Context, area string) ([]*HealthRequest, error) {
	ids, err := s.patients.PatientIDsInArea(ctx, area)
	if err != nil {
		return nil, fmt.Errorf("resolve area patients: %w", err)
	}
	if len(ids) == 0 {
		return []*HealthRequest{}, nil
	}
	return s.requests.ListByUsers(ctx, ids)
}

func (s *Service) GetRequest(ctx context.Context, id string) (*HealthRequest, error) {
	return s.requests.GetByID(ctx, id)
}

// InArea reports whether the request belongs to a patient of area.
func (s *Service) InArea(ctx context.Context, r *HealthRequest, area string) (bool, error) {
	ids, err := s.patients.PatientIDsInArea(ctx, area)
	if err != nil {
		return false, err
	}
	return lo.Contains(ids, r.UserID), nil
}

func (s *Service) normalize(ctx context.Context, r *HealthRequest) error {
	if r.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if r.Duration <= 0 {
		return fmt.Errorf("%w: duration must be a positive number of days", ErrValidation)
	}
	sym, err := s.symptoms.ResolveSymptom(ctx, r.Symptom)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return fmt.Errorf("%w: unknown symptom %q", ErrValidation, r.Symptom)
		}
		return err
	}
	r.Symptom = sym.ID
	return nil
}

// SaveRequest stores r as a new pending request dated today.
func (s *Service) SaveRequest(ctx context.Context, r *HealthRequest) (*HealthRequest, error) {
	if err := s.normalize(ctx, r); err != nil {
		return nil, err
	}
	return s.create(ctx, r)
}

func (s *Service) create(ctx context.Context, r *HealthRequest) (*HealthRequest, error) {
	s.stamp(r, s.cal.Today())
	if err := s.requests.Create(ctx, r); err != nil {
		return nil, fmt.Errorf("create health request: %w", err)
	}
	s.created(ctx, r)
	return r.Clone(), nil
}

func (s *Service) stamp(r *HealthRequest, date string) {
	r.ID = ""
	r.Date = date
	r.Status = Machine.Initial()
}

func (s *Service) created(ctx context.Context, r *HealthRequest) {
	e := events.New(events.RequestCreated, r.ID)
	e.UserID = r.UserID
	e.To = r.Status
	e.Data = map[string]string{"symptom": r.Symptom}
	_ = s.events.Publish(ctx, e)
}

// SubmitRequests files one request per entry. The whole batch is refused
// when the patient already submitted today, or when any entry is invalid.
func (s *Service) SubmitRequests(ctx context.Context, userID string, entries []Entry) ([]*HealthRequest, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: select at least one symptom", ErrValidation)
	}
	batch := make([]*HealthRequest, 0, len(entries))
	for _, en := range entries {
		r := &HealthRequest{UserID: userID, Symptom: en.Symptom, Duration: en.Duration}
		if err := s.normalize(ctx, r); err != nil {
			return nil, err
		}
		batch = append(batch, r)
	}

	today := s.cal.Today()
	for _, r := range batch {
		s.stamp(r, today)
	}
	if err := s.requests.CreateBatch(ctx, userID, today, batch); err != nil {
		if errors.Is(err, ErrAlreadySubmittedToday) {
			return nil, err
		}
		return nil, fmt.Errorf("create health requests: %w", err)
	}

	out := make([]*HealthRequest, 0, len(batch))
	for _, r := range batch {
		s.created(ctx, r)
		out = append(out, r.Clone())
	}
	return out, nil
}

// UpdateRequestStatus applies a lifecycle move and records it in history.
// Unknown ids return ErrNotFound and change nothing.
func (s *Service) UpdateRequestStatus(ctx context.Context, id, status, actor string) (*HealthRequest, error) {
	var from string
	r, err := s.requests.UpdateStatus(ctx, lifecycle.StatusChange{
		Entity:    EntityRequest,
		EntityID:  id,
		To:        status,
		ChangedBy: actor,
		ChangedAt: s.cal.Now(),
	}, func(current string) error {
		from = current
		return Machine.Validate(current, status)
	})
	if err != nil {
		return nil, err
	}

	e := events.New(events.RequestStatusChanged, r.ID)
	e.UserID = r.UserID
	e.Actor = actor
	e.From = from
	e.To = r.Status
	e.Data = map[string]string{"symptom": r.Symptom}
	_ = s.events.Publish(ctx, e)
	return r, nil
}

// HasSubmittedRequestToday reports whether userID has any request dated today.
func (s *Service) HasSubmittedRequestToday(ctx context.Context, userID string) (bool, error) {
	return s.requests.ExistsForUserOnDate(ctx, userID, s.cal.Today())
}

func (s *Service) Stats(ctx context.Context, userID string) (HealthStats, error) {
	items, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return HealthStats{}, err
	}
	return HealthStats{
		Total:     len(items),
		Pending:   lo.CountBy(items, func(r *HealthRequest) bool { return r.Status == StatusPending }),
		Completed: lo.CountBy(items, func(r *HealthRequest) bool { return r.Status == StatusCompleted }),
	}, nil
}

// Timeline lists a patient's requests most recent first. Requests of the
// same day keep reverse submission order.
func (s *Service) Timeline(ctx context.Context, userID string) ([]*HealthRequest, error) {
	items, err := s.requests.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	items = lo.Reverse(items)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Date > items[j].Date })
	return items, nil
}

func (s *Service) History(ctx context.Context, id string) ([]lifecycle.StatusChange, error) {
	if _, err := s.requests.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return s.history.List(ctx, EntityRequest, id)
}
