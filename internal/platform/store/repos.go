package store

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/catalog"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/delivery"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/triage"
)

// -- users --

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, u *identity.User) error {
	return r.s.mutate(ctx, func() error {
		r.s.counters.Patient++
		u.ID = fmt.Sprintf("p%d", r.s.counters.Patient)
		r.s.users = append(r.s.users, u.Clone())
		return nil
	})
}

func (r *userRepo) GetByID(_ context.Context, id string) (*identity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := lo.Find(r.s.users, func(u *identity.User) bool { return u.ID == id })
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *userRepo) FindByIdentifier(_ context.Context, identifier string) (*identity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := lo.Find(r.s.users, func(u *identity.User) bool {
		return u.Phone == identifier || u.ID == identifier
	})
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u.Clone(), nil
}

func (r *userRepo) ListByArea(_ context.Context, area, role string) ([]*identity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	matched := lo.Filter(r.s.users, func(u *identity.User, _ int) bool {
		return u.Area == area && u.Role == role
	})
	return cloneAll(matched, (*identity.User).Clone), nil
}

func (r *userRepo) List(_ context.Context) ([]*identity.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return cloneAll(r.s.users, (*identity.User).Clone), nil
}

func (r *userRepo) Update(ctx context.Context, u *identity.User) error {
	return r.s.mutate(ctx, func() error {
		_, idx, ok := lo.FindIndexOf(r.s.users, func(x *identity.User) bool { return x.ID == u.ID })
		if !ok {
			return identity.ErrNotFound
		}
		r.s.users[idx] = u.Clone()
		return nil
	})
}

// -- health requests --

type requestRepo struct{ s *Store }

func (r *requestRepo) Create(ctx context.Context, req *triage.HealthRequest) error {
	return r.s.mutate(ctx, func() error {
		r.s.counters.Request++
		req.ID = fmt.Sprintf("r%d", r.s.counters.Request)
		r.s.requests = append(r.s.requests, req.Clone())
		return nil
	})
}

// CreateBatch files every request of batch unless userID already has a
// request dated date. The check and the inserts share one critical section.
func (r *requestRepo) CreateBatch(ctx context.Context, userID, date string, batch []*triage.HealthRequest) error {
	return r.s.mutate(ctx, func() error {
		if lo.ContainsBy(r.s.requests, func(x *triage.HealthRequest) bool { return x.UserID == userID && x.Date == date }) {
			return triage.ErrAlreadySubmittedToday
		}
		for _, req := range batch {
			r.s.counters.Request++
			req.ID = fmt.Sprintf("r%d", r.s.counters.Request)
			r.s.requests = append(r.s.requests, req.Clone())
		}
		return nil
	})
}

func (r *requestRepo) GetByID(_ context.Context, id string) (*triage.HealthRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	req, ok := lo.Find(r.s.requests, func(x *triage.HealthRequest) bool { return x.ID == id })
	if !ok {
		return nil, triage.ErrNotFound
	}
	return req.Clone(), nil
}

func (r *requestRepo) ListByUser(ctx context.Context, userID string) ([]*triage.HealthRequest, error) {
	return r.ListByUsers(ctx, []string{userID})
}

func (r *requestRepo) ListByUsers(_ context.Context, userIDs []string) ([]*triage.HealthRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	matched := lo.Filter(r.s.requests, func(x *triage.HealthRequest, _ int) bool {
		return lo.Contains(userIDs, x.UserID)
	})
	return cloneAll(matched, (*triage.HealthRequest).Clone), nil
}

func (r *requestRepo) ExistsForUserOnDate(_ context.Context, userID, date string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return lo.ContainsBy(r.s.requests, func(x *triage.HealthRequest) bool {
		return x.UserID == userID && x.Date == date
	}), nil
}

func (r *requestRepo) UpdateStatus(ctx context.Context, change lifecycle.StatusChange, check func(from string) error) (*triage.HealthRequest, error) {
	var out *triage.HealthRequest
	err := r.s.mutate(ctx, func() error {
		req, ok := lo.Find(r.s.requests, func(x *triage.HealthRequest) bool { return x.ID == change.EntityID })
		if !ok {
			return triage.ErrNotFound
		}
		if err := check(req.Status); err != nil {
			return err
		}
		change.From = req.Status
		req.Status = change.To
		r.s.history = append(r.s.history, change)
		out = req.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// -- medicine orders --

type orderRepo struct{ s *Store }

func (r *orderRepo) Create(ctx context.Context, o *delivery.MedicineOrder) error {
	return r.s.mutate(ctx, func() error {
		r.s.counters.Order++
		o.ID = fmt.Sprintf("o%d", r.s.counters.Order)
		r.s.orders = append(r.s.orders, o.Clone())
		return nil
	})
}

func (r *orderRepo) GetByID(_ context.Context, id string) (*delivery.MedicineOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := lo.Find(r.s.orders, func(x *delivery.MedicineOrder) bool { return x.ID == id })
	if !ok {
		return nil, delivery.ErrNotFound
	}
	return o.Clone(), nil
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string) ([]*delivery.MedicineOrder, error) {
	return r.ListByUsers(ctx, []string{userID})
}

func (r *orderRepo) ListByUsers(_ context.Context, userIDs []string) ([]*delivery.MedicineOrder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	matched := lo.Filter(r.s.orders, func(x *delivery.MedicineOrder, _ int) bool {
		return lo.Contains(userIDs, x.UserID)
	})
	return cloneAll(matched, (*delivery.MedicineOrder).Clone), nil
}

func (r *orderRepo) UpdateStatus(ctx context.Context, change lifecycle.StatusChange, check func(from string) error) (*delivery.MedicineOrder, error) {
	return r.mutate(ctx, change.EntityID, func(o *delivery.MedicineOrder) error {
		if err := check(o.Status); err != nil {
			return err
		}
		change.From = o.Status
		o.Status = change.To
		r.s.history = append(r.s.history, change)
		return nil
	})
}

func (r *orderRepo) SetPrescription(ctx context.Context, id, blobID string) (*delivery.MedicineOrder, error) {
	return r.mutate(ctx, id, func(o *delivery.MedicineOrder) error {
		o.PrescriptionBlobID = blobID
		return nil
	})
}

// mutate applies fn to the stored order with id. fn runs under the store
// lock.
func (r *orderRepo) mutate(ctx context.Context, id string, fn func(o *delivery.MedicineOrder) error) (*delivery.MedicineOrder, error) {
	var out *delivery.MedicineOrder
	err := r.s.mutate(ctx, func() error {
		o, ok := lo.Find(r.s.orders, func(x *delivery.MedicineOrder) bool { return x.ID == id })
		if !ok {
			return delivery.ErrNotFound
		}
		if err := fn(o); err != nil {
			return err
		}
		out = o.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// -- symptoms --

type symptomRepo struct{ s *Store }

func (r *symptomRepo) List(_ context.Context) ([]*catalog.Symptom, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return cloneAll(r.s.symptoms, cloneSymptom), nil
}

func (r *symptomRepo) GetByID(_ context.Context, id string) (*catalog.Symptom, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sym, ok := lo.Find(r.s.symptoms, func(x *catalog.Symptom) bool { return x.ID == id })
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return cloneSymptom(sym), nil
}

// -- status history --

type historyRepo struct{ s *Store }

func (r *historyRepo) Append(ctx context.Context, c lifecycle.StatusChange) error {
	return r.s.mutate(ctx, func() error {
		r.s.history = append(r.s.history, c)
		return nil
	})
}

func (r *historyRepo) List(_ context.Context, entity, entityID string) ([]lifecycle.StatusChange, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return lo.Filter(r.s.history, func(c lifecycle.StatusChange, _ int) bool {
		return c.Entity == entity && c.EntityID == entityID
	}), nil
}
