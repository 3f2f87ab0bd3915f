// Package store is the in-process entity store. It owns the users, health
// requests, medicine orders, symptom catalog and status history, seeded
// from Fixtures, and hands out repositories over them.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/catalog"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/delivery"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/triage"
)

// Counters hold the last number handed out per id prefix.
type Counters struct {
	Patient int `json:"patient"`
	Request int `json:"request"`
	Order   int `json:"order"`
}

// Snapshot is a deep copy of everything the store holds.
type Snapshot struct {
	Users    []*identity.User          `json:"users"`
	Requests []*triage.HealthRequest   `json:"requests"`
	Orders   []*delivery.MedicineOrder `json:"orders"`
	Symptoms []*catalog.Symptom        `json:"symptoms"`
	History  []lifecycle.StatusChange  `json:"history"`
	Counters Counters                  `json:"counters"`
}

// Persister receives a snapshot after every successful mutation. Save is
// called with the store locked, so snapshots arrive in mutation order.
type Persister interface {
	Save(ctx context.Context, s Snapshot) error
}

type Store struct {
	mu       sync.RWMutex
	users    []*identity.User
	requests []*triage.HealthRequest
	orders   []*delivery.MedicineOrder
	symptoms []*catalog.Symptom
	history  []lifecycle.StatusChange
	counters Counters

	persister Persister
}

// New returns a store seeded with Fixtures.
func New() *Store {
	s := &Store{}
	s.load(Fixtures())
	return s
}

// SetPersister registers p to be called after each mutation. Pass nil to
// stop persisting.
func (s *Store) SetPersister(p Persister) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persister = p
}

// Reset drops every change and reseeds from Fixtures. Counters restart
// from the seed.
func (s *Store) Reset(ctx context.Context) error {
	return s.mutate(ctx, func() error {
		s.load(Fixtures())
		return nil
	})
}

// Export copies the current state.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.export()
}

// export must be called with mu held.
func (s *Store) export() Snapshot {
	return Snapshot{
		Users:    cloneAll(s.users, (*identity.User).Clone),
		Requests: cloneAll(s.requests, (*triage.HealthRequest).Clone),
		Orders:   cloneAll(s.orders, (*delivery.MedicineOrder).Clone),
		Symptoms: cloneAll(s.symptoms, cloneSymptom),
		History:  append([]lifecycle.StatusChange(nil), s.history...),
		Counters: s.counters,
	}
}

// Import replaces the current state with snap. Counters below the ids
// present in snap are raised so new ids never collide.
func (s *Store) Import(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load(snap)
}

// load must be called with mu held.
func (s *Store) load(snap Snapshot) {
	s.users = cloneAll(snap.Users, (*identity.User).Clone)
	s.requests = cloneAll(snap.Requests, (*triage.HealthRequest).Clone)
	s.orders = cloneAll(snap.Orders, (*delivery.MedicineOrder).Clone)
	s.symptoms = cloneAll(snap.Symptoms, cloneSymptom)
	s.history = append([]lifecycle.StatusChange(nil), snap.History...)

	s.counters = Counters{
		Patient: max(snap.Counters.Patient, maxSuffix(lo.Map(s.users, func(u *identity.User, _ int) string { return u.ID }), "p")),
		Request: max(snap.Counters.Request, maxSuffix(lo.Map(s.requests, func(r *triage.HealthRequest, _ int) string { return r.ID }), "r")),
		Order:   max(snap.Counters.Order, maxSuffix(lo.Map(s.orders, func(o *delivery.MedicineOrder, _ int) string { return o.ID }), "o")),
	}
}

// mutate runs fn under the write lock and hands the result to the
// persister before the lock is released. When the save fails the store
// goes back to the state fn started from and the error is returned, so a
// retried call does not apply twice.
func (s *Store) mutate(ctx context.Context, fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var before Snapshot
	if s.persister != nil {
		before = s.export()
	}
	if err := fn(); err != nil {
		return err
	}
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, s.export()); err != nil {
		s.load(before)
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

// Users returns the user repository backed by this store.
func (s *Store) Users() identity.UserRepository { return &userRepo{s} }

func (s *Store) Requests() triage.RequestRepository { return &requestRepo{s} }

func (s *Store) Orders() delivery.OrderRepository { return &orderRepo{s} }

func (s *Store) Symptoms() catalog.SymptomRepository { return &symptomRepo{s} }

func (s *Store) History() lifecycle.HistoryRepository { return &historyRepo{s} }

// maxSuffix finds the largest N among ids of the form prefix+N.
func maxSuffix(ids []string, prefix string) int {
	n := 0
	for _, id := range ids {
		rest, ok := strings.CutPrefix(id, prefix)
		if !ok {
			continue
		}
		if v, err := strconv.Atoi(rest); err == nil && v > n {
			n = v
		}
	}
	return n
}

func cloneAll[T any](items []*T, clone func(*T) *T) []*T {
	out := make([]*T, 0, len(items))
	for _, it := range items {
		out = append(out, clone(it))
	}
	return out
}

func cloneSymptom(s *catalog.Symptom) *catalog.Symptom {
	c := *s
	return &c
}
