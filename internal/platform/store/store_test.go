package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/catalog"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/delivery"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/triage"
)

func TestNew_SeedsFixtures(t *testing.T) {
	s := New()
	snap := s.Export()

	assert.Len(t, snap.Users, 6)
	assert.Len(t, snap.Requests, 3)
	assert.Len(t, snap.Orders, 3)
	assert.Len(t, snap.Symptoms, 6)
	assert.Empty(t, snap.History)
	assert.Equal(t, Counters{Patient: 3, Request: 3, Order: 3}, snap.Counters)
}

func TestUsers_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	users := New().Users()

	u := &identity.User{Name: "Anitha", Phone: "9000000001", Village: "Guntur", Area: "AP001", Role: identity.RolePatient}
	require.NoError(t, users.Create(ctx, u))
	assert.Equal(t, "p4", u.ID)

	byPhone, err := users.FindByIdentifier(ctx, "9000000001")
	require.NoError(t, err)
	assert.Equal(t, "p4", byPhone.ID)

	byID, err := users.FindByIdentifier(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "Lakshmi Reddy", byID.Name)

	_, err = users.FindByIdentifier(ctx, "0000")
	assert.ErrorIs(t, err, identity.ErrNotFound)

	patients, err := users.ListByArea(ctx, "AP001", identity.RolePatient)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p4"}, ids(patients))

	// Returned records are copies.
	byID.Name = "changed"
	again, _ := users.GetByID(ctx, "a1")
	assert.Equal(t, "Lakshmi Reddy", again.Name)
}

func TestUsers_FindByIdentifier_FirstMatchWins(t *testing.T) {
	ctx := context.Background()
	users := New().Users()
	require.NoError(t, users.Create(ctx, &identity.User{Name: "Duplicate", Phone: "9876543210", Role: identity.RolePatient}))

	u, err := users.FindByIdentifier(ctx, "9876543210")
	require.NoError(t, err)
	assert.Equal(t, "p1", u.ID)
}

func TestUsers_Update(t *testing.T) {
	ctx := context.Background()
	users := New().Users()

	u, _ := users.GetByID(ctx, "p2")
	u.Village = "Machilipatnam"
	require.NoError(t, users.Update(ctx, u))

	got, _ := users.GetByID(ctx, "p2")
	assert.Equal(t, "Machilipatnam", got.Village)

	err := users.Update(ctx, &identity.User{ID: "p99"})
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestRequests(t *testing.T) {
	ctx := context.Background()
	requests := New().Requests()

	r := &triage.HealthRequest{UserID: "p1", Symptom: "s4", Duration: 1, Date: "2025-04-22", Status: triage.StatusPending}
	require.NoError(t, requests.Create(ctx, r))
	assert.Equal(t, "r4", r.ID)

	mine, _ := requests.ListByUser(ctx, "p1")
	assert.Equal(t, []string{"r1", "r4"}, requestIDs(mine))

	area, _ := requests.ListByUsers(ctx, []string{"p2", "p3"})
	assert.Equal(t, []string{"r2", "r3"}, requestIDs(area))

	ok, _ := requests.ExistsForUserOnDate(ctx, "p1", "2025-04-22")
	assert.True(t, ok)
	ok, _ = requests.ExistsForUserOnDate(ctx, "p2", "2025-04-22")
	assert.False(t, ok)
}

func TestRequests_UpdateStatus_CheckVetoes(t *testing.T) {
	ctx := context.Background()
	requests := New().Requests()
	veto := errors.New("no")

	_, err := requests.UpdateStatus(ctx, lifecycle.StatusChange{EntityID: "r1", To: triage.StatusCompleted}, func(from string) error {
		assert.Equal(t, triage.StatusPending, from)
		return veto
	})
	assert.ErrorIs(t, err, veto)

	got, _ := requests.GetByID(ctx, "r1")
	assert.Equal(t, triage.StatusPending, got.Status)

	_, err = requests.UpdateStatus(ctx, lifecycle.StatusChange{EntityID: "r9", To: triage.StatusReviewed}, func(string) error { return nil })
	assert.ErrorIs(t, err, triage.ErrNotFound)
}

func TestRequests_UpdateStatus_RecordsHistory(t *testing.T) {
	ctx := context.Background()
	s := New()

	moved, err := s.Requests().UpdateStatus(ctx, lifecycle.StatusChange{
		Entity: triage.EntityRequest, EntityID: "r1", To: triage.StatusReviewed, ChangedBy: "d1",
	}, func(string) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, triage.StatusReviewed, moved.Status)

	history, _ := s.History().List(ctx, triage.EntityRequest, "r1")
	require.Len(t, history, 1)
	assert.Equal(t, triage.StatusPending, history[0].From)
	assert.Equal(t, triage.StatusReviewed, history[0].To)
	assert.Equal(t, "d1", history[0].ChangedBy)
}

func TestRequests_CreateBatch(t *testing.T) {
	ctx := context.Background()
	requests := New().Requests()

	batch := []*triage.HealthRequest{
		{UserID: "p2", Symptom: "s1", Duration: 1, Date: "2025-04-22", Status: triage.StatusPending},
		{UserID: "p2", Symptom: "s2", Duration: 3, Date: "2025-04-22", Status: triage.StatusPending},
	}
	require.NoError(t, requests.CreateBatch(ctx, "p2", "2025-04-22", batch))
	assert.Equal(t, "r4", batch[0].ID)
	assert.Equal(t, "r5", batch[1].ID)

	again := []*triage.HealthRequest{{UserID: "p2", Symptom: "s3", Duration: 1, Date: "2025-04-22"}}
	err := requests.CreateBatch(ctx, "p2", "2025-04-22", again)
	assert.ErrorIs(t, err, triage.ErrAlreadySubmittedToday)
	assert.Empty(t, again[0].ID)

	mine, _ := requests.ListByUser(ctx, "p2")
	assert.Equal(t, []string{"r2", "r4", "r5"}, requestIDs(mine))
}

func TestRequests_UpdateStatus_Concurrent(t *testing.T) {
	ctx := context.Background()
	requests := New().Requests()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for _, to := range []string{triage.StatusReviewed, triage.StatusUrgent, triage.StatusReviewed, triage.StatusUrgent} {
		wg.Add(1)
		go func(to string) {
			defer wg.Done()
			_, err := requests.UpdateStatus(ctx, lifecycle.StatusChange{EntityID: "r1", To: to}, func(from string) error {
				return triage.Machine.Validate(from, to)
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}(to)
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestOrders(t *testing.T) {
	ctx := context.Background()
	orders := New().Orders()

	o := &delivery.MedicineOrder{UserID: "p1", Address: "Narayanpur, AP001", PostalCode: "500000", Date: "2025-04-22", Status: delivery.StatusPending}
	require.NoError(t, orders.Create(ctx, o))
	assert.Equal(t, "o4", o.ID)

	updated, err := orders.SetPrescription(ctx, "o4", "blob-1")
	require.NoError(t, err)
	assert.Equal(t, "blob-1", updated.PrescriptionBlobID)

	moved, err := orders.UpdateStatus(ctx, lifecycle.StatusChange{EntityID: "o4", To: delivery.StatusConfirmed}, func(from string) error {
		return delivery.Machine.Validate(from, delivery.StatusConfirmed)
	})
	require.NoError(t, err)
	assert.Equal(t, delivery.StatusConfirmed, moved.Status)

	_, err = orders.SetPrescription(ctx, "o404", "x")
	assert.ErrorIs(t, err, delivery.ErrNotFound)
}

func TestSymptomsAndHistory(t *testing.T) {
	ctx := context.Background()
	s := New()

	list, _ := s.Symptoms().List(ctx)
	require.Len(t, list, 6)
	assert.Equal(t, "Breathing Difficulty", list[5].Name.English)

	_, err := s.Symptoms().GetByID(ctx, "s7")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	h := s.History()
	require.NoError(t, h.Append(ctx, lifecycle.StatusChange{Entity: "order", EntityID: "o1", From: "pending", To: "confirmed"}))
	require.NoError(t, h.Append(ctx, lifecycle.StatusChange{Entity: "request", EntityID: "o1", From: "pending", To: "reviewed"}))

	got, _ := h.List(ctx, "order", "o1")
	require.Len(t, got, 1)
	assert.Equal(t, "confirmed", got[0].To)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Users().Create(ctx, &identity.User{Name: "x", Phone: "1"}))
	require.NoError(t, s.Orders().Create(ctx, &delivery.MedicineOrder{UserID: "p1"}))

	require.NoError(t, s.Reset(ctx))
	snap := s.Export()
	assert.Len(t, snap.Users, 6)
	assert.Len(t, snap.Orders, 3)

	u := &identity.User{Name: "y", Phone: "2"}
	require.NoError(t, s.Users().Create(ctx, u))
	assert.Equal(t, "p4", u.ID)
}

func TestImport_RaisesCounters(t *testing.T) {
	s := New()
	snap := s.Export()
	snap.Users = append(snap.Users, &identity.User{ID: "p10", Role: identity.RolePatient})
	snap.Counters = Counters{}
	s.Import(snap)

	u := &identity.User{Name: "z"}
	require.NoError(t, s.Users().Create(context.Background(), u))
	assert.Equal(t, "p11", u.ID)
	assert.Equal(t, Counters{Patient: 11, Request: 3, Order: 3}, s.Export().Counters)
}

type recordingPersister struct {
	saves []Snapshot
	err   error
}

func (p *recordingPersister) Save(_ context.Context, s Snapshot) error {
	p.saves = append(p.saves, s)
	return p.err
}

func TestPersister_CalledOnMutation(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := &recordingPersister{}
	s.SetPersister(p)

	_, _ = s.Users().GetByID(ctx, "p1")
	assert.Empty(t, p.saves, "reads must not persist")

	require.NoError(t, s.Requests().Create(ctx, &triage.HealthRequest{UserID: "p1"}))
	require.Len(t, p.saves, 1)
	assert.Len(t, p.saves[0].Requests, 4)

	p.err = fmt.Errorf("disk full")
	err := s.History().Append(ctx, lifecycle.StatusChange{Entity: "order"})
	assert.EqualError(t, err, "persist snapshot: disk full")
}

func TestPersister_FailedSaveRollsBack(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := &recordingPersister{err: errors.New("disk full")}
	s.SetPersister(p)

	r := &triage.HealthRequest{UserID: "p1", Symptom: "s2", Duration: 1, Date: "2025-04-22"}
	require.Error(t, s.Requests().Create(ctx, r))

	_, err := s.Requests().UpdateStatus(ctx, lifecycle.StatusChange{
		Entity: triage.EntityRequest, EntityID: "r1", To: triage.StatusReviewed,
	}, func(string) error { return nil })
	require.ErrorContains(t, err, "disk full")

	snap := s.Export()
	assert.Len(t, snap.Requests, 3)
	assert.Equal(t, triage.StatusPending, snap.Requests[0].Status)
	assert.Empty(t, snap.History)
	assert.Equal(t, 3, snap.Counters.Request)

	// A retry once the disk recovers applies exactly once.
	p.err = nil
	require.NoError(t, s.Requests().Create(ctx, r))
	assert.Equal(t, "r4", r.ID)
	assert.Len(t, s.Export().Requests, 4)
}

// gatedPersister blocks the first Save until release is closed.
type gatedPersister struct {
	entered chan struct{}
	release chan struct{}

	mu    sync.Mutex
	saves []Snapshot
	once  sync.Once
}

func (p *gatedPersister) Save(_ context.Context, snap Snapshot) error {
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves = append(p.saves, snap)
	return nil
}

func TestPersister_SnapshotsArriveInOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	p := &gatedPersister{entered: make(chan struct{}), release: make(chan struct{})}
	s.SetPersister(p)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Requests().Create(ctx, &triage.HealthRequest{UserID: "p1"}))
	}()
	<-p.entered
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Requests().Create(ctx, &triage.HealthRequest{UserID: "p2"}))
	}()
	close(p.release)
	wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	require.Len(t, p.saves, 2)
	assert.Len(t, p.saves[0].Requests, 4)
	assert.Len(t, p.saves[1].Requests, 5)
	assert.Len(t, s.Export().Requests, 5)
}

func ids(users []*identity.User) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		out = append(out, u.ID)
	}
	return out
}

func requestIDs(items []*triage.HealthRequest) []string {
	out := make([]string, 0, len(items))
	for _, r := range items {
		out = append(out, r.ID)
	}
	return out
}
