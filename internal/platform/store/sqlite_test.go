package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/delivery"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
)

func TestOpenSQLite_SeedsAndReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "seva.db")

	s, p, err := OpenSQLite(ctx, path)
	require.NoError(t, err)

	u := &identity.User{Name: "Kavya", Phone: "9000000002", Village: "Eluru", Area: "AP002", Role: identity.RolePatient}
	require.NoError(t, s.Users().Create(ctx, u))
	_, err = s.Orders().UpdateStatus(ctx, lifecycle.StatusChange{Entity: delivery.EntityOrder, EntityID: "o1", To: delivery.StatusConfirmed}, func(string) error { return nil })
	require.NoError(t, err)
	require.NoError(t, p.Close())

	reopened, p2, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer p2.Close()

	got, err := reopened.Users().GetByID(ctx, "p4")
	require.NoError(t, err)
	assert.Equal(t, "Kavya", got.Name)

	o, _ := reopened.Orders().GetByID(ctx, "o1")
	assert.Equal(t, delivery.StatusConfirmed, o.Status)

	history, _ := reopened.History().List(ctx, delivery.EntityOrder, "o1")
	assert.Len(t, history, 1)

	next := &identity.User{Name: "Ravi"}
	require.NoError(t, reopened.Users().Create(ctx, next))
	assert.Equal(t, "p5", next.ID)
}

func TestSQLitePersister_LoadEmpty(t *testing.T) {
	p, err := NewSQLitePersister(filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	defer p.Close()

	_, ok, err := p.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
