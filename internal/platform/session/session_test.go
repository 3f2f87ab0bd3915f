package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/auth"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/events"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/store"
)

const testKey = "test-signing-key-with-at-least-32-bytes"

type testEnv struct {
	m       *Manager
	users   *identity.Service
	codec   *auth.TokenCodec
	revoked *auth.TokenRevocationStore
	events  *events.Recorder
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	users := identity.NewService(store.New().Users(), "500000")
	codec := auth.NewTokenCodec([]byte(testKey), "seva-test", time.Hour)
	revoked := auth.NewTokenRevocationStore(0, time.Hour)
	t.Cleanup(revoked.Close)

	rec := &events.Recorder{}
	m := NewManager(users, codec, revoked, zerolog.Nop())
	m.SetPublisher(rec)
	return testEnv{m: m, users: users, codec: codec, revoked: revoked, events: rec}
}

func stored(t *testing.T, st Storage) string {
	t.Helper()
	v, _, err := st.Get(context.Background(), StorageKey)
	require.NoError(t, err)
	return v
}

func TestLogin_ByPhone(t *testing.T) {
	env := newTestEnv(t)
	st := NewMemoryStorage()

	sess, err := env.m.Login(context.Background(), st, "9876543210", LoginOptions{})
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())
	assert.Equal(t, "p1", sess.User.ID)
	assert.Equal(t, identity.RolePatient, sess.User.Role)
	assert.Equal(t, sess.Token, stored(t, st))
	assert.Len(t, env.events.OfType(events.SessionStarted), 1)
}

func TestLogin_UnknownStaysAnonymous(t *testing.T) {
	env := newTestEnv(t)
	st := NewMemoryStorage()

	sess, err := env.m.Login(context.Background(), st, "0000000000", LoginOptions{})
	assert.ErrorIs(t, err, identity.ErrNotFound)
	assert.False(t, sess.Authenticated())
	assert.Empty(t, stored(t, st))

	_, err = env.m.Login(context.Background(), st, "   ", LoginOptions{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestLogin_RoleAndArea(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		identifier string
		opts       LoginOptions
		want       error
	}{
		{"patient on admin screen", "9876543210", LoginOptions{Role: identity.RoleAdmin, Area: "AP001"}, ErrWrongRole},
		{"admin wrong area", "9876543213", LoginOptions{Role: identity.RoleAdmin, Area: "AP002"}, ErrWrongArea},
		{"admin lower-case area", "9876543213", LoginOptions{Role: identity.RoleAdmin, Area: "ap001"}, nil},
		{"doctor by id", "d1", LoginOptions{Role: identity.RoleDoctor}, nil},
		{"doctor on patient screen", "d1", LoginOptions{Role: identity.RolePatient}, ErrWrongRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewMemoryStorage()
			sess, err := env.m.Login(ctx, st, tt.identifier, tt.opts)
			if tt.want == nil {
				require.NoError(t, err)
				assert.True(t, sess.Authenticated())
				return
			}
			assert.ErrorIs(t, err, tt.want)
			assert.False(t, sess.Authenticated())
			assert.Empty(t, stored(t, st))
		})
	}
}

func TestRegister_RoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	st := NewMemoryStorage()

	sess, err := env.m.Register(ctx, st, &identity.User{Name: "Anitha", Phone: "9000000001", Village: "Guntur", Role: identity.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, sess.Authenticated())
	assert.Equal(t, "p4", sess.User.ID)
	assert.Equal(t, identity.RolePatient, sess.User.Role)

	u, err := env.users.FindUserByIdentifier(ctx, "9000000001")
	require.NoError(t, err)
	assert.Equal(t, "Anitha", u.Name)
	assert.Equal(t, "Guntur", u.Village)
	assert.Equal(t, "9000000001", u.Phone)

	restored, err := env.m.Restore(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, "p4", restored.User.ID)
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	st := NewMemoryStorage()

	sess, err := env.m.Login(ctx, st, "p2", LoginOptions{})
	require.NoError(t, err)
	token := sess.Token

	require.NoError(t, env.m.Logout(ctx, st, false))
	assert.Empty(t, stored(t, st))
	assert.Len(t, env.events.OfType(events.SessionEnded), 1)

	// A copy of the old token must not bring the session back.
	require.NoError(t, st.Set(ctx, StorageKey, token))
	restored, err := env.m.Restore(ctx, st)
	require.NoError(t, err)
	assert.False(t, restored.Authenticated())
	assert.Empty(t, stored(t, st))
}

func TestLogout_All(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	st := NewMemoryStorage()

	_, err := env.m.Login(ctx, st, "p3", LoginOptions{})
	require.NoError(t, err)
	require.NoError(t, env.m.Logout(ctx, st, true))
	assert.Empty(t, stored(t, st))

	// Logging out an anonymous device is a no-op.
	require.NoError(t, env.m.Logout(ctx, NewMemoryStorage(), false))
}

func TestRestore_Empty(t *testing.T) {
	env := newTestEnv(t)
	sess, err := env.m.Restore(context.Background(), NewMemoryStorage())
	require.NoError(t, err)
	assert.Equal(t, StateAnonymous, sess.State)
}

func TestRestore_TamperedMirror(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for _, bad := range []string{"not-a-token", "a.b.c"} {
		st := NewMemoryStorage()
		require.NoError(t, st.Set(ctx, StorageKey, bad))

		sess, err := env.m.Restore(ctx, st)
		require.NoError(t, err)
		assert.False(t, sess.Authenticated())
		assert.Empty(t, stored(t, st), "unreadable mirror should be removed")
	}

	// Signed with another key while claiming to be the ASHA worker.
	forged := auth.NewTokenCodec([]byte("another-signing-key-32-bytes-long!!"), "seva-test", time.Hour)
	token, _, err := forged.Issue("a1", identity.RoleAdmin, "AP001", nil)
	require.NoError(t, err)
	st := NewMemoryStorage()
	require.NoError(t, st.Set(ctx, StorageKey, token))

	sess, err := env.m.Restore(ctx, st)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
}

func TestRestore_VanishedUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	token, _, err := env.codec.Issue("p99", identity.RolePatient, "AP001", nil)
	require.NoError(t, err)
	st := NewMemoryStorage()
	require.NoError(t, st.Set(ctx, StorageKey, token))

	sess, err := env.m.Restore(ctx, st)
	require.NoError(t, err)
	assert.False(t, sess.Authenticated())
	assert.Empty(t, stored(t, st))
}

func TestRestore_RefreshesStaleMirror(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	st := NewMemoryStorage()

	first, err := env.m.Login(ctx, st, "p2", LoginOptions{})
	require.NoError(t, err)

	_, err = env.users.CompleteProfile(ctx, "p2", "Sita Devi", "Machilipatnam", "AP002")
	require.NoError(t, err)

	sess, err := env.m.Restore(ctx, st)
	require.NoError(t, err)
	require.True(t, sess.Authenticated())
	assert.Equal(t, "Machilipatnam", sess.User.Village)
	assert.Equal(t, "AP002", sess.User.Area)

	token := stored(t, st)
	assert.NotEqual(t, first.Token, token)
	claims, err := env.codec.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "AP002", claims.Area)

	var mirrored identity.User
	require.NoError(t, json.Unmarshal(claims.Profile, &mirrored))
	assert.Equal(t, "Machilipatnam", mirrored.Village)

	// The replaced mirror still restores, re-resolved to the current record.
	old, err := env.codec.Parse(first.Token)
	require.NoError(t, err)
	assert.False(t, env.revoked.IsRevoked(old.ID, old.Subject, old.IssuedAt.Time))

	other := NewMemoryStorage()
	require.NoError(t, other.Set(ctx, StorageKey, first.Token))
	again, err := env.m.Restore(ctx, other)
	require.NoError(t, err)
	require.True(t, again.Authenticated())
	assert.Equal(t, "AP002", again.User.Area)
}

func TestRestore_MirrorDoesNotOutrankAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// A validly signed mirror whose role claim disagrees with the record.
	token, _, err := env.codec.Issue("p1", identity.RoleDoctor, "AP001", nil)
	require.NoError(t, err)
	st := NewMemoryStorage()
	require.NoError(t, st.Set(ctx, StorageKey, token))

	sess, err := env.m.Restore(ctx, st)
	require.NoError(t, err)
	require.True(t, sess.Authenticated())
	assert.Equal(t, identity.RolePatient, sess.User.Role)
}
