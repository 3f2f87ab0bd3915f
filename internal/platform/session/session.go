// Package session tracks who is signed in on a device. A session is either
// anonymous or authenticated as one user; the authenticated state is
// mirrored into device Storage as a signed token and restored from it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/auth"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/events"
)

var (
	ErrWrongRole  = errors.New("account does not have the requested role")
	ErrWrongArea  = errors.New("area code does not match the account")
	ErrValidation = errors.New("validation failed")
)

type State string

const (
	StateAnonymous     State = "anonymous"
	StateAuthenticated State = "authenticated"
)

// Session is the outcome of a login, registration or restore.
type Session struct {
	State     State          `json:"state"`
	User      *identity.User `json:"user,omitempty"`
	Token     string         `json:"-"`
	ExpiresAt time.Time      `json:"expiresAt,omitempty"`
}

func (s *Session) Authenticated() bool { return s != nil && s.State == StateAuthenticated }

func anonymous() *Session { return &Session{State: StateAnonymous} }

// Directory is the part of the identity service sessions need.
type Directory interface {
	FindUserByIdentifier(ctx context.Context, identifier string) (*identity.User, error)
	FindUserByID(ctx context.Context, id string) (*identity.User, error)
	SaveUser(ctx context.Context, u *identity.User) (*identity.User, error)
}

// LoginOptions narrows a login to one kind of account. Empty fields are
// not checked.
type LoginOptions struct {
	Role string
	Area string
}

type Manager struct {
	users   Directory
	codec   *auth.TokenCodec
	revoked *auth.TokenRevocationStore
	events  events.Publisher
	logger  zerolog.Logger
}

func NewManager(users Directory, codec *auth.TokenCodec, revoked *auth.TokenRevocationStore, logger zerolog.Logger) *Manager {
	return &Manager{
		users:   users,
		codec:   codec,
		revoked: revoked,
		events:  events.Nop{},
		logger:  logger,
	}
}

func (m *Manager) SetPublisher(p events.Publisher) {
	if p != nil {
		m.events = p
	}
}

// Login authenticates the account whose phone or id equals identifier.
// On any error the device stays anonymous and storage is untouched.
func (m *Manager) Login(ctx context.Context, st Storage, identifier string, opts LoginOptions) (*Session, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return anonymous(), fmt.Errorf("%w: identifier is required", ErrValidation)
	}
	u, err := m.users.FindUserByIdentifier(ctx, identifier)
	if err != nil {
		return anonymous(), err
	}
	if opts.Role != "" && u.Role != opts.Role {
		return anonymous(), fmt.Errorf("%w: %s account", ErrWrongRole, u.Role)
	}
	if opts.Area != "" && !strings.EqualFold(strings.TrimSpace(opts.Area), u.Area) {
		return anonymous(), ErrWrongArea
	}
	return m.start(ctx, st, u)
}

// Register creates a patient and signs it in.
func (m *Manager) Register(ctx context.Context, st Storage, u *identity.User) (*Session, error) {
	saved, err := m.users.SaveUser(ctx, u)
	if err != nil {
		return anonymous(), err
	}
	return m.start(ctx, st, saved)
}

func (m *Manager) start(ctx context.Context, st Storage, u *identity.User) (*Session, error) {
	sess, err := m.issue(ctx, st, u)
	if err != nil {
		return anonymous(), err
	}
	e := events.New(events.SessionStarted, u.ID)
	e.UserID = u.ID
	e.Actor = u.ID
	_ = m.events.Publish(ctx, e)
	return sess, nil
}

func (m *Manager) issue(ctx context.Context, st Storage, u *identity.User) (*Session, error) {
	profile, err := json.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode session profile: %w", err)
	}
	token, claims, err := m.codec.Issue(u.ID, u.Role, u.Area, profile)
	if err != nil {
		return nil, err
	}
	if err := st.Set(ctx, StorageKey, token); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return &Session{
		State:     StateAuthenticated,
		User:      u.Clone(),
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// Logout returns the device to anonymous and revokes the stored token.
// With all set every token issued to the user so far is revoked.
func (m *Manager) Logout(ctx context.Context, st Storage, all bool) error {
	token, ok, err := st.Get(ctx, StorageKey)
	if err != nil {
		return fmt.Errorf("read session: %w", err)
	}
	if ok {
		if claims, err := m.codec.Parse(token); err == nil {
			m.revoked.Revoke(claims.ID, claims.Subject, claims.ExpiresAt.Time)
			if all {
				m.revoked.RevokeAllForUser(claims.Subject)
			}
			e := events.New(events.SessionEnded, claims.Subject)
			e.UserID = claims.Subject
			e.Actor = claims.Subject
			_ = m.events.Publish(ctx, e)
		}
	}
	if err := st.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// Restore rebuilds the session from storage. The user is looked up again
// by id, so a mirror never outlives or outranks its account. Unreadable,
// revoked or orphaned mirrors are removed and the device is anonymous;
// only storage failures are returned as errors.
func (m *Manager) Restore(ctx context.Context, st Storage) (*Session, error) {
	token, ok, err := st.Get(ctx, StorageKey)
	if err != nil {
		return anonymous(), fmt.Errorf("read session: %w", err)
	}
	if !ok {
		return anonymous(), nil
	}

	claims, err := m.codec.Parse(token)
	if err != nil {
		m.logger.Debug().Err(err).Msg("discarding unreadable session mirror")
		return anonymous(), m.discard(ctx, st)
	}
	var issuedAt time.Time
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	if m.revoked.IsRevoked(claims.ID, claims.Subject, issuedAt) {
		return anonymous(), m.discard(ctx, st)
	}

	u, err := m.users.FindUserByID(ctx, claims.Subject)
	if errors.Is(err, identity.ErrNotFound) {
		m.logger.Info().Str("user_id", claims.Subject).Msg("session user no longer exists")
		return anonymous(), m.discard(ctx, st)
	}
	if err != nil {
		return anonymous(), err
	}

	// A stale mirror is replaced but not revoked. It is re-resolved on every
	// restore, so requests still carrying it see the current record too.
	if stale(claims, u) {
		return m.issue(ctx, st, u)
	}
	return &Session{
		State:     StateAuthenticated,
		User:      u,
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (m *Manager) discard(ctx context.Context, st Storage) error {
	if err := st.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// stale reports whether the mirrored copy differs from the current record.
func stale(claims *auth.Claims, u *identity.User) bool {
	if claims.Role != u.Role || claims.Area != u.Area {
		return true
	}
	var mirrored identity.User
	if err := json.Unmarshal(claims.Profile, &mirrored); err != nil {
		return true
	}
	return mirrored != *u
}
