package session

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// StorageKey is the device storage key holding the signed session mirror.
const StorageKey = "currentUser"

// TokenHeader carries a newly issued mirror back to clients that send it
// as a bearer token instead of a cookie.
const TokenHeader = "X-Session-Token"

// Storage is the client-side key-value store the session mirror lives in.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// MemoryStorage is a Storage for tests and single-device tools.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (s *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *MemoryStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *MemoryStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// CookieOptions controls the attributes of the session cookie.
type CookieOptions struct {
	Secure bool
	MaxAge time.Duration
	Path   string
}

// CookieStorage maps device storage onto the cookies of one HTTP exchange.
// Reads fall back to an "Authorization: Bearer" header so API clients can
// hold the mirror themselves. Writes of the mirror are echoed in TokenHeader.
type CookieStorage struct {
	c    echo.Context
	opts CookieOptions
}

func NewCookieStorage(c echo.Context, opts CookieOptions) *CookieStorage {
	if opts.Path == "" {
		opts.Path = "/"
	}
	return &CookieStorage{c: c, opts: opts}
}

func (s *CookieStorage) Get(_ context.Context, key string) (string, bool, error) {
	if ck, err := s.c.Cookie(key); err == nil && ck.Value != "" {
		return ck.Value, true, nil
	}
	if key == StorageKey {
		header := s.c.Request().Header.Get(echo.HeaderAuthorization)
		if token, ok := strings.CutPrefix(header, "Bearer "); ok && token != "" {
			return strings.TrimSpace(token), true, nil
		}
	}
	return "", false, nil
}

func (s *CookieStorage) Set(_ context.Context, key, value string) error {
	if key == StorageKey {
		s.c.Response().Header().Set(TokenHeader, value)
	}
	s.c.SetCookie(&http.Cookie{
		Name:     key,
		Value:    value,
		Path:     s.opts.Path,
		MaxAge:   int(s.opts.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *CookieStorage) Remove(_ context.Context, key string) error {
	s.c.SetCookie(&http.Cookie{
		Name:     key,
		Value:    "",
		Path:     s.opts.Path,
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   s.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}
