package session

import (
	"github.com/labstack/echo/v4"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/auth"
)

const contextKey = "session"

// Middleware restores the session of every request from its cookie or
// bearer token and puts the user into the request context for RequireRole.
func Middleware(m *Manager, opts CookieOptions) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			sess, err := m.Restore(ctx, NewCookieStorage(c, opts))
			if err != nil {
				m.logger.Warn().Err(err).Msg("session restore failed")
			}
			if sess.Authenticated() {
				u := sess.User
				ctx = auth.WithUser(ctx, u.ID, []string{u.Role}, u.Area)
				c.SetRequest(c.Request().WithContext(ctx))
			}
			c.Set(contextKey, sess)
			return next(c)
		}
	}
}

// FromEcho returns the session Middleware restored for c, or an anonymous
// session when the middleware did not run.
func FromEcho(c echo.Context) *Session {
	if sess, ok := c.Get(contextKey).(*Session); ok && sess != nil {
		return sess
	}
	return anonymous()
}
