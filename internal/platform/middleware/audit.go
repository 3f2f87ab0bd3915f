package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/auth"
)

// AuditEntry records who touched which patient-facing resource.
type AuditEntry struct {
	UserID     string
	UserRoles  []string
	Area       string
	Resource   string
	EntityID   string
	Action     string // read, create, update, delete
	IPAddress  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

type AuditRecorder interface {
	RecordAccess(entry AuditEntry) error
}

// AuditRecorderFunc is a function adapter for AuditRecorder.
type AuditRecorderFunc func(entry AuditEntry) error

func (f AuditRecorderFunc) RecordAccess(entry AuditEntry) error {
	return f(entry)
}

// Audit logs every authenticated /api/v1 request after the handler ran.
// Anonymous requests (login, catalog) are not audited.
func Audit(logger zerolog.Logger, recorders ...AuditRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			req := c.Request()
			ctx := req.Context()
			uid := auth.UserIDFromContext(ctx)
			if uid == "" || !strings.HasPrefix(req.URL.Path, "/api/v1/") {
				return err
			}

			entry := AuditEntry{
				UserID:     uid,
				UserRoles:  auth.RolesFromContext(ctx),
				Area:       auth.AreaFromContext(ctx),
				Resource:   resourceOf(c.Path()),
				EntityID:   c.Param("id"),
				Action:     httpMethodToAction(req.Method),
				IPAddress:  c.RealIP(),
				Path:       req.URL.Path,
				Method:     req.Method,
				Timestamp:  time.Now().UTC(),
				RequestID:  requestID(c),
				StatusCode: c.Response().Status,
			}
			if he, ok := err.(*echo.HTTPError); ok {
				entry.StatusCode = he.Code
			}

			for _, r := range recorders {
				if r == nil {
					continue
				}
				if recErr := r.RecordAccess(entry); recErr != nil {
					logger.Error().Err(recErr).Str("request_id", entry.RequestID).Msg("failed to record audit entry")
				}
			}

			logger.Info().
				Str("type", "audit").
				Str("request_id", entry.RequestID).
				Str("user_id", entry.UserID).
				Strs("user_roles", entry.UserRoles).
				Str("area", entry.Area).
				Str("resource", entry.Resource).
				Str("entity_id", entry.EntityID).
				Str("action", entry.Action).
				Int("status", entry.StatusCode).
				Msg("access")

			return err
		}
	}
}

func httpMethodToAction(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut, http.MethodPatch:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}

// resourceOf names the resource of a route pattern:
// "/api/v1/orders/:id/status" is "orders", "/api/v1/me/requests" is
// "requests".
func resourceOf(route string) string {
	segments := strings.Split(strings.TrimPrefix(route, "/api/v1/"), "/")
	for _, s := range segments {
		if s == "" || s == "me" || s == "area" || strings.HasPrefix(s, ":") {
			continue
		}
		return s
	}
	return "unknown"
}
