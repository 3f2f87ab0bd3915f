package notification

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/auth"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/pkg/pagination"
)

type Handler struct {
	d *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{d: d}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	me := api.Group("/me", auth.RequireRole(identity.RolePatient))
	me.GET("/notifications", h.ListMine)

	asha := api.Group("/notifications", auth.RequireRole(identity.RoleAdmin))
	asha.GET("/stats", h.Stats)
	asha.GET("/failed", h.Failed)
	asha.POST("/:id/retry", h.Retry)
}

// ListMine pages the caller's notifications, newest first.
func (h *Handler) ListMine(c echo.Context) error {
	items := h.d.ListByUser(auth.UserIDFromContext(c.Request().Context()), 0)
	return c.JSON(http.StatusOK, pagination.Slice(items, pagination.FromContext(c)))
}

func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.d.Stats())
}

func (h *Handler) Failed(c echo.Context) error {
	ids := h.d.Failed()
	if ids == nil {
		ids = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"ids": ids, "total": len(ids)})
}

func (h *Handler) Retry(c echo.Context) error {
	id := c.Param("id")
	if _, err := h.d.Get(id); err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	if err := h.d.Retry(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	n, _ := h.d.Get(id)
	return c.JSON(http.StatusOK, n)
}
