package identity

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	me := api.Group("/me", auth.RequireRole(RolePatient))
	me.PUT("/profile", h.CompleteProfile)
	me.GET("/address", h.GetAddress)

	staff := api.Group("", auth.RequireRole(RoleDoctor, RoleAdmin))
	staff.GET("/area/patients", h.ListAreaPatients)
	staff.GET("/patients/:id", h.GetPatient)
}

type profileRequest struct {
	Name    string `json:"name"`
	Village string `json:"village"`
	Area    string `json:"area"`
}

func (h *Handler) CompleteProfile(c echo.Context) error {
	var req profileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	u, err := h.svc.CompleteProfile(ctx, auth.UserIDFromContext(ctx), req.Name, req.Village, req.Area)
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) GetAddress(c echo.Context) error {
	ctx := c.Request().Context()
	addr, err := h.svc.GetPatientAddressAndPostalCode(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, addr)
}

// ListAreaPatients lists the patients of the caller's own area.
func (h *Handler) ListAreaPatients(c echo.Context) error {
	ctx := c.Request().Context()
	patients, err := h.svc.FindPatientsByArea(ctx, auth.AreaFromContext(ctx))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"area":     auth.AreaFromContext(ctx),
		"patients": patients,
		"total":    len(patients),
	})
}

func (h *Handler) GetPatient(c echo.Context) error {
	ctx := c.Request().Context()
	u, err := h.svc.FindUserByID(ctx, c.Param("id"))
	if err != nil {
		return toHTTPError(err)
	}
	// Staff only see patients of their own area.
	if !u.IsPatient() || u.Area != auth.AreaFromContext(ctx) {
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	}
	return c.JSON(http.StatusOK, u)
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
