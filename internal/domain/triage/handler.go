package triage

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/auth"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	me := api.Group("/me", auth.RequireRole("patient"))
	me.GET("/requests", h.ListMyRequests)
	me.POST("/requests", h.SubmitRequests)
	me.GET("/requests/today", h.SubmittedToday)
	me.GET("/stats", h.Stats)
	me.GET("/timeline", h.Timeline)

	staff := api.Group("", auth.RequireRole("doctor", "admin"))
	staff.GET("/area/requests", h.ListAreaRequests)
	staff.PATCH("/requests/:id/status", h.UpdateStatus)
	staff.GET("/requests/:id/history", h.History)
}

type requestView struct {
	*HealthRequest
	StatusLabel string   `json:"statusLabel"`
	Next        []string `json:"next"`
}

// render adds the localized status label and the statuses reachable next.
func render(c echo.Context, items []*HealthRequest) []requestView {
	m := locale.FromContext(c.Request().Context())
	out := make([]requestView, 0, len(items))
	for _, r := range items {
		out = append(out, requestView{HealthRequest: r, StatusLabel: m.Pick(StatusLabels[r.Status]), Next: Machine.Next(r.Status)})
	}
	return out
}

func (h *Handler) ListMyRequests(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.FindRequestsByUserID(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requests": render(c, items), "total": len(items)})
}

type submitRequest struct {
	Entries []Entry `json:"entries"`
	// Symptom and Duration allow a single entry without the list.
	Symptom  string `json:"symptom"`
	Duration int    `json:"duration"`
}

func (h *Handler) SubmitRequests(c echo.Context) error {
	var req submitRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	entries := req.Entries
	if len(entries) == 0 && req.Symptom != "" {
		entries = []Entry{{Symptom: req.Symptom, Duration: req.Duration}}
	}
	ctx := c.Request().Context()
	saved, err := h.svc.SubmitRequests(ctx, auth.UserIDFromContext(ctx), entries)
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"requests": render(c, saved), "total": len(saved)})
}

func (h *Handler) SubmittedToday(c echo.Context) error {
	ctx := c.Request().Context()
	done, err := h.svc.HasSubmittedRequestToday(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]bool{"submitted": done})
}

func (h *Handler) Stats(c echo.Context) error {
	ctx := c.Request().Context()
	stats, err := h.svc.Stats(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) Timeline(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.Timeline(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requests": render(c, items), "total": len(items)})
}

// ListAreaRequests lists requests of the caller's area, optionally
// narrowed by ?status=.
func (h *Handler) ListAreaRequests(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.FindRequestsByArea(ctx, auth.AreaFromContext(ctx))
	if err != nil {
		return toHTTPError(c, err)
	}
	if status := c.QueryParam("status"); status != "" {
		filtered := make([]*HealthRequest, 0, len(items))
		for _, r := range items {
			if r.Status == status {
				filtered = append(filtered, r)
			}
		}
		items = filtered
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"requests": render(c, items), "total": len(items)})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	if err := h.checkArea(c); err != nil {
		return err
	}
	r, err := h.svc.UpdateRequestStatus(ctx, c.Param("id"), req.Status, auth.UserIDFromContext(ctx))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, render(c, []*HealthRequest{r})[0])
}

func (h *Handler) History(c echo.Context) error {
	if err := h.checkArea(c); err != nil {
		return err
	}
	changes, err := h.svc.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": changes, "total": len(changes)})
}

// checkArea hides requests of patients outside the caller's area.
func (h *Handler) checkArea(c echo.Context) error {
	ctx := c.Request().Context()
	r, err := h.svc.GetRequest(ctx, c.Param("id"))
	if err != nil {
		return toHTTPError(c, err)
	}
	ok, err := h.svc.InArea(ctx, r, auth.AreaFromContext(ctx))
	if err != nil {
		return toHTTPError(c, err)
	}
	if !ok {
		return toHTTPError(c, ErrNotFound)
	}
	return nil
}

var (
	msgAlreadySubmitted = locale.Text{
		English: "You have already submitted a health request today",
		Telugu:  "మీరు ఈరోజు ఇప్పటికే ఆరోగ్య అభ్యర్థనను సమర్పించారు",
	}
	msgNotFound = locale.Text{English: "Health request not found", Telugu: "ఆరోగ్య అభ్యర్థన కనుగొనబడలేదు"}
)

func toHTTPError(c echo.Context, err error) error {
	m := locale.FromContext(c.Request().Context())
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, m.Pick(msgNotFound))
	case errors.Is(err, ErrAlreadySubmittedToday):
		return echo.NewHTTPError(http.StatusConflict, m.Pick(msgAlreadySubmitted))
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation), errors.Is(err, lifecycle.ErrUnknownStatus):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
