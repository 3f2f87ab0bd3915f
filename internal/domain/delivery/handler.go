package delivery

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/lifecycle"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/auth"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/blobstore"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	me := api.Group("/me", auth.RequireRole(identity.RolePatient))
	me.GET("/orders", h.ListMyOrders)
	me.POST("/orders", h.PlaceOrder)

	doctor := api.Group("", auth.RequireRole(identity.RoleDoctor))
	doctor.POST("/patients/:id/orders", h.Prescribe)

	asha := api.Group("", auth.RequireRole(identity.RoleAdmin))
	asha.GET("/area/orders", h.ListAreaOrders)
	asha.GET("/area/orders/stats", h.AreaStats)
	asha.PATCH("/orders/:id/status", h.UpdateStatus)
	asha.GET("/orders/:id/history", h.History)

	rx := api.Group("/orders/:id/prescription", auth.RequireRole(identity.RoleAdmin, identity.RolePatient))
	rx.GET("", h.DownloadPrescription)
	rx.PUT("", h.UploadPrescription)
}

type orderView struct {
	*MedicineOrder
	PatientName string   `json:"patientName"`
	StatusLabel string   `json:"statusLabel"`
	Next        []string `json:"next"`
}

var unknownName = locale.Text{English: "Unknown", Telugu: "తెలియదు"}

func (h *Handler) render(c echo.Context, items []*MedicineOrder) []orderView {
	ctx := c.Request().Context()
	m := locale.FromContext(ctx)
	names := map[string]string{}
	out := make([]orderView, 0, len(items))
	for _, o := range items {
		name, ok := names[o.UserID]
		if !ok {
			name = m.Pick(unknownName)
			if u, err := h.svc.patients.FindUserByID(ctx, o.UserID); err == nil {
				name = u.Name
			}
			names[o.UserID] = name
		}
		out = append(out, orderView{
			MedicineOrder: o,
			PatientName:   name,
			StatusLabel:   m.Pick(StatusLabels[o.Status]),
			Next:          Machine.Next(o.Status),
		})
	}
	return out
}

func (h *Handler) ListMyOrders(c echo.Context) error {
	ctx := c.Request().Context()
	items, err := h.svc.FindOrdersByUserID(ctx, auth.UserIDFromContext(ctx))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": h.render(c, items), "total": len(items)})
}

type orderRequest struct {
	Address     string `json:"address" form:"address"`
	PostalCode  string `json:"postalCode" form:"postalCode"`
	Description string `json:"description" form:"description"`
}

// PlaceOrder accepts JSON, or a multipart form whose "prescription" file
// part holds the prescription image.
func (h *Handler) PlaceOrder(c echo.Context) error {
	var req orderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	o := &MedicineOrder{
		UserID:      auth.UserIDFromContext(ctx),
		Address:     req.Address,
		PostalCode:  req.PostalCode,
		Description: req.Description,
	}

	meta, content, closeFn, err := formFile(c, "prescription")
	if err != nil {
		return err
	}
	defer closeFn()

	saved, err := h.svc.PlaceOrder(ctx, o, meta, content)
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusCreated, h.render(c, []*MedicineOrder{saved})[0])
}

type prescribeRequest struct {
	Description string `json:"description"`
}

func (h *Handler) Prescribe(c echo.Context) error {
	var req prescribeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	ctx := c.Request().Context()
	doctor := &identity.User{
		ID:   auth.UserIDFromContext(ctx),
		Area: auth.AreaFromContext(ctx),
		Role: identity.RoleDoctor,
	}
	saved, err := h.svc.Prescribe(ctx, doctor, c.Param("id"), req.Description)
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusCreated, h.render(c, []*MedicineOrder{saved})[0])
}

func (h *Handler) ListAreaOrders(c echo.Context) error {
	ctx := c.Request().Context()
	status := c.QueryParam("status")
	if status != "" && !Machine.Known(status) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown order status %q", status))
	}
	items, err := h.svc.FindOrdersByArea(ctx, auth.AreaFromContext(ctx), status)
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"orders": h.render(c, items), "total": len(items)})
}

// AreaStats returns the dashboard counters, or a single count when
// ?status= is given.
func (h *Handler) AreaStats(c echo.Context) error {
	ctx := c.Request().Context()
	area := auth.AreaFromContext(ctx)
	if status := c.QueryParam("status"); status != "" {
		n, err := h.svc.CountOrdersByAreaAndStatus(ctx, area, status)
		if err != nil {
			return toHTTPError(c, err)
		}
		return c.JSON(http.StatusOK, map[string]interface{}{"area": area, "status": status, "count": n})
	}
	stats, err := h.svc.AreaDashboard(ctx, area)
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) UpdateStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if _, err := h.authorize(c); err != nil {
		return err
	}
	ctx := c.Request().Context()
	o, err := h.svc.UpdateOrderStatus(ctx, c.Param("id"), req.Status, auth.UserIDFromContext(ctx))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, h.render(c, []*MedicineOrder{o})[0])
}

func (h *Handler) History(c echo.Context) error {
	if _, err := h.authorize(c); err != nil {
		return err
	}
	changes, err := h.svc.History(c.Request().Context(), c.Param("id"))
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"history": changes, "total": len(changes)})
}

func (h *Handler) DownloadPrescription(c echo.Context) error {
	o, err := h.authorize(c)
	if err != nil {
		return err
	}
	rc, meta, err := h.svc.Prescription(c.Request().Context(), o)
	if err != nil {
		return toHTTPError(c, err)
	}
	defer rc.Close()

	c.Response().Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s"`, meta.FileName))
	return c.Stream(http.StatusOK, meta.ContentType, rc)
}

func (h *Handler) UploadPrescription(c echo.Context) error {
	o, err := h.authorize(c)
	if err != nil {
		return err
	}
	meta, content, closeFn, err := formFile(c, "prescription")
	if err != nil {
		return err
	}
	defer closeFn()
	if content == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "prescription file is required")
	}
	ctx := c.Request().Context()
	updated, err := h.svc.AttachPrescription(ctx, o.ID, auth.UserIDFromContext(ctx), meta, content)
	if err != nil {
		return toHTTPError(c, err)
	}
	return c.JSON(http.StatusOK, h.render(c, []*MedicineOrder{updated})[0])
}

// authorize loads the order named by :id. Patients reach only their own
// orders, delivery partners only those of their area.
func (h *Handler) authorize(c echo.Context) (*MedicineOrder, error) {
	ctx := c.Request().Context()
	o, err := h.svc.GetOrder(ctx, c.Param("id"))
	if err != nil {
		return nil, toHTTPError(c, err)
	}
	if auth.HasRole(ctx, identity.RolePatient) {
		if o.UserID != auth.UserIDFromContext(ctx) {
			return nil, toHTTPError(c, ErrNotFound)
		}
		return o, nil
	}
	ok, err := h.svc.InArea(ctx, o, auth.AreaFromContext(ctx))
	if err != nil {
		return nil, toHTTPError(c, err)
	}
	if !ok {
		return nil, toHTTPError(c, ErrNotFound)
	}
	return o, nil
}

// formFile opens an optional multipart file part. content is nil when the
// request carries no such part.
func formFile(c echo.Context, field string) (blobstore.Metadata, io.Reader, func(), error) {
	noop := func() {}
	fh, err := c.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return blobstore.Metadata{}, nil, noop, nil
		}
		return blobstore.Metadata{}, nil, noop, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form")
	}
	f, err := fh.Open()
	if err != nil {
		return blobstore.Metadata{}, nil, noop, echo.NewHTTPError(http.StatusInternalServerError, "failed to open uploaded file")
	}
	meta := blobstore.Metadata{FileName: fh.Filename, ContentType: fh.Header.Get(echo.HeaderContentType)}
	return meta, f, func() { f.Close() }, nil
}

var (
	msgNotFound      = locale.Text{English: "Order not found", Telugu: "ఆర్డర్ కనుగొనబడలేదు"}
	msgMissingFields = locale.Text{
		English: "Please fill all required fields and upload prescription image",
		Telugu:  "దయచేసి అవసరమైన అన్ని ఫీల్డ్‌లను పూరించండి మరియు ప్రిస్క్రిప్షన్ ఇమేజ్‌ని అప్‌లోడ్ చేయండి",
	}
)

func toHTTPError(c echo.Context, err error) error {
	m := locale.FromContext(c.Request().Context())
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, identity.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, m.Pick(msgNotFound))
	case errors.Is(err, ErrNoPrescription), errors.Is(err, blobstore.ErrBlobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, ErrPatientNotInArea):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, m.Pick(msgMissingFields))
	case errors.Is(err, lifecycle.ErrUnknownStatus), errors.Is(err, blobstore.ErrMissingFileName),
		errors.Is(err, blobstore.ErrEmptyFile):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, blobstore.ErrInvalidContentType):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
