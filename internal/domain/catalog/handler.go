package catalog

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public catalog endpoints. None require a session.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/symptoms", h.ListSymptoms)
	api.GET("/symptoms/:id", h.GetSymptom)
	api.GET("/health-tips", h.ListHealthTips)
	api.GET("/emergency-contacts", h.ListEmergencyContacts)
	api.GET("/speech/:screen", h.GetSpeechPrompt)
}

type symptomView struct {
	*Symptom
	Label string `json:"label"`
}

type listView struct {
	Title string      `json:"title,omitempty"`
	Items interface{} `json:"items"`
	Total int         `json:"total"`
}

func (h *Handler) ListSymptoms(c echo.Context) error {
	ctx := c.Request().Context()
	m := locale.FromContext(ctx)
	items, err := h.svc.Symptoms(ctx)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	views := make([]symptomView, 0, len(items))
	for _, s := range items {
		views = append(views, symptomView{Symptom: s, Label: m.Pick(s.Name)})
	}
	return c.JSON(http.StatusOK, listView{Items: views, Total: len(views)})
}

func (h *Handler) GetSymptom(c echo.Context) error {
	ctx := c.Request().Context()
	s, err := h.svc.FindSymptomByID(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "symptom not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, symptomView{Symptom: s, Label: locale.FromContext(ctx).Pick(s.Name)})
}

type tipView struct {
	HealthTip
	Label string `json:"label"`
}

func (h *Handler) ListHealthTips(c echo.Context) error {
	m := locale.FromContext(c.Request().Context())
	tips := h.svc.HealthTips()
	views := make([]tipView, 0, len(tips))
	for _, t := range tips {
		views = append(views, tipView{HealthTip: t, Label: m.Pick(t.Text)})
	}
	return c.JSON(http.StatusOK, listView{Title: m.Pick(HealthTipsTitle), Items: views, Total: len(views)})
}

type contactView struct {
	EmergencyContact
	Label string `json:"label"`
	Dial  string `json:"dial"`
}

func (h *Handler) ListEmergencyContacts(c echo.Context) error {
	m := locale.FromContext(c.Request().Context())
	contacts := h.svc.EmergencyContacts()
	views := make([]contactView, 0, len(contacts))
	for _, ec := range contacts {
		views = append(views, contactView{EmergencyContact: ec, Label: m.Pick(ec.Name), Dial: "tel:" + ec.Number})
	}
	return c.JSON(http.StatusOK, listView{Title: m.Pick(EmergencyContactsTitle), Items: views, Total: len(views)})
}

// GetSpeechPrompt returns the text read aloud on a screen. Dashboard
// prompts take the user's name from the name query parameter.
func (h *Handler) GetSpeechPrompt(c echo.Context) error {
	m := locale.FromContext(c.Request().Context())
	u, err := h.svc.SpeechPrompt(Screen(c.Param("screen")), c.QueryParam("name"), m)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, u)
}
