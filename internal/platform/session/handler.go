package session

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/domain/identity"
	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"
)

type Handler struct {
	m    *Manager
	opts CookieOptions
}

func NewHandler(m *Manager, opts CookieOptions) *Handler {
	return &Handler{m: m, opts: opts}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/session")
	g.GET("", h.Current)
	g.POST("/login", h.Login)
	g.POST("/register", h.Register)
	g.POST("/logout", h.Logout)
}

type sessionView struct {
	State     State          `json:"state"`
	User      *identity.User `json:"user,omitempty"`
	Token     string         `json:"token,omitempty"`
	ExpiresAt *time.Time     `json:"expiresAt,omitempty"`
	// ProfileComplete is false when the client should ask for name,
	// village and area before showing the dashboard.
	ProfileComplete bool   `json:"profileComplete"`
	Message         string `json:"message,omitempty"`
}

func view(sess *Session, message string) sessionView {
	v := sessionView{State: sess.State, User: sess.User, Token: sess.Token, Message: message}
	if sess.User != nil {
		v.ProfileComplete = sess.User.ProfileComplete()
	}
	if !sess.ExpiresAt.IsZero() {
		v.ExpiresAt = &sess.ExpiresAt
	}
	return v
}

func (h *Handler) Current(c echo.Context) error {
	sess := FromEcho(c)
	return c.JSON(http.StatusOK, view(sess, ""))
}

type loginRequest struct {
	Identifier string `json:"identifier"`
	Role       string `json:"role"`
	Area       string `json:"area"`
}

func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m := locale.FromContext(c.Request().Context())
	if req.Role != "" && !identity.ValidRole(req.Role) {
		return echo.NewHTTPError(http.StatusBadRequest, "unknown role")
	}
	if req.Role == identity.RoleAdmin && strings.TrimSpace(req.Area) == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, m.Pick(msgAdminInput))
	}

	sess, err := h.m.Login(c.Request().Context(), NewCookieStorage(c, h.opts), req.Identifier,
		LoginOptions{Role: req.Role, Area: req.Area})
	if err != nil {
		return loginError(c, req.Role, err)
	}
	return c.JSON(http.StatusOK, view(sess, m.Pick(welcomeBack(sess.User.Name))))
}

type registerRequest struct {
	Name             string `json:"name"`
	Phone            string `json:"phone"`
	Village          string `json:"village"`
	Area             string `json:"area"`
	HealthCardNumber string `json:"healthCardNumber"`
}

func (h *Handler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	m := locale.FromContext(c.Request().Context())
	if strings.TrimSpace(req.Village) == "" {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, m.Pick(msgIncompleteForm))
	}

	sess, err := h.m.Register(c.Request().Context(), NewCookieStorage(c, h.opts), &identity.User{
		Name:             req.Name,
		Phone:            req.Phone,
		Village:          req.Village,
		Area:             req.Area,
		HealthCardNumber: strings.TrimSpace(req.HealthCardNumber),
	})
	if err != nil {
		if errors.Is(err, identity.ErrValidation) {
			return echo.NewHTTPError(http.StatusUnprocessableEntity, m.Pick(msgIncompleteForm))
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, view(sess, m.Pick(welcome(sess.User.Name))))
}

// Logout clears the device session. ?all=true also revokes the user's
// sessions on every other device.
func (h *Handler) Logout(c echo.Context) error {
	all := c.QueryParam("all") == "true"
	if err := h.m.Logout(c.Request().Context(), NewCookieStorage(c, h.opts), all); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, view(anonymous(), ""))
}

var (
	msgAdminInput = locale.Text{
		English: "Please enter a valid phone number and area code",
		Telugu:  "దయచేసి చెల్లుబాటు అయ్యే ఫోన్ నంబర్ మరియు ప్రాంత కోడ్‌ను నమోదు చేయండి",
	}
	msgIncompleteForm = locale.Text{
		English: "Please fill out all fields",
		Telugu:  "దయచేసి అన్ని ఫీల్డ్‌లను పూరించండి",
	}
	msgWrongArea = locale.Text{
		English: "The area code does not match our records",
		Telugu:  "ప్రాంత కోడ్ మా రికార్డులతో సరిపోలడం లేదు",
	}

	msgNotFound = map[string]locale.Text{
		identity.RolePatient: {
			English: "User not found. Please register as a new user",
			Telugu:  "వినియోగదారు కనుగొనబడలేదు. దయచేసి కొత్త వినియోగదారుగా నమోదు చేయండి",
		},
		identity.RoleAdmin: {
			English: "No ASHA worker account found with this phone number",
			Telugu:  "ఈ ఫోన్ నంబర్‌తో ASHA కార్యకర్త ఖాతా కనుగొనబడలేదు",
		},
		identity.RoleDoctor: {
			English: "No Doctor account found with this mobile number or ID",
			Telugu:  "ఈ ఫోన్ నంబర్ లేదా ఐడి‌తో డాక్టర్ ఖాతా కనుగొనబడలేదు",
		},
	}
	msgWrongRole = map[string]locale.Text{
		identity.RolePatient: {English: "This account is not a patient account", Telugu: "ఈ ఖాతా రోగి ఖాతా కాదు"},
		identity.RoleAdmin:   {English: "This account is not an ASHA worker account", Telugu: "ఈ ఖాతా ASHA కార్యకర్త ఖాతా కాదు"},
		identity.RoleDoctor:  {English: "This account is not a Doctor account", Telugu: "ఈ ఖాతా డాక్టర్ ఖాతా కాదు"},
	}
)

func welcomeBack(name string) locale.Text {
	return locale.Text{English: "Welcome back, " + name, Telugu: "తిరిగి స్వాగతం, " + name}
}

func welcome(name string) locale.Text {
	return locale.Text{English: "Welcome, " + name + "!", Telugu: "స్వాగతం, " + name + "!"}
}

func loginError(c echo.Context, role string, err error) error {
	m := locale.FromContext(c.Request().Context())
	if role == "" {
		role = identity.RolePatient
	}
	switch {
	case errors.Is(err, identity.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, m.Pick(msgNotFound[role]))
	case errors.Is(err, ErrWrongRole):
		return echo.NewHTTPError(http.StatusForbidden, m.Pick(msgWrongRole[role]))
	case errors.Is(err, ErrWrongArea):
		return echo.NewHTTPError(http.StatusForbidden, m.Pick(msgWrongArea))
	case errors.Is(err, ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, m.Pick(msgIncompleteForm))
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
