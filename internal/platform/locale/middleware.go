package locale

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const (
	LanguageHeader        = "X-Language"
	ContentLanguageHeader = "Content-Language"
)

// Middleware attaches a Manager to every request. The language comes from
// the lang query parameter, then X-Language, then the first Accept-Language
// entry that names a supported language.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m := NewManager()
			if l, ok := resolve(c.Request()); ok {
				_ = m.SetLanguage(l)
			}
			c.Response().Header().Set(ContentLanguageHeader, m.SpeechTag())
			c.SetRequest(c.Request().WithContext(WithManager(c.Request().Context(), m)))
			return next(c)
		}
	}
}

func resolve(r *http.Request) (Language, bool) {
	if l, ok := Parse(r.URL.Query().Get("lang")); ok {
		return l, true
	}
	if l, ok := Parse(r.Header.Get(LanguageHeader)); ok {
		return l, true
	}
	for _, part := range strings.Split(r.Header.Get("Accept-Language"), ",") {
		tag, _, _ := strings.Cut(part, ";")
		if l, ok := Parse(tag); ok {
			return l, true
		}
	}
	return "", false
}

type localeResponse struct {
	Language  Language `json:"language"`
	SpeechTag string   `json:"speechTag"`
}

// Handler reports the language resolved for the current request.
func Handler(c echo.Context) error {
	m := FromContext(c.Request().Context())
	return c.JSON(http.StatusOK, localeResponse{Language: m.Language(), SpeechTag: m.SpeechTag()})
}
