package catalog

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/locale"
)

func newTestHandler() (*Handler, *echo.Echo) {
	return NewHandler(newTestService()), echo.New()
}

func TestHandler_ListSymptoms_Telugu(t *testing.T) {
	h, e := newTestHandler()
	req := httptest.NewRequest(http.MethodGet, "/symptoms?lang=te", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := locale.Middleware()(h.ListSymptoms)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Items []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"items"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Total != 3 || body.Items[0].Label != "జ్వరం" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHandler_GetSymptom_NotFound(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("s42")

	err := h.GetSymptom(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestHandler_ListEmergencyContacts(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := h.ListEmergencyContacts(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body struct {
		Title string `json:"title"`
		Items []struct {
			Number string `json:"number"`
			Dial   string `json:"dial"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Title != "Emergency Contacts" || body.Items[1].Dial != "tel:102" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestHandler_GetSpeechPrompt(t *testing.T) {
	h, e := newTestHandler()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/?name=Lakshmi", nil), rec)
	c.SetParamNames("screen")
	c.SetParamValues(string(ScreenAdminDashboard))

	if err := h.GetSpeechPrompt(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var u Utterance
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if u.Text != "Welcome Lakshmi. You can view all patients in your area and their health requests." {
		t.Errorf("unexpected text %q", u.Text)
	}
}

func TestHandler_GetSpeechPrompt_UnknownScreen(t *testing.T) {
	h, e := newTestHandler()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("screen")
	c.SetParamValues("nowhere")

	if err := h.GetSpeechPrompt(c); err == nil {
		t.Error("expected error for unknown screen")
	}
}
