package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/SirraRajkumar/seva-sahyog-bandhu/internal/platform/auth"
)

func TestRequestID_GeneratesNew(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if requestID(c) == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "my-custom-id")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := func(c echo.Context) error {
		if rid := requestID(c); rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}
	RequestID()(handler)(c)

	if rec.Header().Get(RequestIDHeader) != "my-custom-id" {
		t.Errorf("expected my-custom-id in response header, got %s", rec.Header().Get(RequestIDHeader))
	}
}

func TestLogger_LogsRequest(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req = req.WithContext(auth.WithUser(req.Context(), "p1", []string{"patient"}, "AP001"))
	c := e.NewContext(req, httptest.NewRecorder())

	err := Logger(logger)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"user_id":"p1"`) || !strings.Contains(buf.String(), `"path":"/test"`) {
		t.Errorf("unexpected log line: %s", buf.String())
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/panic", nil), httptest.NewRecorder())

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic("test panic")
	})(c)

	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", httpErr.Code)
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/ok", nil), httptest.NewRecorder())

	err := Recovery(zerolog.Nop())(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSecurityHeaders(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/api/v1/me/orders", nil), rec)

	SecurityHeaders(true)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)

	expected := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Content-Security-Policy":   "default-src 'none'; frame-ancestors 'none'",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Cache-Control":             "no-store",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)
	SecurityHeaders(false)(func(c echo.Context) error { return c.NoContent(http.StatusOK) })(c)
	if rec.Header().Get("Strict-Transport-Security") != "" || rec.Header().Get("Cache-Control") != "" {
		t.Error("expected no HSTS or cache header outside the API in development")
	}
}

func TestRateLimit(t *testing.T) {
	e := echo.New()
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2})
	h := mw(func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	call := func(uid string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if uid != "" {
			req = req.WithContext(auth.WithUser(req.Context(), uid, []string{"patient"}, "AP001"))
		}
		return h(e.NewContext(req, httptest.NewRecorder()))
	}

	for i := 0; i < 2; i++ {
		if err := call("p1"); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i, err)
		}
	}
	err := call("p1")
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %v", err)
	}
	// Another user and anonymous callers have their own buckets.
	if err := call("p2"); err != nil {
		t.Errorf("p2 should not be throttled: %v", err)
	}
	if err := call(""); err != nil {
		t.Errorf("anonymous should not be throttled: %v", err)
	}
}

func TestRateLimit_StaffBudget(t *testing.T) {
	cfg := RateLimitConfig{
		RequestsPerSecond: 0.001,
		BurstSize:         2,
		StaffMultiplier:   map[string]float64{"admin": 3},
	}
	l := newLimiter(cfg)

	allowed := func(key string, roles ...string) int {
		n := 0
		for i := 0; i < 10; i++ {
			if ok, _ := l.allow(key, roles); ok {
				n++
			}
		}
		return n
	}
	if n := allowed("user:p1", "patient"); n != 2 {
		t.Errorf("expected a patient burst of 2, got %d", n)
	}
	if n := allowed("user:a1", "admin"); n != 6 {
		t.Errorf("expected an ASHA worker burst of 6, got %d", n)
	}
}

func TestRateLimit_RefillAndSweep(t *testing.T) {
	now := time.Date(2025, 4, 22, 9, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	l.now = func() time.Time { return now }

	if ok, _ := l.allow("ip:10.0.0.1", nil); !ok {
		t.Fatal("first request should pass")
	}
	ok, wait := l.allow("ip:10.0.0.1", nil)
	if ok || wait != time.Second {
		t.Errorf("expected a one second wait, got ok=%v wait=%s", ok, wait)
	}

	now = now.Add(time.Second)
	if ok, _ := l.allow("ip:10.0.0.1", nil); !ok {
		t.Error("expected a token after one second")
	}

	now = now.Add(2 * time.Minute)
	_, _ = l.allow("ip:10.0.0.2", nil)
	if _, ok := l.buckets["ip:10.0.0.1"]; ok {
		t.Error("expected the idle bucket to be dropped")
	}
}

func TestBodyLimit(t *testing.T) {
	e := echo.New()
	mw := BodyLimit(8, 64)
	readAll := mw(func(c echo.Context) error {
		_, err := io.ReadAll(c.Request().Body)
		return err
	})

	tests := []struct {
		name        string
		contentType string
		body        string
		wantCode    int
	}{
		{"small json", echo.MIMEApplicationJSON, `{"a":1}`, 0},
		{"large json", echo.MIMEApplicationJSON, strings.Repeat("x", 32), http.StatusRequestEntityTooLarge},
		{"multipart under upload limit", echo.MIMEMultipartForm + "; boundary=x", strings.Repeat("x", 32), 0},
		{"multipart over upload limit", echo.MIMEMultipartForm + "; boundary=x", strings.Repeat("x", 100), http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, tt.contentType)
			err := readAll(e.NewContext(req, httptest.NewRecorder()))
			code := 0
			if he, ok := err.(*echo.HTTPError); ok {
				code = he.Code
			}
			if code != tt.wantCode {
				t.Errorf("expected %d, got %d (%v)", tt.wantCode, code, err)
			}
		})
	}
}

func TestBodyLimit_UnknownLength(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(strings.Repeat("x", 32)))
	req.ContentLength = -1
	c := e.NewContext(req, httptest.NewRecorder())

	var readErr error
	BodyLimit(8, 8)(func(c echo.Context) error {
		buf := make([]byte, 64)
		_, readErr = c.Request().Body.Read(buf)
		return nil
	})(c)
	if he, ok := readErr.(*echo.HTTPError); !ok || he.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413 while reading, got %v", readErr)
	}
}

func TestRequestTimeout(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := RequestTimeout(10*time.Millisecond)(func(c echo.Context) error {
		<-c.Request().Context().Done()
		return c.Request().Context().Err()
	})(c)
	if he, ok := err.(*echo.HTTPError); !ok || he.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %v", err)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err = RequestTimeout(time.Second)(func(c echo.Context) error {
		if _, ok := c.Request().Context().Deadline(); !ok {
			t.Error("expected a deadline on the request context")
		}
		return c.NoContent(http.StatusOK)
	})(c)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAudit(t *testing.T) {
	var got []AuditEntry
	rec := AuditRecorderFunc(func(e AuditEntry) error {
		got = append(got, e)
		return nil
	})

	e := echo.New()
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if uid := c.Request().Header.Get("X-Test-User"); uid != "" {
				ctx := auth.WithUser(c.Request().Context(), uid, []string{"admin"}, "AP001")
				c.SetRequest(c.Request().WithContext(ctx))
			}
			return next(c)
		}
	})
	e.Use(Audit(zerolog.Nop(), rec))
	e.PATCH("/api/v1/orders/:id/status", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusConflict, "invalid transition")
	})
	e.GET("/api/v1/symptoms", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/o1/status", nil)
	req.Header.Set("X-Test-User", "a1")
	e.ServeHTTP(httptest.NewRecorder(), req)

	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/symptoms", nil))

	if len(got) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(got))
	}
	entry := got[0]
	if entry.UserID != "a1" || entry.Resource != "orders" || entry.EntityID != "o1" ||
		entry.Action != "update" || entry.StatusCode != http.StatusConflict || entry.Area != "AP001" {
		t.Errorf("unexpected entry: %+v", entry)
	}
}

func TestResourceOf(t *testing.T) {
	tests := map[string]string{
		"/api/v1/orders/:id/status": "orders",
		"/api/v1/me/requests":       "requests",
		"/api/v1/area/orders/stats": "orders",
		"/api/v1/patients/:id":      "patients",
		"/api/v1/":                  "unknown",
	}
	for route, want := range tests {
		if got := resourceOf(route); got != want {
			t.Errorf("resourceOf(%q) = %q, want %q", route, got, want)
		}
	}
}
