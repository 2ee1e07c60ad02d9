package httputil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

type testPayload struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (p testPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
	}{
		{name: "valid", body: `{"email":"a@b.test","name":"A"}`, wantOK: true},
		{name: "unknown field", body: `{"email":"a@b.test","role":"superadmin"}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"email":`, wantStatus: http.StatusBadRequest},
		{name: "empty", body: ``, wantStatus: http.StatusBadRequest},
		{name: "trailing object", body: `{"email":"a@b.test"}{"email":"c@d.test"}`, wantStatus: http.StatusBadRequest},
		{name: "fails validation", body: `{"email":"nope"}`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			var p testPayload
			ok := Decode(w, req, &p)
			if ok != tt.wantOK {
				t.Fatalf("Decode() = %v, want %v", ok, tt.wantOK)
			}
			if !ok && w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestDecode_ValidationFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":""}`))
	w := httptest.NewRecorder()

	var p testPayload
	if Decode(w, req, &p) {
		t.Fatal("Decode() should fail")
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	fields, ok := resp["fields"].(map[string]any)
	if !ok {
		t.Fatalf("response has no fields: %v", resp)
	}
	if _, ok := fields["email"]; !ok {
		t.Errorf("fields = %v, want an email entry", fields)
	}
}

func TestDecode_TooLarge(t *testing.T) {
	body := `{"email":"` + strings.Repeat("a", 200) + `@b.test"}`
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(w, req.Body, 50)

	var p testPayload
	if Decode(w, req, &p) {
		t.Fatal("Decode() should fail")
	}
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}
}

func TestRefreshCookie(t *testing.T) {
	cfg := DefaultCookieConfig(true, "")
	w := httptest.NewRecorder()
	SetRefreshCookie(w, "tok", 0, cfg)

	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	c := cookies[0]
	if c.Name != RefreshCookieName || c.Value != "tok" {
		t.Errorf("cookie = %s=%s", c.Name, c.Value)
	}
	if !c.HttpOnly || !c.Secure || c.Path != "/auth" || c.SameSite != http.SameSiteStrictMode {
		t.Errorf("cookie attributes = %+v", c)
	}

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookieName, Value: "tok"})
	if got, ok := GetRefreshTokenFromCookie(req); !ok || got != "tok" {
		t.Errorf("GetRefreshTokenFromCookie() = %q, %v", got, ok)
	}
}
