package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/courtside/backend/internal/admin"
	"github.com/courtside/backend/internal/booking"
	"github.com/courtside/backend/internal/ledger"
)

// Wrong methods must come back as structured JSON, not the stdlib plain-text
// 405, so clients can always decode the error envelope.
func TestWrongMethodIsJSON405(t *testing.T) {
	h := New(&booking.Handler{}, &ledger.Handler{}, admin.NewHandler(nil, nil, nil, nil, nil, nil))

	cases := []struct {
		method string
		target string
	}{
		{http.MethodDelete, "/api/v1/bookings"},
		{http.MethodGet, "/api/v1/bookings/123/cancel"},
		{http.MethodPost, "/api/v1/sessions/next"},
		{http.MethodPost, "/api/v1/credits/balance"},
		{http.MethodPost, "/api/v1/credits/history"},
		{http.MethodPost, "/api/v1/admin/roster"},
		{http.MethodGet, "/api/v1/admin/attendance"},
		{http.MethodGet, "/api/v1/admin/slots/generate"},
		{http.MethodGet, "/api/v1/admin/credits/grant"},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.target, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected 405, got %d", tc.method, tc.target, rec.Code)
			continue
		}
		var body struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Errorf("%s %s: body is not JSON: %s", tc.method, tc.target, rec.Body.String())
			continue
		}
		if body.Code != "method_not_allowed" {
			t.Errorf("%s %s: code %q, want method_not_allowed", tc.method, tc.target, body.Code)
		}
	}
}
