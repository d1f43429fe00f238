package router

import (
	"net/http"

	"github.com/courtside/backend/internal/admin"
	"github.com/courtside/backend/internal/booking"
	"github.com/courtside/backend/internal/httpx"
	"github.com/courtside/backend/internal/ledger"
)

// New returns an http.Handler that serves the API under /api/v1.
func New(bookings *booking.Handler, credits *ledger.Handler, adm *admin.Handler) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc(base+"/bookings", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			bookings.Book(w, r)
		case http.MethodGet:
			bookings.List(w, r)
		default:
			methodNotAllowed(w)
		}
	})
	// POST /api/v1/bookings/{id}/cancel
	mux.HandleFunc(base+"/bookings/", methodPOST(bookings.Cancel))
	mux.HandleFunc(base+"/sessions/next", methodGET(bookings.GetNextSession))

	mux.HandleFunc(base+"/credits/balance", methodGET(credits.GetBalance))
	mux.HandleFunc(base+"/credits/history", methodGET(credits.GetHistory))

	mux.HandleFunc(base+"/admin/roster", methodGET(adm.GetRoster))
	mux.HandleFunc(base+"/admin/attendance", methodPOST(adm.PostAttendance))
	mux.HandleFunc(base+"/admin/slots/generate", methodPOST(adm.PostGenerateSlots))
	mux.HandleFunc(base+"/admin/credits/grant", methodPOST(adm.PostGrantCredits))

	return mux
}

func methodNotAllowed(w http.ResponseWriter) {
	httpx.Error(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func methodGET(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		h(w, r)
	}
}

func methodPOST(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		h(w, r)
	}
}
