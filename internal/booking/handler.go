package booking

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/backend/internal/httpx"
	"github.com/courtside/backend/internal/ledger"
	"github.com/courtside/backend/internal/middleware"
	"github.com/courtside/backend/internal/models"
	"github.com/courtside/backend/internal/registration"
	"github.com/courtside/backend/internal/slots"
)

// Coordinator is the slice of the booking service the public endpoints use.
type Coordinator interface {
	Book(ctx context.Context, req BookRequest) (*BookResult, error)
	Cancel(ctx context.Context, ownerUID string, id uuid.UUID) (*models.Booking, error)
	NextSession(ctx context.Context, ownerUID string, registrationID uuid.UUID) (*NextSessionResult, error)
	ListByOwner(ctx context.Context, ownerUID string, f ListFilter) ([]*models.Booking, int, error)
}

// Handler serves /api/v1/bookings and /api/v1/sessions endpoints.
type Handler struct {
	Service Coordinator
	Logger  *slog.Logger
}

type bookPayload struct {
	OwnerUID       string `json:"owner_uid"`
	RegistrationID string `json:"registration_id"`
	SessionType    string `json:"session_type"`
	SessionDate    string `json:"session_date"`
	TimeSlot       string `json:"time_slot"`
}

// Book handles POST /api/v1/bookings.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	var p bookPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}
	if p.OwnerUID == "" || p.RegistrationID == "" || p.SessionType == "" || p.SessionDate == "" || p.TimeSlot == "" {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "owner_uid, registration_id, session_type, session_date and time_slot are required")
		return
	}
	regID, err := uuid.Parse(p.RegistrationID)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "registration_id is not a valid UUID")
		return
	}
	date, err := time.Parse("2006-01-02", p.SessionDate)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "session_date must be YYYY-MM-DD")
		return
	}
	if !middleware.OwnerAllowed(r.Context(), p.OwnerUID) {
		httpx.Error(w, http.StatusForbidden, "owner_mismatch", "token subject does not match owner_uid")
		return
	}

	result, err := h.Service.Book(r.Context(), BookRequest{
		OwnerUID:       p.OwnerUID,
		RegistrationID: regID,
		SessionType:    p.SessionType,
		SessionDate:    date,
		TimeSlot:       p.TimeSlot,
	})
	if err != nil {
		h.writeBookError(w, p.OwnerUID, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) writeBookError(w http.ResponseWriter, owner string, err error) {
	var comp *CompensationError
	switch {
	case errors.As(err, &comp):
		h.Logger.Error("booking compensation failed", "owner_uid", owner, "booking_id", comp.BookingID, "credits_lost", comp.CreditsLost, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "compensation_failed", comp.Error())
	case errors.Is(err, registration.ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "registration_not_found", "registration not found")
	case errors.Is(err, ErrUnknownSessionType):
		httpx.Error(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, ErrDirectPaymentRequired):
		httpx.Error(w, http.StatusPaymentRequired, "direct_payment_required", "this session type is paid per session; use the payment flow instead of credits")
	case errors.Is(err, ErrDuplicateBooking):
		httpx.Error(w, http.StatusConflict, "duplicate_booking", "an active booking for this session already exists")
	case errors.Is(err, slots.ErrSlotFull):
		httpx.Error(w, http.StatusConflict, "slot_full", "the session is fully booked")
	case errors.Is(err, slots.ErrSlotNotFound):
		httpx.Error(w, http.StatusNotFound, "slot_not_found", "no such session slot")
	case errors.Is(err, ledger.ErrInsufficientCredits):
		httpx.Error(w, http.StatusPaymentRequired, "insufficient_credits", "not enough credits; no credits were taken and the seat was released")
	case errors.Is(err, ErrBookingNotSaved):
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "booking could not be saved; your credits were restored and the seat released")
	default:
		h.Logger.Error("booking failed", "owner_uid", owner, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "booking failed")
	}
}

type listResponse struct {
	Bookings []*models.Booking `json:"bookings"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// List handles GET /api/v1/bookings.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner := q.Get("owner_uid")
	if owner == "" {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "owner_uid is required")
		return
	}
	if !middleware.OwnerAllowed(r.Context(), owner) {
		httpx.Error(w, http.StatusForbidden, "owner_mismatch", "token subject does not match owner_uid")
		return
	}

	f := ListFilter{Status: q.Get("status"), Page: 1, PageSize: 20}
	if raw := q.Get("from"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid_input", "from must be YYYY-MM-DD")
			return
		}
		f.From = &d
	}
	if raw := q.Get("to"); raw != "" {
		d, err := time.Parse("2006-01-02", raw)
		if err != nil {
			httpx.Error(w, http.StatusBadRequest, "invalid_input", "to must be YYYY-MM-DD")
			return
		}
		f.To = &d
	}
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httpx.Error(w, http.StatusBadRequest, "invalid_input", "page must be a positive integer")
			return
		}
		f.Page = n
	}
	if raw := q.Get("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			httpx.Error(w, http.StatusBadRequest, "invalid_input", "page_size must be between 1 and 100")
			return
		}
		f.PageSize = n
	}

	list, total, err := h.Service.ListByOwner(r.Context(), owner, f)
	if err != nil {
		if errors.Is(err, ErrInvalidStatus) {
			httpx.Error(w, http.StatusBadRequest, "invalid_input", err.Error())
			return
		}
		h.Logger.Error("list bookings", "owner_uid", owner, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "could not load bookings")
		return
	}
	if list == nil {
		list = []*models.Booking{}
	}
	httpx.WriteJSON(w, http.StatusOK, listResponse{Bookings: list, Total: total, Page: f.Page, PageSize: f.PageSize})
}

// GetNextSession handles GET /api/v1/sessions/next.
func (h *Handler) GetNextSession(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owner := q.Get("owner_uid")
	if owner == "" {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "owner_uid is required")
		return
	}
	regID, err := uuid.Parse(q.Get("registration_id"))
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "registration_id is not a valid UUID")
		return
	}
	if !middleware.OwnerAllowed(r.Context(), owner) {
		httpx.Error(w, http.StatusForbidden, "owner_mismatch", "token subject does not match owner_uid")
		return
	}

	res, err := h.Service.NextSession(r.Context(), owner, regID)
	if err != nil {
		if errors.Is(err, registration.ErrNotFound) {
			httpx.Error(w, http.StatusNotFound, "registration_not_found", "registration not found")
			return
		}
		h.Logger.Error("next session lookup", "owner_uid", owner, "registration_id", regID, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "could not determine next session")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

type cancelPayload struct {
	OwnerUID string `json:"owner_uid"`
}

// Cancel handles POST /api/v1/bookings/{id}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimRight(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-1] != "cancel" {
		httpx.Error(w, http.StatusNotFound, "not_found", "no such route")
		return
	}
	id, err := uuid.Parse(parts[len(parts)-2])
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "booking id is not a valid UUID")
		return
	}
	var p cancelPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.OwnerUID == "" {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "owner_uid is required")
		return
	}
	if !middleware.OwnerAllowed(r.Context(), p.OwnerUID) {
		httpx.Error(w, http.StatusForbidden, "owner_mismatch", "token subject does not match owner_uid")
		return
	}

	b, err := h.Service.Cancel(r.Context(), p.OwnerUID, id)
	if err != nil {
		var comp *CompensationError
		switch {
		case errors.As(err, &comp):
			h.Logger.Error("cancellation compensation failed", "booking_id", id, "error", err)
			httpx.Error(w, http.StatusInternalServerError, "compensation_failed", comp.Error())
		case errors.Is(err, ErrBookingNotFound):
			httpx.Error(w, http.StatusNotFound, "booking_not_found", "booking not found")
		case errors.Is(err, ErrNotCancellable):
			httpx.Error(w, http.StatusConflict, "not_cancellable", err.Error())
		default:
			h.Logger.Error("cancel booking", "booking_id", id, "error", err)
			httpx.Error(w, http.StatusInternalServerError, "internal_error", "could not cancel booking")
		}
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"booking": b})
}
