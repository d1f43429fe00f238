// Package admin serves the coach-facing endpoints: the Sunday roster,
// attendance marking, manual slot generation and credit grants. Routes under
// /api/v1/admin are expected to sit behind the club's staff gateway; they do
// not carry per-owner checks.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/backend/internal/booking"
	"github.com/courtside/backend/internal/httpx"
	"github.com/courtside/backend/internal/ledger"
	"github.com/courtside/backend/internal/models"
)

// SlotLister reads the day's schedule.
type SlotLister interface {
	ListByDate(ctx context.Context, date time.Time) ([]*models.Slot, error)
}

// RosterSource reads the day's non-cancelled bookings with child details.
type RosterSource interface {
	ListForRoster(ctx context.Context, date time.Time) ([]*booking.RosterBooking, error)
}

// AttendanceMarker records session outcomes.
type AttendanceMarker interface {
	MarkAttendance(ctx context.Context, id uuid.UUID, attended bool, operator string) (*models.Booking, error)
}

// SlotGenerator runs the Sunday schedule generator on demand.
type SlotGenerator interface {
	Generate(ctx context.Context, weeksAhead int) (int, error)
}

// CreditGranter books a confirmed credit purchase into the ledger.
type CreditGranter interface {
	Grant(ctx context.Context, owner, packageType string) (*models.CreditLot, error)
}

type Handler struct {
	slots      SlotLister
	roster     RosterSource
	attendance AttendanceMarker
	generator  SlotGenerator
	credits    CreditGranter
	log        *slog.Logger
}

func NewHandler(
	slots SlotLister,
	roster RosterSource,
	attendance AttendanceMarker,
	generator SlotGenerator,
	credits CreditGranter,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		slots:      slots,
		roster:     roster,
		attendance: attendance,
		generator:  generator,
		credits:    credits,
		log:        log,
	}
}

type rosterSlot struct {
	Slot     *models.Slot             `json:"slot"`
	Category string                   `json:"category"`
	Bookings []*booking.RosterBooking `json:"bookings"`
}

type rosterResponse struct {
	Date  string        `json:"date"`
	Slots []*rosterSlot `json:"slots"`
}

// GetRoster handles GET /api/v1/admin/roster.
func (h *Handler) GetRoster(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "date is required")
		return
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "date must be YYYY-MM-DD")
		return
	}

	daySlots, err := h.slots.ListByDate(r.Context(), date)
	if err != nil {
		h.log.Error("roster slots", "date", raw, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "could not load the roster")
		return
	}
	if len(daySlots) == 0 {
		httpx.Error(w, http.StatusNotFound, "no_slots_for_date", "no sessions are scheduled on "+raw)
		return
	}
	bookings, err := h.roster.ListForRoster(r.Context(), date)
	if err != nil {
		h.log.Error("roster bookings", "date", raw, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "could not load the roster")
		return
	}

	resp := rosterResponse{Date: raw, Slots: make([]*rosterSlot, 0, len(daySlots))}
	byKey := make(map[string]*rosterSlot, len(daySlots))
	for _, s := range daySlots {
		rs := &rosterSlot{Slot: s, Category: s.CategoryRange(), Bookings: []*booking.RosterBooking{}}
		byKey[s.TimeSlot+"|"+s.SessionType] = rs
		resp.Slots = append(resp.Slots, rs)
	}
	for _, b := range bookings {
		if rs, ok := byKey[b.TimeSlot+"|"+b.SessionType]; ok {
			rs.Bookings = append(rs.Bookings, b)
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

type attendancePayload struct {
	BookingID  string `json:"booking_id"`
	Attended   *bool  `json:"attended"`
	OperatorID string `json:"operator_id"`
}

// PostAttendance handles POST /api/v1/admin/attendance.
func (h *Handler) PostAttendance(w http.ResponseWriter, r *http.Request) {
	var p attendancePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}
	if p.BookingID == "" || p.Attended == nil || p.OperatorID == "" {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "booking_id, attended and operator_id are required")
		return
	}
	id, err := uuid.Parse(p.BookingID)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "booking_id is not a valid UUID")
		return
	}

	b, err := h.attendance.MarkAttendance(r.Context(), id, *p.Attended, p.OperatorID)
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrBookingNotFound):
			httpx.Error(w, http.StatusNotFound, "booking_not_found", "booking not found")
		case errors.Is(err, booking.ErrBookingCancelled):
			httpx.Error(w, http.StatusBadRequest, "booking_cancelled", "attendance cannot be recorded on a cancelled booking")
		case errors.Is(err, booking.ErrAlreadyRecorded):
			httpx.Error(w, http.StatusBadRequest, "already_recorded", "attendance was already recorded for this booking")
		default:
			h.log.Error("mark attendance", "booking_id", id, "error", err)
			httpx.Error(w, http.StatusInternalServerError, "internal_error", "could not record attendance")
		}
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"booking": b})
}

type generatePayload struct {
	WeeksAhead int `json:"weeks_ahead"`
}

// PostGenerateSlots handles POST /api/v1/admin/slots/generate. The body is
// optional; without it the generator uses its configured horizon.
func (h *Handler) PostGenerateSlots(w http.ResponseWriter, r *http.Request) {
	var p generatePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}
	if p.WeeksAhead < 0 || p.WeeksAhead > 52 {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "weeks_ahead must be between 0 and 52")
		return
	}

	created, err := h.generator.Generate(r.Context(), p.WeeksAhead)
	if err != nil {
		h.log.Error("manual slot generation", "weeks_ahead", p.WeeksAhead, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "slot generation failed")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]int{"created": created})
}

type grantPayload struct {
	OwnerUID    string `json:"owner_uid"`
	PackageType string `json:"package_type"`
}

// PostGrantCredits handles POST /api/v1/admin/credits/grant: the surface the
// payment flow calls once a package purchase is confirmed.
func (h *Handler) PostGrantCredits(w http.ResponseWriter, r *http.Request) {
	var p grantPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "invalid JSON body")
		return
	}
	if p.OwnerUID == "" || p.PackageType == "" {
		httpx.Error(w, http.StatusBadRequest, "invalid_input", "owner_uid and package_type are required")
		return
	}

	lot, err := h.credits.Grant(r.Context(), p.OwnerUID, p.PackageType)
	if err != nil {
		if errors.Is(err, ledger.ErrUnknownPackage) {
			httpx.Error(w, http.StatusBadRequest, "unknown_package", "unknown package type "+p.PackageType)
			return
		}
		h.log.Error("grant credits", "owner_uid", p.OwnerUID, "package_type", p.PackageType, "error", err)
		httpx.Error(w, http.StatusInternalServerError, "internal_error", "could not grant credits")
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, map[string]any{"lot": lot})
}
