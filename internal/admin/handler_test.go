package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/backend/internal/booking"
	"github.com/courtside/backend/internal/ledger"
	"github.com/courtside/backend/internal/models"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

type mockSlotLister struct {
	slots []*models.Slot
	err   error
}

func (m *mockSlotLister) ListByDate(context.Context, time.Time) ([]*models.Slot, error) {
	return m.slots, m.err
}

type mockRoster struct {
	bookings []*booking.RosterBooking
	err      error
}

func (m *mockRoster) ListForRoster(context.Context, time.Time) ([]*booking.RosterBooking, error) {
	return m.bookings, m.err
}

type mockMarker struct {
	booking     *models.Booking
	err         error
	gotID       uuid.UUID
	gotAttended bool
	gotOperator string
}

func (m *mockMarker) MarkAttendance(_ context.Context, id uuid.UUID, attended bool, operator string) (*models.Booking, error) {
	m.gotID = id
	m.gotAttended = attended
	m.gotOperator = operator
	return m.booking, m.err
}

type mockGenerator struct {
	created  int
	err      error
	gotWeeks int
}

func (m *mockGenerator) Generate(_ context.Context, weeksAhead int) (int, error) {
	m.gotWeeks = weeksAhead
	return m.created, m.err
}

type mockGranter struct {
	lot        *models.CreditLot
	err        error
	gotOwner   string
	gotPackage string
}

func (m *mockGranter) Grant(_ context.Context, owner, packageType string) (*models.CreditLot, error) {
	m.gotOwner = owner
	m.gotPackage = packageType
	return m.lot, m.err
}

type handlerMocks struct {
	slots     *mockSlotLister
	roster    *mockRoster
	marker    *mockMarker
	generator *mockGenerator
	granter   *mockGranter
}

func newTestHandler() (*Handler, *handlerMocks) {
	m := &handlerMocks{
		slots:     &mockSlotLister{},
		roster:    &mockRoster{},
		marker:    &mockMarker{},
		generator: &mockGenerator{},
		granter:   &mockGranter{},
	}
	h := NewHandler(m.slots, m.roster, m.marker, m.generator, m.granter,
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return h, m
}

type errBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func decodeErr(t *testing.T, rec *httptest.ResponseRecorder) errBody {
	t.Helper()
	var e errBody
	if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rec.Body.String())
	}
	return e
}

// ---------------------------------------------------------------------------
// GET /api/v1/admin/roster
// ---------------------------------------------------------------------------

func TestRosterEndpoint(t *testing.T) {
	h, m := newTestHandler()
	m.slots.slots = []*models.Slot{
		{ID: uuid.New(), TimeSlot: "09:00-10:00", SessionType: models.SessionTypeGroup, CategoryMin: 6, CategoryMax: 8, MaxCapacity: 6, CurrentBookings: 2},
		{ID: uuid.New(), TimeSlot: "10:00-11:00", SessionType: models.SessionTypeGroup, CategoryMin: 9, CategoryMax: 11, MaxCapacity: 6},
	}
	m.roster.bookings = []*booking.RosterBooking{
		{Booking: models.Booking{ID: uuid.New(), TimeSlot: "09:00-10:00", SessionType: models.SessionTypeGroup, Status: models.BookingStatusBooked}, ChildName: "Ana", Category: 7},
		{Booking: models.Booking{ID: uuid.New(), TimeSlot: "09:00-10:00", SessionType: models.SessionTypeGroup, Status: models.BookingStatusBooked}, ChildName: "Ben", Category: 8},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/roster?date=2026-09-06", nil)
	rec := httptest.NewRecorder()
	h.GetRoster(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp rosterResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Date != "2026-09-06" {
		t.Errorf("date: got %q, want 2026-09-06", resp.Date)
	}
	if len(resp.Slots) != 2 {
		t.Fatalf("slots: got %d, want 2", len(resp.Slots))
	}
	if got := len(resp.Slots[0].Bookings); got != 2 {
		t.Errorf("first slot bookings: got %d, want 2", got)
	}
	if resp.Slots[0].Bookings[0].ChildName != "Ana" {
		t.Errorf("first booking child: got %q, want Ana", resp.Slots[0].Bookings[0].ChildName)
	}
	if resp.Slots[0].Category != "U6-U8" {
		t.Errorf("category band: got %q, want U6-U8", resp.Slots[0].Category)
	}
	if got := len(resp.Slots[1].Bookings); got != 0 {
		t.Errorf("second slot bookings: got %d, want 0", got)
	}
}

func TestRosterEndpoint_EmptySlotSerializesBookingsAsArray(t *testing.T) {
	h, m := newTestHandler()
	m.slots.slots = []*models.Slot{
		{ID: uuid.New(), TimeSlot: "09:00-10:00", SessionType: models.SessionTypeGroup, CategoryMin: 6, CategoryMax: 8, MaxCapacity: 6},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/roster?date=2026-09-06", nil)
	rec := httptest.NewRecorder()
	h.GetRoster(rec, req)

	if !strings.Contains(rec.Body.String(), `"bookings":[]`) {
		t.Errorf("empty roster slot must serialize bookings as [], got: %s", rec.Body.String())
	}
}

func TestRosterEndpoint_NoSlotsForDate(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/roster?date=2026-09-07", nil)
	rec := httptest.NewRecorder()
	h.GetRoster(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
	if e := decodeErr(t, rec); e.Code != "no_slots_for_date" {
		t.Errorf("code: got %q, want no_slots_for_date", e.Code)
	}
}

func TestRosterEndpoint_BadDate(t *testing.T) {
	h, _ := newTestHandler()

	for _, target := range []string{"/api/v1/admin/roster", "/api/v1/admin/roster?date=Sunday"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		h.GetRoster(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d: %s", target, rec.Code, rec.Body.String())
		}
	}
}

// ---------------------------------------------------------------------------
// POST /api/v1/admin/attendance
// ---------------------------------------------------------------------------

func attendanceBody(id uuid.UUID, attended bool) string {
	return fmt.Sprintf(`{"booking_id": %q, "attended": %t, "operator_id": "coach-5"}`, id, attended)
}

func TestAttendanceEndpoint(t *testing.T) {
	h, m := newTestHandler()
	id := uuid.New()
	m.marker.booking = &models.Booking{ID: id, Status: models.BookingStatusAttended}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/attendance", strings.NewReader(attendanceBody(id, true)))
	rec := httptest.NewRecorder()
	h.PostAttendance(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if m.marker.gotID != id || !m.marker.gotAttended || m.marker.gotOperator != "coach-5" {
		t.Errorf("marker called with %s/%t/%q", m.marker.gotID, m.marker.gotAttended, m.marker.gotOperator)
	}
}

func TestAttendanceEndpoint_Validation(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed JSON", `{`},
		{"missing attended flag", `{"booking_id": "11111111-1111-1111-1111-111111111111", "operator_id": "coach-5"}`},
		{"missing operator", `{"booking_id": "11111111-1111-1111-1111-111111111111", "attended": true}`},
		{"bad booking id", `{"booking_id": "nope", "attended": true, "operator_id": "coach-5"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHandler()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/attendance", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.PostAttendance(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestAttendanceEndpoint_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", booking.ErrBookingNotFound, http.StatusNotFound, "booking_not_found"},
		{"cancelled", booking.ErrBookingCancelled, http.StatusBadRequest, "booking_cancelled"},
		{"already recorded", booking.ErrAlreadyRecorded, http.StatusBadRequest, "already_recorded"},
		{"storage error", errors.New("connection refused"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, m := newTestHandler()
			m.marker.err = tc.err

			req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/attendance", strings.NewReader(attendanceBody(uuid.New(), false)))
			rec := httptest.NewRecorder()
			h.PostAttendance(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tc.wantStatus, rec.Code, rec.Body.String())
			}
			if e := decodeErr(t, rec); e.Code != tc.wantCode {
				t.Errorf("code: got %q, want %q", e.Code, tc.wantCode)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// POST /api/v1/admin/slots/generate
// ---------------------------------------------------------------------------

func TestGenerateEndpoint(t *testing.T) {
	h, m := newTestHandler()
	m.generator.created = 8

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/slots/generate", strings.NewReader(`{"weeks_ahead": 2}`))
	rec := httptest.NewRecorder()
	h.PostGenerateSlots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if m.generator.gotWeeks != 2 {
		t.Errorf("weeks ahead: got %d, want 2", m.generator.gotWeeks)
	}
	if !strings.Contains(rec.Body.String(), `"created":8`) {
		t.Errorf("response: got %s, want created count 8", rec.Body.String())
	}
}

func TestGenerateEndpoint_EmptyBodyUsesDefaultHorizon(t *testing.T) {
	h, m := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/slots/generate", strings.NewReader(""))
	rec := httptest.NewRecorder()
	h.PostGenerateSlots(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if m.generator.gotWeeks != 0 {
		t.Errorf("weeks ahead: got %d, want 0 (generator default)", m.generator.gotWeeks)
	}
}

func TestGenerateEndpoint_Failure(t *testing.T) {
	h, m := newTestHandler()
	m.generator.err = errors.New("connection refused")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/slots/generate", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.PostGenerateSlots(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d: %s", rec.Code, rec.Body.String())
	}
}

// ---------------------------------------------------------------------------
// POST /api/v1/admin/credits/grant
// ---------------------------------------------------------------------------

func TestGrantEndpoint(t *testing.T) {
	h, m := newTestHandler()
	m.granter.lot = &models.CreditLot{
		ID:               uuid.New(),
		OwnerUID:         "parent-1",
		PackageType:      "starter_5",
		CreditsTotal:     5,
		CreditsRemaining: 5,
		Status:           models.LotStatusActive,
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/credits/grant",
		strings.NewReader(`{"owner_uid": "parent-1", "package_type": "starter_5"}`))
	rec := httptest.NewRecorder()
	h.PostGrantCredits(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if m.granter.gotOwner != "parent-1" || m.granter.gotPackage != "starter_5" {
		t.Errorf("granter called with %q/%q", m.granter.gotOwner, m.granter.gotPackage)
	}
	if !strings.Contains(rec.Body.String(), `"credits_remaining":5`) {
		t.Errorf("response should carry the lot, got: %s", rec.Body.String())
	}
}

func TestGrantEndpoint_UnknownPackage(t *testing.T) {
	h, m := newTestHandler()
	m.granter.err = ledger.ErrUnknownPackage

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/credits/grant",
		strings.NewReader(`{"owner_uid": "parent-1", "package_type": "mega_99"}`))
	rec := httptest.NewRecorder()
	h.PostGrantCredits(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if e := decodeErr(t, rec); e.Code != "unknown_package" {
		t.Errorf("code: got %q, want unknown_package", e.Code)
	}
}

func TestGrantEndpoint_Validation(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/credits/grant", strings.NewReader(`{"owner_uid": "parent-1"}`))
	rec := httptest.NewRecorder()
	h.PostGrantCredits(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}
