package models

import (
	"time"

	"github.com/google/uuid"
)

// Booking status enums. Attendance transitions (booked -> attended/no_show)
// are set exactly once by an operator; cancelled bookings never transition.
const (
	BookingStatusBooked    = "booked"
	BookingStatusAttended  = "attended"
	BookingStatusCancelled = "cancelled"
	BookingStatusNoShow    = "no_show"
)

// ValidBookingStatus reports whether s is a known booking status. Used to
// reject bad status filters before any query runs.
func ValidBookingStatus(s string) bool {
	switch s {
	case BookingStatusBooked, BookingStatusAttended, BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

// Booking is created by the booking coordinator after capacity was reserved
// and credits deducted. CreditsUsed is 0 for directly-paid session types
// (those rows are written by the external payment flow, not by the
// coordinator). At most one non-cancelled booking exists per
// (registration, date, time slot, session type).
type Booking struct {
	ID             uuid.UUID  `json:"id"`
	OwnerUID       string     `json:"owner_uid"`
	RegistrationID uuid.UUID  `json:"registration_id"`
	SessionType    string     `json:"session_type"`
	SessionDate    time.Time  `json:"session_date"`
	TimeSlot       string     `json:"time_slot"`
	CreditsUsed    int        `json:"credits_used"`
	Status         string     `json:"status"`
	MarkedBy       *string    `json:"marked_by,omitempty"`
	MarkedAt       *time.Time `json:"marked_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
