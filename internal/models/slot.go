package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Slot is a bookable capacity unit for one date, time range and session type.
// CurrentBookings is mutated only by the capacity gate's reserve/release
// operations; 0 <= CurrentBookings <= MaxCapacity always holds.
type Slot struct {
	ID              uuid.UUID `json:"id"`
	SessionDate     time.Time `json:"session_date"`
	TimeSlot        string    `json:"time_slot"`
	SessionType     string    `json:"session_type"`
	CategoryMin     int       `json:"category_min"`
	CategoryMax     int       `json:"category_max"`
	MaxCapacity     int       `json:"max_capacity"`
	CurrentBookings int       `json:"current_bookings"`
	CreatedAt       time.Time `json:"created_at"`
}

// SeatsLeft returns the number of unreserved seats.
func (s *Slot) SeatsLeft() int {
	return s.MaxCapacity - s.CurrentBookings
}

// MatchesCategory reports whether a registration's age-group number falls in
// the slot's category band.
func (s *Slot) MatchesCategory(category int) bool {
	return category >= s.CategoryMin && category <= s.CategoryMax
}

// CategoryRange renders the band the way rosters display it, e.g. "U6-U8".
func (s *Slot) CategoryRange() string {
	return fmt.Sprintf("U%d-U%d", s.CategoryMin, s.CategoryMax)
}
