package slots

import (
	"context"
	"time"
)

// ErrSlotFull is returned by Reserve when every seat is taken.
var ErrSlotFull = errSlotFull

// ErrSlotNotFound is returned when no slot exists for the requested
// (date, time_slot, session_type).
var ErrSlotNotFound = errSlotNotFound

// GateStore is the capacity surface the gate drives.
type GateStore interface {
	ReserveSeat(ctx context.Context, date time.Time, timeSlot, sessionType string) error
	ReleaseSeat(ctx context.Context, date time.Time, timeSlot, sessionType string) error
}

// Gate is the only writer of slot capacity counters. The check and the
// increment are one conditional statement, so two concurrent reservations
// can never both take the last seat.
type Gate struct {
	Store GateStore
}

func NewGate(store GateStore) *Gate {
	return &Gate{Store: store}
}

// Reserve takes one seat, or reports ErrSlotFull / ErrSlotNotFound.
func (g *Gate) Reserve(ctx context.Context, date time.Time, timeSlot, sessionType string) error {
	return g.Store.ReserveSeat(ctx, date, timeSlot, sessionType)
}

// Release gives one seat back after a compensated booking failure or a
// cancellation.
func (g *Gate) Release(ctx context.Context, date time.Time, timeSlot, sessionType string) error {
	return g.Store.ReleaseSeat(ctx, date, timeSlot, sessionType)
}
