package slots

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/courtside/backend/internal/models"
)

// ---------------------------------------------------------------------------
// In-memory slot table. Mirrors repository.go's conditional statements so
// the gate and generator logic can be exercised without a database.
// ---------------------------------------------------------------------------

type slotKey struct {
	date        string
	timeSlot    string
	sessionType string
}

func keyOf(date time.Time, timeSlot, sessionType string) slotKey {
	return slotKey{date.Format("2006-01-02"), timeSlot, sessionType}
}

type memSlots struct {
	mu    sync.Mutex
	slots map[slotKey]*models.Slot
}

func newMemSlots() *memSlots {
	return &memSlots{slots: make(map[slotKey]*models.Slot)}
}

func (m *memSlots) ReserveSeat(_ context.Context, date time.Time, timeSlot, sessionType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[keyOf(date, timeSlot, sessionType)]
	if !ok {
		return ErrSlotNotFound
	}
	if s.CurrentBookings >= s.MaxCapacity {
		return ErrSlotFull
	}
	s.CurrentBookings++
	return nil
}

func (m *memSlots) ReleaseSeat(_ context.Context, date time.Time, timeSlot, sessionType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[keyOf(date, timeSlot, sessionType)]
	if !ok {
		return ErrSlotNotFound
	}
	if s.CurrentBookings > 0 {
		s.CurrentBookings--
	}
	return nil
}

func (m *memSlots) HasAnyOnDate(_ context.Context, date time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := date.Format("2006-01-02")
	for k := range m.slots {
		if k.date == want {
			return true, nil
		}
	}
	return false, nil
}

func (m *memSlots) Insert(_ context.Context, slot *models.Slot) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := keyOf(slot.SessionDate, slot.TimeSlot, slot.SessionType)
	if _, exists := m.slots[k]; exists {
		return false, nil
	}
	cp := *slot
	m.slots[k] = &cp
	return true, nil
}

// --- helpers ---

func (m *memSlots) seed(date time.Time, timeSlot, sessionType string, max, current int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slots[keyOf(date, timeSlot, sessionType)] = &models.Slot{
		SessionDate:     date,
		TimeSlot:        timeSlot,
		SessionType:     sessionType,
		MaxCapacity:     max,
		CurrentBookings: current,
	}
}

func (m *memSlots) current(date time.Time, timeSlot, sessionType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.slots[keyOf(date, timeSlot, sessionType)].CurrentBookings
}

func (m *memSlots) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}

// sundayAnchor is a known Sunday (2000-01-02) for date fixtures.
var sundayAnchor = time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC)

// ---------------------------------------------------------------------------
// Reserve
// ---------------------------------------------------------------------------

func TestReserve_ConcurrentFillNeverOverbooks(t *testing.T) {
	store := newMemSlots()
	store.seed(sundayAnchor, "09:00-10:00", models.SessionTypeGroup, 6, 0)
	gate := NewGate(store)

	const attempts = 20
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- gate.Reserve(context.Background(), sundayAnchor, "09:00-10:00", models.SessionTypeGroup)
		}()
	}
	wg.Wait()
	close(results)

	var reserved, full int
	for err := range results {
		switch {
		case err == nil:
			reserved++
		case errors.Is(err, ErrSlotFull):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if reserved != 6 {
		t.Errorf("successful reservations: got %d, want exactly 6", reserved)
	}
	if full != attempts-6 {
		t.Errorf("full rejections: got %d, want %d", full, attempts-6)
	}
	if got := store.current(sundayAnchor, "09:00-10:00", models.SessionTypeGroup); got != 6 {
		t.Errorf("current_bookings: got %d, want 6", got)
	}
}

func TestReserve_FullSlot(t *testing.T) {
	store := newMemSlots()
	store.seed(sundayAnchor, "10:00-11:00", models.SessionTypeGroup, 6, 6)
	gate := NewGate(store)

	err := gate.Reserve(context.Background(), sundayAnchor, "10:00-11:00", models.SessionTypeGroup)
	if !errors.Is(err, ErrSlotFull) {
		t.Fatalf("expected ErrSlotFull, got: %v", err)
	}
	if got := store.current(sundayAnchor, "10:00-11:00", models.SessionTypeGroup); got != 6 {
		t.Errorf("current_bookings: got %d, want 6 (unchanged)", got)
	}
}

func TestReserve_UnknownSlot(t *testing.T) {
	gate := NewGate(newMemSlots())

	err := gate.Reserve(context.Background(), sundayAnchor, "23:00-23:30", models.SessionTypeGroup)
	if !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Release
// ---------------------------------------------------------------------------

func TestRelease(t *testing.T) {
	store := newMemSlots()
	store.seed(sundayAnchor, "09:00-10:00", models.SessionTypeGroup, 6, 0)
	gate := NewGate(store)
	ctx := context.Background()

	if err := gate.Reserve(ctx, sundayAnchor, "09:00-10:00", models.SessionTypeGroup); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := gate.Release(ctx, sundayAnchor, "09:00-10:00", models.SessionTypeGroup); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := store.current(sundayAnchor, "09:00-10:00", models.SessionTypeGroup); got != 0 {
		t.Errorf("current_bookings: got %d, want 0", got)
	}

	// Floored at zero rather than going negative.
	if err := gate.Release(ctx, sundayAnchor, "09:00-10:00", models.SessionTypeGroup); err != nil {
		t.Fatalf("Release at zero: %v", err)
	}
	if got := store.current(sundayAnchor, "09:00-10:00", models.SessionTypeGroup); got != 0 {
		t.Errorf("current_bookings after floor: got %d, want 0", got)
	}

	if err := gate.Release(ctx, sundayAnchor, "13:00-14:00", models.SessionTypeGroup); !errors.Is(err, ErrSlotNotFound) {
		t.Fatalf("expected ErrSlotNotFound, got: %v", err)
	}
}
