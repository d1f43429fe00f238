package slots

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/backend/internal/models"
)

var errSlotFull = errors.New("slot is at capacity")
var errSlotNotFound = errors.New("slot not found")

// Repository is the pgx-backed slot store. Capacity mutations are single
// conditional statements; the row is the only arbiter of its own limit.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ReserveSeat takes one seat in a single atomic check-and-increment. Zero
// rows updated means either the slot is full or it does not exist; a
// follow-up read tells the two apart.
func (r *Repository) ReserveSeat(ctx context.Context, date time.Time, timeSlot, sessionType string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET current_bookings = current_bookings + 1
		WHERE session_date = $1 AND time_slot = $2 AND session_type = $3
		  AND current_bookings < max_capacity
	`, date, timeSlot, sessionType)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var exists bool
		err := r.pool.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM slots
				WHERE session_date = $1 AND time_slot = $2 AND session_type = $3
			)
		`, date, timeSlot, sessionType).Scan(&exists)
		if err != nil {
			return err
		}
		if !exists {
			return errSlotNotFound
		}
		return errSlotFull
	}
	return nil
}

// ReleaseSeat gives one seat back, floored at zero.
func (r *Repository) ReleaseSeat(ctx context.Context, date time.Time, timeSlot, sessionType string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE slots
		SET current_bookings = GREATEST(0, current_bookings - 1)
		WHERE session_date = $1 AND time_slot = $2 AND session_type = $3
	`, date, timeSlot, sessionType)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return errSlotNotFound
	}
	return nil
}

// Insert creates a slot unless one already exists for the same
// (date, time_slot, session_type). Reports whether a row was written.
func (r *Repository) Insert(ctx context.Context, slot *models.Slot) (bool, error) {
	result, err := r.pool.Exec(ctx, `
		INSERT INTO slots (id, session_date, time_slot, session_type, category_min, category_max, max_capacity, current_bookings)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (session_date, time_slot, session_type) DO NOTHING
	`, slot.ID, slot.SessionDate, slot.TimeSlot, slot.SessionType, slot.CategoryMin, slot.CategoryMax, slot.MaxCapacity, slot.CurrentBookings)
	if err != nil {
		return false, err
	}
	return result.RowsAffected() == 1, nil
}

// HasAnyOnDate reports whether any slot rows exist for the date.
func (r *Repository) HasAnyOnDate(ctx context.Context, date time.Time) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM slots WHERE session_date = $1)
	`, date).Scan(&exists)
	return exists, err
}

// ListByDate returns every slot on the date, in schedule order.
func (r *Repository) ListByDate(ctx context.Context, date time.Time) ([]*models.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_date, time_slot, session_type, category_min, category_max, max_capacity, current_bookings, created_at
		FROM slots
		WHERE session_date = $1
		ORDER BY time_slot ASC, session_type ASC
	`, date)
	if err != nil {
		return nil, err
	}
	return scanSlots(rows)
}

// Available returns the slots on a date, of one session type, whose category
// band covers the given category and which still have seats.
func (r *Repository) Available(ctx context.Context, date time.Time, sessionType string, category int) ([]*models.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, session_date, time_slot, session_type, category_min, category_max, max_capacity, current_bookings, created_at
		FROM slots
		WHERE session_date = $1 AND session_type = $2
		  AND category_min <= $3 AND category_max >= $3
		  AND current_bookings < max_capacity
		ORDER BY time_slot ASC
	`, date, sessionType, category)
	if err != nil {
		return nil, err
	}
	return scanSlots(rows)
}

func scanSlots(rows pgx.Rows) ([]*models.Slot, error) {
	defer rows.Close()
	var out []*models.Slot
	for rows.Next() {
		var s models.Slot
		if err := rows.Scan(&s.ID, &s.SessionDate, &s.TimeSlot, &s.SessionType, &s.CategoryMin, &s.CategoryMax, &s.MaxCapacity, &s.CurrentBookings, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
