package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/backend/internal/ledger"
	"github.com/courtside/backend/internal/models"
)

var errBookingNotFound = errors.New("booking not found")
var errDuplicateBooking = errors.New("duplicate booking")

const bookingColumns = `id, owner_uid, registration_id, session_type, session_date, time_slot,
	credits_used, status, marked_by, marked_at, created_at`

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// InsertBooked writes the booking row and its consumed-lot references in one
// transaction. A concurrent duplicate that slipped past the pre-check lands
// on the partial unique index and comes back as errDuplicateBooking.
func (r *Repository) InsertBooked(ctx context.Context, b *models.Booking, parts []ledger.ReceiptPart) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (id, owner_uid, registration_id, session_type, session_date, time_slot, credits_used, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.ID, b.OwnerUID, b.RegistrationID, b.SessionType, b.SessionDate, b.TimeSlot, b.CreditsUsed, b.Status, b.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return errDuplicateBooking
		}
		return fmt.Errorf("insert booking: %w", err)
	}

	for _, p := range parts {
		if _, err := tx.Exec(ctx, `
			INSERT INTO booking_lots (booking_id, lot_id, credits)
			VALUES ($1, $2, $3)
		`, b.ID, p.LotID, p.Credits); err != nil {
			return fmt.Errorf("insert booking lot: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// FindActive returns the non-cancelled booking for the exact slot key, or
// nil when there is none.
func (r *Repository) FindActive(ctx context.Context, registrationID uuid.UUID, date time.Time, timeSlot, sessionType string) (*models.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE registration_id = $1 AND session_date = $2 AND time_slot = $3
		  AND session_type = $4 AND status <> 'cancelled'
		LIMIT 1
	`, registrationID, date, timeSlot, sessionType)
	return scanOptional(row)
}

// FindActiveOnDate returns any non-cancelled booking the registration holds
// on the date, or nil.
func (r *Repository) FindActiveOnDate(ctx context.Context, registrationID uuid.UUID, date time.Time) (*models.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE registration_id = $1 AND session_date = $2 AND status <> 'cancelled'
		ORDER BY created_at ASC
		LIMIT 1
	`, registrationID, date)
	return scanOptional(row)
}

func (r *Repository) GetOwned(ctx context.Context, id uuid.UUID, ownerUID string) (*models.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND owner_uid = $2
	`, id, ownerUID)
	b, err := scanOptional(row)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errBookingNotFound
	}
	return b, nil
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1
	`, id)
	b, err := scanOptional(row)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, errBookingNotFound
	}
	return b, nil
}

// CancelBooked flips booked -> cancelled for the owner's booking. False
// means the row was not in 'booked' (or not theirs), with nothing changed.
func (r *Repository) CancelBooked(ctx context.Context, id uuid.UUID, ownerUID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = 'cancelled'
		WHERE id = $1 AND owner_uid = $2 AND status = 'booked'
	`, id, ownerUID)
	if err != nil {
		return false, fmt.Errorf("cancel booking: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkOutcome records attendance exactly once: only a 'booked' row moves to
// attended or no_show.
func (r *Repository) MarkOutcome(ctx context.Context, id uuid.UUID, status, operator string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $1, marked_by = $2, marked_at = $3
		WHERE id = $4 AND status = 'booked'
	`, status, operator, at, id)
	if err != nil {
		return false, fmt.Errorf("mark attendance: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListFilter narrows ListByOwner. Zero values mean "no filter".
type ListFilter struct {
	Status   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// ListByOwner returns one page of the owner's bookings plus the unpaged
// total, newest session first.
func (r *Repository) ListByOwner(ctx context.Context, ownerUID string, f ListFilter) ([]*models.Booking, int, error) {
	if f.PageSize <= 0 {
		f.PageSize = 20
	}
	if f.Page < 1 {
		f.Page = 1
	}

	where := "WHERE owner_uid = $1"
	args := []any{ownerUID}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		where += fmt.Sprintf(" AND session_date >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		where += fmt.Sprintf(" AND session_date <= $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM bookings "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}

	args = append(args, f.PageSize, (f.Page-1)*f.PageSize)
	rows, err := r.pool.Query(ctx,
		"SELECT "+bookingColumns+" FROM bookings "+where+
			fmt.Sprintf(" ORDER BY session_date DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args)),
		args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var list []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, 0, err
		}
		list = append(list, b)
	}
	return list, total, rows.Err()
}

// RosterBooking is a booking joined with the child it was made for, as the
// coach's roster displays it.
type RosterBooking struct {
	models.Booking
	ChildName string `json:"child_name"`
	Category  int    `json:"category"`
}

// ListForRoster returns every non-cancelled booking on the date with the
// registered child's name and category attached.
func (r *Repository) ListForRoster(ctx context.Context, date time.Time) ([]*RosterBooking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.id, b.owner_uid, b.registration_id, b.session_type, b.session_date, b.time_slot,
		       b.credits_used, b.status, b.marked_by, b.marked_at, b.created_at,
		       reg.child_name, reg.category
		FROM bookings b
		JOIN registrations reg ON reg.id = b.registration_id
		WHERE b.session_date = $1 AND b.status <> 'cancelled'
		ORDER BY b.time_slot ASC, reg.child_name ASC
	`, date)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	var list []*RosterBooking
	for rows.Next() {
		var rb RosterBooking
		if err := rows.Scan(
			&rb.ID, &rb.OwnerUID, &rb.RegistrationID, &rb.SessionType, &rb.SessionDate, &rb.TimeSlot,
			&rb.CreditsUsed, &rb.Status, &rb.MarkedBy, &rb.MarkedAt, &rb.CreatedAt,
			&rb.ChildName, &rb.Category,
		); err != nil {
			return nil, err
		}
		list = append(list, &rb)
	}
	return list, rows.Err()
}

func scanBooking(row pgx.Row) (*models.Booking, error) {
	var b models.Booking
	err := row.Scan(
		&b.ID, &b.OwnerUID, &b.RegistrationID, &b.SessionType, &b.SessionDate, &b.TimeSlot,
		&b.CreditsUsed, &b.Status, &b.MarkedBy, &b.MarkedAt, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func scanOptional(row pgx.Row) (*models.Booking, error) {
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return b, err
}
