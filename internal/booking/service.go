// Package booking coordinates a session booking across the slot capacity
// gate, the credit ledger and the bookings table. The three stores do not
// share a transaction, so the coordinator compensates explicitly: a seat is
// reserved before credits are spent, credits are spent before the booking
// row is written, and every failure after a mutation undoes it.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/courtside/backend/internal/ledger"
	"github.com/courtside/backend/internal/models"
	"github.com/courtside/backend/internal/slots"
)

// ErrDuplicateBooking: a non-cancelled booking already exists for the same
// (registration, date, time slot, session type). Retried requests land here
// instead of paying twice.
var ErrDuplicateBooking = errDuplicateBooking

// ErrBookingNotFound covers a missing booking and one owned by someone else.
var ErrBookingNotFound = errBookingNotFound

var (
	// ErrDirectPaymentRequired routes non-group session types to the
	// external payment flow; they are priced per session, not in credits.
	ErrDirectPaymentRequired = errors.New("session type is paid directly, not with credits")

	// ErrUnknownSessionType rejects session types outside the catalog.
	ErrUnknownSessionType = errors.New("unknown session type")

	// ErrNotCancellable: only 'booked' rows can be cancelled.
	ErrNotCancellable = errors.New("booking cannot be cancelled")

	// ErrBookingCancelled: attendance cannot be recorded on a cancelled row.
	ErrBookingCancelled = errors.New("booking is cancelled")

	// ErrAlreadyRecorded: attendance is set exactly once.
	ErrAlreadyRecorded = errors.New("attendance already recorded")

	// ErrBookingNotSaved: the booking row could not be written but the
	// deducted credits were refunded and the seat released.
	ErrBookingNotSaved = errors.New("booking could not be saved")

	// ErrInvalidStatus rejects unknown status filters before any query.
	ErrInvalidStatus = errors.New("invalid booking status")
)

// CompensationError reports that undoing a partial booking itself failed.
// This is never swallowed: the operator has to reconcile by hand, and the
// caller must know whether their credits survived.
type CompensationError struct {
	BookingID   uuid.UUID
	CreditsLost bool
	Err         error
}

func (e *CompensationError) Error() string {
	if e.CreditsLost {
		return fmt.Sprintf("booking %s failed and the deducted credits were NOT restored: %v", e.BookingID, e.Err)
	}
	return fmt.Sprintf("booking %s failed and the reserved seat was not released (credits are safe): %v", e.BookingID, e.Err)
}

func (e *CompensationError) Unwrap() error { return e.Err }

// Store is the bookings-table surface the coordinator writes through.
type Store interface {
	InsertBooked(ctx context.Context, b *models.Booking, parts []ledger.ReceiptPart) error
	FindActive(ctx context.Context, registrationID uuid.UUID, date time.Time, timeSlot, sessionType string) (*models.Booking, error)
	FindActiveOnDate(ctx context.Context, registrationID uuid.UUID, date time.Time) (*models.Booking, error)
	GetOwned(ctx context.Context, id uuid.UUID, ownerUID string) (*models.Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	CancelBooked(ctx context.Context, id uuid.UUID, ownerUID string) (bool, error)
	MarkOutcome(ctx context.Context, id uuid.UUID, status, operator string, at time.Time) (bool, error)
	ListByOwner(ctx context.Context, ownerUID string, f ListFilter) ([]*models.Booking, int, error)
}

// Registrations resolves ownership of the child a booking is for.
type Registrations interface {
	GetOwned(ctx context.Context, id uuid.UUID, ownerUID string) (*models.Registration, error)
}

// CapacityGate is the only component allowed to move a slot's seat counter.
type CapacityGate interface {
	Reserve(ctx context.Context, date time.Time, timeSlot, sessionType string) error
	Release(ctx context.Context, date time.Time, timeSlot, sessionType string) error
}

// CreditLedger is the only component allowed to move credits.
type CreditLedger interface {
	Deduct(ctx context.Context, owner string, amount int, bookingRef uuid.UUID) (*ledger.DeductionReceipt, error)
	Refund(ctx context.Context, receipt *ledger.DeductionReceipt, bookingRef uuid.UUID) error
	Balance(ctx context.Context, owner string) (*ledger.BalanceSummary, error)
}

// SlotFinder lists bookable slots for the eligibility check.
type SlotFinder interface {
	Available(ctx context.Context, date time.Time, sessionType string, category int) ([]*models.Slot, error)
}

type Service struct {
	store    Store
	regs     Registrations
	gate     CapacityGate
	credits  CreditLedger
	finder   SlotFinder
	location *time.Location
	log      *slog.Logger
}

func NewService(store Store, regs Registrations, gate CapacityGate, credits CreditLedger, finder SlotFinder, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    store,
		regs:     regs,
		gate:     gate,
		credits:  credits,
		finder:   finder,
		location: loc,
		log:      logger,
	}
}

type BookRequest struct {
	OwnerUID       string
	RegistrationID uuid.UUID
	SessionType    string
	SessionDate    time.Time
	TimeSlot       string
}

type BookResult struct {
	Booking          *models.Booking `json:"booking"`
	RemainingBalance int             `json:"remaining_balance"`
}

// Book runs the booking sequence: verify ownership, route by payment kind,
// reject duplicates, reserve the seat, deduct credits, write the booking.
// The ordering means a full slot never costs credits, and the booking row
// is created already carrying its proof of payment.
func (s *Service) Book(ctx context.Context, req BookRequest) (*BookResult, error) {
	if _, err := s.regs.GetOwned(ctx, req.RegistrationID, req.OwnerUID); err != nil {
		return nil, err
	}

	creditsRequired, payable := models.CreditsRequired[req.SessionType]
	if !payable {
		if !models.ValidSessionType(req.SessionType) {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSessionType, req.SessionType)
		}
		return nil, ErrDirectPaymentRequired
	}

	existing, err := s.store.FindActive(ctx, req.RegistrationID, req.SessionDate, req.TimeSlot, req.SessionType)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateBooking
	}

	if err := s.gate.Reserve(ctx, req.SessionDate, req.TimeSlot, req.SessionType); err != nil {
		return nil, err
	}

	bookingID := uuid.New()
	receipt, err := s.credits.Deduct(ctx, req.OwnerUID, creditsRequired, bookingID)
	if err != nil {
		if relErr := s.gate.Release(ctx, req.SessionDate, req.TimeSlot, req.SessionType); relErr != nil {
			s.log.Error("seat release after failed deduction failed",
				"booking_id", bookingID, "owner_uid", req.OwnerUID, "error", relErr)
			return nil, &CompensationError{BookingID: bookingID, Err: relErr}
		}
		return nil, err
	}

	b := &models.Booking{
		ID:             bookingID,
		OwnerUID:       req.OwnerUID,
		RegistrationID: req.RegistrationID,
		SessionType:    req.SessionType,
		SessionDate:    req.SessionDate,
		TimeSlot:       req.TimeSlot,
		CreditsUsed:    receipt.Total,
		Status:         models.BookingStatusBooked,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.store.InsertBooked(ctx, b, receipt.Parts); err != nil {
		if cerr := s.compensate(ctx, req, receipt, bookingID); cerr != nil {
			return nil, cerr
		}
		if errors.Is(err, ErrDuplicateBooking) {
			return nil, ErrDuplicateBooking
		}
		s.log.Error("booking insert failed, credits refunded and seat released",
			"booking_id", bookingID, "owner_uid", req.OwnerUID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrBookingNotSaved, err)
	}

	return &BookResult{Booking: b, RemainingBalance: receipt.BalanceAfter}, nil
}

func (s *Service) compensate(ctx context.Context, req BookRequest, receipt *ledger.DeductionReceipt, bookingID uuid.UUID) error {
	if err := s.credits.Refund(ctx, receipt, bookingID); err != nil {
		s.log.Error("refund after failed booking insert failed, credits NOT restored",
			"booking_id", bookingID, "owner_uid", req.OwnerUID, "error", err)
		return &CompensationError{BookingID: bookingID, CreditsLost: true, Err: err}
	}
	if err := s.gate.Release(ctx, req.SessionDate, req.TimeSlot, req.SessionType); err != nil {
		s.log.Error("seat release after failed booking insert failed",
			"booking_id", bookingID, "owner_uid", req.OwnerUID, "error", err)
		return &CompensationError{BookingID: bookingID, Err: err}
	}
	return nil
}

// Cancel flips the owner's booking from booked to cancelled and releases the
// seat. The spent credits are forfeited; refunds only ever undo a deduction
// whose booking never committed.
func (s *Service) Cancel(ctx context.Context, ownerUID string, id uuid.UUID) (*models.Booking, error) {
	b, err := s.store.GetOwned(ctx, id, ownerUID)
	if err != nil {
		return nil, err
	}
	changed, err := s.store.CancelBooked(ctx, id, ownerUID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return nil, fmt.Errorf("%w: status is %q", ErrNotCancellable, b.Status)
	}
	b.Status = models.BookingStatusCancelled
	if err := s.gate.Release(ctx, b.SessionDate, b.TimeSlot, b.SessionType); err != nil {
		s.log.Error("seat release after cancellation failed",
			"booking_id", id, "owner_uid", ownerUID, "error", err)
		return nil, &CompensationError{BookingID: id, Err: err}
	}
	return b, nil
}

// MarkAttendance records the session outcome exactly once: booked moves to
// attended or no_show and stays there.
func (s *Service) MarkAttendance(ctx context.Context, id uuid.UUID, attended bool, operator string) (*models.Booking, error) {
	b, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch b.Status {
	case models.BookingStatusCancelled:
		return nil, ErrBookingCancelled
	case models.BookingStatusAttended, models.BookingStatusNoShow:
		return nil, ErrAlreadyRecorded
	}

	to := models.BookingStatusNoShow
	if attended {
		to = models.BookingStatusAttended
	}
	now := time.Now().UTC()
	changed, err := s.store.MarkOutcome(ctx, id, to, operator, now)
	if err != nil {
		return nil, err
	}
	if !changed {
		// Lost a race with another operator.
		return nil, ErrAlreadyRecorded
	}
	b.Status = to
	b.MarkedBy = &operator
	b.MarkedAt = &now
	return b, nil
}

// NextSessionResult is the eligibility view for the upcoming Sunday.
type NextSessionResult struct {
	Eligible    bool            `json:"eligible"`
	Reason      string          `json:"reason,omitempty"`
	SessionDate time.Time       `json:"session_date"`
	Booking     *models.Booking `json:"booking,omitempty"`
	Slots       []*models.Slot  `json:"available_slots,omitempty"`
	Balance     int             `json:"credit_balance"`
}

// NextSession reports whether the registration can book the coming Sunday:
// an existing booking wins, otherwise the category-matched open slots are
// listed along with the credit balance. A zero balance makes the owner
// ineligible but still shows what they are missing.
func (s *Service) NextSession(ctx context.Context, ownerUID string, registrationID uuid.UUID) (*NextSessionResult, error) {
	reg, err := s.regs.GetOwned(ctx, registrationID, ownerUID)
	if err != nil {
		return nil, err
	}
	date := slots.NextSessionDate(time.Now(), s.location)

	existing, err := s.store.FindActiveOnDate(ctx, registrationID, date)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &NextSessionResult{
			Reason:      "already_booked",
			SessionDate: date,
			Booking:     existing,
		}, nil
	}

	available, err := s.finder.Available(ctx, date, models.SessionTypeGroup, reg.Category)
	if err != nil {
		return nil, err
	}
	bal, err := s.credits.Balance(ctx, ownerUID)
	if err != nil {
		return nil, err
	}

	res := &NextSessionResult{SessionDate: date, Slots: available, Balance: bal.Total}
	switch {
	case len(available) == 0:
		res.Reason = "no_available_slots"
	case bal.Total < models.CreditsRequired[models.SessionTypeGroup]:
		res.Reason = "insufficient_credits"
	default:
		res.Eligible = true
	}
	return res, nil
}

// ListByOwner pages through the owner's bookings.
func (s *Service) ListByOwner(ctx context.Context, ownerUID string, f ListFilter) ([]*models.Booking, int, error) {
	if f.Status != "" && !models.ValidBookingStatus(f.Status) {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	return s.store.ListByOwner(ctx, ownerUID, f)
}
