package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/courtside/backend/internal/models"
)

// ErrInsufficientCredits is returned when the owner's usable lots cannot
// cover a requested deduction.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrUnknownPackage is returned for a grant naming a package_type that is
// not in the catalog.
var ErrUnknownPackage = errors.New("unknown credit package")

// Store is the persistence surface the ledger drives. The pgx implementation
// lives in repository.go; tests substitute an in-memory one.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	EnsureAccount(ctx context.Context, tx pgx.Tx, owner string) error
	AdjustBalance(ctx context.Context, tx pgx.Tx, owner string, delta int) (int, error)
	AccountBalance(ctx context.Context, tx pgx.Tx, owner string) (int, error)
	InsertLot(ctx context.Context, tx pgx.Tx, lot *models.CreditLot) error
	UsableLots(ctx context.Context, tx pgx.Tx, owner string, now time.Time) ([]*models.CreditLot, error)
	UsableLotsForUpdate(ctx context.Context, tx pgx.Tx, owner string, now time.Time) ([]*models.CreditLot, error)
	ExpireOverdueLots(ctx context.Context, tx pgx.Tx, owner string, now time.Time) ([]*models.CreditLot, error)
	DeductFromLot(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, amount int) error
	RestoreToLot(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, amount int, now time.Time) (*models.CreditLot, error)
	InsertEntry(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error
}

// ReceiptPart records a consumption against a single lot.
type ReceiptPart struct {
	LotID   uuid.UUID `json:"lot_id"`
	Credits int       `json:"credits"`
}

// DeductionReceipt is handed back by a successful Deduct: exactly which lots
// were drawn down and by how much. Refund reverses precisely this set.
type DeductionReceipt struct {
	OwnerUID     string        `json:"owner_uid"`
	Parts        []ReceiptPart `json:"parts"`
	Total        int           `json:"total"`
	BalanceAfter int           `json:"balance_after"`
}

// LotBalance is one lot's slice of a balance summary.
type LotBalance struct {
	LotID            uuid.UUID `json:"lot_id"`
	PackageType      string    `json:"package_type"`
	CreditsRemaining int       `json:"credits_remaining"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// BalanceSummary is the credit-balance view: the aggregate counter plus the
// usable lots behind it, soonest expiry first.
type BalanceSummary struct {
	OwnerUID     string       `json:"owner_uid"`
	Total        int          `json:"total_credits"`
	Lots         []LotBalance `json:"lots"`
	ExpiringSoon int          `json:"expiring_soon"`
}

// Service owns every credit mutation. Each operation runs in a single
// transaction and begins with an expiry sweep, so the account counter equals
// the sum of usable lot remainders after every call.
type Service struct {
	Store Store
	// ExpiringSoonDays is the lookahead window for the expiring_soon figure
	// on balance summaries.
	ExpiringSoonDays int
}

// NewService returns a ledger service with the default 14-day
// expiring-soon window.
func NewService(store Store) *Service {
	return &Service{Store: store, ExpiringSoonDays: 14}
}

// Deduct consumes amount credits from the owner's usable lots, soonest
// expiry first, and reports the per-lot consumption as a receipt. bookingRef
// ties the audit entries to the booking being paid for.
//
// On ErrInsufficientCredits nothing is consumed, but the expiry sweep that
// ran first still commits.
func (s *Service) Deduct(ctx context.Context, owner string, amount int, bookingRef uuid.UUID) (*DeductionReceipt, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("deduct amount must be positive, got %d", amount)
	}
	now := time.Now().UTC()

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.Store.EnsureAccount(ctx, tx, owner); err != nil {
		return nil, err
	}
	if err := s.sweepExpired(ctx, tx, owner, now); err != nil {
		return nil, err
	}

	lots, err := s.Store.UsableLotsForUpdate(ctx, tx, owner, now)
	if err != nil {
		return nil, err
	}
	available := 0
	for _, lot := range lots {
		available += lot.CreditsRemaining
	}
	if available < amount {
		// The sweep stands even though the deduction cannot proceed.
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return nil, ErrInsufficientCredits
	}

	receipt := &DeductionReceipt{OwnerUID: owner, Total: amount}
	remaining := amount
	for _, lot := range lots {
		if remaining == 0 {
			break
		}
		take := lot.CreditsRemaining
		if take > remaining {
			take = remaining
		}
		if err := s.Store.DeductFromLot(ctx, tx, lot.ID, take); err != nil {
			return nil, err
		}
		balance, err := s.Store.AdjustBalance(ctx, tx, owner, -take)
		if err != nil {
			return nil, err
		}
		if err := s.Store.InsertEntry(ctx, tx, &models.LedgerEntry{
			ID:           uuid.New(),
			OwnerUID:     owner,
			LotID:        &lot.ID,
			BookingID:    &bookingRef,
			EntryType:    models.EntryTypeDeduction,
			Credits:      take,
			BalanceAfter: balance,
		}); err != nil {
			return nil, err
		}
		receipt.Parts = append(receipt.Parts, ReceiptPart{LotID: lot.ID, Credits: take})
		receipt.BalanceAfter = balance
		remaining -= take
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return receipt, nil
}

// Refund puts a deduction's credits back on exactly the lots named by the
// receipt. Restores are capped at each lot's total. A lot that expired since
// the deduct keeps the returned credits on record but stays expired, so the
// counter is only raised for lots that come back usable.
func (s *Service) Refund(ctx context.Context, receipt *DeductionReceipt, bookingRef uuid.UUID) error {
	if receipt == nil || len(receipt.Parts) == 0 {
		return nil
	}
	now := time.Now().UTC()

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := s.sweepExpired(ctx, tx, receipt.OwnerUID, now); err != nil {
		return err
	}

	for _, part := range receipt.Parts {
		lot, err := s.Store.RestoreToLot(ctx, tx, part.LotID, part.Credits, now)
		if err != nil {
			return err
		}
		var balance int
		if lot.Usable(now) {
			balance, err = s.Store.AdjustBalance(ctx, tx, receipt.OwnerUID, part.Credits)
		} else {
			balance, err = s.Store.AccountBalance(ctx, tx, receipt.OwnerUID)
		}
		if err != nil {
			return err
		}
		if err := s.Store.InsertEntry(ctx, tx, &models.LedgerEntry{
			ID:           uuid.New(),
			OwnerUID:     receipt.OwnerUID,
			LotID:        &part.LotID,
			BookingID:    &bookingRef,
			EntryType:    models.EntryTypeRefund,
			Credits:      part.Credits,
			BalanceAfter: balance,
		}); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// Grant creates a fresh lot for a confirmed package purchase and raises the
// counter by the package size.
func (s *Service) Grant(ctx context.Context, owner, packageType string) (*models.CreditLot, error) {
	pkg, ok := models.CreditPackages[packageType]
	if !ok {
		return nil, ErrUnknownPackage
	}
	now := time.Now().UTC()

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.Store.EnsureAccount(ctx, tx, owner); err != nil {
		return nil, err
	}
	if err := s.sweepExpired(ctx, tx, owner, now); err != nil {
		return nil, err
	}

	lot := &models.CreditLot{
		ID:               uuid.New(),
		OwnerUID:         owner,
		PackageType:      pkg.Type,
		CreditsTotal:     pkg.Credits,
		CreditsRemaining: pkg.Credits,
		Status:           models.LotStatusActive,
		ExpiresAt:        now.AddDate(0, 0, pkg.ValidityDays),
		CreatedAt:        now,
	}
	if err := s.Store.InsertLot(ctx, tx, lot); err != nil {
		return nil, err
	}
	balance, err := s.Store.AdjustBalance(ctx, tx, owner, pkg.Credits)
	if err != nil {
		return nil, err
	}
	if err := s.Store.InsertEntry(ctx, tx, &models.LedgerEntry{
		ID:           uuid.New(),
		OwnerUID:     owner,
		LotID:        &lot.ID,
		EntryType:    models.EntryTypePurchase,
		Credits:      pkg.Credits,
		BalanceAfter: balance,
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return lot, nil
}

// Balance reports the aggregate counter with its per-lot breakdown. The
// sweep runs first, so a stale counter self-corrects on read.
func (s *Service) Balance(ctx context.Context, owner string) (*BalanceSummary, error) {
	now := time.Now().UTC()
	window := s.ExpiringSoonDays
	if window <= 0 {
		window = 14
	}

	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := s.sweepExpired(ctx, tx, owner, now); err != nil {
		return nil, err
	}
	total, err := s.Store.AccountBalance(ctx, tx, owner)
	if err != nil {
		return nil, err
	}
	lots, err := s.Store.UsableLots(ctx, tx, owner, now)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	summary := &BalanceSummary{OwnerUID: owner, Total: total, Lots: []LotBalance{}}
	horizon := now.AddDate(0, 0, window)
	for _, lot := range lots {
		summary.Lots = append(summary.Lots, LotBalance{
			LotID:            lot.ID,
			PackageType:      lot.PackageType,
			CreditsRemaining: lot.CreditsRemaining,
			ExpiresAt:        lot.ExpiresAt,
		})
		if !lot.ExpiresAt.After(horizon) {
			summary.ExpiringSoon += lot.CreditsRemaining
		}
	}
	return summary, nil
}

// sweepExpired flips overdue active lots and drops their remaining credits
// from the counter, with an expiry entry per lot.
func (s *Service) sweepExpired(ctx context.Context, tx pgx.Tx, owner string, now time.Time) error {
	expired, err := s.Store.ExpireOverdueLots(ctx, tx, owner, now)
	if err != nil {
		return err
	}
	for _, lot := range expired {
		if lot.CreditsRemaining == 0 {
			continue
		}
		balance, err := s.Store.AdjustBalance(ctx, tx, owner, -lot.CreditsRemaining)
		if err != nil {
			return err
		}
		if err := s.Store.InsertEntry(ctx, tx, &models.LedgerEntry{
			ID:           uuid.New(),
			OwnerUID:     owner,
			LotID:        &lot.ID,
			EntryType:    models.EntryTypeExpiry,
			Credits:      lot.CreditsRemaining,
			BalanceAfter: balance,
		}); err != nil {
			return err
		}
	}
	return nil
}
