package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/courtside/backend/internal/models"
)

// Repository is the pgx-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// EnsureAccount creates the account row on first contact with an owner.
func (r *Repository) EnsureAccount(ctx context.Context, tx pgx.Tx, owner string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO accounts (owner_uid) VALUES ($1)
		ON CONFLICT (owner_uid) DO NOTHING
	`, owner)
	return err
}

// AdjustBalance moves the aggregate counter by delta (negative to deduct).
// The condition keeps the counter from going negative; zero rows means the
// counter and the lot rows disagree, which is a hard integrity error.
func (r *Repository) AdjustBalance(ctx context.Context, tx pgx.Tx, owner string, delta int) (int, error) {
	var balance int
	err := tx.QueryRow(ctx, `
		UPDATE accounts
		SET credit_balance = credit_balance + $1, updated_at = NOW()
		WHERE owner_uid = $2 AND credit_balance + $1 >= 0
		RETURNING credit_balance
	`, delta, owner).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("account %s: balance adjustment by %d rejected", owner, delta)
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// AccountBalance reads the counter. An owner with no account row has a zero
// balance.
func (r *Repository) AccountBalance(ctx context.Context, tx pgx.Tx, owner string) (int, error) {
	var balance int
	err := tx.QueryRow(ctx, `
		SELECT credit_balance FROM accounts WHERE owner_uid = $1
	`, owner).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (r *Repository) InsertLot(ctx context.Context, tx pgx.Tx, lot *models.CreditLot) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO credit_lots (id, owner_uid, package_type, credits_total, credits_remaining, status, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, lot.ID, lot.OwnerUID, lot.PackageType, lot.CreditsTotal, lot.CreditsRemaining, lot.Status, lot.ExpiresAt, lot.CreatedAt)
	return err
}

// UsableLots returns the owner's spendable lots in consumption order,
// soonest expiry first.
func (r *Repository) UsableLots(ctx context.Context, tx pgx.Tx, owner string, now time.Time) ([]*models.CreditLot, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, owner_uid, package_type, credits_total, credits_remaining, status, expires_at, created_at
		FROM credit_lots
		WHERE owner_uid = $1 AND status = 'active' AND credits_remaining > 0 AND expires_at > $2
		ORDER BY expires_at ASC, created_at ASC
	`, owner, now)
	if err != nil {
		return nil, err
	}
	return scanLots(rows)
}

// UsableLotsForUpdate is UsableLots with the rows locked for the rest of the
// transaction, so two deductions cannot drain the same lot.
func (r *Repository) UsableLotsForUpdate(ctx context.Context, tx pgx.Tx, owner string, now time.Time) ([]*models.CreditLot, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, owner_uid, package_type, credits_total, credits_remaining, status, expires_at, created_at
		FROM credit_lots
		WHERE owner_uid = $1 AND status = 'active' AND credits_remaining > 0 AND expires_at > $2
		ORDER BY expires_at ASC, created_at ASC
		FOR UPDATE
	`, owner, now)
	if err != nil {
		return nil, err
	}
	return scanLots(rows)
}

// ExpireOverdueLots flips overdue active lots to expired and reports them
// with the remaining credits they carried into expiry.
func (r *Repository) ExpireOverdueLots(ctx context.Context, tx pgx.Tx, owner string, now time.Time) ([]*models.CreditLot, error) {
	rows, err := tx.Query(ctx, `
		UPDATE credit_lots
		SET status = 'expired'
		WHERE owner_uid = $1 AND status = 'active' AND expires_at <= $2
		RETURNING id, owner_uid, package_type, credits_total, credits_remaining, status, expires_at, created_at
	`, owner, now)
	if err != nil {
		return nil, err
	}
	return scanLots(rows)
}

// DeductFromLot takes amount from one lot, flipping it to exhausted when it
// hits zero.
func (r *Repository) DeductFromLot(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, amount int) error {
	result, err := tx.Exec(ctx, `
		UPDATE credit_lots
		SET credits_remaining = credits_remaining - $1,
		    status = CASE WHEN credits_remaining - $1 = 0 THEN 'exhausted' ELSE status END
		WHERE id = $2 AND status = 'active' AND credits_remaining >= $1
	`, amount, lotID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("lot %s: deduction of %d rejected", lotID, amount)
	}
	return nil
}

// RestoreToLot puts amount back on a lot, capped at the lot's total. An
// exhausted lot re-activates only while still in date; past its expiry it
// goes straight to expired so later sweeps never count the restored credits.
func (r *Repository) RestoreToLot(ctx context.Context, tx pgx.Tx, lotID uuid.UUID, amount int, now time.Time) (*models.CreditLot, error) {
	row := tx.QueryRow(ctx, `
		UPDATE credit_lots
		SET credits_remaining = LEAST(credits_total, credits_remaining + $1),
		    status = CASE
		        WHEN status = 'exhausted' AND expires_at > $2 THEN 'active'
		        WHEN status = 'exhausted' THEN 'expired'
		        ELSE status
		    END
		WHERE id = $3
		RETURNING id, owner_uid, package_type, credits_total, credits_remaining, status, expires_at, created_at
	`, amount, now, lotID)
	lot, err := scanLot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("lot %s not found", lotID)
	}
	return lot, err
}

func (r *Repository) InsertEntry(ctx context.Context, tx pgx.Tx, e *models.LedgerEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, owner_uid, lot_id, booking_id, entry_type, credits, balance_after)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.OwnerUID, e.LotID, e.BookingID, e.EntryType, e.Credits, e.BalanceAfter)
	return err
}

// EntriesByOwner lists the audit trail, newest first.
func (r *Repository) EntriesByOwner(ctx context.Context, owner string, limit int) ([]*models.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, owner_uid, lot_id, booking_id, entry_type, credits, balance_after, created_at
		FROM ledger_entries
		WHERE owner_uid = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, owner, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []*models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.OwnerUID, &e.LotID, &e.BookingID, &e.EntryType, &e.Credits, &e.BalanceAfter, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func scanLots(rows pgx.Rows) ([]*models.CreditLot, error) {
	defer rows.Close()
	var lots []*models.CreditLot
	for rows.Next() {
		var l models.CreditLot
		if err := rows.Scan(&l.ID, &l.OwnerUID, &l.PackageType, &l.CreditsTotal, &l.CreditsRemaining, &l.Status, &l.ExpiresAt, &l.CreatedAt); err != nil {
			return nil, err
		}
		lots = append(lots, &l)
	}
	return lots, rows.Err()
}

func scanLot(row pgx.Row) (*models.CreditLot, error) {
	var l models.CreditLot
	if err := row.Scan(&l.ID, &l.OwnerUID, &l.PackageType, &l.CreditsTotal, &l.CreditsRemaining, &l.Status, &l.ExpiresAt, &l.CreatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}
