package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit lot status enums.
const (
	LotStatusActive    = "active"
	LotStatusExhausted = "exhausted"
	LotStatusExpired   = "expired"
)

// Ledger entry_type enums.
const (
	EntryTypePurchase  = "purchase"
	EntryTypeDeduction = "deduction"
	EntryTypeRefund    = "refund"
	EntryTypeExpiry    = "expiry"
)

// CreditLot is a purchased, expiring batch of session credits. Lots are never
// deleted: deduction decrements CreditsRemaining (status flips to exhausted at
// zero), expiry flips status and leaves the unspent count on record.
type CreditLot struct {
	ID               uuid.UUID `json:"id"`
	OwnerUID         string    `json:"owner_uid"`
	PackageType      string    `json:"package_type"`
	CreditsTotal     int       `json:"credits_total"`
	CreditsRemaining int       `json:"credits_remaining"`
	Status           string    `json:"status"`
	ExpiresAt        time.Time `json:"expires_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// Usable reports whether the lot can fund a deduction at the given instant.
func (l *CreditLot) Usable(now time.Time) bool {
	return l.Status == LotStatusActive && l.CreditsRemaining > 0 && l.ExpiresAt.After(now)
}

// LedgerEntry is one audit row per lot touched by a ledger operation, written
// in the same transaction as the mutation it records. BalanceAfter is the
// aggregate balance after this entry was applied.
type LedgerEntry struct {
	ID           uuid.UUID  `json:"id"`
	OwnerUID     string     `json:"owner_uid"`
	LotID        *uuid.UUID `json:"lot_id,omitempty"`
	BookingID    *uuid.UUID `json:"booking_id,omitempty"`
	EntryType    string     `json:"entry_type"`
	Credits      int        `json:"credits"`
	BalanceAfter int        `json:"balance_after"`
	CreatedAt    time.Time  `json:"created_at"`
}

// CreditPackage describes a purchasable credit pack. Purchases themselves are
// handled by the external payment flow; the catalog fixes what a confirmed
// purchase grants.
type CreditPackage struct {
	Type         string `json:"type"`
	Credits      int    `json:"credits"`
	ValidityDays int    `json:"validity_days"`
}

// CreditPackages is the fixed pack catalog, keyed by package_type.
var CreditPackages = map[string]CreditPackage{
	"starter_5": {Type: "starter_5", Credits: 5, ValidityDays: 90},
	"season_10": {Type: "season_10", Credits: 10, ValidityDays: 180},
	"annual_20": {Type: "annual_20", Credits: 20, ValidityDays: 365},
}
