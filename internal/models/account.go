package models

import "time"

// Account is created implicitly the first time an owner buys credits or books
// a session. OwnerUID is the opaque identity-provider UID; this service never
// parses or mints it.
//
// CreditBalance is the maintained aggregate: after every ledger operation it
// equals the sum of credits_remaining over the owner's usable lots.
type Account struct {
	OwnerUID      string    `json:"owner_uid"`
	CreditBalance int       `json:"credit_balance"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
