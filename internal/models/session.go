package models

// Session type enums. Group sessions are credit-funded; the other types are
// priced and paid directly through the external payment flow, so the booking
// coordinator routes them there instead of deducting credits.
const (
	SessionTypeGroup       = "group"
	SessionTypePrivate     = "private"
	SessionTypeSemiPrivate = "semi_private"
)

// CreditsRequired is the fixed cost table keyed by session_type. Types absent
// from the table are directly paid.
var CreditsRequired = map[string]int{
	SessionTypeGroup: 1,
}

// ValidSessionType reports whether s names a known session type.
func ValidSessionType(s string) bool {
	switch s {
	case SessionTypeGroup, SessionTypePrivate, SessionTypeSemiPrivate:
		return true
	}
	return false
}

// DirectPayment reports whether the session type bypasses the credit ledger.
func DirectPayment(sessionType string) bool {
	_, creditFunded := CreditsRequired[sessionType]
	return !creditFunded
}
