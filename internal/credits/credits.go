// Package credits implements the credit arithmetic that gates generation
// work. All math is integer math.
package credits

import "subgen/internal/domain"

// DefaultSecondsPerCredit is how much media one credit pays for.
const DefaultSecondsPerCredit = 300

// Ledger computes and applies credit charges.
type Ledger struct {
	SecondsPerCredit int
}

// NewLedger returns a ledger with the given charge rate, falling back to
// the default for non-positive rates.
func NewLedger(secondsPerCredit int) Ledger {
	if secondsPerCredit <= 0 {
		secondsPerCredit = DefaultSecondsPerCredit
	}
	return Ledger{SecondsPerCredit: secondsPerCredit}
}

// Required returns the credits needed for a media of the given duration:
// ceiling division with a floor of one credit for any nonzero duration.
func (l Ledger) Required(durationSeconds int) int {
	if durationSeconds <= 0 {
		return 1
	}
	required := (durationSeconds + l.SecondsPerCredit - 1) / l.SecondsPerCredit
	if required < 1 {
		required = 1
	}
	return required
}

// CanAfford reports whether a balance covers the required credits.
func (l Ledger) CanAfford(balance, required int) bool {
	return balance-required >= 0
}

// Debit returns the remaining balance after the charge, or
// ErrInsufficientCredits when the balance cannot cover it. The balance is
// never allowed to go negative.
func (l Ledger) Debit(balance, required int) (int, error) {
	if !l.CanAfford(balance, required) {
		return balance, domain.ErrInsufficientCredits
	}
	return balance - required, nil
}
