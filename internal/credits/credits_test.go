package credits

import (
	"errors"
	"testing"

	"subgen/internal/domain"
)

func TestRequired(t *testing.T) {
	l := NewLedger(300)

	cases := []struct {
		duration int
		want     int
	}{
		{0, 1},
		{1, 1},
		{299, 1},
		{300, 1},
		{301, 2},
		{360, 2},
		{600, 2},
		{601, 3},
	}
	for _, tc := range cases {
		if got := l.Required(tc.duration); got != tc.want {
			t.Errorf("Required(%d) = %d, want %d", tc.duration, got, tc.want)
		}
	}
}

func TestRequiredNeverZero(t *testing.T) {
	l := NewLedger(300)
	for d := 1; d < 1000; d += 7 {
		if l.Required(d) < 1 {
			t.Fatalf("Required(%d) < 1", d)
		}
	}
}

func TestCanAffordMatchesDebit(t *testing.T) {
	l := NewLedger(300)
	for balance := 0; balance <= 3; balance++ {
		for required := 1; required <= 3; required++ {
			_, err := l.Debit(balance, required)
			if l.CanAfford(balance, required) != (err == nil) {
				t.Fatalf("CanAfford(%d,%d) disagrees with Debit", balance, required)
			}
		}
	}
}

func TestDebitScenarios(t *testing.T) {
	l := NewLedger(300)

	// 1 credit, 4m59s video: accepted, balance drops to zero.
	remaining, err := l.Debit(1, l.Required(299))
	if err != nil || remaining != 0 {
		t.Fatalf("Debit(1, req(299)) = (%d, %v), want (0, nil)", remaining, err)
	}

	// Then a 6 minute video: rejected, balance unchanged.
	remaining, err = l.Debit(remaining, l.Required(360))
	if !errors.Is(err, domain.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if remaining != 0 {
		t.Fatalf("failed debit changed the balance: %d", remaining)
	}
}

func TestNewLedgerDefault(t *testing.T) {
	if NewLedger(0).SecondsPerCredit != DefaultSecondsPerCredit {
		t.Fatal("zero rate should fall back to the default")
	}
}
