package model

import (
	"fmt"
)

// Money is a monetary amount in minor currency units (cents).
// All balance arithmetic is exact integer arithmetic — never floats.
type Money int64

// PaymentMethod is one of the fixed tender kinds a till accepts.
// Extending this set is a schema change, not a runtime decision.
type PaymentMethod string

const (
	TenderCash         PaymentMethod = "cash"
	TenderCard         PaymentMethod = "card"
	TenderBank         PaymentMethod = "bank"
	TenderMobile       PaymentMethod = "mobile"
	TenderWave         PaymentMethod = "wave"
	TenderNotSpecified PaymentMethod = "not_specified"
)

// paymentMethods is the canonical iteration order for reports.
var paymentMethods = []PaymentMethod{
	TenderCash, TenderCard, TenderBank, TenderMobile, TenderWave, TenderNotSpecified,
}

// PaymentMethods returns the closed set of tenders in canonical order.
func PaymentMethods() []PaymentMethod {
	out := make([]PaymentMethod, len(paymentMethods))
	copy(out, paymentMethods)
	return out
}

// ValidPaymentMethod reports whether t belongs to the closed tender set.
func ValidPaymentMethod(t PaymentMethod) bool {
	for _, m := range paymentMethods {
		if m == t {
			return true
		}
	}
	return false
}

// TenderAmounts maps every PaymentMethod to an amount. A TenderAmounts built
// through NewTenderAmounts or ZeroTenderAmounts always carries an entry for
// every known tender — a partially populated map never reaches reconciliation.
// Persisted as JSONB via GORM's json serializer.
type TenderAmounts map[PaymentMethod]Money

// ZeroTenderAmounts returns a complete map with every tender at zero.
func ZeroTenderAmounts() TenderAmounts {
	ta := make(TenderAmounts, len(paymentMethods))
	for _, m := range paymentMethods {
		ta[m] = 0
	}
	return ta
}

// NewTenderAmounts builds a complete, non-negative tender map from caller
// input. Missing tenders default to zero; unknown tenders and negative
// amounts are rejected.
func NewTenderAmounts(in map[PaymentMethod]Money) (TenderAmounts, error) {
	ta := ZeroTenderAmounts()
	for t, amount := range in {
		if !ValidPaymentMethod(t) {
			return nil, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, t)
		}
		if amount < 0 {
			return nil, fmt.Errorf("%w: negative amount %d for %q", ErrInvalidInput, amount, t)
		}
		ta[t] = amount
	}
	return ta, nil
}

// Total sums all tenders. Addition on int64 cents — exact.
func (ta TenderAmounts) Total() Money {
	var total Money
	for _, amount := range ta {
		total += amount
	}
	return total
}

// AllZero reports whether every tender amount is exactly zero.
func (ta TenderAmounts) AllZero() bool {
	for _, amount := range ta {
		if amount != 0 {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (ta TenderAmounts) Clone() TenderAmounts {
	out := make(TenderAmounts, len(ta))
	for t, amount := range ta {
		out[t] = amount
	}
	return out
}
