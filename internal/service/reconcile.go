package service

// reconcile.go — pure reconciliation arithmetic for the close step.
// Everything here operates on integer cents; summation is plain int64
// addition, so the result is independent of delta ordering.

import (
	"tillcore/internal/model"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ComputeExpected returns, per tender, the opening balance plus the sum of
// all ledger-reported deltas attributed to that tender. Deltas may be
// positive (sales, cash-in) or negative (refunds, payouts); the snapshot may
// arrive in any order. A delta carrying a tender outside the closed set is a
// ledger data fault: its amount is folded into not_specified so the money
// still reconciles, but no out-of-set key ever reaches the frozen snapshot.
func ComputeExpected(opening model.TenderAmounts, deltas []model.TenderDelta) model.TenderAmounts {
	expected := opening.Clone()
	for _, d := range deltas {
		tender := d.Tender
		if !model.ValidPaymentMethod(tender) {
			log.Warn().
				Str("delta_id", d.ID.String()).
				Str("tender", string(d.Tender)).
				Msg("ledger delta carries unknown tender, folded into not_specified")
			tender = model.TenderNotSpecified
		}
		expected[tender] += d.Amount
	}
	return expected
}

// ComputeDiscrepancies returns closing − expected per tender. No tolerance
// band: amounts are exact integers, so any nonzero cent difference counts.
func ComputeDiscrepancies(closing, expected model.TenderAmounts) model.TenderAmounts {
	disc := model.ZeroTenderAmounts()
	for _, t := range model.PaymentMethods() {
		disc[t] = closing[t] - expected[t]
	}
	return disc
}

// TotalDiscrepancy is the net sum across tenders. Reported for display only —
// a tender-level nonzero discrepancy that nets to zero against another tender
// still leaves the session pending. The balanced/pending decision is always
// per tender.
func TotalDiscrepancy(disc model.TenderAmounts) model.Money {
	return disc.Total()
}

// Severity buckets for discrepancy display and alerting. They never gate the
// balanced/pending decision.
const (
	SeverityNormal   = "normal"   // |deviation| <= 1% of expected total
	SeverityWarning  = "warning"  // <= 5%
	SeverityCritical = "critical" // > 5%
)

// ClassifySeverity grades the net discrepancy against the expected total.
// A nonzero discrepancy over a zero expected total is always critical.
func ClassifySeverity(totalDiscrepancy, expectedTotal model.Money) string {
	if totalDiscrepancy == 0 {
		return SeverityNormal
	}
	if expectedTotal == 0 {
		return SeverityCritical
	}
	pct := DeviationPercent(totalDiscrepancy, expectedTotal).Abs()
	one := decimal.NewFromInt(1)
	five := decimal.NewFromInt(5)
	switch {
	case pct.LessThanOrEqual(one):
		return SeverityNormal
	case pct.LessThanOrEqual(five):
		return SeverityWarning
	default:
		return SeverityCritical
	}
}

// DeviationPercent returns totalDiscrepancy / expectedTotal × 100 rounded to
// two decimals, for report display. Decimal division is display-layer only —
// core balance arithmetic never leaves int64.
func DeviationPercent(totalDiscrepancy, expectedTotal model.Money) decimal.Decimal {
	if expectedTotal == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(totalDiscrepancy)).
		Div(decimal.NewFromInt(int64(expectedTotal))).
		Mul(decimal.NewFromInt(100)).
		Round(2)
}
