package dto

import (
	"tillcore/internal/model"

	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// Amounts arrive as integer minor units (cents) keyed by tender name.
// Missing tenders default to zero; negative amounts and unknown tenders are
// rejected by the domain constructor.

type OpenSessionRequest struct {
	RegisterID      string                              `json:"register_id"      validate:"required,min=1,max=64"`
	OpeningBalances map[model.PaymentMethod]model.Money `json:"opening_balances" validate:"required"`
}

type CloseSessionRequest struct {
	// ExpectedVersion is the session version the caller last observed.
	// A stale value is rejected — re-fetch and decide, never retried blindly.
	ExpectedVersion int                                 `json:"expected_version" validate:"required,min=1"`
	ClosingBalances map[model.PaymentMethod]model.Money `json:"closing_balances" validate:"required"`
}

type ResolveSessionRequest struct {
	ExpectedVersion int    `json:"expected_version" validate:"required,min=1"`
	Action          string `json:"action"           validate:"required,oneof=approve investigate write_off"`
	Notes           string `json:"notes"            validate:"max=2000"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

// ReconciliationReport is the close-time comparison, frozen on the session.
// TotalDiscrepancy and Severity are display-only: the balanced/pending
// decision is per tender.
type ReconciliationReport struct {
	ExpectedBalances map[model.PaymentMethod]model.Money `json:"expected_balances"`
	ClosingBalances  map[model.PaymentMethod]model.Money `json:"closing_balances"`
	Discrepancies    map[model.PaymentMethod]model.Money `json:"discrepancies"`
	TotalDiscrepancy model.Money                         `json:"total_discrepancy"`
	DeviationPct     decimal.Decimal                     `json:"deviation_pct"`
	Severity         string                              `json:"severity"` // normal | warning | critical
}

type ResolutionResponse struct {
	Action     string `json:"action"`
	Notes      string `json:"notes"`
	ResolvedBy string `json:"resolved_by"`
	ResolvedAt string `json:"resolved_at"`
}

type SessionResponse struct {
	ID              string                              `json:"id"`
	RegisterID      string                              `json:"register_id"`
	Status          string                              `json:"status"`
	Version         int                                 `json:"version"`
	OpenedBy        string                              `json:"opened_by"`
	OpenedAt        string                              `json:"opened_at"`
	OpeningBalances map[model.PaymentMethod]model.Money `json:"opening_balances"`
	ClosedBy        *string                             `json:"closed_by,omitempty"`
	ClosedAt        *string                             `json:"closed_at,omitempty"`
	Reconciliation  *ReconciliationReport               `json:"reconciliation,omitempty"`
	Resolution      *ResolutionResponse                 `json:"resolution,omitempty"`
}

type SessionListResponse struct {
	Data  []SessionResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}
