package model

import (
	"time"

	"github.com/google/uuid"
)

// TenderDelta is one tender-attributed monetary movement reported by the
// external ledger (sales, refunds, cash-in, payouts). Deltas are owned by the
// ledger system — this core only reads them, scoped to a session's time
// window. Sign carries direction: positive for sales/cash-in, negative for
// refunds/payouts.
type TenderDelta struct {
	ID         uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID  uuid.UUID     `gorm:"type:uuid;index;not null"`
	Tender     PaymentMethod `gorm:"type:varchar(20);not null"`
	Amount     Money         `gorm:"not null"`
	OccurredAt time.Time     `gorm:"index;not null"`
}

func (TenderDelta) TableName() string { return "ledger_deltas" }

// LedgerAdjustment is the correcting-entry instruction emitted when a
// discrepancy is written off. This core never posts into the ledger directly;
// it records the instruction and the ledger system consumes it.
// Status: "pending" until picked up by the external ledger.
type LedgerAdjustment struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SessionID   uuid.UUID     `gorm:"type:uuid;index;not null"`
	Tender      PaymentMethod `gorm:"type:varchar(20);not null"`
	Amount      Money         `gorm:"not null"`
	RequestedBy uuid.UUID     `gorm:"type:uuid;not null"`
	Status      string        `gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt   time.Time
}

func (LedgerAdjustment) TableName() string { return "ledger_adjustments" }
