package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the register session state machine.
// OPEN → CLOSED_BALANCED | DISCREPANCY_PENDING (via close)
// DISCREPANCY_PENDING → RESOLVED (via resolve)
// CLOSED_BALANCED and RESOLVED are terminal.
type SessionStatus string

const (
	StatusOpen               SessionStatus = "OPEN"
	StatusClosedBalanced     SessionStatus = "CLOSED_BALANCED"
	StatusDiscrepancyPending SessionStatus = "DISCREPANCY_PENDING"
	StatusResolved           SessionStatus = "RESOLVED"
)

// ResolutionAction decides what happens to a pending discrepancy.
type ResolutionAction string

const (
	ResolutionApprove     ResolutionAction = "approve"
	ResolutionInvestigate ResolutionAction = "investigate"
	ResolutionWriteOff    ResolutionAction = "write_off"
)

// ValidResolutionAction reports whether a belongs to the closed action set.
func ValidResolutionAction(a ResolutionAction) bool {
	switch a {
	case ResolutionApprove, ResolutionInvestigate, ResolutionWriteOff:
		return true
	}
	return false
}

// RegisterSession is the aggregate root for one open-to-close cycle of a
// physical till. Sessions are never deleted — once terminal they are an
// immutable audit trail. ExpectedBalances and Discrepancies are computed
// exactly once, at close, and frozen: ledger events arriving later must not
// silently change an already-reconciled session.
//
// At most one OPEN session may exist per RegisterID, enforced by a partial
// unique index on (register_id) WHERE status = 'OPEN' (see infra/database.go).
type RegisterSession struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RegisterID string    `gorm:"type:varchar(64);not null;index"`

	OpenedBy        uuid.UUID     `gorm:"type:uuid;not null"`
	OpenedAt        time.Time     `gorm:"not null"`
	OpeningBalances TenderAmounts `gorm:"type:jsonb;serializer:json;not null"`

	ClosedBy         *uuid.UUID    `gorm:"type:uuid"`
	ClosedAt         *time.Time    ``
	ClosingBalances  TenderAmounts `gorm:"type:jsonb;serializer:json"`
	ExpectedBalances TenderAmounts `gorm:"type:jsonb;serializer:json"`
	Discrepancies    TenderAmounts `gorm:"type:jsonb;serializer:json"`

	Status SessionStatus `gorm:"type:varchar(24);not null;default:'OPEN';index"`

	ResolutionAction *ResolutionAction `gorm:"type:varchar(16)"`
	ResolutionNotes  *string           ``
	ResolvedBy       *uuid.UUID        `gorm:"type:uuid"`
	ResolvedAt       *time.Time        ``

	// Version increments on every state-changing operation. Writes are
	// compare-and-swap on the version the caller last observed.
	Version int `gorm:"not null;default:1"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (RegisterSession) TableName() string { return "register_sessions" }

// Terminal reports whether the session can never be mutated again.
func (s *RegisterSession) Terminal() bool {
	return s.Status == StatusClosedBalanced || s.Status == StatusResolved
}
