package repository

import (
	"context"
	"time"

	"tillcore/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LedgerRepository is the boundary to the external ledger system. Deltas are
// written by the ledger, never by this core; adjustments are written by this
// core, consumed by the ledger.
type LedgerRepository interface {
	// GetDeltasSince reads all tender-attributed deltas for a session
	// timestamped inside [from, to]. A single bounded read — the snapshot is
	// assumed consistent at the moment of close.
	GetDeltasSince(ctx context.Context, sessionID uuid.UUID, from, to time.Time) ([]model.TenderDelta, error)

	// RecordAdjustment persists a correcting-entry instruction for the
	// external ledger to pick up (write-off resolutions).
	RecordAdjustment(ctx context.Context, adj *model.LedgerAdjustment) error
}

type ledgerRepo struct{ db *gorm.DB }

func NewLedgerRepository(db *gorm.DB) LedgerRepository { return &ledgerRepo{db: db} }

func (r *ledgerRepo) GetDeltasSince(ctx context.Context, sessionID uuid.UUID, from, to time.Time) ([]model.TenderDelta, error) {
	var deltas []model.TenderDelta
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND occurred_at >= ? AND occurred_at <= ?", sessionID, from, to).
		Find(&deltas).Error
	return deltas, err
}

func (r *ledgerRepo) RecordAdjustment(ctx context.Context, adj *model.LedgerAdjustment) error {
	return r.db.WithContext(ctx).Create(adj).Error
}
