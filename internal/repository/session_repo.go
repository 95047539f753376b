package repository

import (
	"context"
	"errors"

	"tillcore/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SessionRepository interface {
	// Create inserts a new OPEN session. The partial unique index on
	// (register_id) WHERE status = 'OPEN' makes check-then-create atomic:
	// of two concurrent opens on the same register exactly one insert
	// succeeds, the other returns model.ErrRegisterAlreadyOpen.
	Create(ctx context.Context, s *model.RegisterSession) error

	FindByID(ctx context.Context, id uuid.UUID) (*model.RegisterSession, error)
	FindOpenByRegister(ctx context.Context, registerID string) (*model.RegisterSession, error)

	// UpdateVersioned persists s with a compare-and-swap on the version the
	// caller observed (WHERE version = expectedVersion). s.Version must
	// already be expectedVersion+1. Returns model.ErrVersionConflict when
	// another writer won the race.
	UpdateVersioned(ctx context.Context, s *model.RegisterSession, expectedVersion int) error

	List(ctx context.Context, page, limit int) ([]model.RegisterSession, int64, error)
}

type sessionRepo struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &sessionRepo{db: db} }

func (r *sessionRepo) Create(ctx context.Context, s *model.RegisterSession) error {
	err := r.db.WithContext(ctx).Create(s).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.ErrRegisterAlreadyOpen
	}
	return err
}

func (r *sessionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.RegisterSession, error) {
	var s model.RegisterSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) FindOpenByRegister(ctx context.Context, registerID string) (*model.RegisterSession, error) {
	var s model.RegisterSession
	err := r.db.WithContext(ctx).
		Where("register_id = ? AND status = ?", registerID, model.StatusOpen).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, model.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// mutableColumns are the only columns close/resolve may touch. Updating an
// explicit set keeps the CAS write from clobbering open-time fields.
var mutableColumns = []string{
	"closed_by", "closed_at", "closing_balances", "expected_balances",
	"discrepancies", "status", "resolution_action", "resolution_notes",
	"resolved_by", "resolved_at", "version", "updated_at",
}

func (r *sessionRepo) UpdateVersioned(ctx context.Context, s *model.RegisterSession, expectedVersion int) error {
	res := r.db.WithContext(ctx).
		Model(&model.RegisterSession{}).
		Where("id = ? AND version = ?", s.ID, expectedVersion).
		Select(mutableColumns).
		Updates(s)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return model.ErrVersionConflict
	}
	return nil
}

func (r *sessionRepo) List(ctx context.Context, page, limit int) ([]model.RegisterSession, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.RegisterSession{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var sessions []model.RegisterSession
	err := r.db.WithContext(ctx).
		Order("opened_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sessions).Error
	return sessions, total, err
}
