package repository

import (
	"context"

	"github.com/sifan077/PowerImage/internal/app/model"
	"gorm.io/gorm"
)

// AccessEventRepository defines the data access contract for link access events.
type AccessEventRepository interface {
	Create(ctx context.Context, event *model.LinkAccessEvent) error
	CountByAlias(ctx context.Context, alias string) (int64, error)
}

type accessEventRepository struct {
	db *gorm.DB
}

// NewAccessEventRepository returns a GORM-backed AccessEventRepository.
func NewAccessEventRepository(db *gorm.DB) AccessEventRepository {
	return &accessEventRepository{db: db}
}

// Create is idempotent on the event ID so redelivered messages do not duplicate rows.
func (r *accessEventRepository) Create(ctx context.Context, event *model.LinkAccessEvent) error {
	return r.db.WithContext(ctx).
		Where(model.LinkAccessEvent{ID: event.ID}).
		FirstOrCreate(event).Error
}

func (r *accessEventRepository) CountByAlias(ctx context.Context, alias string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.LinkAccessEvent{}).Where("alias = ?", alias).Count(&count).Error
	return count, err
}
