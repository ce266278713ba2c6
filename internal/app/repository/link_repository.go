package repository

import (
	"context"
	"errors"

	"github.com/sifan077/PowerImage/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrLinkNotFound signals that no durable record exists for an alias.
	ErrLinkNotFound = errors.New("link not found")
)

// LinkRepository defines the data access contract for expiring links.
type LinkRepository interface {
	Create(ctx context.Context, link *model.ExpiringLink) error
	// GetByAlias loads the link together with its image.
	GetByAlias(ctx context.Context, alias string) (*model.ExpiringLink, error)
	ListByImage(ctx context.Context, imageID string) ([]model.ExpiringLink, error)
}

type linkRepository struct {
	db *gorm.DB
}

// NewLinkRepository returns a GORM-backed LinkRepository.
func NewLinkRepository(db *gorm.DB) LinkRepository {
	return &linkRepository{db: db}
}

func (r *linkRepository) Create(ctx context.Context, link *model.ExpiringLink) error {
	if err := r.db.WithContext(ctx).Omit("Image").Create(link).Error; err != nil {
		return err
	}
	return nil
}

func (r *linkRepository) GetByAlias(ctx context.Context, alias string) (*model.ExpiringLink, error) {
	var link model.ExpiringLink
	if err := r.db.WithContext(ctx).Preload("Image").Where("alias = ?", alias).First(&link).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, err
	}
	return &link, nil
}

func (r *linkRepository) ListByImage(ctx context.Context, imageID string) ([]model.ExpiringLink, error) {
	var result []model.ExpiringLink
	if err := r.db.WithContext(ctx).
		Where("image_id = ?", imageID).
		Order("created_at DESC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}
