package repository

import (
	"context"
	"errors"

	"github.com/sifan077/PowerImage/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrImageNotFound signals that the requested image does not exist.
	ErrImageNotFound = errors.New("image not found")
)

// ImageRepository defines the data access contract for images.
type ImageRepository interface {
	Create(ctx context.Context, image *model.Image) error
	GetByID(ctx context.Context, id string) (*model.Image, error)
	ListByUser(ctx context.Context, userID uint) ([]model.Image, error)
	Delete(ctx context.Context, id string) error
}

type imageRepository struct {
	db *gorm.DB
}

// NewImageRepository returns a GORM-backed ImageRepository.
func NewImageRepository(db *gorm.DB) ImageRepository {
	return &imageRepository{db: db}
}

func (r *imageRepository) Create(ctx context.Context, image *model.Image) error {
	return r.db.WithContext(ctx).Create(image).Error
}

func (r *imageRepository) GetByID(ctx context.Context, id string) (*model.Image, error) {
	var image model.Image
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&image).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrImageNotFound
		}
		return nil, err
	}
	return &image, nil
}

func (r *imageRepository) ListByUser(ctx context.Context, userID uint) ([]model.Image, error) {
	var result []model.Image
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes the image and its links. The explicit link delete keeps the
// cascade when the schema was migrated without foreign keys.
func (r *imageRepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ?", id).Delete(&model.ExpiringLink{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", id).Delete(&model.Image{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrImageNotFound
		}
		return nil
	})
}
