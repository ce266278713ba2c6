package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sifan077/PowerImage/internal/app/model"
	"github.com/sifan077/PowerImage/internal/app/repository"
	"github.com/sifan077/PowerImage/internal/infra/prometheus"
	"github.com/sifan077/PowerImage/internal/infra/storage"
	"go.uber.org/zap"
)

// AllowedExtensions lists accepted upload extensions, compared case-insensitively.
var AllowedExtensions = []string{".jpg", ".jpeg", ".png"}

var (
	ErrUnsupportedExtension = errors.New("unsupported file extension, supported file extensions are .jpg, .jpeg, .png")
	ErrInvalidImage         = errors.New("upload a valid image, the file you uploaded was either not an image or a corrupted image")
	ErrEmptyUpload          = errors.New("no file was submitted")
)

// ImageService defines behaviour-level operations on images.
type ImageService interface {
	Upload(ctx context.Context, input UploadInput) (*model.Image, error)
	List(ctx context.Context, userID uint) ([]model.Image, error)
	Delete(ctx context.Context, userID uint, imageID string) error
}

// UploadInput captures data required to store a new image.
type UploadInput struct {
	UserID   uint
	Filename string
	Content  io.Reader
}

// ImageDeps groups dependencies required by the image service.
type ImageDeps struct {
	Logger *zap.Logger
	Images repository.ImageRepository
	Files  storage.Storage
}

type imageService struct {
	logger *zap.Logger
	images repository.ImageRepository
	files  storage.Storage
}

// NewImageService returns an ImageService storing files in deps.Files.
func NewImageService(deps ImageDeps) ImageService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &imageService{
		logger: logger,
		images: deps.Images,
		files:  deps.Files,
	}
}

// ValidateExtension rejects filenames outside AllowedExtensions.
func ValidateExtension(filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return nil
		}
	}
	return ErrUnsupportedExtension
}

// OriginalKey lays originals out as "<user_id>/original/<uuid><ext>".
func OriginalKey(userID uint, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(fmt.Sprint(userID), "original", uuid.NewString()+ext)
}

func (s *imageService) Upload(ctx context.Context, input UploadInput) (*model.Image, error) {
	if input.Content == nil {
		return nil, ErrEmptyUpload
	}
	if err := ValidateExtension(input.Filename); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(input.Content)
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyUpload
	}
	if _, err := imaging.Decode(bytes.NewReader(data)); err != nil {
		return nil, ErrInvalidImage
	}

	image := &model.Image{
		ID:           uuid.NewString(),
		UserID:       input.UserID,
		OriginalFile: OriginalKey(input.UserID, input.Filename),
	}

	if err := s.files.Save(ctx, image.OriginalFile, bytes.NewReader(data), image.ContentType()); err != nil {
		return nil, fmt.Errorf("store original: %w", err)
	}

	if err := s.images.Create(ctx, image); err != nil {
		if delErr := s.files.Delete(ctx, image.OriginalFile); delErr != nil {
			s.logger.Warn("failed to remove orphaned original",
				zap.String("key", image.OriginalFile), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create image: %w", err)
	}

	prometheus.ImagesUploaded.Inc()
	s.logger.Debug("image uploaded",
		zap.String("image_id", image.ID),
		zap.Uint("user_id", image.UserID),
		zap.Int("bytes", len(data)),
	)
	return image, nil
}

func (s *imageService) List(ctx context.Context, userID uint) ([]model.Image, error) {
	images, err := s.images.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return images, nil
}

// Delete removes an image owned by userID. Other users' images report not found.
func (s *imageService) Delete(ctx context.Context, userID uint, imageID string) error {
	image, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return fmt.Errorf("load image: %w", err)
	}
	if image.UserID != userID {
		return fmt.Errorf("load image: %w", repository.ErrImageNotFound)
	}

	if err := s.images.Delete(ctx, imageID); err != nil {
		return fmt.Errorf("delete image: %w", err)
	}

	if err := s.files.Delete(ctx, image.OriginalFile); err != nil {
		s.logger.Warn("failed to remove original after delete",
			zap.String("image_id", imageID), zap.String("key", image.OriginalFile), zap.Error(err))
	}
	return nil
}
