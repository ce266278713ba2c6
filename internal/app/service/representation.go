package service

import (
	"context"
	"fmt"

	"github.com/sifan077/PowerImage/internal/app/model"
	"github.com/sifan077/PowerImage/internal/app/permission"
	"github.com/sifan077/PowerImage/internal/infra/storage"
)

// Representation is the JSON projection of an image for one caller. Fields
// the caller may not see are absent, never null.
type Representation map[string]any

// RepresentationSelector decides which renditions of an image a capability set exposes.
type RepresentationSelector struct {
	files      storage.Storage
	thumbnails storage.ThumbnailURLGenerator
}

// NewRepresentationSelector returns a selector resolving URLs through files and thumbnails.
func NewRepresentationSelector(files storage.Storage, thumbnails storage.ThumbnailURLGenerator) *RepresentationSelector {
	return &RepresentationSelector{files: files, thumbnails: thumbnails}
}

// Present renders img for caps. A malformed thumbnail grant fails the call.
func (s *RepresentationSelector) Present(ctx context.Context, img *model.Image, caps permission.Set) (Representation, error) {
	heights, err := caps.ThumbnailHeights()
	if err != nil {
		return nil, fmt.Errorf("present image %s: %w", img.ID, err)
	}

	rep := Representation{
		"id":          img.ID,
		"uploaded_at": img.UploadedAt,
	}

	if caps.Has(permission.OriginalAccess) {
		url, err := s.files.URL(ctx, img.OriginalFile)
		if err != nil {
			return nil, fmt.Errorf("original url for %s: %w", img.ID, err)
		}
		rep["original_file"] = url
	}

	key := s.files.ObjectKey(img.OriginalFile)
	for _, h := range heights {
		url, err := s.thumbnails.Generate(ctx, key, h)
		if err != nil {
			return nil, fmt.Errorf("thumbnail %d url for %s: %w", h, img.ID, err)
		}
		rep[fmt.Sprintf("thumbnail_%d", h)] = url
	}

	return rep, nil
}

// PresentAll renders every image with the same capability set.
func (s *RepresentationSelector) PresentAll(ctx context.Context, images []model.Image, caps permission.Set) ([]Representation, error) {
	out := make([]Representation, 0, len(images))
	for i := range images {
		rep, err := s.Present(ctx, &images[i], caps)
		if err != nil {
			return nil, err
		}
		out = append(out, rep)
	}
	return out, nil
}
