package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

// MaxThumbnailHeight bounds rendered thumbnails; larger "@H" suffixes are plain keys.
const MaxThumbnailHeight = 4096

// Thumbnailer renders height-bound renditions of stored originals and caches
// them next to the original under ThumbnailKey.
type Thumbnailer struct {
	store Storage
}

// NewThumbnailer returns a Thumbnailer reading from and writing to store.
func NewThumbnailer(store Storage) *Thumbnailer {
	return &Thumbnailer{store: store}
}

// SplitThumbnailKey splits "key@H" into key and H. ok is false for plain keys.
func SplitThumbnailKey(key string) (original string, height int, ok bool) {
	i := strings.LastIndex(key, "@")
	if i <= 0 {
		return key, 0, false
	}
	h, err := strconv.Atoi(key[i+1:])
	if err != nil || h <= 0 || h > MaxThumbnailHeight {
		return key, 0, false
	}
	return key[:i], h, true
}

// Open returns the cached rendition, rendering it first when missing.
func (t *Thumbnailer) Open(ctx context.Context, key string, height int) (io.ReadCloser, error) {
	if height <= 0 || height > MaxThumbnailHeight {
		return nil, fmt.Errorf("storage: thumbnail height %d out of range", height)
	}
	thumbKey := ThumbnailKey(key, height)
	exists, err := t.store.Exists(ctx, thumbKey)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := t.render(ctx, key, thumbKey, height); err != nil {
			return nil, err
		}
	}
	return t.store.Open(ctx, thumbKey)
}

func (t *Thumbnailer) render(ctx context.Context, key, thumbKey string, height int) error {
	src, err := t.store.Open(ctx, key)
	if err != nil {
		return err
	}
	defer src.Close()

	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("storage: decode %s: %w", key, err)
	}

	format, err := imaging.FormatFromFilename(key)
	if err != nil {
		format = imaging.JPEG
	}

	thumb := imaging.Resize(img, 0, height, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, format, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("storage: encode thumbnail %s: %w", thumbKey, err)
	}
	return t.store.Save(ctx, thumbKey, &buf, contentTypeFor(key))
}

func contentTypeFor(key string) string {
	if strings.EqualFold(path.Ext(key), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
