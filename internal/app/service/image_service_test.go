package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sifan077/PowerImage/internal/app/model"
	"github.com/sifan077/PowerImage/internal/app/repository"
	"github.com/sifan077/PowerImage/internal/infra/storage"
	"github.com/sifan077/PowerImage/internal/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

type failingImages struct {
	repository.ImageRepository
}

func (failingImages) Create(context.Context, *model.Image) error {
	return errors.New("db down")
}

func newImageFixture() (ImageService, *testutil.Images, *storage.LocalStorage) {
	images, _ := testutil.NewLinkStores()
	files := storage.NewLocalStorageFs(afero.NewMemMapFs(), "http://localhost/media", nil)
	return NewImageService(ImageDeps{Images: images, Files: files}), images, files
}

func TestValidateExtension(t *testing.T) {
	for _, name := range []string{"a.jpg", "a.JPEG", "b.png", "dir/c.Png"} {
		require.NoError(t, ValidateExtension(name), name)
	}
	for _, name := range []string{"a.gif", "noext", "a.png.exe", ""} {
		require.ErrorIs(t, ValidateExtension(name), ErrUnsupportedExtension, name)
	}
}

func TestOriginalKey(t *testing.T) {
	key := OriginalKey(42, "Holiday.JPG")
	require.True(t, strings.HasPrefix(key, "42/original/"), key)
	require.True(t, strings.HasSuffix(key, ".jpg"), key)
	require.NotEqual(t, key, OriginalKey(42, "Holiday.JPG"))
}

func TestImageService_Upload(t *testing.T) {
	svc, images, files := newImageFixture()
	data := testutil.PNG(t, 8, 6)

	img, err := svc.Upload(context.Background(), UploadInput{UserID: 3, Filename: "cat.png", Content: bytes.NewReader(data)})
	require.NoError(t, err)
	require.Equal(t, uint(3), img.UserID)
	require.Equal(t, "image/png", img.ContentType())

	stored, err := images.GetByID(context.Background(), img.ID)
	require.NoError(t, err)
	require.Equal(t, img.OriginalFile, stored.OriginalFile)

	ok, err := files.Exists(context.Background(), img.OriginalFile)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestImageService_UploadRejects(t *testing.T) {
	svc, images, _ := newImageFixture()

	_, err := svc.Upload(context.Background(), UploadInput{UserID: 1, Filename: "a.gif", Content: bytes.NewReader(testutil.PNG(t, 2, 2))})
	require.ErrorIs(t, err, ErrUnsupportedExtension)

	_, err = svc.Upload(context.Background(), UploadInput{UserID: 1, Filename: "a.jpg", Content: strings.NewReader("not an image")})
	require.ErrorIs(t, err, ErrInvalidImage)

	_, err = svc.Upload(context.Background(), UploadInput{UserID: 1, Filename: "a.jpg", Content: strings.NewReader("")})
	require.ErrorIs(t, err, ErrEmptyUpload)

	_, err = svc.Upload(context.Background(), UploadInput{UserID: 1, Filename: "a.jpg"})
	require.ErrorIs(t, err, ErrEmptyUpload)

	list, err := images.ListByUser(context.Background(), 1)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestImageService_UploadRemovesFileWhenCreateFails(t *testing.T) {
	fsys := afero.NewMemMapFs()
	files := storage.NewLocalStorageFs(fsys, "http://localhost/media", nil)
	svc := NewImageService(ImageDeps{Images: failingImages{}, Files: files})

	_, err := svc.Upload(context.Background(), UploadInput{UserID: 5, Filename: "a.jpg", Content: bytes.NewReader(testutil.JPEG(t, 4, 4))})
	require.Error(t, err)

	entries, err := afero.ReadDir(fsys, "/5/original")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestImageService_ListAndDelete(t *testing.T) {
	svc, _, files := newImageFixture()
	ctx := context.Background()

	mine, err := svc.Upload(ctx, UploadInput{UserID: 1, Filename: "a.png", Content: bytes.NewReader(testutil.PNG(t, 3, 3))})
	require.NoError(t, err)
	_, err = svc.Upload(ctx, UploadInput{UserID: 2, Filename: "b.png", Content: bytes.NewReader(testutil.PNG(t, 3, 3))})
	require.NoError(t, err)

	list, err := svc.List(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, mine.ID, list[0].ID)

	err = svc.Delete(ctx, 2, mine.ID)
	require.ErrorIs(t, err, repository.ErrImageNotFound)

	require.NoError(t, svc.Delete(ctx, 1, mine.ID))
	ok, err := files.Exists(ctx, mine.OriginalFile)
	require.NoError(t, err)
	require.False(t, ok)

	err = svc.Delete(ctx, 1, mine.ID)
	require.ErrorIs(t, err, repository.ErrImageNotFound)
}
