package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// LocalStorage keeps files on an afero filesystem and serves them under
// publicURL. URLs carry a MediaSigner signature when a signer is set.
type LocalStorage struct {
	fs        afero.Fs
	publicURL string
	signer    *MediaSigner
}

// NewLocalStorage roots storage at dir on the OS filesystem.
func NewLocalStorage(dir, publicURL string, signer *MediaSigner) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create root %s: %w", dir, err)
	}
	return NewLocalStorageFs(afero.NewBasePathFs(afero.NewOsFs(), dir), publicURL, signer), nil
}

// NewLocalStorageFs uses the given filesystem, e.g. afero.NewMemMapFs in tests.
func NewLocalStorageFs(fsys afero.Fs, publicURL string, signer *MediaSigner) *LocalStorage {
	return &LocalStorage{fs: fsys, publicURL: strings.TrimRight(publicURL, "/"), signer: signer}
}

func (s *LocalStorage) Save(_ context.Context, key string, r io.Reader, _ string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll(path.Dir(name), 0o755); err != nil {
		return fmt.Errorf("storage: mkdir for %s: %w", key, err)
	}
	f, err := s.fs.Create(name)
	if err != nil {
		return fmt.Errorf("storage: create %s: %w", key, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(name)
		return fmt.Errorf("storage: write %s: %w", key, err)
	}
	return f.Close()
}

func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	name, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("storage: open %s: %w", key, err)
	}
	return f, nil
}

func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	name, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	return afero.Exists(s.fs, name)
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	name, err := cleanKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

func (s *LocalStorage) URL(_ context.Context, key string) (string, error) {
	return s.signer.SignedURL(s.publicURL, key)
}

func (s *LocalStorage) ObjectKey(key string) string {
	return key
}

// LocalThumbnails points thumbnail URLs at the local media route.
type LocalThumbnails struct {
	publicURL string
	signer    *MediaSigner
}

// NewLocalThumbnails builds URLs as "<publicURL>/<key>@<height>", signed for
// that exact key and height.
func NewLocalThumbnails(publicURL string, signer *MediaSigner) *LocalThumbnails {
	return &LocalThumbnails{publicURL: strings.TrimRight(publicURL, "/"), signer: signer}
}

func (g *LocalThumbnails) Generate(_ context.Context, storageKey string, height int) (string, error) {
	return g.signer.SignedURL(g.publicURL, ThumbnailKey(storageKey, height))
}

func cleanKey(key string) (string, error) {
	name := path.Clean("/" + key)
	if name == "/" {
		return "", fmt.Errorf("storage: empty key")
	}
	return name, nil
}
