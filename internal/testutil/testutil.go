// Package testutil provides in-memory repositories and helpers shared by
// service and handler tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/PowerImage/internal/app/model"
	"github.com/sifan077/PowerImage/internal/app/repository"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Images is an in-memory repository.ImageRepository that also owns links so
// deletes cascade.
type Images struct {
	mu     sync.Mutex
	images map[string]model.Image
	links  *Links
	clock  func() time.Time
}

// NewImages returns an empty image store cascading into links (may be nil).
func NewImages(links *Links) *Images {
	return &Images{images: map[string]model.Image{}, links: links, clock: time.Now}
}

func (r *Images) Create(_ context.Context, img *model.Image) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.images[img.ID]; ok {
		return errors.New("duplicate image id")
	}
	if img.UploadedAt.IsZero() {
		img.UploadedAt = r.clock()
	}
	r.images[img.ID] = *img
	return nil
}

func (r *Images) GetByID(_ context.Context, id string) (*model.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img, ok := r.images[id]
	if !ok {
		return nil, repository.ErrImageNotFound
	}
	return &img, nil
}

func (r *Images) ListByUser(_ context.Context, userID uint) ([]model.Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Image
	for _, img := range r.images {
		if img.UserID == userID {
			out = append(out, img)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (r *Images) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	_, ok := r.images[id]
	delete(r.images, id)
	r.mu.Unlock()
	if !ok {
		return repository.ErrImageNotFound
	}
	if r.links != nil {
		r.links.deleteByImage(id)
	}
	return nil
}

// Links is an in-memory repository.LinkRepository. GetByAlias attaches the
// image from the Images store it is bound to.
type Links struct {
	mu     sync.Mutex
	links  map[string]model.ExpiringLink
	images *Images
}

// NewLinkStores returns linked image and link stores.
func NewLinkStores() (*Images, *Links) {
	links := &Links{links: map[string]model.ExpiringLink{}}
	images := NewImages(links)
	links.images = images
	return images, links
}

func (r *Links) Create(_ context.Context, link *model.ExpiringLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.links[link.Alias]; ok {
		return errors.New("duplicate alias")
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}
	stored := *link
	stored.Image = nil
	r.links[link.Alias] = stored
	return nil
}

func (r *Links) GetByAlias(ctx context.Context, alias string) (*model.ExpiringLink, error) {
	r.mu.Lock()
	link, ok := r.links[alias]
	r.mu.Unlock()
	if !ok {
		return nil, repository.ErrLinkNotFound
	}
	if r.images != nil {
		if img, err := r.images.GetByID(ctx, link.ImageID); err == nil {
			link.Image = img
		}
	}
	return &link, nil
}

func (r *Links) ListByImage(_ context.Context, imageID string) ([]model.ExpiringLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.ExpiringLink
	for _, l := range r.links {
		if l.ImageID == imageID {
			out = append(out, l)
		}
	}
	return out, nil
}

// Len returns the number of stored links.
func (r *Links) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.links)
}

// Remove drops a link record without touching markers.
func (r *Links) Remove(alias string) {
	r.mu.Lock()
	delete(r.links, alias)
	r.mu.Unlock()
}

func (r *Links) deleteByImage(imageID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for alias, l := range r.links {
		if l.ImageID == imageID {
			delete(r.links, alias)
		}
	}
}

// Grants is an in-memory permission.Source keyed by user ID.
type Grants struct {
	mu     sync.Mutex
	direct map[uint][]string
	groups map[string][]string
	member map[uint][]string
}

// NewGrants returns an empty grant source.
func NewGrants() *Grants {
	return &Grants{direct: map[uint][]string{}, groups: map[string][]string{}, member: map[uint][]string{}}
}

// Grant adds direct grants.
func (g *Grants) Grant(userID uint, codenames ...string) {
	g.mu.Lock()
	g.direct[userID] = append(g.direct[userID], codenames...)
	g.mu.Unlock()
}

// Group defines a group and its grants.
func (g *Grants) Group(name string, codenames ...string) {
	g.mu.Lock()
	g.groups[name] = codenames
	g.mu.Unlock()
}

// Join adds a user to a group.
func (g *Grants) Join(userID uint, group string) {
	g.mu.Lock()
	g.member[userID] = append(g.member[userID], group)
	g.mu.Unlock()
}

func (g *Grants) DirectCodenames(_ context.Context, userID uint) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.direct[userID]...), nil
}

func (g *Grants) GroupCodenames(_ context.Context, userID uint) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, name := range g.member[userID] {
		out = append(out, g.groups[name]...)
	}
	return out, nil
}

// FailingMarkers is a marker.Store whose writes and reads fail.
type FailingMarkers struct {
	Err error
}

func (f FailingMarkers) Set(context.Context, string, string, time.Duration) error {
	return f.Err
}

func (f FailingMarkers) Get(context.Context, string) (string, bool, error) {
	return "", false, f.Err
}

// PNG returns an encoded w×h PNG.
func PNG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, fill(w, h)); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// JPEG returns an encoded w×h JPEG.
func JPEG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, fill(w, h), nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func fill(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 7), G: uint8(y * 13), B: 90, A: 255})
		}
	}
	return img
}

// MultipartImage writes a single-file multipart body into buf and returns its content type.
func MultipartImage(t testing.TB, buf *bytes.Buffer, field, filename string, data []byte) string {
	t.Helper()
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return w.FormDataContentType()
}
