package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sifan077/PowerImage/internal/app/marker"
	"github.com/sifan077/PowerImage/internal/app/model"
	"github.com/sifan077/PowerImage/internal/app/repository"
	"github.com/sifan077/PowerImage/internal/http/util"
	"github.com/sifan077/PowerImage/internal/infra/storage"
	"github.com/sifan077/PowerImage/internal/testutil"
	"github.com/spf13/afero"
)

const testAlias = "3f1c8a52-3e0d-4a79-9c34-5b0e7c8f2d11"

type recordingMarkers struct {
	marker.Store
	sets []time.Duration
}

func (r *recordingMarkers) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	r.sets = append(r.sets, ttl)
	return r.Store.Set(ctx, key, value, ttl)
}

type linkFixture struct {
	images  *testutil.Images
	links   *testutil.Links
	markers *recordingMarkers
	clock   *testutil.Clock
	files   *storage.LocalStorage
	svc     LinkService
	gate    *ResolutionGate
}

func newLinkFixture(t *testing.T) *linkFixture {
	t.Helper()
	images, links := testutil.NewLinkStores()
	clock := testutil.NewClock()
	markers := &recordingMarkers{Store: marker.NewMemoryStore(nil, marker.WithClock(clock.Now))}
	files := storage.NewLocalStorageFs(afero.NewMemMapFs(), "http://localhost/media", nil)

	urls := util.NewReverser("http://localhost:8080")
	urls.Name(LinkRouteName, "/api/images/link/:alias/")

	svc := NewLinkService(LinkDeps{
		Links:    links,
		Images:   images,
		Markers:  markers,
		URLs:     urls,
		NewAlias: func() string { return testAlias },
	})
	gate := NewResolutionGate(GateDeps{Markers: markers, Links: links, Files: files})

	return &linkFixture{images: images, links: links, markers: markers, clock: clock, files: files, svc: svc, gate: gate}
}

func (f *linkFixture) addImage(t *testing.T, id string, content []byte) {
	t.Helper()
	key := "1/original/" + id + ".png"
	if err := f.files.Save(context.Background(), key, strings.NewReader(string(content)), "image/png"); err != nil {
		t.Fatalf("save original: %v", err)
	}
	if err := f.images.Create(context.Background(), &model.Image{ID: id, UserID: 1, OriginalFile: key}); err != nil {
		t.Fatalf("create image: %v", err)
	}
}

func TestLinkService_CreateLink(t *testing.T) {
	f := newLinkFixture(t)
	f.addImage(t, "img-1", []byte("png"))

	created, err := f.svc.CreateLink(context.Background(), CreateLinkInput{ImageID: "img-1", ExpiresIn: 300})
	if err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}
	if created.URL != "http://localhost:8080/api/images/link/"+testAlias+"/" {
		t.Fatalf("unexpected url %q", created.URL)
	}
	if !created.MarkerWritten {
		t.Fatal("expected marker to be written")
	}
	if len(f.markers.sets) != 1 || f.markers.sets[0] != 300*time.Second {
		t.Fatalf("expected one marker with 300s ttl, got %v", f.markers.sets)
	}
	if f.links.Len() != 1 {
		t.Fatalf("expected one stored link, got %d", f.links.Len())
	}
}

func TestLinkService_CreateLink_Bounds(t *testing.T) {
	cases := []struct {
		expiresIn int
		ok        bool
	}{
		{0, false},
		{29, false},
		{30, true},
		{30000, true},
		{30001, false},
	}

	for _, tc := range cases {
		f := newLinkFixture(t)
		f.addImage(t, "img-1", []byte("png"))

		_, err := f.svc.CreateLink(context.Background(), CreateLinkInput{ImageID: "img-1", ExpiresIn: tc.expiresIn})
		if tc.ok {
			if err != nil {
				t.Fatalf("expires_in=%d: unexpected error %v", tc.expiresIn, err)
			}
			continue
		}
		if !errors.Is(err, ErrExpiresInOutOfRange) {
			t.Fatalf("expires_in=%d: expected ErrExpiresInOutOfRange, got %v", tc.expiresIn, err)
		}
		if f.links.Len() != 0 || len(f.markers.sets) != 0 {
			t.Fatalf("expires_in=%d: rejected request left state behind", tc.expiresIn)
		}
	}
}

func TestLinkService_CreateLink_ImageNotFound(t *testing.T) {
	f := newLinkFixture(t)

	_, err := f.svc.CreateLink(context.Background(), CreateLinkInput{ImageID: "missing", ExpiresIn: 60})
	if !errors.Is(err, repository.ErrImageNotFound) {
		t.Fatalf("expected ErrImageNotFound, got %v", err)
	}
	if f.links.Len() != 0 || len(f.markers.sets) != 0 {
		t.Fatal("expected no link and no marker")
	}
}

func TestLinkService_CreateLink_MarkerFailureIsSoft(t *testing.T) {
	images, links := testutil.NewLinkStores()
	if err := images.Create(context.Background(), &model.Image{ID: "img-1", UserID: 1, OriginalFile: "1/original/a.png"}); err != nil {
		t.Fatalf("create image: %v", err)
	}
	urls := util.NewReverser("http://localhost")
	urls.Name(LinkRouteName, "/api/images/link/:alias/")
	markers := testutil.FailingMarkers{Err: errors.New("redis down")}

	svc := NewLinkService(LinkDeps{Links: links, Images: images, Markers: markers, URLs: urls})
	created, err := svc.CreateLink(context.Background(), CreateLinkInput{ImageID: "img-1", ExpiresIn: 60})
	if err != nil {
		t.Fatalf("expected marker failure to be swallowed, got %v", err)
	}
	if created.MarkerWritten {
		t.Fatal("expected MarkerWritten=false")
	}
	if links.Len() != 1 {
		t.Fatalf("expected the durable record to remain, got %d links", links.Len())
	}
}

func TestLinkService_CreateLink_UnknownRoute(t *testing.T) {
	images, links := testutil.NewLinkStores()
	_ = images.Create(context.Background(), &model.Image{ID: "img-1", UserID: 1, OriginalFile: "k.png"})

	svc := NewLinkService(LinkDeps{
		Links:   links,
		Images:  images,
		Markers: marker.NewMemoryStore(nil),
		URLs:    util.NewReverser("http://localhost"),
	})
	_, err := svc.CreateLink(context.Background(), CreateLinkInput{ImageID: "img-1", ExpiresIn: 60})
	if !errors.Is(err, util.ErrUnknownRoute) {
		t.Fatalf("expected ErrUnknownRoute, got %v", err)
	}
	if links.Len() != 0 {
		t.Fatal("expected no link stored when the url cannot be built")
	}
}

func TestLinkService_CreatedLinkResolvesUntilTTL(t *testing.T) {
	f := newLinkFixture(t)
	f.addImage(t, "img-1", []byte("original-bytes"))

	if _, err := f.svc.CreateLink(context.Background(), CreateLinkInput{ImageID: "img-1", ExpiresIn: 30}); err != nil {
		t.Fatalf("CreateLink returned error: %v", err)
	}

	res, err := f.gate.Resolve(context.Background(), testAlias)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.State != StateValid {
		t.Fatalf("expected valid, got %s", res.State)
	}
	body, _ := io.ReadAll(res.Content)
	_ = res.Content.Close()
	if string(body) != "original-bytes" {
		t.Fatalf("unexpected body %q", body)
	}

	f.clock.Advance(31 * time.Second)
	res, err = f.gate.Resolve(context.Background(), testAlias)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.State != StateExpired {
		t.Fatalf("expected expired after ttl, got %s", res.State)
	}
	if f.links.Len() != 1 {
		t.Fatal("expiry must not remove the durable record")
	}
}
