package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sifan077/PowerImage/internal/app/marker"
	"github.com/sifan077/PowerImage/internal/app/model"
	"github.com/sifan077/PowerImage/internal/infra/storage"
	"github.com/sifan077/PowerImage/internal/testutil"
	"github.com/spf13/afero"
)

func TestResolutionGate_UnknownAlias(t *testing.T) {
	_, links := testutil.NewLinkStores()
	gate := NewResolutionGate(GateDeps{
		Markers: testutil.FailingMarkers{Err: errors.New("must not be called")},
		Links:   links,
	})

	res, err := gate.Resolve(context.Background(), "not-a-uuid")
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.State != StateUnknownAlias {
		t.Fatalf("expected unknown alias, got %s", res.State)
	}
}

func TestResolutionGate_ExpiredWithRecordPresent(t *testing.T) {
	images, links := testutil.NewLinkStores()
	_ = images.Create(context.Background(), &model.Image{ID: "img-1", UserID: 1, OriginalFile: "a.png"})
	_ = links.Create(context.Background(), &model.ExpiringLink{Alias: testAlias, ImageID: "img-1", ExpiresIn: 30000})

	gate := NewResolutionGate(GateDeps{Markers: marker.NewMemoryStore(nil), Links: links})
	res, err := gate.Resolve(context.Background(), testAlias)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	if res.State != StateExpired {
		t.Fatalf("expected expired without marker, got %s", res.State)
	}
	if res.Content != nil {
		t.Fatal("expired resolution must not carry content")
	}
}

func TestResolutionGate_MarkerWithoutRecord(t *testing.T) {
	_, links := testutil.NewLinkStores()
	markers := marker.NewMemoryStore(nil)
	_ = markers.Set(context.Background(), testAlias, model.MarkerValid, time.Minute)

	gate := NewResolutionGate(GateDeps{Markers: markers, Links: links})
	_, err := gate.Resolve(context.Background(), testAlias)
	if !errors.Is(err, ErrLinkInconsistent) {
		t.Fatalf("expected ErrLinkInconsistent, got %v", err)
	}
}

func TestResolutionGate_MarkerAfterImageDeleted(t *testing.T) {
	images, links := testutil.NewLinkStores()
	_ = images.Create(context.Background(), &model.Image{ID: "img-1", UserID: 1, OriginalFile: "a.png"})
	_ = links.Create(context.Background(), &model.ExpiringLink{Alias: testAlias, ImageID: "img-1", ExpiresIn: 60})
	markers := marker.NewMemoryStore(nil)
	_ = markers.Set(context.Background(), testAlias, model.MarkerValid, time.Minute)

	if err := images.Delete(context.Background(), "img-1"); err != nil {
		t.Fatalf("delete image: %v", err)
	}

	gate := NewResolutionGate(GateDeps{Markers: markers, Links: links})
	_, err := gate.Resolve(context.Background(), testAlias)
	if !errors.Is(err, ErrLinkInconsistent) {
		t.Fatalf("expected ErrLinkInconsistent after cascade, got %v", err)
	}
}

func TestResolutionGate_MarkerReadError(t *testing.T) {
	_, links := testutil.NewLinkStores()
	gate := NewResolutionGate(GateDeps{Markers: testutil.FailingMarkers{Err: errors.New("boom")}, Links: links})

	if _, err := gate.Resolve(context.Background(), testAlias); err == nil {
		t.Fatal("expected marker read error to surface")
	}
}

func TestResolutionGate_MissingOriginal(t *testing.T) {
	images, links := testutil.NewLinkStores()
	_ = images.Create(context.Background(), &model.Image{ID: "img-1", UserID: 1, OriginalFile: "gone.jpg"})
	_ = links.Create(context.Background(), &model.ExpiringLink{Alias: testAlias, ImageID: "img-1", ExpiresIn: 60})
	markers := marker.NewMemoryStore(nil)
	_ = markers.Set(context.Background(), testAlias, model.MarkerValid, time.Minute)

	gate := NewResolutionGate(GateDeps{
		Markers: markers,
		Links:   links,
		Files:   storage.NewLocalStorageFs(afero.NewMemMapFs(), "http://localhost/media", nil),
	})
	_, err := gate.Resolve(context.Background(), testAlias)
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestLinkState_String(t *testing.T) {
	if StateValid.String() != "valid" || StateExpired.String() != "expired" || StateUnknownAlias.String() != "unknown_alias" {
		t.Fatal("unexpected state labels")
	}
}
