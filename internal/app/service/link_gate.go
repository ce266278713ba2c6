package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/sifan077/PowerImage/internal/app/marker"
	"github.com/sifan077/PowerImage/internal/app/model"
	"github.com/sifan077/PowerImage/internal/app/repository"
	"github.com/sifan077/PowerImage/internal/infra/prometheus"
	"github.com/sifan077/PowerImage/internal/infra/storage"
	"go.uber.org/zap"
)

// LinkState is the outcome of a single link resolution.
type LinkState int

const (
	// StateUnknownAlias: the alias cannot belong to any link. Callers treat it like StateExpired.
	StateUnknownAlias LinkState = iota
	StateValid
	StateExpired
)

func (s LinkState) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateExpired:
		return "expired"
	default:
		return "unknown_alias"
	}
}

// ErrLinkInconsistent means a marker exists for an alias whose durable record
// or image is missing.
var ErrLinkInconsistent = errors.New("link marker present without durable record")

// Resolution carries the outcome of ResolutionGate.Resolve. Content is set
// only for StateValid and must be closed by the caller.
type Resolution struct {
	State       LinkState
	Link        *model.ExpiringLink
	Image       *model.Image
	Content     io.ReadCloser
	ContentType string
}

// GateDeps groups dependencies required by the resolution gate.
type GateDeps struct {
	Logger  *zap.Logger
	Markers marker.Store
	Links   repository.LinkRepository
	Files   storage.Storage
}

// ResolutionGate serves links whose marker is present. It never writes and
// never derives expiry from the durable record's timestamps.
type ResolutionGate struct {
	logger  *zap.Logger
	markers marker.Store
	links   repository.LinkRepository
	files   storage.Storage
}

// NewResolutionGate creates a gate with the provided dependencies.
func NewResolutionGate(deps GateDeps) *ResolutionGate {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResolutionGate{
		logger:  logger,
		markers: deps.Markers,
		links:   deps.Links,
		files:   deps.Files,
	}
}

// Resolve consults the marker for alias and, when present, opens the original.
func (g *ResolutionGate) Resolve(ctx context.Context, alias string) (*Resolution, error) {
	if _, err := uuid.Parse(alias); err != nil {
		return g.done(&Resolution{State: StateUnknownAlias}), nil
	}

	_, ok, err := g.markers.Get(ctx, alias)
	if err != nil {
		return nil, fmt.Errorf("read marker: %w", err)
	}
	if !ok {
		return g.done(&Resolution{State: StateExpired}), nil
	}

	link, err := g.links.GetByAlias(ctx, alias)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			g.logger.Error("valid marker without link record", zap.String("alias", alias))
			return nil, fmt.Errorf("%w: alias %s", ErrLinkInconsistent, alias)
		}
		return nil, fmt.Errorf("load link: %w", err)
	}
	if link.Image == nil {
		g.logger.Error("link record without image", zap.String("alias", alias), zap.String("image_id", link.ImageID))
		return nil, fmt.Errorf("%w: image %s", ErrLinkInconsistent, link.ImageID)
	}

	content, err := g.files.Open(ctx, link.Image.OriginalFile)
	if err != nil {
		return nil, fmt.Errorf("open original %s: %w", link.Image.OriginalFile, err)
	}

	return g.done(&Resolution{
		State:       StateValid,
		Link:        link,
		Image:       link.Image,
		Content:     content,
		ContentType: link.Image.ContentType(),
	}), nil
}

func (g *ResolutionGate) done(r *Resolution) *Resolution {
	prometheus.LinkResolutions.WithLabelValues(r.State.String()).Inc()
	return r
}
