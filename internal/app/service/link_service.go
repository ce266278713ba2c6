package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sifan077/PowerImage/internal/app/marker"
	"github.com/sifan077/PowerImage/internal/app/model"
	"github.com/sifan077/PowerImage/internal/app/repository"
	"github.com/sifan077/PowerImage/internal/infra/prometheus"
	"go.uber.org/zap"
)

// LinkRouteName is the route whose URL embeds a link alias.
const LinkRouteName = "image-link"

// ErrExpiresInOutOfRange rejects expiry requests outside [MinExpiresIn, MaxExpiresIn].
var ErrExpiresInOutOfRange = errors.New("expires_in must be between 30 and 30000 seconds")

// URLReverser builds absolute URLs for named routes.
type URLReverser interface {
	URL(name string, params map[string]string) (string, error)
}

// LinkService defines behaviour-level operations on expiring links.
type LinkService interface {
	CreateLink(ctx context.Context, input CreateLinkInput) (*CreatedLink, error)
}

// CreateLinkInput captures data required to create a link. The caller has
// already checked that the requesting user may generate links.
type CreateLinkInput struct {
	ImageID   string
	ExpiresIn int
}

// CreatedLink is a persisted link and its public URL.
type CreatedLink struct {
	Link *model.ExpiringLink
	URL  string
	// MarkerWritten is false when the link was stored but will read as expired.
	MarkerWritten bool
}

// LinkDeps groups dependencies required by the link service.
type LinkDeps struct {
	Logger  *zap.Logger
	Links   repository.LinkRepository
	Images  repository.ImageRepository
	Markers marker.Store
	URLs    URLReverser
	// NewAlias overrides alias generation, for tests.
	NewAlias func() string
}

type linkService struct {
	logger   *zap.Logger
	links    repository.LinkRepository
	images   repository.ImageRepository
	markers  marker.Store
	urls     URLReverser
	newAlias func() string
}

// NewLinkService returns a service implementation backed by the given dependencies.
func NewLinkService(deps LinkDeps) LinkService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	newAlias := deps.NewAlias
	if newAlias == nil {
		newAlias = uuid.NewString
	}
	return &linkService{
		logger:   logger,
		links:    deps.Links,
		images:   deps.Images,
		markers:  deps.Markers,
		urls:     deps.URLs,
		newAlias: newAlias,
	}
}

// ValidateExpiresIn checks the expiry bounds in seconds.
func ValidateExpiresIn(seconds int) error {
	if seconds < model.MinExpiresIn || seconds > model.MaxExpiresIn {
		return ErrExpiresInOutOfRange
	}
	return nil
}

// CreateLink persists a link and then writes its validity marker. A failed
// marker write leaves a link that reads as expired; it is logged, not returned.
func (s *linkService) CreateLink(ctx context.Context, input CreateLinkInput) (*CreatedLink, error) {
	if err := ValidateExpiresIn(input.ExpiresIn); err != nil {
		return nil, err
	}

	if _, err := s.images.GetByID(ctx, input.ImageID); err != nil {
		return nil, fmt.Errorf("load image: %w", err)
	}

	link := &model.ExpiringLink{
		Alias:     s.newAlias(),
		ImageID:   input.ImageID,
		ExpiresIn: input.ExpiresIn,
	}

	url, err := s.urls.URL(LinkRouteName, map[string]string{"alias": link.Alias})
	if err != nil {
		return nil, fmt.Errorf("reverse link url: %w", err)
	}

	if err := s.links.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("create link: %w", err)
	}
	prometheus.LinksCreated.Inc()

	created := &CreatedLink{Link: link, URL: url, MarkerWritten: true}
	if err := s.markers.Set(ctx, link.Alias, model.MarkerValid, link.TTL()); err != nil {
		created.MarkerWritten = false
		prometheus.MarkerSoftFailures.Inc()
		s.logger.Warn("link stored without validity marker; it will read as expired",
			zap.String("alias", link.Alias),
			zap.String("image_id", link.ImageID),
			zap.Int("expires_in", link.ExpiresIn),
			zap.Error(err),
		)
	}

	return created, nil
}
