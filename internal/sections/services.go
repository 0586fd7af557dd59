package sections

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/kingrea/sectorpages/internal/content"
	"github.com/kingrea/sectorpages/internal/taxonomy"
)

// ServiceImageWidth is the resize width for service card images.
const ServiceImageWidth = 400

// Service content files, relative to <root>/<service name>.
const (
	ServiceDescriptionFile = "description.txt"
	ServiceImageFile       = "image.jpg"
)

// serviceIDPrefix keeps generated element ids compatible with the ones the
// template already carries.
const serviceIDPrefix = "d8124"

type serviceCard struct {
	description string
	image       content.Asset
}

// Services renders the service cards mapped to an entity. Each service's
// description and image are resolved once and shared by all entities.
type Services struct {
	catalog Catalog
	root    string
	assets  content.AssetResolver
	logger  *zap.Logger

	once  sync.Once
	cards map[string]serviceCard
	err   error
}

// NewServices builds the generator. root holds one directory per service name.
func NewServices(catalog Catalog, root string, assets content.AssetResolver, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Services{catalog: catalog, root: root, assets: assets, logger: logger}
}

// Dir is the content directory of svc.
func (s *Services) Dir(svc Service) string {
	return filepath.Join(s.root, svc.Name)
}

// Prepare resolves every service card. Later calls return the first result.
func (s *Services) Prepare(ctx context.Context) error {
	s.once.Do(func() {
		s.cards, s.err = s.load(ctx)
	})
	return s.err
}

func (s *Services) load(ctx context.Context) (map[string]serviceCard, error) {
	cards := make(map[string]serviceCard, len(s.catalog.Services))
	for _, svc := range s.catalog.Services {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		card := serviceCard{description: fmt.Sprintf("Placeholder content for %s.", svc.Name)}
		data, err := os.ReadFile(filepath.Join(s.Dir(svc), ServiceDescriptionFile))
		switch {
		case err == nil:
			card.description = strings.TrimSpace(string(data))
		case errors.Is(err, fs.ErrNotExist):
			s.logger.Warn("service description missing, using placeholder", zap.String("service", svc.Name))
		default:
			return nil, &content.ContentSourceError{Entity: "service " + svc.ID, File: ServiceDescriptionFile, Err: err}
		}
		if s.assets != nil {
			ref := content.AssetRef{
				LocalPath:  filepath.Join(s.Dir(svc), ServiceImageFile),
				TargetName: fmt.Sprintf("service-widget-%s-optimized.jpg", slug.Make(svc.ID)),
				Width:      ServiceImageWidth,
			}
			asset, err := s.assets.ResolveAsset(ctx, ref)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				s.logger.Warn("service image unavailable", zap.String("service", svc.Name), zap.Error(err))
			} else {
				card.image = asset
			}
		}
		cards[svc.ID] = card
	}
	return cards, nil
}

// Generate implements rules.Generator.
func (s *Services) Generate(ctx context.Context, e *taxonomy.Entity) (any, error) {
	if err := s.Prepare(ctx); err != nil {
		return nil, err
	}
	items := []any{}
	for _, id := range s.catalog.ServiceIDs(e) {
		svc, ok := s.catalog.Service(id)
		if !ok {
			s.logger.Warn("unknown service in mapping", zap.Stringer("entity", e), zap.String("service", id))
			continue
		}
		card := s.cards[id]
		items = append(items, map[string]any{
			"name":            svc.Name,
			"_id":             serviceIDPrefix + svc.ID,
			"description":     card.description,
			"image":           listImage(card.image),
			"talk_to_us_link": emptyLink(),
			"case_study_link": emptyLink(),
		})
	}
	return items, nil
}

// EnsureDirs creates one content directory per service and returns the ones
// that are still missing a description.
func (s *Services) EnsureDirs() ([]string, error) {
	var missing []string
	for _, svc := range s.catalog.Services {
		dir := s.Dir(svc)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sections: create %s: %w", dir, err)
		}
		path := filepath.Join(dir, ServiceDescriptionFile)
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	return missing, nil
}

func emptyLink() map[string]any {
	return map[string]any{"url": "", "is_external": "", "nofollow": "", "custom_attributes": ""}
}
