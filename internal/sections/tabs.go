package sections

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/kingrea/sectorpages/internal/content"
	"github.com/kingrea/sectorpages/internal/taxonomy"
)

// TabImageWidth is the resize width for tab images.
const TabImageWidth = 800

// TabDescriptionFile and TabImageFile live in each child's content directory.
const (
	TabDescriptionFile = "tab-description.txt"
	TabImageFile       = "tabimage.jpg"
)

// Questions is the fixed prompt list shown on every tab.
var Questions = []string{
	"Accelerate my digital growth and market share",
	"Solve for Growing Customer Base and Existing Customers’ Retention Strategy",
	"Grow in new/existing cities and micro-markets",
	"Build a New Product Innovation Strategy",
	"Optimise Existing Product and Market Strategy",
	"Accelerate Key Account Management Strategy Playbook",
	"Unlock profitability at scale",
	"Evaluate new investment and M&amp;A opportunities",
	"Plan for IPO or Exit Strategy",
	"Others",
}

// Tabs lists the direct children of an L1 or L2 entity as tab items.
type Tabs struct {
	entities []taxonomy.Entity
	layout   content.Layout
	assets   content.AssetResolver
	links    Links
	logger   *zap.Logger
}

// Links builds public page URLs.
type Links struct {
	SiteURL    string
	ParentSlug string
}

// Page returns the public URL of the page with slug.
func (l Links) Page(pageSlug string) string {
	base := strings.TrimRight(l.SiteURL, "/")
	if l.ParentSlug != "" {
		base += "/" + strings.Trim(l.ParentSlug, "/")
	}
	return base + "/" + pageSlug + "/"
}

// NewTabs builds the tab generator over the resolved taxonomy.
func NewTabs(entities []taxonomy.Entity, layout content.Layout, assets content.AssetResolver, links Links, logger *zap.Logger) *Tabs {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tabs{entities: entities, layout: layout, assets: assets, links: links, logger: logger}
}

// Generate implements rules.Generator. A missing tab description fails the
// entity; an unavailable tab image drops only that tab.
func (t *Tabs) Generate(ctx context.Context, e *taxonomy.Entity) (any, error) {
	if e.Level != taxonomy.L1 && e.Level != taxonomy.L2 {
		return nil, fmt.Errorf("sections: tabs are not available for %s entity %s", e.Level, e)
	}
	items := []any{}
	for _, child := range taxonomy.Children(t.entities, e) {
		data, err := fs.ReadFile(t.layout.FS(child), TabDescriptionFile)
		if err != nil {
			return nil, &content.ContentSourceError{Entity: child.String(), File: TabDescriptionFile, Err: err}
		}
		ref := content.AssetRef{
			LocalPath:  t.layout.Path(child, TabImageFile),
			TargetName: fmt.Sprintf("%s-%s-tab-image-optimized.jpg", slug.Make(e.Name()), slug.Make(child.Name())),
			Width:      TabImageWidth,
		}
		asset, err := t.resolve(ctx, ref)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			t.logger.Warn("tab image unavailable, tab skipped",
				zap.Stringer("entity", e),
				zap.String("tab", child.Name()),
				zap.String("asset", ref.TargetName),
				zap.Error(err))
			continue
		}
		items = append(items, map[string]any{
			"name":        child.Name(),
			"_id":         "",
			"description": strings.TrimSpace(string(data)),
			"questions":   strings.Join(Questions, "\n"),
			"link":        linkValue(t.links.Page(child.Slug)),
			"image":       listImage(asset),
		})
	}
	return items, nil
}

func (t *Tabs) resolve(ctx context.Context, ref content.AssetRef) (content.Asset, error) {
	if t.assets == nil {
		return content.Asset{}, fmt.Errorf("sections: no asset resolver configured")
	}
	asset, err := t.assets.ResolveAsset(ctx, ref)
	if err != nil {
		return content.Asset{}, err
	}
	if asset.ID == "" {
		return content.Asset{}, fmt.Errorf("sections: asset %s resolved without an id", ref.TargetName)
	}
	return asset, nil
}

func linkValue(url string) map[string]any {
	return map[string]any{"url": url, "is_external": false, "nofollow": false, "custom_attributes": ""}
}

func listImage(asset content.Asset) map[string]any {
	return map[string]any{"url": asset.URL, "id": asset.ID, "alt": "", "source": "library"}
}
