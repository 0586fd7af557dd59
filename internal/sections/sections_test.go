package sections

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingrea/sectorpages/internal/content"
	"github.com/kingrea/sectorpages/internal/identity"
	"github.com/kingrea/sectorpages/internal/taxonomy"
)

type fakeAssets struct {
	mu     sync.Mutex
	assets map[string]content.Asset
	refs   []content.AssetRef
}

func (f *fakeAssets) ResolveAsset(_ context.Context, ref content.AssetRef) (content.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, ref)
	if asset, ok := f.assets[ref.TargetName]; ok {
		return asset, nil
	}
	return content.Asset{}, errors.New("missing")
}

func writeFile(t *testing.T, path, data string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))
}

func sampleTaxonomy() []taxonomy.Entity {
	return []taxonomy.Entity{
		{Level: taxonomy.L1, Sector: "Consumer", Slug: "consumer"},
		{Level: taxonomy.L2, Sector: "Consumer", Subsector: "Retail & Leisure", Slug: "retail-leisure"},
		{Level: taxonomy.L2, Sector: "Consumer", Subsector: "TMT", Slug: "tmt"},
		{Level: taxonomy.L3, Sector: "Consumer", Subsector: "TMT", Category: "Gaming", Slug: "gaming"},
		{Level: taxonomy.L2, Sector: "Fintech", Subsector: "BFSI", Slug: "bfsi"},
	}
}

func TestTabsListsChildrenInTaxonomyOrder(t *testing.T) {
	root := t.TempDir()
	layout := taxonomy.DirLayout{Root: root}
	entities := sampleTaxonomy()
	writeFile(t, filepath.Join(root, "Consumer", "Retail & Leisure", TabDescriptionFile), " Stores and leisure \n")
	writeFile(t, filepath.Join(root, "Consumer", "TMT", TabDescriptionFile), "Media")
	assets := &fakeAssets{assets: map[string]content.Asset{
		"consumer-retail-and-leisure-tab-image-optimized.jpg": {ID: "11", URL: "https://site/wp-content/uploads/retail.jpg"},
	}}

	tabs := NewTabs(entities, layout, assets, Links{SiteURL: "https://site/", ParentSlug: "industries"}, nil)
	value, err := tabs.Generate(context.Background(), &entities[0])
	require.NoError(t, err)

	items := value.([]any)
	require.Len(t, items, 1, "TMT is dropped because its image is unavailable")
	item := items[0].(map[string]any)
	assert.Equal(t, "Retail & Leisure", item["name"])
	assert.Equal(t, "Stores and leisure", item["description"])
	assert.Equal(t, "https://site/industries/retail-leisure/", item["link"].(map[string]any)["url"])
	assert.Equal(t, map[string]any{"url": "https://site/wp-content/uploads/retail.jpg", "id": "11", "alt": "", "source": "library"}, item["image"])
	assert.True(t, strings.HasPrefix(item["questions"].(string), Questions[0]+"\n"))

	require.Len(t, assets.refs, 2)
	assert.Equal(t, filepath.Join(root, "Consumer", "TMT", TabImageFile), assets.refs[1].LocalPath)
	assert.Equal(t, TabImageWidth, assets.refs[1].Width)
}

func TestTabsRequireDescriptions(t *testing.T) {
	entities := sampleTaxonomy()
	tabs := NewTabs(entities, taxonomy.DirLayout{Root: t.TempDir()}, &fakeAssets{}, Links{}, nil)
	_, err := tabs.Generate(context.Background(), &entities[2])
	var srcErr *content.ContentSourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, TabDescriptionFile, srcErr.File)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestTabsRejectLeafLevel(t *testing.T) {
	entities := sampleTaxonomy()
	tabs := NewTabs(entities, taxonomy.DirLayout{Root: t.TempDir()}, nil, Links{}, nil)
	_, err := tabs.Generate(context.Background(), &entities[3])
	require.Error(t, err)
}

func TestCatalogServiceIDsFallBack(t *testing.T) {
	cat, err := DefaultCatalog()
	require.NoError(t, err)

	gaming := &taxonomy.Entity{Level: taxonomy.L3, Sector: "Consumer", Subsector: "TMT", Category: "Gaming"}
	assert.Equal(t, cat.Mapping["TMT"], cat.ServiceIDs(gaming))

	unknownSub := &taxonomy.Entity{Level: taxonomy.L2, Sector: "Fintech", Subsector: "Lending"}
	assert.Equal(t, cat.Mapping["Fintech"], cat.ServiceIDs(unknownSub))

	nothing := &taxonomy.Entity{Level: taxonomy.L1, Sector: "Space"}
	assert.Empty(t, cat.ServiceIDs(nothing))
}

func TestParseCatalogValidates(t *testing.T) {
	_, err := ParseCatalog([]byte("services:\n  - id: a\n"))
	require.Error(t, err, "name is required")

	_, err = ParseCatalog([]byte("services:\n  - {id: a, name: A}\n  - {id: a, name: B}\n"))
	require.ErrorContains(t, err, "duplicate service id a")
}

func TestServicesResolveCardsOnce(t *testing.T) {
	root := t.TempDir()
	cat, err := ParseCatalog([]byte(`
services:
  - {id: growth-strategy, name: Growth Strategy}
  - {id: new-market, name: New Market Entry}
mapping:
  Fintech: [growth-strategy, new-market, ghost]
`))
	require.NoError(t, err)
	writeFile(t, filepath.Join(root, "Growth Strategy", ServiceDescriptionFile), "Grow.\n")
	assets := &fakeAssets{assets: map[string]content.Asset{
		"service-widget-growth-strategy-optimized.jpg": {ID: "5", URL: "https://site/wp-content/uploads/g.jpg"},
	}}
	services := NewServices(cat, root, assets, nil)
	fintech := &taxonomy.Entity{Level: taxonomy.L1, Sector: "Fintech"}

	first, err := services.Generate(context.Background(), fintech)
	require.NoError(t, err)
	second, err := services.Generate(context.Background(), fintech)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, assets.refs, 2, "each service image is resolved once")

	items := first.([]any)
	require.Len(t, items, 2, "unknown ids are skipped")
	growth := items[0].(map[string]any)
	assert.Equal(t, "d8124growth-strategy", growth["_id"])
	assert.Equal(t, "Grow.", growth["description"])
	assert.Equal(t, "5", growth["image"].(map[string]any)["id"])
	market := items[1].(map[string]any)
	assert.Equal(t, "Placeholder content for New Market Entry.", market["description"])
	assert.Equal(t, "", market["image"].(map[string]any)["id"])
	assert.Equal(t, "", market["talk_to_us_link"].(map[string]any)["is_external"])
}

func TestServicesEnsureDirsReportsMissingDescriptions(t *testing.T) {
	root := t.TempDir()
	cat, err := DefaultCatalog()
	require.NoError(t, err)
	writeFile(t, filepath.Join(root, "Growth Strategy", ServiceDescriptionFile), "x")

	missing, err := NewServices(cat, root, nil, nil).EnsureDirs()
	require.NoError(t, err)
	assert.Len(t, missing, len(cat.Services)-1)
	assert.DirExists(t, filepath.Join(root, "Transaction Advisory"))
}

func TestWriteDefaultCatalogKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "services.yaml")
	wrote, err := WriteDefaultCatalog(path)
	require.NoError(t, err)
	assert.True(t, wrote)
	wrote, err = WriteDefaultCatalog(path)
	require.NoError(t, err)
	assert.False(t, wrote)

	cat, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Len(t, cat.Services, 12)
}

func TestExpertsWidgetOmitsUnresolvedNames(t *testing.T) {
	dir := identity.Directory{
		{ID: "3", Login: "asha", DisplayName: "Asha Rao"},
		{ID: "9", Login: "ravi", DisplayName: "Ravi Shah"},
	}
	lookup := identity.BuildLookup(dir, []string{"Ravi", "Ghost", "Asha"})
	entity := &taxonomy.Entity{Level: taxonomy.L2, Sector: "Fintech", Subsector: "BFSI", Attributes: taxonomy.NewAttributeSet("Ravi", "Ghost", "Asha")}

	value, err := NewExperts(lookup, nil).Generate(context.Background(), entity)
	require.NoError(t, err)
	assert.Equal(t, `[red_experts_widget user_ids="9,3"]`, value)
}

func TestExpertReportFlagsEmptyEntities(t *testing.T) {
	dir := identity.Directory{{ID: "3", Login: "asha", DisplayName: "Asha Rao"}}
	entities := []taxonomy.Entity{
		{Level: taxonomy.L1, Sector: "Fintech", Attributes: taxonomy.NewAttributeSet("Asha")},
		{Level: taxonomy.L2, Sector: "Fintech", Subsector: "BFSI", Attributes: taxonomy.NewAttributeSet("Ghost")},
	}
	lookup := identity.BuildLookup(dir, []string{"Asha", "Ghost"})

	lines := ExpertReport(entities, lookup)
	require.Len(t, lines, 2)
	assert.Equal(t, "L1:Fintech", lines[0].Entity)
	assert.Equal(t, []string{"3"}, lines[0].IDs)
	assert.False(t, lines[0].Empty())
	assert.True(t, lines[1].Empty())
	assert.Equal(t, []string{"Ghost"}, lines[1].Missing)
}
