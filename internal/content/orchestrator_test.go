package content

import (
	"context"
	"errors"
	"io/fs"
	"path"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kingrea/sectorpages/internal/document"
	"github.com/kingrea/sectorpages/internal/taxonomy"
)

type mapLayout struct {
	files fstest.MapFS
}

func (l mapLayout) FS(*taxonomy.Entity) fs.FS {
	return l.files
}

func (l mapLayout) Path(e *taxonomy.Entity, name string) string {
	return path.Join(e.RelDir(), name)
}

type stubAssets struct {
	assets map[string]Asset
	calls  []AssetRef
}

func (s *stubAssets) ResolveAsset(_ context.Context, ref AssetRef) (Asset, error) {
	s.calls = append(s.calls, ref)
	asset, ok := s.assets[ref.TargetName]
	if !ok {
		return Asset{}, errors.New("not found")
	}
	return asset, nil
}

const template = `[
  {"settings": {"background_image": {"url": "", "id": ""}},
   "elements": [{"elements": [
      {"settings": {"editor": "TITLE"}},
      {"settings": {"editor": "HEADING"}}
   ]}]}
]`

var retail = &taxonomy.Entity{Level: taxonomy.L2, Sector: "Consumer", Subsector: "Retail", Slug: "retail"}

func newTemplate(t *testing.T) *document.Document {
	t.Helper()
	doc, err := document.Parse([]byte(template))
	require.NoError(t, err)
	return doc
}

func rule(t *testing.T, sel string, src Source) UpdateRule {
	t.Helper()
	return UpdateRule{Path: document.MustParseSelector(sel), Source: src}
}

func valueAt(t *testing.T, doc *document.Document, sel string) any {
	t.Helper()
	locs := doc.Evaluate(document.MustParseSelector(sel))
	require.Len(t, locs, 1, sel)
	return locs[0].Value()
}

func TestApplyLiteralAndFileRules(t *testing.T) {
	layout := mapLayout{files: fstest.MapFS{"hero-heading.txt": {Data: []byte("\n  Retail that grows \n")}}}
	orch := New(layout)
	tmpl := newTemplate(t)

	doc, outcome, err := orch.Apply(context.Background(), retail, tmpl, []UpdateRule{
		rule(t, "$[0].elements[0].elements[0].settings.editor", Literal("<p>RETAIL</p>")),
		rule(t, "[0].elements.[0].elements.[1].settings.editor", FileContent("hero-heading.txt")),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Applied)
	assert.Equal(t, "<p>RETAIL</p>", valueAt(t, doc, "[0].elements[0].elements[0].settings.editor"))
	assert.Equal(t, "Retail that grows", valueAt(t, doc, "[0].elements[0].elements[1].settings.editor"))

	assert.Equal(t, "TITLE", valueAt(t, tmpl, "[0].elements[0].elements[0].settings.editor"), "template must stay untouched")
}

func TestApplyLastWriteWins(t *testing.T) {
	orch := New(mapLayout{})
	doc, _, err := orch.Apply(context.Background(), retail, newTemplate(t), []UpdateRule{
		rule(t, "[0].elements[0].elements[0].settings.editor", Literal("first")),
		rule(t, "[0].elements[0].elements[0].settings.editor", Literal("second")),
	})
	require.NoError(t, err)
	assert.Equal(t, "second", valueAt(t, doc, "[0].elements[0].elements[0].settings.editor"))
}

func TestApplyMissingFileAbortsWithoutDocument(t *testing.T) {
	assets := &stubAssets{}
	orch := New(mapLayout{files: fstest.MapFS{}}, WithAssets(assets))

	doc, _, err := orch.Apply(context.Background(), retail, newTemplate(t), []UpdateRule{
		rule(t, "[0].settings.background_image", AssetSource("hero.jpg", "retail-hero.jpg", 1440)),
		rule(t, "[0].elements[0].elements[1].settings.editor", FileContent("hero-heading.txt")),
	})
	require.Nil(t, doc)
	var srcErr *ContentSourceError
	require.ErrorAs(t, err, &srcErr)
	assert.Equal(t, "hero-heading.txt", srcErr.File)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestApplySkipsUnresolvedAssetOnly(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	assets := &stubAssets{assets: map[string]Asset{}}
	orch := New(mapLayout{}, WithAssets(assets), WithLogger(zap.New(core)))

	doc, outcome, err := orch.Apply(context.Background(), retail, newTemplate(t), []UpdateRule{
		rule(t, "[0].settings.background_image", AssetSource("hero.jpg", "retail-hero.jpg", 1440)),
		rule(t, "[0].elements[0].elements[0].settings.editor", Literal("after")),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Applied)
	require.Len(t, outcome.Skipped, 1)
	assert.Equal(t, "retail-hero.jpg", outcome.Skipped[0].Asset.TargetName)
	assert.Equal(t, map[string]any{"url": "", "id": ""}, valueAt(t, doc, "[0].settings.background_image"))
	assert.Equal(t, "after", valueAt(t, doc, "[0].elements[0].elements[0].settings.editor"))
	assert.Equal(t, 1, logs.FilterMessage("asset unavailable, rule skipped").Len())

	require.Len(t, assets.calls, 1)
	assert.Equal(t, "Consumer/Retail/hero.jpg", assets.calls[0].LocalPath, "local path is resolved against the entity directory")
	assert.Equal(t, 1440, assets.calls[0].Width)
}

func TestApplyFoldsResolvedAssetIntoDescriptor(t *testing.T) {
	assets := &stubAssets{assets: map[string]Asset{"retail-hero.jpg": {ID: "42", URL: "https://site/wp-content/uploads/2025/06/retail-hero.jpg"}}}
	orch := New(mapLayout{}, WithAssets(assets))

	doc, _, err := orch.Apply(context.Background(), retail, newTemplate(t), []UpdateRule{
		rule(t, "[0].settings.background_image", AssetSource("hero.jpg", "retail-hero.jpg", 1440)),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"url":    "https://site/wp-content/uploads/2025/06/retail-hero.jpg",
		"id":     "42",
		"size":   "",
		"alt":    "",
		"source": "library",
	}, valueAt(t, doc, "[0].settings.background_image"))
}

func TestApplyWithoutAssetResolverSkips(t *testing.T) {
	orch := New(mapLayout{})
	_, outcome, err := orch.Apply(context.Background(), retail, newTemplate(t), []UpdateRule{
		rule(t, "[0].settings.background_image", AssetSource("hero.jpg", "x.jpg", 10)),
	})
	require.NoError(t, err)
	require.Len(t, outcome.Skipped, 1)
}

func TestApplyPropagatesSelectorMismatch(t *testing.T) {
	orch := New(mapLayout{})
	doc, _, err := orch.Apply(context.Background(), retail, newTemplate(t), []UpdateRule{
		rule(t, "[0].elements[0].elements[0].settings.editor", Literal("ok")),
		rule(t, "[3].settings.title", Literal("nope")),
	})
	require.Nil(t, doc)
	var noMatch *document.NoMatchError
	require.ErrorAs(t, err, &noMatch)
	assert.Equal(t, "[3].settings.title", noMatch.Selector)
}

func TestApplyIsIdempotent(t *testing.T) {
	layout := mapLayout{files: fstest.MapFS{"hero-heading.txt": {Data: []byte("Heading")}}}
	assets := &stubAssets{assets: map[string]Asset{"retail-hero.jpg": {ID: "7", URL: "u"}}}
	orch := New(layout, WithAssets(assets))
	tmpl := newTemplate(t)
	rules := []UpdateRule{
		rule(t, "[0].settings.background_image", AssetSource("hero.jpg", "retail-hero.jpg", 1440)),
		rule(t, "[0].elements[0].elements[1].settings.editor", FileContent("hero-heading.txt")),
		rule(t, "[0].elements[0].elements[0].settings.editor", Literal([]any{map[string]any{"name": "Tab"}})),
	}

	first, _, err := orch.Apply(context.Background(), retail, tmpl, rules)
	require.NoError(t, err)
	second, _, err := orch.Apply(context.Background(), retail, tmpl, rules)
	require.NoError(t, err)

	a, err := first.Encode("    ")
	require.NoError(t, err)
	b, err := second.Encode("    ")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestApplyHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := New(mapLayout{}).Apply(ctx, retail, newTemplate(t), []UpdateRule{
		rule(t, "[0].elements[0].elements[0].settings.editor", Literal("x")),
	})
	require.ErrorIs(t, err, context.Canceled)
}
