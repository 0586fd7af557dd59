package content

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"github.com/kingrea/sectorpages/internal/document"
	"github.com/kingrea/sectorpages/internal/taxonomy"
)

// AssetResolver turns a local image into a remote asset. Any error means the
// asset is unavailable; the rule that asked for it is skipped.
type AssetResolver interface {
	ResolveAsset(ctx context.Context, ref AssetRef) (Asset, error)
}

// Layout locates an entity's content directory.
type Layout interface {
	FS(e *taxonomy.Entity) fs.FS
	Path(e *taxonomy.Entity, name string) string
}

// ContentSourceError reports mandatory file content that could not be read.
type ContentSourceError struct {
	Entity string
	File   string
	Err    error
}

func (e *ContentSourceError) Error() string {
	return fmt.Sprintf("content: %s: read %s: %v", e.Entity, e.File, e.Err)
}

func (e *ContentSourceError) Unwrap() error {
	return e.Err
}

// SkippedRule records a best-effort rule that was not applied.
type SkippedRule struct {
	Path  string
	Asset AssetRef
	Err   error
}

// Outcome summarizes one Apply call.
type Outcome struct {
	Applied int
	Skipped []SkippedRule
}

// Orchestrator applies rule lists to template copies. It holds no per-call
// state and is safe for concurrent use.
type Orchestrator struct {
	layout Layout
	assets AssetResolver
	logger *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithAssets sets the asset collaborator.
func WithAssets(assets AssetResolver) Option {
	return func(o *Orchestrator) {
		o.assets = assets
	}
}

// WithLogger sets the logger used for skipped rules.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New builds an orchestrator reading content through layout.
func New(layout Layout, opts ...Option) *Orchestrator {
	o := &Orchestrator{layout: layout, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Apply patches a clone of template with rules in order and returns it.
// Template is never modified. Unreadable file content and selector mismatches
// abort the call with no document; unresolved assets skip only their rule.
func (o *Orchestrator) Apply(ctx context.Context, entity *taxonomy.Entity, template *document.Document, rules []UpdateRule) (*document.Document, Outcome, error) {
	var outcome Outcome
	if entity == nil || template == nil {
		return nil, outcome, fmt.Errorf("content: entity and template are required")
	}
	doc := template.Clone()
	log := o.logger.With(zap.Stringer("entity", entity))
	for i, rule := range rules {
		if err := ctx.Err(); err != nil {
			return nil, outcome, err
		}
		value, skipped, err := o.resolve(ctx, entity, rule)
		if err != nil {
			return nil, outcome, err
		}
		if skipped != nil {
			skip := SkippedRule{Path: rule.Path.String(), Asset: rule.Source.Asset, Err: skipped}
			outcome.Skipped = append(outcome.Skipped, skip)
			log.Warn("asset unavailable, rule skipped",
				zap.String("path", skip.Path),
				zap.String("asset", rule.Source.Asset.TargetName),
				zap.Error(skip.Err))
			continue
		}
		if err := doc.Patch(rule.Path, value, rule.AllowMultiple); err != nil {
			return nil, outcome, fmt.Errorf("content: %s rule %d (%s): %w", entity, i, rule.Path, err)
		}
		outcome.Applied++
	}
	return doc, outcome, nil
}

var errAssetUnavailable = errors.New("content: no asset resolver configured")

// resolve returns the rule value, or a non-nil skipped reason for a
// best-effort rule that cannot be applied.
func (o *Orchestrator) resolve(ctx context.Context, entity *taxonomy.Entity, rule UpdateRule) (value any, skipped, err error) {
	switch rule.Source.Kind {
	case SourceLiteral:
		return rule.Source.Value, nil, nil
	case SourceFile:
		data, readErr := fs.ReadFile(o.layout.FS(entity), rule.Source.File)
		if readErr != nil {
			return nil, nil, &ContentSourceError{Entity: entity.String(), File: rule.Source.File, Err: readErr}
		}
		return strings.TrimSpace(string(data)), nil, nil
	case SourceAsset:
		if o.assets == nil {
			return nil, errAssetUnavailable, nil
		}
		ref := rule.Source.Asset
		ref.LocalPath = o.layout.Path(entity, ref.LocalPath)
		asset, resolveErr := o.assets.ResolveAsset(ctx, ref)
		if resolveErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, nil, ctxErr
			}
			return nil, resolveErr, nil
		}
		if asset.ID == "" {
			return nil, fmt.Errorf("content: asset %s resolved without an id", ref.TargetName), nil
		}
		return ImageDescriptor(asset), nil, nil
	}
	return nil, nil, fmt.Errorf("content: unknown source kind %s", rule.Source.Kind)
}
