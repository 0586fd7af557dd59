// Package media turns local images into media library attachments: it finds
// the source file, produces a resized copy, and looks the copy up remotely,
// uploading it when the library does not have it yet.
package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kingrea/sectorpages/internal/content"
	"github.com/kingrea/sectorpages/internal/wpcli"
)

// ErrSourceMissing means neither the image nor its .jpg/.png alternate exists.
var ErrSourceMissing = errors.New("media: source image not found")

// ErrNotInLibrary means the image could not be found even after an upload.
var ErrNotInLibrary = errors.New("media: image not in media library")

// Library is the remote media store.
type Library interface {
	FindMedia(ctx context.Context, name string) (wpcli.Media, bool, error)
	ImportMedia(ctx context.Context, localPath, name string) (string, error)
}

// Converter writes a resized copy of src to dst.
type Converter interface {
	Convert(ctx context.Context, src, dst string, width int) error
}

// ImageMagick converts with the convert binary.
type ImageMagick struct {
	Binary  string
	Quality int
}

// Convert implements Converter.
func (m ImageMagick) Convert(ctx context.Context, src, dst string, width int) error {
	binary := m.Binary
	if binary == "" {
		binary = "convert"
	}
	quality := m.Quality
	if quality <= 0 {
		quality = 90
	}
	cmd := exec.CommandContext(ctx, binary, src, "-resize", strconv.Itoa(width)+"x", "-quality", strconv.Itoa(quality), dst)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("media: %s %s: %w: %s", binary, filepath.Base(src), err, strings.TrimSpace(out.String()))
	}
	return nil
}

// Resolver implements content.AssetResolver. Concurrent requests for the same
// target name share one resolution.
type Resolver struct {
	library    Library
	converter  Converter
	cache      *Cache
	uploadsURL string
	logger     *zap.Logger
	group      singleflight.Group
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithCache enables the local resolution cache.
func WithCache(cache *Cache) Option {
	return func(r *Resolver) {
		r.cache = cache
	}
}

// WithConverter replaces the ImageMagick converter.
func WithConverter(converter Converter) Option {
	return func(r *Resolver) {
		if converter != nil {
			r.converter = converter
		}
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver builds a resolver publishing URLs below siteURL/wp-content/uploads.
func NewResolver(library Library, siteURL string, opts ...Option) *Resolver {
	r := &Resolver{
		library:    library,
		converter:  ImageMagick{},
		uploadsURL: strings.TrimRight(siteURL, "/") + "/wp-content/uploads/",
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveAsset implements content.AssetResolver.
func (r *Resolver) ResolveAsset(ctx context.Context, ref content.AssetRef) (content.Asset, error) {
	if ref.TargetName == "" {
		return content.Asset{}, fmt.Errorf("media: target name is required")
	}
	v, err, _ := r.group.Do(ref.TargetName, func() (any, error) {
		return r.resolve(ctx, ref)
	})
	if err != nil {
		return content.Asset{}, err
	}
	return v.(content.Asset), nil
}

func (r *Resolver) resolve(ctx context.Context, ref content.AssetRef) (content.Asset, error) {
	src, err := SourcePath(ref.LocalPath)
	if err != nil {
		return content.Asset{}, err
	}
	optimized := filepath.Join(filepath.Dir(src), ref.TargetName)
	if err := r.ensureOptimized(ctx, src, optimized, ref.Width); err != nil {
		return content.Asset{}, err
	}
	if r.cache != nil {
		if asset, ok, err := r.cache.Get(ctx, ref.TargetName); err != nil {
			r.logger.Warn("media cache read failed", zap.String("asset", ref.TargetName), zap.Error(err))
		} else if ok && strings.HasPrefix(asset.URL, r.uploadsURL) {
			return asset, nil
		} else if ok {
			// Cached for another site URL.
			if err := r.cache.Forget(ctx, ref.TargetName); err != nil {
				r.logger.Warn("media cache evict failed", zap.String("asset", ref.TargetName), zap.Error(err))
			}
		}
	}
	found, ok, err := r.library.FindMedia(ctx, ref.TargetName)
	if err != nil {
		return content.Asset{}, err
	}
	if !ok {
		r.logger.Info("uploading image", zap.String("asset", ref.TargetName))
		if _, err := r.library.ImportMedia(ctx, optimized, ref.TargetName); err != nil {
			return content.Asset{}, err
		}
		found, ok, err = r.library.FindMedia(ctx, ref.TargetName)
		if err != nil {
			return content.Asset{}, err
		}
		if !ok {
			return content.Asset{}, fmt.Errorf("%w: %s", ErrNotInLibrary, ref.TargetName)
		}
	}
	asset := content.Asset{ID: found.ID, URL: r.uploadsURL + strings.TrimLeft(found.Path, "/")}
	if r.cache != nil {
		if err := r.cache.Put(ctx, ref.TargetName, asset); err != nil {
			r.logger.Warn("media cache write failed", zap.String("asset", ref.TargetName), zap.Error(err))
		}
	}
	return asset, nil
}

func (r *Resolver) ensureOptimized(ctx context.Context, src, dst string, width int) error {
	if _, err := os.Stat(dst); err == nil {
		return nil
	}
	if width <= 0 {
		return fmt.Errorf("media: invalid width %d for %s", width, filepath.Base(dst))
	}
	r.logger.Info("optimizing image", zap.String("source", src), zap.String("target", filepath.Base(dst)), zap.Int("width", width))
	if err := r.converter.Convert(ctx, src, dst, width); err != nil {
		return err
	}
	if _, err := os.Stat(dst); err != nil {
		return fmt.Errorf("media: optimized image %s was not created: %w", filepath.Base(dst), err)
	}
	return nil
}

// SourcePath returns path, or its .jpg/.png alternate, whichever exists first.
func SourcePath(path string) (string, error) {
	candidates := []string{path}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg":
		candidates = append(candidates, strings.TrimSuffix(path, filepath.Ext(path))+".png")
	case ".png":
		candidates = append(candidates, strings.TrimSuffix(path, filepath.Ext(path))+".jpg")
	}
	for _, candidate := range candidates {
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSourceMissing, path)
}
