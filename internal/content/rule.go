// Package content applies declarative update rules to a private copy of a
// page template, producing the finished document for one taxonomy entity.
package content

import (
	"fmt"

	"github.com/kingrea/sectorpages/internal/document"
)

// SourceKind enumerates where a rule's value comes from.
type SourceKind int

const (
	// SourceLiteral uses a value computed before the rule was built.
	SourceLiteral SourceKind = iota
	// SourceFile reads a mandatory text file from the entity's content directory.
	SourceFile
	// SourceAsset resolves a best-effort image through the asset collaborator.
	SourceAsset
)

func (k SourceKind) String() string {
	switch k {
	case SourceLiteral:
		return "literal"
	case SourceFile:
		return "file"
	case SourceAsset:
		return "asset"
	}
	return fmt.Sprintf("source(%d)", int(k))
}

// AssetRef names a local image, the optimized file name to publish it under
// and the width to resize it to.
type AssetRef struct {
	LocalPath  string
	TargetName string
	Width      int
}

// Asset is a resolved remote image.
type Asset struct {
	ID  string
	URL string
}

// Source is the value half of an update rule.
type Source struct {
	Kind  SourceKind
	Value any
	File  string
	Asset AssetRef
}

// Literal wraps a ready value.
func Literal(value any) Source {
	return Source{Kind: SourceLiteral, Value: value}
}

// FileContent reads path relative to the entity content directory.
func FileContent(path string) Source {
	return Source{Kind: SourceFile, File: path}
}

// AssetSource resolves localPath (relative to the entity content directory).
func AssetSource(localPath, targetName string, width int) Source {
	return Source{Kind: SourceAsset, Asset: AssetRef{LocalPath: localPath, TargetName: targetName, Width: width}}
}

// UpdateRule pairs a selector with a value source.
type UpdateRule struct {
	Path          document.Selector
	Source        Source
	AllowMultiple bool
}

// ImageDescriptor is the structured value written for a resolved asset.
func ImageDescriptor(asset Asset) any {
	return map[string]any{
		"url":    asset.URL,
		"id":     asset.ID,
		"size":   "",
		"alt":    "",
		"source": "library",
	}
}
