package wpcli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/kingrea/sectorpages/internal/document"
	"github.com/kingrea/sectorpages/internal/identity"
)

// ElementorDataKey is the post meta key holding the page builder document.
const ElementorDataKey = "_elementor_data"

// DefaultFlushCommands clear the page builder CSS and the page cache.
var DefaultFlushCommands = []string{
	"wp elementor flush_css",
	"wp w3-total-cache flush all",
}

// Media is an attachment found in the media library. Path is relative to the
// uploads directory.
type Media struct {
	ID   string
	Path string
}

// Client issues wp-cli commands from the WordPress install directory.
type Client struct {
	runner      Runner
	wpPath      string
	tablePrefix string
	flush       []string
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithTablePrefix sets the database table prefix used for media lookups.
func WithTablePrefix(prefix string) ClientOption {
	return func(c *Client) {
		if prefix != "" {
			c.tablePrefix = prefix
		}
	}
}

// WithFlushCommands replaces the cache flush commands.
func WithFlushCommands(commands []string) ClientOption {
	return func(c *Client) {
		c.flush = append([]string(nil), commands...)
	}
}

// NewClient builds a client that runs wp-cli inside wpPath.
func NewClient(runner Runner, wpPath string, opts ...ClientOption) *Client {
	c := &Client{runner: runner, wpPath: wpPath, tablePrefix: "wp_", flush: DefaultFlushCommands}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WP runs one wp-cli command line from the install directory.
func (c *Client) WP(ctx context.Context, command string) (string, error) {
	if c.wpPath != "" {
		command = "cd " + Quote(c.wpPath) + " && " + command
	}
	return c.runner.Run(ctx, command)
}

type post struct {
	ID json.Number `json:"ID"`
}

// PageIDBySlug returns the id of the first page named slug.
func (c *Client) PageIDBySlug(ctx context.Context, slug string) (string, bool, error) {
	out, err := c.WP(ctx, "wp post list --post_type=page --format=json --fields=ID --name="+Quote(slug))
	if err != nil {
		return "", false, err
	}
	if strings.TrimSpace(out) == "" {
		return "", false, nil
	}
	var posts []post
	if err := json.Unmarshal([]byte(out), &posts); err != nil {
		return "", false, fmt.Errorf("wpcli: decode page list for %s: %w", slug, err)
	}
	if len(posts) == 0 {
		return "", false, nil
	}
	return posts[0].ID.String(), true, nil
}

// PageSpec describes a page cloned from a template page.
type PageSpec struct {
	Title    string
	Slug     string
	ParentID string
	FromID   string
}

// CreatePage creates a page copied from spec.FromID and returns its id.
func (c *Client) CreatePage(ctx context.Context, spec PageSpec) (string, error) {
	if spec.Slug == "" || spec.FromID == "" {
		return "", fmt.Errorf("wpcli: create page needs a slug and a template id")
	}
	parts := []string{
		"wp post create --porcelain --post_type=page",
		"--post_title=" + Quote(spec.Title),
		"--post_name=" + Quote(spec.Slug),
	}
	if spec.ParentID != "" {
		parts = append(parts, "--post_parent="+Quote(spec.ParentID))
	}
	parts = append(parts, "--from-post="+Quote(spec.FromID))
	out, err := c.WP(ctx, strings.Join(parts, " "))
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("wpcli: create page %s returned no id", spec.Slug)
	}
	return id, nil
}

// PageData fetches and parses a page's builder document.
func (c *Client) PageData(ctx context.Context, id string) (*document.Document, error) {
	out, err := c.WP(ctx, "wp post meta get "+Quote(id)+" "+ElementorDataKey)
	if err != nil {
		return nil, err
	}
	doc, err := document.Parse([]byte(out))
	if err != nil {
		return nil, fmt.Errorf("wpcli: page %s %s: %w", id, ElementorDataKey, err)
	}
	return doc, nil
}

// UpdatePageData stores doc as the page's builder document.
func (c *Client) UpdatePageData(ctx context.Context, id string, doc *document.Document) error {
	payload, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("wpcli: encode page %s: %w", id, err)
	}
	_, err = c.WP(ctx, "wp post meta update "+Quote(id)+" "+ElementorDataKey+" "+Quote(string(payload)))
	return err
}

// Users returns the CMS user directory.
func (c *Client) Users(ctx context.Context) (identity.Directory, error) {
	out, err := c.WP(ctx, "wp user list --format=json --fields=ID,user_login,display_name,user_email")
	if err != nil {
		return nil, err
	}
	return identity.ParseDirectory([]byte(out))
}

// FindMedia looks up an attachment whose stored file ends with name. The most
// recent match wins.
func (c *Client) FindMedia(ctx context.Context, name string) (Media, bool, error) {
	if name == "" || strings.ContainsAny(name, "'\\%/") {
		return Media{}, false, fmt.Errorf("wpcli: unsupported media name %q", name)
	}
	query := fmt.Sprintf("SELECT post_id, meta_value FROM %spostmeta WHERE meta_key='_wp_attached_file' AND meta_value LIKE '%%%s' ORDER BY meta_id",
		c.tablePrefix, strings.ReplaceAll(name, "_", `\_`))
	out, err := c.WP(ctx, "wp db query "+Quote(query)+" --skip-column-names")
	if err != nil {
		return Media{}, false, err
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	last := strings.Fields(lines[len(lines)-1])
	if len(last) < 2 {
		return Media{}, false, nil
	}
	return Media{ID: last[0], Path: last[1]}, true, nil
}

// ImportMedia uploads localPath to /tmp on the host and imports it into the
// media library. It returns the attachment id.
func (c *Client) ImportMedia(ctx context.Context, localPath, name string) (string, error) {
	remote := path.Join("/tmp", name)
	if err := c.runner.Put(ctx, localPath, remote); err != nil {
		return "", err
	}
	out, err := c.WP(ctx, "wp media import "+Quote(remote)+" --porcelain")
	if err != nil {
		return "", err
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return "", fmt.Errorf("wpcli: media import %s returned no id", name)
	}
	return id, nil
}

// FlushCaches runs every flush command and reports all failures.
func (c *Client) FlushCaches(ctx context.Context) error {
	var errs []error
	for _, command := range c.flush {
		if _, err := c.WP(ctx, command); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
