// internal/config/config.go
//
// This package handles configuration and the .sectorpages directory structure.
// Every content project gets a .sectorpages/ folder created in its root.

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/kingrea/sectorpages/internal/taxonomy"
)

const (
	// ProjectDirName is the name of the directory we create in each project.
	ProjectDirName = ".sectorpages"

	// Environment overrides, read from the process or the project's .env.
	EnvHost = "SECTORPAGES_HOST"
	EnvUser = "SECTORPAGES_USER"
	EnvPort = "SECTORPAGES_PORT"
)

const defaultProjectConfigYAML = `# sectorpages project configuration
version: 1

# Remote WordPress host reached over ssh. SECTORPAGES_HOST, SECTORPAGES_USER
# and SECTORPAGES_PORT (environment or .env) override these values.
remote:
  host: ""
  user: ubuntu
  port: 22
  wp_path: /home/ubuntu/wordpress
  # Defaults to https://<host>.
  site_url: ""
  # Remote commands per second; 0 disables throttling.
  rate_per_second: 2
  table_prefix: wp_
  # Commands run after pages are updated; empty uses the built-in
  # Elementor CSS and W3 Total Cache flush.
  flush_commands: []

taxonomy:
  file: sector-pages.csv
  data_dir: sector-data

pages:
  # One YAML definition per level; built-in definitions are used when empty.
  definitions_dir: .sectorpages/pages
  parent_slug: industries

services:
  catalog: .sectorpages/services.yaml
  dir: sector-data/services

run:
  levels: [L1, L2, L3]
  max_parallel: 1
  sync_only: false

media:
  cache: .sectorpages/state/media.db
  convert_binary: convert
`

// RemoteConfig describes the ssh target and WordPress install.
type RemoteConfig struct {
	Host          string   `yaml:"host"`
	User          string   `yaml:"user" validate:"required"`
	Port          int      `yaml:"port" validate:"gte=1,lte=65535"`
	WPPath        string   `yaml:"wp_path" validate:"required"`
	SiteURL       string   `yaml:"site_url,omitempty" validate:"omitempty,url"`
	RatePerSecond float64  `yaml:"rate_per_second" validate:"gte=0"`
	TablePrefix   string   `yaml:"table_prefix" validate:"required"`
	FlushCommands []string `yaml:"flush_commands,omitempty" validate:"dive,required"`
}

// TaxonomyConfig locates the taxonomy CSV and the content tree.
type TaxonomyConfig struct {
	File    string `yaml:"file" validate:"required"`
	DataDir string `yaml:"data_dir" validate:"required"`
}

// PagesConfig locates page definitions.
type PagesConfig struct {
	DefinitionsDir string `yaml:"definitions_dir"`
	ParentSlug     string `yaml:"parent_slug" validate:"required"`
}

// ServicesConfig locates the service catalog and its content.
type ServicesConfig struct {
	Catalog string `yaml:"catalog"`
	Dir     string `yaml:"dir" validate:"required"`
}

// RunConfig captures run defaults.
type RunConfig struct {
	Levels      []string `yaml:"levels" validate:"min=1,dive,oneof=L1 L2 L3"`
	MaxParallel int      `yaml:"max_parallel" validate:"gte=1"`
	SyncOnly    bool     `yaml:"sync_only"`
}

// MediaConfig tunes asset resolution.
type MediaConfig struct {
	Cache         string `yaml:"cache"`
	ConvertBinary string `yaml:"convert_binary" validate:"required"`
}

// ProjectConfig models .sectorpages/config.yaml.
type ProjectConfig struct {
	Version  int            `yaml:"version" validate:"gte=1"`
	Remote   RemoteConfig   `yaml:"remote"`
	Taxonomy TaxonomyConfig `yaml:"taxonomy"`
	Pages    PagesConfig    `yaml:"pages"`
	Services ServicesConfig `yaml:"services"`
	Run      RunConfig      `yaml:"run"`
	Media    MediaConfig    `yaml:"media"`
}

// Config holds the runtime configuration.
type Config struct {
	// ProjectDir is the directory where the user ran sectorpages from.
	ProjectDir string

	// StateRoot is ProjectDir/.sectorpages.
	StateRoot string

	Project ProjectConfig
}

var validate = validator.New()

// InitProjectDir creates the .sectorpages directory structure and a commented
// config file when none exists. It reports whether the config was written.
//
// Structure created:
// .sectorpages/
// ├── logs/    <- structured log and run journal
// ├── state/   <- last run report and media cache
// └── pages/   <- page definitions written by init
func InitProjectDir(projectDir string) (bool, error) {
	root := filepath.Join(projectDir, ProjectDirName)
	for _, dir := range []string{
		filepath.Join(root, "logs"),
		filepath.Join(root, "state"),
		filepath.Join(root, "pages"),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, err
		}
	}
	return ensureProjectConfig(filepath.Join(root, "config.yaml"))
}

// NewConfig loads the project config, then applies environment overrides.
// A missing config file yields defaults.
func NewConfig(projectDir string) (*Config, error) {
	cfg := &Config{
		ProjectDir: projectDir,
		StateRoot:  filepath.Join(projectDir, ProjectDirName),
		Project:    defaultProjectConfig(),
	}
	if err := cfg.loadProjectConfig(); err != nil {
		return nil, err
	}
	env, err := loadEnv(projectDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	if err := cfg.Project.validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// LogsDir returns the path to the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.StateRoot, "logs")
}

// StateDir returns the path to the state directory.
func (c *Config) StateDir() string {
	return filepath.Join(c.StateRoot, "state")
}

// JournalPath returns the run journal location.
func (c *Config) JournalPath() string {
	return filepath.Join(c.LogsDir(), "journal.log")
}

// ProjectConfigPath returns the on-disk location for the project config file.
func (c *Config) ProjectConfigPath() string {
	return filepath.Join(c.StateRoot, "config.yaml")
}

// Levels returns the configured run levels.
func (c *Config) Levels() ([]taxonomy.Level, error) {
	return taxonomy.ParseLevels(strings.Join(c.Project.Run.Levels, ","))
}

// SiteURL returns the public site base without a trailing slash.
func (c *Config) SiteURL() string {
	if c.Project.Remote.SiteURL != "" {
		return strings.TrimRight(c.Project.Remote.SiteURL, "/")
	}
	if c.Project.Remote.Host == "" {
		return ""
	}
	return "https://" + c.Project.Remote.Host
}

// ValidateRemote checks the fields needed to reach the remote host.
func (c *Config) ValidateRemote() error {
	if strings.TrimSpace(c.Project.Remote.Host) == "" {
		return fmt.Errorf("config: remote.host is required (set it in %s or %s)", c.ProjectConfigPath(), EnvHost)
	}
	return nil
}

func (c *Config) loadProjectConfig() error {
	path := c.ProjectConfigPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			c.Project.normalize(c.ProjectDir)
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	parsed := defaultProjectConfig()
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	parsed.applyDefaults()
	parsed.normalize(c.ProjectDir)
	if err := parsed.validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	c.Project = parsed
	return nil
}

// loadEnv merges the project's .env under the process environment.
func loadEnv(projectDir string) (map[string]string, error) {
	values := map[string]string{}
	path := filepath.Join(projectDir, ".env")
	if _, err := os.Stat(path); err == nil {
		parsed, err := godotenv.Read(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		values = parsed
	}
	for _, key := range []string{EnvHost, EnvUser, EnvPort} {
		if value, ok := os.LookupEnv(key); ok {
			values[key] = value
		}
	}
	return values, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	if host := strings.TrimSpace(env[EnvHost]); host != "" {
		c.Project.Remote.Host = host
	}
	if user := strings.TrimSpace(env[EnvUser]); user != "" {
		c.Project.Remote.User = user
	}
	if raw := strings.TrimSpace(env[EnvPort]); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("config: %s: %w", EnvPort, err)
		}
		c.Project.Remote.Port = port
	}
	return nil
}

func defaultProjectConfig() ProjectConfig {
	return ProjectConfig{
		Version: 1,
		Remote: RemoteConfig{
			User:          "ubuntu",
			Port:          22,
			WPPath:        "/home/ubuntu/wordpress",
			RatePerSecond: 2,
			TablePrefix:   "wp_",
		},
		Taxonomy: TaxonomyConfig{
			File:    "sector-pages.csv",
			DataDir: "sector-data",
		},
		Pages: PagesConfig{
			DefinitionsDir: filepath.Join(ProjectDirName, "pages"),
			ParentSlug:     "industries",
		},
		Services: ServicesConfig{
			Catalog: filepath.Join(ProjectDirName, "services.yaml"),
			Dir:     filepath.Join("sector-data", "services"),
		},
		Run: RunConfig{
			Levels:      []string{"L1", "L2", "L3"},
			MaxParallel: 1,
		},
		Media: MediaConfig{
			Cache:         filepath.Join(ProjectDirName, "state", "media.db"),
			ConvertBinary: "convert",
		},
	}
}

func (pc *ProjectConfig) applyDefaults() {
	defaults := defaultProjectConfig()
	if pc.Version == 0 {
		pc.Version = defaults.Version
	}
	if pc.Remote.Port == 0 {
		pc.Remote.Port = defaults.Remote.Port
	}
	if strings.TrimSpace(pc.Remote.TablePrefix) == "" {
		pc.Remote.TablePrefix = defaults.Remote.TablePrefix
	}
	if strings.TrimSpace(pc.Pages.ParentSlug) == "" {
		pc.Pages.ParentSlug = defaults.Pages.ParentSlug
	}
	if len(pc.Run.Levels) == 0 {
		pc.Run.Levels = defaults.Run.Levels
	}
	if pc.Run.MaxParallel == 0 {
		pc.Run.MaxParallel = defaults.Run.MaxParallel
	}
	if strings.TrimSpace(pc.Media.ConvertBinary) == "" {
		pc.Media.ConvertBinary = defaults.Media.ConvertBinary
	}
}

func (pc *ProjectConfig) normalize(base string) {
	pc.Remote.Host = strings.TrimSpace(pc.Remote.Host)
	pc.Remote.User = strings.TrimSpace(pc.Remote.User)
	pc.Remote.WPPath = strings.TrimSpace(pc.Remote.WPPath)
	pc.Remote.SiteURL = strings.TrimRight(strings.TrimSpace(pc.Remote.SiteURL), "/")
	pc.Remote.TablePrefix = strings.TrimSpace(pc.Remote.TablePrefix)
	for i, command := range pc.Remote.FlushCommands {
		pc.Remote.FlushCommands[i] = strings.TrimSpace(command)
	}
	pc.Taxonomy.File = resolvePath(base, pc.Taxonomy.File)
	pc.Taxonomy.DataDir = resolvePath(base, pc.Taxonomy.DataDir)
	pc.Pages.DefinitionsDir = resolvePath(base, pc.Pages.DefinitionsDir)
	pc.Pages.ParentSlug = strings.Trim(strings.TrimSpace(pc.Pages.ParentSlug), "/")
	pc.Services.Catalog = resolvePath(base, pc.Services.Catalog)
	pc.Services.Dir = resolvePath(base, pc.Services.Dir)
	pc.Media.Cache = resolvePath(base, pc.Media.Cache)
	pc.Media.ConvertBinary = strings.TrimSpace(pc.Media.ConvertBinary)
	for i, level := range pc.Run.Levels {
		pc.Run.Levels[i] = strings.ToUpper(strings.TrimSpace(level))
	}
}

func (pc *ProjectConfig) validate() error {
	if err := validate.Struct(pc); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) && len(invalid) > 0 {
			first := invalid[0]
			return fmt.Errorf("%s failed %q validation", yamlPath(first.Namespace()), first.Tag())
		}
		return err
	}
	return nil
}

// yamlPath turns ProjectConfig.Run.MaxParallel into run.maxparallel style
// paths for error messages.
func yamlPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

func resolvePath(base, candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if filepath.IsAbs(trimmed) {
		return filepath.Clean(trimmed)
	}
	return filepath.Clean(filepath.Join(base, trimmed))
}

func ensureProjectConfig(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return false, err
	}
	if err := os.WriteFile(path, []byte(defaultProjectConfigYAML), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
