package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/sectorpages/internal/config"
	"github.com/kingrea/sectorpages/internal/content"
	"github.com/kingrea/sectorpages/internal/identity"
	"github.com/kingrea/sectorpages/internal/logbook"
	"github.com/kingrea/sectorpages/internal/logging"
	"github.com/kingrea/sectorpages/internal/media"
	"github.com/kingrea/sectorpages/internal/pipeline"
	"github.com/kingrea/sectorpages/internal/rules"
	"github.com/kingrea/sectorpages/internal/sections"
	"github.com/kingrea/sectorpages/internal/snapshot"
	"github.com/kingrea/sectorpages/internal/taxonomy"
	"github.com/kingrea/sectorpages/internal/wpcli"
)

// app carries what every command needs: config with flag overrides applied,
// the structured logger and the run journal.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	journal *logbook.Logbook
}

func newApp(cmd *cobra.Command) (*app, error) {
	dir, err := resolveProjectDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return nil, err
	}
	remote := &cfg.Project.Remote
	if hostFlag != "" {
		remote.Host = strings.TrimSpace(hostFlag)
	}
	if userFlag != "" {
		remote.User = strings.TrimSpace(userFlag)
	}
	if portFlag != 0 {
		if portFlag < 1 || portFlag > 65535 {
			return nil, fmt.Errorf("--port must be between 1 and 65535")
		}
		remote.Port = portFlag
	}
	// The progress view owns the terminal, so console logging stays off there.
	logger, err := logging.New(dir, logging.Options{Verbose: verbose, Console: verbose && !showProgress})
	if err != nil {
		return nil, err
	}
	journal, err := logbook.New(cfg.JournalPath())
	if err != nil {
		logger.Close()
		return nil, err
	}
	logger.Debug("command started", zap.String("command", cmd.Name()), zap.String("project", dir))
	return &app{cfg: cfg, logger: logger, journal: journal}, nil
}

func (a *app) Close() {
	_ = a.logger.Close()
}

func (a *app) layout() taxonomy.DirLayout {
	return taxonomy.DirLayout{Root: a.cfg.Project.Taxonomy.DataDir}
}

func (a *app) entities() ([]taxonomy.Entity, error) {
	return pipeline.PrepareTaxonomy(a.cfg.Project.Taxonomy.File)
}

// runOptions merges command flags over the configured run defaults.
func (a *app) runOptions() (pipeline.Options, error) {
	levels, err := a.cfg.Levels()
	if err != nil {
		return pipeline.Options{}, err
	}
	if levelFlag != "" {
		if levels, err = taxonomy.ParseLevels(levelFlag); err != nil {
			return pipeline.Options{}, err
		}
	}
	opts := pipeline.Options{
		Levels:      levels,
		MaxParallel: a.cfg.Project.Run.MaxParallel,
		Mode:        pipeline.ModeRemote,
		ParentSlug:  a.cfg.Project.Pages.ParentSlug,
	}
	if maxParallel > 0 {
		opts.MaxParallel = maxParallel
	}
	if syncJSON || a.cfg.Project.Run.SyncOnly {
		opts.Mode = pipeline.ModeSyncOnly
	}
	return opts, nil
}

func (a *app) client() (*wpcli.Client, error) {
	if err := a.cfg.ValidateRemote(); err != nil {
		return nil, err
	}
	remote := a.cfg.Project.Remote
	runner := wpcli.NewSSHRunner(
		wpcli.Target{Host: remote.Host, User: remote.User, Port: remote.Port},
		wpcli.WithRateLimit(remote.RatePerSecond),
		wpcli.WithRunnerLogger(a.logger.Logger),
	)
	opts := []wpcli.ClientOption{wpcli.WithTablePrefix(remote.TablePrefix)}
	if len(remote.FlushCommands) > 0 {
		opts = append(opts, wpcli.WithFlushCommands(remote.FlushCommands))
	}
	return wpcli.NewClient(runner, remote.WPPath, opts...), nil
}

// session is one wired pipeline plus the resources it holds open.
type session struct {
	pipeline *pipeline.Pipeline
	cache    *media.Cache
}

func (s *session) Close() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
}

// openSession wires every collaborator for a run over entities. The user
// directory is fetched once here and the identity lookup is shared by all
// workers.
func (a *app) openSession(ctx context.Context, entities []taxonomy.Entity, extra ...pipeline.Option) (*session, error) {
	client, err := a.client()
	if err != nil {
		return nil, err
	}
	log := a.logger.Logger
	s := &session{}
	resolverOpts := []media.Option{
		media.WithConverter(media.ImageMagick{Binary: a.cfg.Project.Media.ConvertBinary}),
		media.WithLogger(log),
	}
	if path := a.cfg.Project.Media.Cache; path != "" {
		cache, err := media.OpenCache(path)
		if err != nil {
			return nil, err
		}
		s.cache = cache
		resolverOpts = append(resolverOpts, media.WithCache(cache))
	}
	resolver := media.NewResolver(client, a.cfg.SiteURL(), resolverOpts...)

	pages, err := rules.LoadDir(a.cfg.Project.Pages.DefinitionsDir)
	if err != nil {
		s.Close()
		return nil, err
	}
	catalog, err := sections.LoadCatalog(a.cfg.Project.Services.Catalog)
	if err != nil {
		s.Close()
		return nil, err
	}
	users, err := client.Users(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	lookup := identity.BuildLookup(users, expertNames(entities))
	if missing := lookup.Missing(); len(missing) > 0 {
		log.Warn("experts missing from user directory", zap.Strings("experts", missing))
	}

	layout := a.layout()
	links := sections.Links{SiteURL: a.cfg.SiteURL(), ParentSlug: a.cfg.Project.Pages.ParentSlug}
	generators := rules.Generators{
		rules.GenSubsectorTabs: sections.NewTabs(entities, layout, resolver, links, log),
		rules.GenServices:      sections.NewServices(catalog, a.cfg.Project.Services.Dir, resolver, log),
		rules.GenExpertsWidget: sections.NewExperts(lookup, log),
	}
	orchestrator := content.New(layout, content.WithAssets(resolver), content.WithLogger(log))
	opts := append([]pipeline.Option{
		pipeline.WithLogger(log),
		pipeline.WithJournal(a.journal),
		pipeline.WithRepository(pipeline.NewRepository(a.cfg.StateDir())),
		pipeline.WithLookup(lookup),
	}, extra...)
	s.pipeline = pipeline.New(client, pages, orchestrator, generators, snapshot.NewStore(layout), opts...)
	return s, nil
}
