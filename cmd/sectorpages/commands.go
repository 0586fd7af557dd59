package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kingrea/sectorpages/internal/config"
	"github.com/kingrea/sectorpages/internal/identity"
	"github.com/kingrea/sectorpages/internal/logbook"
	"github.com/kingrea/sectorpages/internal/media"
	"github.com/kingrea/sectorpages/internal/pipeline"
	"github.com/kingrea/sectorpages/internal/rules"
	"github.com/kingrea/sectorpages/internal/scaffold"
	"github.com/kingrea/sectorpages/internal/sections"
	"github.com/kingrea/sectorpages/internal/snapshot"
	"github.com/kingrea/sectorpages/internal/taxonomy"
	"github.com/kingrea/sectorpages/internal/tui"
	"github.com/kingrea/sectorpages/internal/watch"
)

// --- Global flags ---
var (
	projectDir string
	hostFlag   string
	userFlag   string
	portFlag   int
	verbose    bool

	levelFlag     string
	syncJSON      bool
	maxParallel   int
	showProgress  bool
	overwriteInit bool
	logLines      int

	rootCmd = &cobra.Command{
		Use:           "sectorpages",
		Short:         "Build and publish sector landing pages from a taxonomy and content tree",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	initCmd = &cobra.Command{
		Use:   "init",
		Short: "Create .sectorpages/ with config, page definitions and the service catalog",
		Args:  cobra.NoArgs,
		RunE:  runInit,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Apply page definitions to every selected entity and publish the pages",
		Args:  cobra.NoArgs,
		RunE:  runPages,
	}

	syncCmd = &cobra.Command{
		Use:   "sync",
		Short: "Write local page snapshots without publishing (same as run --sync-json)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			syncJSON = true
			return runPages(cmd, args)
		},
	}

	expertsCmd = &cobra.Command{
		Use:   "experts",
		Short: "Show each entity's resolved experts, flagging entities with none",
		Args:  cobra.NoArgs,
		RunE:  runExperts,
	}

	scaffoldCmd = &cobra.Command{
		Use:   "scaffold",
		Short: "Create content directories and list content files still to be written",
		Args:  cobra.NoArgs,
		RunE:  runScaffold,
	}

	watchCmd = &cobra.Command{
		Use:   "watch",
		Short: "Re-sync entities whenever their content files change",
		Args:  cobra.NoArgs,
		RunE:  runWatch,
	}

	statusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the local snapshot state of every entity",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}

	logCmd = &cobra.Command{
		Use:   "log",
		Short: "Show the run journal and the last run summary",
		Args:  cobra.NoArgs,
		RunE:  runLog,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&projectDir, "project", "", "project directory (default: current directory)")
	flags.StringVar(&hostFlag, "host", "", "remote WordPress host (overrides config and "+config.EnvHost+")")
	flags.StringVar(&userFlag, "user", "", "ssh user (overrides config and "+config.EnvUser+")")
	flags.IntVar(&portFlag, "port", 0, "ssh port (overrides config and "+config.EnvPort+")")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log debug output to the console")

	for _, cmd := range []*cobra.Command{runCmd, syncCmd, watchCmd, statusCmd} {
		cmd.Flags().StringVar(&levelFlag, "level", "", "comma-separated levels to process, e.g. L1,L2 (default from config)")
	}
	for _, cmd := range []*cobra.Command{runCmd, syncCmd, watchCmd} {
		cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "entities processed concurrently (default from config)")
	}
	runCmd.Flags().BoolVar(&syncJSON, "sync-json", false, "only write local snapshots; do not create or update pages")
	watchCmd.Flags().BoolVar(&syncJSON, "sync-json", false, "only write local snapshots on change")
	for _, cmd := range []*cobra.Command{runCmd, syncCmd} {
		cmd.Flags().BoolVar(&showProgress, "progress", false, "show an interactive progress view")
	}
	initCmd.Flags().BoolVar(&overwriteInit, "force", false, "overwrite existing page definitions")
	logCmd.Flags().IntVarP(&logLines, "lines", "n", 40, "number of journal entries to show")

	rootCmd.AddCommand(initCmd, runCmd, syncCmd, expertsCmd, scaffoldCmd, watchCmd, statusCmd, logCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	dir, err := resolveProjectDir()
	if err != nil {
		return err
	}
	created, err := config.InitProjectDir(dir)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if created {
		fmt.Fprintf(out, "wrote %s\n", cfg.ProjectConfigPath())
	}
	written, err := rules.WriteDefaults(cfg.Project.Pages.DefinitionsDir, overwriteInit)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	for _, path := range written {
		fmt.Fprintf(out, "wrote %s\n", path)
	}
	if cfg.Project.Services.Catalog != "" {
		wrote, err := sections.WriteDefaultCatalog(cfg.Project.Services.Catalog)
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}
		if wrote {
			fmt.Fprintf(out, "wrote %s\n", cfg.Project.Services.Catalog)
		}
	}
	fmt.Fprintln(out, "project ready; set remote.host and run `sectorpages scaffold`")
	return nil
}

func runPages(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	opts, err := a.runOptions()
	if err != nil {
		return err
	}
	entities, err := a.entities()
	if err != nil {
		return err
	}

	var report *pipeline.Report
	if showProgress {
		report, err = tui.Run(cmd.Context(), cmd.OutOrStdout(), func(ctx context.Context, onEvent func(pipeline.Event)) (*pipeline.Report, error) {
			sess, err := a.openSession(ctx, entities, pipeline.WithEvents(onEvent))
			if err != nil {
				return nil, err
			}
			defer sess.Close()
			return sess.pipeline.Run(ctx, entities, opts)
		})
	} else {
		var sess *session
		sess, err = a.openSession(cmd.Context(), entities)
		if err != nil {
			return err
		}
		defer sess.Close()
		report, err = sess.pipeline.Run(cmd.Context(), entities, opts)
		fmt.Fprint(cmd.OutOrStdout(), tui.RenderSummary(report))
	}
	if err != nil {
		return err
	}
	if failed := len(report.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d entities failed; see %s", failed, len(report.Entities), a.cfg.JournalPath())
	}
	return nil
}

func runExperts(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	entities, err := a.entities()
	if err != nil {
		return err
	}
	client, err := a.client()
	if err != nil {
		return err
	}
	users, err := client.Users(cmd.Context())
	if err != nil {
		return err
	}
	lookup := identity.BuildLookup(users, expertNames(entities))
	fmt.Fprint(cmd.OutOrStdout(), tui.RenderExperts(sections.ExpertReport(entities, lookup)))
	return nil
}

func runScaffold(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	entities, err := a.entities()
	if err != nil {
		return err
	}
	report, err := scaffold.Ensure(a.layout(), entities)
	if err != nil {
		return err
	}
	catalog, err := sections.LoadCatalog(a.cfg.Project.Services.Catalog)
	if err != nil {
		return err
	}
	missing, err := sections.NewServices(catalog, a.cfg.Project.Services.Dir, nil, a.logger.Logger).EnsureDirs()
	if err != nil {
		return err
	}
	report.Missing = append(report.Missing, missing...)
	fmt.Fprint(cmd.OutOrStdout(), tui.RenderScaffold(report))
	return nil
}

func runWatch(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	opts, err := a.runOptions()
	if err != nil {
		return err
	}
	entities, err := a.entities()
	if err != nil {
		return err
	}
	sess, err := a.openSession(cmd.Context(), entities)
	if err != nil {
		return err
	}
	defer sess.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "watching %s (ctrl+c to stop)\n", a.cfg.Project.Taxonomy.DataDir)
	w := watch.New(a.layout(), entities, watch.WithLogger(a.logger.Logger))
	return w.Run(cmd.Context(), func(ctx context.Context, changed []*taxonomy.Entity) {
		batch := make([]taxonomy.Entity, 0, len(changed))
		for _, e := range changed {
			batch = append(batch, *e)
		}
		report, err := sess.pipeline.Run(ctx, batch, opts)
		if err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Error("watch run failed", zap.Error(err))
		}
		fmt.Fprint(out, tui.RenderSummary(report))
	})
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	opts, err := a.runOptions()
	if err != nil {
		return err
	}
	entities, err := a.entities()
	if err != nil {
		return err
	}
	store := snapshot.NewStore(a.layout())
	var lines []tui.StatusLine
	for _, e := range taxonomy.Filter(entities, opts.Levels...) {
		// Check reports unreadable snapshots through the result state.
		check, _ := store.Check(e)
		lines = append(lines, tui.StatusLine{Entity: e.String(), Check: check})
	}
	cached := -1
	if path := a.cfg.Project.Media.Cache; path != "" {
		if _, err := os.Stat(path); err == nil {
			cache, err := media.OpenCache(path)
			if err != nil {
				return err
			}
			defer cache.Close()
			if cached, err = cache.Len(cmd.Context()); err != nil {
				return err
			}
		}
	}
	fmt.Fprint(cmd.OutOrStdout(), tui.RenderStatus(lines, cached))
	return nil
}

func runLog(cmd *cobra.Command, _ []string) error {
	dir, err := resolveProjectDir()
	if err != nil {
		return err
	}
	cfg, err := config.NewConfig(dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	book, err := logbook.New(cfg.JournalPath())
	if err != nil {
		return err
	}
	entries, total := book.Entries(logLines)
	if total == 0 {
		fmt.Fprintln(out, "journal is empty")
	} else {
		fmt.Fprint(out, tui.RenderJournal(entries, total))
	}
	report, err := pipeline.NewRepository(cfg.StateDir()).Load()
	switch {
	case errors.Is(err, pipeline.ErrReportNotFound):
		return nil
	case err != nil:
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprint(out, tui.RenderSummary(report))
	return nil
}

func resolveProjectDir() (string, error) {
	if projectDir != "" {
		return projectDir, nil
	}
	return os.Getwd()
}

// expertNames collects every expert name across the taxonomy.
func expertNames(entities []taxonomy.Entity) []string {
	var names []string
	for i := range entities {
		names = append(names, entities[i].Attributes.Items()...)
	}
	return names
}
