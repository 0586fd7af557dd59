// Package pipeline drives a run: it resolves the template page for each level,
// applies the level's rules to every entity with bounded parallelism, and
// persists or publishes the finished documents.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kingrea/sectorpages/internal/content"
	"github.com/kingrea/sectorpages/internal/document"
	"github.com/kingrea/sectorpages/internal/identity"
	"github.com/kingrea/sectorpages/internal/rules"
	"github.com/kingrea/sectorpages/internal/snapshot"
	"github.com/kingrea/sectorpages/internal/taxonomy"
	"github.com/kingrea/sectorpages/internal/wpcli"
)

// Mode selects whether finished documents are published.
type Mode string

const (
	// ModeRemote publishes documents to the CMS and writes snapshots.
	ModeRemote Mode = "remote"
	// ModeSyncOnly writes snapshots only.
	ModeSyncOnly Mode = "sync"
)

// DefaultParentSlug is the page new entity pages are created under.
const DefaultParentSlug = "industries"

// CMS is the subset of the remote client the pipeline drives.
type CMS interface {
	PageIDBySlug(ctx context.Context, slug string) (string, bool, error)
	CreatePage(ctx context.Context, spec wpcli.PageSpec) (string, error)
	PageData(ctx context.Context, id string) (*document.Document, error)
	UpdatePageData(ctx context.Context, id string, doc *document.Document) error
	FlushCaches(ctx context.Context) error
}

// Applier patches a template for one entity.
type Applier interface {
	Apply(ctx context.Context, e *taxonomy.Entity, template *document.Document, rules []content.UpdateRule) (*document.Document, content.Outcome, error)
}

// Snapshots persists finished documents locally.
type Snapshots interface {
	Write(e *taxonomy.Entity, doc *document.Document) (snapshot.Result, error)
}

// Journal receives human-readable run entries.
type Journal interface {
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Options controls a single run.
type Options struct {
	Levels      []taxonomy.Level
	MaxParallel int
	Mode        Mode
	ParentSlug  string
}

// EventKind identifies a progress event.
type EventKind string

const (
	EventRunStarted     EventKind = "run_started"
	EventEntityStarted  EventKind = "entity_started"
	EventEntityFinished EventKind = "entity_finished"
	EventRunFinished    EventKind = "run_finished"
)

// Event reports run progress. Total is the number of entities in the run.
type Event struct {
	Kind   EventKind
	RunID  string
	Entity string
	Level  taxonomy.Level
	Status Status
	Err    error
	Done   int
	Total  int
	At     time.Time
}

// Pipeline processes entities against compiled page definitions.
type Pipeline struct {
	cms        CMS
	pages      rules.Set
	applier    Applier
	generators rules.Generators
	snapshots  Snapshots

	logger  *zap.Logger
	journal Journal
	repo    *Repository
	lookup  *identity.Lookup
	onEvent func(Event)
	now     func() time.Time
	newID   func() string

	eventMu sync.Mutex
}

// Option customizes a Pipeline during construction.
type Option func(*Pipeline)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithJournal records run entries in journal.
func WithJournal(journal Journal) Option {
	return func(p *Pipeline) {
		p.journal = journal
	}
}

// WithRepository persists each run report.
func WithRepository(repo *Repository) Option {
	return func(p *Pipeline) {
		p.repo = repo
	}
}

// WithLookup attaches the run's identity lookup so unresolved expert names
// appear in the report.
func WithLookup(lookup *identity.Lookup) Option {
	return func(p *Pipeline) {
		p.lookup = lookup
	}
}

// WithEvents registers a progress callback. Calls are serialized.
func WithEvents(fn func(Event)) Option {
	return func(p *Pipeline) {
		p.onEvent = fn
	}
}

// WithClock overrides the clock used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = clock
	}
}

// WithRunID overrides run id generation.
func WithRunID(fn func() string) Option {
	return func(p *Pipeline) {
		p.newID = fn
	}
}

// New builds a pipeline.
func New(cms CMS, pages rules.Set, applier Applier, generators rules.Generators, snapshots Snapshots, opts ...Option) *Pipeline {
	p := &Pipeline{
		cms:        cms,
		pages:      pages,
		applier:    applier,
		generators: generators,
		snapshots:  snapshots,
		logger:     zap.NewNop(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PrepareTaxonomy loads the taxonomy file and resolves inherited attributes.
// Errors here abort the run since every entity depends on the result.
func PrepareTaxonomy(path string) ([]taxonomy.Entity, error) {
	entities, err := taxonomy.Load(path)
	if err != nil {
		return nil, err
	}
	taxonomy.ResolveHierarchy(entities)
	return entities, nil
}

type levelTemplate struct {
	page       *rules.Page
	templateID string
	template   *document.Document
}

// Run processes every entity whose level is selected. Entity failures are
// recorded in the report; the returned error is set only when the run could
// not proceed (missing template page, cancellation, report persistence).
func (p *Pipeline) Run(ctx context.Context, entities []taxonomy.Entity, opts Options) (*Report, error) {
	opts = p.normalize(opts)
	report := &Report{
		RunID:     p.newID(),
		Mode:      opts.Mode,
		StartedAt: p.now().UTC(),
	}
	for _, level := range opts.Levels {
		report.Levels = append(report.Levels, string(level))
	}
	log := p.logger.With(zap.String("run", report.RunID), zap.String("mode", string(opts.Mode)))
	selected := taxonomy.Filter(entities, opts.Levels...)
	p.noteInfo("run %s started: mode=%s levels=%v entities=%d", report.RunID, opts.Mode, report.Levels, len(selected))
	p.emit(Event{Kind: EventRunStarted, RunID: report.RunID, Total: len(selected)})

	templates, parentID, err := p.prepare(ctx, opts, log)
	if err != nil {
		return p.finish(report, RunAborted, err, len(selected), log)
	}

	results := make([]EntityResult, len(selected))
	var (
		doneMu sync.Mutex
		done   int
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(opts.MaxParallel)
	for i, entity := range selected {
		i, entity := i, entity
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			p.emit(Event{Kind: EventEntityStarted, RunID: report.RunID, Entity: entity.String(), Level: entity.Level, Total: len(selected)})
			res := p.process(groupCtx, entity, templates[entity.Level], parentID, opts.Mode, log)
			results[i] = res
			doneMu.Lock()
			done++
			count := done
			doneMu.Unlock()
			var entityErr error
			if res.Error != "" {
				entityErr = errors.New(res.Error)
			}
			p.emit(Event{Kind: EventEntityFinished, RunID: report.RunID, Entity: res.Entity, Level: entity.Level, Status: res.Status, Err: entityErr, Done: count, Total: len(selected)})
			return nil
		})
	}
	waitErr := group.Wait()
	for _, res := range results {
		if res.Entity != "" {
			report.Entities = append(report.Entities, res)
		}
	}
	if waitErr == nil {
		waitErr = ctx.Err()
	}
	if waitErr != nil {
		return p.finish(report, RunAborted, waitErr, len(selected), log)
	}

	if opts.Mode == ModeRemote && report.Counts()[StatusUpdated] > 0 {
		if err := p.cms.FlushCaches(ctx); err != nil {
			report.FlushError = err.Error()
			log.Warn("cache flush failed", zap.Error(err))
			p.noteWarn("cache flush failed: %v", err)
		}
	}
	status := RunComplete
	if len(report.Failed()) > 0 {
		status = RunPartial
	}
	return p.finish(report, status, nil, len(selected), log)
}

func (p *Pipeline) normalize(opts Options) Options {
	if len(opts.Levels) == 0 {
		opts.Levels = p.pages.Levels()
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.Mode == "" {
		opts.Mode = ModeRemote
	}
	if opts.ParentSlug == "" {
		opts.ParentSlug = DefaultParentSlug
	}
	return opts
}

// prepare fetches each selected level's template once. A missing template
// page aborts the run.
func (p *Pipeline) prepare(ctx context.Context, opts Options, log *zap.Logger) (map[taxonomy.Level]levelTemplate, string, error) {
	templates := make(map[taxonomy.Level]levelTemplate, len(opts.Levels))
	for _, level := range opts.Levels {
		page, ok := p.pages[level]
		if !ok || page == nil {
			return nil, "", fmt.Errorf("pipeline: no page definition for level %s", level)
		}
		id, found, err := p.cms.PageIDBySlug(ctx, page.Template())
		if err != nil {
			return nil, "", fmt.Errorf("pipeline: template %s: %w", page.Template(), err)
		}
		if !found {
			return nil, "", fmt.Errorf("pipeline: template page %q for level %s not found", page.Template(), level)
		}
		doc, err := p.cms.PageData(ctx, id)
		if err != nil {
			return nil, "", fmt.Errorf("pipeline: template %s data: %w", page.Template(), err)
		}
		templates[level] = levelTemplate{page: page, templateID: id, template: doc}
		log.Debug("template loaded", zap.String("level", string(level)), zap.String("template", page.Template()), zap.String("id", id))
	}
	if opts.Mode != ModeRemote {
		return templates, "", nil
	}
	parentID, found, err := p.cms.PageIDBySlug(ctx, opts.ParentSlug)
	if err != nil {
		return nil, "", fmt.Errorf("pipeline: parent page %s: %w", opts.ParentSlug, err)
	}
	if !found {
		log.Warn("parent page not found, pages will be created at top level", zap.String("slug", opts.ParentSlug))
		p.noteWarn("parent page %q not found; new pages are created at top level", opts.ParentSlug)
	}
	return templates, parentID, nil
}

func (p *Pipeline) process(ctx context.Context, e *taxonomy.Entity, tmpl levelTemplate, parentID string, mode Mode, log *zap.Logger) EntityResult {
	started := p.now()
	res := EntityResult{Entity: e.String(), Level: string(e.Level), Slug: e.Slug}
	log = log.With(zap.Stringer("entity", e), zap.String("level", string(e.Level)))
	fail := func(err error) EntityResult {
		res.Status = StatusFailed
		res.Error = err.Error()
		res.Duration = p.now().Sub(started)
		log.Error("entity failed", zap.Error(err))
		p.noteError("%s: %v", e, err)
		return res
	}

	updates, err := tmpl.page.Build(ctx, e, p.generators)
	if err != nil {
		return fail(err)
	}
	doc, outcome, err := p.applier.Apply(ctx, e, tmpl.template, updates)
	if err != nil {
		return fail(err)
	}
	res.Applied = outcome.Applied
	res.SkippedAssets = len(outcome.Skipped)
	for _, skip := range outcome.Skipped {
		p.noteWarn("%s: skipped %s (%s)", e, skip.Path, skip.Asset.TargetName)
	}

	written, err := p.snapshots.Write(e, doc)
	if err != nil {
		return fail(err)
	}
	res.Snapshot = written.Path
	res.Changed = written.Changed

	if mode != ModeRemote {
		res.Status = StatusSynced
		res.Duration = p.now().Sub(started)
		p.noteInfo("%s: snapshot written to %s", e, written.Path)
		return res
	}

	pageID, found, err := p.cms.PageIDBySlug(ctx, e.Slug)
	if err != nil {
		return fail(err)
	}
	if !found {
		pageID, err = p.cms.CreatePage(ctx, wpcli.PageSpec{
			Title:    e.Name(),
			Slug:     e.Slug,
			ParentID: parentID,
			FromID:   tmpl.templateID,
		})
		if err != nil {
			return fail(err)
		}
		res.Created = true
		log.Info("page created", zap.String("page", pageID))
	}
	res.PageID = pageID
	if err := p.cms.UpdatePageData(ctx, pageID, doc); err != nil {
		return fail(err)
	}
	res.Status = StatusUpdated
	res.Duration = p.now().Sub(started)
	log.Info("page updated", zap.String("page", pageID), zap.Int("applied", res.Applied), zap.Int("skipped", res.SkippedAssets))
	p.noteInfo("%s: page %s updated", e, pageID)
	return res
}

func (p *Pipeline) finish(report *Report, status RunStatus, runErr error, total int, log *zap.Logger) (*Report, error) {
	report.Status = status
	report.FinishedAt = p.now().UTC()
	if p.lookup != nil {
		report.MissingExperts = p.lookup.Missing()
	}
	if runErr != nil {
		report.Error = runErr.Error()
		log.Error("run aborted", zap.Error(runErr))
		p.noteError("run %s aborted: %v", report.RunID, runErr)
	} else {
		counts := report.Counts()
		log.Info("run finished",
			zap.Int("updated", counts[StatusUpdated]),
			zap.Int("synced", counts[StatusSynced]),
			zap.Int("failed", counts[StatusFailed]))
		p.noteInfo("run %s finished: updated=%d synced=%d failed=%d", report.RunID, counts[StatusUpdated], counts[StatusSynced], counts[StatusFailed])
	}
	p.emit(Event{Kind: EventRunFinished, RunID: report.RunID, Err: runErr, Done: len(report.Entities), Total: total})
	if p.repo != nil {
		if err := p.repo.Save(report); err != nil {
			if runErr != nil {
				return report, errors.Join(runErr, err)
			}
			return report, fmt.Errorf("pipeline: save report: %w", err)
		}
	}
	return report, runErr
}

func (p *Pipeline) emit(ev Event) {
	if p.onEvent == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = p.now()
	}
	p.eventMu.Lock()
	defer p.eventMu.Unlock()
	p.onEvent(ev)
}

func (p *Pipeline) noteInfo(format string, args ...any) {
	if p.journal != nil {
		p.journal.Info(format, args...)
	}
}

func (p *Pipeline) noteWarn(format string, args ...any) {
	if p.journal != nil {
		p.journal.Warn(format, args...)
	}
}

func (p *Pipeline) noteError(format string, args ...any) {
	if p.journal != nil {
		p.journal.Error(format, args...)
	}
}
