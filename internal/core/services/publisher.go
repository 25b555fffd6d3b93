package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driving"
	"github.com/treeline-labs/confsync-cli/internal/logger"
)

// Ensure PublishService implements the interface.
var _ driving.Publisher = (*PublishService)(nil)

// PublishService drives a publish run end to end: interpret the change
// listing, bootstrap identities from the remote, upsert pages in
// parallel, then resolve cross-page links in a second pass. Runs are
// stateless between invocations; everything durable lives on the
// remote pages.
type PublishService struct {
	remote   driven.Remote
	ws       driven.Workspace
	renderer driven.Renderer
	cfg      domain.Config
}

// NewPublishService creates a publisher for the given configuration.
func NewPublishService(remote driven.Remote, ws driven.Workspace, renderer driven.Renderer, cfg domain.Config) *PublishService {
	return &PublishService{remote: remote, ws: ws, renderer: renderer, cfg: cfg}
}

// runState bundles the per-run collaborators handed between phases.
type runState struct {
	remote   driven.Remote
	ws       driven.Workspace
	renderer driven.Renderer
	cfg      domain.Config
	idx      *IdentityIndex
	hier     *Hierarchy
	migrator *Migrator
	rewriter *Rewriter
	report   *reporter
	collect  *pageCollector
}

// fileTask is one content page to publish. force bypasses the
// unchanged-content skip, used after cross-directory renames where the
// page must reparent even though its body is identical.
type fileTask struct {
	path  string
	force bool
}

// renameTask is one rename surviving inside the tree.
type renameTask struct {
	oldPath string
	newPath string
}

// workPlan is the interpreted changeset, grouped by what each record
// means for the remote.
type workPlan struct {
	files   []fileTask
	dirs    []string
	renames []renameTask
	deletes []string
}

// Run executes one publish run.
func (p *PublishService) Run(ctx context.Context, req domain.RunRequest) (*domain.RunReport, error) {
	// 1. Validate configuration
	if err := p.cfg.Validate(); err != nil {
		return nil, err
	}

	// 2. Interpret the request into a changeset
	cs, err := p.changeset(ctx, req)
	if err != nil {
		return nil, err
	}

	report := newReporter()
	if cs.IsEmpty() {
		logger.Info("Nothing to publish")
		return report.finish(), nil
	}

	// 3. Wire the per-run collaborators. Dry runs swap the remote for
	// an overlay that absorbs writes.
	remote := p.remote
	if p.cfg.DryRun {
		logger.Info("Dry run: no remote writes will be performed")
		remote = newDryRemote(p.remote)
	}
	collect := newPageCollector()
	idx := NewIdentityIndex(remote)
	migrator := NewMigrator(remote)
	rewriter, err := NewRewriter(remote, idx, report, p.cfg)
	if err != nil {
		return nil, err
	}
	rt := &runState{
		remote:   remote,
		ws:       p.ws,
		renderer: p.renderer,
		cfg:      p.cfg,
		idx:      idx,
		hier:     NewHierarchy(remote, p.ws, p.renderer, idx, migrator, report, collect, p.cfg),
		migrator: migrator,
		rewriter: rewriter,
		report:   report,
		collect:  collect,
	}

	// 4. Bootstrap the identity map from the remote. Without it every
	// upsert would guess, so failure here aborts the run.
	logger.Section("Identity Bootstrap")
	if err := idx.Bootstrap(ctx, p.cfg.RootPageID, p.cfg.Label()); err != nil {
		return nil, fmt.Errorf("bootstrap identities: %w", err)
	}

	// 5. Group records into a work plan and apply renames first: they
	// move identities, which every later lookup depends on.
	plan := buildPlan(cs)
	p.applyRenames(ctx, rt, &plan)
	for _, del := range plan.deletes {
		logger.Info("Delete of %s noted, the remote page is kept", del)
	}

	// 6. Refresh directory pages whose body files changed
	for _, dir := range plan.dirs {
		if err := rt.hier.RefreshDir(ctx, dir); err != nil {
			report.failed(domain.NewDirKey(dir), err)
		}
	}

	// 7. Upsert content pages in parallel
	logger.Section("Content Upsert")
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, task := range dedupeFiles(plan.files) {
		task := task
		g.Go(func() error {
			if err := publishFile(gctx, rt, task); err != nil {
				if isFatal(err) {
					return err
				}
				report.failed(domain.NewFileKey(task.path), err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report.finish(), runError(err)
	}

	// 8. Resolve links now that every target page exists
	logger.Section("Link Rewrite")
	pages, newBindings := collect.snapshot()
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, pp := range pages {
		pp := pp
		g.Go(func() error {
			if err := rewriteLinks(gctx, rt, pp, newBindings); err != nil {
				if isFatal(err) {
					return err
				}
				report.failed(pp.key, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report.finish(), runError(err)
	}

	final := report.finish()
	logger.Info("Run %s finished in %s: %s", final.RunID, final.Duration().Round(0), final.Summary())
	return final, nil
}

// changeset turns the request into records, whichever form it takes.
func (p *PublishService) changeset(ctx context.Context, req domain.RunRequest) (*domain.Changeset, error) {
	switch {
	case req.Full:
		return FullChangeset(ctx, p.ws)
	case len(req.Paths) > 0:
		return PathChangeset(req.Paths, p.cfg.DocRoot), nil
	default:
		return ParseChangeset(req.Changes, p.cfg.DocRoot)
	}
}

// buildPlan groups change records by their remote meaning. Directory
// body files fold into a refresh of their directory's page; deletions
// are noted but never touch the remote.
func buildPlan(cs *domain.Changeset) workPlan {
	var plan workPlan
	seenDirs := map[string]bool{}
	addDir := func(p string) {
		dir := parentDir(p)
		if !seenDirs[dir] {
			seenDirs[dir] = true
			plan.dirs = append(plan.dirs, dir)
		}
	}

	for _, rec := range cs.Records {
		switch rec.Op {
		case domain.OpAdd, domain.OpModify:
			if domain.IsDirBody(rec.Path) {
				addDir(rec.Path)
			} else {
				plan.files = append(plan.files, fileTask{path: rec.Path})
			}
		case domain.OpDelete:
			plan.deletes = append(plan.deletes, rec.Path)
		case domain.OpRename:
			switch {
			case domain.IsDirBody(rec.NewPath):
				addDir(rec.NewPath)
			case domain.IsDirBody(rec.Path):
				plan.files = append(plan.files, fileTask{path: rec.NewPath})
			default:
				plan.renames = append(plan.renames, renameTask{oldPath: rec.Path, newPath: rec.NewPath})
			}
		}
	}
	return plan
}

// applyRenames moves identities before any upload runs. A rename whose
// old side the remote never saw degrades to a plain add. Renames are
// serial: each one changes the index the next may depend on.
func (p *PublishService) applyRenames(ctx context.Context, rt *runState, plan *workPlan) {
	for _, rn := range plan.renames {
		oldKey := domain.NewFileKey(rn.oldPath)
		newKey := domain.NewFileKey(rn.newPath)

		if _, bound := rt.idx.Lookup(oldKey); !bound {
			logger.Debug("Rename source %s unknown, treating %s as new", rn.oldPath, rn.newPath)
			plan.files = append(plan.files, fileTask{path: rn.newPath})
			continue
		}

		if _, err := rt.idx.Rekey(ctx, oldKey, newKey); err != nil {
			rt.report.failed(newKey, fmt.Errorf("rename %s to %s: %w", rn.oldPath, rn.newPath, err))
			continue
		}
		rt.collect.bound()
		logger.Info("Renamed %s to %s, page identity moved", rn.oldPath, rn.newPath)

		crossDir := parentDir(rn.oldPath) != parentDir(rn.newPath)
		plan.files = append(plan.files, fileTask{path: rn.newPath, force: crossDir})
	}
}

// dedupeFiles keeps one task per path. A forced duplicate wins over an
// unforced one.
func dedupeFiles(tasks []fileTask) []fileTask {
	index := map[string]int{}
	var out []fileTask
	for _, t := range tasks {
		if i, ok := index[t.path]; ok {
			if t.force {
				out[i].force = true
			}
			continue
		}
		index[t.path] = len(out)
		out = append(out, t)
	}
	return out
}

// publishFile lands one content page: render, derive the title, ensure
// the parent chain, then create, update or skip.
func publishFile(ctx context.Context, rt *runState, task fileTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	key := domain.NewFileKey(task.path)
	if err := rt.idx.ConflictFor(key); err != nil {
		return err
	}

	src, err := rt.ws.ReadFile(ctx, task.path)
	if domain.IsNotFound(err) {
		rt.report.warn("File %s listed as changed but missing on disk, skipping", task.path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", task.path, err)
	}

	res, err := rt.renderer.Render(ctx, src, task.path)
	if err != nil {
		return fmt.Errorf("render %s: %w", task.path, err)
	}
	title := titleFor(task.path, res)

	dir := parentDir(task.path)
	parentID, err := rt.hier.EnsureDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("ensure directory %q: %w", dir, err)
	}

	if ident, bound := rt.idx.Lookup(key); bound {
		return updateBoundPage(ctx, rt, task, ident, title, parentID, res)
	}
	return publishNewPage(ctx, rt, task, key, title, dir, parentID, res)
}

// updateBoundPage refreshes a page the index already maps, skipping
// the write when the stored hash and title match what the source
// derives now.
func updateBoundPage(ctx context.Context, rt *runState, task fileTask, ident domain.PageIdentity, title, parentID string, res *domain.RenderResult) error {
	if !task.force && ident.ContentHash == res.Hash && ident.Title == title {
		logger.Debug("Unchanged: %s", task.path)
		rt.report.skipped()
		rt.collect.add(phasedPage{
			key: ident.Key, path: task.path, pageID: ident.PageID,
			title: ident.Title, parentID: parentID, skipped: true,
		})
		return nil
	}

	page, err := rt.remote.GetPage(ctx, ident.PageID)
	if err != nil {
		return fmt.Errorf("fetch page %s: %w", ident.PageID, err)
	}
	draft := domain.PageDraft{
		SpaceKey: rt.cfg.SpaceKey,
		ParentID: parentID,
		Title:    title,
		Body:     res.Storage,
	}
	if rt.cfg.DryRun {
		rt.report.plan(domain.PlannedChange{
			Key: ident.Key, Path: task.path, PageID: ident.PageID, Title: title,
			Action: domain.ActionUpdate, OldBody: page.Body, NewBody: res.Storage,
		})
	}
	updated, err := rt.remote.UpdatePage(ctx, ident.PageID, draft, page.Version)
	if err != nil {
		return fmt.Errorf("update page %s: %w", ident.PageID, err)
	}

	ident.ContentHash = res.Hash
	ident.Title = title
	if err := rt.idx.Commit(ctx, ident); err != nil {
		return err
	}
	if err := finishLabels(ctx, rt, ident.PageID, res.Labels); err != nil {
		return err
	}

	rt.report.updated()
	rt.collect.add(phasedPage{
		key: ident.Key, path: task.path, pageID: ident.PageID,
		title: title, parentID: parentID, version: updated.Version, body: res.Storage,
	})
	logger.Info("Updated %s (page %s)", task.path, ident.PageID)
	return nil
}

// publishNewPage lands a page for a file the index has never seen,
// creating or adopting by title.
func publishNewPage(ctx context.Context, rt *runState, task fileTask, key domain.SourceKey, title, dir, parentID string, res *domain.RenderResult) error {
	target := upsertTarget{
		key:         key,
		baseTitle:   title,
		parentID:    parentID,
		parentTitle: rt.hier.TitleOf(dir),
		body:        res.Storage,
	}
	page, adopted, err := findOrCreatePage(ctx, rt.remote, rt.idx, rt.cfg, target)
	if err != nil {
		return err
	}

	version := page.Version
	if adopted {
		draft := domain.PageDraft{
			SpaceKey: rt.cfg.SpaceKey,
			ParentID: parentID,
			Title:    page.Title,
			Body:     res.Storage,
		}
		if rt.cfg.DryRun {
			rt.report.plan(domain.PlannedChange{
				Key: key, Path: task.path, PageID: page.ID, Title: page.Title,
				Action: domain.ActionUpdate, OldBody: page.Body, NewBody: res.Storage,
			})
		}
		updated, err := rt.remote.UpdatePage(ctx, page.ID, draft, page.Version)
		if err != nil {
			return fmt.Errorf("update adopted page %s: %w", page.ID, err)
		}
		version = updated.Version
	} else if rt.cfg.DryRun {
		rt.report.plan(domain.PlannedChange{
			Key: key, Path: task.path, Title: page.Title,
			Action: domain.ActionCreate, NewBody: res.Storage,
		})
	}

	ident := domain.PageIdentity{
		Key:         key,
		PageID:      page.ID,
		Classifier:  domain.ClassifierDoc,
		ContentHash: res.Hash,
		Title:       page.Title,
	}
	if err := rt.idx.Commit(ctx, ident); err != nil {
		return err
	}
	if err := finishLabels(ctx, rt, page.ID, res.Labels); err != nil {
		return err
	}

	rt.collect.bound()
	rt.collect.add(phasedPage{
		key: key, path: task.path, pageID: page.ID,
		title: page.Title, parentID: parentID, version: version, body: res.Storage,
	})
	if adopted {
		rt.report.updated()
		logger.Info("Adopted page %s for %s", page.ID, task.path)
	} else {
		rt.report.created()
		logger.Info("Created %s (page %s)", task.path, page.ID)
	}
	return nil
}

// rewriteLinks runs the second phase for one page. Pages skipped in
// the first phase are re-read and re-checked only when this run bound
// new pages their links might now reach.
func rewriteLinks(ctx context.Context, rt *runState, pp phasedPage, newBindings bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, version, title, parentID := pp.body, pp.version, pp.title, pp.parentID
	if pp.skipped {
		if !newBindings {
			return nil
		}
		page, err := rt.remote.GetPage(ctx, pp.pageID)
		if err != nil {
			return fmt.Errorf("fetch page %s: %w", pp.pageID, err)
		}
		body, version, title, parentID = page.Body, page.Version, page.Title, page.ParentID
	}

	rewritten := rt.rewriter.Rewrite(ctx, body, pp.path)
	if rewritten == body {
		return nil
	}

	draft := domain.PageDraft{
		SpaceKey: rt.cfg.SpaceKey,
		ParentID: parentID,
		Title:    title,
		Body:     rewritten,
	}
	if rt.cfg.DryRun {
		rt.report.plan(domain.PlannedChange{
			Key: pp.key, Path: pp.path, PageID: pp.pageID, Title: title,
			Action: domain.ActionRewrite, OldBody: body, NewBody: rewritten,
		})
	}
	if _, err := rt.remote.UpdatePage(ctx, pp.pageID, draft, version); err != nil {
		return fmt.Errorf("rewrite links in page %s: %w", pp.pageID, err)
	}
	logger.Debug("Rewrote links in %s", pp.path)
	return nil
}

// finishLabels reconciles a page's labels and counts the migration.
func finishLabels(ctx context.Context, rt *runState, pageID string, extra []string) error {
	removed, err := reconcileLabels(ctx, rt.remote, rt.migrator, pageID, rt.cfg.Label(), extra)
	if err != nil {
		return err
	}
	if removed > 0 {
		rt.report.migrated(1)
	}
	return nil
}

// titleFor derives a page title: front matter wins, then the leading
// heading, then the humanised file stem. Generic stems like readme and
// index never take their heading, those documents usually open with a
// heading about something else.
func titleFor(relPath string, res *domain.RenderResult) string {
	if res.Title != "" {
		return res.Title
	}
	stem := domain.Stem(relPath)
	switch strings.ToLower(stem) {
	case "readme", "index", "_index":
	default:
		if res.Heading != "" {
			return res.Heading
		}
	}
	return domain.Humanize(stem)
}

// isFatal reports errors that abort the run instead of failing the one
// item they occurred on.
func isFatal(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, domain.ErrRunCancelled)
}

// runError tags context cancellation so callers can tell an aborted
// run from a failed one.
func runError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrRunCancelled, err)
	}
	return err
}
