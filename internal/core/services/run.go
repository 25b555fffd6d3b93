package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
	"github.com/treeline-labs/confsync-cli/internal/logger"
)

// reporter accumulates run counters, warnings and failures. Safe for
// concurrent use by the publish workers.
type reporter struct {
	mu     sync.Mutex
	report domain.RunReport
}

func newReporter() *reporter {
	return &reporter{
		report: domain.RunReport{
			RunID:     uuid.NewString(),
			StartedAt: time.Now(),
		},
	}
}

func (r *reporter) created() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Created++
}

func (r *reporter) updated() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Updated++
}

func (r *reporter) skipped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Skipped++
}

func (r *reporter) migrated(pages int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Migrated += pages
}

func (r *reporter) failed(key domain.SourceKey, err error) {
	logger.Warn("Item %s failed: %v", key, err)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Failed++
	r.report.Failures = append(r.report.Failures, domain.ItemFailure{Key: key, Err: err})
}

func (r *reporter) warn(format string, args ...any) {
	logger.Warn(format, args...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Warnings = append(r.report.Warnings, fmt.Sprintf(format, args...))
}

func (r *reporter) plan(change domain.PlannedChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Planned = append(r.report.Planned, change)
}

func (r *reporter) finish() *domain.RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.FinishedAt = time.Now()
	report := r.report
	return &report
}

// phasedPage is a page the upsert phase published or verified, queued
// for the link rewrite phase.
type phasedPage struct {
	key      domain.SourceKey
	path     string
	pageID   string
	title    string
	parentID string
	version  int
	body     string
	skipped  bool
}

// pageCollector gathers upsert-phase pages for the rewrite phase and
// tracks whether the run produced any new path-to-page mapping. Safe
// for concurrent use.
type pageCollector struct {
	mu       sync.Mutex
	pages    []phasedPage
	bindings int
}

func newPageCollector() *pageCollector {
	return &pageCollector{}
}

func (c *pageCollector) add(p phasedPage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pages = append(c.pages, p)
}

// bound records that a source path gained a page mapping this run.
// Skipped pages re-enter the rewrite phase only when that happened,
// so a run over an unchanged tree rewrites nothing.
func (c *pageCollector) bound() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bindings++
}

func (c *pageCollector) snapshot() (pages []phasedPage, newBindings bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]phasedPage{}, c.pages...), c.bindings > 0
}

// reconcileLabels brings a page's labels up to date: the managed label
// and any source-declared labels are added, legacy identity labels are
// stripped. Returns the number of legacy labels removed.
func reconcileLabels(ctx context.Context, remote driven.Remote, migrator *Migrator, pageID, managedLabel string, extra []string) (int, error) {
	current, err := remote.GetLabels(ctx, pageID)
	if err != nil {
		return 0, fmt.Errorf("read labels: %w", err)
	}

	have := make(map[string]bool, len(current))
	for _, label := range current {
		have[label] = true
	}

	var missing []string
	for _, label := range domain.SanitizeLabels(append([]string{managedLabel}, extra...)) {
		if !have[label] {
			missing = append(missing, label)
		}
	}
	if len(missing) > 0 {
		if err := remote.AddLabels(ctx, pageID, missing); err != nil {
			return 0, fmt.Errorf("add labels: %w", err)
		}
	}

	return migrator.Migrate(ctx, pageID, current), nil
}
