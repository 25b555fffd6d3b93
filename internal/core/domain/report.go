package domain

import (
	"fmt"
	"time"
)

// RunReport summarises the outcome of one publish run. Counters cover
// pages, not change records: a rename that updates one page counts once.
type RunReport struct {
	// RunID uniquely identifies the run for log correlation.
	RunID string

	// StartedAt is when the run began.
	StartedAt time.Time

	// FinishedAt is when the run completed or was cancelled.
	FinishedAt time.Time

	// Created counts pages created by this run.
	Created int

	// Updated counts pages whose body, title or parent was rewritten.
	Updated int

	// Skipped counts pages left untouched because nothing changed.
	Skipped int

	// Failed counts items that could not be published.
	Failed int

	// Migrated counts pages whose legacy identity labels were removed.
	Migrated int

	// Warnings lists non-fatal findings, such as links whose targets
	// could not be resolved to a page.
	Warnings []string

	// Failures details each failed item.
	Failures []ItemFailure

	// Planned lists the writes a dry run would have performed.
	// Empty outside dry runs.
	Planned []PlannedChange
}

// ItemFailure records one item the run could not publish. Other items
// are unaffected.
type ItemFailure struct {
	// Key identifies the failed item.
	Key SourceKey

	// Err is the underlying cause.
	Err error
}

// PlannedAction identifies the kind of write a dry run held back.
type PlannedAction string

const (
	// ActionCreate would have created a page.
	ActionCreate PlannedAction = "create"

	// ActionUpdate would have rewritten a page's content.
	ActionUpdate PlannedAction = "update"

	// ActionRewrite would have resolved links in a published page.
	ActionRewrite PlannedAction = "rewrite"
)

// PlannedChange records one write a dry run would have performed,
// with enough body context to show a diff.
type PlannedChange struct {
	// Key identifies the item, empty for link rewrites.
	Key SourceKey

	// Path is the tree-relative source path.
	Path string

	// PageID is the target page, empty for creates.
	PageID string

	// Title is the page title the write would have used.
	Title string

	// Action is the kind of write.
	Action PlannedAction

	// OldBody is the body before the write, empty for creates.
	OldBody string

	// NewBody is the body the write would have produced.
	NewBody string
}

// HasFailures returns true if any item failed.
func (r *RunReport) HasFailures() bool {
	return r.Failed > 0
}

// Duration returns the wall-clock duration of the run.
func (r *RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary returns a one-line human-readable digest of the run.
func (r *RunReport) Summary() string {
	return fmt.Sprintf("created %d, updated %d, skipped %d, failed %d, migrated %d, warnings %d",
		r.Created, r.Updated, r.Skipped, r.Failed, r.Migrated, len(r.Warnings))
}
