package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/diff"
)

// diffMaxBytes bounds the bodies a dry-run diff is computed over.
// Larger changes print a placeholder instead of stalling a run on a
// pathological page.
const diffMaxBytes = 256 << 10

var (
	flagChanges     string
	flagDryRun      bool
	flagAdopt       bool
	flagConcurrency int
)

var publishCmd = &cobra.Command{
	Use:   "publish [paths...]",
	Short: "Publish Markdown files to the space",
	Long: `Publish Markdown files to the configured Confluence space.

Without arguments the whole documentation tree is published. A change
listing in git name-status form restricts the run to what it names,
and explicit paths publish just those files.

Examples:
  # Publish the whole tree
  confsync publish

  # Publish what a merge request touched
  git diff --name-status origin/main... | confsync publish --changes -

  # Preview a single file without writing
  confsync publish --dry-run guides/setup.md`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVar(&flagChanges, "changes", "", "change listing file, - for stdin")
	publishCmd.Flags().BoolVar(&flagDryRun, "dry-run", false, "render and plan but write nothing")
	publishCmd.Flags().BoolVar(&flagAdopt, "adopt", false, "adopt existing pages that collide on title")
	publishCmd.Flags().IntVar(&flagConcurrency, "concurrency", 0, "pages published in parallel")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	pub, err := resolvePublisher(cmd)
	if err != nil {
		return err
	}

	req, err := publishRequest(cmd, args)
	if err != nil {
		return err
	}

	report, err := pub.Run(context.Background(), req)
	if err != nil {
		return err
	}

	printReport(cmd, report)
	if report.HasFailures() {
		return fmt.Errorf("%w: %d items did not publish", errItemsFailed, report.Failed)
	}
	return nil
}

// publishRequest decides the run's scope from arguments and flags.
func publishRequest(cmd *cobra.Command, args []string) (domain.RunRequest, error) {
	switch {
	case len(args) > 0 && flagChanges != "":
		return domain.RunRequest{}, errors.New("give explicit paths or --changes, not both")
	case len(args) > 0:
		return domain.RunRequest{Paths: args}, nil
	case flagChanges != "":
		text, err := readChanges(cmd, flagChanges)
		if err != nil {
			return domain.RunRequest{}, err
		}
		return domain.RunRequest{Changes: text}, nil
	default:
		return domain.RunRequest{Full: true}, nil
	}
}

// readChanges loads the change listing from a file or stdin.
func readChanges(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read change listing from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read change listing: %w", err)
	}
	return string(data), nil
}

// printReport writes the run outcome to stdout: planned diffs for dry
// runs, then warnings, failures and the counter summary.
func printReport(cmd *cobra.Command, report *domain.RunReport) {
	for _, pc := range report.Planned {
		printPlan(cmd, pc)
	}
	if len(report.Warnings) > 0 {
		cmd.Printf("Warnings (%d):\n", len(report.Warnings))
		for _, warn := range report.Warnings {
			cmd.Printf("  %s\n", warn)
		}
	}
	if len(report.Failures) > 0 {
		cmd.Printf("Failed items (%d):\n", len(report.Failures))
		for _, failure := range report.Failures {
			cmd.Printf("  %s: %v\n", failure.Key, failure.Err)
		}
	}

	prefix := "Publish"
	if flagDryRun {
		prefix = "Dry run"
	}
	cmd.Printf("%s: %s\n", prefix, report.Summary())
}

// printPlan writes one held-back write with a unified diff of what it
// would have changed.
func printPlan(cmd *cobra.Command, pc domain.PlannedChange) {
	opts := diff.Options{MaxBytes: diffMaxBytes}

	var body string
	switch pc.Action {
	case domain.ActionCreate:
		cmd.Printf("would create %q (%s)\n", pc.Title, pc.Path)
		body, _ = diff.Added("b/"+pc.Path, pc.NewBody, opts)
	case domain.ActionUpdate:
		cmd.Printf("would update %q (page %s, %s)\n", pc.Title, pc.PageID, pc.Path)
		body, _ = diff.Unified("a/"+pc.Path, "b/"+pc.Path, pc.OldBody, pc.NewBody, opts)
	case domain.ActionRewrite:
		cmd.Printf("would rewrite links in %q (page %s)\n", pc.Title, pc.PageID)
		body, _ = diff.Unified("a/"+pc.Path, "b/"+pc.Path, pc.OldBody, pc.NewBody, opts)
	}
	if body != "" {
		cmd.Println(body)
	}
}
