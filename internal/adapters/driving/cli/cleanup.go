package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	flagPurge bool
	flagYes   bool
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "List or delete the managed pages",
	Long: `List every page carrying the managed label under the configured
root. With --purge the listed pages are deleted, tearing the published
section down.

Purging removes the pages and their recorded identities. A later
publish run recreates everything from the sources.

Examples:
  # See what confsync currently manages
  confsync cleanup

  # Tear the section down without a prompt
  confsync cleanup --purge --yes`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().BoolVar(&flagPurge, "purge", false, "delete every managed page after listing")
	cleanupCmd.Flags().BoolVar(&flagYes, "yes", false, "skip the confirmation prompt")
	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	jan, err := resolveJanitor(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()

	pages, err := jan.List(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Found %d managed pages\n", len(pages))
	for _, page := range pages {
		cmd.Printf("%s\t%s\n", page.ID, page.Title)
	}

	if !flagPurge || len(pages) == 0 {
		return nil
	}
	if !flagYes && !confirm(cmd, fmt.Sprintf("Delete all %d pages? [y/N]: ", len(pages))) {
		cmd.Println("Aborted.")
		return nil
	}

	deleted, err := jan.Purge(ctx)
	cmd.Printf("Deleted %d pages.\n", deleted)
	if err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	return nil
}

// confirm prints the prompt and reads one line. Anything but an
// explicit yes declines.
func confirm(cmd *cobra.Command, prompt string) bool {
	cmd.Print(prompt)
	reader := bufio.NewReader(cmd.InOrStdin())
	input, _ := reader.ReadString('\n')
	input = strings.ToLower(strings.TrimSpace(input))
	return input == "y" || input == "yes"
}
