package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driving"
	"github.com/treeline-labs/confsync-cli/internal/logger"
	"github.com/treeline-labs/confsync-cli/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Publish continuously as files change",
	Long: `Watch the documentation tree and publish files as they change.

The whole tree is published once at startup, then edits are collected
and published in batches after the filesystem settles. Stop with
Ctrl-C.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	pub, err := resolvePublisher(cmd)
	if err != nil {
		return err
	}
	root, err := resolveDocRoot()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The initial pass brings the space up to date before the loop
	// starts waiting for edits.
	report, err := pub.Run(ctx, domain.RunRequest{Full: true})
	if err != nil {
		return err
	}
	cmd.Printf("Initial publish: %s\n", report.Summary())

	ch, err := watcher.New(root).Watch(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Watching %s for changes\n", root)

	return watchLoop(ctx, cmd, pub, ch)
}

// watchLoop publishes each settled batch until the watch channel
// closes. Item failures are reported and watching continues; only a
// fatal run error stops the loop.
func watchLoop(ctx context.Context, cmd *cobra.Command, pub driving.Publisher, ch <-chan domain.Changeset) error {
	for set := range ch {
		var paths []string
		for _, rec := range set.Records {
			if rec.Op == domain.OpDelete {
				logger.Info("Removed %s, the remote page is kept", rec.Path)
				continue
			}
			paths = append(paths, rec.Path)
		}
		if len(paths) == 0 {
			continue
		}

		report, err := pub.Run(ctx, domain.RunRequest{Paths: paths})
		if err != nil {
			if errors.Is(err, domain.ErrRunCancelled) {
				break
			}
			return err
		}
		cmd.Printf("Published %d changed files: %s\n", len(paths), report.Summary())
	}

	cmd.Println("Watch stopped.")
	return nil
}

// resolveDocRoot finds the directory to watch, from the flag or the
// config file.
func resolveDocRoot() (string, error) {
	if flagDocRoot != "" {
		return flagDocRoot, nil
	}
	store, err := loadStore()
	if err != nil {
		return "", err
	}
	cfg, err := store.Config()
	if err != nil {
		return "", err
	}
	if cfg.DocRoot == "" {
		return "", errors.New("doc root not configured")
	}
	return cfg.DocRoot, nil
}
