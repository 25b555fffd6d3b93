// Package cli implements the command-line driving adapter. Commands
// assemble the configuration, wire the service graph and translate
// run outcomes into process exit codes. All durable state lives on
// the remote pages; the CLI itself keeps none.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/treeline-labs/confsync-cli/internal/adapters/driven/config/file"
	"github.com/treeline-labs/confsync-cli/internal/adapters/driven/confluence"
	"github.com/treeline-labs/confsync-cli/internal/adapters/driven/fsws"
	"github.com/treeline-labs/confsync-cli/internal/core/domain"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driven"
	"github.com/treeline-labs/confsync-cli/internal/core/ports/driving"
	"github.com/treeline-labs/confsync-cli/internal/core/services"
	"github.com/treeline-labs/confsync-cli/internal/logger"
	"github.com/treeline-labs/confsync-cli/internal/renderers/storage"
)

// version is set at build time via ldflags.
var version = "dev"

// Services used by the commands. Left nil in production and built on
// first use; tests inject mocks here.
var (
	publisher driving.Publisher
	janitor   driving.Janitor
)

// errItemsFailed marks a run that completed but left items
// unpublished. Execute maps it to its own exit code so callers can
// tell a partial run from a failed one.
var errItemsFailed = errors.New("run completed with failures")

// Persistent flags shared by every command.
var (
	flagConfig  string
	flagVerbose bool
	flagBaseURL string
	flagSpace   string
	flagRootID  string
	flagDocRoot string
	flagLabel   string
)

var rootCmd = &cobra.Command{
	Use:   "confsync",
	Short: "Publish a Markdown tree to Confluence",
	Long: `confsync publishes a directory of Markdown files to a Confluence
space, one page per file, nested to mirror the directory layout.

Each published page carries a content property recording which source
file it came from, so later runs update pages in place through renames
and reorganisations instead of creating duplicates. Publishing is
incremental: a change listing, an explicit set of paths or a full tree
walk decides what is touched.

Configuration is read from confsync.toml in the working directory.
CONFSYNC_BASE_URL, CONFSYNC_SPACE, CONFSYNC_ROOT_ID and CONFSYNC_TOKEN
override the file; flags override both.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(flagVerbose)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&flagConfig, "config", "c", "", "config file (default confsync.toml)")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "verbose progress output on stderr")
	flags.StringVar(&flagBaseURL, "base-url", "", "Confluence base URL")
	flags.StringVar(&flagSpace, "space", "", "space key")
	flags.StringVar(&flagRootID, "root-id", "", "root page ID all content is parented under")
	flags.StringVar(&flagDocRoot, "doc-root", "", "local directory holding the Markdown tree")
	flags.StringVar(&flagLabel, "label", "", "label marking managed pages")
}

// Execute runs the CLI and returns the process exit code: 0 for a
// clean run, 2 when a run completed with item failures, 1 for
// everything else.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		if errors.Is(err, errItemsFailed) {
			return 2
		}
		return 1
	}
	return 0
}

// runtime is the assembled service graph for one invocation.
type runtime struct {
	cfg       domain.Config
	publisher driving.Publisher
	janitor   driving.Janitor
}

// resolvePublisher returns the injected publisher or builds the real
// service graph from configuration.
func resolvePublisher(cmd *cobra.Command) (driving.Publisher, error) {
	if publisher != nil {
		return publisher, nil
	}
	rt, err := buildRuntime(cmd)
	if err != nil {
		return nil, err
	}
	return rt.publisher, nil
}

// resolveJanitor returns the injected janitor or builds the real
// service graph from configuration.
func resolveJanitor(cmd *cobra.Command) (driving.Janitor, error) {
	if janitor != nil {
		return janitor, nil
	}
	rt, err := buildRuntime(cmd)
	if err != nil {
		return nil, err
	}
	return rt.janitor, nil
}

// buildRuntime assembles configuration from file, environment and
// flags, then wires the adapters and services.
func buildRuntime(cmd *cobra.Command) (*runtime, error) {
	store, err := loadStore()
	if err != nil {
		return nil, err
	}

	cfg, err := store.Config()
	if err != nil {
		return nil, err
	}
	applyFlags(&cfg)
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Token == "" {
		cfg.Token = promptToken(cmd)
	}

	remote, err := confluence.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	renderer := storage.New(renderOptions(store))
	ws := fsws.NewDir(cfg.DocRoot)

	return &runtime{
		cfg:       cfg,
		publisher: services.NewPublishService(remote, ws, renderer, cfg),
		janitor:   services.NewJanitorService(remote, cfg),
	}, nil
}

// loadStore opens the config store. A missing default file is fine,
// an explicitly named one must exist.
func loadStore() (driven.ConfigStore, error) {
	store, err := file.NewStore(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagConfig != "" && !store.Found() {
		return nil, fmt.Errorf("config file %s not found", store.Path())
	}
	return store, nil
}

// applyFlags overlays flag values onto the configuration. Empty flags
// leave the configured value alone.
func applyFlags(cfg *domain.Config) {
	if flagBaseURL != "" {
		cfg.BaseURL = flagBaseURL
	}
	if flagSpace != "" {
		cfg.SpaceKey = flagSpace
	}
	if flagRootID != "" {
		cfg.RootPageID = flagRootID
	}
	if flagDocRoot != "" {
		cfg.DocRoot = flagDocRoot
	}
	if flagLabel != "" {
		cfg.ManagedLabel = flagLabel
	}
	if flagConcurrency > 0 {
		cfg.Concurrency = flagConcurrency
	}
	if flagAdopt {
		cfg.AdoptExisting = true
	}
	cfg.DryRun = flagDryRun
}

// renderOptions overlays the [render] config section onto the default
// rendering options.
func renderOptions(store driven.ConfigStore) storage.Options {
	opts := storage.DefaultOptions()
	opts.TOC = store.GetBoolOr("render.toc", opts.TOC)
	opts.TOCMinLevel = store.GetIntOr("render.toc_min_level", opts.TOCMinLevel)
	opts.TOCMaxLevel = store.GetIntOr("render.toc_max_level", opts.TOCMaxLevel)
	opts.NumberHeadings = store.GetBoolOr("render.number_headings", opts.NumberHeadings)
	opts.NumberDepth = store.GetIntOr("render.number_depth", opts.NumberDepth)
	opts.CodeTheme = store.GetStringOr("render.code_theme", opts.CodeTheme)
	opts.CodeLineNumbers = store.GetBoolOr("render.code_line_numbers", opts.CodeLineNumbers)
	return opts
}

// promptToken asks for the API token when one is configured nowhere
// else. Skipped outside a terminal; the remote then rejects writes
// with a clear authentication error.
func promptToken(cmd *cobra.Command) string {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return ""
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Confluence API token: ")
	token, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return ""
	}
	return string(token)
}
