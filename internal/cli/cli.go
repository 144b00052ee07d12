// Package cli implements the prompt-library command line on top of the
// repository. The root command opens the repository before any command that
// needs it and closes it afterwards.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dpshade/prompt-library/internal/clipboard"
	"github.com/dpshade/prompt-library/internal/config"
	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/metrics"
	"github.com/dpshade/prompt-library/internal/repository"
	"github.com/dpshade/prompt-library/internal/storage"
)

// skipRepository marks commands that work without an open repository.
const skipRepository = "skip-repository"

// App holds the state shared by every command of one invocation.
type App struct {
	Version string
	// Sink receives copied prompts; nil selects the system clipboard.
	Sink clipboard.Sink

	cfgFile string
	dataDir string
	debug   bool
	asJSON  bool

	logger   *slog.Logger
	settings *config.Manager
	store    *storage.Store
	repo     *repository.Repository

	clipboardAvailable func() bool
}

// NewApp returns an App reporting version.
func NewApp(version string) *App {
	return &App{Version: version, clipboardAvailable: clipboard.IsClipboardAvailable}
}

// Execute runs the command line with args and always releases the
// repository, even when a command fails.
func (a *App) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := a.RootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if cerr := a.closeRepository(ctx); err == nil {
		err = cerr
	}
	if err == nil || !apperrors.IsAppError(err) {
		// usage errors from cobra read best unwrapped
		return err
	}
	verbose := a.debug || (a.settings != nil && a.settings.DebugMode())
	return apperrors.NewCLIErrorHandler(verbose, a.logger).HandleError(err)
}

// RootCommand builds the command tree.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "prompt-library",
		Short: "Personal library of reusable AI prompts",
		Long: `prompt-library keeps a local collection of AI prompts, seeded with a
built-in catalog, and lets you search, copy, favorite and export them.

Data lives in prompts.json under the data directory, with rotating
timestamped backups next to it.`,
		Version:           a.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.closeRepository(cmd.Context())
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: "+config.DefaultConfigPath()+")")
	flags.StringVar(&a.dataDir, "data-dir", "", "library data directory (default: data_dir setting)")
	flags.BoolVar(&a.debug, "debug", false, "enable debug logging")
	flags.BoolVar(&a.asJSON, "json", false, "print results as JSON")

	root.AddCommand(
		a.listCmd(),
		a.getCmd(),
		a.searchCmd(),
		a.createCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.useCmd(),
		a.lastCmd(),
		a.favoriteCmd(),
		a.favoritesCmd(),
		a.recentCmd(),
		a.categoriesCmd(),
		a.catalogCmd(),
		a.statsCmd(),
		a.exportCmd(),
		a.importCmd(),
		a.backupsCmd(),
		a.configCmd(),
		a.serveCmd(),
		a.versionCmd(),
	)
	return root
}

// setup loads settings, builds the logger and, unless the command opts out,
// opens the repository.
func (a *App) setup(cmd *cobra.Command, _ []string) error {
	settings, err := config.NewManager(a.cfgFile)
	if err != nil {
		return err
	}
	a.settings = settings

	level := slog.LevelInfo
	if a.debug || settings.DebugMode() {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	if a.dataDir == "" {
		a.dataDir = settings.DataDir()
	}
	a.store, err = storage.New(storage.Options{
		Dir:             a.dataDir,
		BackupRetention: settings.BackupRetention(),
		Logger:          a.logger,
		OnPrune:         metrics.PruneRecorder,
	})
	if err != nil {
		return err
	}

	if skips(cmd) {
		return nil
	}
	repo, err := repository.Open(cmd.Context(), repository.Options{
		Store:    a.store,
		Settings: settings,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}
	a.repo = repo
	return nil
}

func (a *App) closeRepository(ctx context.Context) error {
	if a.repo == nil {
		return nil
	}
	repo := a.repo
	a.repo = nil
	return repo.Close(ctx)
}

func skips(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipRepository] == "true" {
			return true
		}
	}
	return false
}

func noRepository() map[string]string {
	return map[string]string{skipRepository: "true"}
}

// sink returns where copies go, or nil when no clipboard utility is
// installed.
func (a *App) sink() clipboard.Sink {
	if a.Sink != nil {
		return a.Sink
	}
	if !a.clipboardAvailable() {
		return nil
	}
	return clipboard.NewSystemSink(a.settings.ShowNotifications, a.logger)
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *App) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print version information",
		Args:        cobra.NoArgs,
		Annotations: noRepository(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]string{"version": a.Version})
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "prompt-library version %s\n", a.Version)
			return err
		},
	}
}
