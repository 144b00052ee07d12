// Command migrate-frontmatter imports a directory of Markdown prompt files
// with YAML frontmatter into the prompt library.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dpshade/prompt-library/internal/config"
	"github.com/dpshade/prompt-library/internal/metrics"
	"github.com/dpshade/prompt-library/internal/models"
	"github.com/dpshade/prompt-library/internal/repository"
	"github.com/dpshade/prompt-library/internal/storage"
)

func main() {
	cmd := newCommand(os.Stdin)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

type options struct {
	cfgFile  string
	dataDir  string
	strategy string
	dryRun   bool
	yes      bool
}

func newCommand(stdin io.Reader) *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "migrate-frontmatter <dir>",
		Short: "Import Markdown prompt files into the prompt library",
		Long: `migrate-frontmatter walks <dir> for *.md files whose YAML frontmatter
carries at least an id, and merges them into the library. Files that cannot
be parsed are reported and skipped.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrate(cmd.Context(), args[0], opts, stdin, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&opts.cfgFile, "config", "", "config file (default: "+config.DefaultConfigPath()+")")
	cmd.Flags().StringVar(&opts.dataDir, "data-dir", "", "library data directory (default: data_dir setting)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", models.MergeSkip, "what to do with existing ids: skip or overwrite")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "list what would be imported and stop")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func migrate(ctx context.Context, dir string, opts options, stdin io.Reader, stdout, stderr io.Writer) error {
	prompts, failures, err := storage.LoadMarkdownDir(dir)
	if err != nil {
		return err
	}

	for _, f := range failures {
		fmt.Fprintf(stderr, "Warning: skipping %s: %v\n", f.Path, f.Err)
	}
	if len(prompts) == 0 {
		fmt.Fprintln(stdout, "No prompt files found - migration not needed")
		return nil
	}

	fmt.Fprintf(stdout, "Found %d prompts to migrate:\n", len(prompts))
	for _, p := range prompts {
		fmt.Fprintf(stdout, "  - %s (%s) [%s / %s]\n", p.ID, p.Title, p.Category.AIModel, p.Category.Application)
	}
	if opts.dryRun {
		fmt.Fprintln(stdout, "Dry run - nothing imported")
		return nil
	}

	if !opts.yes {
		fmt.Fprint(stdout, "\nProceed with migration? (y/N): ")
		response, _ := bufio.NewReader(stdin).ReadString('\n')
		if strings.ToLower(strings.TrimSpace(response)) != "y" {
			fmt.Fprintln(stdout, "Migration cancelled")
			return nil
		}
	}

	settings, err := config.NewManager(opts.cfgFile)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	dataDir := opts.dataDir
	if dataDir == "" {
		dataDir = settings.DataDir()
	}
	store, err := storage.New(storage.Options{
		Dir:             dataDir,
		BackupRetention: settings.BackupRetention(),
		Logger:          logger,
		OnPrune:         metrics.PruneRecorder,
	})
	if err != nil {
		return err
	}
	repo, err := repository.Open(ctx, repository.Options{Store: store, Settings: settings, Logger: logger})
	if err != nil {
		return err
	}

	result, err := repo.ImportDocument(ctx, &models.Document{Prompts: prompts}, opts.strategy)
	if cerr := repo.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Migration completed! %d imported, %d updated, %d skipped\n",
		result.Imported, result.Updated, result.Skipped)
	return nil
}
