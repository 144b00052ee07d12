package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dpshade/prompt-library/internal/api"
	"github.com/dpshade/prompt-library/internal/catalog"
	"github.com/dpshade/prompt-library/internal/config"
	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/models"
	"github.com/dpshade/prompt-library/internal/repository"
)

func (a *App) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the AI models and applications in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cats, err := a.repo.GetCategories()
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), cats)
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, titleStyle.Render("AI models"))
			for _, m := range cats.AIModels {
				fmt.Fprintf(w, "  %s\n", m)
			}
			fmt.Fprintln(w, titleStyle.Render("Applications"))
			for _, app := range cats.Applications {
				fmt.Fprintf(w, "  %s\n", app)
			}
			return nil
		},
	}
}

func (a *App) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise the library",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats, err := a.repo.GetStatistics()
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), stats)
			}

			w := cmd.OutOrStdout()
			summary := newTable("Total", "Custom", "Built-in", "Favorites", "Recent")
			summary.Row(
				fmt.Sprint(stats.Total),
				fmt.Sprint(stats.Custom),
				fmt.Sprint(stats.Default),
				fmt.Sprint(stats.Favorites),
				fmt.Sprint(stats.Recent),
			)
			fmt.Fprintln(w, summary.Render())

			if len(stats.TopUsed) == 0 {
				return nil
			}
			fmt.Fprintln(w, titleStyle.Render("Most used"))
			top := newTable("ID", "Title", "Uses")
			for _, p := range stats.TopUsed {
				top.Row(p.ID, truncate(p.Title, 40), fmt.Sprint(p.UsageCount))
			}
			fmt.Fprintln(w, top.Render())
			return nil
		},
	}
}

func (a *App) catalogCmd() *cobra.Command {
	var aiModel, application string
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Browse or restore the built-in prompts",
	}

	list := &cobra.Command{
		Use:         "list",
		Short:       "List the built-in prompts",
		Args:        cobra.NoArgs,
		Annotations: noRepository(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.printPrompts(cmd.OutOrStdout(), builtins(aiModel, application))
		},
	}

	restore := &cobra.Command{
		Use:   "restore",
		Short: "Re-add built-in prompts missing from the library",
		Long:  "Prompts already in the library, edited built-ins included, are left as they are.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc := &models.Document{Prompts: builtins(aiModel, application)}
			result, err := a.repo.ImportDocument(cmd.Context(), doc, models.MergeSkip)
			if err != nil {
				return err
			}
			return a.printImportResult(cmd.OutOrStdout(), result)
		},
	}

	for _, c := range []*cobra.Command{list, restore} {
		c.Flags().StringVar(&aiModel, "model", "", "only prompts for this AI model")
		c.Flags().StringVar(&application, "app", "", "only prompts for this application")
	}
	cmd.AddCommand(list, restore)
	return cmd
}

func builtins(aiModel, application string) []*models.Prompt {
	switch {
	case aiModel != "" && application != "":
		return catalog.ByCategory(aiModel, application)
	case aiModel != "":
		return catalog.ByAIModel(aiModel)
	case application != "":
		return catalog.ByApplication(application)
	}
	return catalog.Default()
}

func (a *App) exportCmd() *cobra.Command {
	var format, output string
	var render bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the library as json, csv or markdown",
		Long: `Export writes the library in the chosen format (default: the
export_format setting) to stdout or to --output. --render shows a markdown
export formatted for the terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format == "" {
				format = a.settings.ExportFormat()
			}
			content, err := a.repo.Export(format)
			if err != nil {
				return err
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
					return apperrors.PersistenceError("write export", err).WithContext("path", output)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Exported to"), output)
				return err
			}
			if render {
				if !strings.EqualFold(format, repository.FormatMarkdown) {
					return apperrors.ValidationError("--render needs --format markdown")
				}
				return renderMarkdown(cmd.OutOrStdout(), content, 100)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), content)
			if err == nil && !strings.HasSuffix(content, "\n") {
				_, err = io.WriteString(cmd.OutOrStdout(), "\n")
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "json, csv or markdown")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().BoolVar(&render, "render", false, "render markdown for the terminal")
	return cmd
}

func (a *App) importCmd() *cobra.Command {
	var strategy string
	var lenient bool
	cmd := &cobra.Command{
		Use:   "import <file|->",
		Short: "Merge prompts from a library document",
		Long: `Import reads a document exported with "export --format json" (or any
object with a "prompts" array). Existing ids are skipped unless --strategy
overwrite is given. Recent and favorite lists are never imported.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to read import file: %w", err)
			}

			result, err := a.repo.Import(cmd.Context(), data, strategy, repository.ImportOptions{Lenient: lenient})
			if err != nil {
				return err
			}
			return a.printImportResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", models.MergeSkip, "what to do with existing ids: skip or overwrite")
	cmd.Flags().BoolVar(&lenient, "lenient", false, "repair malformed JSON before parsing")
	return cmd
}

func (a *App) printImportResult(w io.Writer, result *models.ImportResult) error {
	if a.asJSON {
		return printJSON(w, result)
	}
	_, err := fmt.Fprintf(w, "%s %d imported, %d updated, %d skipped (%d total)\n",
		successStyle.Render("Import complete:"), result.Imported, result.Updated, result.Skipped, result.Total)
	return err
}

func (a *App) backupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "backups",
		Short:       "Inspect and restore library backups",
		Annotations: noRepository(),
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List backups, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			backups, err := a.store.ListBackups()
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), backups)
			}
			if len(backups) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("No backups yet."))
				return err
			}
			t := newTable("Name", "Size", "Modified")
			for _, b := range backups {
				t.Row(b.Name, fmt.Sprintf("%d B", b.Size), b.ModTime.Local().Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())

			days := a.settings.BackupFrequency()
			if time.Since(backups[0].ModTime) > time.Duration(days)*24*time.Hour {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s latest backup is older than %d days (%s)\n",
					warningStyle.Render("note:"), days, config.KeyBackupFrequency)
			}
			return nil
		},
	}

	restore := &cobra.Command{
		Use:   "restore <name>",
		Short: "Replace the library with a backup",
		Long:  "The current library is itself backed up before it is replaced.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.store.RestoreBackup(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d prompts)\n",
				successStyle.Render("Restored"), args[0], len(doc.Prompts))
			return err
		},
	}

	cmd.AddCommand(list, restore)
	return cmd
}

func (a *App) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Show or change preferences",
		Annotations: noRepository(),
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective preferences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := a.settings.Get()
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}
			t := newTable("Setting", "Value")
			t.Row(config.KeyDataDir, s.DataDir)
			t.Row(config.KeyMaxRecentPrompts, fmt.Sprint(s.MaxRecentPrompts))
			t.Row(config.KeyDefaultAIModel, s.DefaultAIModel)
			t.Row(config.KeyDefaultApplication, s.DefaultApplication)
			t.Row(config.KeyExportFormat, s.ExportFormat)
			t.Row(config.KeyBackupFrequency, fmt.Sprint(s.BackupFrequency))
			t.Row(config.KeyBackupRetention, fmt.Sprint(s.BackupRetention))
			t.Row(config.KeyShowNotifications, fmt.Sprint(s.ShowNotifications))
			t.Row(config.KeyAutoCloseOnCopy, fmt.Sprint(s.AutoCloseOnCopy))
			t.Row(config.KeyDebugMode, fmt.Sprint(s.DebugMode))
			fmt.Fprintln(cmd.OutOrStdout(), t.Render())
			_, err := fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("config file: "+a.settings.Path()))
			return err
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one preference",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.settings.Set(args[0], args[1]); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %s\n", successStyle.Render("Set"), args[0], args[1])
			return err
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.settings.Path()
			if _, err := os.Stat(path); err == nil && !force {
				return apperrors.ValidationError("config file already exists: " + path + " (use --force to overwrite)")
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Wrote"), path)
			return err
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(show, set, initCmd)
	return cmd
}

func (a *App) serveCmd() *cobra.Command {
	var addr string
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the library over a local HTTP API",
		Long: `serve exposes the library at /api/v1 and Prometheus metrics at
/metrics. It stops cleanly on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if watch {
				a.settings.OnChange(func(s config.Settings) {
					a.logger.Info("preferences reloaded",
						"max_recent_prompts", s.MaxRecentPrompts,
						"default_ai_model", s.DefaultAIModel,
						"default_application", s.DefaultApplication)
				})
				a.settings.WatchConfig()
			}

			srv := api.NewServer(api.Options{
				Repository:     a.repo,
				Addr:           addr,
				Logger:         a.logger,
				IncludeDetails: a.debug || a.settings.DebugMode(),
			})
			fmt.Fprintf(cmd.OutOrStdout(), "%s http://%s/api/v1\n", successStyle.Render("Serving"), srv.Addr())
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", api.DefaultAddr, "listen address")
	cmd.Flags().BoolVar(&watch, "watch-config", true, "reload preferences when the config file changes")
	return cmd
}
