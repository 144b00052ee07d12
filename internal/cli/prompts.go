package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dpshade/prompt-library/internal/clipboard"
	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/models"
	"github.com/dpshade/prompt-library/internal/renderer"
)

// filterFlags are the structural search filters shared by list and search.
type filterFlags struct {
	aiModel     string
	application string
	custom      string
	tags        []string
	expr        string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.aiModel, "model", "", "only prompts for this AI model")
	cmd.Flags().StringVar(&f.application, "app", "", "only prompts for this application")
	cmd.Flags().StringVar(&f.custom, "custom", "", "true for custom prompts, false for built-in ones")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "only prompts carrying any of these tags")
	cmd.Flags().StringVar(&f.expr, "expr", "", `boolean tag expression, e.g. "(code OR debug) AND NOT draft"`)
}

func (f *filterFlags) filters() (models.Filters, error) {
	filters := models.Filters{
		AIModel:     f.aiModel,
		Application: f.application,
		Tags:        f.tags,
	}
	switch strings.ToLower(f.custom) {
	case "":
	case "true", "yes":
		custom := true
		filters.IsCustom = &custom
	case "false", "no":
		custom := false
		filters.IsCustom = &custom
	default:
		return filters, apperrors.ValidationError("--custom must be true or false")
	}
	if f.expr != "" {
		expr, err := models.ParseTagExpression(f.expr)
		if err != nil {
			return filters, apperrors.ValidationError(err.Error())
		}
		filters.TagExpr = expr
	}
	return filters, nil
}

func (a *App) listCmd() *cobra.Command {
	var ff filterFlags
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List prompts in library order",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filters, err := ff.filters()
			if err != nil {
				return err
			}
			all, err := a.repo.GetAll()
			if err != nil {
				return err
			}
			prompts := make([]*models.Prompt, 0, len(all))
			for _, p := range all {
				if filters.Match(p) {
					prompts = append(prompts, p)
				}
			}
			return a.printPrompts(cmd.OutOrStdout(), prompts)
		},
	}
	ff.register(cmd)
	return cmd
}

func (a *App) searchCmd() *cobra.Command {
	var ff filterFlags
	var fuzzy bool
	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Search prompts by text, most used first",
		Long: `Search matches the query as a case-insensitive substring of the title,
description, content and tags. Results are ranked by usage count, then by
last use, then by creation date. With --fuzzy, results are ranked by fuzzy
match quality over title, description, id and tags instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters, err := ff.filters()
			if err != nil {
				return err
			}
			query := strings.Join(args, " ")
			var prompts []*models.Prompt
			if fuzzy {
				prompts, err = a.repo.FuzzySearch(query, filters)
			} else {
				prompts, err = a.repo.Search(query, filters)
			}
			if err != nil {
				return err
			}
			return a.printPrompts(cmd.OutOrStdout(), prompts)
		},
	}
	ff.register(cmd)
	cmd.Flags().BoolVar(&fuzzy, "fuzzy", false, "rank by fuzzy match instead of usage")
	return cmd
}

func (a *App) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get <id>",
		Aliases: []string{"show"},
		Short:   "Show a prompt",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.mustGet(args[0])
			if err != nil {
				return err
			}
			return a.printPrompt(cmd.OutOrStdout(), p)
		},
	}
}

// promptFlags hold the editable fields for create and update.
type promptFlags struct {
	title       string
	description string
	content     string
	contentFile string
	aiModel     string
	application string
	tags        []string
}

func (f *promptFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "prompt title")
	cmd.Flags().StringVar(&f.description, "description", "", "short description")
	cmd.Flags().StringVar(&f.content, "content", "", "prompt text")
	cmd.Flags().StringVar(&f.contentFile, "content-file", "", "read the prompt text from a file (- for stdin)")
	cmd.Flags().StringVar(&f.aiModel, "model", "", "AI model classification")
	cmd.Flags().StringVar(&f.application, "app", "", "application classification")
	cmd.Flags().StringSliceVar(&f.tags, "tag", nil, "tags (repeat or comma-separate)")
	cmd.MarkFlagsMutuallyExclusive("content", "content-file")
}

func (f *promptFlags) readContent(stdin io.Reader) (string, error) {
	if f.contentFile == "" {
		return f.content, nil
	}
	var data []byte
	var err error
	if f.contentFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(f.contentFile)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read content: %w", err)
	}
	return string(data), nil
}

func (a *App) createCmd() *cobra.Command {
	var pf promptFlags
	cmd := &cobra.Command{
		Use:     "create",
		Aliases: []string{"new"},
		Short:   "Add a custom prompt",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			content, err := pf.readContent(cmd.InOrStdin())
			if err != nil {
				return err
			}
			in := models.NewPrompt{
				Title:       pf.title,
				Description: pf.description,
				Content:     content,
				Tags:        pf.tags,
			}
			if pf.aiModel != "" || pf.application != "" {
				def := a.settings.DefaultCategory()
				in.Category = &models.Category{AIModel: pf.aiModel, Application: pf.application}
				if in.Category.AIModel == "" {
					in.Category.AIModel = def.AIModel
				}
				if in.Category.Application == "" {
					in.Category.Application = def.Application
				}
			}
			p, err := a.repo.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), p)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Created"), idStyle.Render(p.ID))
			return err
		},
	}
	pf.register(cmd)
	return cmd
}

func (a *App) updateCmd() *cobra.Command {
	var pf promptFlags
	cmd := &cobra.Command{
		Use:     "update <id>",
		Aliases: []string{"edit"},
		Short:   "Change fields of a prompt",
		Long:    "Only the flags given are changed; everything else is kept.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			current, err := a.mustGet(args[0])
			if err != nil {
				return err
			}

			var u models.PromptUpdate
			flags := cmd.Flags()
			if flags.Changed("title") {
				u.Title = &pf.title
			}
			if flags.Changed("description") {
				u.Description = &pf.description
			}
			if flags.Changed("content") || flags.Changed("content-file") {
				content, err := pf.readContent(cmd.InOrStdin())
				if err != nil {
					return err
				}
				u.Content = &content
			}
			if flags.Changed("model") || flags.Changed("app") {
				category := current.Category
				if flags.Changed("model") {
					category.AIModel = pf.aiModel
				}
				if flags.Changed("app") {
					category.Application = pf.application
				}
				u.Category = &category
			}
			if flags.Changed("tag") {
				u.Tags = &pf.tags
			}

			p, err := a.repo.Update(cmd.Context(), args[0], u)
			if err != nil {
				return err
			}
			if p == nil {
				return apperrors.NotFoundError("prompt " + args[0])
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), p)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Updated"), idStyle.Render(p.ID))
			return err
		},
	}
	pf.register(cmd)
	return cmd
}

func (a *App) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a prompt",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deleted, err := a.repo.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !deleted {
				return apperrors.NotFoundError("prompt " + args[0])
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render("Deleted"), idStyle.Render(args[0]))
			return err
		},
	}
}

// deliveryFlags drive how a chosen prompt leaves the library.
type deliveryFlags struct {
	copy      bool
	formatted bool
	vars      []string
}

func (f *deliveryFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.copy, "copy", "c", false, "copy to the clipboard instead of printing")
	cmd.Flags().BoolVar(&f.formatted, "formatted", false, "adapt the content to the prompt's AI model")
	cmd.Flags().StringArrayVar(&f.vars, "var", nil, `fill a placeholder, e.g. --var "INSERT CODE HERE=..."`)
}

func (a *App) useCmd() *cobra.Command {
	var df deliveryFlags
	cmd := &cobra.Command{
		Use:     "use <id>",
		Aliases: []string{"copy"},
		Short:   "Print or copy a prompt and record the use",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.mustGet(args[0])
			if err != nil {
				return err
			}
			return a.deliver(cmd, p, df)
		},
	}
	df.register(cmd)
	return cmd
}

func (a *App) lastCmd() *cobra.Command {
	var df deliveryFlags
	cmd := &cobra.Command{
		Use:   "last",
		Short: "Print or copy the most recently used prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.repo.Last()
			if err != nil {
				return err
			}
			if p == nil {
				return apperrors.NotFoundError("recently used prompt")
			}
			return a.deliver(cmd, p, df)
		},
	}
	df.register(cmd)
	return cmd
}

// deliver fills placeholders, hands the prompt to the output or clipboard
// and records the use. Without a clipboard utility a copy falls back to
// printing.
func (a *App) deliver(cmd *cobra.Command, p *models.Prompt, df deliveryFlags) error {
	content, missing := renderer.Render(p.Content, renderer.ParseAssignments(df.vars))
	if len(df.vars) > 0 && len(missing) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "%s unfilled placeholders: %s\n",
			warningStyle.Render("note:"), strings.Join(missing, ", "))
	}
	if df.formatted {
		content = clipboard.FormatForAIModel(content, p.Category.AIModel)
	}
	rendered := p.Clone()
	rendered.Content = content

	var sink clipboard.Sink
	if df.copy {
		sink = a.sink()
	}
	out := cmd.OutOrStdout()
	switch {
	case df.copy && sink == nil:
		fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", warningStyle.Render("note:"), clipboard.NewClipboardError().Message)
		fmt.Fprintln(out, content)
	case df.copy:
		if err := sink.Deliver(cmd.Context(), rendered); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", successStyle.Render("Copied:"), p.Title)
		if !a.settings.AutoCloseOnCopy() {
			fmt.Fprintln(out, content)
		}
	case a.asJSON:
		if err := printJSON(out, rendered); err != nil {
			return err
		}
	default:
		fmt.Fprintln(out, content)
	}
	return a.repo.MarkUsed(cmd.Context(), p.ID)
}

func (a *App) favoriteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "favorite <id>",
		Aliases: []string{"fav"},
		Short:   "Toggle a prompt's favorite mark",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fav, err := a.repo.ToggleFavorite(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.asJSON {
				return printJSON(cmd.OutOrStdout(), map[string]any{"id": args[0], "favorite": fav})
			}
			state := "Removed from favorites:"
			if fav {
				state = "Added to favorites:"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", successStyle.Render(state), idStyle.Render(args[0]))
			return err
		},
	}
}

func (a *App) favoritesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "List favorite prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prompts, err := a.repo.GetFavorites()
			if err != nil {
				return err
			}
			return a.printPrompts(cmd.OutOrStdout(), prompts)
		},
	}
}

func (a *App) recentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recent",
		Short: "List recently used prompts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			prompts, err := a.repo.GetRecent()
			if err != nil {
				return err
			}
			return a.printPrompts(cmd.OutOrStdout(), prompts)
		},
	}
}

func (a *App) mustGet(id string) (*models.Prompt, error) {
	p, err := a.repo.Get(id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.NotFoundError("prompt " + id)
	}
	return p, nil
}

// printPrompts prints prompts as a table, or as JSON with --json.
func (a *App) printPrompts(w io.Writer, prompts []*models.Prompt) error {
	if a.asJSON {
		if prompts == nil {
			prompts = []*models.Prompt{}
		}
		return printJSON(w, prompts)
	}
	if len(prompts) == 0 {
		_, err := fmt.Fprintln(w, mutedStyle.Render("No prompts found."))
		return err
	}

	t := newTable("ID", "Title", "Model", "Application", "Uses")
	for _, p := range prompts {
		t.Row(p.ID, truncate(p.Title, 40), p.Category.AIModel, p.Category.Application, fmt.Sprint(p.UsageCount))
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func (a *App) printPrompt(w io.Writer, p *models.Prompt) error {
	if a.asJSON {
		return printJSON(w, p)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", titleStyle.Render(p.Title))
	fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render("ID:"), idStyle.Render(p.ID))
	if p.Description != "" {
		fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render("Description:"), p.Description)
	}
	fmt.Fprintf(&b, "%s %s / %s\n", mutedStyle.Render("Category:"), p.Category.AIModel, p.Category.Application)
	if len(p.Tags) > 0 {
		fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render("Tags:"), tagStyle.Render(strings.Join(p.Tags, ", ")))
	}
	kind := "built-in"
	if p.IsCustom {
		kind = "custom"
	}
	fmt.Fprintf(&b, "%s %s, used %d times\n", mutedStyle.Render("Kind:"), kind, p.UsageCount)
	if p.LastUsed != nil {
		fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render("Last used:"), p.LastUsed.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render("Created:"), p.DateCreated.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render("Modified:"), p.DateModified.Local().Format("2006-01-02 15:04"))
	if labels := renderer.Placeholders(p.Content); len(labels) > 0 {
		fmt.Fprintf(&b, "%s %s\n", mutedStyle.Render("Placeholders:"), strings.Join(labels, ", "))
	}
	fmt.Fprintf(&b, "\n%s\n", p.Content)

	_, err := io.WriteString(w, b.String())
	return err
}
