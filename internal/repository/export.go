package repository

import (
	"fmt"
	"strings"

	apperrors "github.com/dpshade/prompt-library/internal/errors"
	"github.com/dpshade/prompt-library/internal/models"
	"github.com/dpshade/prompt-library/internal/storage"
)

// Export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// ExportFormats lists the accepted Export format tokens.
var ExportFormats = []string{FormatJSON, FormatCSV, FormatMarkdown}

const markdownTitle = "AI Prompt Library"

var csvHeader = []string{"Title", "Description", "AI Model", "Application", "Tags", "Content"}

// Export renders the library as json (the full document), csv or markdown.
func (r *Repository) Export(format string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ready(); err != nil {
		return "", err
	}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case FormatJSON:
		data, err := storage.EncodeDocument(r.snapshotLocked())
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.ErrCodeInternalError, "Failed to encode export")
		}
		return string(data), nil
	case FormatCSV:
		return exportCSV(r.allLocked()), nil
	case FormatMarkdown:
		return r.exportMarkdown(r.allLocked()), nil
	default:
		return "", apperrors.UnsupportedFormatError(format)
	}
}

// exportCSV quotes every field unconditionally, which encoding/csv cannot do.
func exportCSV(prompts []*models.Prompt) string {
	rows := make([]string, 0, len(prompts)+1)
	rows = append(rows, strings.Join(csvHeader, ","))
	for _, p := range prompts {
		fields := []string{
			p.Title,
			p.Description,
			p.Category.AIModel,
			p.Category.Application,
			strings.Join(p.Tags, "; "),
			p.Content,
		}
		for i, f := range fields {
			fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		}
		rows = append(rows, strings.Join(fields, ","))
	}
	return strings.Join(rows, "\n")
}

func (r *Repository) exportMarkdown(prompts []*models.Prompt) string {
	var groups []string
	byModel := make(map[string][]*models.Prompt)
	for _, p := range prompts {
		model := p.Category.AIModel
		if _, seen := byModel[model]; !seen {
			groups = append(groups, model)
		}
		byModel[model] = append(byModel[model], p)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", markdownTitle)
	fmt.Fprintf(&b, "Exported on %s\n\n", r.clock().Format("January 2, 2006"))

	for _, model := range groups {
		fmt.Fprintf(&b, "## %s\n\n", model)
		for _, p := range byModel[model] {
			fmt.Fprintf(&b, "### %s\n\n", p.Title)
			if p.Description != "" {
				fmt.Fprintf(&b, "%s\n\n", p.Description)
			}
			fmt.Fprintf(&b, "**Application:** %s\n\n", p.Category.Application)
			if len(p.Tags) > 0 {
				fmt.Fprintf(&b, "**Tags:** %s\n\n", strings.Join(p.Tags, ", "))
			}
			fence := codeFence(p.Content)
			b.WriteString(fence + "\n")
			b.WriteString(p.Content)
			b.WriteString("\n" + fence + "\n\n")
			b.WriteString("---\n\n")
		}
	}
	return b.String()
}

// codeFence returns a backtick fence longer than any backtick run inside
// content, so fenced content that itself holds code blocks stays intact.
func codeFence(content string) string {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	return fence
}
