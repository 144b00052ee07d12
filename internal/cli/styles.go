package cli

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Colors adapt to the terminal background.
var (
	colorPrimary   = lipgloss.AdaptiveColor{Light: "125", Dark: "205"}
	colorSecondary = lipgloss.AdaptiveColor{Light: "25", Dark: "33"}
	colorAccent    = lipgloss.AdaptiveColor{Light: "166", Dark: "214"}
	colorSuccess   = lipgloss.AdaptiveColor{Light: "28", Dark: "10"}
	colorWarning   = lipgloss.AdaptiveColor{Light: "136", Dark: "11"}
	colorMuted     = lipgloss.AdaptiveColor{Light: "240", Dark: "244"}
	colorBorder    = lipgloss.AdaptiveColor{Light: "250", Dark: "238"}
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	idStyle      = lipgloss.NewStyle().Foreground(colorSecondary)
	tagStyle     = lipgloss.NewStyle().Foreground(colorAccent)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	successStyle = lipgloss.NewStyle().Foreground(colorSuccess)
	warningStyle = lipgloss.NewStyle().Foreground(colorWarning)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
)

// newTable returns a bordered table in the CLI's style.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

// truncate collapses whitespace and shortens s to limit runes, marking the
// cut with "...".
func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	if limit <= 3 {
		return string(r[:limit])
	}
	return string(r[:limit-3]) + "..."
}

// renderMarkdown renders markdown for the terminal. GLAMOUR_STYLE overrides
// the detected style.
func renderMarkdown(w io.Writer, markdown string, wordWrap int) error {
	styleOption := glamour.WithAutoStyle()
	if style := os.Getenv("GLAMOUR_STYLE"); style != "" {
		styleOption = glamour.WithStandardStyle(style)
	}
	r, err := glamour.NewTermRenderer(styleOption, glamour.WithWordWrap(wordWrap))
	if err != nil {
		return err
	}
	out, err := r.Render(markdown)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, out)
	return err
}
