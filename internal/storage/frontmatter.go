package storage

import (
	"bufio"
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dpshade/prompt-library/internal/models"
	"gopkg.in/yaml.v3"
)

// Frontmatter is the YAML header of a markdown prompt file.
type Frontmatter struct {
	ID          string    `yaml:"id"`
	Title       string    `yaml:"title"`
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Summary     string    `yaml:"summary"`
	Tags        []string  `yaml:"tags"`
	AIModel     string    `yaml:"ai_model"`
	Application string    `yaml:"application"`
	CreatedAt   time.Time `yaml:"created_at"`
	UpdatedAt   time.Time `yaml:"updated_at"`
}

// ParseMarkdownPrompt reads a markdown file with YAML frontmatter into a
// prompt. Missing classification falls back to {Other, Other}; missing dates
// fall back to modTime.
func ParseMarkdownPrompt(content []byte, modTime time.Time) (*models.Prompt, error) {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	if !scanner.Scan() || strings.TrimSpace(scanner.Text()) != "---" {
		return nil, fmt.Errorf("missing frontmatter delimiter")
	}

	var header []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			closed = true
			break
		}
		header = append(header, line)
	}
	if !closed {
		return nil, fmt.Errorf("unterminated frontmatter")
	}

	var fm Frontmatter
	if err := yaml.Unmarshal([]byte(strings.Join(header, "\n")), &fm); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}

	var body []string
	for scanner.Scan() {
		body = append(body, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read prompt body: %w", err)
	}
	// keep the body as written apart from surrounding blank space
	text := strings.TrimRight(strings.TrimLeft(strings.Join(body, "\n"), " \t\n"), " \t\n")

	return fm.toPrompt(text, modTime)
}

func (fm Frontmatter) toPrompt(content string, modTime time.Time) (*models.Prompt, error) {
	if fm.ID == "" {
		return nil, fmt.Errorf("frontmatter has no id")
	}

	title := fm.Title
	if title == "" {
		title = fm.Name
	}
	if title == "" {
		title = models.UntitledPrompt
	}
	description := fm.Description
	if description == "" {
		description = fm.Summary
	}

	category := models.DefaultCategory()
	if fm.AIModel != "" {
		category.AIModel = fm.AIModel
	}
	if fm.Application != "" {
		category.Application = fm.Application
	}

	created := fm.CreatedAt
	if created.IsZero() {
		created = modTime
	}
	modified := fm.UpdatedAt
	if modified.IsZero() || modified.Before(created) {
		modified = created
	}

	tags := fm.Tags
	if tags == nil {
		tags = []string{}
	}

	return &models.Prompt{
		ID:           fm.ID,
		Title:        title,
		Description:  description,
		Content:      content,
		Category:     category,
		Tags:         tags,
		IsCustom:     true,
		DateCreated:  created.UTC(),
		DateModified: modified.UTC(),
	}, nil
}

// MarkdownFailure records a file that could not be parsed.
type MarkdownFailure struct {
	Path string
	Err  error
}

// LoadMarkdownDir walks dir for *.md prompt files. Unparsable files are
// reported in the second return value and do not stop the walk.
func LoadMarkdownDir(dir string) ([]*models.Prompt, []MarkdownFailure, error) {
	var prompts []*models.Prompt
	var failures []MarkdownFailure

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".md") {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			failures = append(failures, MarkdownFailure{Path: path, Err: err})
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			failures = append(failures, MarkdownFailure{Path: path, Err: err})
			return nil
		}
		prompt, err := ParseMarkdownPrompt(content, info.ModTime())
		if err != nil {
			failures = append(failures, MarkdownFailure{Path: path, Err: err})
			return nil
		}
		prompts = append(prompts, prompt)
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk %s: %w", dir, err)
	}

	sort.Slice(prompts, func(i, j int) bool { return prompts[i].ID < prompts[j].ID })
	return prompts, failures, nil
}
