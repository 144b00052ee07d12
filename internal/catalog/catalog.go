// Package catalog holds the built-in prompts used to seed an empty library.
package catalog

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/dpshade/prompt-library/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// CatalogEpoch is the creation and modification time of every built-in
// prompt. A fixed value keeps seeding reproducible across fresh starts.
var CatalogEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

type entry struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	AIModel     string   `yaml:"ai_model"`
	Application string   `yaml:"application"`
	Tags        []string `yaml:"tags"`
	Content     string   `yaml:"content"`
}

type file struct {
	Prompts []entry `yaml:"prompts"`
}

var entries = mustDecode(defaultsYAML)

func mustDecode(data []byte) []entry {
	entries, err := decode(data)
	if err != nil {
		panic(fmt.Sprintf("catalog: %v", err))
	}
	return entries
}

func decode(data []byte) ([]entry, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse built-in prompts: %w", err)
	}
	seen := make(map[string]bool, len(f.Prompts))
	for _, e := range f.Prompts {
		if e.ID == "" {
			return nil, fmt.Errorf("built-in prompt %q has no id", e.Title)
		}
		if seen[e.ID] {
			return nil, fmt.Errorf("duplicate built-in prompt id %q", e.ID)
		}
		seen[e.ID] = true
	}
	return f.Prompts, nil
}

// Default returns fresh copies of the built-in prompts in catalog order.
func Default() []*models.Prompt {
	prompts := make([]*models.Prompt, 0, len(entries))
	for _, e := range entries {
		prompts = append(prompts, e.toPrompt())
	}
	return prompts
}

// ByCategory returns built-in prompts matching both values; an empty value
// matches anything.
func ByCategory(aiModel, application string) []*models.Prompt {
	var out []*models.Prompt
	for _, p := range Default() {
		if aiModel != "" && p.Category.AIModel != aiModel {
			continue
		}
		if application != "" && p.Category.Application != application {
			continue
		}
		out = append(out, p)
	}
	return out
}

// ByAIModel returns built-in prompts for one model.
func ByAIModel(aiModel string) []*models.Prompt {
	return ByCategory(aiModel, "")
}

// ByApplication returns built-in prompts for one application.
func ByApplication(application string) []*models.Prompt {
	return ByCategory("", application)
}

func (e entry) toPrompt() *models.Prompt {
	tags := append([]string{}, e.Tags...)
	return &models.Prompt{
		ID:          e.ID,
		Title:       e.Title,
		Description: e.Description,
		Content:     e.Content,
		Category: models.Category{
			AIModel:     e.AIModel,
			Application: e.Application,
		},
		Tags:         tags,
		IsCustom:     false,
		DateCreated:  CatalogEpoch,
		DateModified: CatalogEpoch,
		UsageCount:   0,
	}
}
