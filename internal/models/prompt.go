package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Category is the free-form classification of a prompt. Neither field is an
// enum; the values are whatever the user chose.
type Category struct {
	AIModel     string `json:"aiModel" yaml:"ai_model"`
	Application string `json:"application" yaml:"application"`
}

// Fallback classification for prompts created without one.
const (
	OtherAIModel     = "Other"
	OtherApplication = "Other"
	UntitledPrompt   = "Untitled Prompt"
)

// DefaultCategory returns the {Other, Other} classification.
func DefaultCategory() Category {
	return Category{AIModel: OtherAIModel, Application: OtherApplication}
}

// Prompt is a stored prompt template plus classification metadata and usage
// statistics.
type Prompt struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Content      string     `json:"content"`
	Category     Category   `json:"category"`
	Tags         []string   `json:"tags"`
	IsCustom     bool       `json:"isCustom"`
	DateCreated  time.Time  `json:"dateCreated"`
	DateModified time.Time  `json:"dateModified"`
	UsageCount   int        `json:"usageCount"`
	LastUsed     *time.Time `json:"lastUsed,omitempty"`

	// extra holds fields found on disk that this version does not know about
	extra map[string]json.RawMessage
}

// promptAlias drops the JSON methods so the default encoding can be reused.
type promptAlias Prompt

var promptFields = knownFields(promptAlias{})

// MarshalJSON encodes the prompt and re-emits any unknown fields it was
// decoded with.
func (p Prompt) MarshalJSON() ([]byte, error) {
	alias := promptAlias(p)
	if alias.Tags == nil {
		alias.Tags = []string{}
	}
	base, err := json.Marshal(alias)
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, p.extra)
}

// UnmarshalJSON decodes a prompt, keeping unknown fields for the next save.
func (p *Prompt) UnmarshalJSON(data []byte) error {
	var alias promptAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	extra, err := collectExtra(data, promptFields)
	if err != nil {
		return err
	}
	*p = Prompt(alias)
	p.extra = extra
	return nil
}

// Extra returns the unknown fields carried by this prompt.
func (p *Prompt) Extra() map[string]json.RawMessage {
	return p.extra
}

// Clone returns a deep copy that shares no memory with p.
func (p *Prompt) Clone() *Prompt {
	if p == nil {
		return nil
	}
	c := *p
	if p.Tags != nil {
		c.Tags = append(make([]string, 0, len(p.Tags)), p.Tags...)
	}
	if p.LastUsed != nil {
		t := *p.LastUsed
		c.LastUsed = &t
	}
	if p.extra != nil {
		c.extra = make(map[string]json.RawMessage, len(p.extra))
		for k, v := range p.extra {
			c.extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

// HasTag reports whether the prompt carries tag exactly.
func (p *Prompt) HasTag(tag string) bool {
	for _, t := range p.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Haystack is the lowercase text that free-text search matches against.
func (p *Prompt) Haystack() string {
	parts := make([]string, 0, 3+len(p.Tags))
	parts = append(parts, p.Title, p.Description, p.Content)
	parts = append(parts, p.Tags...)
	return strings.ToLower(strings.Join(parts, " "))
}

// Summary is a single display line: title, trimmed description and tags.
func (p *Prompt) Summary() string {
	var parts []string

	title := cleanString(p.Title)
	if title == "" {
		title = p.ID
	}
	parts = append(parts, title)

	if p.Description != "" {
		desc := cleanString(p.Description)
		const maxDescription = 60
		if len([]rune(desc)) > maxDescription {
			desc = string([]rune(desc)[:maxDescription-3]) + "..."
		}
		parts = append(parts, desc)
	}

	if len(p.Tags) > 0 {
		parts = append(parts, "Tags: "+strings.Join(p.Tags, ", "))
	}

	return strings.Join(parts, " • ")
}

// cleanString flattens control characters and collapses whitespace so the
// value fits on one terminal line.
func cleanString(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			b.WriteRune(' ')
		case r >= 32 && r != 127:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
