package models

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

// CurrentDocumentVersion is written into every saved document.
const CurrentDocumentVersion = "1.0"

// Document is the persisted form of the whole library.
type Document struct {
	Version       string    `json:"version"`
	ExportDate    time.Time `json:"exportDate"`
	Prompts       []*Prompt `json:"prompts"`
	RecentPrompts []string  `json:"recentPrompts"`
	Favorites     []string  `json:"favorites"`

	extra map[string]json.RawMessage
}

type documentAlias Document

var documentFields = knownFields(documentAlias{})

// MarshalJSON encodes the document, never emitting null collections.
func (d Document) MarshalJSON() ([]byte, error) {
	alias := documentAlias(d)
	if alias.Prompts == nil {
		alias.Prompts = []*Prompt{}
	}
	if alias.RecentPrompts == nil {
		alias.RecentPrompts = []string{}
	}
	if alias.Favorites == nil {
		alias.Favorites = []string{}
	}
	base, err := json.Marshal(alias)
	if err != nil {
		return nil, err
	}
	return mergeExtra(base, d.extra)
}

// UnmarshalJSON decodes a document and keeps unknown top-level fields.
func (d *Document) UnmarshalJSON(data []byte) error {
	var alias documentAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	extra, err := collectExtra(data, documentFields)
	if err != nil {
		return err
	}
	*d = Document(alias)
	d.extra = extra
	return nil
}

// Extra returns the unknown top-level fields carried by the document.
func (d *Document) Extra() map[string]json.RawMessage {
	return d.extra
}

// SetExtra replaces the unknown top-level fields.
func (d *Document) SetExtra(extra map[string]json.RawMessage) {
	d.extra = extra
}

// ImportResult counts what an import did with each incoming record.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
	Updated  int `json:"updated"`
	Total    int `json:"total"`
}

// Merge strategies for imports. Anything other than MergeOverwrite skips.
const (
	MergeSkip      = "skip"
	MergeOverwrite = "overwrite"
)

// Categories lists the distinct classification values in use.
type Categories struct {
	AIModels     []string `json:"aiModels"`
	Applications []string `json:"applications"`
}

// Statistics summarises the library.
type Statistics struct {
	Total     int       `json:"total"`
	Custom    int       `json:"custom"`
	Default   int       `json:"default"`
	Favorites int       `json:"favoritesCount"`
	Recent    int       `json:"recentCount"`
	TopUsed   []*Prompt `json:"topUsed"`
}

// NewPrompt carries the caller-supplied fields of a create call. Zero values
// are replaced with defaults.
type NewPrompt struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Content     string    `json:"content"`
	Category    *Category `json:"category,omitempty"`
	Tags        []string  `json:"tags"`
}

// PromptUpdate is a shallow merge over an existing prompt; nil fields are left
// alone. There is no way to express a change of id or isCustom.
type PromptUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Content     *string    `json:"content,omitempty"`
	Category    *Category  `json:"category,omitempty"`
	Tags        *[]string  `json:"tags,omitempty"`
	UsageCount  *int       `json:"usageCount,omitempty"`
	LastUsed    *time.Time `json:"lastUsed,omitempty"`
}

// knownFields returns the JSON names declared on a struct's exported fields.
func knownFields(v any) map[string]struct{} {
	t := reflect.TypeOf(v)
	fields := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := strings.Split(f.Tag.Get("json"), ",")[0]
		if name == "" {
			name = f.Name
		}
		fields[name] = struct{}{}
	}
	return fields
}

func collectExtra(data []byte, known map[string]struct{}) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, v := range raw {
		if _, ok := known[k]; ok {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}

func mergeExtra(base []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return base, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
