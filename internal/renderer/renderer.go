// Package renderer fills the bracketed placeholders of prompts, such as
// [INSERT CODE HERE].
package renderer

import (
	"regexp"
	"strings"
)

// placeholder matches a single-line bracketed label. Brackets directly
// followed by "(" are markdown links and are skipped by the callers.
var placeholder = regexp.MustCompile(`\[([^\[\]\n]+)\]`)

type token struct {
	start, end int
	label      string
}

func tokens(content string) []token {
	var out []token
	for _, m := range placeholder.FindAllStringSubmatchIndex(content, -1) {
		if m[1] < len(content) && content[m[1]] == '(' {
			continue
		}
		out = append(out, token{start: m[0], end: m[1], label: content[m[2]:m[3]]})
	}
	return out
}

// Placeholders returns the distinct labels in content, in order of first
// appearance.
func Placeholders(content string) []string {
	var labels []string
	seen := make(map[string]bool)
	for _, t := range tokens(content) {
		if !seen[t.label] {
			seen[t.label] = true
			labels = append(labels, t.label)
		}
	}
	return labels
}

// Render substitutes every [LABEL] for which values has an exact key and
// returns the labels left unresolved.
func Render(content string, values map[string]string) (string, []string) {
	var b strings.Builder
	var missing []string
	seen := make(map[string]bool)
	last := 0
	for _, t := range tokens(content) {
		v, ok := values[t.label]
		if !ok {
			if !seen[t.label] {
				seen[t.label] = true
				missing = append(missing, t.label)
			}
			continue
		}
		b.WriteString(content[last:t.start])
		b.WriteString(v)
		last = t.end
	}
	b.WriteString(content[last:])
	return b.String(), missing
}

// ParseAssignments turns LABEL=value pairs into a values map. Pairs without
// '=' are ignored.
func ParseAssignments(pairs []string) map[string]string {
	values := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		label, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}
		values[strings.TrimSpace(label)] = value
	}
	return values
}
