package clipboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpshade/prompt-library/internal/models"
)

type recorder struct {
	copied   []string
	titles   []string
	bodies   []string
	writeErr error
	notifErr error
}

func (r *recorder) sink(notifications bool) *SystemSink {
	return &SystemSink{
		Write: func(text string) error {
			if r.writeErr != nil {
				return r.writeErr
			}
			r.copied = append(r.copied, text)
			return nil
		},
		Notify: func(_ context.Context, title, body string) error {
			r.titles = append(r.titles, title)
			r.bodies = append(r.bodies, body)
			return r.notifErr
		},
		Notifications: func() bool { return notifications },
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestDeliverCopiesAndNotifies(t *testing.T) {
	r := &recorder{}
	p := &models.Prompt{Title: "Code Review", Content: "Review this code\nline two"}

	require.NoError(t, r.sink(true).Deliver(context.Background(), p))
	assert.Equal(t, []string{"Review this code\nline two"}, r.copied)
	assert.Equal(t, []string{"Copied: Code Review"}, r.titles)
	assert.Equal(t, []string{"Review this code line two"}, r.bodies)
}

func TestDeliverWithoutNotifications(t *testing.T) {
	r := &recorder{}
	require.NoError(t, r.sink(false).Deliver(context.Background(), &models.Prompt{Content: "x"}))
	assert.Len(t, r.copied, 1)
	assert.Empty(t, r.titles)
}

func TestDeliverIgnoresNotifyFailure(t *testing.T) {
	r := &recorder{notifErr: errors.New("no daemon")}
	require.NoError(t, r.sink(true).Deliver(context.Background(), &models.Prompt{Content: "x"}))
	assert.Len(t, r.copied, 1)
}

func TestDeliverWriteFailure(t *testing.T) {
	r := &recorder{writeErr: NewClipboardError()}
	err := r.sink(true).Deliver(context.Background(), &models.Prompt{Content: "x"})

	var clipErr *ClipboardError
	require.ErrorAs(t, err, &clipErr)
	assert.Equal(t, runtime.GOOS, clipErr.OS)
	assert.Empty(t, r.titles)
}

func TestDeliverNilPrompt(t *testing.T) {
	r := &recorder{}
	assert.Error(t, r.sink(true).Deliver(context.Background(), nil))
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("é", 150)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"whitespace collapsed", "  hello\n\n\tworld  ", "hello world"},
		{"short", "short", "short"},
		{"exactly max", strings.Repeat("a", 80), strings.Repeat("a", 80)},
		{"one over max", strings.Repeat("a", 81), strings.Repeat("a", 77) + "..."},
		{"truncated by runes", long, strings.Repeat("é", 77) + "..."},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preview(tt.content))
		})
	}
}

func TestFormatForAIModel(t *testing.T) {
	tests := []struct {
		name    string
		content string
		model   string
		want    string
	}{
		{"claude bare task", "Summarize this text", "Claude", "Please help me with the following:\n\nSummarize this text"},
		{"claude case-insensitive model", "Summarize", "claude", "Please help me with the following:\n\nSummarize"},
		{"claude already polite", "Please summarize", "Claude", "Please summarize"},
		{"claude asks for help", "Help me debug", "Claude", "Help me debug"},
		{"chatgpt unchanged", "Summarize", "ChatGPT", "Summarize"},
		{"gemini unchanged", "Summarize", "Gemini", "Summarize"},
		{"other unchanged", "Summarize", "Other", "Summarize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatForAIModel(tt.content, tt.model))
		})
	}
}

func TestGetInstallInstructions(t *testing.T) {
	instructions := GetInstallInstructions()
	require.NotEmpty(t, instructions)

	switch runtime.GOOS {
	case "linux":
		assert.Contains(t, instructions, "xclip")
	case "darwin":
		assert.Contains(t, instructions, "pbcopy")
	case "windows":
		assert.Contains(t, instructions, "clip")
	}
}
