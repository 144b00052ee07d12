// Package clipboard delivers prompt content to the system clipboard.
package clipboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strings"
	"unicode/utf8"

	"github.com/atotto/clipboard"

	"github.com/dpshade/prompt-library/internal/models"
)

// PreviewLength is the maximum number of runes shown in a copy notification,
// ellipsis included.
const PreviewLength = 80

// claudePreamble is prepended for Claude when content reads as a bare task.
const claudePreamble = "Please help me with the following:\n\n"

// Sink receives a prompt chosen by the user.
type Sink interface {
	Deliver(ctx context.Context, p *models.Prompt) error
}

// ClipboardError represents an error when no clipboard utility is available
type ClipboardError struct {
	OS      string
	Message string
}

func (e *ClipboardError) Error() string {
	return e.Message
}

// NewClipboardError creates a new ClipboardError with helpful installation instructions
func NewClipboardError() *ClipboardError {
	return &ClipboardError{
		OS:      runtime.GOOS,
		Message: "no clipboard utility found. " + GetInstallInstructions(),
	}
}

// Writer abstracts the clipboard backend.
type Writer func(text string) error

// Notifier shows a desktop notification.
type Notifier func(ctx context.Context, title, body string) error

// SystemSink copies content to the OS clipboard and optionally notifies.
type SystemSink struct {
	Write  Writer
	Notify Notifier
	// Notifications reports whether a notification should be shown; nil
	// means never.
	Notifications func() bool
	Logger        *slog.Logger
}

// NewSystemSink returns a sink backed by atotto/clipboard and the platform
// notifier.
func NewSystemSink(notifications func() bool, logger *slog.Logger) *SystemSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SystemSink{
		Write:         Copy,
		Notify:        notify,
		Notifications: notifications,
		Logger:        logger,
	}
}

// Deliver writes the prompt content to the clipboard. Notification failures
// are logged and never fail the delivery.
func (s *SystemSink) Deliver(ctx context.Context, p *models.Prompt) error {
	if p == nil {
		return errors.New("no prompt to copy")
	}
	if err := s.Write(p.Content); err != nil {
		return err
	}
	if s.Notify == nil || s.Notifications == nil || !s.Notifications() {
		return nil
	}
	if err := s.Notify(ctx, NotificationTitle(p), Preview(p.Content)); err != nil {
		s.Logger.Debug("Notification failed", "error", err)
	}
	return nil
}

// NotificationTitle is the heading of the copy notification.
func NotificationTitle(p *models.Prompt) string {
	return "Copied: " + p.Title
}

// Preview collapses whitespace runs in content to single spaces and cuts the
// result to PreviewLength runes, ending in "..." when cut.
func Preview(content string) string {
	cleaned := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(cleaned) <= PreviewLength {
		return cleaned
	}
	runes := []rune(cleaned)
	return string(runes[:PreviewLength-3]) + "..."
}

// FormatForAIModel adapts content to the conventions of aiModel. Only
// Claude is changed: content mentioning neither "Please" nor "Help" gets an
// explicit request preamble.
func FormatForAIModel(content, aiModel string) string {
	switch strings.ToLower(aiModel) {
	case "claude":
		if !strings.Contains(content, "Please") && !strings.Contains(content, "Help") {
			return claudePreamble + content
		}
	}
	return content
}

// Copy copies text to the system clipboard
func Copy(text string) error {
	if clipboard.Unsupported {
		return NewClipboardError()
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to copy to clipboard: %w", err)
	}
	return nil
}

// IsClipboardAvailable checks if clipboard functionality is available
func IsClipboardAvailable() bool {
	return !clipboard.Unsupported
}

// GetInstallInstructions returns installation instructions for clipboard utilities
func GetInstallInstructions() string {
	switch runtime.GOOS {
	case "linux":
		return "Install a clipboard utility:\n" +
			"  • Ubuntu/Debian: sudo apt install xclip\n" +
			"  • Fedora/RHEL: sudo dnf install xclip\n" +
			"  • Arch: sudo pacman -S xclip\n" +
			"  • For Wayland: install wl-clipboard"
	case "darwin":
		return "pbcopy should be available by default on macOS"
	case "windows":
		return "clip should be available by default on Windows"
	default:
		return fmt.Sprintf("Clipboard not supported on %s", runtime.GOOS)
	}
}

func notify(ctx context.Context, title, body string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "linux":
		cmd = exec.CommandContext(ctx, "notify-send", title, body)
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", body, title)
		cmd = exec.CommandContext(ctx, "osascript", "-e", script)
	default:
		return fmt.Errorf("notifications not supported on %s", runtime.GOOS)
	}
	return cmd.Run()
}
