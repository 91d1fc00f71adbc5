package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	primaryColor   = lipgloss.Color("#2DD4BF") // Teal for PageSage branding
	secondaryColor = lipgloss.Color("#7C3AED") // Purple accent
	userColor      = lipgloss.Color("#3B82F6") // Blue for user messages
	assistantColor = lipgloss.Color("#10B981") // Green for assistant messages
	dimColor       = lipgloss.Color("#6B7280") // Gray for help text
	errorColor     = lipgloss.Color("#EF4444") // Red for errors
	warnColor      = lipgloss.Color("#F59E0B") // Amber for quota warnings
)

// Styles
var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(primaryColor).
			Padding(0, 1)

	headerInfoStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	userPrefixStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(userColor)

	assistantPrefixStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(assistantColor)

	userTextStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E5E7EB"))

	assistantTextStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#F3F4F6"))

	modelTagStyle = lipgloss.NewStyle().
			Foreground(secondaryColor)

	timestampStyle = lipgloss.NewStyle().
			Foreground(dimColor)

	inputBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(secondaryColor).
				Padding(0, 1)

	helpStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true)

	thinkingStyle = lipgloss.NewStyle().
			Foreground(secondaryColor).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(errorColor).
			Bold(true)

	systemStyle = lipgloss.NewStyle().
			Foreground(dimColor).
			Italic(true)

	chatBorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimColor)

	quotaOKStyle = lipgloss.NewStyle().
			Foreground(assistantColor)

	quotaWarnStyle = lipgloss.NewStyle().
			Foreground(warnColor)

	quotaFullStyle = lipgloss.NewStyle().
			Foreground(errorColor)
)

// formatUserMessage formats a user message with styling
func formatUserMessage(text string) string {
	prefix := userPrefixStyle.Render("You:")
	return prefix + " " + userTextStyle.Render(text)
}

// formatAssistantMessage formats an assistant message, tagging the model
// that produced it.
func formatAssistantMessage(text, model string, width int) string {
	prefix := assistantPrefixStyle.Render("Sage:")
	rendered := renderIfMarkdown(text, width)
	out := prefix + " " + assistantTextStyle.Render(rendered)
	if model != "" {
		out += "  " + modelTagStyle.Render("["+model+"]")
	}
	return out
}

// formatSystemMessage formats a system message
func formatSystemMessage(text string) string {
	return systemStyle.Render("• " + text)
}

// formatError formats an error message
func formatError(text string) string {
	return errorStyle.Render("✗ " + text)
}

// formatThinking returns the thinking indicator
func formatThinking(frame int) string {
	frames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧"}
	spinner := frames[frame%len(frames)]
	return thinkingStyle.Render(spinner + " Thinking...")
}

// formatTimestamp renders a message timestamp in local wall-clock time.
func formatTimestamp(t time.Time) string {
	return timestampStyle.Render(t.Format("15:04"))
}

// renderHeader renders the top bar: app name, routing mode, last response time.
func renderHeader(mode string, responseTime time.Duration, width int) string {
	title := headerStyle.Render("PageSage")
	info := "routing: " + mode
	if responseTime > 0 {
		info += fmt.Sprintf("  last: %s", responseTime.Round(10*time.Millisecond))
	}
	line := title + "  " + headerInfoStyle.Render(info)
	if width > 0 && lipgloss.Width(line) > width {
		return title
	}
	return line
}

// formatQuotaBar renders the free-tier usage bar.
func formatQuotaBar(used, quota, width int) string {
	if quota <= 0 {
		return ""
	}
	label := fmt.Sprintf("Queries %d/%d", used, quota)

	barWidth := width - lipgloss.Width(label) - 3
	if barWidth < 10 {
		return quotaStyleFor(used, quota).Render(label)
	}

	filled := used * barWidth / quota
	if filled > barWidth {
		filled = barWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	return quotaStyleFor(used, quota).Render(label+" ") + helpStyle.Render(bar)
}

func quotaStyleFor(used, quota int) lipgloss.Style {
	switch {
	case used >= quota:
		return quotaFullStyle
	case used*5 >= quota*4:
		return quotaWarnStyle
	default:
		return quotaOKStyle
	}
}

// formatKeyboardShortcuts renders the bottom help bar.
func formatKeyboardShortcuts() string {
	return helpStyle.Render("Enter send • Ctrl+L clear • Ctrl+R retry • Tab autocomplete • Ctrl+C quit")
}
