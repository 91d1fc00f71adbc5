package tui

import (
	"regexp"
	"strings"

	"github.com/charmbracelet/glamour"
)

// Answers come back as plain prose more often than not, so rendering is
// gated on a cheap scan for markdown structure before glamour gets involved.
var markdownIndicators = regexp.MustCompile("(?m)(^```|^#{1,6}\\s|^[*-]\\s|\\*\\*|__|`[^`]+`|^>\\s|^\\d+\\.\\s)")

func containsMarkdown(text string) bool {
	return markdownIndicators.MatchString(text)
}

// mdRenderer wraps a glamour renderer built for one wrap width. Building a
// renderer loads style assets, so the instance is reused until the terminal
// is resized.
type mdRenderer struct {
	inner *glamour.TermRenderer
	width int
}

var sharedRenderer mdRenderer

// renderMarkdown renders markdown content at the given wrap width, falling
// back to the raw text when glamour cannot handle it
func renderMarkdown(content string, width int) string {
	if width < 40 {
		width = 80
	}

	if sharedRenderer.inner == nil || sharedRenderer.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return content
		}
		sharedRenderer = mdRenderer{inner: r, width: width}
	}

	out, err := sharedRenderer.inner.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// renderIfMarkdown renders content through glamour only if it contains markdown
func renderIfMarkdown(content string, width int) string {
	if containsMarkdown(content) {
		return renderMarkdown(content, width)
	}
	return content
}
