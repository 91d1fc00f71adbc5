// Package provider contains the gateway adapters for the backend models.
// Each adapter owns its wire format and credentials and normalizes every
// outcome, success or failure, into a types.ProviderResult.
package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/PageSage/pagesage/pkg/types"
)

// Provider is one backend model gateway. Call never panics and never
// returns a Go error: failures are carried inside the result so callers
// always get a classified outcome.
type Provider interface {
	Name() string
	Call(ctx context.Context, req Request) types.ProviderResult
}

// AuthSwitcher is implemented by providers that support more than one
// credential style. AltAuth switches to the alternative style and reports
// whether a switch actually happened, so a caller can retry once after an
// auth failure.
type AuthSwitcher interface {
	AltAuth() bool
}

// Request is one normalized provider invocation
type Request struct {
	Prompt  string
	History []types.ConversationEntry
	Page    *types.PageContext
}

const pageContextNote = "The user is currently viewing the webpage below. " +
	"Answer only from the page content provided here; if it does not cover " +
	"the question, say so instead of guessing."

// buildSystemPrompt appends sanitized page content to the base persona
// prompt when the routing decision asked for webpage context.
func buildSystemPrompt(base string, page *types.PageContext) string {
	if page == nil {
		return base
	}
	clean := page.Sanitize()

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("\n\n")
	b.WriteString(pageContextNote)
	if clean.URL != "" {
		b.WriteString("\nURL: ")
		b.WriteString(clean.URL)
	}
	if clean.Title != "" {
		b.WriteString("\nTitle: ")
		b.WriteString(clean.Title)
	}
	if clean.SelectedText != "" {
		b.WriteString("\nSelected text:\n")
		b.WriteString(clean.SelectedText)
	}
	if clean.VisibleText != "" {
		b.WriteString("\nPage content:\n")
		b.WriteString(clean.VisibleText)
	}
	return b.String()
}

// failure builds an error result
func failure(kind types.ErrorKind, msg string) types.ProviderResult {
	return types.ProviderResult{Err: &types.ProviderError{Kind: kind, Message: msg}}
}

// classifyTransport classifies an error from http.Client.Do
func classifyTransport(ctx context.Context, err error) types.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return types.ErrTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return types.ErrTimeout
	}
	return types.ErrNetwork
}

// classifyStatus classifies a non-200 HTTP status
func classifyStatus(code int) types.ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return types.ErrAuth
	case code == http.StatusTooManyRequests:
		return types.ErrRateLimit
	case code >= 500:
		return types.ErrNetwork
	default:
		return types.ErrUnknown
	}
}

// truncateString truncates a string to maxLen and adds "..." if truncated
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
