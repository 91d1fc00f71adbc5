// Package types defines the shared value types of the PageSage core:
// queries, page context, routing decisions, provider results and usage records.
package types

import (
	"strings"
	"time"
	"unicode"
)

// Model identifies which backend(s) a query is routed to
type Model string

const (
	ModelAnalytical Model = "analytical"
	ModelRealtime   Model = "realtime"
	ModelHybrid     Model = "hybrid"
)

const (
	// MaxVisibleText caps the page text embedded into prompts
	MaxVisibleText = 5000
	// MaxSelectedText caps the user-selected text embedded into prompts
	MaxSelectedText = 1000
)

// Query is one user submission. Created per submission, never mutated.
type Query struct {
	Text      string       `json:"text"`
	Context   *PageContext `json:"context,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// PageContext is the extracted content of the page the user is looking at.
// It is produced by the capture collaborator and borrowed read-only by the core.
type PageContext struct {
	URL          string            `json:"url"`
	Title        string            `json:"title"`
	VisibleText  string            `json:"visibleText"`
	SelectedText string            `json:"selectedText,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Sanitize returns a copy safe to embed in an outbound prompt: field lengths
// are capped and control characters stripped. The original is not modified.
func (p *PageContext) Sanitize() *PageContext {
	if p == nil {
		return nil
	}
	clean := &PageContext{
		URL:          sanitizeField(p.URL, 2048),
		Title:        sanitizeField(p.Title, 512),
		VisibleText:  sanitizeField(p.VisibleText, MaxVisibleText),
		SelectedText: sanitizeField(p.SelectedText, MaxSelectedText),
	}
	if len(p.Metadata) > 0 {
		clean.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			clean.Metadata[sanitizeField(k, 128)] = sanitizeField(v, 512)
		}
	}
	return clean
}

// sanitizeField strips control characters (keeping newlines and tabs) and
// truncates to maxLen bytes at a rune boundary.
func sanitizeField(s string, maxLen int) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\n' || r == '\t' {
			b.WriteRune(r)
			continue
		}
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if len(out) <= maxLen {
		return out
	}
	// Truncate at a rune boundary
	for i := maxLen; i > 0; i-- {
		if out[i-1]&0xC0 != 0x80 {
			return out[:i-1]
		}
	}
	return ""
}

// RouteScores carries the keyword scores when a scored decision was made
type RouteScores struct {
	Realtime   float64 `json:"realtime"`
	Analytical float64 `json:"analytical"`
}

// RoutingDecision is the output of the routing decision engine.
// Produced fresh per query; never mutated.
type RoutingDecision struct {
	TargetModel       Model        `json:"targetModel"`
	UseWebpageContext bool         `json:"useWebpageContext"`
	Reasoning         string       `json:"reasoning"`
	Scores            *RouteScores `json:"scores,omitempty"`
}

// ErrorKind classifies a provider failure
type ErrorKind string

const (
	ErrAuth             ErrorKind = "auth"
	ErrRateLimit        ErrorKind = "rate_limit"
	ErrTimeout          ErrorKind = "timeout"
	ErrNetwork          ErrorKind = "network"
	ErrBadResponseShape ErrorKind = "bad_response_shape"
	ErrUnknown          ErrorKind = "unknown"
)

// Retryable reports whether a failure of this kind is worth another attempt.
// Auth failures are not: retrying with the same bad credential is pointless.
func (k ErrorKind) Retryable() bool {
	return k != ErrAuth
}

// ProviderError is a typed provider failure
type ProviderError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ProviderError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// ProviderResult is the normalized outcome of one provider call.
// Exactly one of Text or Err carries meaning.
type ProviderResult struct {
	Text  string         `json:"text"`
	Model string         `json:"model,omitempty"`
	Usage TokenUsage     `json:"usage"`
	Err   *ProviderError `json:"err,omitempty"`
}

// OK reports whether the call produced usable answer text
func (r ProviderResult) OK() bool {
	return r.Err == nil
}

// TokenUsage tracks token consumption for one provider call
type TokenUsage struct {
	InputTokens  int `json:"inputTokens"`
	OutputTokens int `json:"outputTokens"`
}

// UsageRecord is a snapshot of the per-installation query counter
type UsageRecord struct {
	CurrentUsage int  `json:"currentUsage"`
	Remaining    int  `json:"remaining"`
	Exceeded     bool `json:"exceeded"`
}

// ConversationEntry is one completed exchange in the bounded conversation log
type ConversationEntry struct {
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
	Prompt    string    `json:"prompt"`
	Response  string    `json:"response"`
	Model     string    `json:"model"`
}

// Answer is the end-to-end result delivered to the UI: exactly one per query
type Answer struct {
	Text     string         `json:"text"`
	Model    string         `json:"model"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
