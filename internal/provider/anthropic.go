package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PageSage/pagesage/internal/logger"
	"github.com/PageSage/pagesage/pkg/types"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
	defaultClaudeModel  = "claude-sonnet-4-20250514"
	defaultMaxTokens    = 4096
)

// AuthMode determines how to authenticate with Anthropic
type AuthMode int

const (
	AuthModeAPIKey AuthMode = iota
	AuthModeOAuth           // setup-token (subscription)
)

// AnthropicClient is the gateway for the analytical model
type AnthropicClient struct {
	apiKey    string
	authToken string // OAuth setup-token
	authMode  AuthMode
	switched  bool // AltAuth already used once
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
	log       *logger.Logger
}

// AnthropicRequest represents the request body for the Claude messages API
type AnthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []AnthropicMessage `json:"messages"`
	System    string             `json:"system,omitempty"`
}

// AnthropicMessage represents a message in the Claude format
type AnthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AnthropicResponse represents the response from the Claude API
type AnthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Content    []AnthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      AnthropicUsage     `json:"usage"`
}

// AnthropicContent represents a content block in the response
type AnthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// AnthropicUsage represents token usage info
type AnthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// AnthropicError represents an API error response
type AnthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicErrorWrapper struct {
	Error AnthropicError `json:"error"`
}

// IsOAuthToken checks if a token is an OAuth setup-token (subscription auth)
func IsOAuthToken(token string) bool {
	return strings.HasPrefix(token, "sk-ant-oat")
}

// NewAnthropicClient creates the analytical model gateway.
// Pass apiKey for API key auth, or authToken for subscription (setup-token)
// auth. If both are provided, authToken takes priority.
func NewAnthropicClient(apiKey, authToken, model string, maxTokens int, log *logger.Logger) *AnthropicClient {
	if model == "" {
		model = defaultClaudeModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &AnthropicClient{
		apiKey:    apiKey,
		authToken: authToken,
		model:     model,
		maxTokens: maxTokens,
		baseURL:   anthropicAPIURL,
		client:    &http.Client{Timeout: 120 * time.Second},
		log:       log.WithComponent("anthropic"),
	}

	if authToken != "" && IsOAuthToken(authToken) {
		c.authMode = AuthModeOAuth
	} else if authToken != "" {
		// Treat non-oat tokens as API keys (fallback)
		c.apiKey = authToken
		c.authMode = AuthModeAPIKey
	} else {
		c.authMode = AuthModeAPIKey
	}

	return c
}

// SetBaseURL overrides the API endpoint, used by tests
func (c *AnthropicClient) SetBaseURL(url string) {
	c.baseURL = url
}

// Name returns the provider name
func (c *AnthropicClient) Name() string {
	return "anthropic"
}

// AuthModeName returns a human-readable auth mode description
func (c *AnthropicClient) AuthModeName() string {
	if c.authMode == AuthModeOAuth {
		return "subscription (setup-token)"
	}
	return "api-key"
}

// AltAuth switches to the alternative credential style. It succeeds at most
// once and only when a credential for the other style exists.
func (c *AnthropicClient) AltAuth() bool {
	if c.switched {
		return false
	}
	switch c.authMode {
	case AuthModeOAuth:
		if c.apiKey == "" {
			return false
		}
		c.authMode = AuthModeAPIKey
	case AuthModeAPIKey:
		if c.authToken == "" || !IsOAuthToken(c.authToken) {
			return false
		}
		c.authMode = AuthModeOAuth
	}
	c.switched = true
	c.log.Info("switched auth mode to %s", c.AuthModeName())
	return true
}

// setHeaders sets the common HTTP headers for Anthropic API requests
func (c *AnthropicClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", anthropicAPIVersion)
	if c.authMode == AuthModeOAuth {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
		req.Header.Set("anthropic-beta", "oauth-2025-04-20")
		req.Header.Set("anthropic-dangerous-direct-browser-access", "true")
	} else {
		req.Header.Set("x-api-key", c.apiKey)
	}
}

// DefaultSystemPrompt is the persona prompt shared by all gateways
const DefaultSystemPrompt = "You are PageSage, a helpful browsing assistant. " +
	"Be concise, accurate, and helpful."

// buildMessages converts conversation history plus the current prompt into
// the alternating Claude message format
func buildMessages(history []types.ConversationEntry, prompt string) []AnthropicMessage {
	msgs := make([]AnthropicMessage, 0, len(history)*2+1)
	for _, e := range history {
		if e.Prompt != "" {
			msgs = append(msgs, AnthropicMessage{Role: "user", Content: e.Prompt})
		}
		if e.Response != "" {
			msgs = append(msgs, AnthropicMessage{Role: "assistant", Content: e.Response})
		}
	}
	msgs = append(msgs, AnthropicMessage{Role: "user", Content: prompt})
	return msgs
}

// Call sends the prompt to Claude and returns a classified result
func (c *AnthropicClient) Call(ctx context.Context, req Request) types.ProviderResult {
	reqBody := AnthropicRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  buildMessages(req.History, req.Prompt),
		System:    buildSystemPrompt(DefaultSystemPrompt, req.Page),
	}

	bodyData, err := json.Marshal(reqBody)
	if err != nil {
		return failure(types.ErrUnknown, fmt.Sprintf("failed to marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(bodyData))
	if err != nil {
		return failure(types.ErrUnknown, fmt.Sprintf("failed to create request: %v", err))
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return failure(classifyTransport(ctx, err), fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(types.ErrNetwork, fmt.Sprintf("failed to read response: %v", err))
	}

	if resp.StatusCode != http.StatusOK {
		kind := classifyStatus(resp.StatusCode)
		var errResp anthropicErrorWrapper
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			return failure(kind, fmt.Sprintf("anthropic API error: %s (%s)", errResp.Error.Message, errResp.Error.Type))
		}
		return failure(kind, fmt.Sprintf("anthropic API error: status %d, body: %s", resp.StatusCode, truncateString(string(respBody), 200)))
	}

	var anthropicResp AnthropicResponse
	if err := json.Unmarshal(respBody, &anthropicResp); err != nil {
		return failure(types.ErrBadResponseShape, fmt.Sprintf("failed to parse response: %v", err))
	}

	// Extract text from content blocks
	var text strings.Builder
	for _, block := range anthropicResp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return failure(types.ErrBadResponseShape, "no text content in response")
	}

	c.log.Debug("response received (%d chars)", text.Len())

	return types.ProviderResult{
		Text:  text.String(),
		Model: anthropicResp.Model,
		Usage: types.TokenUsage{
			InputTokens:  anthropicResp.Usage.InputTokens,
			OutputTokens: anthropicResp.Usage.OutputTokens,
		},
	}
}
