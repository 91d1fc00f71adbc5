package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PageSage/pagesage/internal/logger"
	"github.com/PageSage/pagesage/pkg/types"
)

const (
	perplexityAPIURL       = "https://api.perplexity.ai/chat/completions"
	defaultPerplexityModel = "sonar"
)

// PerplexityClient is the gateway for the real-time search model
type PerplexityClient struct {
	apiKey    string
	model     string
	maxTokens int
	baseURL   string
	client    *http.Client
	log       *logger.Logger
}

// PerplexityRequest represents the request body for the chat completions API
type PerplexityRequest struct {
	Model     string              `json:"model"`
	Messages  []PerplexityMessage `json:"messages"`
	MaxTokens int                 `json:"max_tokens,omitempty"`
}

// PerplexityMessage represents a message in chat completions format
type PerplexityMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PerplexityResponse represents the response from the chat completions API
type PerplexityResponse struct {
	ID        string               `json:"id"`
	Model     string               `json:"model"`
	Created   int64                `json:"created"`
	Choices   []PerplexityChoice   `json:"choices"`
	Citations []string             `json:"citations,omitempty"`
	Usage     PerplexityUsage      `json:"usage"`
	Error     *PerplexityErrorInfo `json:"error,omitempty"`
}

// PerplexityChoice represents a choice in the response
type PerplexityChoice struct {
	Index        int               `json:"index"`
	Message      PerplexityMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

// PerplexityUsage represents token usage info
type PerplexityUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// PerplexityErrorInfo represents an error from the API
type PerplexityErrorInfo struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// NewPerplexityClient creates the real-time search gateway
func NewPerplexityClient(apiKey, model string, maxTokens int, log *logger.Logger) *PerplexityClient {
	if model == "" {
		model = defaultPerplexityModel
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	if log == nil {
		log = logger.Nop()
	}

	return &PerplexityClient{
		apiKey:    apiKey,
		model:     model,
		maxTokens: maxTokens,
		baseURL:   perplexityAPIURL,
		client:    &http.Client{Timeout: 120 * time.Second},
		log:       log.WithComponent("perplexity"),
	}
}

// SetBaseURL overrides the API endpoint, used by tests
func (c *PerplexityClient) SetBaseURL(url string) {
	c.baseURL = url
}

// Name returns the provider name
func (c *PerplexityClient) Name() string {
	return "perplexity"
}

// Call sends the prompt to Perplexity and returns a classified result
func (c *PerplexityClient) Call(ctx context.Context, req Request) types.ProviderResult {
	msgs := make([]PerplexityMessage, 0, len(req.History)*2+2)
	msgs = append(msgs, PerplexityMessage{
		Role:    "system",
		Content: buildSystemPrompt(DefaultSystemPrompt, req.Page),
	})
	for _, e := range req.History {
		if e.Prompt != "" {
			msgs = append(msgs, PerplexityMessage{Role: "user", Content: e.Prompt})
		}
		if e.Response != "" {
			msgs = append(msgs, PerplexityMessage{Role: "assistant", Content: e.Response})
		}
	}
	msgs = append(msgs, PerplexityMessage{Role: "user", Content: req.Prompt})

	reqBody := PerplexityRequest{
		Model:     c.model,
		Messages:  msgs,
		MaxTokens: c.maxTokens,
	}

	bodyData, err := json.Marshal(reqBody)
	if err != nil {
		return failure(types.ErrUnknown, fmt.Sprintf("failed to marshal request: %v", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(bodyData))
	if err != nil {
		return failure(types.ErrUnknown, fmt.Sprintf("failed to create request: %v", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

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
		var perplexityResp PerplexityResponse
		if json.Unmarshal(respBody, &perplexityResp) == nil && perplexityResp.Error != nil {
			return failure(kind, fmt.Sprintf("perplexity API error: %s (%s)", perplexityResp.Error.Message, perplexityResp.Error.Type))
		}
		return failure(kind, fmt.Sprintf("perplexity API error: status %d, body: %s", resp.StatusCode, truncateString(string(respBody), 200)))
	}

	var perplexityResp PerplexityResponse
	if err := json.Unmarshal(respBody, &perplexityResp); err != nil {
		return failure(types.ErrBadResponseShape, fmt.Sprintf("failed to parse response: %v", err))
	}

	if len(perplexityResp.Choices) == 0 || perplexityResp.Choices[0].Message.Content == "" {
		return failure(types.ErrBadResponseShape, "no choices in response")
	}

	text := perplexityResp.Choices[0].Message.Content
	c.log.Debug("response received (%d chars, %d citations)", len(text), len(perplexityResp.Citations))

	return types.ProviderResult{
		Text:  text,
		Model: perplexityResp.Model,
		Usage: types.TokenUsage{
			InputTokens:  perplexityResp.Usage.PromptTokens,
			OutputTokens: perplexityResp.Usage.CompletionTokens,
		},
	}
}
