package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/PageSage/pagesage/internal/logger"
	"github.com/PageSage/pagesage/pkg/types"
)

const (
	whisperAPIURL       = "https://api.openai.com/v1/audio/transcriptions"
	defaultWhisperModel = "whisper-1"
)

// WhisperClient transcribes recorded voice queries before routing
type WhisperClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	log     *logger.Logger
}

type whisperResponse struct {
	Text  string `json:"text"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewWhisperClient creates the voice transcription gateway
func NewWhisperClient(apiKey, model string, log *logger.Logger) *WhisperClient {
	if model == "" {
		model = defaultWhisperModel
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WhisperClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: whisperAPIURL,
		client:  &http.Client{Timeout: 60 * time.Second},
		log:     log.WithComponent("whisper"),
	}
}

// SetBaseURL overrides the API endpoint, used by tests
func (c *WhisperClient) SetBaseURL(url string) {
	c.baseURL = url
}

// Transcribe uploads audio and returns the recognized text.
// Transcription failures are classified the same way as chat failures so the
// caller can decide whether to ask the user to retry.
func (c *WhisperClient) Transcribe(ctx context.Context, audio []byte, filename string) (string, *types.ProviderError) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", &types.ProviderError{Kind: types.ErrUnknown, Message: fmt.Sprintf("failed to build form: %v", err)}
	}
	if _, err := part.Write(audio); err != nil {
		return "", &types.ProviderError{Kind: types.ErrUnknown, Message: fmt.Sprintf("failed to write audio: %v", err)}
	}
	if err := w.WriteField("model", c.model); err != nil {
		return "", &types.ProviderError{Kind: types.ErrUnknown, Message: fmt.Sprintf("failed to write field: %v", err)}
	}
	if err := w.Close(); err != nil {
		return "", &types.ProviderError{Kind: types.ErrUnknown, Message: fmt.Sprintf("failed to close form: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, &body)
	if err != nil {
		return "", &types.ProviderError{Kind: types.ErrUnknown, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &types.ProviderError{Kind: classifyTransport(ctx, err), Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &types.ProviderError{Kind: types.ErrNetwork, Message: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		kind := classifyStatus(resp.StatusCode)
		var wr whisperResponse
		if json.Unmarshal(respBody, &wr) == nil && wr.Error != nil {
			return "", &types.ProviderError{Kind: kind, Message: fmt.Sprintf("whisper API error: %s (%s)", wr.Error.Message, wr.Error.Type)}
		}
		return "", &types.ProviderError{Kind: kind, Message: fmt.Sprintf("whisper API error: status %d", resp.StatusCode)}
	}

	var wr whisperResponse
	if err := json.Unmarshal(respBody, &wr); err != nil {
		return "", &types.ProviderError{Kind: types.ErrBadResponseShape, Message: fmt.Sprintf("failed to parse response: %v", err)}
	}
	if wr.Text == "" {
		return "", &types.ProviderError{Kind: types.ErrBadResponseShape, Message: "empty transcription"}
	}

	c.log.Debug("transcribed %d bytes to %d chars", len(audio), len(wr.Text))
	return wr.Text, nil
}
