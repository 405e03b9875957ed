package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"

	"chaingate/pkg/models"
)

// AnthropicCompletionURL is the endpoint for Anthropic message completions.
const AnthropicCompletionURL = "https://api.anthropic.com/v1/messages"

// AnthropicModelID is the vendor model identifier requested by the adapter.
const AnthropicModelID = "claude-3-5-sonnet-20241022"

// anthropicVersion is the API version header required by the vendor.
const anthropicVersion = "2023-06-01"

// anthropicMaxTokens caps the completion length per request.
const anthropicMaxTokens = 4096

// Anthropic adapts the Anthropic messages API.
type Anthropic struct {
	apiKey     string
	baseURL    string
	history    History
	httpClient *http.Client
}

// NewAnthropic creates an Anthropic adapter replaying conversation history
// from the given store.
func NewAnthropic(apiKey string, history History) *Anthropic {
	return &Anthropic{
		apiKey:     apiKey,
		baseURL:    AnthropicCompletionURL,
		history:    history,
		httpClient: &http.Client{},
	}
}

type anthropicRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	Messages  []chatMessage `json:"messages"`
	System    string        `json:"system,omitempty"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Name returns the provider identifier.
func (a *Anthropic) Name() string { return "anthropic" }

// ModelID returns the vendor model identifier used for cost lookup.
func (a *Anthropic) ModelID() string { return AnthropicModelID }

// Send implements Provider.
func (a *Anthropic) Send(ctx context.Context, message, sessionID, systemPrompt string) (*Result, error) {
	history := a.history.Load(sessionID)

	messages := make([]chatMessage, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: message})

	body, err := json.Marshal(anthropicRequest{
		Model:     AnthropicModelID,
		MaxTokens: anthropicMaxTokens,
		Messages:  messages,
		System:    systemPrompt,
	})
	if err != nil {
		log.Printf("anthropic: marshal request: %v", err)
		return nil, ErrProviderFailed
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL, bytes.NewBuffer(body))
	if err != nil {
		log.Printf("anthropic: build request: %v", err)
		return nil, ErrProviderFailed
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		log.Printf("anthropic: call failed: %v", err)
		return nil, ErrProviderFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		log.Printf("anthropic: status %d: %s", resp.StatusCode, string(errBody))
		return nil, fmt.Errorf("%w: anthropic status %d", ErrProviderFailed, resp.StatusCode)
	}

	var parsed anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("anthropic: decode response: %v", err)
		return nil, ErrProviderFailed
	}

	content := NoTextContent
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			content = block.Text
			break
		}
	}

	return &Result{
		Content:   content,
		SessionID: sessionID,
		Usage:     modelsUsage(parsed.Usage.InputTokens, parsed.Usage.OutputTokens),
	}, nil
}

// withBaseURL points the adapter at a different endpoint; used by tests.
func (a *Anthropic) withBaseURL(url string) *Anthropic {
	a.baseURL = url
	return a
}

// modelsUsage builds a usage block, defaulting to zeros when the vendor
// omitted the counts.
func modelsUsage(input, output int) models.TokenUsage {
	return models.TokenUsage{InputTokens: input, OutputTokens: output}
}
