package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// MistralChatCompletionURL is the endpoint for Mistral chat completions.
const MistralChatCompletionURL = "https://api.mistral.ai/v1/chat/completions"

// MistralModelID is the vendor model identifier requested by the adapter.
const MistralModelID = "mistral-large-latest"

// Mistral adapts the Mistral chat completion API.
type Mistral struct {
	apiKey     string
	baseURL    string
	history    History
	httpClient *http.Client
}

// NewMistral creates a Mistral adapter replaying conversation history from
// the given store.
func NewMistral(apiKey string, history History) *Mistral {
	return &Mistral{
		apiKey:     apiKey,
		baseURL:    MistralChatCompletionURL,
		history:    history,
		httpClient: &http.Client{},
	}
}

// chatMessage is the role-tagged message shape shared by both vendors.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type mistralRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	System   string        `json:"system,omitempty"`
}

type mistralResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Name returns the provider identifier.
func (m *Mistral) Name() string { return "mistral" }

// ModelID returns the vendor model identifier used for cost lookup.
func (m *Mistral) ModelID() string { return MistralModelID }

// Send implements Provider.
func (m *Mistral) Send(ctx context.Context, message, sessionID, systemPrompt string) (*Result, error) {
	history := m.history.Load(sessionID)

	messages := make([]chatMessage, 0, len(history)+1)
	for _, msg := range history {
		messages = append(messages, chatMessage{Role: string(msg.Role), Content: msg.Content})
	}
	messages = append(messages, chatMessage{Role: "user", Content: message})

	body, err := json.Marshal(mistralRequest{
		Model:    MistralModelID,
		Messages: messages,
		System:   systemPrompt,
	})
	if err != nil {
		log.Printf("mistral: marshal request: %v", err)
		return nil, ErrProviderFailed
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL, bytes.NewBuffer(body))
	if err != nil {
		log.Printf("mistral: build request: %v", err)
		return nil, ErrProviderFailed
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.httpClient.Do(req)
	if err != nil {
		log.Printf("mistral: call failed: %v", err)
		return nil, ErrProviderFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		log.Printf("mistral: status %d: %s", resp.StatusCode, string(errBody))
		return nil, fmt.Errorf("%w: mistral status %d", ErrProviderFailed, resp.StatusCode)
	}

	var parsed mistralResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		log.Printf("mistral: decode response: %v", err)
		return nil, ErrProviderFailed
	}

	content := NoTextContent
	if len(parsed.Choices) > 0 && parsed.Choices[0].Message.Content != "" {
		content = parsed.Choices[0].Message.Content
	}

	return &Result{
		Content:   content,
		SessionID: sessionID,
		Usage: modelsUsage(
			parsed.Usage.PromptTokens,
			parsed.Usage.CompletionTokens,
		),
	}, nil
}

// withBaseURL points the adapter at a different endpoint; used by tests.
func (m *Mistral) withBaseURL(url string) *Mistral {
	m.baseURL = url
	return m
}

// withTimeout overrides the client-level timeout; used by tests.
func (m *Mistral) withTimeout(d time.Duration) *Mistral {
	m.httpClient.Timeout = d
	return m
}
