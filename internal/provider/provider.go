// Package provider wraps the external LLM vendor endpoints behind a uniform
// adapter interface. Each adapter loads conversation history, calls the
// vendor's HTTP API with a hard timeout, and returns a normalized result so
// the orchestrator can treat all vendors the same for fallback purposes.
// Persisting the exchange is the caller's job; adapters only read history.
package provider

import (
	"context"
	"errors"
	"strings"
	"time"

	"chaingate/pkg/models"
)

// DefaultTimeout is the hard deadline applied to every outbound vendor
// call. Exceeding it aborts the request and counts as a provider failure.
const DefaultTimeout = 300 * time.Second

// NoTextContent is the sentinel completion used when a vendor's response
// shape omits the textual content block.
const NoTextContent = "no text content"

// ErrProviderFailed is the single opaque signal surfaced to callers when a
// vendor call fails for any reason. Lower-level detail is logged by the
// adapter, not propagated, so all providers look alike to the fallback
// logic.
var ErrProviderFailed = errors.New("provider failed")

// Model is the closed set of providers the gateway can dispatch to.
// Raw model-name strings are resolved to a Model once at the boundary;
// the orchestrator never pattern-matches on strings internally.
type Model int

const (
	// ModelUnspecified means the caller named no (or an unrecognized)
	// model. The orchestrator maps it to the configured default provider.
	ModelUnspecified Model = iota
	// ModelMistral selects the Mistral adapter.
	ModelMistral
	// ModelAnthropic selects the Anthropic adapter.
	ModelAnthropic
)

// ResolveModel maps a caller-supplied model name to a Model. Unrecognized
// names resolve to ModelUnspecified rather than an error: the permissive
// policy inherited from the HTTP contract.
func ResolveModel(name string) Model {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mistral":
		return ModelMistral
	case "anthropic", "claude":
		return ModelAnthropic
	default:
		return ModelUnspecified
	}
}

// String returns the public name of the model choice.
func (m Model) String() string {
	switch m {
	case ModelMistral:
		return "mistral"
	case ModelAnthropic:
		return "anthropic"
	default:
		return "unspecified"
	}
}

// Result is the normalized outcome of a provider call.
type Result struct {
	Content   string
	SessionID string
	Usage     models.TokenUsage
}

// History is the conversation-store surface shared by the adapters and the
// orchestrator: adapters load prior messages before a call, the orchestrator
// persists the completed exchange afterwards.
type History interface {
	Load(sessionID string) []models.Message
	Append(sessionID, userText, assistantText string) error
}

// Provider is the interface every vendor adapter satisfies.
type Provider interface {
	// Name returns the provider identifier, e.g. "mistral".
	Name() string

	// ModelID returns the vendor model identifier used for cost lookup.
	ModelID() string

	// Send runs one exchange: history load, then vendor call. A supplied
	// system prompt is passed as a top-level request field, never as a
	// conversation message.
	Send(ctx context.Context, message, sessionID, systemPrompt string) (*Result, error)
}
