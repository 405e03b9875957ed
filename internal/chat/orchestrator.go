// Package chat implements the request orchestration at the heart of the
// gateway: model selection, access check, first-message context injection,
// provider fallback, usage recording, and the mint side effect.
package chat

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"

	"chaingate/internal/mint"
	"chaingate/internal/provider"
	"chaingate/pkg/models"
)

// ErrPaymentRequired aborts a request against the gated context once the
// free-use quota is exhausted and the subscription check failed. It is the
// only error the orchestrator surfaces; every other failure degrades into
// the response.
var ErrPaymentRequired = errors.New("subscription required for this context")

// ContextSource is the slice of the context store the orchestrator needs.
type ContextSource interface {
	Resolve(name string) (string, bool)
	UsageCount(name, wallet string) int
	RecordUse(name, wallet string)
}

// AccessGate is the subscription check consulted for the gated context.
type AccessGate interface {
	IsSubscribed(wallet, authData string) bool
}

// UsageRecorder books one completed exchange into the cost ledger.
type UsageRecorder interface {
	RecordUsage(wallet, message, sessionID, model, inputText, outputText string, inputTokens, outputTokens int) error
}

// Minter fires the per-request token-mint side effect.
type Minter interface {
	Mint(ctx context.Context, recipient string) mint.Result
}

// Settings are the orchestrator's tunables, lifted out of the full config.
type Settings struct {
	// DefaultModel answers the model-omission question explicitly: an
	// absent or unrecognized model name selects this provider, it never
	// skips processing.
	DefaultModel provider.Model

	// DefaultRecipient is attributed and credited when the caller supplies
	// no wallet address.
	DefaultRecipient string

	// GatedContext names the premium context; empty disables gating.
	GatedContext string

	// FreeUses is the per-wallet quota before the subscription check.
	FreeUses int

	// SystemPrompt is forwarded to providers as their top-level field.
	SystemPrompt string

	Network      string
	ExplorerBase string
}

// Input is one chat request after HTTP validation.
type Input struct {
	Message       string
	Model         string
	SessionID     string
	WalletAddress string
	Context       string

	// FileContent is the text of an uploaded markdown attachment. It is
	// appended to the wire payload only, never to the conversation history.
	FileContent string

	// AuthData is the raw subscription-proof blob for the access gate.
	AuthData string
}

// Orchestrator coordinates the collaborators for one request. All state is
// injected; the orchestrator itself is stateless and safe for concurrent
// use.
type Orchestrator struct {
	providers map[provider.Model]provider.Provider
	history   provider.History
	ledger    UsageRecorder
	contexts  ContextSource
	gate      AccessGate
	minter    Minter
	settings  Settings
}

// NewOrchestrator wires the orchestrator. providers must contain exactly
// the Mistral and Anthropic adapters.
func NewOrchestrator(providers map[provider.Model]provider.Provider, history provider.History,
	ledger UsageRecorder, contexts ContextSource, gate AccessGate, minter Minter, settings Settings) *Orchestrator {

	if settings.DefaultModel == provider.ModelUnspecified {
		settings.DefaultModel = provider.ModelAnthropic
	}
	if settings.FreeUses <= 0 {
		settings.FreeUses = 3
	}

	return &Orchestrator{
		providers: providers,
		history:   history,
		ledger:    ledger,
		contexts:  contexts,
		gate:      gate,
		minter:    minter,
		settings:  settings,
	}
}

// Ask runs one request through the full pipeline. Provider failures and
// side-effect failures degrade into the response; only the access check
// returns an error (ErrPaymentRequired).
func (o *Orchestrator) Ask(ctx context.Context, in Input) (*models.AskResponse, error) {
	// ModelSelection: unrecognized input silently maps to the default.
	selected := provider.ResolveModel(in.Model)
	if selected == provider.ModelUnspecified {
		selected = o.settings.DefaultModel
	}
	primary := o.providers[selected]

	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	wallet := in.WalletAddress
	if wallet == "" {
		wallet = o.settings.DefaultRecipient
	}

	// AccessCheck: only the gated context engages the subscription check,
	// and only past the free-use quota.
	if in.Context != "" && in.Context == o.settings.GatedContext {
		if o.contexts.UsageCount(in.Context, wallet) >= o.settings.FreeUses {
			if !o.gate.IsSubscribed(in.WalletAddress, in.AuthData) {
				return nil, ErrPaymentRequired
			}
		}
	}

	// ContextResolution: inject the context text only on the session's
	// first message; later messages go out raw.
	outgoing := in.Message
	if in.Context != "" {
		if text, ok := o.contexts.Resolve(in.Context); ok && text != "" {
			if len(o.history.Load(sessionID)) == 0 {
				outgoing = "Context: " + text + "\n\nUser Query: " + in.Message
			}
		}
		o.contexts.RecordUse(in.Context, wallet)
	}

	// An attachment rides on the wire payload only; the persisted exchange
	// stays free of it so later turns do not replay the file.
	wire := outgoing
	if in.FileContent != "" {
		wire = outgoing + "\n\n" + in.FileContent
	}

	// PrimaryAttempt, then exactly one FallbackAttempt with the same
	// constructed message and session id.
	served := primary
	result, err := primary.Send(ctx, wire, sessionID, o.settings.SystemPrompt)
	if err != nil {
		alternate := o.alternate(selected)
		log.Printf("chat: %s failed, falling back to %s: %v", primary.Name(), alternate.Name(), err)

		if result, err = alternate.Send(ctx, wire, sessionID, o.settings.SystemPrompt); err == nil {
			served = alternate
		}
	}

	resp := &models.AskResponse{
		Model:     served.ModelID(),
		Network:   o.settings.Network,
		SessionID: sessionID,
	}

	// UsageRecording and persistence: only when output was actually
	// produced. Failed calls leave no trace in the conversation.
	if err == nil {
		resp.Output = result.Content
		usage := result.Usage
		resp.Usage = &usage

		if herr := o.history.Append(sessionID, outgoing, result.Content); herr != nil {
			// Durability of history never blocks the in-flight response.
			log.Printf("chat: persist exchange: %v", herr)
		}

		if lerr := o.ledger.RecordUsage(wallet, in.Message, sessionID, served.ModelID(),
			wire, result.Content, usage.InputTokens, usage.OutputTokens); lerr != nil {
			log.Printf("chat: record usage: %v", lerr)
		}
	} else {
		log.Printf("chat: both providers failed for session %s: %v", sessionID, err)
	}

	// SideEffect: always attempted, never fatal.
	minted := o.minter.Mint(ctx, wallet)
	if minted.Degraded {
		log.Printf("chat: mint degraded for %s: %v", wallet, minted.Err)
	}
	resp.TxHash = minted.TxHash
	resp.ExplorerLink = o.settings.ExplorerBase + "/tx/" + minted.TxHash

	return resp, nil
}

// alternate returns the other provider for fallback.
func (o *Orchestrator) alternate(m provider.Model) provider.Provider {
	if m == provider.ModelMistral {
		return o.providers[provider.ModelAnthropic]
	}
	return o.providers[provider.ModelMistral]
}
