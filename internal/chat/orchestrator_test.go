package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chaingate/internal/mint"
	"chaingate/internal/provider"
	"chaingate/internal/session"
	"chaingate/pkg/models"
)

const wallet = "0x1111111111111111111111111111111111111111"

// sentCall captures one provider invocation.
type sentCall struct {
	Message      string
	SessionID    string
	SystemPrompt string
}

// fakeProvider implements provider.Provider. Like the real adapters it
// never writes to history; persistence is the orchestrator's job.
type fakeProvider struct {
	name    string
	modelID string
	content string
	usage   models.TokenUsage
	fail    bool
	calls   []sentCall
}

func (f *fakeProvider) Name() string    { return f.name }
func (f *fakeProvider) ModelID() string { return f.modelID }

func (f *fakeProvider) Send(ctx context.Context, message, sessionID, systemPrompt string) (*provider.Result, error) {
	f.calls = append(f.calls, sentCall{Message: message, SessionID: sessionID, SystemPrompt: systemPrompt})
	if f.fail {
		return nil, provider.ErrProviderFailed
	}
	return &provider.Result{Content: f.content, SessionID: sessionID, Usage: f.usage}, nil
}

// recordedUsage captures one ledger call.
type recordedUsage struct {
	Wallet, Message, SessionID, Model string
	InputTokens, OutputTokens         int
}

type fakeLedger struct {
	records []recordedUsage
	err     error
}

func (f *fakeLedger) RecordUsage(wallet, message, sessionID, model, inputText, outputText string, inputTokens, outputTokens int) error {
	f.records = append(f.records, recordedUsage{wallet, message, sessionID, model, inputTokens, outputTokens})
	return f.err
}

type fakeContexts struct {
	text  string
	known bool
	uses  map[string]int
}

func (f *fakeContexts) Resolve(name string) (string, bool) { return f.text, f.known }
func (f *fakeContexts) UsageCount(name, wallet string) int { return f.uses[wallet] }
func (f *fakeContexts) RecordUse(name, wallet string) {
	if f.uses == nil {
		f.uses = make(map[string]int)
	}
	f.uses[wallet]++
}

type fakeGate struct {
	subscribed bool
	calls      int
}

func (f *fakeGate) IsSubscribed(wallet, authData string) bool {
	f.calls++
	return f.subscribed
}

type fakeMinter struct {
	result mint.Result
}

func (f *fakeMinter) Mint(ctx context.Context, recipient string) mint.Result {
	if f.result.TxHash == "" {
		return mint.Result{TxHash: mint.ZeroTxHash, Degraded: true, Err: errors.New("rpc unavailable")}
	}
	return f.result
}

// harness bundles the orchestrator with its injected fakes.
type harness struct {
	orch     *Orchestrator
	mistral  *fakeProvider
	claude   *fakeProvider
	ledger   *fakeLedger
	contexts *fakeContexts
	gate     *fakeGate
	history  *session.Store
}

func newHarness(t *testing.T, mutate ...func(*harness)) *harness {
	t.Helper()

	h := &harness{
		ledger:   &fakeLedger{},
		contexts: &fakeContexts{},
		gate:     &fakeGate{subscribed: true},
		history:  session.NewStore(filepath.Join(t.TempDir(), "sessions.json")),
	}
	h.mistral = &fakeProvider{
		name: "mistral", modelID: "mistral-large-latest",
		content: "Hi there", usage: models.TokenUsage{InputTokens: 5, OutputTokens: 3},
	}
	h.claude = &fakeProvider{
		name: "anthropic", modelID: "claude-3-5-sonnet-20241022",
		content: "Hello from claude", usage: models.TokenUsage{InputTokens: 7, OutputTokens: 4},
	}

	for _, m := range mutate {
		m(h)
	}

	h.orch = NewOrchestrator(
		map[provider.Model]provider.Provider{
			provider.ModelMistral:   h.mistral,
			provider.ModelAnthropic: h.claude,
		},
		h.history, h.ledger, h.contexts, h.gate, &fakeMinter{},
		Settings{
			DefaultModel:     provider.ModelAnthropic,
			DefaultRecipient: "0x00000000000000000000000000000000000000aa",
			GatedContext:     "premium",
			FreeUses:         3,
			Network:          "sepolia",
			ExplorerBase:     "https://sepolia.etherscan.io",
		},
	)
	return h
}

func TestHappyPath(t *testing.T) {
	h := newHarness(t)

	resp, err := h.orch.Ask(context.Background(), Input{Message: "Hello", Model: "mistral", WalletAddress: wallet})
	require.NoError(t, err)

	assert.Equal(t, "Hi there", resp.Output)
	assert.Equal(t, "mistral-large-latest", resp.Model)
	assert.Equal(t, "sepolia", resp.Network)
	assert.NotEmpty(t, resp.SessionID)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 5, resp.Usage.InputTokens)
	assert.Equal(t, 3, resp.Usage.OutputTokens)

	t.Run("provider got the raw message", func(t *testing.T) {
		require.Len(t, h.mistral.calls, 1)
		assert.Equal(t, "Hello", h.mistral.calls[0].Message)
		assert.Empty(t, h.claude.calls)
	})

	t.Run("exchange persisted", func(t *testing.T) {
		msgs := h.history.Load(resp.SessionID)
		require.Len(t, msgs, 2)
		assert.Equal(t, "Hello", msgs[0].Content)
		assert.Equal(t, "Hi there", msgs[1].Content)
	})

	t.Run("usage recorded for supplied wallet", func(t *testing.T) {
		require.Len(t, h.ledger.records, 1)
		rec := h.ledger.records[0]
		assert.Equal(t, wallet, rec.Wallet)
		assert.Equal(t, "mistral-large-latest", rec.Model)
		assert.Equal(t, 5, rec.InputTokens)
	})

	t.Run("mint degraded to placeholder without failing", func(t *testing.T) {
		assert.Equal(t, mint.ZeroTxHash, resp.TxHash)
		assert.Equal(t, "https://sepolia.etherscan.io/tx/"+mint.ZeroTxHash, resp.ExplorerLink)
	})
}

func TestModelSelection(t *testing.T) {
	t.Run("explicit model is honored", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.Ask(context.Background(), Input{Message: "hi", Model: "mistral"})
		require.NoError(t, err)
		assert.Len(t, h.mistral.calls, 1)
	})

	t.Run("omitted model selects the default provider", func(t *testing.T) {
		h := newHarness(t)
		resp, err := h.orch.Ask(context.Background(), Input{Message: "hi"})
		require.NoError(t, err)
		assert.Len(t, h.claude.calls, 1)
		assert.Equal(t, "claude-3-5-sonnet-20241022", resp.Model)
	})

	t.Run("unrecognized model silently maps to the default", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.orch.Ask(context.Background(), Input{Message: "hi", Model: "gpt-9000"})
		require.NoError(t, err)
		assert.Len(t, h.claude.calls, 1)
		assert.Empty(t, h.mistral.calls)
	})

	t.Run("supplied session id is kept", func(t *testing.T) {
		h := newHarness(t)
		resp, err := h.orch.Ask(context.Background(), Input{Message: "hi", SessionID: "keep-me"})
		require.NoError(t, err)
		assert.Equal(t, "keep-me", resp.SessionID)
	})
}

func TestFallback(t *testing.T) {
	t.Run("primary failure falls back exactly once with same message and session", func(t *testing.T) {
		h := newHarness(t, func(h *harness) { h.mistral.fail = true })

		resp, err := h.orch.Ask(context.Background(), Input{Message: "Hello", Model: "mistral", SessionID: "s1"})
		require.NoError(t, err)

		require.Len(t, h.mistral.calls, 1)
		require.Len(t, h.claude.calls, 1)
		assert.Equal(t, h.mistral.calls[0].Message, h.claude.calls[0].Message)
		assert.Equal(t, "s1", h.claude.calls[0].SessionID)

		assert.Equal(t, "Hello from claude", resp.Output)
		assert.Equal(t, "claude-3-5-sonnet-20241022", resp.Model)

		// Usage attributed to the provider that answered.
		require.Len(t, h.ledger.records, 1)
		assert.Equal(t, "claude-3-5-sonnet-20241022", h.ledger.records[0].Model)
	})

	t.Run("both providers down still completes the request", func(t *testing.T) {
		h := newHarness(t, func(h *harness) {
			h.mistral.fail = true
			h.claude.fail = true
		})

		resp, err := h.orch.Ask(context.Background(), Input{Message: "Hello", Model: "mistral"})
		require.NoError(t, err)

		assert.Empty(t, resp.Output)
		assert.Nil(t, resp.Usage)
		assert.Equal(t, mint.ZeroTxHash, resp.TxHash)
		assert.Empty(t, h.ledger.records, "no usage record without output")
		assert.Len(t, h.mistral.calls, 1)
		assert.Len(t, h.claude.calls, 1)
	})
}

func TestContextInjection(t *testing.T) {
	t.Run("first message gets the context frame", func(t *testing.T) {
		h := newHarness(t, func(h *harness) {
			h.contexts.text = "reference docs"
			h.contexts.known = true
		})

		_, err := h.orch.Ask(context.Background(), Input{Message: "What is X?", Model: "mistral", Context: "docs"})
		require.NoError(t, err)

		sent := h.mistral.calls[0].Message
		assert.True(t, strings.HasPrefix(sent, "Context: reference docs"), sent)
		assert.Contains(t, sent, "User Query: What is X?")
	})

	t.Run("later messages go out raw", func(t *testing.T) {
		h := newHarness(t, func(h *harness) {
			h.contexts.text = "reference docs"
			h.contexts.known = true
		})
		require.NoError(t, h.history.Append("s1", "earlier", "reply"))

		_, err := h.orch.Ask(context.Background(), Input{Message: "Follow-up", Model: "mistral", SessionID: "s1", Context: "docs"})
		require.NoError(t, err)

		assert.Equal(t, "Follow-up", h.mistral.calls[0].Message)
	})

	t.Run("unknown context sends the raw message", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.orch.Ask(context.Background(), Input{Message: "hi", Model: "mistral", Context: "nope"})
		require.NoError(t, err)
		assert.Equal(t, "hi", h.mistral.calls[0].Message)
	})

	t.Run("file content is appended to the outgoing text only", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.orch.Ask(context.Background(), Input{Message: "summarize", Model: "mistral", SessionID: "s1", FileContent: "# attached doc"})
		require.NoError(t, err)

		assert.Equal(t, "summarize\n\n# attached doc", h.mistral.calls[0].Message)
	})

	t.Run("file content never reaches the conversation history", func(t *testing.T) {
		h := newHarness(t)

		_, err := h.orch.Ask(context.Background(), Input{Message: "summarize", Model: "mistral", SessionID: "s1", FileContent: "# attached doc"})
		require.NoError(t, err)

		msgs := h.history.Load("s1")
		require.Len(t, msgs, 2)
		assert.Equal(t, "summarize", msgs[0].Content)
		for _, m := range msgs {
			assert.NotContains(t, m.Content, "# attached doc")
		}

		// A later turn must not replay the attachment to the provider.
		_, err = h.orch.Ask(context.Background(), Input{Message: "and then?", Model: "mistral", SessionID: "s1"})
		require.NoError(t, err)
		assert.Equal(t, "and then?", h.mistral.calls[1].Message)
	})
}

func TestGateThreshold(t *testing.T) {
	t.Run("free quota skips the subscription check", func(t *testing.T) {
		h := newHarness(t, func(h *harness) { h.gate.subscribed = false })

		for i := 0; i < 3; i++ {
			_, err := h.orch.Ask(context.Background(), Input{Message: "hi", Model: "mistral", Context: "premium", WalletAddress: wallet})
			require.NoError(t, err)
		}
		assert.Zero(t, h.gate.calls)
	})

	t.Run("fourth request invokes the check and fails with payment required", func(t *testing.T) {
		h := newHarness(t, func(h *harness) { h.gate.subscribed = false })

		for i := 0; i < 3; i++ {
			_, err := h.orch.Ask(context.Background(), Input{Message: "hi", Model: "mistral", Context: "premium", WalletAddress: wallet})
			require.NoError(t, err)
		}

		_, err := h.orch.Ask(context.Background(), Input{Message: "hi", Model: "mistral", Context: "premium", WalletAddress: wallet})
		assert.ErrorIs(t, err, ErrPaymentRequired)
		assert.Equal(t, 1, h.gate.calls)
	})

	t.Run("subscribed wallet passes the threshold", func(t *testing.T) {
		h := newHarness(t)
		for i := 0; i < 5; i++ {
			_, err := h.orch.Ask(context.Background(), Input{Message: "hi", Model: "mistral", Context: "premium", WalletAddress: wallet})
			require.NoError(t, err)
		}
		assert.Equal(t, 2, h.gate.calls)
	})

	t.Run("non-gated context never consults the gate", func(t *testing.T) {
		h := newHarness(t, func(h *harness) { h.gate.subscribed = false })
		for i := 0; i < 5; i++ {
			_, err := h.orch.Ask(context.Background(), Input{Message: "hi", Model: "mistral", Context: "docs", WalletAddress: wallet})
			require.NoError(t, err)
		}
		assert.Zero(t, h.gate.calls)
	})
}

func TestWalletResolution(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Ask(context.Background(), Input{Message: "hi", Model: "mistral"})
	require.NoError(t, err)

	require.Len(t, h.ledger.records, 1)
	assert.Equal(t, "0x00000000000000000000000000000000000000aa", h.ledger.records[0].Wallet)
}
