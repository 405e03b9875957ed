// Package ledger tracks per-request token usage and dollar cost in a JSON
// file, aggregated per wallet address and per model.
package ledger

import (
	"encoding/json"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"chaingate/pkg/models"
)

// AnonymousWallet is the shared bucket used when usage is recorded without
// a wallet address. The orchestrator normally resolves an empty wallet to
// the configured default recipient before it reaches the ledger.
const AnonymousWallet = "anonymous"

// Rate is the dollar cost per thousand tokens for one model.
type Rate struct {
	Input  float64
	Output float64
}

// defaultRates is the per-model rate table. Unknown model names fall back
// to fallbackRate rather than failing the request.
var defaultRates = map[string]Rate{
	"mistral-large-latest":       {Input: 0.002, Output: 0.006},
	"claude-3-5-sonnet-20241022": {Input: 0.003, Output: 0.015},
}

var fallbackRate = Rate{Input: 0.002, Output: 0.006}

// walletUsage holds one wallet's aggregate totals and its record history.
type walletUsage struct {
	Totals  models.ModelTotals   `json:"totals"`
	Records []models.UsageRecord `json:"records"`
}

// ledgerFile is the on-disk document.
type ledgerFile struct {
	Wallets       map[string]*walletUsage        `json:"wallets"`
	Models        map[string]*models.ModelTotals `json:"models"`
	TotalRequests int                            `json:"totalRequests"`
	TotalCost     float64                        `json:"totalCost"`
	LastUpdated   int64                          `json:"lastUpdated"`
}

// Ledger is the append-only cost ledger. All mutation goes through a single
// mutex; every write serializes the whole document back to disk.
type Ledger struct {
	path  string
	rates map[string]Rate
	mu    sync.Mutex
	data  *ledgerFile
}

// NewLedger opens (or initializes) the ledger at path. Aggregate totals are
// rebuilt from the persisted UsageRecords on load, so a diverged or stale
// totals block in the file is corrected rather than trusted.
func NewLedger(path string) *Ledger {
	l := &Ledger{path: path, rates: defaultRates}
	l.data = l.read()
	l.rebuildTotals()
	return l
}

// RecordUsage books one completed exchange. Zero token counts are estimated
// from the text as ceil(len/4). Each cost component is rounded to 4 decimal
// places before any summation so floating-point drift cannot compound.
// A persistence failure is returned for the caller to log; it must never
// abort the in-flight response.
func (l *Ledger) RecordUsage(wallet, message, sessionID, model, inputText, outputText string, inputTokens, outputTokens int) error {
	if wallet == "" {
		wallet = AnonymousWallet
	}
	if inputTokens == 0 {
		inputTokens = EstimateTokens(inputText)
	}
	if outputTokens == 0 {
		outputTokens = EstimateTokens(outputText)
	}

	rate, ok := l.rates[model]
	if !ok {
		rate = fallbackRate
	}

	inputCost := round4(float64(inputTokens) / 1000 * rate.Input)
	outputCost := round4(float64(outputTokens) / 1000 * rate.Output)

	rec := models.UsageRecord{
		Timestamp:    time.Now().UnixMilli(),
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    round4(inputCost + outputCost),
		Message:      message,
		SessionID:    sessionID,
		Model:        model,
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.data.Wallets[wallet]
	if w == nil {
		w = &walletUsage{}
		l.data.Wallets[wallet] = w
	}
	w.Records = append(w.Records, rec)
	addRecord(&w.Totals, rec)

	m := l.data.Models[model]
	if m == nil {
		m = &models.ModelTotals{}
		l.data.Models[model] = m
	}
	addRecord(m, rec)

	l.data.TotalRequests++
	l.data.TotalCost = round4(l.data.TotalCost + rec.TotalCost)
	l.data.LastUpdated = rec.Timestamp

	return l.write()
}

// GlobalReport summarizes all recorded usage.
type GlobalReport struct {
	TotalRequests int                            `json:"totalRequests"`
	TotalCost     string                         `json:"totalCost"`
	Models        map[string]*models.ModelTotals `json:"models"`
	LastUpdated   int64                          `json:"lastUpdated"`
}

// WalletReport summarizes one wallet's usage. HasData is false when the
// wallet has never been seen.
type WalletReport struct {
	WalletAddress string               `json:"walletAddress"`
	HasData       bool                 `json:"hasData"`
	Totals        models.ModelTotals   `json:"totals"`
	Records       []models.UsageRecord `json:"records,omitempty"`
}

// GenerateReport returns the global aggregates.
func (l *Ledger) GenerateReport() GlobalReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	modelTotals := make(map[string]*models.ModelTotals, len(l.data.Models))
	for name, t := range l.data.Models {
		copied := *t
		modelTotals[name] = &copied
	}

	return GlobalReport{
		TotalRequests: l.data.TotalRequests,
		TotalCost:     formatCost(l.data.TotalCost),
		Models:        modelTotals,
		LastUpdated:   l.data.LastUpdated,
	}
}

// GenerateWalletReport returns one wallet's totals and record history, or
// an explicit no-data marker when the wallet is absent.
func (l *Ledger) GenerateWalletReport(wallet string) WalletReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.data.Wallets[wallet]
	if !ok {
		return WalletReport{WalletAddress: wallet}
	}

	records := make([]models.UsageRecord, len(w.Records))
	copy(records, w.Records)

	return WalletReport{
		WalletAddress: wallet,
		HasData:       true,
		Totals:        w.Totals,
		Records:       records,
	}
}

// EstimateTokens approximates a token count as ceil(len/4), the common
// rough heuristic for English-like text.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

func addRecord(t *models.ModelTotals, rec models.UsageRecord) {
	t.Requests++
	t.InputTokens += rec.InputTokens
	t.OutputTokens += rec.OutputTokens
	t.Cost = round4(t.Cost + rec.TotalCost)
}

// rebuildTotals recomputes every aggregate from the record fold, discarding
// whatever the file claimed. Keeps the derived-data invariant after manual
// edits or partial writes.
func (l *Ledger) rebuildTotals() {
	l.data.Models = make(map[string]*models.ModelTotals)
	l.data.TotalRequests = 0
	l.data.TotalCost = 0

	for _, w := range l.data.Wallets {
		w.Totals = models.ModelTotals{}
		for _, rec := range w.Records {
			addRecord(&w.Totals, rec)

			m := l.data.Models[rec.Model]
			if m == nil {
				m = &models.ModelTotals{}
				l.data.Models[rec.Model] = m
			}
			addRecord(m, rec)

			l.data.TotalRequests++
			l.data.TotalCost = round4(l.data.TotalCost + rec.TotalCost)
		}
	}
}

func (l *Ledger) read() *ledgerFile {
	doc := &ledgerFile{Wallets: make(map[string]*walletUsage)}

	raw, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("ledger: read %s: %v", l.path, err)
		}
		return doc
	}

	if err := json.Unmarshal(raw, doc); err != nil {
		log.Printf("ledger: corrupt store %s, starting empty: %v", l.path, err)
		doc.Wallets = make(map[string]*walletUsage)
	}
	if doc.Wallets == nil {
		doc.Wallets = make(map[string]*walletUsage)
	}

	return doc
}

func (l *Ledger) write() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(l.data, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(l.path, raw, 0o644)
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// formatCost renders a dollar amount with exactly 4 decimal places.
func formatCost(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
