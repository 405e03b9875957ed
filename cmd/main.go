package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"chaingate/internal/app"
	"chaingate/internal/chat"
	"chaingate/internal/config"
	"chaingate/internal/contexts"
	"chaingate/internal/gate"
	"chaingate/internal/ledger"
	"chaingate/internal/mint"
	"chaingate/internal/provider"
	"chaingate/internal/session"
	"chaingate/internal/siwe"
	"chaingate/internal/webreader"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Could not load configuration: %v", err)
	}

	// Create a context that will be canceled on program termination
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling for graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		cancel()
	}()

	// JSON-file stores share one data directory
	sessions := session.NewStore(filepath.Join(cfg.DataDir, "sessions.json"))
	usageLedger := ledger.NewLedger(filepath.Join(cfg.DataDir, "ledger.json"))
	contextStore := contexts.NewStore(filepath.Join(cfg.DataDir, "contexts.json"))

	// SIWE stack: nonces, signature verification, subscription tokens
	nonces := siwe.NewNonceStore()
	verifier := siwe.NewVerifier(nonces)
	if cfg.JWTSecret == "" {
		log.Printf("JWT_SECRET not set; issued subscription tokens will not survive restarts")
	}
	tokens := siwe.NewTokenService(cfg.JWTSecret)

	providers := map[provider.Model]provider.Provider{
		provider.ModelMistral:   provider.NewMistral(cfg.MistralAPIKey, sessions),
		provider.ModelAnthropic: provider.NewAnthropic(cfg.AnthropicAPIKey, sessions),
	}
	for _, p := range providers {
		log.Printf("Enabled LLM provider: %s", p.Name())
	}

	minter := mint.NewMinter(cfg.RPCURL, cfg.MinterKey, cfg.MintContract, cfg.ChainID, cfg.MintAmountWei)

	orchestrator := chat.NewOrchestrator(
		providers, sessions, usageLedger, contextStore,
		gate.NewGate(verifier, tokens), minter,
		chat.Settings{
			DefaultModel:     provider.ResolveModel(cfg.DefaultModel),
			DefaultRecipient: cfg.DefaultRecipient,
			GatedContext:     cfg.GatedContext,
			FreeUses:         cfg.FreeUses,
			SystemPrompt:     cfg.SystemPrompt,
			Network:          cfg.Network,
			ExplorerBase:     cfg.ExplorerBase,
		},
	)

	a := app.NewApp(app.Deps{
		Config:       cfg,
		Orchestrator: orchestrator,
		Ledger:       usageLedger,
		Sessions:     sessions,
		Contexts:     contextStore,
		Reader:       webreader.NewReader(),
		Nonces:       nonces,
		Verifier:     verifier,
		Tokens:       tokens,
	})

	// Start HTTP server with graceful shutdown
	server := &http.Server{
		Addr:    cfg.Addr,
		Handler: a.Router,
	}

	go func() {
		log.Printf("Starting server on %s...", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	} else {
		log.Println("Server gracefully stopped")
	}
}
