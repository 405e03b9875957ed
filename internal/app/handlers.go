package app

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"chaingate/internal/siwe"
	"chaingate/internal/webreader"
	"chaingate/pkg/utils"
)

// handleWebReader fetches a remote page and returns its cleaned text.
func (a *App) handleWebReader(w http.ResponseWriter, r *http.Request) {
	a.serveWebReader(w, r, a.deps.Reader.Fetch)
}

// handleWebReaderLLM returns the same text framed for prompt use.
func (a *App) handleWebReaderLLM(w http.ResponseWriter, r *http.Request) {
	a.serveWebReader(w, r, a.deps.Reader.FetchForLLM)
}

func (a *App) serveWebReader(w http.ResponseWriter, r *http.Request,
	fetch func(ctx context.Context, rawURL string) (string, error)) {

	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url query parameter is required", http.StatusBadRequest)
		return
	}

	text, err := fetch(r.Context(), url)
	if err != nil {
		if errors.Is(err, webreader.ErrBadURL) {
			http.Error(w, "invalid url", http.StatusBadRequest)
			return
		}
		http.Error(w, "failed to fetch url", http.StatusBadGateway)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]string{"url": url, "content": text})
}

// challengeResponse is the GET /siwe/challenge body.
type challengeResponse struct {
	WalletAddress string `json:"walletAddress"`
	Nonce         string `json:"nonce"`
	Message       string `json:"message"`
}

func (a *App) handleSiweChallenge(w http.ResponseWriter, r *http.Request) {
	wallet := r.URL.Query().Get("walletAddress")
	if !utils.IsWalletAddress(wallet) {
		http.Error(w, "malformed wallet address", http.StatusBadRequest)
		return
	}

	nonce := a.deps.Nonces.Issue(wallet)
	utils.WriteJSON(w, http.StatusOK, challengeResponse{
		WalletAddress: wallet,
		Nonce:         nonce,
		Message:       siwe.ChallengeMessage(wallet, nonce),
	})
}

type verifyRequest struct {
	WalletAddress string `json:"walletAddress"`
	Nonce         string `json:"nonce"`
	Signature     string `json:"signature"`
}

type verifyResponse struct {
	OK    bool   `json:"ok"`
	Token string `json:"token,omitempty"`
}

// handleSiweVerify checks a signed challenge and, on success, issues the
// subscription bearer token the access gate accepts later.
func (a *App) handleSiweVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !utils.IsWalletAddress(req.WalletAddress) || req.Nonce == "" || req.Signature == "" {
		http.Error(w, "walletAddress, nonce and signature are required", http.StatusBadRequest)
		return
	}

	ok, err := a.deps.Verifier.Verify(req.WalletAddress, req.Nonce, req.Signature)
	if err != nil || !ok {
		utils.WriteJSON(w, http.StatusUnauthorized, verifyResponse{OK: false})
		return
	}

	token, err := a.deps.Tokens.Issue(req.WalletAddress)
	if err != nil {
		log.Printf("app: issue token: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, verifyResponse{OK: true, Token: token})
}
