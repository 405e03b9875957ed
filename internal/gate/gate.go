// Package gate decides whether a wallet may keep using the gated premium
// context once its free-use quota is exhausted.
package gate

import (
	"encoding/json"
	"log"
	"strings"

	"chaingate/internal/siwe"
)

// DefaultFreeUses is the number of gated-context requests a wallet gets
// before the subscription check engages.
const DefaultFreeUses = 3

// SignatureVerifier reports whether a nonce+signature pair proves control
// of a wallet. Satisfied by *siwe.Verifier.
type SignatureVerifier interface {
	Verify(wallet, nonce, signature string) (bool, error)
}

// TokenValidator parses a previously issued subscription token. Satisfied
// by *siwe.TokenService.
type TokenValidator interface {
	Validate(token string) (*siwe.SubscriptionClaims, error)
}

// authPayload is the auth blob callers attach to a gated request. Either a
// bearer token from an earlier verify, or a fresh nonce+signature pair.
type authPayload struct {
	Token     string `json:"token"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

// Gate is the subscription check. Its policy is fail open: anonymous
// callers, missing auth data, and internal errors all grant access. Only a
// cleanly negative verification denies.
type Gate struct {
	verifier SignatureVerifier
	tokens   TokenValidator
}

// NewGate creates an access gate.
func NewGate(verifier SignatureVerifier, tokens TokenValidator) *Gate {
	return &Gate{verifier: verifier, tokens: tokens}
}

// IsSubscribed reports whether the wallet holds an active subscription.
func (g *Gate) IsSubscribed(wallet, authData string) bool {
	if wallet == "" || authData == "" {
		// Anonymous, unrestricted.
		return true
	}

	var payload authPayload
	if err := json.Unmarshal([]byte(authData), &payload); err != nil {
		log.Printf("gate: malformed auth data, granting access: %v", err)
		return true
	}

	if payload.Token != "" {
		claims, err := g.tokens.Validate(payload.Token)
		if err == nil && strings.EqualFold(claims.WalletAddress, wallet) && claims.Subscribed {
			return true
		}
		// A bad token alone does not deny; a signature may still follow.
	}

	if payload.Nonce != "" && payload.Signature != "" {
		ok, err := g.verifier.Verify(wallet, payload.Nonce, payload.Signature)
		if err != nil {
			log.Printf("gate: verification error, granting access: %v", err)
			return true
		}
		return ok
	}

	// Nothing checkable in the payload.
	return true
}
