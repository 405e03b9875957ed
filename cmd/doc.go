// Package main runs the chaingate chat gateway.
//
// The gateway sits between users and the Mistral and Anthropic chat APIs,
// handling model selection and fallback, conversation persistence, usage
// accounting, and premium-context access control backed by wallet
// signatures. Every served request additionally triggers a best-effort
// token mint to the caller's wallet.
//
// Main components:
//   - Chat orchestration with provider fallback
//   - JSON-file session, ledger, and context stores
//   - Sign-In with Ethereum challenge flow and subscription tokens
//   - On-chain mint side effect
package main
