// Package app wires the HTTP surface of the gateway: the chat endpoint,
// usage reports, session history, context management, the web reader, and
// the SIWE challenge flow.
package app

import (
	"net/http"

	"chaingate/internal/chat"
	"chaingate/internal/config"
	"chaingate/internal/contexts"
	"chaingate/internal/ledger"
	"chaingate/internal/session"
	"chaingate/internal/siwe"
	"chaingate/internal/webreader"
	"chaingate/pkg/models"
	"chaingate/pkg/utils"
)

// Deps collects the collaborators the HTTP layer dispatches to. Everything
// is constructed in main and injected; the app holds no ambient state.
type Deps struct {
	Config       *config.Config
	Orchestrator *chat.Orchestrator
	Ledger       *ledger.Ledger
	Sessions     *session.Store
	Contexts     *contexts.Store
	Reader       *webreader.Reader
	Nonces       *siwe.NonceStore
	Verifier     *siwe.Verifier
	Tokens       *siwe.TokenService
}

// App represents the main application with its router and collaborators.
type App struct {
	Router  *http.ServeMux
	deps    Deps
	limiter *utils.RateLimiter
}

// NewApp creates and initializes a new instance of the App struct.
func NewApp(deps Deps) *App {
	app := &App{
		Router:  http.NewServeMux(),
		deps:    deps,
		limiter: utils.NewRateLimiter(deps.Config.RateLimit, deps.Config.RatePeriod),
	}

	app.initializeRoutes()
	return app
}

func (a *App) initializeRoutes() {
	a.Router.HandleFunc("GET /{$}", a.handleIndex)
	a.Router.HandleFunc("POST /ask", a.handleAsk)

	a.Router.HandleFunc("GET /usage", a.handleUsageReport)
	a.Router.HandleFunc("GET /usage/{wallet}", a.handleWalletUsage)
	a.Router.HandleFunc("GET /session/{id}", a.handleSessionHistory)
	a.Router.HandleFunc("DELETE /session/{id}", a.handleSessionDelete)

	a.Router.HandleFunc("POST /contexts", a.handleContextCreate)
	a.Router.HandleFunc("GET /contexts", a.handleContextList)
	a.Router.HandleFunc("DELETE /contexts/{name}", a.handleContextDelete)
	a.Router.HandleFunc("POST /contexts/{name}/files", a.handleFileUpload)
	a.Router.HandleFunc("GET /contexts/{name}/files", a.handleFileList)
	a.Router.HandleFunc("GET /contexts/{name}/files/{file}", a.handleFileGet)
	a.Router.HandleFunc("DELETE /contexts/{name}/files/{file}", a.handleFileDelete)
	a.Router.HandleFunc("POST /contexts/{name}/links", a.handleLinkAdd)
	a.Router.HandleFunc("GET /contexts/{name}/links", a.handleLinkList)
	a.Router.HandleFunc("DELETE /contexts/{name}/links", a.handleLinkDelete)

	a.Router.HandleFunc("GET /web-reader", a.handleWebReader)
	a.Router.HandleFunc("GET /web-reader/llm", a.handleWebReaderLLM)

	a.Router.HandleFunc("GET /siwe/challenge", a.handleSiweChallenge)
	a.Router.HandleFunc("POST /siwe/verify", a.handleSiweVerify)
}

const indexHTML = `<!DOCTYPE html>
<html>
<head><title>chaingate</title></head>
<body>
<h1>chaingate</h1>
<p>Chat gateway with per-request token minting.</p>
<ul>
<li><code>POST /ask</code> &mdash; send a chat message</li>
<li><code>GET /usage</code> &mdash; global usage report</li>
<li><code>GET /siwe/challenge</code> &mdash; sign-in challenge</li>
</ul>
</body>
</html>
`

// handleIndex serves the static informational page. It is deliberately
// exempt from the rate limit.
func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

func (a *App) handleUsageReport(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, a.deps.Ledger.GenerateReport())
}

func (a *App) handleWalletUsage(w http.ResponseWriter, r *http.Request) {
	wallet := r.PathValue("wallet")
	if !utils.IsWalletAddress(wallet) {
		http.Error(w, "malformed wallet address", http.StatusBadRequest)
		return
	}
	utils.WriteJSON(w, http.StatusOK, a.deps.Ledger.GenerateWalletReport(wallet))
}

// sessionHistoryResponse is the GET /session/{id} body.
type sessionHistoryResponse struct {
	SessionID string           `json:"sessionId"`
	Messages  []models.Message `json:"messages"`
}

func (a *App) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	msgs := a.deps.Sessions.Load(id)
	if msgs == nil {
		msgs = []models.Message{}
	}
	utils.WriteJSON(w, http.StatusOK, sessionHistoryResponse{SessionID: id, Messages: msgs})
}

func (a *App) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Sessions.Clear(r.PathValue("id")); err != nil {
		http.Error(w, "failed to clear session", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
