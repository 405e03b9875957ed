package app

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"

	"chaingate/internal/chat"
	"chaingate/pkg/models"
	"chaingate/pkg/utils"
)

// handleAsk is the chat endpoint. It accepts either a JSON body or a
// multipart form with the same fields plus one optional markdown file.
// Once validation and the access check pass, the response is always 201:
// provider and side-effect failures degrade inside the body.
func (a *App) handleAsk(w http.ResponseWriter, r *http.Request) {
	if !a.limiter.Allow(utils.ClientIP(r)) {
		http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
		return
	}

	input, err := a.parseAskRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := a.deps.Orchestrator.Ask(r.Context(), *input)
	if err != nil {
		if errors.Is(err, chat.ErrPaymentRequired) {
			http.Error(w, err.Error(), http.StatusPaymentRequired)
			return
		}
		// The orchestrator has no other error path; treat anything else
		// as a server fault.
		log.Printf("app: ask: %v", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, resp)
}

// parseAskRequest normalizes the JSON and multipart request shapes into a
// chat.Input, applying the validation rules: message required, wallet
// address format, markdown-only size-capped upload.
func (a *App) parseAskRequest(r *http.Request) (*chat.Input, error) {
	var req models.AskRequest
	var fileContent string

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "multipart/") {
		if err := r.ParseMultipartForm(a.deps.Config.UploadMaxBytes + 64<<10); err != nil {
			return nil, errors.New("malformed multipart body")
		}

		req.Message = r.FormValue("message")
		req.Model = r.FormValue("model")
		req.SessionID = r.FormValue("sessionId")
		req.WalletAddress = r.FormValue("walletAddress")
		req.Context = r.FormValue("context")
		if data := r.FormValue("data"); data != "" {
			if err := json.Unmarshal([]byte(data), &req.Data); err != nil {
				return nil, errors.New("malformed data field")
			}
		}

		content, err := a.readUpload(r)
		if err != nil {
			return nil, err
		}
		fileContent = content
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.New("invalid request body")
		}
	}

	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.New("message is required")
	}
	if req.WalletAddress != "" && !utils.IsWalletAddress(req.WalletAddress) {
		return nil, errors.New("malformed wallet address")
	}

	var authData string
	if req.Data != nil {
		raw, err := json.Marshal(req.Data)
		if err == nil {
			authData = string(raw)
		}
	}

	return &chat.Input{
		Message:       req.Message,
		Model:         req.Model,
		SessionID:     req.SessionID,
		WalletAddress: req.WalletAddress,
		Context:       req.Context,
		FileContent:   fileContent,
		AuthData:      authData,
	}, nil
}

// readUpload extracts the optional markdown attachment from a multipart
// request. Absence is fine; a non-markdown or oversize file is a
// validation error.
func (a *App) readUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", errors.New("unreadable file part")
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".md") {
		return "", errors.New("only markdown files are accepted")
	}
	if header.Size > a.deps.Config.UploadMaxBytes {
		return "", errors.New("file too large")
	}

	content, err := io.ReadAll(io.LimitReader(file, a.deps.Config.UploadMaxBytes+1))
	if err != nil {
		return "", errors.New("unreadable file part")
	}
	if int64(len(content)) > a.deps.Config.UploadMaxBytes {
		return "", errors.New("file too large")
	}

	return string(content), nil
}
