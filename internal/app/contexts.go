package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"chaingate/internal/contexts"
	"chaingate/pkg/utils"
)

// passwordHeader carries the per-context password on every management
// call, independent of the /ask flow.
const passwordHeader = "X-Context-Password"

// contextStatus maps store errors onto HTTP status codes.
func contextStatus(err error) int {
	switch {
	case errors.Is(err, contexts.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, contexts.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, contexts.ErrExists):
		return http.StatusConflict
	case errors.Is(err, contexts.ErrNotMarkdown):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type createContextRequest struct {
	Name        string `json:"name"`
	Password    string `json:"password"`
	Description string `json:"description"`
}

func (a *App) handleContextCreate(w http.ResponseWriter, r *http.Request) {
	var req createContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Name) == "" || req.Password == "" {
		http.Error(w, "name and password are required", http.StatusBadRequest)
		return
	}

	if err := a.deps.Contexts.Create(req.Name, req.Password, req.Description); err != nil {
		http.Error(w, err.Error(), contextStatus(err))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
}

func (a *App) handleContextList(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, a.deps.Contexts.List())
}

func (a *App) handleContextDelete(w http.ResponseWriter, r *http.Request) {
	err := a.deps.Contexts.Delete(r.PathValue("name"), r.Header.Get(passwordHeader))
	if err != nil {
		http.Error(w, err.Error(), contextStatus(err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// handleFileUpload stores one markdown document. The document arrives as a
// multipart file part named "file".
func (a *App) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(a.deps.Config.UploadMaxBytes + 64<<10); err != nil {
		http.Error(w, "malformed multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file part is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > a.deps.Config.UploadMaxBytes {
		http.Error(w, "file too large", http.StatusBadRequest)
		return
	}

	content, err := io.ReadAll(io.LimitReader(file, a.deps.Config.UploadMaxBytes+1))
	if err != nil || int64(len(content)) > a.deps.Config.UploadMaxBytes {
		http.Error(w, "file too large", http.StatusBadRequest)
		return
	}

	err = a.deps.Contexts.SaveFile(r.PathValue("name"), r.Header.Get(passwordHeader), header.Filename, string(content))
	if err != nil {
		http.Error(w, err.Error(), contextStatus(err))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]string{"file": header.Filename})
}

func (a *App) handleFileList(w http.ResponseWriter, r *http.Request) {
	files, err := a.deps.Contexts.ListFiles(r.PathValue("name"), r.Header.Get(passwordHeader))
	if err != nil {
		http.Error(w, err.Error(), contextStatus(err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string][]string{"files": files})
}

func (a *App) handleFileGet(w http.ResponseWriter, r *http.Request) {
	content, err := a.deps.Contexts.GetFile(r.PathValue("name"), r.Header.Get(passwordHeader), r.PathValue("file"))
	if err != nil {
		http.Error(w, err.Error(), contextStatus(err))
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Write([]byte(content))
}

func (a *App) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	err := a.deps.Contexts.DeleteFile(r.PathValue("name"), r.Header.Get(passwordHeader), r.PathValue("file"))
	if err != nil {
		http.Error(w, err.Error(), contextStatus(err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

type linkRequest struct {
	URL string `json:"url"`
}

func (a *App) handleLinkAdd(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	if err := a.deps.Contexts.AddLink(r.PathValue("name"), r.Header.Get(passwordHeader), req.URL); err != nil {
		http.Error(w, err.Error(), contextStatus(err))
		return
	}
	utils.WriteJSON(w, http.StatusCreated, map[string]string{"url": req.URL})
}

func (a *App) handleLinkList(w http.ResponseWriter, r *http.Request) {
	links, err := a.deps.Contexts.ListLinks(r.PathValue("name"), r.Header.Get(passwordHeader))
	if err != nil {
		http.Error(w, err.Error(), contextStatus(err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string][]string{"links": links})
}

// handleLinkDelete removes the link named by the url query parameter.
func (a *App) handleLinkDelete(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "url query parameter is required", http.StatusBadRequest)
		return
	}

	if err := a.deps.Contexts.DeleteLink(r.PathValue("name"), r.Header.Get(passwordHeader), url); err != nil {
		http.Error(w, err.Error(), contextStatus(err))
		return
	}
	utils.WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
