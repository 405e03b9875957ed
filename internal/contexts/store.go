// Package contexts manages named, password-protected bundles of markdown
// documents and links. The orchestrator consumes a bundle only as a resolved
// text blob used for first-message context injection; the management surface
// (create, upload, links) is its own password-gated API.
package contexts

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store errors surfaced to the HTTP layer.
var (
	ErrNotFound     = errors.New("context not found")
	ErrExists       = errors.New("context already exists")
	ErrUnauthorized = errors.New("invalid context password")
	ErrNotMarkdown  = errors.New("only markdown files are accepted")
)

// UseEntry records one gated or ungated use of a context by a wallet.
type UseEntry struct {
	Wallet    string `json:"wallet"`
	Timestamp int64  `json:"timestamp"`
}

// Context is one named bundle. The password is stored as a salted-less
// SHA-256 hash; file contents are kept inline in the metadata document.
type Context struct {
	Name         string            `json:"name"`
	PasswordHash string            `json:"passwordHash"`
	Description  string            `json:"description"`
	Files        map[string]string `json:"files"`
	Links        []string          `json:"links"`
	Usage        []UseEntry        `json:"usage"`
	CreatedAt    int64             `json:"createdAt"`
}

// Summary is the password-free listing shape.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FileCount   int    `json:"fileCount"`
	LinkCount   int    `json:"linkCount"`
}

// Store persists all context bundles in one JSON document guarded by a
// store-wide mutex, same discipline as the session store.
type Store struct {
	path string
	mu   sync.Mutex
	data map[string]*Context
}

// NewStore opens (or initializes) the context store at path.
func NewStore(path string) *Store {
	s := &Store{path: path, data: make(map[string]*Context)}

	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("contexts: read %s: %v", path, err)
		}
		return s
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		log.Printf("contexts: corrupt store %s, starting empty: %v", path, err)
		s.data = make(map[string]*Context)
	}

	return s
}

// Create registers a new named bundle.
func (s *Store) Create(name, password, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[name]; ok {
		return ErrExists
	}

	s.data[name] = &Context{
		Name:         name,
		PasswordHash: hashPassword(password),
		Description:  description,
		Files:        make(map[string]string),
		CreatedAt:    time.Now().UnixMilli(),
	}
	return s.persist()
}

// List returns password-free summaries of every bundle, sorted by name.
func (s *Store) List() []Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Summary, 0, len(s.data))
	for _, c := range s.data {
		out = append(out, Summary{
			Name:        c.Name,
			Description: c.Description,
			FileCount:   len(c.Files),
			LinkCount:   len(c.Links),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Delete removes a bundle entirely.
func (s *Store) Delete(name, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.authed(name, password); err != nil {
		return err
	}
	delete(s.data, name)
	return s.persist()
}

// SaveFile stores a markdown document in the bundle, overwriting any
// previous file of the same name.
func (s *Store) SaveFile(name, password, filename, content string) error {
	if !strings.HasSuffix(strings.ToLower(filename), ".md") {
		return ErrNotMarkdown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.authed(name, password)
	if err != nil {
		return err
	}
	c.Files[filename] = content
	return s.persist()
}

// ListFiles returns the bundle's file names, sorted.
func (s *Store) ListFiles(name, password string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.authed(name, password)
	if err != nil {
		return nil, err
	}

	files := make([]string, 0, len(c.Files))
	for f := range c.Files {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}

// GetFile returns one document's content.
func (s *Store) GetFile(name, password, filename string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.authed(name, password)
	if err != nil {
		return "", err
	}

	content, ok := c.Files[filename]
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

// DeleteFile removes one document from the bundle.
func (s *Store) DeleteFile(name, password, filename string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.authed(name, password)
	if err != nil {
		return err
	}
	if _, ok := c.Files[filename]; !ok {
		return ErrNotFound
	}
	delete(c.Files, filename)
	return s.persist()
}

// AddLink appends a reference link to the bundle.
func (s *Store) AddLink(name, password, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.authed(name, password)
	if err != nil {
		return err
	}
	c.Links = append(c.Links, url)
	return s.persist()
}

// ListLinks returns the bundle's links in insertion order.
func (s *Store) ListLinks(name, password string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.authed(name, password)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), c.Links...), nil
}

// DeleteLink removes one link by exact value.
func (s *Store) DeleteLink(name, password, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.authed(name, password)
	if err != nil {
		return err
	}

	for i, l := range c.Links {
		if l == url {
			c.Links = append(c.Links[:i], c.Links[i+1:]...)
			return s.persist()
		}
	}
	return ErrNotFound
}

// Resolve concatenates the bundle's markdown documents (sorted by file
// name) into the prefix text the orchestrator injects on a session's first
// message. No password: the bundle name alone selects the text.
func (s *Store) Resolve(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data[name]
	if !ok {
		return "", false
	}

	files := make([]string, 0, len(c.Files))
	for f := range c.Files {
		files = append(files, f)
	}
	sort.Strings(files)

	parts := make([]string, 0, len(files))
	for _, f := range files {
		parts = append(parts, c.Files[f])
	}
	return strings.Join(parts, "\n\n"), true
}

// RecordUse appends one use attributed to the wallet. Persistence failures
// are logged and swallowed; usage accounting never blocks a chat response.
func (s *Store) RecordUse(name, wallet string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data[name]
	if !ok {
		return
	}

	c.Usage = append(c.Usage, UseEntry{Wallet: wallet, Timestamp: time.Now().UnixMilli()})
	if err := s.persist(); err != nil {
		log.Printf("contexts: persist usage for %s: %v", name, err)
	}
}

// UsageCount reports how many prior uses of the context are attributed to
// the wallet.
func (s *Store) UsageCount(name, wallet string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.data[name]
	if !ok {
		return 0
	}

	count := 0
	for _, u := range c.Usage {
		if strings.EqualFold(u.Wallet, wallet) {
			count++
		}
	}
	return count
}

// authed looks up a bundle and checks its password. Callers hold the mutex.
func (s *Store) authed(name, password string) (*Context, error) {
	c, ok := s.data[name]
	if !ok {
		return nil, ErrNotFound
	}
	if c.PasswordHash != hashPassword(password) {
		return nil, ErrUnauthorized
	}
	return c, nil
}

func (s *Store) persist() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, raw, 0o644)
}

func hashPassword(password string) string {
	hash := sha256.Sum256([]byte(password))
	return "$sha256$" + base64.URLEncoding.EncodeToString(hash[:])
}
