// Package session implements the JSON-file conversation store. Every
// session's messages live in a single document keyed by session id; each
// append is a full read-modify-write of that document.
package session

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"

	"chaingate/pkg/models"
)

// Store persists conversation messages to a single JSON file. A store-wide
// mutex serializes the read-modify-write cycle so concurrent requests to the
// same file cannot lose an appended exchange.
type Store struct {
	path string
	mu   sync.Mutex
}

// storeFile is the on-disk document: session id to ordered message list.
type storeFile struct {
	Sessions map[string][]models.Message `json:"sessions"`
}

// NewStore creates a session store backed by the JSON file at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load returns the ordered messages of a session. A missing or corrupt
// backing file and an unknown session id both yield an empty slice, never
// an error: the caller interprets emptiness as "first message of a new
// conversation". Reading alone never creates a persisted record.
func (s *Store) Load(sessionID string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	return doc.Sessions[sessionID]
}

// Append records one completed exchange: the user message followed by the
// assistant completion. System prompts and uploaded attachments are never
// written here.
func (s *Store) Append(sessionID, userText, assistantText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := s.read()
	doc.Sessions[sessionID] = append(doc.Sessions[sessionID],
		models.NewMessage(models.RoleUser, userText, sessionID),
		models.NewMessage(models.RoleAssistant, assistantText, sessionID),
	)

	return s.write(doc)
}

// Clear "deletes" a conversation by appending two empty sentinel messages.
// The history grows rather than shrinks; callers that list the session see
// a blank latest exchange.
func (s *Store) Clear(sessionID string) error {
	return s.Append(sessionID, "", "")
}

// read loads the whole document, treating a missing or corrupt file as an
// empty store. Availability is preferred over strict persistence here.
func (s *Store) read() *storeFile {
	doc := &storeFile{Sessions: make(map[string][]models.Message)}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("session: read %s: %v", s.path, err)
		}
		return doc
	}

	if err := json.Unmarshal(raw, doc); err != nil {
		log.Printf("session: corrupt store %s, starting empty: %v", s.path, err)
		doc.Sessions = make(map[string][]models.Message)
	}
	if doc.Sessions == nil {
		doc.Sessions = make(map[string][]models.Message)
	}

	return doc
}

// write serializes the whole document back to disk.
func (s *Store) write(doc *storeFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, raw, 0o644)
}
