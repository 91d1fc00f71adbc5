// Package session keeps bounded per-session conversation memory.
// History is a sliding window: once the cap is reached the oldest
// exchanges fall off.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PageSage/pagesage/internal/logger"
	"github.com/PageSage/pagesage/pkg/types"
)

// DefaultMaxHistory is the default number of exchanges kept per session
const DefaultMaxHistory = 50

// Persister is the durable backend for conversation history
type Persister interface {
	AppendConversation(types.ConversationEntry) error
	LoadConversation(sessionID string, limit int) ([]types.ConversationEntry, error)
	TrimConversation(sessionID string, keep int) error
	DeleteConversation(sessionID string) error
	ListSessions() ([]string, error)
}

// Session is one conversation with its bounded history
type Session struct {
	ID         string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	MaxHistory int

	mu      sync.Mutex
	entries []types.ConversationEntry
}

// Store manages conversation sessions in memory
type Store struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	persister  Persister
	maxHistory int
	log        *logger.Logger
}

// NewStore creates a session store. maxHistory <= 0 falls back to
// DefaultMaxHistory.
func NewStore(maxHistory int, log *logger.Logger) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		sessions:   make(map[string]*Session),
		maxHistory: maxHistory,
		log:        log.WithComponent("session"),
	}
}

// SetPersister sets the persistence backend and loads existing sessions
func (s *Store) SetPersister(p Persister) error {
	s.mu.Lock()
	s.persister = p
	s.mu.Unlock()

	ids, err := p.ListSessions()
	if err != nil {
		return err
	}

	for _, id := range ids {
		entries, err := p.LoadConversation(id, s.maxHistory)
		if err != nil {
			s.log.Warn("failed to load session %s: %v", id, err)
			continue
		}
		sess := &Session{
			ID:         id,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
			MaxHistory: s.maxHistory,
			entries:    entries,
		}
		s.mu.Lock()
		s.sessions[id] = sess
		s.mu.Unlock()
	}

	if len(ids) > 0 {
		s.log.Info("loaded %d sessions from database", len(ids))
	}
	return nil
}

// NewSessionID returns a fresh session identifier
func NewSessionID() string {
	return uuid.New().String()
}

// GetOrCreate retrieves an existing session or creates a new one
func (s *Store) GetOrCreate(id string) *Session {
	s.mu.RLock()
	sess, exists := s.sessions[id]
	s.mu.RUnlock()
	if exists {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, exists = s.sessions[id]; exists {
		return sess
	}

	sess = &Session{
		ID:         id,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
		MaxHistory: s.maxHistory,
	}
	s.sessions[id] = sess
	return sess
}

// Get retrieves a session without creating one
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, exists := s.sessions[id]
	return sess, exists
}

// Count returns the number of in-memory sessions
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Append records one completed exchange and persists it. History beyond the
// cap is dropped in memory and trimmed in the store.
func (s *Store) Append(id string, e types.ConversationEntry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	e.SessionID = id

	sess := s.GetOrCreate(id)
	sess.add(e)

	s.mu.RLock()
	persister := s.persister
	s.mu.RUnlock()
	if persister == nil {
		return
	}

	if err := persister.AppendConversation(e); err != nil {
		s.log.Warn("failed to persist exchange: %v", err)
		return
	}
	if err := persister.TrimConversation(id, sess.MaxHistory); err != nil {
		s.log.Warn("failed to trim persisted history: %v", err)
	}
}

// Clear removes a session's history from memory and persistence
func (s *Store) Clear(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	persister := s.persister
	s.mu.Unlock()

	if persister != nil {
		if err := persister.DeleteConversation(id); err != nil {
			s.log.Warn("failed to delete persisted session: %v", err)
		}
	}
}

func (sess *Session) add(e types.ConversationEntry) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.entries = append(sess.entries, e)
	sess.UpdatedAt = time.Now()

	if sess.MaxHistory > 0 && len(sess.entries) > sess.MaxHistory {
		excess := len(sess.entries) - sess.MaxHistory
		sess.entries = sess.entries[excess:]
	}
}

// History returns the last n exchanges, oldest first. n <= 0 returns all.
func (sess *Session) History(n int) []types.ConversationEntry {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if n <= 0 || n >= len(sess.entries) {
		out := make([]types.ConversationEntry, len(sess.entries))
		copy(out, sess.entries)
		return out
	}

	out := make([]types.ConversationEntry, n)
	copy(out, sess.entries[len(sess.entries)-n:])
	return out
}

// Len returns the number of kept exchanges
func (sess *Session) Len() int {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return len(sess.entries)
}
