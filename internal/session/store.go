// File path: internal/session/store.go
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coastalgraphics/orderdesk/internal/oms"
)

// Message is one turn of a conversation.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Context holds the conversational slots follow-up queries resolve against.
// ShownOrders retains the full order values from the last primary result set
// so aggregate follow-ups ("what's the total?") never re-run retrieval.
type Context struct {
	LastQuery       string      `json:"lastQuery,omitempty"`
	FocusedCustomer string      `json:"focusedCustomer,omitempty"`
	FocusedJob      string      `json:"focusedJob,omitempty"`
	ShownOrders     []oms.Order `json:"shownOrders,omitempty"`
	CurrentFilter   string      `json:"currentFilter,omitempty"`
}

type Session struct {
	ID           string    `json:"sessionId"`
	Messages     []Message `json:"messages"`
	LastActivity time.Time `json:"lastActivity"`
	Context      Context   `json:"context"`
}

const (
	defaultTTL        = time.Hour
	defaultMaxHistory = 12
)

// Store is an in-memory, TTL-evicted map from session id to conversation
// state. An evicted session id starts over with empty history; there is no
// resurrection.
type Store struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	ttl        time.Duration
	maxHistory int
	now        func() time.Time
}

func NewStore(ttl time.Duration, maxHistory int) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &Store{
		sessions:   make(map[string]*Session),
		ttl:        ttl,
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// NewStoreWithClock pins the store's clock for deterministic eviction tests.
func NewStoreWithClock(ttl time.Duration, maxHistory int, now func() time.Time) *Store {
	s := NewStore(ttl, maxHistory)
	if now != nil {
		s.now = now
	}
	return s
}

// GetOrCreate returns the session for id, creating it on first use. An empty
// id gets a generated one. The returned session is a copy; mutations go
// through AppendMessage and UpdateContext.
func (s *Store) GetOrCreate(id string) Session {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		trimmed = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked()
	sess, ok := s.sessions[trimmed]
	if !ok {
		sess = &Session{ID: trimmed, LastActivity: s.now()}
		s.sessions[trimmed] = sess
	}
	return cloneSession(sess)
}

// Lookup returns the session without creating one.
func (s *Store) Lookup(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked()
	sess, ok := s.sessions[strings.TrimSpace(id)]
	if !ok {
		return Session{}, false
	}
	return cloneSession(sess), true
}

// AppendMessage records one turn and truncates history to the configured
// window. It also refreshes the activity timestamp.
func (s *Store) AppendMessage(id string, msg Message) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[trimmed]
	if !ok {
		sess = &Session{ID: trimmed}
		s.sessions[trimmed] = sess
	}
	sess.Messages = append(sess.Messages, msg)
	if len(sess.Messages) > s.maxHistory {
		sess.Messages = sess.Messages[len(sess.Messages)-s.maxHistory:]
	}
	sess.LastActivity = s.now()
}

// UpdateContext overwrites the session's context slots. Callers pass the full
// replacement; follow-up turns that keep prior context simply do not call
// this.
func (s *Store) UpdateContext(id string, ctx Context) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[trimmed]
	if !ok {
		return
	}
	sess.Context = ctx
	sess.LastActivity = s.now()
}

// ActiveCount reports the number of live sessions after eviction.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked()
	return len(s.sessions)
}

func (s *Store) evictExpiredLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.LastActivity.Before(cutoff) {
			delete(s.sessions, id)
		}
	}
}

func cloneSession(sess *Session) Session {
	out := Session{
		ID:           sess.ID,
		LastActivity: sess.LastActivity,
		Context:      sess.Context,
	}
	if len(sess.Messages) > 0 {
		out.Messages = make([]Message, len(sess.Messages))
		copy(out.Messages, sess.Messages)
	}
	if len(sess.Context.ShownOrders) > 0 {
		out.Context.ShownOrders = make([]oms.Order, len(sess.Context.ShownOrders))
		copy(out.Context.ShownOrders, sess.Context.ShownOrders)
	}
	return out
}
