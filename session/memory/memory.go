// Package memory provides an in-memory session store, mainly for tests and
// single-process deployments.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/smallnest/agentgraph/session"
)

// MemoryStore implements session.Store with in-process maps.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
	messages map[string][]*session.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*session.Session),
		messages: make(map[string][]*session.Message),
	}
}

// CreateSession stores a new session.
func (s *MemoryStore) CreateSession(ctx context.Context, sess *session.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *sess
	s.sessions[sess.ID] = &copied
	return nil
}

// GetSession retrieves a session by ID.
func (s *MemoryStore) GetSession(ctx context.Context, sessionID string) (*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, session.ErrNotFound
	}
	copied := *sess
	return &copied, nil
}

// ListSessions returns all sessions, newest first.
func (s *MemoryStore) ListSessions(ctx context.Context) ([]*session.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		copied := *sess
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// DeleteSession removes a session and its messages.
func (s *MemoryStore) DeleteSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	delete(s.messages, sessionID)
	return nil
}

// AppendMessage stores a message under its session.
func (s *MemoryStore) AppendMessage(ctx context.Context, message *session.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[message.SessionID]; !ok {
		return session.ErrNotFound
	}
	copied := *message
	s.messages[message.SessionID] = append(s.messages[message.SessionID], &copied)
	return nil
}

// Messages returns a session's messages in append order.
func (s *MemoryStore) Messages(ctx context.Context, sessionID string) ([]*session.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return nil, session.ErrNotFound
	}
	msgs := s.messages[sessionID]
	out := make([]*session.Message, 0, len(msgs))
	for _, m := range msgs {
		copied := *m
		out = append(out, &copied)
	}
	return out, nil
}
