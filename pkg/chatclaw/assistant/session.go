// Package assistant – session.go holds the per-user transient confirmation
// state: the question currently awaiting a yes/no search decision.
package assistant

import (
	"sync"
	"time"
)

// pendingQuestion is a question awaiting the user's search decision.
type pendingQuestion struct {
	question  string
	createdAt time.Time
}

// ConfirmationSessions tracks at most one pending question per user.
// A new inbound question overwrites any unresolved prior one
// (last-writer-wins, no queueing). State lives in process memory only;
// a restart losing pending questions is an accepted degradation.
type ConfirmationSessions struct {
	mu      sync.Mutex
	pending map[int64]pendingQuestion
}

// NewConfirmationSessions creates an empty session table.
func NewConfirmationSessions() *ConfirmationSessions {
	return &ConfirmationSessions{pending: make(map[int64]pendingQuestion)}
}

// Put stores the question awaiting confirmation for a user, silently
// discarding any previous pending question.
func (s *ConfirmationSessions) Put(userID int64, question string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[userID] = pendingQuestion{question: question, createdAt: time.Now()}
}

// Take reads and clears the pending question for a user. The second return
// is false when nothing was pending.
func (s *ConfirmationSessions) Take(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pending[userID]
	if !ok {
		return "", false
	}
	delete(s.pending, userID)
	return p.question, true
}

// Len returns the number of users with a pending question.
func (s *ConfirmationSessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// EvictOlderThan removes pending questions older than ttl and returns how
// many were evicted.
func (s *ConfirmationSessions) EvictOlderThan(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, p := range s.pending {
		if p.createdAt.Before(cutoff) {
			delete(s.pending, id)
			evicted++
		}
	}
	return evicted
}
