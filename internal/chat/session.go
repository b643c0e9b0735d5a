package chat

import (
	"sync"
	"time"
)

// Session holds one conversation's ordered turns. The session mutex
// serializes concurrent requests for the same session: the chat service
// holds it across "append user turn -> invoke generators -> append
// assistant turn" so no two requests interleave their pairs.
type Session struct {
	mu    sync.Mutex
	turns []Turn
}

// Lock acquires the per-session critical section.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the per-session critical section.
func (s *Session) Unlock() { s.mu.Unlock() }

// appendLocked records a turn. Caller holds the session lock.
func (s *Session) appendLocked(role, content string) {
	s.turns = append(s.turns, Turn{Role: role, Content: content, At: time.Now()})
}

// historyLocked returns a snapshot of the turns. Caller holds the
// session lock.
func (s *Session) historyLocked() History {
	out := make(History, len(s.turns))
	copy(out, s.turns)
	return out
}

// History returns a snapshot of the turns, taking the session lock. A
// read issued while a request for the same session is in flight waits
// for that request's critical section to finish.
func (s *Session) History() History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.historyLocked()
}

// SessionStore owns per-session conversation state. Sessions are created
// lazily on first use and removed only by explicit deletion.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

// GetOrCreate returns the session for id, creating it if absent.
func (st *SessionStore) GetOrCreate(id string) *Session {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		return sess
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if sess, ok := st.sessions[id]; ok {
		return sess
	}
	sess = &Session{}
	st.sessions[id] = sess
	return sess
}

// Get returns a snapshot of the session's history, or false if the
// session does not exist.
func (st *SessionStore) Get(id string) (History, bool) {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return sess.History(), true
}

// GetAll returns history snapshots for every session.
func (st *SessionStore) GetAll() map[string]History {
	st.mu.RLock()
	ids := make([]string, 0, len(st.sessions))
	sessions := make([]*Session, 0, len(st.sessions))
	for id, sess := range st.sessions {
		ids = append(ids, id)
		sessions = append(sessions, sess)
	}
	st.mu.RUnlock()

	out := make(map[string]History, len(ids))
	for i, id := range ids {
		out[id] = sessions[i].History()
	}
	return out
}

// AppendUser appends a user turn, creating the session if needed.
func (st *SessionStore) AppendUser(id, content string) {
	sess := st.GetOrCreate(id)
	sess.mu.Lock()
	sess.appendLocked(RoleUser, content)
	sess.mu.Unlock()
}

// AppendAssistant appends an assistant turn, creating the session if needed.
func (st *SessionStore) AppendAssistant(id, content string) {
	sess := st.GetOrCreate(id)
	sess.mu.Lock()
	sess.appendLocked(RoleAssistant, content)
	sess.mu.Unlock()
}

// Delete removes one session. Returns false if it was absent.
func (st *SessionStore) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.sessions[id]; !ok {
		return false
	}
	delete(st.sessions, id)
	return true
}

// DeleteAll removes every session.
func (st *SessionStore) DeleteAll() {
	st.mu.Lock()
	st.sessions = make(map[string]*Session)
	st.mu.Unlock()
}

// Len returns the number of live sessions.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
