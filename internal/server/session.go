package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/doc-structurer/constants"
	"github.com/joseph-ayodele/doc-structurer/internal/common"
	"github.com/joseph-ayodele/doc-structurer/internal/entity"
)

const sessionCookie = "docstruct_session"

// Session is one browser's in-memory state: the credential and the last export. Nothing in it
// is written to disk.
type Session struct {
	ID         string
	Credential *common.Credential
	Provider   constants.Provider
	Template   constants.Template
	LastExport *entity.ExportFile
	Preview    *entity.Table
	lastSeen   time.Time
}

// release drops the credential and the export.
func (s *Session) release() {
	s.Credential.Release()
	s.Credential = nil
	s.LastExport = nil
	s.Preview = nil
}

// Sessions is the process-wide session registry. Idle sessions are swept on access.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{sessions: make(map[string]*Session), ttl: ttl, now: time.Now}
}

// Lookup returns the session named by the request cookie, or nil.
func (s *Sessions) Lookup(r *http.Request) *Session {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	sess, ok := s.sessions[c.Value]
	if !ok {
		return nil
	}
	sess.lastSeen = s.now()
	return sess
}

// Ensure returns the request's session, creating one and setting its cookie when absent.
func (s *Sessions) Ensure(w http.ResponseWriter, r *http.Request) *Session {
	if sess := s.Lookup(r); sess != nil {
		return sess
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &Session{ID: uuid.NewString(), lastSeen: s.now()}
	s.sessions[sess.ID] = sess
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   r.TLS != nil,
	})
	return sess
}

// Update runs fn on the session under the registry lock.
func (s *Sessions) Update(sess *Session, fn func(*Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(sess)
}

// End releases the session and expires its cookie.
func (s *Sessions) End(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(sessionCookie); err == nil {
		s.mu.Lock()
		if sess, ok := s.sessions[c.Value]; ok {
			sess.release()
			delete(s.sessions, c.Value)
		}
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

// Len reports the number of live sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	return len(s.sessions)
}

func (s *Sessions) sweepLocked() {
	cutoff := s.now().Add(-s.ttl)
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			sess.release()
			delete(s.sessions, id)
		}
	}
}

// Close releases every session. Used on shutdown.
func (s *Sessions) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sess := range s.sessions {
		sess.release()
		delete(s.sessions, id)
	}
}
