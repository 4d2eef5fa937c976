package devserver

import (
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// session is one client session and its uploaded tables.
type session struct {
	id string

	mu        sync.Mutex
	db        *sql.DB // nil until the first upload
	tables    []string
	expiresAt time.Time
}

// Tables returns the names of the tables loaded so far.
func (s *session) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.tables)
}

// ensureDB opens the in-memory database on first use. Caller holds s.mu.
func (s *session) ensureDB() (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	// Every connection to :memory: is a distinct database.
	db.SetMaxOpenConns(1)
	s.db = db
	return db, nil
}

func (s *session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Warn("close session db", "session", s.id, "error", err)
		}
		s.db = nil
	}
}

// Store keeps sessions in memory with an idle timeout.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session
	timeout  time.Duration
	now      func() time.Time
}

// NewStore creates a store whose sessions expire after timeout of inactivity.
func NewStore(timeout time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*session),
		timeout:  timeout,
		now:      time.Now,
	}
}

// Create registers a new session.
func (st *Store) Create() *session {
	st.mu.Lock()
	defer st.mu.Unlock()

	id := uuid.NewString()
	for st.sessions[id] != nil {
		id = uuid.NewString()
	}
	s := &session{id: id, expiresAt: st.now().Add(st.timeout)}
	st.sessions[id] = s
	return s
}

// Get returns a live session and pushes back its expiry.
func (st *Store) Get(id string) (*session, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := st.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.After(s.expiresAt) {
		return nil, false
	}
	s.expiresAt = now.Add(st.timeout)
	return s, true
}

// Delete removes a session and releases its database.
func (st *Store) Delete(id string) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()

	if ok {
		s.close()
	}
}

// Sweep drops every expired session and returns how many were removed.
func (st *Store) Sweep() int {
	now := st.now()

	st.mu.Lock()
	var expired []*session
	for id, s := range st.sessions {
		s.mu.Lock()
		dead := now.After(s.expiresAt)
		s.mu.Unlock()
		if dead {
			expired = append(expired, s)
			delete(st.sessions, id)
		}
	}
	st.mu.Unlock()

	for _, s := range expired {
		s.close()
		slog.Info("session expired", "session", s.id)
	}
	return len(expired)
}

// Len returns the number of sessions held, expired or not.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Close releases every session.
func (st *Store) Close() {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*session)
	st.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}
