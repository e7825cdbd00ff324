package lexical

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"docqa/internal/domain"
	"docqa/internal/logging"
	"docqa/internal/metrics"
)

const (
	DefaultTTL         = 30 * time.Minute
	DefaultMaxSessions = 1000
)

// StoreConfig bounds the lifetime and number of sessions.
type StoreConfig struct {
	TTL         time.Duration
	MaxSessions int
	Now         func() time.Time
	NewID       func() string
	Logger      *slog.Logger
}

type entry struct {
	session    *Session
	lastAccess time.Time
}

// Store owns every live session. Sessions expire TTL after their last
// access; when MaxSessions is reached the least recently used one is
// evicted to make room.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*entry
	ttl      time.Duration
	max      int
	now      func() time.Time
	newID    func() string
	log      *slog.Logger
}

// NewStore creates an empty session store.
func NewStore(cfg StoreConfig) *Store {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		// v4 UUIDs come from crypto/rand, so ids are not guessable.
		cfg.NewID = uuid.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      cfg.TTL,
		max:      cfg.MaxSessions,
		now:      cfg.Now,
		newID:    cfg.NewID,
		log:      cfg.Logger,
	}
}

// CreateSession tokenizes chunks and registers a new session under a fresh
// id.
func (s *Store) CreateSession(docName string, numpages int, chunks []domain.Chunk) *Session {
	now := s.now()
	id := s.newID()
	sess := newSession(id, docName, numpages, chunks, now)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictExpiredLocked(now)
	for len(s.sessions) >= s.max {
		s.evictOldestLocked()
	}
	s.sessions[id] = &entry{session: sess, lastAccess: now}
	metrics.SessionsCreated.Add(1)
	s.log.Debug("session created", "session_id", id, "doc_name", docName, "chunks", len(chunks))
	return sess
}

// GetSession returns the session for id. The boolean is false for unknown
// or expired ids.
func (s *Store) GetSession(id string) (*Session, bool) {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if s.expired(e, now) {
		s.removeLocked(id, "expired")
		return nil, false
	}
	e.lastAccess = now
	return e.session, true
}

// Delete removes a session. It reports whether the session existed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	s.removeLocked(id, "deleted")
	return true
}

// Len returns the number of sessions currently held, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep drops every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evictExpiredLocked(s.now())
}

// Run sweeps on every tick until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.log.Info("expired sessions evicted", "count", n)
			}
		}
	}
}

func (s *Store) expired(e *entry, now time.Time) bool {
	return now.Sub(e.lastAccess) >= s.ttl
}

func (s *Store) evictExpiredLocked(now time.Time) int {
	n := 0
	for id, e := range s.sessions {
		if s.expired(e, now) {
			s.removeLocked(id, "expired")
			n++
		}
	}
	return n
}

func (s *Store) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, e := range s.sessions {
		if oldestID == "" || e.lastAccess.Before(oldest) {
			oldestID, oldest = id, e.lastAccess
		}
	}
	if oldestID != "" {
		s.removeLocked(oldestID, "capacity")
	}
}

func (s *Store) removeLocked(id, reason string) {
	delete(s.sessions, id)
	metrics.SessionsEvicted.Add(1)
	s.log.Debug("session evicted", "session_id", id, "reason", reason)
}
