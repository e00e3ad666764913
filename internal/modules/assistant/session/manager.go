package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yungbote/maigie-backend/internal/platform/logger"
)

type Config struct {
	MaxTurns      int
	IdleTimeout   time.Duration
	SweepInterval time.Duration
	// LLMCallsPerMinute is the per-user model call budget; zero disables it.
	LLMCallsPerMinute float64
	LLMBurst          int
}

// Manager owns every live session. Sessions of different users never share
// state; only the per-user call budget is shared across one user's sessions.
type Manager struct {
	log *logger.Logger
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	limiters map[string]*rate.Limiter
}

func NewManager(baseLog *logger.Logger, cfg Config) *Manager {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	if cfg.LLMBurst <= 0 {
		cfg.LLMBurst = 5
	}
	return &Manager{
		log:      baseLog.With("component", "SessionManager"),
		cfg:      cfg,
		now:      time.Now,
		sessions: map[string]*Session{},
		limiters: map[string]*rate.Limiter{},
	}
}

// Open creates a fresh session, as a WebSocket connection does.
func (m *Manager) Open(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := newSession("", userID, m.cfg.MaxTurns, m.limiterLocked(userID), m.now)
	m.sessions[s.ID] = s
	return s
}

// GetOrCreate finds a session by id for userID, creating it when unknown.
// A session bound to another user is never returned.
func (m *Manager) GetOrCreate(sessionID, userID string) (*Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[sessionID]; ok && sessionID != "" {
		if s.UserID != userID {
			return nil, ErrForbidden
		}
		if !s.Closed() {
			return s, nil
		}
	}
	if len(sessionID) > 128 {
		sessionID = ""
	}
	s := newSession(sessionID, userID, m.cfg.MaxTurns, m.limiterLocked(userID), m.now)
	m.sessions[s.ID] = s
	return s, nil
}

// Close tears down and forgets the session.
func (m *Manager) Close(sessionID string) {
	m.mu.Lock()
	s := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	m.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *Manager) limiterLocked(userID string) *rate.Limiter {
	if m.cfg.LLMCallsPerMinute <= 0 {
		return nil
	}
	if l, ok := m.limiters[userID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(m.cfg.LLMCallsPerMinute/60), m.cfg.LLMBurst)
	m.limiters[userID] = l
	return l
}

// Run sweeps idle sessions until ctx ends.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return nil
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep closes sessions idle longer than the idle timeout and returns how many.
func (m *Manager) Sweep() int {
	now := m.now()
	var idle []*Session

	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Closed() {
			delete(m.sessions, id)
			continue
		}
		last, ok := s.idleSince()
		if ok && now.Sub(last) > m.cfg.IdleTimeout {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	active := map[string]bool{}
	for _, s := range m.sessions {
		active[s.UserID] = true
	}
	for user, l := range m.limiters {
		if !active[user] && l.TokensAt(now) >= float64(m.cfg.LLMBurst) {
			delete(m.limiters, user)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		s.Close()
	}
	if len(idle) > 0 {
		m.log.Debug("swept idle sessions", "count", len(idle))
	}
	return len(idle)
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		all = append(all, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
}
