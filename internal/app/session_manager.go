package app

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/MrWong99/speechcoach/internal/observe"
	"github.com/MrWong99/speechcoach/internal/telemetry"
	"github.com/MrWong99/speechcoach/pkg/provider/embeddings"
)

// defaultIdleTimeout is how long a session's tracker is kept after its last
// evaluation.
const defaultIdleTimeout = 2 * time.Hour

// SessionInfo holds metadata about a tracked speaker session.
type SessionInfo struct {
	// SessionID is the caller-supplied identifier of the session.
	SessionID string `json:"sessionId"`

	// StartedAt is when the first evaluation of the session was seen.
	StartedAt time.Time `json:"startedAt"`

	// LastSeen is when the most recent evaluation of the session was seen.
	LastSeen time.Time `json:"lastSeen"`

	// Evaluations counts the evaluations tracked for the session.
	Evaluations int `json:"evaluations"`
}

type trackedSession struct {
	info        SessionInfo
	consistency *telemetry.Consistency
}

// SessionManager keeps one consistency tracker per speaker session so that
// drift is only measured between evaluations of the same speaker. Trackers
// idle for longer than the idle timeout are evicted.
// All exported methods are safe for concurrent use.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*trackedSession

	embedder     embeddings.Provider
	newCache     func(sessionID string) telemetry.VectorCache
	metrics      *observe.Metrics
	providerName string
	idleTimeout  time.Duration
	now          func() time.Time
}

// SessionManagerConfig holds all dependencies for a [SessionManager].
type SessionManagerConfig struct {
	// Embedder produces the evaluation vectors. Nil makes every tracker log
	// a warning instead of comparing.
	Embedder embeddings.Provider

	// NewCache returns the vector cache of a session. Nil keeps vectors in
	// memory.
	NewCache func(sessionID string) telemetry.VectorCache

	// Metrics receives similarity and request metrics.
	Metrics *observe.Metrics

	// ProviderName labels embedding request metrics.
	ProviderName string

	// IdleTimeout defaults to 2h.
	IdleTimeout time.Duration
}

// NewSessionManager creates a SessionManager with the given dependencies.
func NewSessionManager(cfg SessionManagerConfig) *SessionManager {
	sm := &SessionManager{
		sessions:     make(map[string]*trackedSession),
		embedder:     cfg.Embedder,
		newCache:     cfg.NewCache,
		metrics:      cfg.Metrics,
		providerName: cfg.ProviderName,
		idleTimeout:  cfg.IdleTimeout,
		now:          time.Now,
	}
	if sm.idleTimeout <= 0 {
		sm.idleTimeout = defaultIdleTimeout
	}
	if sm.metrics == nil {
		sm.metrics = observe.DefaultMetrics()
	}
	if sm.providerName == "" {
		sm.providerName = "embeddings"
	}
	if sm.newCache == nil {
		sm.newCache = func(string) telemetry.VectorCache { return telemetry.NewMemoryCache() }
	}
	return sm
}

// Consistency returns the tracker of sessionID, creating it on first use.
// An empty (or blank) sessionID yields a fresh tracker that is not kept, so
// anonymous requests never compare against each other.
func (sm *SessionManager) Consistency(sessionID string) *telemetry.Consistency {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return sm.newTracker(telemetry.NewMemoryCache())
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	s, ok := sm.sessions[sessionID]
	if !ok {
		s = &trackedSession{
			info:        SessionInfo{SessionID: sessionID, StartedAt: now},
			consistency: sm.newTracker(sm.newCache(sessionID)),
		}
		sm.sessions[sessionID] = s
		slog.Debug("session tracked", "session_id", sessionID)
	}
	s.info.LastSeen = now
	s.info.Evaluations++
	return s.consistency
}

func (sm *SessionManager) newTracker(cache telemetry.VectorCache) *telemetry.Consistency {
	return telemetry.New(sm.embedder,
		telemetry.WithCache(cache),
		telemetry.WithMetrics(sm.metrics),
		telemetry.WithProviderName(sm.providerName),
	)
}

// Sessions returns a snapshot of all tracked sessions sorted by ID.
func (sm *SessionManager) Sessions() []SessionInfo {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	out := make([]SessionInfo, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s.info)
	}
	slices.SortFunc(out, func(a, b SessionInfo) int { return strings.Compare(a.SessionID, b.SessionID) })
	return out
}

// Len returns the number of tracked sessions.
func (sm *SessionManager) Len() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return len(sm.sessions)
}

// Evict drops sessions idle for longer than the idle timeout and returns how
// many were removed. Persistent caches keep their rows; only the in-process
// tracker is released.
func (sm *SessionManager) Evict() int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	cutoff := sm.now().Add(-sm.idleTimeout)
	n := 0
	for id, s := range sm.sessions {
		if s.info.LastSeen.Before(cutoff) {
			delete(sm.sessions, id)
			n++
		}
	}
	if n > 0 {
		slog.Info("evicted idle sessions", "count", n, "remaining", len(sm.sessions))
	}
	return n
}

// Run evicts idle sessions periodically until ctx is cancelled.
func (sm *SessionManager) Run(ctx context.Context) {
	ticker := time.NewTicker(sm.idleTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.Evict()
		}
	}
}
