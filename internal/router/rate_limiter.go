package router

import (
	"sync"
	"time"
)

// RateLimiter caps how fast a single session can push messages through the
// relay, keeping it a well-behaved small-payload fan-out.
type RateLimiter struct {
	mu       sync.Mutex
	sessions map[string]*sessionLimit
}

type sessionLimit struct {
	messageCount int
	windowStart  time.Time
}

// Limit is the per-session message budget per minute window.
const Limit = 100

// NewRateLimiter creates a rate limiter with empty state.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		sessions: make(map[string]*sessionLimit),
	}
}

// Allow reports whether the session may send another message in the current
// minute window.
func (rl *RateLimiter) Allow(sessionID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	limit, exists := rl.sessions[sessionID]
	if !exists {
		rl.sessions[sessionID] = &sessionLimit{messageCount: 1, windowStart: now}
		return true
	}

	if now.Sub(limit.windowStart) >= time.Minute {
		limit.messageCount = 1
		limit.windowStart = now
		return true
	}

	if limit.messageCount >= Limit {
		return false
	}

	limit.messageCount++
	return true
}

// Forget drops the state for a departed session.
func (rl *RateLimiter) Forget(sessionID string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.sessions, sessionID)
}

// Cleanup removes entries idle for over five minutes. Call periodically.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for sessionID, limit := range rl.sessions {
		if now.Sub(limit.windowStart) > 5*time.Minute {
			delete(rl.sessions, sessionID)
		}
	}
}
