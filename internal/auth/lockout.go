package auth

import (
	"sync"
	"time"
)

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// lockout はクライアントごとのログイン失敗回数を数え、上限に達したら一定時間締め出します。
type lockout struct {
	mu       sync.Mutex
	attempts map[string]*attemptState
	window   time.Duration
	duration time.Duration
	limit    int
	now      func() time.Time
}

func newLockout(limit int, window, duration time.Duration) *lockout {
	return &lockout{
		attempts: make(map[string]*attemptState),
		window:   window,
		duration: duration,
		limit:    limit,
		now:      time.Now,
	}
}

// retryAfter は締め出し中なら残り時間を、そうでなければ 0 を返します。
func (l *lockout) retryAfter(key string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.attempts[key]
	if !ok {
		return 0
	}
	now := l.now()
	if !now.Before(state.lockedUntil) {
		return 0
	}
	return state.lockedUntil.Sub(now)
}

// fail は失敗を記録し、締め出しまでの残り回数を返します。
func (l *lockout) fail(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	state, ok := l.attempts[key]
	if !ok || now.Sub(state.firstAttempt) > l.window {
		state = &attemptState{firstAttempt: now}
		l.attempts[key] = state
	}

	state.count++
	if state.count >= l.limit {
		state.count = l.limit
		state.lockedUntil = now.Add(l.duration)
	}
	return l.limit - state.count
}

func (l *lockout) reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}
