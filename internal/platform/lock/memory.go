package lock

import (
	"context"
	"sync"
	"time"
)

// Memory holds keys in process. Entries expire after the TTL so a crashed
// holder cannot wedge a request forever.
type Memory struct {
	mu   sync.Mutex
	held map[string]time.Time
	ttl  time.Duration
	wait time.Duration
	now  func() time.Time
}

func NewMemory(ttl, wait time.Duration) *Memory {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if wait <= 0 {
		wait = defaultWait
	}
	return &Memory{held: make(map[string]time.Time), ttl: ttl, wait: wait, now: time.Now}
}

func (m *Memory) Acquire(ctx context.Context, key string) (Unlock, error) {
	var expiry time.Time
	err := acquireLoop(ctx, m.wait, func() (bool, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		now := m.now()
		if until, ok := m.held[key]; ok && now.Before(until) {
			return false, nil
		}
		expiry = now.Add(m.ttl)
		m.held[key] = expiry
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			// only release our own hold; an expired one may have been retaken
			if m.held[key].Equal(expiry) {
				delete(m.held, key)
			}
		})
	}, nil
}
