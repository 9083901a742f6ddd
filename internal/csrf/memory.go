package csrf

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultSweepInterval is how often StartSweep drops expired tokens.
const DefaultSweepInterval = 10 * time.Minute

type entry struct {
	token     string
	expiresAt time.Time
}

// MemoryStore is an in-process Store. Tokens are lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	m    map[string]entry
	nowF func() time.Time
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]entry), nowF: time.Now}
}

// Put binds token to sessionKey until now+ttl.
func (s *MemoryStore) Put(_ context.Context, sessionKey, token string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[sessionKey] = entry{token: token, expiresAt: s.nowF().Add(ttl)}
	return nil
}

// Get returns the token for sessionKey if present and not expired. Expired entries are removed.
func (s *MemoryStore) Get(_ context.Context, sessionKey string) (string, bool, error) {
	s.mu.RLock()
	e, ok := s.m[sessionKey]
	s.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if e.expiresAt.After(s.nowF()) {
		return e.token, true, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// A Put may have replaced the entry since the read lock was released.
	if cur, ok := s.m[sessionKey]; ok {
		if cur.expiresAt.After(s.nowF()) {
			return cur.token, true, nil
		}
		delete(s.m, sessionKey)
	}
	return "", false, nil
}

// Delete removes the token for sessionKey.
func (s *MemoryStore) Delete(_ context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, sessionKey)
	return nil
}

// Sweep removes every expired entry and returns the number removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowF()
	removed := 0
	for k, e := range s.m {
		if !e.expiresAt.After(now) {
			delete(s.m, k)
			removed++
		}
	}
	return removed
}

// StartSweep runs Sweep every interval until ctx is cancelled.
func (s *MemoryStore) StartSweep(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Debug().Int("removed", n).Msg("csrf sweep")
				}
			}
		}
	}()
}
