package cart

import (
	"context"
	"sync"

	"aura-storefront/internal/storage"
)

// maxOpenSessions bounds the in-memory Store cache. Evicted carts are
// rehydrated from storage on the next request.
const maxOpenSessions = 1024

// Sessions hands out one Store per session ID over a shared backend.
// Stores are refreshed from storage on every Get and mutate through
// storage.Update, so several processes can share one backend.
type Sessions struct {
	mu      sync.Mutex
	storage storage.Store
	opts    []Option
	open    map[string]*Store
}

func NewSessions(st storage.Store, opts ...Option) *Sessions {
	return &Sessions{
		storage: st,
		opts:    opts,
		open:    make(map[string]*Store),
	}
}

// SessionKey is the storage key for a session's cart.
func SessionKey(id string) string {
	return StorageKey + ":" + id
}

// Get returns the Store for a session with its lines reloaded from storage.
func (s *Sessions) Get(ctx context.Context, id string) (*Store, error) {
	s.mu.Lock()
	st, ok := s.open[id]
	s.mu.Unlock()
	if ok {
		if err := st.Refresh(ctx); err != nil {
			return nil, err
		}
		return st, nil
	}

	opts := append(append([]Option{}, s.opts...), WithKey(SessionKey(id)))
	st, err := Open(ctx, s.storage, opts...)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.open[id]; ok {
		return existing, nil
	}
	if len(s.open) >= maxOpenSessions {
		for k := range s.open {
			delete(s.open, k)
			break
		}
	}
	s.open[id] = st
	return st, nil
}

// Len reports how many session carts are held in memory.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}
