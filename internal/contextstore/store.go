package contextstore

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Store is the process-wide mapping from story ID to its active
// StoryContext. Entries expire after a TTL so abandoned stories do not
// accumulate; an expired context is re-synthesized on the next request.
type Store struct {
	cache  *gocache.Cache
	logger *zap.Logger

	mu    sync.Mutex
	locks map[string]*storyLock
}

type storyLock struct {
	mu   sync.Mutex
	refs int
}

// NewStore creates a Store whose entries live for ttl, with expired entries
// swept every cleanupInterval.
func NewStore(ttl, cleanupInterval time.Duration, logger *zap.Logger) *Store {
	return &Store{
		cache:  gocache.New(ttl, cleanupInterval),
		logger: logger.Named("ContextStore"),
		locks:  make(map[string]*storyLock),
	}
}

// Get returns the context for the story ID, if present.
func (s *Store) Get(storyID string) (*StoryContext, bool) {
	v, ok := s.cache.Get(storyID)
	if !ok {
		return nil, false
	}
	return v.(*StoryContext), true
}

// Set stores the context and refreshes its TTL.
func (s *Store) Set(storyID string, ctx *StoryContext) {
	s.cache.Set(storyID, ctx, gocache.DefaultExpiration)
}

// Delete removes the context for the story ID, if present.
func (s *Store) Delete(storyID string) {
	s.cache.Delete(storyID)
}

// GetOrCreate returns the existing context or stores the one produced by
// factory. Callers must hold the story's lock to make the check-then-create
// atomic with respect to concurrent requests for the same story.
func (s *Store) GetOrCreate(storyID string, factory func() *StoryContext) *StoryContext {
	if ctx, ok := s.Get(storyID); ok {
		return ctx
	}
	ctx := factory()
	s.Set(storyID, ctx)
	s.logger.Debug("Created story context", zap.String("storyID", storyID))
	return ctx
}

// Lock serializes access to a single story's context across concurrent
// requests and returns the matching unlock function. Different stories
// proceed independently.
func (s *Store) Lock(storyID string) (unlock func()) {
	s.mu.Lock()
	l, ok := s.locks[storyID]
	if !ok {
		l = &storyLock{}
		s.locks[storyID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, storyID)
		}
		s.mu.Unlock()
	}
}
