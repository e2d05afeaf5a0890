package store

import (
	"context"
	"sync"
)

// MemoryStore keeps the whole tree in process. Used in development and tests.
type MemoryStore struct {
	reader

	mu     sync.RWMutex
	root   any
	closed bool
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{}
	s.reader = newReader("memory", 0, s.readPath, nil)
	return s
}

func (s *MemoryStore) readPath(_ context.Context, segs []string) (any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	return deepCopy(getAt(s.root, segs)), nil
}

func (s *MemoryStore) Update(_ context.Context, updates map[string]any) error {
	writes, err := prepare(updates)
	if err != nil {
		return err
	}
	if len(writes) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	values, err := resolveAll(writes, func(segs []string) (any, error) {
		return getAt(s.root, segs), nil
	})
	if err != nil {
		s.mu.Unlock()
		return err
	}
	for i, w := range writes {
		s.root = setAt(s.root, w.segs, values[i])
	}
	s.mu.Unlock()

	s.watchers.notify(writtenPaths(writes))
	return nil
}

func (s *MemoryStore) Close() error {
	s.watchers.closeAll()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
