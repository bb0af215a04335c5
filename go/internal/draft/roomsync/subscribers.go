package roomsync

import (
	"sync"

	"github.com/mcdev12/draftslots/go/internal/models"
)

// subscribers is a set of snapshot handlers.
type subscribers struct {
	mu     sync.RWMutex
	fns    map[int]func(models.SharedDocument)
	nextID int
}

func newSubscribers() *subscribers {
	return &subscribers{fns: make(map[int]func(models.SharedDocument))}
}

func (s *subscribers) add(fn func(models.SharedDocument)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.fns[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.fns, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) notify(doc models.SharedDocument) {
	s.mu.RLock()
	fns := make([]func(models.SharedDocument), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(doc.Clone())
	}
}

func (s *subscribers) clear() {
	s.mu.Lock()
	s.fns = make(map[int]func(models.SharedDocument))
	s.mu.Unlock()
}
